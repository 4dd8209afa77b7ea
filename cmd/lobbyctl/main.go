package main

import "github.com/mcoot/lobbyd/internal/cli"

func main() {
	cli.Execute()
}
