package redis

import "fmt"

// Key prefix for all lobby data
const keyPrefix = "lobby"

// eventField is the stream entry field holding the JSON-encoded event
const eventField = "event"

// eventsKey returns the Redis key of the audit event stream
func eventsKey() string {
	return fmt.Sprintf("%s:events", keyPrefix)
}
