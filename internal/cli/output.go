package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/mcoot/lobbyd/internal/api/response"
	"github.com/mcoot/lobbyd/internal/protocol"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		o.printJSON(map[string]string{"message": msg})
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case response.Status:
		o.printStatus(v)
	case response.Rooms:
		o.printRooms(v.Rooms)
	case response.Members:
		o.printMembers(v)
	case response.Events:
		o.printEvents(v)
	case protocol.CreateData:
		fmt.Fprintf(o.w, "Room created: %s\n", v.RoomID)
	case protocol.JoinData:
		fmt.Fprintf(o.w, "Joined room: %s\n", v.RoomInfo.RoomID)
		fmt.Fprintf(o.w, "Host: %s:%d\n", v.HostAddress, v.HostPort)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) table(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(o.w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func (o *Output) printStatus(s response.Status) {
	fmt.Fprintf(o.w, "Sessions: %d\n", s.Sessions)
	fmt.Fprintf(o.w, "Rooms: %d / %d\n", s.Rooms, s.Limits.MaxRooms)
	fmt.Fprintf(o.w, "Connections: %d / %d\n", s.Connections, s.Limits.MaxConnections)
	fmt.Fprintf(o.w, "Uptime: %s\n", time.Duration(s.UptimeSeconds)*time.Second)
	fmt.Fprintf(o.w, "Heartbeat: every %s, timeout %s\n", s.Limits.HeartbeatInterval, s.Limits.HeartbeatTimeout)
	if p := s.Process; p != nil {
		fmt.Fprintf(o.w, "Process: pid %d, %s, rss %.1f MiB, cpu %.1f%%, %d threads\n",
			p.PID, p.State, float64(p.RSSBytes)/(1<<20), p.CPUPercent, p.Threads)
	}
}

func (o *Output) printRooms(rooms []protocol.RoomInfo) {
	if len(rooms) == 0 {
		fmt.Fprintln(o.w, "No rooms")
		return
	}
	table := o.table("Room", "Name", "Game", "Host", "Address", "Players", "Status", "Private")
	for _, r := range rooms {
		table.Append([]string{
			string(r.RoomID),
			r.RoomName,
			r.GameType,
			string(r.HostDeviceID),
			fmt.Sprintf("%s:%d", r.HostAddress, r.HostPort),
			fmt.Sprintf("%d/%d", r.CurrentPlayers, r.MaxPlayers),
			r.Status,
			yesNo(r.IsPrivate),
		})
	}
	table.Render()
}

func (o *Output) printMembers(m response.Members) {
	fmt.Fprintf(o.w, "Room: %s\n", m.RoomID)
	table := o.table("Device", "Nickname", "Host", "Ready")
	for _, member := range m.Members {
		table.Append([]string{
			string(member.DeviceID),
			member.Nickname,
			yesNo(member.IsHost),
			yesNo(member.IsReady),
		})
	}
	table.Render()
}

func (o *Output) printEvents(e response.Events) {
	if len(e.Events) == 0 {
		fmt.Fprintln(o.w, "No events")
		return
	}
	table := o.table("Time", "Type", "Room", "Device", "Addr", "Detail")
	for _, ev := range e.Events {
		table.Append([]string{
			ev.Timestamp.Format(time.DateTime),
			string(ev.Type),
			string(ev.RoomID),
			string(ev.DeviceID),
			ev.Addr,
			ev.Detail,
		})
	}
	table.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
