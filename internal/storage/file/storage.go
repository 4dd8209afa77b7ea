package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/mcoot/lobbyd/internal/model"
	"github.com/mcoot/lobbyd/internal/storage"
	"github.com/mcoot/lobbyd/internal/storage/memory"
)

// timeLayout matches the bracketed timestamp used by server.log
const timeLayout = "2006-01-02 15:04:05"

// Storage appends events to a text log and keeps a bounded tail in memory for Recent
type Storage struct {
	mu   sync.Mutex
	w    io.Writer
	c    io.Closer
	tail *memory.Storage
}

// Open appends to the log file at path, creating it if needed
func Open(path string, maxEvents int) (*Storage, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	s := NewWithWriter(f, maxEvents)
	s.c = f
	return s, nil
}

// NewWithWriter writes log lines to w (for testing)
func NewWithWriter(w io.Writer, maxEvents int) *Storage {
	return &Storage{
		w:    w,
		tail: memory.New(maxEvents),
	}
}

// Ensure Storage implements the interface
var _ storage.EventLog = (*Storage)(nil)

func (s *Storage) Append(ctx context.Context, event model.Event) error {
	line := FormatLine(event)

	s.mu.Lock()
	_, err := io.WriteString(s.w, line)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return s.tail.Append(ctx, event)
}

func (s *Storage) Recent(ctx context.Context, limit int) ([]model.Event, error) {
	return s.tail.Recent(ctx, limit)
}

func (s *Storage) Close() error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}

// FormatLine renders an event as one newline-terminated log line:
//
//	[2024-01-01 12:00:00] room_created room=R1 device=dev-1 addr=127.0.0.1:5000 detail
//
// Client-supplied values with non-printable characters (and, for the
// key=value fields, spaces or quotes) are written Go-quoted, so every event
// stays on exactly one line.
func FormatLine(event model.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", event.Timestamp.Format(timeLayout), event.Type)
	if event.RoomID != "" {
		fmt.Fprintf(&b, " room=%s", escape(string(event.RoomID), false))
	}
	if event.DeviceID != "" {
		fmt.Fprintf(&b, " device=%s", escape(string(event.DeviceID), false))
	}
	if event.Addr != "" {
		fmt.Fprintf(&b, " addr=%s", escape(event.Addr, false))
	}
	if event.Detail != "" {
		b.WriteString(" ")
		b.WriteString(escape(event.Detail, true))
	}
	b.WriteString("\n")
	return b.String()
}

func escape(v string, allowSpace bool) string {
	unsafe := strings.IndexFunc(v, func(r rune) bool {
		return !unicode.IsPrint(r) || (!allowSpace && (r == ' ' || r == '"'))
	})
	if unsafe < 0 {
		return v
	}
	return strconv.Quote(v)
}
