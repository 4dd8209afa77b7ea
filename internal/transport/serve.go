package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/mcoot/lobbyd/internal/dispatch"
	"github.com/mcoot/lobbyd/internal/protocol"
)

var (
	// ErrMalformed is returned by a Framer for input that cannot be framed as a JSON value.
	// The connection stays usable.
	ErrMalformed = errors.New("malformed message")

	// ErrTooLarge is returned by a Framer when a message exceeds its read limit.
	// The stream cannot be resynchronised, so the connection is closed.
	ErrTooLarge = errors.New("message too large")
)

// Framer reads whole request messages and writes responses for one connection
type Framer interface {
	ReadMessage() ([]byte, error)
	WriteMessage(resp protocol.Response) error
}

// Dispatcher handles the messages of a connection
type Dispatcher interface {
	Handle(ctx context.Context, conn *dispatch.Connection, raw []byte) protocol.Response
	Malformed() protocol.Response
	TooLarge() protocol.Response
	Internal(conn *dispatch.Connection, recovered any) protocol.Response
	Release(ctx context.Context, conn *dispatch.Connection, reason string)
}

// ConnMetrics observes connection lifecycle per transport
type ConnMetrics interface {
	ConnectionOpened(transport string)
	ConnectionClosed(transport string)
	ConnectionRejected(transport string)
}

// Serve processes requests from f in order until the peer disconnects, a write
// fails or a request panics. The connection's devices are always released on return.
func Serve(ctx context.Context, f Framer, d Dispatcher, conn *dispatch.Connection, logger *slog.Logger) {
	reason := "closed by client"
	defer func() {
		d.Release(ctx, conn, reason)
	}()

	for {
		raw, err := f.ReadMessage()
		if err != nil {
			if errors.Is(err, ErrMalformed) {
				if werr := f.WriteMessage(d.Malformed()); werr != nil {
					reason = "write failed: " + werr.Error()
					return
				}
				continue
			}
			if errors.Is(err, ErrTooLarge) {
				_ = f.WriteMessage(d.TooLarge())
				reason = "message too large"
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				reason = "idle timeout"
				return
			}
			if !isClosed(err) {
				reason = "read failed: " + err.Error()
				logger.Debug("connection read error",
					slog.String("addr", conn.Addr),
					slog.String("error", err.Error()))
			}
			return
		}

		resp, panicked := handle(ctx, d, conn, raw)
		if err := f.WriteMessage(resp); err != nil {
			reason = "write failed: " + err.Error()
			return
		}
		if panicked {
			reason = "internal error"
			return
		}
	}
}

// handle runs one request, converting a panic into an internal error response
func handle(ctx context.Context, d Dispatcher, conn *dispatch.Connection, raw []byte) (resp protocol.Response, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			resp = d.Internal(conn, r)
			panicked = true
		}
	}()
	return d.Handle(ctx, conn, raw), false
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed)
}
