package tcp

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"time"

	"github.com/mcoot/lobbyd/internal/protocol"
	"github.com/mcoot/lobbyd/internal/transport"
)

// framer reads consecutive JSON values from a byte stream and writes
// newline-terminated JSON responses
type framer struct {
	conn net.Conn
	src  *budgetReader
	dec  *json.Decoder
	enc  *json.Encoder
	cfg  Config
}

func newFramer(conn net.Conn, cfg Config) *framer {
	src := &budgetReader{r: conn}
	return &framer{
		conn: conn,
		src:  src,
		dec:  json.NewDecoder(src),
		enc:  json.NewEncoder(conn),
		cfg:  cfg,
	}
}

func (f *framer) ReadMessage() ([]byte, error) {
	if f.cfg.IdleTimeout > 0 {
		_ = f.conn.SetReadDeadline(time.Now().Add(f.cfg.IdleTimeout))
	}
	// The decoder may already hold the start of this message, so one
	// message can use at most the leftover plus a fresh budget
	f.src.reset(f.cfg.ReadLimit)

	var raw json.RawMessage
	if err := f.dec.Decode(&raw); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			// The decoder cannot recover from bad input; drop what it buffered and start over
			f.dec = json.NewDecoder(f.src)
			return nil, transport.ErrMalformed
		}
		return nil, err
	}
	return raw, nil
}

func (f *framer) WriteMessage(resp protocol.Response) error {
	if f.cfg.WriteTimeout > 0 {
		_ = f.conn.SetWriteDeadline(time.Now().Add(f.cfg.WriteTimeout))
	}
	return f.enc.Encode(resp)
}

// budgetReader fails with transport.ErrTooLarge once more than the
// budget has been read since the last reset. A budget of 0 is unlimited.
type budgetReader struct {
	r         io.Reader
	limited   bool
	remaining int64
}

func (b *budgetReader) reset(budget int64) {
	b.limited = budget > 0
	b.remaining = budget
}

func (b *budgetReader) Read(p []byte) (int, error) {
	if !b.limited {
		return b.r.Read(p)
	}
	if b.remaining <= 0 {
		return 0, transport.ErrTooLarge
	}
	if int64(len(p)) > b.remaining {
		p = p[:b.remaining]
	}
	n, err := b.r.Read(p)
	b.remaining -= int64(n)
	return n, err
}
