package dispatch

import (
	"slices"
	"sync"

	"github.com/mcoot/lobbyd/internal/model"
)

// Connection is the per-connection state shared between a transport and the dispatcher.
// It remembers which devices authenticated through it so they can be cleaned up on close.
type Connection struct {
	ID        model.ConnectionID
	Addr      string
	Transport string

	mu      sync.Mutex
	devices []model.DeviceID
	release sync.Once
}

// Devices returns the devices authenticated on this connection, in order
func (c *Connection) Devices() []model.DeviceID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.devices)
}

func (c *Connection) track(id model.DeviceID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(c.devices, id) {
		c.devices = append(c.devices, id)
	}
}
