package channel

import (
	"context"

	"github.com/stellarlinkco/pixbot/internal/bus"
)

// Channel is a chat transport. Inbound traffic is published to the bus;
// Send delivers one outbound message.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(msg bus.OutboundMessage) error
}

type BaseChannel struct {
	name string
	bus  *bus.MessageBus
}

func NewBaseChannel(name string, b *bus.MessageBus) BaseChannel {
	return BaseChannel{name: name, bus: b}
}

func (c *BaseChannel) Name() string { return c.name }

// publish hands msg to the gateway, giving up when ctx is done.
func (c *BaseChannel) publish(ctx context.Context, msg bus.InboundMessage) {
	select {
	case c.bus.Inbound <- msg:
	case <-ctx.Done():
	}
}
