package bus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

const DefaultBufSize = 100

// MessageBus decouples channels from the gateway. Channels push to Inbound;
// the gateway pushes to Outbound and DispatchOutbound fans messages out to
// the subscriber registered for msg.Channel.
type MessageBus struct {
	Inbound  chan InboundMessage
	Outbound chan OutboundMessage

	mu          sync.RWMutex
	subscribers map[string]func(OutboundMessage)
}

func NewMessageBus(bufSize int) *MessageBus {
	if bufSize <= 0 {
		bufSize = DefaultBufSize
	}
	return &MessageBus{
		Inbound:     make(chan InboundMessage, bufSize),
		Outbound:    make(chan OutboundMessage, bufSize),
		subscribers: make(map[string]func(OutboundMessage)),
	}
}

// SubscribeOutbound registers the sender for one channel, replacing any
// previous one.
func (b *MessageBus) SubscribeOutbound(channel string, fn func(OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[channel] = fn
}

// DispatchOutbound delivers outbound messages in order until ctx is done.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-b.Outbound:
			b.mu.RLock()
			fn, ok := b.subscribers[msg.Channel]
			b.mu.RUnlock()
			if !ok {
				log.Warn().Str("component", "bus").Str("channel", msg.Channel).Msg("no subscriber for outbound message")
				continue
			}
			fn(msg)
		case <-ctx.Done():
			return
		}
	}
}
