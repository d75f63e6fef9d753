package channel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/stellarlinkco/pixbot/internal/bus"
	"github.com/stellarlinkco/pixbot/internal/config"
)

type ChannelManager struct {
	channels map[string]Channel
	telegram *TelegramChannel
	bus      *bus.MessageBus
}

func NewChannelManager(cfg config.TelegramConfig, b *bus.MessageBus) (*ChannelManager, error) {
	return NewChannelManagerWithFactory(cfg, b, defaultBotFactory)
}

func NewChannelManagerWithFactory(cfg config.TelegramConfig, b *bus.MessageBus, factory BotFactory) (*ChannelManager, error) {
	m := &ChannelManager{
		channels: make(map[string]Channel),
		bus:      b,
	}

	ch, err := NewTelegramChannelWithFactory(cfg, b, factory)
	if err != nil {
		return nil, fmt.Errorf("init telegram channel: %w", err)
	}
	m.telegram = ch
	m.register(ch)
	return m, nil
}

func (m *ChannelManager) register(ch Channel) {
	m.channels[ch.Name()] = ch
	logger := log.With().Str("component", "channel-mgr").Logger()
	m.bus.SubscribeOutbound(ch.Name(), func(msg bus.OutboundMessage) {
		if err := ch.Send(msg); err != nil {
			logger.Error().Err(err).Str("channel", ch.Name()).Int64("chat_id", msg.ChatID).Msg("send failed")
		}
	})
}

// Telegram returns the Telegram channel, used for chat checks.
func (m *ChannelManager) Telegram() *TelegramChannel { return m.telegram }

func (m *ChannelManager) StartAll(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(m.channels))

	for name, ch := range m.channels {
		wg.Add(1)
		go func(name string, ch Channel) {
			defer wg.Done()
			log.Info().Str("component", "channel-mgr").Str("channel", name).Msg("starting")
			if err := ch.Start(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}(name, ch)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		return err
	}
	return nil
}

func (m *ChannelManager) StopAll() error {
	for name, ch := range m.channels {
		log.Info().Str("component", "channel-mgr").Str("channel", name).Msg("stopping")
		if err := ch.Stop(); err != nil {
			log.Error().Err(err).Str("component", "channel-mgr").Str("channel", name).Msg("stop failed")
		}
	}
	return nil
}

func (m *ChannelManager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
