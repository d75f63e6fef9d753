package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stellarlinkco/pixbot/internal/bus"
	"github.com/stellarlinkco/pixbot/internal/config"
)

const TelegramChannelName = "telegram"

// Telegram rejects messages above 4096 characters.
const maxMessageLen = 4000

// TelegramBot interface for mocking telegram bot API
type TelegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetSelf() tgbotapi.User
}

// tgBotWrapper wraps tgbotapi.BotAPI to implement TelegramBot interface
type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *tgBotWrapper) StopReceivingUpdates() {
	w.bot.StopReceivingUpdates()
}

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *tgBotWrapper) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return w.bot.Request(c)
}

func (w *tgBotWrapper) GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	return w.bot.GetChat(config)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking)
type BotFactory func(token, apiEndpoint string, client *http.Client) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

type TelegramChannel struct {
	BaseChannel
	token      string
	bot        TelegramBot
	proxy      string
	cancel     context.CancelFunc
	botFactory BotFactory
	logger     zerolog.Logger
}

func NewTelegramChannel(cfg config.TelegramConfig, b *bus.MessageBus) (*TelegramChannel, error) {
	return NewTelegramChannelWithFactory(cfg, b, defaultBotFactory)
}

// NewTelegramChannelWithFactory creates a TelegramChannel with custom bot factory (for testing)
func NewTelegramChannelWithFactory(cfg config.TelegramConfig, b *bus.MessageBus, factory BotFactory) (*TelegramChannel, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}

	return &TelegramChannel{
		BaseChannel: NewBaseChannel(TelegramChannelName, b),
		token:       cfg.Token,
		proxy:       cfg.Proxy,
		botFactory:  factory,
		logger:      log.With().Str("component", "telegram").Logger(),
	}, nil
}

// Connect creates the bot client without starting to poll. It is a no-op
// once a bot is set.
func (t *TelegramChannel) Connect() error {
	if t.bot != nil {
		return nil
	}
	client := &http.Client{Timeout: 60 * time.Second}
	if t.proxy != "" {
		proxyURL, err := url.Parse(t.proxy)
		if err != nil {
			return fmt.Errorf("parse proxy url: %w", err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	bot, err := t.botFactory(t.token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = bot
	t.logger.Info().Str("username", bot.GetSelf().UserName).Msg("authorized")
	return nil
}

func (t *TelegramChannel) Start(ctx context.Context) error {
	if err := t.Connect(); err != nil {
		return err
	}

	ctx, t.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				switch {
				case update.CallbackQuery != nil:
					t.handleCallback(ctx, update.CallbackQuery)
				case update.Message != nil:
					t.handleMessage(ctx, update.Message)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	t.logger.Info().Msg("polling started")
	return nil
}

func (t *TelegramChannel) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return
	}

	in := bus.InboundMessage{
		Channel:   TelegramChannelName,
		SenderID:  msg.From.ID,
		Username:  msg.From.UserName,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Content:   msg.Text,
		Timestamp: time.Unix(int64(msg.Date), 0),
	}
	if msg.IsCommand() {
		in.Command = msg.Command()
		in.Args = strings.TrimSpace(msg.CommandArguments())
	}
	t.publish(ctx, in)
}

func (t *TelegramChannel) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil {
		return
	}
	in := bus.InboundMessage{
		Channel:      TelegramChannelName,
		SenderID:     cb.From.ID,
		Username:     cb.From.UserName,
		Timestamp:    time.Now(),
		CallbackID:   cb.ID,
		CallbackData: cb.Data,
	}
	// Inline-mode results carry no message; they can still be answered.
	if cb.Message != nil && cb.Message.Chat != nil {
		in.ChatID = cb.Message.Chat.ID
		in.MessageID = cb.Message.MessageID
	}
	t.publish(ctx, in)
}

func (t *TelegramChannel) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	t.logger.Info().Msg("stopped")
	return nil
}

// SetBot sets the bot (for testing)
func (t *TelegramChannel) SetBot(bot TelegramBot) {
	t.bot = bot
}

// CheckChat verifies the bot can see chatID and returns its display name.
func (t *TelegramChannel) CheckChat(chatID int64) (string, error) {
	if err := t.Connect(); err != nil {
		return "", err
	}
	chat, err := t.bot.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}})
	if err != nil {
		return "", fmt.Errorf("get chat %d: %w", chatID, err)
	}
	if chat.Title != "" {
		return chat.Title, nil
	}
	return chat.UserName, nil
}

func (t *TelegramChannel) Send(msg bus.OutboundMessage) error {
	if t.bot == nil {
		return errors.New("telegram bot not initialized")
	}

	switch {
	case msg.CallbackID != "":
		if _, err := t.bot.Request(tgbotapi.NewCallback(msg.CallbackID, msg.Content)); err != nil {
			return fmt.Errorf("answer callback: %w", err)
		}
		return nil
	case msg.EditMessageID != 0:
		return t.edit(msg)
	}

	chunks := splitMessage(msg.Content, maxMessageLen)
	for i, chunk := range chunks {
		tgMsg := tgbotapi.NewMessage(msg.ChatID, chunk)
		if msg.HTML {
			tgMsg.ParseMode = tgbotapi.ModeHTML
		}
		if i == len(chunks)-1 {
			if markup := inlineKeyboard(msg.Keyboard); markup != nil {
				tgMsg.ReplyMarkup = *markup
			}
		}
		if _, err := t.bot.Send(tgMsg); err != nil {
			if tgMsg.ParseMode == "" {
				return fmt.Errorf("send telegram message: %w", err)
			}
			t.logger.Warn().Err(err).Int64("chat_id", msg.ChatID).Msg("html send failed, retrying as plain text")
			tgMsg.ParseMode = ""
			if _, err2 := t.bot.Send(tgMsg); err2 != nil {
				return fmt.Errorf("send telegram message: %w", err2)
			}
		}
	}
	return nil
}

func (t *TelegramChannel) edit(msg bus.OutboundMessage) error {
	edit := tgbotapi.NewEditMessageText(msg.ChatID, msg.EditMessageID, msg.Content)
	if msg.HTML {
		edit.ParseMode = tgbotapi.ModeHTML
	}
	edit.ReplyMarkup = inlineKeyboard(msg.Keyboard)
	if _, err := t.bot.Send(edit); err != nil {
		// Pressing the button of the page already shown.
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return fmt.Errorf("edit telegram message %d: %w", msg.EditMessageID, err)
	}
	return nil
}

func inlineKeyboard(rows [][]bus.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	tgRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		tgRows = append(tgRows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(tgRows...)
	return &markup
}

// splitMessage cuts s into pieces of at most max bytes, preferring the last
// newline inside each piece and never splitting a rune.
func splitMessage(s string, max int) []string {
	if len(s) <= max {
		return []string{s}
	}
	var chunks []string
	for len(s) > max {
		cut := strings.LastIndex(s[:max], "\n")
		if cut <= 0 {
			cut = max
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
		}
		chunks = append(chunks, s[:cut])
		s = strings.TrimPrefix(s[cut:], "\n")
	}
	if s != "" {
		chunks = append(chunks, s)
	}
	return chunks
}
