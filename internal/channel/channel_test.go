package channel

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarlinkco/pixbot/internal/bus"
	"github.com/stellarlinkco/pixbot/internal/config"
)

type mockTelegramBot struct {
	mu          sync.Mutex
	updatesChan chan tgbotapi.Update
	stopped     bool
	sent        []tgbotapi.Chattable
	requests    []tgbotapi.Chattable
	// sendErr decides the error for the n-th Send call (0 based).
	sendErr func(n int, c tgbotapi.Chattable) error
	chat    tgbotapi.Chat
	chatErr error
	self    tgbotapi.User
}

func newMockBot() *mockTelegramBot {
	return &mockTelegramBot{
		updatesChan: make(chan tgbotapi.Update, 10),
		self:        tgbotapi.User{UserName: "pixbot"},
	}
}

func (m *mockTelegramBot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return m.updatesChan
}

func (m *mockTelegramBot) StopReceivingUpdates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *mockTelegramBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.sent)
	m.sent = append(m.sent, c)
	if m.sendErr != nil {
		if err := m.sendErr(n, c); err != nil {
			return tgbotapi.Message{}, err
		}
	}
	return tgbotapi.Message{MessageID: n + 1}, nil
}

func (m *mockTelegramBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockTelegramBot) GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	return m.chat, m.chatErr
}

func (m *mockTelegramBot) GetSelf() tgbotapi.User { return m.self }

func (m *mockTelegramBot) sentMessages() []tgbotapi.Chattable {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tgbotapi.Chattable(nil), m.sent...)
}

func newTestChannel(t *testing.T, bot *mockTelegramBot) (*TelegramChannel, *bus.MessageBus) {
	t.Helper()
	b := bus.NewMessageBus(10)
	ch, err := NewTelegramChannelWithFactory(config.TelegramConfig{Token: "fake-token"}, b,
		func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
			return bot, nil
		})
	require.NoError(t, err)
	return ch, b
}

func TestNewTelegramChannel_NoToken(t *testing.T) {
	_, err := NewTelegramChannel(config.TelegramConfig{}, bus.NewMessageBus(10))
	assert.Error(t, err)
}

func TestNewTelegramChannel_Valid(t *testing.T) {
	ch, err := NewTelegramChannel(config.TelegramConfig{Token: "fake-token"}, bus.NewMessageBus(10))
	require.NoError(t, err)
	assert.Equal(t, TelegramChannelName, ch.Name())
}

func TestTelegramChannel_Connect(t *testing.T) {
	var gotToken string
	var gotClient *http.Client
	ch, err := NewTelegramChannelWithFactory(config.TelegramConfig{Token: "tok", Proxy: "http://proxy:3128"}, bus.NewMessageBus(1),
		func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
			gotToken, gotClient = token, client
			return newMockBot(), nil
		})
	require.NoError(t, err)

	require.NoError(t, ch.Connect())
	assert.Equal(t, "tok", gotToken)
	tr, ok := gotClient.Transport.(*http.Transport)
	require.True(t, ok)
	assert.NotNil(t, tr.Proxy)
}

func TestTelegramChannel_ConnectErrors(t *testing.T) {
	ch, err := NewTelegramChannelWithFactory(config.TelegramConfig{Token: "tok"}, bus.NewMessageBus(1),
		func(string, string, *http.Client) (TelegramBot, error) { return nil, errors.New("unauthorized") })
	require.NoError(t, err)
	assert.ErrorContains(t, ch.Connect(), "unauthorized")

	ch, err = NewTelegramChannelWithFactory(config.TelegramConfig{Token: "tok", Proxy: "://bad"}, bus.NewMessageBus(1), nil)
	require.NoError(t, err)
	assert.ErrorContains(t, ch.Connect(), "proxy")
}

func TestTelegramChannel_StartPublishesCommands(t *testing.T) {
	bot := newMockBot()
	ch, b := newTestChannel(t, bot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ch.Start(ctx))

	bot.updatesChan <- tgbotapi.Update{Message: nil}
	bot.updatesChan <- tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: 42, UserName: "alice"},
		Chat:      &tgbotapi.Chat{ID: -100},
		Date:      1_700_000_000,
		Text:      "/admin_interval@pixbot 30",
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 22}},
	}}

	select {
	case in := <-b.Inbound:
		assert.Equal(t, TelegramChannelName, in.Channel)
		assert.Equal(t, int64(42), in.SenderID)
		assert.Equal(t, "alice", in.Username)
		assert.Equal(t, int64(-100), in.ChatID)
		assert.Equal(t, 7, in.MessageID)
		assert.Equal(t, "admin_interval", in.Command)
		assert.Equal(t, "30", in.Args)
		assert.False(t, in.IsCallback())
	case <-time.After(time.Second):
		t.Fatal("no inbound message")
	}

	require.NoError(t, ch.Stop())
	assert.True(t, bot.stopped)
}

func TestTelegramChannel_StartPublishesCallbacks(t *testing.T) {
	bot := newMockBot()
	ch, b := newTestChannel(t, bot)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ch.Start(ctx))

	bot.updatesChan <- tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 5},
		Message: &tgbotapi.Message{MessageID: 9, Chat: &tgbotapi.Chat{ID: 77}},
		Data:    "page_2",
	}}

	select {
	case in := <-b.Inbound:
		assert.True(t, in.IsCallback())
		assert.Equal(t, "cb1", in.CallbackID)
		assert.Equal(t, "page_2", in.CallbackData)
		assert.Equal(t, int64(77), in.ChatID)
		assert.Equal(t, 9, in.MessageID)
		assert.Empty(t, in.Command)
	case <-time.After(time.Second):
		t.Fatal("no inbound callback")
	}
}

func TestTelegramChannel_HandleMessage_SkipsEmpty(t *testing.T) {
	ch, b := newTestChannel(t, newMockBot())
	ctx := context.Background()

	ch.handleMessage(ctx, &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 1}})
	ch.handleMessage(ctx, &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "hi"})

	assert.Empty(t, b.Inbound)
}

func TestTelegramChannel_Send_NilBot(t *testing.T) {
	ch, _ := newTestChannel(t, newMockBot())
	assert.Error(t, ch.Send(bus.OutboundMessage{ChatID: 1, Content: "x"}))
}

func TestTelegramChannel_Send_HTMLWithKeyboard(t *testing.T) {
	bot := newMockBot()
	ch, _ := newTestChannel(t, bot)
	ch.SetBot(bot)

	err := ch.Send(bus.OutboundMessage{
		ChatID:   10,
		Content:  "<b>report</b>",
		HTML:     true,
		Keyboard: [][]bus.Button{{{Text: "1/2", Data: "noop"}, {Text: "Next ▶️", Data: "page_2"}}},
	})
	require.NoError(t, err)

	sent := bot.sentMessages()
	require.Len(t, sent, 1)
	msg, ok := sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(10), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "page_2", *markup.InlineKeyboard[0][1].CallbackData)
}

func TestTelegramChannel_Send_PlainHasNoParseMode(t *testing.T) {
	bot := newMockBot()
	ch, _ := newTestChannel(t, bot)
	ch.SetBot(bot)

	require.NoError(t, ch.Send(bus.OutboundMessage{ChatID: 1, Content: "❌ Scheduled report failed"}))
	msg := bot.sentMessages()[0].(tgbotapi.MessageConfig)
	assert.Empty(t, msg.ParseMode)
	assert.Nil(t, msg.ReplyMarkup)
}

func TestTelegramChannel_Send_LongMessage(t *testing.T) {
	bot := newMockBot()
	ch, _ := newTestChannel(t, bot)
	ch.SetBot(bot)

	line := strings.Repeat("a", 99) + "\n"
	err := ch.Send(bus.OutboundMessage{
		ChatID:   1,
		Content:  strings.Repeat(line, 50),
		Keyboard: [][]bus.Button{{{Text: "1/2", Data: "noop"}}},
	})
	require.NoError(t, err)

	sent := bot.sentMessages()
	require.Len(t, sent, 2)
	first := sent[0].(tgbotapi.MessageConfig)
	last := sent[1].(tgbotapi.MessageConfig)
	assert.LessOrEqual(t, len(first.Text), maxMessageLen)
	assert.Nil(t, first.ReplyMarkup)
	assert.NotNil(t, last.ReplyMarkup)
	assert.Equal(t, 5000, len(first.Text)+len(last.Text)+1)
}

func TestTelegramChannel_Send_HTMLErrorRetriesPlain(t *testing.T) {
	bot := newMockBot()
	bot.sendErr = func(n int, c tgbotapi.Chattable) error {
		if c.(tgbotapi.MessageConfig).ParseMode != "" {
			return errors.New("can't parse entities")
		}
		return nil
	}
	ch, _ := newTestChannel(t, bot)
	ch.SetBot(bot)

	require.NoError(t, ch.Send(bus.OutboundMessage{ChatID: 1, Content: "<b>broken", HTML: true}))
	sent := bot.sentMessages()
	require.Len(t, sent, 2)
	assert.Empty(t, sent[1].(tgbotapi.MessageConfig).ParseMode)
	assert.Equal(t, "<b>broken", sent[1].(tgbotapi.MessageConfig).Text)
}

func TestTelegramChannel_Send_BothFail(t *testing.T) {
	bot := newMockBot()
	bot.sendErr = func(int, tgbotapi.Chattable) error { return errors.New("chat not found") }
	ch, _ := newTestChannel(t, bot)
	ch.SetBot(bot)

	err := ch.Send(bus.OutboundMessage{ChatID: 1, Content: "x", HTML: true})
	assert.ErrorContains(t, err, "chat not found")
	assert.Len(t, bot.sentMessages(), 2)
}

func TestTelegramChannel_Send_Edit(t *testing.T) {
	bot := newMockBot()
	ch, _ := newTestChannel(t, bot)
	ch.SetBot(bot)

	err := ch.Send(bus.OutboundMessage{
		ChatID:        3,
		EditMessageID: 99,
		Content:       "page 2",
		HTML:          true,
		Keyboard:      [][]bus.Button{{{Text: "◀️ Prev", Data: "page_1"}}},
	})
	require.NoError(t, err)

	edit, ok := bot.sentMessages()[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, int64(3), edit.ChatID)
	assert.Equal(t, 99, edit.MessageID)
	assert.Equal(t, "page 2", edit.Text)
	assert.Equal(t, tgbotapi.ModeHTML, edit.ParseMode)
	require.NotNil(t, edit.ReplyMarkup)
	assert.Equal(t, "page_1", *edit.ReplyMarkup.InlineKeyboard[0][0].CallbackData)
}

func TestTelegramChannel_Send_EditNotModified(t *testing.T) {
	bot := newMockBot()
	bot.sendErr = func(int, tgbotapi.Chattable) error {
		return errors.New("Bad Request: message is not modified")
	}
	ch, _ := newTestChannel(t, bot)
	ch.SetBot(bot)

	assert.NoError(t, ch.Send(bus.OutboundMessage{ChatID: 3, EditMessageID: 1, Content: "same"}))
}

func TestTelegramChannel_Send_CallbackAnswer(t *testing.T) {
	bot := newMockBot()
	ch, _ := newTestChannel(t, bot)
	ch.SetBot(bot)

	require.NoError(t, ch.Send(bus.OutboundMessage{CallbackID: "cb7", Content: "Page 2 of 3"}))
	assert.Empty(t, bot.sentMessages())
	require.Len(t, bot.requests, 1)
	answer := bot.requests[0].(tgbotapi.CallbackConfig)
	assert.Equal(t, "cb7", answer.CallbackQueryID)
	assert.Equal(t, "Page 2 of 3", answer.Text)
}

func TestTelegramChannel_CheckChat(t *testing.T) {
	bot := newMockBot()
	bot.chat = tgbotapi.Chat{ID: -100, Title: "Pixotchi"}
	ch, _ := newTestChannel(t, bot)

	title, err := ch.CheckChat(-100)
	require.NoError(t, err)
	assert.Equal(t, "Pixotchi", title)

	bot.chat = tgbotapi.Chat{ID: 5, UserName: "alice"}
	title, err = ch.CheckChat(5)
	require.NoError(t, err)
	assert.Equal(t, "alice", title)

	bot.chatErr = errors.New("chat not found")
	_, err = ch.CheckChat(-1)
	assert.ErrorContains(t, err, "chat not found")
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))
	assert.Equal(t, []string{"abc", "def"}, splitMessage("abc\ndef", 5))

	runes := strings.Repeat("é", 6) // 12 bytes
	chunks := splitMessage(runes, 5)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 5)
		assert.True(t, utf8.ValidString(c), c)
	}
	assert.Equal(t, runes, strings.Join(chunks, ""))
}

type mockChannel struct {
	name     string
	startErr error
	started  bool
	stopped  bool
	sent     []bus.OutboundMessage
}

func (m *mockChannel) Name() string { return m.name }

func (m *mockChannel) Start(ctx context.Context) error {
	m.started = true
	return m.startErr
}

func (m *mockChannel) Stop() error {
	m.stopped = true
	return nil
}

func (m *mockChannel) Send(msg bus.OutboundMessage) error {
	m.sent = append(m.sent, msg)
	return nil
}

func TestChannelManager_RoutesOutbound(t *testing.T) {
	bot := newMockBot()
	b := bus.NewMessageBus(10)
	m, err := NewChannelManagerWithFactory(config.TelegramConfig{Token: "tok"}, b,
		func(string, string, *http.Client) (TelegramBot, error) { return bot, nil })
	require.NoError(t, err)
	assert.Equal(t, []string{TelegramChannelName}, m.EnabledChannels())
	require.NotNil(t, m.Telegram())

	mock := &mockChannel{name: "mock"}
	m.register(mock)
	assert.Equal(t, []string{"mock", TelegramChannelName}, m.EnabledChannels())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, m.StartAll(ctx))
	assert.True(t, mock.started)

	go b.DispatchOutbound(ctx)
	b.Outbound <- bus.OutboundMessage{Channel: TelegramChannelName, ChatID: 1, Content: "hello"}
	assert.Eventually(t, func() bool { return len(bot.sentMessages()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.StopAll())
	assert.True(t, mock.stopped)
}

func TestChannelManager_StartAllError(t *testing.T) {
	b := bus.NewMessageBus(10)
	m, err := NewChannelManagerWithFactory(config.TelegramConfig{Token: "tok"}, b,
		func(string, string, *http.Client) (TelegramBot, error) { return nil, errors.New("boom") })
	require.NoError(t, err)

	assert.ErrorContains(t, m.StartAll(context.Background()), "boom")
}
