package bus

import (
	"strconv"
	"time"
)

// InboundMessage is a command, plain text or button press from a chat.
type InboundMessage struct {
	Channel   string
	SenderID  int64
	Username  string
	ChatID    int64
	MessageID int
	Content   string
	Timestamp time.Time

	// Command is set for "/name args" messages, without the slash or bot suffix.
	Command string
	Args    string

	// CallbackID and CallbackData are set for inline button presses.
	CallbackID   string
	CallbackData string
}

func (m *InboundMessage) SessionKey() string {
	return m.Channel + ":" + strconv.FormatInt(m.ChatID, 10)
}

func (m *InboundMessage) IsCallback() bool {
	return m.CallbackID != ""
}

// Button is one inline keyboard button.
type Button struct {
	Text string
	Data string
}

// OutboundMessage is a message to send, an edit of an earlier message, or
// (when CallbackID is set) the answer to a button press.
type OutboundMessage struct {
	Channel string
	ChatID  int64
	Content string
	HTML    bool

	// EditMessageID replaces the text of an existing message instead of
	// sending a new one.
	EditMessageID int
	Keyboard      [][]Button

	CallbackID string
}
