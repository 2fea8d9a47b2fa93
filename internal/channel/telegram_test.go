package channel

import (
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/stellarlinkco/nudge/internal/bus"
	"github.com/stellarlinkco/nudge/internal/config"
)

type mockBot struct {
	sent    []tgbotapi.MessageConfig
	failNum int
	stopped bool
}

func (m *mockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, nil
	}
	if m.failNum > 0 {
		m.failNum--
		return tgbotapi.Message{}, &tgbotapi.Error{Message: "parse error"}
	}
	m.sent = append(m.sent, msg)
	return tgbotapi.Message{MessageID: len(m.sent)}, nil
}

func (m *mockBot) GetSelf() tgbotapi.User {
	return tgbotapi.User{UserName: "nudge_bot"}
}

func (m *mockBot) StopReceivingUpdates() {
	m.stopped = true
}

func newTestNotifier(t *testing.T) (*TelegramNotifier, *mockBot) {
	t.Helper()
	n, err := NewTelegramNotifier(config.TelegramConfig{Token: "test-token"})
	if err != nil {
		t.Fatalf("NewTelegramNotifier: %v", err)
	}
	bot := &mockBot{}
	n.SetBot(bot)
	return n, bot
}

func TestNewTelegramNotifier_NoToken(t *testing.T) {
	if _, err := NewTelegramNotifier(config.TelegramConfig{}); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestTelegramNotifier_Send(t *testing.T) {
	n, bot := newTestNotifier(t)

	d := bus.Delivery{
		ChatID:  "12345",
		Title:   "Exactly-once in Kafka",
		Summary: "Transactional offsets explained.",
		Source:  "engineering-blog",
		Reason:  "Matches 2 of your interests",
	}
	if err := n.Send(d); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(bot.sent))
	}

	msg := bot.sent[0]
	if msg.ChatID != 12345 {
		t.Errorf("chat id = %d, want 12345", msg.ChatID)
	}
	if msg.ParseMode != tgbotapi.ModeHTML {
		t.Errorf("parse mode = %q, want HTML", msg.ParseMode)
	}
	if !strings.Contains(msg.Text, "<b>Exactly-once in Kafka</b>") {
		t.Errorf("title not bolded: %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "Transactional offsets explained.") {
		t.Errorf("summary missing: %q", msg.Text)
	}
}

func TestTelegramNotifier_Send_InvalidChatID(t *testing.T) {
	n, _ := newTestNotifier(t)
	if err := n.Send(bus.Delivery{ChatID: "not-a-number", Title: "t"}); err == nil {
		t.Fatal("expected error for invalid chat id")
	}
}

func TestTelegramNotifier_Send_NilBot(t *testing.T) {
	n, err := NewTelegramNotifier(config.TelegramConfig{Token: "test-token"})
	if err != nil {
		t.Fatalf("NewTelegramNotifier: %v", err)
	}
	if err := n.Send(bus.Delivery{ChatID: "1", Title: "t"}); err == nil {
		t.Fatal("expected error when bot not initialized")
	}
}

func TestTelegramNotifier_Send_RetriesPlainText(t *testing.T) {
	n, bot := newTestNotifier(t)
	bot.failNum = 1

	if err := n.Send(bus.Delivery{ChatID: "1", Title: "t & co"}); err != nil {
		t.Fatalf("Send with retry: %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("sent %d messages, want 1 plain-text retry", len(bot.sent))
	}
	if bot.sent[0].ParseMode != "" {
		t.Errorf("retry parse mode = %q, want plain", bot.sent[0].ParseMode)
	}
}

func TestTelegramNotifier_Send_ChunksLongMessages(t *testing.T) {
	n, bot := newTestNotifier(t)

	long := strings.Repeat("line of summary text\n", 400)
	if err := n.Send(bus.Delivery{ChatID: "1", Title: "t", Summary: long}); err != nil {
		t.Fatalf("Send long: %v", err)
	}
	if len(bot.sent) < 2 {
		t.Fatalf("sent %d messages, want chunked delivery", len(bot.sent))
	}
	for i, m := range bot.sent {
		if len(m.Text) > 4000 {
			t.Errorf("chunk %d exceeds limit: %d chars", i, len(m.Text))
		}
	}
}

func TestTelegramNotifier_Stop(t *testing.T) {
	n, bot := newTestNotifier(t)
	if err := n.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !bot.stopped {
		t.Error("bot polling not stopped")
	}
}

func TestToTelegramHTML(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"**bold**", "<b>bold</b>"},
		{"`code`", "<code>code</code>"},
		{"a < b & c", "a &lt; b &amp; c"},
		{"*italic*", "<i>italic</i>"},
	}
	for _, tc := range cases {
		if got := toTelegramHTML(tc.in); got != tc.want {
			t.Errorf("toTelegramHTML(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestToTelegramHTML_CodeBlocks(t *testing.T) {
	in := "```go\nfmt.Println(1)\n```"
	got := toTelegramHTML(in)
	if !strings.Contains(got, "<pre>fmt.Println(1)\n</pre>") {
		t.Errorf("code block conversion = %q", got)
	}
}
