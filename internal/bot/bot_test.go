package bot

import (
	"errors"
	"strings"
	"sync"
	"testing"

	tg "github.com/m3rciful/rabiesbot/core/telegram"
	"github.com/m3rciful/rabiesbot/internal/content"
	"github.com/m3rciful/rabiesbot/internal/conversation"
	"github.com/m3rciful/rabiesbot/internal/session"

	tele "gopkg.in/telebot.v4"
)

type sent struct {
	text   string
	markup *tele.ReplyMarkup
	mode   tele.ParseMode
}

// chat records everything the bot sends to one user.
type chat struct {
	userID   int64
	sent     []sent
	cleared  int
	keyboard *tele.ReplyMarkup
}

type fakeContext struct {
	tele.Context

	mu     sync.Mutex
	chat   *chat
	update tele.Update
	store  map[string]any
}

func (ch *chat) message(text string) *fakeContext {
	user := &tele.User{ID: ch.userID}
	return &fakeContext{
		chat:   ch,
		update: tele.Update{ID: 1, Message: &tele.Message{Sender: user, Chat: &tele.Chat{ID: ch.userID}, Text: text}},
		store:  map[string]any{},
	}
}

// press builds a callback for the button labelled label in the last keyboard sent.
func (ch *chat) press(t *testing.T, label string) *fakeContext {
	t.Helper()
	if ch.keyboard == nil {
		t.Fatalf("no keyboard sent")
	}
	for _, row := range ch.keyboard.InlineKeyboard {
		for _, btn := range row {
			if btn.Text == label {
				return ch.callback(btn.Unique, btn.Data)
			}
		}
	}
	t.Fatalf("no button %q in last keyboard", label)
	return nil
}

func (ch *chat) callback(unique, data string) *fakeContext {
	user := &tele.User{ID: ch.userID}
	msg := &tele.Message{ID: 10, Chat: &tele.Chat{ID: ch.userID}}
	return &fakeContext{
		chat:   ch,
		update: tele.Update{ID: 2, Callback: &tele.Callback{Sender: user, Unique: unique, Data: data, Message: msg}},
		store:  map[string]any{},
	}
}

func (ch *chat) texts() []string {
	out := make([]string, 0, len(ch.sent))
	for _, s := range ch.sent {
		out = append(out, s.text)
	}
	return out
}

func (ch *chat) reset() { ch.sent, ch.cleared = nil, 0 }

func (f *fakeContext) Update() tele.Update      { return f.update }
func (f *fakeContext) Callback() *tele.Callback { return f.update.Callback }

func (f *fakeContext) Sender() *tele.User {
	if f.update.Callback != nil {
		return f.update.Callback.Sender
	}
	return f.update.Message.Sender
}

func (f *fakeContext) Chat() *tele.Chat {
	if f.update.Callback != nil {
		return f.update.Callback.Message.Chat
	}
	return f.update.Message.Chat
}

func (f *fakeContext) Text() string {
	if f.update.Message != nil {
		return f.update.Message.Text
	}
	return ""
}

func (f *fakeContext) Get(key string) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.store[key]
}

func (f *fakeContext) Set(key string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[key] = v
}

func (f *fakeContext) Send(what any, opts ...any) error {
	s := sent{text: what.(string)}
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			s.markup = so.ReplyMarkup
			s.mode = so.ParseMode
		}
	}
	f.chat.sent = append(f.chat.sent, s)
	if s.markup != nil {
		f.chat.keyboard = s.markup
	}
	return nil
}

func (f *fakeContext) Edit(what any, _ ...any) error {
	rm, ok := what.(*tele.ReplyMarkup)
	if !ok || len(rm.InlineKeyboard) != 0 {
		return errors.New("unexpected edit")
	}
	f.chat.cleared++
	return nil
}

func newBot(t *testing.T) *Bot {
	t.Helper()
	docs, err := content.Load("../../content/content.json")
	if err != nil {
		t.Fatalf("load content: %v", err)
	}
	eng := conversation.NewEngine(docs, session.NewMemoryStore(), conversation.Options{})
	return New(eng, docs, []string{"en", "hi"})
}

func TestConversationOverTelegram(t *testing.T) {
	b := newBot(t)
	ch := &chat{userID: 99}

	if err := b.HandleStart(ch.message("/start")); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(ch.sent) != 1 || ch.sent[0].mode != tele.ModeMarkdown {
		t.Fatalf("welcome = %+v", ch.sent)
	}
	langRow := ch.sent[0].markup.InlineKeyboard
	if len(langRow) != 1 || len(langRow[0]) != 2 {
		t.Fatalf("language keyboard layout = %+v", langRow)
	}
	if !b.InProgress(99) {
		t.Fatal("conversation should be in progress")
	}

	ch.reset()
	if err := b.HandleOption(ch.press(t, "English")); err != nil {
		t.Fatalf("language: %v", err)
	}
	if ch.cleared != 1 {
		t.Fatalf("pressed keyboard not cleared: %d", ch.cleared)
	}
	if got := ch.texts(); len(got) != 2 || got[0] != "*You selected:* English" || !strings.HasPrefix(got[1], "📋") {
		t.Fatalf("texts = %q", got)
	}
	if rows := ch.sent[1].markup.InlineKeyboard; len(rows) != 5 {
		t.Fatalf("faq menu rows = %d", len(rows))
	}

	ch.reset()
	if err := b.HandleOption(ch.press(t, "What first aid should I give after an animal bite?")); err != nil {
		t.Fatalf("faq: %v", err)
	}
	if got := ch.texts(); len(got) != 2 || !strings.HasPrefix(got[1], "*Act immediately:*") {
		t.Fatalf("texts = %q", got)
	}

	ch.reset()
	if err := b.ManagerHandler(ch.message("thanks!")); err != nil {
		t.Fatalf("text: %v", err)
	}
	if got := ch.texts(); len(got) != 1 || !strings.HasPrefix(got[0], "🙏 Sorry") || ch.cleared != 0 {
		t.Fatalf("guidance = %q cleared=%d", got, ch.cleared)
	}

	ch.reset()
	if err := b.HandleOption(ch.press(t, "👋 End chat")); err != nil {
		t.Fatalf("end: %v", err)
	}
	if got := ch.texts(); len(got) != 2 || !strings.HasPrefix(got[0], "*You selected:*") || !strings.HasPrefix(got[1], "✅ Thank you") {
		t.Fatalf("texts = %q", got)
	}
	if b.InProgress(99) {
		t.Fatal("ended conversation still in progress")
	}
}

func TestStaleAndForeignCallbacksGetGuidance(t *testing.T) {
	b := newBot(t)
	ch := &chat{userID: 5}
	_ = b.HandleStart(ch.message("/start"))
	stale := ch.press(t, "हिंदी")
	_ = b.HandleOption(ch.press(t, "English"))

	ch.reset()
	if err := b.HandleOption(stale); err != nil {
		t.Fatalf("stale: %v", err)
	}
	if got := ch.texts(); len(got) != 1 || !strings.HasPrefix(got[0], "🙏 Sorry") || ch.cleared != 0 {
		t.Fatalf("stale press = %q cleared=%d", got, ch.cleared)
	}

	ch.reset()
	if err := b.HandleOption(ch.callback(CallbackOption, "garbage")); err != nil {
		t.Fatalf("malformed: %v", err)
	}
	if err := b.HandleUnknownCallback(ch.callback("legacy", "")); err != nil {
		t.Fatalf("unknown: %v", err)
	}
	if len(ch.sent) != 2 {
		t.Fatalf("sent = %q", ch.texts())
	}
}

func TestWithoutConversationNothingIsSent(t *testing.T) {
	b := newBot(t)
	ch := &chat{userID: 1}
	if b.InProgress(1) {
		t.Fatal("unexpected conversation")
	}
	if err := b.ManagerHandler(ch.message("hello")); err != nil {
		t.Fatalf("text: %v", err)
	}
	if err := b.HandleOption(ch.callback(CallbackOption, "1|lang_en")); err != nil {
		t.Fatalf("option: %v", err)
	}
	if len(ch.sent) != 0 || ch.cleared != 0 {
		t.Fatalf("sent = %q cleared=%d", ch.texts(), ch.cleared)
	}
}

func TestRegisterWiresCommandsAndCallback(t *testing.T) {
	b := newBot(t)
	reg := tg.NewRegistry()
	if err := b.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := reg.GetCallback(CallbackOption); !ok {
		t.Fatal("option callback missing")
	}
	visible := reg.ListCommands(true)
	if len(visible) != 1 || visible[0].Text != CommandStart {
		t.Fatalf("visible commands = %+v", visible)
	}
	for _, name := range []string{CommandContent, CommandStats} {
		if _, cmd, ok := reg.LookupCommand(name); !ok || !cmd.AdminOnly {
			t.Fatalf("%s must be admin only", name)
		}
	}
	if err := b.Register(reg); err == nil {
		t.Fatal("second registration should fail on duplicates")
	}
}

func TestContentReport(t *testing.T) {
	b := newBot(t)
	ch := &chat{userID: 1}
	if err := b.HandleContentReport(ch.message("/content")); err != nil {
		t.Fatalf("report: %v", err)
	}
	if got := ch.texts(); len(got) != 1 || !strings.Contains(got[0], "Content complete") {
		t.Fatalf("report = %q", got)
	}

	docs, err := content.Parse([]byte(`{"en":{"welcome":"w"}}`), content.FormatJSON)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	partial := New(nil, docs, []string{"en"})
	ch.reset()
	_ = partial.HandleContentReport(ch.message("/content"))
	if got := ch.texts(); len(got) != 1 || !strings.Contains(got[0], `en.faq.first\_aid\_a`) {
		t.Fatalf("report = %q", got)
	}
}

func TestMarkupEncodesSequence(t *testing.T) {
	if Markup(nil) != nil {
		t.Fatal("nil menu should give nil markup")
	}
	rm := Markup(&conversation.Menu{Seq: 12, Columns: 1, Options: []conversation.Option{
		{ID: conversation.OptionFAQMenu, Label: "Another"},
		{ID: conversation.OptionEndChat, Label: "End"},
	}})
	if len(rm.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d", len(rm.InlineKeyboard))
	}
	btn := rm.InlineKeyboard[1][0]
	if btn.Unique != CallbackOption || btn.Data != "12|end_chat" {
		t.Fatalf("button = %+v", btn)
	}
}

func TestMarkupDropsOversizedOptions(t *testing.T) {
	rm := Markup(&conversation.Menu{Seq: 3, Columns: 1, Options: []conversation.Option{
		{ID: "faq_" + strings.Repeat("x", 80), Label: "Too long"},
		{ID: conversation.OptionEndChat, Label: "End"},
	}})
	if rm == nil || len(rm.InlineKeyboard) != 1 || rm.InlineKeyboard[0][0].Data != "3|end_chat" {
		t.Fatalf("markup = %+v", rm)
	}
	if Markup(&conversation.Menu{Seq: 3, Options: []conversation.Option{{ID: strings.Repeat("y", 80)}}}) != nil {
		t.Fatal("a menu with no sendable option should give nil markup")
	}
}

func TestStatsReport(t *testing.T) {
	b := newBot(t)
	ch := &chat{userID: 1}
	if err := b.HandleStats(ch.message("/stats")); err != nil {
		t.Fatalf("stats: %v", err)
	}
	if got := ch.texts(); len(got) != 1 || !strings.Contains(got[0], "Button presses:") || ch.sent[0].mode != tele.ModeMarkdown {
		t.Fatalf("stats = %q", got)
	}
}
