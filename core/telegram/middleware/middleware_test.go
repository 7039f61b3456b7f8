package middleware

import (
	"errors"
	"sync"
	"testing"
	"time"

	tghelpers "github.com/m3rciful/rabiesbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

type fakeContext struct {
	tele.Context

	mu     sync.Mutex
	update tele.Update
	store  map[string]any
	sent   []any
}

func newFakeContext(userID int64, callback bool) *fakeContext {
	user := &tele.User{ID: userID}
	chat := &tele.Chat{ID: userID, Type: tele.ChatPrivate}
	upd := tele.Update{ID: 100}
	if callback {
		upd.Callback = &tele.Callback{Sender: user, Unique: "opt", Data: "1|lang_en", Message: &tele.Message{Chat: chat}}
	} else {
		upd.Message = &tele.Message{Sender: user, Chat: chat, Text: "hello"}
	}
	return &fakeContext{update: upd, store: map[string]any{}}
}

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

func (f *fakeContext) Send(what any, _ ...any) error {
	f.sent = append(f.sent, what)
	return nil
}

func TestRateLimitDropsBurstsAndHonorsExcludes(t *testing.T) {
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	for i := 0; i < 3; i++ {
		if err := h(newFakeContext(1, false)); err != nil {
			t.Fatalf("handler: %v", err)
		}
	}
	if calls != 1 || limited != 2 {
		t.Fatalf("messages: calls=%d limited=%d", calls, limited)
	}

	for i := 0; i < 3; i++ {
		_ = h(newFakeContext(1, true))
	}
	if calls != 4 {
		t.Fatalf("callbacks should bypass the limit, calls=%d", calls)
	}

	_ = h(newFakeContext(2, false))
	if calls != 5 {
		t.Fatalf("other users must not be limited, calls=%d", calls)
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	rejected := 0
	mw := AdminOnlyMiddleware(AdminOptions{
		AdminID:  7,
		OnReject: func(tele.Context) error { rejected++; return nil },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	_ = h(newFakeContext(7, false))
	_ = h(newFakeContext(8, false))
	if calls != 1 || rejected != 1 {
		t.Fatalf("calls=%d rejected=%d", calls, rejected)
	}

	closed := AdminOnlyMiddleware(AdminOptions{})(func(tele.Context) error { calls++; return nil })
	_ = closed(newFakeContext(7, false))
	if calls != 1 {
		t.Fatal("without admin id nobody may pass")
	}
}

func TestRecoverMiddlewareReturnsError(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	if err := h(newFakeContext(1, false)); err == nil {
		t.Fatal("expected error from recovered panic")
	}

	want := errors.New("plain")
	h = RecoverMiddleware(func(tele.Context) error { return want })
	if err := h(newFakeContext(1, false)); !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
}

func TestMetricsFoldOutboundIntoStats(t *testing.T) {
	before := Snapshot()
	c := newFakeContext(1, false)
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		if err := tghelpers.SendText(c, "one"); err != nil {
			return err
		}
		return tghelpers.SendMD(c, "two", &tele.ReplyMarkup{})
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	out := tghelpers.OutboundOf(c)
	if out.Messages != 2 || out.Keyboards != 1 || out.Edits != 0 {
		t.Fatalf("outbound = %+v", out)
	}
	after := Snapshot()
	if after.Updates-before.Updates != 1 || after.Messages-before.Messages != 2 {
		t.Fatalf("stats before=%+v after=%+v", before, after)
	}
	if after.Since.IsZero() || after.Since != before.Since {
		t.Fatalf("since = %v", after.Since)
	}
}

func TestLoggerMiddlewareSetsRID(t *testing.T) {
	c := newFakeContext(5, true)
	h := LoggerMiddleware(func(c tele.Context) error { return nil })
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rid := tghelpers.RID(c); rid != "100:5:5" {
		t.Fatalf("rid = %q", rid)
	}
}
