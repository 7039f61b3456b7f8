package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/rabiesbot/core/logger"
	"github.com/m3rciful/rabiesbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/rabiesbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers recently logged update ids. LoggerMiddleware runs
// both globally and inside routes, and each update is logged once.
var seenUpdates = struct {
	sync.Mutex
	at     map[int]time.Time
	pruned time.Time
}{at: make(map[int]time.Time)}

const seenTTL = 10 * time.Second

func firstSighting(updateID int, now time.Time) bool {
	seenUpdates.Lock()
	defer seenUpdates.Unlock()
	if now.Sub(seenUpdates.pruned) > seenTTL {
		for id, ts := range seenUpdates.at {
			if now.Sub(ts) > seenTTL {
				delete(seenUpdates.at, id)
			}
		}
		seenUpdates.pruned = now
	}
	if _, ok := seenUpdates.at[updateID]; ok {
		return false
	}
	seenUpdates.at[updateID] = now
	return true
}

// LoggerMiddleware attaches the rid and logging context to the update and
// logs its receipt once at debug level.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		updateID, chatID, userID := tghelpers.IDs(c)
		rid := logger.BuildRID(updateID, chatID, userID)
		ctx := logger.WithRID(logger.Background(), rid)
		ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
		ctx = logger.WithLogger(ctx, logger.TG)
		tghelpers.Attach(c, rid, ctx)

		if logger.ShouldSampleDebug() && firstSighting(updateID, time.Now()) {
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", receiptAttrs(c, chatID, userID)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context, chatID, userID int64) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if chatID != 0 {
		attrs = append(attrs, slog.String("chat_type", string(c.Chat().Type)))
	}
	if user := c.Sender(); userID != 0 && user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}
	if cb := c.Callback(); cb != nil {
		key, payload := callbacks.ParseCallbackData(cb)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 64)),
			slog.String("payload", logger.SanitizeLimit(payload, 128)),
		)
	} else if text := c.Text(); text != "" {
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(text, 256)))
	}
	return attrs
}
