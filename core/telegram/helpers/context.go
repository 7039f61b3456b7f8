package helpers

import (
	"context"

	"github.com/m3rciful/rabiesbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Keys shared through tele.Context storage.
const (
	ridKey = "rid"
	ctxKey = "logger_ctx"
)

// IDs returns the update, chat and user ids of c; zero where absent.
func IDs(c tele.Context) (updateID int, chatID, userID int64) {
	updateID = c.Update().ID
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	return updateID, chatID, userID
}

// Attach stores rid and ctx on c for handlers further down the chain.
func Attach(c tele.Context, rid string, ctx context.Context) {
	c.Set(ridKey, rid)
	c.Set(ctxKey, ctx)
}

// RID returns the request id attached to c.
func RID(c tele.Context) string {
	rid, _ := c.Get(ridKey).(string)
	return rid
}

// BuildContext returns the logging context of the update behind c, creating
// and attaching one with rid and update/chat/user ids on first use.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(ctxKey).(context.Context); ok && ctx != nil {
		return ctx
	}
	updateID, chatID, userID := IDs(c)
	rid := RID(c)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
	}
	ctx := logger.WithRID(context.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.TG)
	Attach(c, rid, ctx)
	return ctx
}

// WithHandler tags the update's context with the handler serving it.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	c.Set(ctxKey, ctx)
	return ctx
}
