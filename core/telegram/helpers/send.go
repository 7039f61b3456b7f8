package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/rabiesbot/core/logger"
	"github.com/m3rciful/rabiesbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

// laneKey keeps every outbound call of one chat on the same dispatcher lane.
func laneKey(c tele.Context) int64 {
	_, chatID, userID := IDs(c)
	if chatID != 0 {
		return chatID
	}
	return userID
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	err := disp.Enqueue(ctx, laneKey(c), action, endpoint, run)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sender.ErrQueueClosed):
		// Handlers have returned by the time the dispatcher closes, so nothing
		// of this chat is left queued ahead of us.
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
		)
		return run()
	case errors.Is(err, sender.ErrQueueFull):
		// A direct send would overtake the chat's queued calls.
		logger.Warn(ctx, "tg.sender", "queue.full",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
		)
		return err
	default:
		return err
	}
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	countOutbound(c, false, sendOpts != nil && sendOpts.ReplyMarkup != nil)
	return sendAsync(c, "send.text", "sendMessage", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// SendMD sends a message with Markdown parse mode and optional reply markup.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: rm}
	return SendText(c, text, opts)
}

// ClearMarkup strips the inline keyboard from the message the callback came from.
// It is a no-op for updates without a callback message.
func ClearMarkup(c tele.Context) error {
	cb := c.Callback()
	if cb == nil || cb.Message == nil {
		return nil
	}
	countOutbound(c, true, false)
	return sendAsync(c, "edit.markup", "editMessageReplyMarkup", func() error {
		err := c.Edit(&tele.ReplyMarkup{})
		if errors.Is(err, tele.ErrSameMessageContent) {
			return nil
		}
		return err
	})
}
