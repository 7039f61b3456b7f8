package router

import (
	"log/slog"

	tg "github.com/m3rciful/rabiesbot/core/telegram"
	"github.com/m3rciful/rabiesbot/core/telegram/callbacks"
	"github.com/m3rciful/rabiesbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound is used when the registry has no fallback of its own.
	NotFound tele.HandlerFunc
}

// CallbackRoute dispatches every callback query by its unique through reg.
// The query is answered before the handler runs so the client stops its spinner.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		_ = c.Respond()

		key, _ := callbacks.ParseCallbackData(cb)
		name := "callback." + normalizeHandlerName(key)
		if h, ok := reg.GetCallback(key); ok && h != nil {
			return handled(c, name, func() error { return h(c) }, slog.String("cb_key", key))
		}

		fallback := reg.CallbackNotFound()
		if fallback == nil {
			fallback = opts.NotFound
		}
		return handled(c, name, func() error {
			if fallback == nil {
				return nil
			}
			return fallback(c)
		}, slog.String("cb_key", key), slog.String("reason", "not_found"))
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
