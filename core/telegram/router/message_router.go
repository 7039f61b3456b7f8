package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/rabiesbot/core/telegram"
	"github.com/m3rciful/rabiesbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM is a conversation that claims messages from users it is talking to.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls what happens to messages no conversation claims.
type TextOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownMedia tele.HandlerFunc
}

// mediaEndpoints are non-text messages a live conversation answers like free text.
var mediaEndpoints = []string{tele.OnPhoto, tele.OnSticker, tele.OnDocument, tele.OnVoice, tele.OnVideo}

// TextRoutes routes plain text and media. A live conversation claims them
// first; otherwise text that names a command is resolved through the registry.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	claimed := func(c tele.Context) bool {
		return fsm != nil && c.Sender() != nil && fsm.InProgress(c.Sender().ID)
	}

	text := func(c tele.Context) error {
		if claimed(c) {
			return handled(c, "fsm", func() error { return fsm.ManagerHandler(c) })
		}
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				return handled(c, normalizeHandlerName(key), func() error { return cmd.Handler(c) })
			}
			if fb := reg.TextFallback(); fb != nil {
				return handled(c, "fallback", func() error { return fb(c) })
			}
		}
		return unclaimed(c, "unknown_text", opts.UnknownText)
	}

	media := func(c tele.Context) error {
		if claimed(c) {
			return handled(c, "fsm_media", func() error { return fsm.ManagerHandler(c) })
		}
		return unclaimed(c, "unknown_media", opts.UnknownMedia)
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	routes := []tg.Route{{Endpoint: tele.OnText, Handler: wrap(text)}}
	for _, ep := range mediaEndpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: wrap(media)})
	}
	return routes
}

func unclaimed(c tele.Context, name string, h tele.HandlerFunc) error {
	if h != nil {
		return handled(c, name, func() error { return h(c) })
	}
	summarize(c, name, time.Now(), "skip", nil, slog.Bool("claimed", false))
	return nil
}
