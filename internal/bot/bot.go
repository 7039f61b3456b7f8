// Package bot adapts the conversation engine to Telegram: it registers the
// entry command and the option callback, claims free text from users with a
// live conversation and renders engine replies as Markdown messages.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/rabiesbot/core/buildinfo"
	"github.com/m3rciful/rabiesbot/core/logger"
	tg "github.com/m3rciful/rabiesbot/core/telegram"
	"github.com/m3rciful/rabiesbot/core/telegram/callbacks"
	"github.com/m3rciful/rabiesbot/core/telegram/commands"
	"github.com/m3rciful/rabiesbot/core/telegram/format"
	tghelpers "github.com/m3rciful/rabiesbot/core/telegram/helpers"
	"github.com/m3rciful/rabiesbot/core/telegram/keyboard"
	"github.com/m3rciful/rabiesbot/core/telegram/middleware"
	"github.com/m3rciful/rabiesbot/internal/conversation"

	tele "gopkg.in/telebot.v4"
)

const (
	// CallbackOption is the callback unique shared by every conversation option.
	CallbackOption = "opt"

	CommandStart   = "/start"
	CommandContent = "/content"
	CommandStats   = "/stats"

	payloadSep = "|"
	component  = "bot"
)

// Engine is the conversation surface the bot drives.
type Engine interface {
	Start(ctx context.Context, id int64) (conversation.Reply, error)
	Select(ctx context.Context, id int64, sel conversation.Selection) (conversation.Reply, error)
	Text(ctx context.Context, id int64, text string) (conversation.Reply, error)
	InProgress(ctx context.Context, id int64) bool
}

// ContentChecker reports content keys missing for the given languages and FAQ ids.
type ContentChecker interface {
	Missing(langs, faqIDs []string) []string
}

// Bot handles Telegram updates for the FAQ conversation.
type Bot struct {
	engine    Engine
	content   ContentChecker
	languages []string
}

// New builds a Bot. languages scope the /content report.
func New(engine Engine, content ContentChecker, languages []string) *Bot {
	return &Bot{
		engine:    engine,
		content:   content,
		languages: append([]string(nil), languages...),
	}
}

// Register adds the bot's commands and callbacks to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{CommandStart, commands.Command{Handler: b.HandleStart, Description: "Start the rabies FAQ"}},
		{CommandContent, commands.Command{Handler: b.HandleContentReport, Description: "Report missing content keys", AdminOnly: true, Hidden: true}},
		{CommandStats, commands.Command{Handler: b.HandleStats, Description: "Show update counters", AdminOnly: true, Hidden: true}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}
	reg.SetCallbackNotFound(b.HandleUnknownCallback)
	if err := reg.RegisterCallback(CallbackOption, b.HandleOption); err != nil {
		return fmt.Errorf("bot: %w", err)
	}
	return nil
}

// HandleStart (re)starts the conversation of the sender.
func (b *Bot) HandleStart(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	reply, err := b.engine.Start(ctx, user.ID)
	if err != nil {
		return err
	}
	return b.render(ctx, c, reply)
}

// HandleOption resolves a pressed option. Malformed payloads are treated as stale presses.
func (b *Bot) HandleOption(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	seq, option, err := callbacks.PayloadInt64String(c, payloadSep)
	if err != nil {
		logger.Debug(ctx, component, "option.malformed",
			slog.String("payload", logger.SanitizeLimit(callbacks.CallbackPayload(c), 64)),
		)
		seq, option = -1, ""
	}
	reply, err := b.engine.Select(ctx, user.ID, conversation.Selection{Menu: seq, Option: option})
	if err != nil {
		return err
	}
	return b.render(ctx, c, reply)
}

// HandleUnknownCallback answers presses on buttons this bot no longer knows.
func (b *Bot) HandleUnknownCallback(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	reply, err := b.engine.Select(ctx, user.ID, conversation.Selection{Menu: -1})
	if err != nil {
		return err
	}
	return b.render(ctx, c, reply)
}

// InProgress reports whether userID has a conversation that claims free text.
func (b *Bot) InProgress(userID int64) bool {
	return b.engine.InProgress(logger.Background(), userID)
}

// ManagerHandler forwards free text of a live conversation to the engine.
func (b *Bot) ManagerHandler(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	reply, err := b.engine.Text(ctx, user.ID, c.Text())
	if err != nil {
		return err
	}
	return b.render(ctx, c, reply)
}

// HandleContentReport lists content keys missing for the configured languages.
func (b *Bot) HandleContentReport(c tele.Context) error {
	missing := b.content.Missing(b.languages, conversation.FAQIDs)
	if len(missing) == 0 {
		return tghelpers.SendMD(c, fmt.Sprintf("✅ *Content complete* for %s.", strings.Join(b.languages, ", ")))
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "⚠️ *%d content keys missing*\n", len(missing))
	for _, key := range missing {
		sb.WriteString("• ")
		sb.WriteString(format.MustEscapeV1(key))
		sb.WriteByte('\n')
	}
	return tghelpers.SendMD(c, strings.TrimRight(sb.String(), "\n"))
}

// HandleStats reports update and delivery counters since the process started.
func (b *Bot) HandleStats(c tele.Context) error {
	s := middleware.Snapshot()
	uptime := time.Since(s.Since).Truncate(time.Second)
	return tghelpers.SendMD(c, fmt.Sprintf(
		"📊 *Since %s* (up %s)\nBuild: %s\nUpdates: %d\nButton presses: %d\nMessages sent: %d\nKeyboards cleared: %d\nFailed updates: %d",
		s.Since.UTC().Format("2006-01-02 15:04 UTC"), uptime, format.MustEscapeV1(buildinfo.String()),
		s.Updates, s.Callbacks, s.Messages, s.Edits, s.Failures,
	))
}

// render applies a reply: strip the pressed keyboard, then send messages in order.
func (b *Bot) render(ctx context.Context, c tele.Context, reply conversation.Reply) error {
	logger.Debug(ctx, component, "reply.render",
		slog.String("outcome", string(reply.Outcome)),
		slog.String("state", string(reply.State)),
		slog.Bool("clear_options", reply.ClearOptions),
		slog.Int("messages", len(reply.Messages)),
	)
	if reply.ClearOptions {
		if err := tghelpers.ClearMarkup(c); err != nil {
			return err
		}
	}
	for _, msg := range reply.Messages {
		if err := tghelpers.SendMD(c, msg.Text, Markup(msg.Menu)); err != nil {
			return err
		}
	}
	return nil
}

// Markup renders menu as an inline keyboard whose buttons carry "<seq>|<option>".
// Options whose callback data exceeds the Bot API limit are left out, since
// Telegram would refuse the whole message.
func Markup(menu *conversation.Menu) *tele.ReplyMarkup {
	if menu == nil || len(menu.Options) == 0 {
		return nil
	}
	seq := strconv.FormatInt(menu.Seq, 10)
	btns := make([]keyboard.Button, 0, len(menu.Options))
	for _, o := range menu.Options {
		btn := keyboard.Button{
			Text:   o.Label,
			Unique: CallbackOption,
			Data:   callbacks.JoinPayload(payloadSep, seq, o.ID),
		}
		if !btn.Fits() {
			logger.Warn(logger.Background(), component, "option.too_long",
				slog.String("option", logger.SanitizeLimit(o.ID, 64)),
				slog.Int("data_len", len(btn.Data)),
			)
			continue
		}
		btns = append(btns, btn)
	}
	if len(btns) == 0 {
		return nil
	}
	return keyboard.Grid(btns, menu.Columns)
}
