// Package conversation implements the FAQ menu state machine.
//
// The engine is transport-agnostic: it consumes entry, selection and text
// events for a session id and returns a Reply describing what to render.
// Events of one session are serialized; different sessions run in parallel.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/rabiesbot/core/logger"
)

// FAQIDs is the fixed, ordered set of FAQ topics.
var FAQIDs = []string{
	"what_is_rabies",
	"first_aid",
	"prevention",
	"myths_facts",
	"emergency_assistance",
}

const (
	OptionFAQMenu = "faq_menu"
	OptionEndChat = "end_chat"

	langOptionPrefix = "lang_"
	faqOptionPrefix  = "faq_"

	// NoAnswerFallback is shown when neither the answer nor a "no_answer" string exists.
	NoAnswerFallback = "Sorry, I don't have an answer for that."

	defaultLanguage = "en"
	component       = "conversation"
)

// Content is the read side of the content store used by the engine.
type Content interface {
	Text(key, lang string) string
	LookupText(key, lang string) (string, bool)
	ButtonText(key, lang string) string
	Question(id, lang string) string
	Answer(id, lang string) (string, bool)
}

// Outcome classifies how an event was handled.
type Outcome string

const (
	OutcomeStarted  Outcome = "started"
	OutcomeSelected Outcome = "selected"
	OutcomeGuidance Outcome = "guidance"
	OutcomeIgnored  Outcome = "ignored"
)

// Message is one outbound message with optional options.
type Message struct {
	Text string
	Menu *Menu
}

// Reply is the rendering plan for one inbound event. ClearOptions asks the
// transport to strip the options from the message that was pressed; it is
// applied before Messages are sent in order.
type Reply struct {
	Outcome      Outcome
	State        State
	ClearOptions bool
	Messages     []Message
}

// Selection names an option of a rendered menu.
type Selection struct {
	Menu   int64
	Option string
}

// Options configure an Engine.
type Options struct {
	// Languages offered on the welcome screen, in display order.
	Languages []string
	// DefaultLanguage is used until the session picks one.
	DefaultLanguage string
	Now             func() time.Time
}

// Engine drives sessions through the FAQ state machine.
type Engine struct {
	content     Content
	store       Store
	languages   []string
	defaultLang string
	now         func() time.Time
	locks       *sessionLocks
}

// NewEngine builds an Engine over content and store.
func NewEngine(c Content, s Store, opts Options) *Engine {
	langs := opts.Languages
	if len(langs) == 0 {
		langs = []string{"en", "hi"}
	}
	def := strings.TrimSpace(opts.DefaultLanguage)
	if def == "" {
		def = defaultLanguage
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		content:     c,
		store:       s,
		languages:   append([]string(nil), langs...),
		defaultLang: def,
		now:         now,
		locks:       newSessionLocks(),
	}
}

// Start handles the entry command. It always (re)starts the session at language selection.
func (e *Engine) Start(ctx context.Context, id int64) (Reply, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	prev, ok, err := e.store.Get(ctx, id)
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: load session %d: %w", id, err)
	}
	sess := &Session{ID: id, State: StateSelectingLanguage, Language: e.defaultLang}
	from := State("")
	if ok {
		// keep the sequence so keyboards of the previous run stay stale
		sess.MenuSeq = prev.MenuSeq
		from = prev.State
	}

	msg := Message{Text: e.welcomeText(), Menu: e.present(sess, len(e.languages), e.languageOptions())}
	if err := e.save(ctx, sess, from, ""); err != nil {
		return Reply{}, err
	}
	return Reply{Outcome: OutcomeStarted, State: sess.State, Messages: []Message{msg}}, nil
}

// Select handles a button press. Selections that do not match the live menu
// are answered like free text.
func (e *Engine) Select(ctx context.Context, id int64, sel Selection) (Reply, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	sess, ok, err := e.store.Get(ctx, id)
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: load session %d: %w", id, err)
	}
	if !ok || sess.State == StateEnded {
		return e.ignored(ctx, sess, "select"), nil
	}
	opt, live := e.resolve(sess, sel)
	if !live {
		logger.Debug(ctx, component, "select.stale",
			slog.Int64("session_id", id),
			slog.String("state", string(sess.State)),
			slog.String("option", sel.Option),
			slog.Int64("menu_seq", sel.Menu),
		)
		return e.guidance(sess), nil
	}

	from := sess.State
	var reply Reply
	switch sess.State {
	case StateSelectingLanguage:
		reply = e.chooseLanguage(sess, opt)
	case StateFAQMenu:
		reply = e.chooseFAQ(sess, opt)
	default:
		return e.guidance(sess), nil
	}
	if err := e.save(ctx, sess, from, opt.ID); err != nil {
		return Reply{}, err
	}
	reply.State = sess.State
	return reply, nil
}

// Text handles free-text input: guidance in the session language, state unchanged.
func (e *Engine) Text(ctx context.Context, id int64, _ string) (Reply, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	sess, ok, err := e.store.Get(ctx, id)
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: load session %d: %w", id, err)
	}
	if !ok || sess.State == StateEnded {
		return e.ignored(ctx, sess, "text"), nil
	}
	return e.guidance(sess), nil
}

// InProgress reports whether id has a session that still accepts events.
func (e *Engine) InProgress(ctx context.Context, id int64) bool {
	sess, ok, err := e.store.Get(ctx, id)
	if err != nil || !ok {
		return false
	}
	return sess.State != StateEnded
}

// Session returns a copy of the stored session for id.
func (e *Engine) Session(ctx context.Context, id int64) (*Session, bool, error) {
	return e.store.Get(ctx, id)
}

func (e *Engine) resolve(sess *Session, sel Selection) (Option, bool) {
	if sess.Menu == nil || sess.Menu.Seq != sel.Menu {
		return Option{}, false
	}
	return sess.Menu.Find(sel.Option)
}

func (e *Engine) chooseLanguage(sess *Session, opt Option) Reply {
	if !sess.LanguageSet {
		if lang := strings.TrimPrefix(opt.ID, langOptionPrefix); lang != "" {
			sess.Language = lang
		}
		sess.LanguageSet = true
	}
	sess.State = StateFAQMenu
	return Reply{
		Outcome:      OutcomeSelected,
		ClearOptions: true,
		Messages: []Message{
			e.confirmation(sess, opt),
			e.faqMenu(sess),
		},
	}
}

func (e *Engine) chooseFAQ(sess *Session, opt Option) Reply {
	reply := Reply{
		Outcome:      OutcomeSelected,
		ClearOptions: true,
		Messages:     []Message{e.confirmation(sess, opt)},
	}
	switch {
	case opt.ID == OptionFAQMenu:
		reply.Messages = append(reply.Messages, e.faqMenu(sess))
	case opt.ID == OptionEndChat:
		sess.State = StateEnded
		sess.Menu = nil
		reply.Messages = append(reply.Messages, Message{Text: e.content.Text("end_chat_message", sess.Language)})
	default:
		faqID := strings.TrimPrefix(opt.ID, faqOptionPrefix)
		answer, ok := e.content.Answer(faqID, sess.Language)
		if !ok {
			answer = e.noAnswer(sess.Language)
		}
		lang := sess.Language
		reply.Messages = append(reply.Messages, Message{
			Text: answer,
			Menu: e.present(sess, 1, []Option{
				{ID: OptionFAQMenu, Label: e.content.ButtonText("ask_another", lang)},
				{ID: OptionEndChat, Label: e.content.ButtonText("end_chat", lang)},
			}),
		})
	}
	return reply
}

func (e *Engine) faqMenu(sess *Session) Message {
	opts := make([]Option, 0, len(FAQIDs))
	for _, id := range FAQIDs {
		opts = append(opts, Option{ID: faqOptionPrefix + id, Label: e.content.Question(id, sess.Language)})
	}
	return Message{
		Text: e.content.Text("faq_prompt", sess.Language),
		Menu: e.present(sess, 1, opts),
	}
}

func (e *Engine) confirmation(sess *Session, opt Option) Message {
	return Message{Text: fmt.Sprintf("*%s* %s", e.content.Text("selection_confirmation", sess.Language), opt.Label)}
}

func (e *Engine) guidance(sess *Session) Reply {
	lang := sess.Language
	if lang == "" {
		lang = e.defaultLang
	}
	return Reply{
		Outcome:  OutcomeGuidance,
		State:    sess.State,
		Messages: []Message{{Text: e.content.Text("error_handler", lang)}},
	}
}

func (e *Engine) ignored(ctx context.Context, sess *Session, event string) Reply {
	state := State("")
	if sess != nil {
		state = sess.State
	}
	logger.Debug(ctx, component, event+".ignored", slog.String("state", string(state)))
	return Reply{Outcome: OutcomeIgnored, State: state}
}

func (e *Engine) noAnswer(lang string) string {
	if v, ok := e.content.LookupText("no_answer", lang); ok && v != "" {
		return v
	}
	return NoAnswerFallback
}

func (e *Engine) welcomeText() string {
	welcomes := make([]string, 0, len(e.languages))
	prompts := make([]string, 0, len(e.languages))
	for _, lang := range e.languages {
		welcomes = append(welcomes, e.content.Text("welcome", lang))
		prompts = append(prompts, e.content.Text("select_language", lang))
	}
	return strings.Join(welcomes, "\n\n") + "\n\n" + strings.Join(prompts, " / ")
}

func (e *Engine) languageOptions() []Option {
	opts := make([]Option, 0, len(e.languages))
	for _, lang := range e.languages {
		key := langOptionPrefix + lang
		opts = append(opts, Option{ID: key, Label: e.content.ButtonText(key, lang)})
	}
	return opts
}

// present makes opts the live menu of sess under a fresh sequence number.
func (e *Engine) present(sess *Session, columns int, opts []Option) *Menu {
	sess.MenuSeq++
	sess.Menu = &Menu{Seq: sess.MenuSeq, Columns: columns, Options: opts}
	return sess.Menu.clone()
}

func (m *Menu) clone() *Menu {
	c := *m
	c.Options = append([]Option(nil), m.Options...)
	return &c
}

func (e *Engine) save(ctx context.Context, sess *Session, from State, option string) error {
	sess.UpdatedAt = e.now()
	if err := e.store.Put(ctx, sess); err != nil {
		return fmt.Errorf("conversation: save session %d: %w", sess.ID, err)
	}
	logger.Debug(ctx, component, "session.transition",
		slog.Int64("session_id", sess.ID),
		slog.String("from_state", string(from)),
		slog.String("to_state", string(sess.State)),
		slog.String("lang", sess.Language),
		slog.String("option", option),
	)
	return nil
}
