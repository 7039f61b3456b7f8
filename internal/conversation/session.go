package conversation

import (
	"context"
	"time"
)

// State is a step of the conversation state machine.
type State string

const (
	StateSelectingLanguage State = "selecting_language"
	StateFAQMenu           State = "faq_menu"
	StateEnded             State = "ended"
)

// Option is a selectable choice. The label travels with the id so the
// confirmation echo never has to look the pressed button up again.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Menu is a set of options shown to a session. Seq identifies the rendering;
// a selection is only live when it names the current Seq.
type Menu struct {
	Seq     int64    `json:"seq"`
	Columns int      `json:"columns,omitempty"`
	Options []Option `json:"options"`
}

// Find returns the option with the given id.
func (m *Menu) Find(id string) (Option, bool) {
	if m == nil {
		return Option{}, false
	}
	for _, o := range m.Options {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}

// Session is the per-user conversation state.
type Session struct {
	ID          int64     `json:"id"`
	State       State     `json:"state"`
	Language    string    `json:"language"`
	LanguageSet bool      `json:"language_set"`
	Menu        *Menu     `json:"menu,omitempty"`
	MenuSeq     int64     `json:"menu_seq"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Menu != nil {
		c.Menu = s.Menu.clone()
	}
	return &c
}

// Store persists sessions keyed by session id.
// Get reports ok=false when no session exists.
type Store interface {
	Get(ctx context.Context, id int64) (*Session, bool, error)
	Put(ctx context.Context, s *Session) error
}
