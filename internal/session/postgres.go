package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/rabiesbot/internal/conversation"
)

// PostgresStore keeps sessions in the conversation_sessions table.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open connection. The schema comes from migrations/.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type sessionRow struct {
	ID          int64          `db:"id"`
	State       string         `db:"state"`
	Language    string         `db:"language"`
	LanguageSet bool           `db:"language_set"`
	Menu        sql.NullString `db:"menu"`
	MenuSeq     int64          `db:"menu_seq"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

const (
	selectSessionSQL = `SELECT id, state, language, language_set, menu, menu_seq, updated_at
		FROM conversation_sessions WHERE id = $1`

	upsertSessionSQL = `INSERT INTO conversation_sessions
		(id, state, language, language_set, menu, menu_seq, updated_at)
		VALUES (:id, :state, :language, :language_set, :menu, :menu_seq, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			language = EXCLUDED.language,
			language_set = EXCLUDED.language_set,
			menu = EXCLUDED.menu,
			menu_seq = EXCLUDED.menu_seq,
			updated_at = EXCLUDED.updated_at`
)

// Get loads the session for id.
func (p *PostgresStore) Get(ctx context.Context, id int64) (*conversation.Session, bool, error) {
	var row sessionRow
	if err := p.db.GetContext(ctx, &row, selectSessionSQL, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("session: select %d: %w", id, err)
	}
	sess := &conversation.Session{
		ID:          row.ID,
		State:       conversation.State(row.State),
		Language:    row.Language,
		LanguageSet: row.LanguageSet,
		MenuSeq:     row.MenuSeq,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.Menu.Valid && row.Menu.String != "" {
		var menu conversation.Menu
		if err := json.Unmarshal([]byte(row.Menu.String), &menu); err != nil {
			return nil, false, fmt.Errorf("session: decode menu %d: %w", id, err)
		}
		sess.Menu = &menu
	}
	return sess, true, nil
}

// Put upserts s.
func (p *PostgresStore) Put(ctx context.Context, s *conversation.Session) error {
	if s == nil {
		return ErrNilSession
	}
	row := sessionRow{
		ID:          s.ID,
		State:       string(s.State),
		Language:    s.Language,
		LanguageSet: s.LanguageSet,
		MenuSeq:     s.MenuSeq,
		UpdatedAt:   s.UpdatedAt,
	}
	if s.Menu != nil {
		data, err := json.Marshal(s.Menu)
		if err != nil {
			return fmt.Errorf("session: encode menu %d: %w", s.ID, err)
		}
		row.Menu = sql.NullString{String: string(data), Valid: true}
	}
	if _, err := p.db.NamedExecContext(ctx, upsertSessionSQL, row); err != nil {
		return fmt.Errorf("session: upsert %d: %w", s.ID, err)
	}
	return nil
}

// Close is a no-op; the pool belongs to whoever passed it in.
func (p *PostgresStore) Close() error { return nil }
