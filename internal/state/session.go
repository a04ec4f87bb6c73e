package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/parleyhq/parley/pkg/models"
)

// Message is one entry in a session's conversational transcript.
type Message struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
	// Timestamp is when the message was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Session is the durable conversation record. The turn runner loads it at
// turn start, owns it for the turn, and saves it once when the turn ends.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// Messages is the user/assistant transcript in order.
	Messages []Message `json:"messages"`
	// Turns is the full per-turn record, including outcomes.
	Turns []models.Turn `json:"turns"`
	// State is accumulated cross-turn state. Capabilities contribute to it
	// only through InvocationResult.StateUpdates.
	State map[string]any `json:"state"`
}

// NewSession creates an empty session with the given ID.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		State:     make(map[string]any),
	}
}

// AppendMessage records a transcript entry.
func (s *Session) AppendMessage(role, content string) {
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// MergeState applies capability state updates. Later keys overwrite
// earlier ones.
func (s *Session) MergeState(updates map[string]any) {
	if len(updates) == 0 {
		return
	}
	if s.State == nil {
		s.State = make(map[string]any, len(updates))
	}
	for k, v := range updates {
		s.State[k] = v
	}
}

// MessageCount returns the number of messages recorded on the session.
func (s *Session) MessageCount() int {
	return len(s.Messages)
}

// RecentUserTexts returns up to n most recent user messages, oldest first.
// The resolver uses them as classification context.
func (s *Session) RecentUserTexts(n int) []string {
	var texts []string
	for _, m := range s.Messages {
		if m.Role == "user" {
			texts = append(texts, m.Content)
		}
	}
	if len(texts) > n {
		texts = texts[len(texts)-n:]
	}
	return texts
}

// SessionStore is the persistence boundary the turn runner depends on.
type SessionStore interface {
	// LoadSession returns the session with the given ID, or (nil, nil)
	// when no such session exists.
	LoadSession(ctx context.Context, id string) (*Session, error)
	// SaveSession persists the session, inserting or replacing.
	SaveSession(ctx context.Context, s *Session) error
}

// Session persistence on the SQLite store. The whole session is stored as
// one JSON payload: sessions are read and written whole by a single turn
// at a time, so per-field columns would buy nothing.

// LoadSession retrieves a session by ID. Returns (nil, nil) when absent.
func (db *DB) LoadSession(ctx context.Context, id string) (*Session, error) {
	db.mu.RLock()
	row := db.conn.QueryRowContext(ctx, `SELECT payload FROM sessions WHERE id = ?`, id)
	db.mu.RUnlock()

	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

// SaveSession inserts or replaces the session record.
func (db *DB) SaveSession(ctx context.Context, s *Session) error {
	s.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at, payload = excluded.payload
	`, s.ID, formatTime(s.CreatedAt), formatTime(s.UpdatedAt), string(payload))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ListSessionIDs returns session IDs ordered by most recent activity.
func (db *DB) ListSessionIDs(ctx context.Context) ([]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `SELECT id FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
