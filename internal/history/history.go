// Package history persists per user conversation logs and the global chat
// log shared by every user.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"kashi/internal/llm"
)

var ErrNoUser = errors.New("empty user id")

type Store struct {
	db        *sql.DB
	assistant string
}

func New(db *sql.DB, assistantName string) *Store {
	return &Store{db: db, assistant: assistantName}
}

// Load returns the user's turns in the order they were saved.
func (s *Store) Load(ctx context.Context, userID string) ([]llm.Turn, error) {
	if userID == "" {
		return nil, ErrNoUser
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM chat_turns WHERE user_id = ? ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []llm.Turn
	for rows.Next() {
		var t llm.Turn
		if err := rows.Scan(&t.Role, &t.Content); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Save replaces the user's log with turns.
func (s *Store) Save(ctx context.Context, userID string, turns []llm.Turn) error {
	if userID == "" {
		return ErrNoUser
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_turns WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chat_turns (user_id, seq, role, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, t := range turns {
		if _, err := stmt.ExecContext(ctx, userID, i, string(t.Role), t.Content); err != nil {
			return fmt.Errorf("insert turn %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// AppendGlobal adds one entry to the global chat log.
func (s *Store) AppendGlobal(ctx context.Context, userID string, role llm.Role, content string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_global (id, user_id, role, content) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), userID, string(role), content)
	if err != nil {
		return fmt.Errorf("append global: %w", err)
	}
	return nil
}

// Append records one exchange: the user's query and the assistant's reply
// go to the user's log, the reply also to the global log.
func (s *Store) Append(ctx context.Context, userID, query, reply string) error {
	turns, err := s.Load(ctx, userID)
	if err != nil {
		return err
	}

	turns = append(turns,
		llm.Turn{Role: llm.RoleUser, Content: query},
		llm.Turn{Role: llm.RoleAssistant, Content: reply},
	)

	if err := s.Save(ctx, userID, turns); err != nil {
		return err
	}

	return s.AppendGlobal(ctx, userID, llm.RoleAssistant, reply)
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNoUser
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_turns WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}
	return nil
}

// Greet seeds an empty log with the default greeting exchange and reports
// whether it did.
func (s *Store) Greet(ctx context.Context, userID, username string) (bool, error) {
	turns, err := s.Load(ctx, userID)
	if err != nil {
		return false, err
	}
	if len(turns) > 0 {
		return false, nil
	}

	return true, s.Save(ctx, userID, []llm.Turn{
		{Role: llm.RoleUser, Content: fmt.Sprintf("Hello %s, How are you?", s.assistant)},
		{Role: llm.RoleAssistant, Content: fmt.Sprintf("Welcome %s. I am doing well. How may I help you?", username)},
	})
}

// Transcript renders turns as "<name> : <content>" lines.
func Transcript(turns []llm.Turn, username, assistant string) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case llm.RoleUser:
			lines = append(lines, username+" : "+t.Content)
		case llm.RoleAssistant:
			lines = append(lines, assistant+" : "+t.Content)
		}
	}
	return strings.Join(lines, "\n")
}
