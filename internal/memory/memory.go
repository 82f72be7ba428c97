// Package memory keeps the facts and preferences a user asked the assistant
// to remember.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const profileFacts = 20

var ErrEmpty = errors.New("nothing to remember")

type Preference struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Remember stores fact. It reports false when the fact was already known.
func (s *Store) Remember(ctx context.Context, userID, fact string) (bool, error) {
	fact = strings.TrimSpace(fact)
	if fact == "" {
		return false, ErrEmpty
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO memory_facts (user_id, fact) VALUES (?, ?)`, userID, fact)
	if err != nil {
		return false, fmt.Errorf("insert fact: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Forget removes the fact equal to text, or failing that every fact that
// contains text, ignoring case. It returns how many facts were removed.
func (s *Store) Forget(ctx context.Context, userID, text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrEmpty
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memory_facts WHERE user_id = ? AND fact = ?`, userID, text)
	if err != nil {
		return 0, fmt.Errorf("delete fact: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return int(n), nil
	}

	res, err = s.db.ExecContext(ctx,
		`DELETE FROM memory_facts WHERE user_id = ? AND instr(lower(fact), lower(?)) > 0`, userID, text)
	if err != nil {
		return 0, fmt.Errorf("delete facts: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *Store) Facts(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fact FROM memory_facts WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// SetPreference stores value under the lower cased key.
func (s *Store) SetPreference(ctx context.Context, userID, key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return ErrEmpty
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_preferences (user_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		userID, key, strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	return nil
}

func (s *Store) Preference(ctx context.Context, userID, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM memory_preferences WHERE user_id = ? AND key = ?`,
		userID, strings.ToLower(strings.TrimSpace(key))).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference: %w", err)
	}
	return v, true, nil
}

func (s *Store) DeletePreference(ctx context.Context, userID, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memory_preferences WHERE user_id = ? AND key = ?`,
		userID, strings.ToLower(strings.TrimSpace(key)))
	if err != nil {
		return false, fmt.Errorf("delete preference: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) Preferences(ctx context.Context, userID string) ([]Preference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM memory_preferences WHERE user_id = ? ORDER BY key`, userID)
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	var out []Preference
	for rows.Next() {
		var p Preference
		if err := rows.Scan(&p.Key, &p.Value); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Profile renders what is known about the user for a system prompt.
func (s *Store) Profile(ctx context.Context, userID, username string) (string, error) {
	facts, err := s.Facts(ctx, userID)
	if err != nil {
		return "", err
	}
	prefs, err := s.Preferences(ctx, userID)
	if err != nil {
		return "", err
	}
	return FormatProfile(username, facts, prefs), nil
}

func FormatProfile(username string, facts []string, prefs []Preference) string {
	if len(facts) == 0 && len(prefs) == 0 {
		return fmt.Sprintf("User profile for %s: (no saved memory yet).", username)
	}

	lines := []string{fmt.Sprintf("User profile for %s:", username)}

	if len(prefs) > 0 {
		kv := make([]string, len(prefs))
		for i, p := range prefs {
			kv[i] = p.Key + " = " + p.Value
		}
		lines = append(lines, "Preferences: "+strings.Join(kv, "; "))
	}

	if len(facts) > 0 {
		shown := facts[:min(len(facts), profileFacts)]
		lines = append(lines, "Facts: "+strings.Join(shown, "; "))
		if extra := len(facts) - len(shown); extra > 0 {
			lines = append(lines, fmt.Sprintf("... (+%d more facts)", extra))
		}
	}

	return strings.Join(lines, "\n")
}

// ParsePreference splits "key = value", "key: value" or "key to value".
// Without a separator the first word is the key.
func ParsePreference(s string) (key, value string, ok bool) {
	s = strings.TrimSpace(s)
	for _, sep := range []string{"=", ":", " to "} {
		if k, v, found := strings.Cut(s, sep); found {
			k, v = strings.TrimSpace(k), strings.TrimSpace(v)
			if k != "" && v != "" {
				return k, v, true
			}
		}
	}

	k, v, found := strings.Cut(s, " ")
	if !found || strings.TrimSpace(v) == "" {
		return "", "", false
	}
	return k, strings.TrimSpace(v), true
}
