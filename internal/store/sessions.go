package store

import (
	"fmt"
	"time"
)

// Session is one agent's final result for a single game.
type Session struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	GameID      string    `json:"game_id"`
	GUID        string    `json:"guid,omitempty"`
	Recording   string    `json:"recording,omitempty"`
	Actions     int       `json:"actions"`
	Score       int       `json:"score"`
	State       string    `json:"state"`
	CompletedAt time.Time `json:"completed_at"`
}

func (s *Store) SaveSession(sess *Session) error {
	res, err := s.db.Exec(`
		INSERT INTO sessions (run_id, game_id, guid, recording, actions, score, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.RunID, sess.GameID, sess.GUID, sess.Recording, sess.Actions, sess.Score, sess.State)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	sess.ID, _ = res.LastInsertId()
	return nil
}

func (s *Store) ListSessions(runID string) ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, game_id, guid, recording, actions, score, state, completed_at
		FROM sessions WHERE run_id = ? ORDER BY completed_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.RunID, &sess.GameID, &sess.GUID, &sess.Recording,
			&sess.Actions, &sess.Score, &sess.State, &sess.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}
