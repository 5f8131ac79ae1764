package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Run is one swarm run: an agent kind driven across a set of games under
// a single scorecard.
type Run struct {
	ID          string          `json:"id"`
	Agent       string          `json:"agent"`
	CardID      string          `json:"card_id"`
	Games       []string        `json:"games"`
	Status      string          `json:"status"`
	Scorecard   json.RawMessage `json:"scorecard,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

const runColumns = `id, agent, card_id, games, status, scorecard, started_at, completed_at`

func scanRun(scanner interface {
	Scan(dest ...any) error
}) (*Run, error) {
	r := &Run{}
	var games string
	var scorecard *string
	err := scanner.Scan(&r.ID, &r.Agent, &r.CardID, &games, &r.Status, &scorecard, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(games), &r.Games); err != nil {
		return nil, fmt.Errorf("decode games: %w", err)
	}
	if scorecard != nil {
		r.Scorecard = json.RawMessage(*scorecard)
	}
	return r, nil
}

func (s *Store) SaveRun(r *Run) error {
	games, err := json.Marshal(r.Games)
	if err != nil {
		return fmt.Errorf("encode games: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO runs (id, agent, card_id, games, status, scorecard)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			scorecard = excluded.scorecard,
			completed_at = CASE WHEN excluded.status IN ('completed', 'failed', 'interrupted') THEN CURRENT_TIMESTAMP ELSE completed_at END`,
		r.ID, r.Agent, r.CardID, string(games), r.Status, rawOrNil(r.Scorecard))
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

func (s *Store) UpdateRun(id, status string, scorecard json.RawMessage) error {
	_, err := s.db.Exec(`
		UPDATE runs
		SET status = ?, scorecard = COALESCE(?, scorecard),
		    completed_at = CASE WHEN ? IN ('completed', 'failed', 'interrupted') THEN CURRENT_TIMESTAMP ELSE completed_at END
		WHERE id = ?`, status, rawOrNil(scorecard), status, id)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func rawOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
