// Package game holds the wire-level data model shared by every agent:
// game lifecycle states, the closed action set, and the frame documents
// returned by the API.
package game

import (
	"encoding/json"
	"fmt"
)

// MaxCellValue is the inclusive upper bound for grid cell values.
const MaxCellValue = 15

// GameState is the lifecycle state reported with every frame.
type GameState string

const (
	StateNotPlayed  GameState = "NOT_PLAYED"
	StateInProgress GameState = "IN_PROGRESS"
	StateWin        GameState = "WIN"
	StateGameOver   GameState = "GAME_OVER"
)

func (s GameState) Valid() bool {
	switch s {
	case StateNotPlayed, StateInProgress, StateWin, StateGameOver:
		return true
	}
	return false
}

// NeedsReset reports whether the remote side will reject anything but
// RESET in this state.
func (s GameState) NeedsReset() bool {
	return s == StateNotPlayed || s == StateGameOver
}

// FrameData is one server response: the grid snapshot produced by a
// single action. GUID is the server-assigned session token, sticky once
// observed.
type FrameData struct {
	GameID      string      `json:"game_id"`
	GUID        string      `json:"guid"`
	Frame       [][][]int   `json:"frame"`
	State       GameState   `json:"state"`
	Score       int         `json:"score"`
	ActionInput ActionInput `json:"action_input"`
}

// SeedFrame is the synthetic unplayed frame every session history starts
// from.
func SeedFrame() FrameData {
	return FrameData{Score: 0, State: StateNotPlayed}
}

func (f FrameData) Validate() error {
	if !f.State.Valid() {
		return fmt.Errorf("unknown game state: %q", string(f.State))
	}
	if f.Score < 0 {
		return fmt.Errorf("negative score: %d", f.Score)
	}
	for g, grid := range f.Frame {
		for r, row := range grid {
			for c, cell := range row {
				if cell < 0 || cell > MaxCellValue {
					return fmt.Errorf("grid %d cell (%d,%d) out of range: %d", g, r, c, cell)
				}
			}
		}
	}
	return nil
}

// ParseFrame decodes and validates a frame document.
func ParseFrame(data []byte) (FrameData, error) {
	var f FrameData
	if err := json.Unmarshal(data, &f); err != nil {
		return FrameData{}, fmt.Errorf("decode frame: %w", err)
	}
	if err := f.Validate(); err != nil {
		return FrameData{}, fmt.Errorf("validate frame: %w", err)
	}
	return f, nil
}

// Scorecard is the remote aggregate result record for a run. Cards holds
// the per-game detail documents as returned by the API.
type Scorecard struct {
	CardID       string                     `json:"card_id"`
	Won          int                        `json:"won"`
	Played       int                        `json:"played"`
	TotalActions int                        `json:"total_actions"`
	Score        int                        `json:"score"`
	Cards        map[string]json.RawMessage `json:"cards,omitempty"`
}

// Card returns the detail document for one game, or nil when absent.
func (s Scorecard) Card(gameID string) json.RawMessage {
	if s.Cards == nil {
		return nil
	}
	return s.Cards[gameID]
}
