package game

import (
	"encoding/json"
	"testing"
)

func TestGameStateValid(t *testing.T) {
	for _, s := range []GameState{StateNotPlayed, StateInProgress, StateWin, StateGameOver} {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if GameState("PAUSED").Valid() {
		t.Error("expected unknown state to be invalid")
	}
}

func TestNeedsReset(t *testing.T) {
	tests := []struct {
		state GameState
		want  bool
	}{
		{StateNotPlayed, true},
		{StateGameOver, true},
		{StateInProgress, false},
		{StateWin, false},
	}
	for _, tt := range tests {
		if got := tt.state.NeedsReset(); got != tt.want {
			t.Errorf("%s.NeedsReset() = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestSeedFrame(t *testing.T) {
	seed := SeedFrame()
	if seed.State != StateNotPlayed {
		t.Errorf("expected NOT_PLAYED, got %s", seed.State)
	}
	if seed.Score != 0 {
		t.Errorf("expected score 0, got %d", seed.Score)
	}
	if !seed.State.NeedsReset() {
		t.Error("seed frame must demand a reset")
	}
}

func TestParseFrame(t *testing.T) {
	raw := `{
		"game_id": "ls20",
		"guid": "abc-123",
		"frame": [[[0, 5], [15, 1]]],
		"state": "IN_PROGRESS",
		"score": 2,
		"action_input": {"id": 1, "data": {"game_id": "ls20"}}
	}`
	frame, err := ParseFrame([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if frame.GameID != "ls20" || frame.GUID != "abc-123" {
		t.Errorf("unexpected identity fields: %+v", frame)
	}
	if frame.State != StateInProgress || frame.Score != 2 {
		t.Errorf("unexpected state/score: %s/%d", frame.State, frame.Score)
	}
	if frame.ActionInput.ID != Action1 {
		t.Errorf("expected action echo ACTION1, got %s", frame.ActionInput.ID)
	}
}

func TestParseFrameRejectsBadCell(t *testing.T) {
	raw := `{"game_id":"ls20","frame":[[[16]]],"state":"IN_PROGRESS","score":0}`
	if _, err := ParseFrame([]byte(raw)); err == nil {
		t.Error("expected error for cell value 16")
	}

	raw = `{"game_id":"ls20","frame":[[[-1]]],"state":"IN_PROGRESS","score":0}`
	if _, err := ParseFrame([]byte(raw)); err == nil {
		t.Error("expected error for negative cell value")
	}
}

func TestParseFrameRejectsBadState(t *testing.T) {
	raw := `{"game_id":"ls20","state":"LIMBO","score":0}`
	if _, err := ParseFrame([]byte(raw)); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestParseFrameRejectsNegativeScore(t *testing.T) {
	raw := `{"game_id":"ls20","state":"IN_PROGRESS","score":-1}`
	if _, err := ParseFrame([]byte(raw)); err == nil {
		t.Error("expected error for negative score")
	}
}

func TestScorecardCard(t *testing.T) {
	card := Scorecard{
		CardID: "card-1",
		Cards: map[string]json.RawMessage{
			"ls20": json.RawMessage(`{"score": 3}`),
		},
	}
	if card.Card("ls20") == nil {
		t.Error("expected card detail for ls20")
	}
	if card.Card("ft09") != nil {
		t.Error("expected nil for absent game")
	}
	if (Scorecard{}).Card("ls20") != nil {
		t.Error("expected nil for empty scorecard")
	}
}
