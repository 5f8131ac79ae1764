package agent

import (
	"context"
	"testing"

	"github.com/mtzanidakis/gridswarm/internal/game"
	"github.com/mtzanidakis/gridswarm/internal/recorder"
)

func writePlaybackRecording(t *testing.T, dir string) string {
	t.Helper()
	rec, err := recorder.New(dir, "ls20.random.100", "")
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	defer rec.Close()

	frames := []game.FrameData{
		{GameID: "ls20-old", GUID: "g", State: game.StateNotPlayed, ActionInput: game.ActionInput{ID: game.ActionReset}},
		{GameID: "ls20-old", GUID: "g", State: game.StateInProgress, ActionInput: game.ActionInput{ID: game.Action2}},
		{GameID: "ls20-old", GUID: "g", State: game.StateInProgress, Score: 1,
			ActionInput: game.ActionInput{ID: game.Action6, Data: map[string]any{"game_id": "ls20-old", "x": 10, "y": 20}}},
	}
	for _, f := range frames {
		if err := rec.Record(f); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	// Auxiliary entries without a game id are not part of the replay.
	if err := rec.Record(map[string]any{"tokens": 100, "total_tokens": 100}); err != nil {
		t.Fatalf("record meta: %v", err)
	}
	return rec.Name()
}

func TestPlaybackReplaysActionsInOrder(t *testing.T) {
	dir := t.TempDir()
	name := writePlaybackRecording(t, dir)

	p, err := NewPlayback(dir, name, "ls20-new")
	if err != nil {
		t.Fatalf("new playback: %v", err)
	}

	if p.Remaining() != 3 {
		t.Fatalf("expected 3 replayable entries, got %d", p.Remaining())
	}
	if p.Name() != name {
		t.Errorf("expected policy named after recording, got %q", p.Name())
	}

	ctx := context.Background()
	latest := game.SeedFrame()

	want := []game.ActionID{game.ActionReset, game.Action2, game.Action6}
	for i, id := range want {
		if p.IsDone(nil, latest) {
			t.Fatalf("done too early at %d", i)
		}
		action, err := p.ChooseAction(ctx, nil, latest)
		if err != nil {
			t.Fatalf("choose %d: %v", i, err)
		}
		if action.ID != id {
			t.Errorf("action %d: expected %s, got %s", i, id, action.ID)
		}
		if action.GameID != "ls20-new" {
			t.Errorf("action %d: expected game id override, got %s", i, action.GameID)
		}
		if id == game.Action6 && (action.X != 10 || action.Y != 20) {
			t.Errorf("expected coordinates carried through, got (%d,%d)", action.X, action.Y)
		}
	}

	if !p.IsDone(nil, latest) {
		t.Error("expected done after replaying every entry")
	}
}

func TestPlaybackCancelDuringPacing(t *testing.T) {
	dir := t.TempDir()
	name := writePlaybackRecording(t, dir)

	p, err := NewPlayback(dir, name, "ls20")
	if err != nil {
		t.Fatalf("new playback: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.ChooseAction(ctx, nil, game.SeedFrame()); err == nil {
		t.Fatal("expected context error while pacing")
	}
}

func TestPlaybackMissingRecording(t *testing.T) {
	if _, err := NewPlayback(t.TempDir(), "nope"+recorder.Suffix, "ls20"); err == nil {
		t.Fatal("expected error for missing recording")
	}
}
