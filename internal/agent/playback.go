package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mtzanidakis/gridswarm/internal/game"
	"github.com/mtzanidakis/gridswarm/internal/recorder"
)

const (
	playbackMaxActions = 1000000
	playbackFPS        = 5
)

// Playback replays a previously recorded session as a synthetic agent:
// actions are reconstructed from the recorded frames and resubmitted for
// real, which validates that the remote side still accepts the trace.
// Termination is replay-length-bound, not game-state-bound, and nothing
// is re-recorded.
type Playback struct {
	gameID  string
	source  string
	entries []recorder.Entry
	cursor  int
	pace    time.Duration
}

// NewPlayback loads the named recording from dir. Entries without a data
// payload carrying a game id (token usage, summary metadata) are
// excluded from the replay stream.
func NewPlayback(dir, name, gameID string) (*Playback, error) {
	all, err := recorder.Read(dir, name)
	if err != nil {
		return nil, fmt.Errorf("load recording %s: %w", name, err)
	}

	var entries []recorder.Entry
	for _, e := range all {
		if e.Data == nil {
			continue
		}
		if _, ok := e.Data["game_id"]; !ok {
			continue
		}
		entries = append(entries, e)
	}

	return &Playback{
		gameID:  gameID,
		source:  name,
		entries: entries,
		pace:    time.Second / playbackFPS,
	}, nil
}

func (p *Playback) Name() string {
	return p.source
}

func (p *Playback) MaxActions() int {
	return playbackMaxActions
}

// Remaining reports how many recorded actions are left to replay.
func (p *Playback) Remaining() int {
	return len(p.entries) - p.cursor
}

func (p *Playback) IsDone(frames []game.FrameData, latest game.FrameData) bool {
	return p.cursor >= len(p.entries)
}

func (p *Playback) ChooseAction(ctx context.Context, frames []game.FrameData, latest game.FrameData) (game.GameAction, error) {
	entry := p.entries[p.cursor]
	p.cursor++

	raw, err := json.Marshal(entry.Data)
	if err != nil {
		return game.GameAction{}, fmt.Errorf("re-encode recorded entry %d: %w", p.cursor-1, err)
	}
	var frame game.FrameData
	if err := json.Unmarshal(raw, &frame); err != nil {
		return game.GameAction{}, fmt.Errorf("decode recorded frame %d: %w", p.cursor-1, err)
	}

	// The recorded game id is overridden with the current run's id so the
	// replay stays portable across reruns.
	action, err := frame.ActionInput.Action(p.gameID)
	if err != nil {
		return game.GameAction{}, fmt.Errorf("reconstruct action %d from %s: %w", p.cursor-1, p.source, err)
	}

	// Pace to a fixed wall-clock rate so the replay looks like a live run.
	select {
	case <-time.After(p.pace):
	case <-ctx.Done():
		return game.GameAction{}, ctx.Err()
	}

	return action, nil
}

func (p *Playback) Cleanup(latest game.FrameData) {}
