package agent

import (
	"context"

	"github.com/mtzanidakis/gridswarm/internal/game"
)

// Policy decides what an agent does each turn. Implementations must not
// mutate the frame history; ChooseAction may perform its own network I/O
// (a model call, a replay pace delay) but all game-state progress flows
// through the agent loop.
type Policy interface {
	// Name is the policy's session-name fragment, e.g. "random.100".
	Name() string

	// MaxActions is the hard turn ceiling for this policy.
	MaxActions() int

	// IsDone reports whether the run should stop before the next turn.
	IsDone(frames []game.FrameData, latest game.FrameData) bool

	// ChooseAction picks the next action from the accumulated history.
	// An error aborts the run: inventing an action on policy failure
	// would corrupt the recorded trace.
	ChooseAction(ctx context.Context, frames []game.FrameData, latest game.FrameData) (game.GameAction, error)

	// Cleanup runs once when the session ends, before the trailing
	// scorecard entry is recorded.
	Cleanup(latest game.FrameData)
}

// Sink receives auxiliary session-log entries written by a policy during
// play (token usage, prompt metadata).
type Sink interface {
	Record(entry any) error
}
