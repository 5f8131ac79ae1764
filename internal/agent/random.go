package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/mtzanidakis/gridswarm/internal/game"
)

const randomMaxActions = 100

// Random selects actions uniformly at random. Useful as a protocol
// smoke-test agent and as a baseline.
type Random struct {
	gameID string
}

func NewRandom(gameID string) *Random {
	return &Random{gameID: gameID}
}

func (r *Random) Name() string {
	return fmt.Sprintf("random.%d", randomMaxActions)
}

func (r *Random) MaxActions() int {
	return randomMaxActions
}

func (r *Random) IsDone(frames []game.FrameData, latest game.FrameData) bool {
	return latest.State == game.StateWin
}

func (r *Random) ChooseAction(ctx context.Context, frames []game.FrameData, latest game.FrameData) (game.GameAction, error) {
	// Unplayed or lost games accept nothing but RESET.
	if latest.State.NeedsReset() {
		return game.GameAction{ID: game.ActionReset, GameID: r.gameID}, nil
	}

	simple := game.SimpleActions()
	if rand.IntN(len(simple)+1) == len(simple) {
		reasoning, _ := json.Marshal(map[string]string{
			"desired_action": game.Action6.String(),
			"my_reason":      "RNG said so!",
		})
		return game.GameAction{
			ID:        game.Action6,
			GameID:    r.gameID,
			X:         rand.IntN(game.MaxCoordinate + 1),
			Y:         rand.IntN(game.MaxCoordinate + 1),
			Reasoning: reasoning,
		}, nil
	}

	id := simple[rand.IntN(len(simple))]
	reasoning, _ := json.Marshal(fmt.Sprintf("RNG told me to pick %s", id))
	return game.GameAction{ID: id, GameID: r.gameID, Reasoning: reasoning}, nil
}

func (r *Random) Cleanup(latest game.FrameData) {}
