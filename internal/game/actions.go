package game

import (
	"encoding/json"
	"fmt"
)

// MaxCoordinate is the inclusive upper bound for complex action coordinates.
const MaxCoordinate = 63

// ActionID identifies one of the fixed game inputs. The numeric values
// match the ids the API echoes back in action_input.
type ActionID int

const (
	ActionReset ActionID = iota
	Action1
	Action2
	Action3
	Action4
	Action5
	Action6
)

var actionNames = map[ActionID]string{
	ActionReset: "RESET",
	Action1:     "ACTION1",
	Action2:     "ACTION2",
	Action3:     "ACTION3",
	Action4:     "ACTION4",
	Action5:     "ACTION5",
	Action6:     "ACTION6",
}

func (id ActionID) String() string {
	if name, ok := actionNames[id]; ok {
		return name
	}
	return fmt.Sprintf("ACTION(%d)", int(id))
}

func (id ActionID) Valid() bool {
	_, ok := actionNames[id]
	return ok
}

// Simple reports whether the action carries no payload beyond the game id.
func (id ActionID) Simple() bool {
	return id >= Action1 && id <= Action5
}

// Complex reports whether the action carries x/y coordinates.
func (id ActionID) Complex() bool {
	return id == Action6
}

func ParseActionID(name string) (ActionID, error) {
	for id, n := range actionNames {
		if n == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown action name: %s", name)
}

// SimpleActions lists every non-RESET action without a coordinate payload.
func SimpleActions() []ActionID {
	return []ActionID{Action1, Action2, Action3, Action4, Action5}
}

// GameAction is one input submitted to the API. Reasoning is free-form
// metadata (plain string or structured JSON) attached for observability
// only; it never influences gameplay.
type GameAction struct {
	ID        ActionID
	GameID    string
	X         int
	Y         int
	Reasoning json.RawMessage
}

func (a GameAction) Validate() error {
	if !a.ID.Valid() {
		return fmt.Errorf("invalid action id: %d", int(a.ID))
	}
	if a.ID.Complex() {
		if a.X < 0 || a.X > MaxCoordinate || a.Y < 0 || a.Y > MaxCoordinate {
			return fmt.Errorf("%s coordinates out of range: x=%d y=%d", a.ID, a.X, a.Y)
		}
		return nil
	}
	if a.X != 0 || a.Y != 0 {
		return fmt.Errorf("%s does not take coordinates", a.ID)
	}
	return nil
}

// Data returns the action payload as submitted in the request body.
func (a GameAction) Data() map[string]any {
	data := map[string]any{"game_id": a.GameID}
	if a.ID.Complex() {
		data["x"] = a.X
		data["y"] = a.Y
	}
	return data
}

// ActionInput is the action echo embedded in every frame.
type ActionInput struct {
	ID   ActionID       `json:"id"`
	Data map[string]any `json:"data,omitempty"`
}

// Action reconstructs the submitted GameAction from a recorded frame echo.
// The game id is overridden with gameID so replays stay portable across
// runs that reissue ids.
func (in ActionInput) Action(gameID string) (GameAction, error) {
	if !in.ID.Valid() {
		return GameAction{}, fmt.Errorf("invalid recorded action id: %d", int(in.ID))
	}
	a := GameAction{ID: in.ID, GameID: gameID}
	if in.ID.Complex() {
		x, okX := asInt(in.Data["x"])
		y, okY := asInt(in.Data["y"])
		if !okX || !okY {
			return GameAction{}, fmt.Errorf("recorded %s is missing coordinates", in.ID)
		}
		a.X, a.Y = x, y
	}
	return a, nil
}

// asInt tolerates the float64 shape JSON decoding produces for numbers.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}
