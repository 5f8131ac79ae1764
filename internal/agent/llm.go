package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mtzanidakis/gridswarm/internal/config"
	"github.com/mtzanidakis/gridswarm/internal/game"
)

// LLM plays by asking a chat model to call one action per turn, with an
// optional observation pass between turns. Variants tune the model,
// budget and prompting; the turn flow is shared.
type LLM struct {
	kind            string
	gameID          string
	sink            Sink
	chat            *chatClient
	model           string
	maxActions      int
	observe         bool
	requiresTools   bool
	reasoningEffort string
	messageLimit    int
	userPrompt      func() string

	messages       []chatMessage
	tokenCounter   int
	lastToolCallID string
}

func NewLLM(cfg config.LLMConfig, gameID string, sink Sink) *LLM {
	return &LLM{
		kind:           "llm",
		gameID:         gameID,
		sink:           sink,
		chat:           newChatClient(cfg),
		model:          cfg.Model,
		maxActions:     1000,
		observe:        true,
		messageLimit:   messageLimit(cfg),
		userPrompt:     buildUserPrompt,
		lastToolCallID: "call_12345",
	}
}

// NewFastLLM skips the observation pass for cheaper, quicker turns.
func NewFastLLM(cfg config.LLMConfig, gameID string, sink Sink) *LLM {
	l := NewLLM(cfg, gameID, sink)
	l.kind = "fastllm"
	l.maxActions = 100
	l.observe = false
	return l
}

// NewReasoningLLM targets reasoning models: tool calls required, high
// effort, and a much smaller action budget.
func NewReasoningLLM(cfg config.LLMConfig, gameID string, sink Sink) *LLM {
	l := NewLLM(cfg, gameID, sink)
	l.kind = "reasoningllm"
	l.model = "o3"
	l.maxActions = 50
	l.requiresTools = true
	l.reasoningEffort = "high"
	return l
}

// NewGuidedLLM primes the model with human-written game rules to raise
// the success rate.
func NewGuidedLLM(cfg config.LLMConfig, gameID string, sink Sink) *LLM {
	l := NewLLM(cfg, gameID, sink)
	l.kind = "guidedllm"
	l.model = "o3"
	l.maxActions = 200
	l.requiresTools = true
	l.reasoningEffort = "high"
	l.userPrompt = buildGuidedPrompt
	return l
}

func messageLimit(cfg config.LLMConfig) int {
	if cfg.MessageLimit > 0 {
		return cfg.MessageLimit
	}
	return 10
}

func (l *LLM) Name() string {
	obs := "no-observe"
	if l.observe {
		obs = "with-observe"
	}
	name := fmt.Sprintf("%s.%s.%s", l.kind, l.model, obs)
	if l.reasoningEffort != "" {
		name += "." + l.reasoningEffort
	}
	return name
}

func (l *LLM) MaxActions() int {
	return l.maxActions
}

func (l *LLM) IsDone(frames []game.FrameData, latest game.FrameData) bool {
	return latest.State == game.StateWin
}

func (l *LLM) ChooseAction(ctx context.Context, frames []game.FrameData, latest game.FrameData) (game.GameAction, error) {
	// First turn: manually seed the conversation with a RESET call so the
	// model sees a consistent action/response transcript from the start.
	if len(l.messages) == 0 {
		l.push(chatMessage{Role: "user", Content: l.userPrompt()})
		l.push(l.syntheticResetCall())
		return game.GameAction{ID: game.ActionReset, GameID: l.gameID}, nil
	}

	// Feed the frame produced by the previous action back as the
	// function/tool response.
	l.push(l.frameResponse(latest))

	if l.observe {
		slog.Info("sending to assistant for observation", "game", l.gameID)
		msg, tokens, err := l.chat.complete(ctx, chatRequest{
			Model:           l.model,
			Messages:        l.messages,
			ReasoningEffort: l.reasoningEffort,
		})
		if err != nil {
			return game.GameAction{}, fmt.Errorf("observation completion: %w", err)
		}
		l.trackTokens(tokens, msg.Content)
		slog.Info("assistant observation", "game", l.gameID, "content", msg.Content)
		l.push(chatMessage{Role: "assistant", Content: msg.Content})
	}

	l.push(chatMessage{Role: "user", Content: l.userPrompt()})

	name, arguments, err := l.requestAction(ctx)
	if err != nil {
		return game.GameAction{}, err
	}

	id, err := game.ParseActionID(name)
	if err != nil {
		return game.GameAction{}, fmt.Errorf("assistant chose unknown action: %w", err)
	}

	action := game.GameAction{ID: id, GameID: l.gameID}
	if arguments != "" && id.Complex() {
		var args map[string]any
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			slog.Warn("json parsing error on assistant arguments", "game", l.gameID, "error", err)
		} else {
			// The schema declares x/y as strings, but models send numbers
			// too; accept both.
			action.X = coordinate(args["x"])
			action.Y = coordinate(args["y"])
		}
	}
	return action, nil
}

func coordinate(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0
		}
		return i
	}
	return 0
}

// requestAction asks the model for the next action via a tool or function
// call and returns the chosen name and raw arguments.
func (l *LLM) requestAction(ctx context.Context) (string, string, error) {
	slog.Info("sending to assistant for action", "game", l.gameID)

	req := chatRequest{
		Model:           l.model,
		Messages:        l.messages,
		ReasoningEffort: l.reasoningEffort,
	}
	if l.requiresTools {
		req.Tools = buildTools()
		req.ToolChoice = "required"
	} else {
		req.Functions = buildFunctions()
		req.FunctionCall = "auto"
	}

	msg, tokens, err := l.chat.complete(ctx, req)
	if err != nil {
		return "", "", fmt.Errorf("action completion: %w", err)
	}
	l.trackTokens(tokens, "")
	l.push(msg)

	// Default when the model declines to call an action.
	name := game.Action5.String()
	arguments := ""

	switch {
	case len(msg.ToolCalls) > 0:
		call := msg.ToolCalls[0]
		l.lastToolCallID = call.ID
		name = call.Function.Name
		arguments = call.Function.Arguments

		// Only one action per turn is allowed; surplus calls get an
		// error response so the transcript stays coherent.
		for _, extra := range msg.ToolCalls[1:] {
			slog.Info("assistant called more than one action, only using the first", "game", l.gameID)
			l.push(chatMessage{
				Role:       "tool",
				ToolCallID: extra.ID,
				Content:    "Error: assistant can only call one action (tool) at a time. default to only the first chosen action.",
			})
		}
	case msg.FunctionCall != nil:
		name = msg.FunctionCall.Name
		arguments = msg.FunctionCall.Arguments
	default:
		slog.Warn("assistant did not call an action, defaulting", "game", l.gameID, "default", name)
	}

	slog.Debug("assistant action", "game", l.gameID, "name", name, "arguments", arguments)
	return name, arguments, nil
}

func (l *LLM) syntheticResetCall() chatMessage {
	if l.requiresTools {
		return chatMessage{
			Role: "assistant",
			ToolCalls: []toolCall{{
				ID:       l.lastToolCallID,
				Type:     "function",
				Function: functionCall{Name: game.ActionReset.String(), Arguments: "{}"},
			}},
		}
	}
	return chatMessage{
		Role:         "assistant",
		FunctionCall: &functionCall{Name: game.ActionReset.String(), Arguments: "{}"},
	}
}

func (l *LLM) frameResponse(latest game.FrameData) chatMessage {
	content := buildFramePrompt(latest)
	if l.requiresTools {
		return chatMessage{Role: "tool", ToolCallID: l.lastToolCallID, Content: content}
	}
	return chatMessage{Role: "function", Name: latest.ActionInput.ID.String(), Content: content}
}

// push appends to the conversation window, trimming FIFO to the message
// limit. Trimming must never leave a tool response stranded at index 0,
// or the next completion call will be rejected.
func (l *LLM) push(msg chatMessage) {
	l.messages = append(l.messages, msg)
	if len(l.messages) > l.messageLimit {
		l.messages = l.messages[len(l.messages)-l.messageLimit:]
	}
	if l.requiresTools {
		for len(l.messages) > 0 && l.messages[0].Role == "tool" {
			l.messages = l.messages[1:]
		}
	}
}

func (l *LLM) trackTokens(tokens int, message string) {
	l.tokenCounter += tokens
	if l.sink != nil {
		_ = l.sink.Record(map[string]any{
			"tokens":       tokens,
			"total_tokens": l.tokenCounter,
			"assistant":    message,
		})
	}
	slog.Info("token usage", "game", l.gameID, "tokens", tokens, "total", l.tokenCounter)
}

// Cleanup records the prompt configuration so a session log is
// self-describing.
func (l *LLM) Cleanup(latest game.FrameData) {
	if l.sink == nil {
		return
	}
	meta := map[string]any{
		"llm_user_prompt":      l.userPrompt(),
		"llm_tool_resp_prompt": buildFramePrompt(latest),
	}
	if l.requiresTools {
		meta["llm_tools"] = buildTools()
	} else {
		meta["llm_tools"] = buildFunctions()
	}
	_ = l.sink.Record(meta)
}

func buildFunctions() []functionDef {
	emptyParams := map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"required":             []string{},
		"additionalProperties": false,
	}
	return []functionDef{
		{
			Name:        game.ActionReset.String(),
			Description: "Start or restart a game. Must be called first when NOT_PLAYED or after GAME_OVER to play again.",
			Parameters:  emptyParams,
		},
		{
			Name:        game.Action1.String(),
			Description: "Send this simple input action (1, A, Left).",
			Parameters:  emptyParams,
		},
		{
			Name:        game.Action2.String(),
			Description: "Send this simple input action (2, D, Right).",
			Parameters:  emptyParams,
		},
		{
			Name:        game.Action3.String(),
			Description: "Send this simple input action (3, W, Up).",
			Parameters:  emptyParams,
		},
		{
			Name:        game.Action4.String(),
			Description: "Send this simple input action (4, S, Down).",
			Parameters:  emptyParams,
		},
		{
			Name:        game.Action5.String(),
			Description: "Send this simple input action (5, Enter, Spacebar, Delete).",
			Parameters:  emptyParams,
		},
		{
			Name:        game.Action6.String(),
			Description: "Send this complex input action (6, Click, Point).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"x": map[string]any{
						"type":        "string",
						"description": "Coordinate X which must be Int<0,63>",
					},
					"y": map[string]any{
						"type":        "string",
						"description": "Coordinate Y which must be Int<0,63>",
					},
				},
				"required":             []string{"x", "y"},
				"additionalProperties": false,
			},
		},
	}
}

func buildTools() []toolDef {
	functions := buildFunctions()
	tools := make([]toolDef, 0, len(functions))
	for _, f := range functions {
		tools = append(tools, toolDef{
			Type: "function",
			Function: toolFunction{
				Name:        f.Name,
				Description: f.Description,
				Parameters:  f.Parameters,
				Strict:      true,
			},
		})
	}
	return tools
}

func buildUserPrompt() string {
	return `# CONTEXT:
You are an agent playing a dynamic game. Your objective is to
WIN and avoid GAME_OVER while minimizing actions.

One action produces one Frame. One Frame is made of one or more sequential
Grids. Each Grid is a matrix size INT<0,63> by INT<0,63> filled with
INT<0,15> values.

# TURN:
Call exactly one action.`
}

func buildGuidedPrompt() string {
	return `# CONTEXT:
You are an agent playing a dynamic game. Your objective is to
WIN and avoid GAME_OVER while minimizing actions.

One action produces one Frame. One Frame is made of one or more sequential
Grids. Each Grid is a matrix size INT<0,63> by INT<0,63> filled with
INT<0,15> values.

You are playing a game called LockSmith. Rules and strategy:
* RESET: start over, ACTION1: move left, ACTION2: move right, ACTION3: move up, ACTION4: move down (ACTION5 and ACTION6 do nothing in this game)
* you may may one action per turn
* your goal is find and collect a matching key then touch the exit door
* 6 levels total, score shows which level, complete all levels to win (grid row 62)
* start each level with limited energy. you GAME_OVER if you run out (grid row 61)
* the player is a 4x4 square: [[X,X,X,X],[0,0,0,X],[4,4,4,X],[4,4,4,X]] where X is transparent to the background
* the grid represents a birds-eye view of the level
* walls are made of INT<10>, you cannot move through a wall
* walkable floor area is INT<8>
* you can refill energy by touching energy pills (a 2x2 of INT<6>)
* current key is shown in bottom-left of entire grid
* the exit door is a 4x4 square with INT<11> border
* to find a new key shape, touch the key rotator, a 4x4 square denoted by INT<9> and INT<4> in the top-left corner of the square
* to find a new key color, touch the color rotator, a 4x4 square denoted by INT<9> and INT<2> and in the bottom-left corner of the square
* to rotate more than once, move 1 space away from the rotator and back on
* continue rotating the shape and color of the key until the key matches the one inside the exit door (scaled down 2X)
* if the grid does not change after an action, you probably tried to move into a wall

An example of a good strategy observation:
The player 4x4 made of INT<4> and INT<0> is standing below a wall of INT<10>, so I cannot move up anymore and should
move left towards the rotator with INT<11>.

# TURN:
Call exactly one action.`
}

func buildFramePrompt(latest game.FrameData) string {
	return fmt.Sprintf(`# State:
%s

# Score:
%d

# Frame:
%s

# TURN:
Reply with a few sentences of plain-text strategy observation about the frame to inform your next action.`,
		latest.State, latest.Score, prettyPrintGrids(latest.Frame))
}

func prettyPrintGrids(frame [][][]int) string {
	var sb strings.Builder
	for i, grid := range frame {
		fmt.Fprintf(&sb, "Grid %d:\n", i)
		for _, row := range grid {
			fmt.Fprintf(&sb, "  %v\n", row)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
