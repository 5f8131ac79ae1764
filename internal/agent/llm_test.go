package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mtzanidakis/gridswarm/internal/config"
	"github.com/mtzanidakis/gridswarm/internal/game"
)

func llmConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		BaseURL:      baseURL,
		Key:          "test-key",
		Model:        "gpt-4o-mini",
		MessageLimit: 10,
	}
}

func TestLLMVariantNames(t *testing.T) {
	cfg := llmConfig("http://unused")
	tests := []struct {
		policy *LLM
		want   string
	}{
		{NewLLM(cfg, "ls20", nil), "llm.gpt-4o-mini.with-observe"},
		{NewFastLLM(cfg, "ls20", nil), "fastllm.gpt-4o-mini.no-observe"},
		{NewReasoningLLM(cfg, "ls20", nil), "reasoningllm.o3.with-observe.high"},
		{NewGuidedLLM(cfg, "ls20", nil), "guidedllm.o3.with-observe.high"},
	}
	for _, tt := range tests {
		if got := tt.policy.Name(); got != tt.want {
			t.Errorf("expected name %q, got %q", tt.want, got)
		}
	}
}

func TestLLMVariantBudgets(t *testing.T) {
	cfg := llmConfig("http://unused")
	tests := []struct {
		policy *LLM
		want   int
	}{
		{NewLLM(cfg, "ls20", nil), 1000},
		{NewFastLLM(cfg, "ls20", nil), 100},
		{NewReasoningLLM(cfg, "ls20", nil), 50},
		{NewGuidedLLM(cfg, "ls20", nil), 200},
	}
	for _, tt := range tests {
		if got := tt.policy.MaxActions(); got != tt.want {
			t.Errorf("%s: expected budget %d, got %d", tt.policy.Name(), tt.want, got)
		}
	}
}

func TestLLMFirstTurnIsReset(t *testing.T) {
	// No server: the first turn must not need a completion call.
	l := NewLLM(llmConfig("http://unreachable.invalid"), "ls20", nil)

	action, err := l.ChooseAction(context.Background(), nil, game.SeedFrame())
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if action.ID != game.ActionReset {
		t.Fatalf("expected synthetic RESET, got %s", action.ID)
	}
	if len(l.messages) != 2 {
		t.Fatalf("expected seeded prompt + synthetic call, got %d messages", len(l.messages))
	}
	if l.messages[0].Role != "user" || l.messages[1].Role != "assistant" {
		t.Errorf("unexpected seed roles: %s, %s", l.messages[0].Role, l.messages[1].Role)
	}
}

func TestLLMChooseActionViaFunctionCall(t *testing.T) {
	var lastReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&lastReq)
		resp := map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role":          "assistant",
					"function_call": map[string]any{"name": "ACTION6", "arguments": `{"x":"7","y":"42"}`},
				},
			}},
			"usage": map[string]any{"total_tokens": 55},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	rec := &memRecorder{}
	l := NewFastLLM(llmConfig(srv.URL), "ls20", rec)

	// Seed turn.
	if _, err := l.ChooseAction(context.Background(), nil, game.SeedFrame()); err != nil {
		t.Fatalf("seed turn: %v", err)
	}

	playing := game.FrameData{GameID: "ls20", State: game.StateInProgress,
		ActionInput: game.ActionInput{ID: game.ActionReset}}
	action, err := l.ChooseAction(context.Background(), nil, playing)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}

	if action.ID != game.Action6 {
		t.Fatalf("expected ACTION6, got %s", action.ID)
	}
	if action.X != 7 || action.Y != 42 {
		t.Errorf("expected coords (7,42), got (%d,%d)", action.X, action.Y)
	}
	if len(lastReq.Functions) == 0 || lastReq.FunctionCall != "auto" {
		t.Error("fastllm must offer functions with auto function_call")
	}
	if l.tokenCounter != 55 {
		t.Errorf("expected tracked tokens 55, got %d", l.tokenCounter)
	}
	if rec.count() == 0 {
		t.Error("expected token usage recorded through sink")
	}
}

func TestLLMChooseActionViaToolCall(t *testing.T) {
	var lastReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&lastReq)
		resp := map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []map[string]any{
						{"id": "call_a", "type": "function",
							"function": map[string]any{"name": "ACTION3", "arguments": "{}"}},
						{"id": "call_b", "type": "function",
							"function": map[string]any{"name": "ACTION4", "arguments": "{}"}},
					},
				},
			}},
			"usage": map[string]any{"total_tokens": 10},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	l := NewReasoningLLM(llmConfig(srv.URL), "ls20", nil)

	if _, err := l.ChooseAction(context.Background(), nil, game.SeedFrame()); err != nil {
		t.Fatalf("seed turn: %v", err)
	}

	playing := game.FrameData{GameID: "ls20", State: game.StateInProgress,
		ActionInput: game.ActionInput{ID: game.ActionReset}}
	action, err := l.ChooseAction(context.Background(), nil, playing)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}

	// Only the first of several calls is used.
	if action.ID != game.Action3 {
		t.Fatalf("expected ACTION3, got %s", action.ID)
	}
	if l.lastToolCallID != "call_a" {
		t.Errorf("expected adopted tool call id, got %q", l.lastToolCallID)
	}
	if lastReq.ToolChoice != "required" {
		t.Error("reasoningllm must require a tool call")
	}
}

func TestLLMDoneOnWin(t *testing.T) {
	l := NewLLM(llmConfig("http://unused"), "ls20", nil)
	if !l.IsDone(nil, game.FrameData{State: game.StateWin}) {
		t.Error("expected done on WIN")
	}
	if l.IsDone(nil, game.FrameData{State: game.StateGameOver}) {
		t.Error("GAME_OVER is retryable, not done")
	}
}

func TestPushTrimsToMessageLimit(t *testing.T) {
	cfg := llmConfig("http://unused")
	cfg.MessageLimit = 4
	l := NewLLM(cfg, "ls20", nil)

	for i := 0; i < 10; i++ {
		l.push(chatMessage{Role: "user", Content: "m"})
	}
	if len(l.messages) != 4 {
		t.Fatalf("expected window of 4, got %d", len(l.messages))
	}
}

func TestPushNeverStrandsToolResponse(t *testing.T) {
	cfg := llmConfig("http://unused")
	cfg.MessageLimit = 3
	l := NewReasoningLLM(cfg, "ls20", nil)

	l.push(chatMessage{Role: "assistant"})
	l.push(chatMessage{Role: "tool", ToolCallID: "call_1"})
	l.push(chatMessage{Role: "tool", ToolCallID: "call_2"})
	// Trimming now would leave a tool response first; the repair pass
	// must drop it.
	l.push(chatMessage{Role: "user", Content: "next"})

	if len(l.messages) == 0 {
		t.Fatal("expected messages to remain")
	}
	if l.messages[0].Role == "tool" {
		t.Fatal("tool response stranded at window start")
	}
}

func TestLLMCleanupRecordsPromptMeta(t *testing.T) {
	rec := &memRecorder{}
	l := NewLLM(llmConfig("http://unused"), "ls20", rec)

	l.Cleanup(game.FrameData{State: game.StateGameOver})

	if rec.count() != 1 {
		t.Fatalf("expected one meta entry, got %d", rec.count())
	}
	meta, ok := rec.entries[0].(map[string]any)
	if !ok {
		t.Fatalf("unexpected entry type %T", rec.entries[0])
	}
	for _, key := range []string{"llm_user_prompt", "llm_tools", "llm_tool_resp_prompt"} {
		if _, ok := meta[key]; !ok {
			t.Errorf("meta entry missing %q", key)
		}
	}
}

func TestCoordinateParsing(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{float64(12), 12},
		{"34", 34},
		{" 7 ", 7},
		{"nope", 0},
		{nil, 0},
	}
	for _, tt := range tests {
		if got := coordinate(tt.in); got != tt.want {
			t.Errorf("coordinate(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
