// Package registry maps agent names to policy constructors. The mapping
// is explicit and populated at start-up: the built-in policies first,
// then one playback entry per recording found on disk, so every past
// recording is selectable as a synthetic agent.
package registry

import (
	"fmt"
	"sort"

	"github.com/mtzanidakis/gridswarm/internal/agent"
	"github.com/mtzanidakis/gridswarm/internal/config"
	"github.com/mtzanidakis/gridswarm/internal/recorder"
)

// Factory builds one policy instance for a game.
type Factory func(gameID string, sink agent.Sink) (agent.Policy, error)

type Registry struct {
	llm           config.LLMConfig
	recordingsDir string
	factories     map[string]Factory
}

func New(llm config.LLMConfig, recordingsDir string) *Registry {
	r := &Registry{
		llm:           llm,
		recordingsDir: recordingsDir,
		factories:     make(map[string]Factory),
	}

	r.factories["random"] = func(gameID string, _ agent.Sink) (agent.Policy, error) {
		return agent.NewRandom(gameID), nil
	}
	r.factories["llm"] = func(gameID string, sink agent.Sink) (agent.Policy, error) {
		return agent.NewLLM(r.llm, gameID, sink), nil
	}
	r.factories["fastllm"] = func(gameID string, sink agent.Sink) (agent.Policy, error) {
		return agent.NewFastLLM(r.llm, gameID, sink), nil
	}
	r.factories["reasoningllm"] = func(gameID string, sink agent.Sink) (agent.Policy, error) {
		return agent.NewReasoningLLM(r.llm, gameID, sink), nil
	}
	r.factories["guidedllm"] = func(gameID string, sink agent.Sink) (agent.Policy, error) {
		return agent.NewGuidedLLM(r.llm, gameID, sink), nil
	}

	return r
}

// Sync adds a playback entry for every recording currently on disk.
func (r *Registry) Sync() error {
	names, err := recorder.List(r.recordingsDir)
	if err != nil {
		return fmt.Errorf("list recordings: %w", err)
	}
	for _, name := range names {
		name := name
		r.factories[name] = func(gameID string, _ agent.Sink) (agent.Policy, error) {
			return agent.NewPlayback(r.recordingsDir, name, gameID)
		}
	}
	return nil
}

// Resolve builds the named policy for one game id.
func (r *Registry) Resolve(name, gameID string, sink agent.Sink) (agent.Policy, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown agent: %s", name)
	}
	return factory(gameID, sink)
}

// Has reports whether name resolves to a policy.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// Names lists every registered agent name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsPlayback reports whether name selects a recorded session rather than
// a live policy.
func (r *Registry) IsPlayback(name string) bool {
	return recorder.IsRecording(name)
}
