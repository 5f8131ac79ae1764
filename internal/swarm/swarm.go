// Package swarm runs one agent per game id concurrently under a single
// scorecard, and owns that scorecard's lifecycle: opened once before any
// agent starts, closed exactly once no matter how the run ends.
package swarm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mtzanidakis/gridswarm/internal/agent"
	"github.com/mtzanidakis/gridswarm/internal/api"
	"github.com/mtzanidakis/gridswarm/internal/config"
	"github.com/mtzanidakis/gridswarm/internal/game"
	"github.com/mtzanidakis/gridswarm/internal/natsbus"
	"github.com/mtzanidakis/gridswarm/internal/recorder"
	"github.com/mtzanidakis/gridswarm/internal/registry"
	"github.com/mtzanidakis/gridswarm/internal/store"
	"github.com/mtzanidakis/gridswarm/internal/trace"
)

// Options carries the optional side services; any of them may be nil.
type Options struct {
	Store  *store.Store
	Bus    *natsbus.Client
	Tracer *trace.Tracer
	Tags   []string
}

type Swarm struct {
	client     *api.Client
	reg        *registry.Registry
	agentName  string
	games      []string
	recordings config.RecordingsConfig
	opts       Options

	runID  string
	cardID string

	mu        sync.Mutex
	agents    map[string]*agent.Agent
	recorders []*recorder.Recorder

	finalizeOnce sync.Once
	finalCard    *game.Scorecard
	finalStatus  string
}

func New(client *api.Client, reg *registry.Registry, agentName string, games []string, recordings config.RecordingsConfig, opts Options) *Swarm {
	if opts.Tracer == nil {
		opts.Tracer = trace.Noop()
	}
	return &Swarm{
		client:     client,
		reg:        reg,
		agentName:  agentName,
		games:      games,
		recordings: recordings,
		opts:       opts,
		runID:      uuid.New().String(),
		agents:     make(map[string]*agent.Agent),
	}
}

func (s *Swarm) RunID() string { return s.runID }

// CardID returns the scorecard handle, or "" before the run opens it.
func (s *Swarm) CardID() string { return s.cardID }

// Run opens the scorecard, drives every agent to completion, and
// finalizes. It returns the first agent error, if any.
func (s *Swarm) Run(ctx context.Context) error {
	if len(s.games) == 0 {
		return fmt.Errorf("no games to play")
	}

	cardID, err := s.client.OpenScorecard(ctx, s.opts.Tags)
	if err != nil {
		return fmt.Errorf("open scorecard: %w", err)
	}
	s.cardID = cardID
	slog.Info("scorecard opened", "card_id", cardID, "agent", s.agentName, "games", len(s.games))

	if s.opts.Store != nil {
		err := s.opts.Store.SaveRun(&store.Run{
			ID:     s.runID,
			Agent:  s.agentName,
			CardID: cardID,
			Games:  s.games,
			Status: "running",
		})
		if err != nil {
			slog.Error("save run failed", "run", s.runID, "error", err)
		}
	}
	s.publishEvent("run_started", map[string]any{"agent": s.agentName, "games": s.games})

	if err := s.buildAgents(); err != nil {
		s.Finalize(context.WithoutCancel(ctx), "failed")
		return err
	}

	// One independent unit of execution per agent; agents share nothing.
	var wg sync.WaitGroup
	errCh := make(chan error, len(s.games))
	s.mu.Lock()
	agents := make([]*agent.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		agents = append(agents, a)
	}
	s.mu.Unlock()

	for _, a := range agents {
		wg.Add(1)
		go func(a *agent.Agent) {
			defer wg.Done()
			if err := a.Run(ctx); err != nil {
				slog.Error("agent failed", "agent", a.Name(), "error", err)
				errCh <- err
			}
		}(a)
	}
	wg.Wait()
	close(errCh)

	status := "completed"
	var firstErr error
	for err := range errCh {
		if firstErr == nil {
			firstErr = err
			status = "failed"
		}
	}
	if ctx.Err() != nil {
		status = "interrupted"
	}

	s.Finalize(context.WithoutCancel(ctx), status)
	return firstErr
}

func (s *Swarm) buildAgents() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	playback := s.reg.IsPlayback(s.agentName)

	for _, gameID := range s.games {
		// The recorder is created after the policy because the recording
		// prefix embeds the policy name; the sink indirection lets the
		// policy record through it anyway.
		sink := &lazySink{}
		policy, err := s.reg.Resolve(s.agentName, gameID, sink)
		if err != nil {
			return fmt.Errorf("resolve agent %s for %s: %w", s.agentName, gameID, err)
		}

		cfg := agent.Config{
			Policy: policy,
			Client: s.client,
			GameID: gameID,
			CardID: s.cardID,
			Bus:    s.opts.Bus,
			Tracer: s.opts.Tracer,
		}

		// Playback never re-records the session it is replaying.
		if s.recordings.Enabled && !playback {
			rec, err := recorder.New(s.recordings.Dir, gameID+"."+policy.Name(), "")
			if err != nil {
				return fmt.Errorf("create recording for %s: %w", gameID, err)
			}
			slog.Info("created new recording", "game", gameID, "recording", rec.Name())
			sink.rec = rec
			cfg.Recorder = rec
			s.recorders = append(s.recorders, rec)
		}

		s.agents[gameID] = agent.New(cfg)
	}
	return nil
}

// Finalize closes the scorecard and runs one cleanup pass over every
// agent. It is safe to call from the interrupt handler while agents are
// still mid-turn; the single-use guard makes the close happen exactly
// once across both control paths.
func (s *Swarm) Finalize(ctx context.Context, status string) *game.Scorecard {
	s.finalizeOnce.Do(func() {
		s.finalStatus = status

		if s.cardID != "" {
			card, err := s.client.CloseScorecard(ctx, s.cardID)
			if err != nil {
				slog.Error("close scorecard failed", "card_id", s.cardID, "error", err)
			} else {
				s.finalCard = &card
			}
		}

		s.mu.Lock()
		agents := make([]*agent.Agent, 0, len(s.agents))
		for _, a := range s.agents {
			agents = append(agents, a)
		}
		recorders := s.recorders
		s.mu.Unlock()

		for _, a := range agents {
			a.Cleanup(s.finalCard)
			if s.opts.Store != nil {
				err := s.opts.Store.SaveSession(&store.Session{
					RunID:     s.runID,
					GameID:    a.GameID(),
					GUID:      a.GUID(),
					Recording: a.RecordingName(),
					Actions:   a.ActionCounter(),
					Score:     a.Score(),
					State:     string(a.State()),
				})
				if err != nil {
					slog.Error("save session failed", "game", a.GameID(), "error", err)
				}
			}
		}

		for _, rec := range recorders {
			if err := rec.Close(); err != nil {
				slog.Warn("close recording failed", "recording", rec.Name(), "error", err)
			}
		}

		if s.opts.Store != nil {
			var scorecard json.RawMessage
			if s.finalCard != nil {
				scorecard, _ = json.Marshal(s.finalCard)
			}
			if err := s.opts.Store.UpdateRun(s.runID, status, scorecard); err != nil {
				slog.Error("update run failed", "run", s.runID, "error", err)
			}
		}

		s.publishEvent("run_"+status, map[string]any{"agent": s.agentName})
		slog.Info("swarm finished", "run", s.runID, "status", status)
	})
	return s.finalCard
}

// Scorecard returns the final scorecard once Finalize has run.
func (s *Swarm) Scorecard() *game.Scorecard { return s.finalCard }

func (s *Swarm) publishEvent(eventType string, data map[string]any) {
	if s.opts.Bus == nil {
		return
	}
	event := map[string]any{
		"type":   eventType,
		"run_id": s.runID,
		"data":   data,
	}
	if err := s.opts.Bus.PublishJSON(natsbus.TopicRunEvents(s.runID), event); err != nil {
		slog.Debug("run event publish failed", "run", s.runID, "error", err)
	}
}

// lazySink forwards policy records to a recorder assigned after the
// policy is built. Records before assignment (or with recording
// disabled) are dropped.
type lazySink struct {
	rec *recorder.Recorder
}

func (s *lazySink) Record(entry any) error {
	if s.rec == nil {
		return nil
	}
	return s.rec.Record(entry)
}
