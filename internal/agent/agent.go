// Package agent drives one game session: a turn-taking state machine
// that applies a decision policy, submits actions over the network, and
// appends the resulting frames to an append-only history.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/mtzanidakis/gridswarm/internal/api"
	"github.com/mtzanidakis/gridswarm/internal/game"
	"github.com/mtzanidakis/gridswarm/internal/natsbus"
	"github.com/mtzanidakis/gridswarm/internal/trace"
)

// Recorder is the session log an agent appends frames and the trailing
// summary to.
type Recorder interface {
	Record(entry any) error
	Name() string
}

// Config wires one agent instance. Recorder, Bus and Tracer are optional.
type Config struct {
	Policy   Policy
	Client   *api.Client
	GameID   string
	CardID   string
	Recorder Recorder
	Bus      *natsbus.Client
	Tracer   *trace.Tracer
}

type Agent struct {
	policy Policy
	client *api.Client
	rec    Recorder
	bus    *natsbus.Client
	tracer *trace.Tracer

	gameID string
	cardID string
	guid   string

	frames        []game.FrameData
	actionCounter int
	startedAt     time.Time

	cleanedUp atomic.Bool
}

func New(cfg Config) *Agent {
	a := &Agent{
		policy: cfg.Policy,
		client: cfg.Client,
		rec:    cfg.Recorder,
		bus:    cfg.Bus,
		tracer: cfg.Tracer,
		gameID: cfg.GameID,
		cardID: cfg.CardID,
		frames: []game.FrameData{game.SeedFrame()},
	}
	if a.tracer == nil {
		a.tracer = trace.Noop()
	}
	return a
}

// Name combines the game id with the policy's session-name fragment.
func (a *Agent) Name() string {
	return a.gameID + "." + a.policy.Name()
}

func (a *Agent) GameID() string { return a.gameID }

func (a *Agent) GUID() string { return a.guid }

func (a *Agent) ActionCounter() int { return a.actionCounter }

// State is the latest observed lifecycle state.
func (a *Agent) State() game.GameState { return a.latest().State }

// Score is the latest observed score.
func (a *Agent) Score() int { return a.latest().Score }

// RecordingName is the session recording filename, or "" when recording
// is disabled.
func (a *Agent) RecordingName() string {
	if a.rec == nil {
		return ""
	}
	return a.rec.Name()
}

func (a *Agent) latest() game.FrameData {
	return a.frames[len(a.frames)-1]
}

// Run plays the game until the policy is done or the action budget is
// exhausted, then cleans up exactly once. Cancelling ctx stops the loop
// between turns; an in-flight network call is allowed to finish.
func (a *Agent) Run(ctx context.Context) error {
	a.startedAt = time.Now()
	_, sess := a.tracer.StartSession(ctx, a.Name(), a.gameID)

	outcome := trace.OutcomeSuccess
	var runErr error

	// Submission contexts survive an external interrupt: cancellation is
	// cooperative, checked between turns, never mid-request.
	submitCtx := context.WithoutCancel(ctx)

	for !a.policy.IsDone(a.frames, a.latest()) && a.actionCounter < a.policy.MaxActions() {
		if ctx.Err() != nil {
			slog.Info("agent interrupted", "game", a.gameID, "count", a.actionCounter)
			break
		}

		action, err := a.policy.ChooseAction(ctx, a.frames, a.latest())
		if err != nil {
			runErr = fmt.Errorf("choose action for %s: %w", a.gameID, err)
			outcome = trace.OutcomeError
			break
		}

		frame, err := a.client.SubmitAction(submitCtx, action, a.guid, a.cardID)
		if err != nil {
			// The turn is spent without state progress.
			slog.Warn("no frame this turn", "game", a.gameID, "action", action.ID.String(),
				"count", a.actionCounter, "error", err)
		} else {
			if err := a.appendFrame(frame); err != nil {
				runErr = err
				outcome = trace.OutcomeError
				break
			}
			slog.Info("frame received", "game", a.gameID, "action", action.ID.String(),
				"count", a.actionCounter, "score", frame.Score, "avg_fps", a.fps())
		}
		a.actionCounter++
	}

	if runErr == nil && a.actionCounter >= a.policy.MaxActions() {
		outcome = trace.OutcomeBudgetExhausted
	}

	a.Cleanup(nil)
	sess.End(outcome, a.actionCounter, a.Score())
	return runErr
}

// appendFrame appends to the history, adopts the session guid once
// observed, records the frame, and publishes telemetry. Recorder
// failures are fatal: a silently incomplete session log is worse than a
// dead agent.
func (a *Agent) appendFrame(frame game.FrameData) error {
	a.frames = append(a.frames, frame)
	if frame.GUID != "" {
		a.guid = frame.GUID
	}

	if a.rec != nil && !a.cleanedUp.Load() {
		if err := a.rec.Record(frame); err != nil {
			return fmt.Errorf("record frame for %s: %w", a.gameID, err)
		}
	}

	if a.bus != nil {
		event := map[string]any{
			"game_id": a.gameID,
			"agent":   a.Name(),
			"action":  frame.ActionInput.ID.String(),
			"count":   a.actionCounter,
			"score":   frame.Score,
			"state":   frame.State,
		}
		if err := a.bus.PublishJSON(natsbus.TopicGameFrames(a.gameID), event); err != nil {
			slog.Debug("frame telemetry publish failed", "game", a.gameID, "error", err)
		}
	}
	return nil
}

// Cleanup finishes the session: the policy's own cleanup hook runs
// first, then the trailing scorecard summary is recorded. Guarded so two
// control paths (the run loop and the interrupt handler) cannot run it
// twice.
func (a *Agent) Cleanup(card *game.Scorecard) {
	if !a.cleanedUp.CompareAndSwap(false, true) {
		return
	}

	a.policy.Cleanup(a.latest())

	if a.rec != nil {
		a.recordSummary(card)
		slog.Info("recording available", "agent", a.Name(), "recording", a.rec.Name())
	}

	if a.actionCounter >= a.policy.MaxActions() {
		slog.Info("exiting: agent reached action budget", "agent", a.Name(),
			"max_actions", a.policy.MaxActions(), "seconds", a.seconds(), "avg_fps", a.fps())
	} else {
		slog.Info("finishing: agent done", "agent", a.Name(),
			"actions", a.actionCounter, "seconds", a.seconds(), "avg_fps", a.fps())
	}
}

func (a *Agent) recordSummary(card *game.Scorecard) {
	var summary any
	if card != nil {
		if raw := card.Card(a.gameID); raw != nil {
			summary = raw
		}
	}
	if summary == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		doc, err := a.client.GetScorecard(ctx, a.cardID, a.gameID)
		if err != nil {
			slog.Warn("scorecard fetch for summary failed", "agent", a.Name(), "error", err)
			return
		}
		summary = doc
	}
	if err := a.rec.Record(summary); err != nil {
		slog.Error("record summary failed", "agent", a.Name(), "error", err)
	}
}

func (a *Agent) seconds() float64 {
	return math.Floor(time.Since(a.startedAt).Seconds()*100) / 100
}

func (a *Agent) fps() float64 {
	if a.actionCounter == 0 {
		return 0
	}
	elapsed := time.Since(a.startedAt).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	return math.Round(float64(a.actionCounter)/elapsed*100) / 100
}
