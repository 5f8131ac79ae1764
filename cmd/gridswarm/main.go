package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/mtzanidakis/gridswarm/internal/api"
	"github.com/mtzanidakis/gridswarm/internal/config"
	"github.com/mtzanidakis/gridswarm/internal/game"
	"github.com/mtzanidakis/gridswarm/internal/natsbus"
	"github.com/mtzanidakis/gridswarm/internal/recorder"
	"github.com/mtzanidakis/gridswarm/internal/registry"
	"github.com/mtzanidakis/gridswarm/internal/scheduler"
	"github.com/mtzanidakis/gridswarm/internal/store"
	"github.com/mtzanidakis/gridswarm/internal/swarm"
	"github.com/mtzanidakis/gridswarm/internal/telegram"
	"github.com/mtzanidakis/gridswarm/internal/trace"
	"github.com/mtzanidakis/gridswarm/internal/web"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("gridswarm %s\n", version)
	case "run":
		err = runCmd(os.Args[2:])
	case "serve":
		err = serveCmd()
	case "list":
		err = listCmd()
	case "archive":
		err = archiveCmd(os.Args[2:])
	case "restore":
		err = restoreCmd(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		slog.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: gridswarm <command>

Commands:
  run        Run an agent swarm over one or more games
  serve      Run scheduled swarms until interrupted
  list       List available games and registered agents
  archive    Archive the recordings directory to a .tar.zst file
  restore    Restore recordings from a .tar.zst archive
  version    Print version
`)
}

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	agentName := fs.String("agent", "", "agent to run (see 'gridswarm list')")
	gameFlag := fs.String("game", "", "comma-separated game id prefixes; empty plays every available game")
	tagsFlag := fs.String("tags", "", "comma-separated scorecard tags")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *agentName == "" {
		return fmt.Errorf("missing -agent flag")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting gridswarm", "version", version, "agent", *agentName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := trace.Setup(ctx, cfg.Trace)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tracer.Shutdown(context.Background())

	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	var bus *natsbus.Bus
	var busClient *natsbus.Client
	if cfg.Bus.Enabled {
		bus, err = natsbus.New(cfg.Bus)
		if err != nil {
			return fmt.Errorf("init nats: %w", err)
		}
		defer bus.Close()
		busClient, err = natsbus.NewClient(bus)
		if err != nil {
			return fmt.Errorf("init nats client: %w", err)
		}
		slog.Info("nats started", "port", cfg.Bus.Port)
	}

	if cfg.Web.Enabled {
		srv := web.NewServer(db, bus, cfg.Web, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
	}

	client := api.New(cfg.API)

	reg := registry.New(cfg.LLM, cfg.Recordings.Dir)
	if err := reg.Sync(); err != nil {
		return fmt.Errorf("sync registry: %w", err)
	}
	if !reg.Has(*agentName) {
		return fmt.Errorf("unknown agent %q; run 'gridswarm list'", *agentName)
	}

	games, err := resolveGames(ctx, client, reg, *agentName, *gameFlag)
	if err != nil {
		return err
	}

	var tags []string
	if *tagsFlag != "" {
		tags = strings.Split(*tagsFlag, ",")
	}

	sw := swarm.New(client, reg, *agentName, games, cfg.Recordings, swarm.Options{
		Store:  db,
		Bus:    busClient,
		Tracer: tracer,
		Tags:   tags,
	})

	runErr := sw.Run(ctx)

	if card := sw.Scorecard(); card != nil {
		printScorecard(cfg.API.RootURL, card)
	}
	notifyRun(cfg.Telegram, db, sw.RunID())

	return runErr
}

// resolveGames derives the game set: explicit prefixes are matched
// against the server's available games; a playback agent with no -game
// flag falls back to the game encoded in its recording name.
func resolveGames(ctx context.Context, client *api.Client, reg *registry.Registry, agentName, gameFlag string) ([]string, error) {
	available, err := client.ListGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}

	if gameFlag == "" {
		if reg.IsPlayback(agentName) {
			return []string{recorder.GamePrefix(agentName)}, nil
		}
		if len(available) == 0 {
			return nil, fmt.Errorf("no games available")
		}
		return available, nil
	}

	var games []string
	for _, prefix := range strings.Split(gameFlag, ",") {
		prefix = strings.TrimSpace(prefix)
		matched := false
		for _, g := range available {
			if strings.HasPrefix(g, prefix) {
				games = append(games, g)
				matched = true
			}
		}
		// A playback agent may replay a game the server no longer lists.
		if !matched && reg.IsPlayback(agentName) {
			games = append(games, prefix)
			matched = true
		}
		if !matched {
			return nil, fmt.Errorf("no available game matches %q", prefix)
		}
	}
	return games, nil
}

// serveCmd runs the scheduled swarms from config until interrupted.
func serveCmd() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(cfg.Scheduler.Runs) == 0 {
		return fmt.Errorf("no scheduled runs configured")
	}

	slog.Info("starting gridswarm server", "version", version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := trace.Setup(ctx, cfg.Trace)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tracer.Shutdown(context.Background())

	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	var bus *natsbus.Bus
	var busClient *natsbus.Client
	if cfg.Bus.Enabled {
		bus, err = natsbus.New(cfg.Bus)
		if err != nil {
			return fmt.Errorf("init nats: %w", err)
		}
		defer bus.Close()
		busClient, err = natsbus.NewClient(bus)
		if err != nil {
			return fmt.Errorf("init nats client: %w", err)
		}
		slog.Info("nats started", "port", cfg.Bus.Port)
	}

	if cfg.Web.Enabled {
		srv := web.NewServer(db, bus, cfg.Web, version)
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("web server error", "error", err)
			}
		}()
	}

	client := api.New(cfg.API)

	exec := func(ctx context.Context, run config.ScheduledRun) error {
		reg := registry.New(cfg.LLM, cfg.Recordings.Dir)
		if err := reg.Sync(); err != nil {
			return fmt.Errorf("sync registry: %w", err)
		}
		if !reg.Has(run.Agent) {
			return fmt.Errorf("unknown agent %q", run.Agent)
		}
		games, err := resolveGames(ctx, client, reg, run.Agent, strings.Join(run.Games, ","))
		if err != nil {
			return err
		}
		sw := swarm.New(client, reg, run.Agent, games, cfg.Recordings, swarm.Options{
			Store:  db,
			Bus:    busClient,
			Tracer: tracer,
			Tags:   []string{"scheduled", run.Name},
		})
		runErr := sw.Run(ctx)
		notifyRun(cfg.Telegram, db, sw.RunID())
		return runErr
	}

	sched := scheduler.New(cfg.Scheduler, exec, bus)
	sched.Start(ctx)
	return nil
}

func listCmd() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	reg := registry.New(cfg.LLM, cfg.Recordings.Dir)
	if err := reg.Sync(); err != nil {
		return fmt.Errorf("sync registry: %w", err)
	}

	fmt.Println("Agents:")
	for _, name := range reg.Names() {
		if reg.IsPlayback(name) {
			fmt.Printf("  %s (playback)\n", name)
		} else {
			fmt.Printf("  %s\n", name)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT)
	defer cancel()

	client := api.New(cfg.API)
	games, err := client.ListGames(ctx)
	if err != nil {
		return fmt.Errorf("list games: %w", err)
	}
	sort.Strings(games)

	fmt.Println("\nGames:")
	for _, g := range games {
		fmt.Printf("  %s\n", g)
	}
	return nil
}

func printScorecard(rootURL string, card *game.Scorecard) {
	fmt.Printf("\nScorecard %s\n", card.CardID)
	fmt.Printf("  won:     %d/%d\n", card.Won, card.Played)
	fmt.Printf("  score:   %d\n", card.Score)
	fmt.Printf("  actions: %d\n", card.TotalActions)
	fmt.Printf("  %s/scorecards/%s\n", rootURL, card.CardID)
}

func notifyRun(cfg config.TelegramConfig, db *store.Store, runID string) {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return
	}
	notifier, err := telegram.NewNotifier(cfg)
	if err != nil {
		slog.Error("init telegram notifier failed", "error", err)
		return
	}
	run, err := db.GetRun(runID)
	if err != nil || run == nil {
		slog.Error("load run for notification failed", "run", runID, "error", err)
		return
	}
	sessions, err := db.ListSessions(runID)
	if err != nil {
		slog.Error("load sessions for notification failed", "run", runID, "error", err)
		return
	}
	if err := notifier.RunFinished(context.Background(), run, sessions); err != nil {
		slog.Error("telegram notification failed", "run", runID, "error", err)
	}
}
