package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fluxlab/curator/internal/api"
	"github.com/fluxlab/curator/internal/auth"
	"github.com/fluxlab/curator/internal/catalog"
	"github.com/fluxlab/curator/internal/config"
	"github.com/fluxlab/curator/internal/doctor"
	"github.com/fluxlab/curator/internal/events"
	"github.com/fluxlab/curator/internal/extract"
	"github.com/fluxlab/curator/internal/history"
	"github.com/fluxlab/curator/internal/ledger"
	"github.com/fluxlab/curator/internal/lock"
	"github.com/fluxlab/curator/internal/log"
	"github.com/fluxlab/curator/internal/pipeline"
	"github.com/fluxlab/curator/internal/runner"
	"github.com/fluxlab/curator/internal/scan"
	"github.com/fluxlab/curator/internal/session"
	"github.com/fluxlab/curator/internal/tui/watch"
)

var version = "0.1.0-dev"

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "run":
		return runRun(args)
	case "batch":
		return runBatch(args)
	case "doctor":
		return runDoctor(args)
	case "config":
		return runConfigNoun(args)
	case "watch":
		return runWatch(args)
	case "version", "--version":
		fmt.Printf("curator %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Println("Usage: curator <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run       Run the watch-and-register service (continuous or daily mode)")
	fmt.Println("  batch     Run exactly one processing cycle and exit")
	fmt.Println("  doctor    Validate configuration and runtime prerequisites")
	fmt.Println("  config    Manage config checksums (lock, check)")
	fmt.Println("  watch     Live terminal monitor (requires the API enabled)")
	fmt.Println("  version   Print version")
}

// loadConfig resolves --config or falls back to discovery.
func loadConfig(configPath string) (*config.Config, string, error) {
	if configPath == "" {
		discovered, err := config.Discover()
		if err != nil {
			return nil, "", fmt.Errorf("discover config: %w", err)
		}
		configPath = discovered
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, "", err
	}
	return cfg, configPath, nil
}

// bootstrap assembles the shared pipeline pieces used by run and batch.
type app struct {
	cfg     *config.Config
	hub     *events.Hub
	session *session.Session
	client  catalog.Client
	loop    *pipeline.Loop
	history *history.Store
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func bootstrap(ctx context.Context, cfg *config.Config, withHistory bool) (*app, error) {
	logger := log.Get()

	led, err := ledger.Open(cfg.Ledger.Path, ledgerKind(cfg), log.WithComponent("ledger"))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	scanner, err := scan.New(cfg.Watch.Directory, scan.Options{
		Mode:    scan.Mode(cfg.Watch.Mode),
		Prefix:  cfg.Watch.Prefix,
		Exclude: cfg.Watch.Exclude,
	}, log.WithComponent("scan"))
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}

	a := &app{
		cfg:     cfg,
		hub:     events.NewHub(256),
		session: session.New(cfg.Catalog.Context, cfg.Catalog.Collection),
		client:  catalog.NewRESTClient(cfg.Catalog.Endpoint, log.Get()),
	}

	if withHistory && cfg.History.Path != "" {
		db, err := history.OpenSQLite(ctx, cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		a.history = history.NewStore(db, logger)
	}

	a.loop = pipeline.NewLoop(cfg, scanner, led, extract.Default(), a.client,
		a.session, pipeline.NewState(), a.hub, a.history, logger)
	return a, nil
}

func ledgerKind(cfg *config.Config) ledger.Kind {
	if cfg.Watch.Mode == config.WatchDirectories {
		return ledger.Directories
	}
	return ledger.Files
}

// unattendedLogin logs in with configured credentials and selects the
// configured context, for modes with no operator present.
func unattendedLogin(ctx context.Context, a *app, logger *slog.Logger) {
	if a.cfg.Catalog.Username == "" {
		logger.Warn("no catalog credentials configured, records will fail until an operator logs in")
		return
	}
	if err := a.client.Login(ctx, a.cfg.Catalog.Username, a.cfg.Catalog.Password); err != nil {
		logger.Warn("catalog login failed, candidates will be retried", "error", err)
		return
	}
	a.session.SetLogin(a.cfg.Catalog.Username)
	if a.cfg.Catalog.Context != "" {
		if err := a.client.SetContext(ctx, a.cfg.Catalog.Context); err != nil {
			logger.Warn("context selection failed", "context", a.cfg.Catalog.Context, "error", err)
		}
	}
	logger.Info("catalog session established", "user", a.cfg.Catalog.Username)
}

func runRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("curator starting", "version", version, "config", resolved, "mode", cfg.Service.Mode)

	pidLock, err := lock.Acquire(cfg.Ledger.LockPath)
	if err != nil {
		logger.Error("failed to acquire lock", "path", cfg.Ledger.LockPath, "error", err)
		return 1
	}
	defer pidLock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := bootstrap(ctx, cfg, true)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer a.close()

	unattendedLogin(ctx, a, logger)

	if a.history != nil {
		if err := a.history.Prune(ctx, cfg.History.Retention); err != nil {
			logger.Warn("history prune failed", "error", err)
		}
	}

	worker := runner.New(cfg, a.loop, a.hub, log.Get())
	if err := worker.Start(ctx); err != nil {
		logger.Error("worker start failed", "error", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	if cfg.API.Enabled {
		tokens := make([]auth.TokenConfig, 0, len(cfg.API.Auth.Tokens))
		for _, t := range cfg.API.Auth.Tokens {
			tokens = append(tokens, auth.TokenConfig{Token: t.Token, Scopes: t.Scopes})
		}
		apiServer := api.New(api.Config{
			Listen: cfg.API.Listen,
			APIKey: cfg.API.Auth.APIKey,
			Tokens: tokens,
		}, worker, a.loop.State(), a.session, a.client, a.history, a.hub, log.Get())
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	logger.Info("curator running (press Ctrl+C to stop)")

	exit := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		exit = 1
	}

	worker.Stop()
	cancel()
	logger.Info("curator stopped")
	return exit
}

func runBatch(args []string) int {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("batch")
	logger.Info("batch cycle starting", "config", resolved)

	pidLock, err := lock.Acquire(cfg.Ledger.LockPath)
	if err != nil {
		logger.Error("failed to acquire lock", "path", cfg.Ledger.LockPath, "error", err)
		return 1
	}
	defer pidLock.Release()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := bootstrap(ctx, cfg, true)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer a.close()

	unattendedLogin(ctx, a, logger)

	stats, err := a.loop.RunCycle(ctx)
	if err != nil {
		logger.Error("cycle failed", "error", err)
		return 1
	}

	logger.Info("batch cycle finished",
		"total", stats.Total, "succeeded", stats.Succeeded, "failed", stats.Failed)
	return 0
}

func runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	jsonOut := fs.Bool("json", false, "Output validation report as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	result := doctor.New(cfg).Validate()

	if *jsonOut {
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("config: %s\n", resolved)
		for _, e := range result.Errors {
			fmt.Printf("  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		}
		for _, w := range result.Warnings {
			fmt.Printf("  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		}
		if result.Valid {
			fmt.Println("  OK")
		}
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: curator config <lock|check> [--config PATH]")
		return 1
	}
	action := args[0]
	fs := flag.NewFlagSet("config "+action, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	_, resolved, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	switch action {
	case "lock":
		hash, err := config.WriteChecksum(resolved)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write checksum: %v\n", err)
			return 1
		}
		fmt.Printf("locked %s (blake3 %s)\n", resolved, hash[:16])
		return 0
	case "check":
		if err := config.VerifyChecksum(resolved); err != nil {
			fmt.Fprintf(os.Stderr, "Checksum verification failed: %v\n", err)
			return 1
		}
		fmt.Println("checksum ok")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://127.0.0.1:8484", "Curator API URL")
	apiKey := fs.String("api-key", os.Getenv("CURATOR_API_KEY"), "API bearer token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: API key required. Use --api-key or CURATOR_API_KEY env var.")
		return 1
	}

	m := watch.New(*apiURL, *apiKey)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}
