package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/agentgraph/internal/agents"
	"github.com/aristath/agentgraph/internal/chat"
	"github.com/aristath/agentgraph/internal/config"
	"github.com/aristath/agentgraph/internal/graph"
	"github.com/aristath/agentgraph/internal/logging"
	"github.com/aristath/agentgraph/internal/observability"
	"github.com/aristath/agentgraph/internal/persistence"
	"github.com/aristath/agentgraph/internal/render"
	"github.com/aristath/agentgraph/internal/session"
	"github.com/aristath/agentgraph/internal/stream"
	"github.com/aristath/agentgraph/internal/task"
	"github.com/aristath/agentgraph/internal/tui"
)

// bootstrapTimeout bounds the startup health check and directory refresh.
const bootstrapTimeout = 5 * time.Second

type options struct {
	prompt      string
	format      string
	noRenderer  bool
	projectPath string

	listAgents bool
	install    string
	remove     string
	apiKey     string
}

// agentCommand reports whether a one-shot agent management flag was given.
func (o options) agentCommand() bool {
	return o.listAgents || o.install != "" || o.remove != ""
}

func main() {
	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, stop, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("agentgraph", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.prompt, "prompt", "", "send one message, print the result, and exit")
	fs.StringVar(&opts.format, "format", "text", "headless output format: json, mermaid, or text")
	fs.BoolVar(&opts.noRenderer, "no-renderer", false, "do not serve the graph feed")
	fs.StringVar(&opts.projectPath, "config", config.ProjectPath(), "project config file")
	fs.BoolVar(&opts.listAgents, "agents", false, "list installed and marketplace agents, then exit")
	fs.StringVar(&opts.install, "install", "", "install a marketplace agent by id or name, then exit")
	fs.StringVar(&opts.remove, "remove", "", "remove an installed agent by id or name, then exit")
	fs.StringVar(&opts.apiKey, "api-key", "", "API key for -install")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	commands := 0
	for _, set := range []bool{opts.prompt != "", opts.listAgents, opts.install != "", opts.remove != ""} {
		if set {
			commands++
		}
	}
	if commands > 1 {
		return options{}, errors.New("-prompt, -agents, -install and -remove are mutually exclusive")
	}

	switch opts.format {
	case "json", "mermaid", "text":
	default:
		return options{}, fmt.Errorf("unknown format %q (want json, mermaid, or text)", opts.format)
	}
	return opts, nil
}

// run wires the client together and returns the process exit code. stop
// restores default signal handling once shutdown has begun.
func run(ctx context.Context, stop context.CancelFunc, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	globalPath := config.GlobalPath()
	cfg, err := config.Load(globalPath, opts.projectPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	if cfg.Client.UserID == "" {
		cfg.Client.UserID = uuid.NewString()
	}
	sessionID := cfg.Client.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	logger, closeLog := openLogger(cfg.Log, stderr)
	defer closeLog()
	logger.Info("starting", "session_id", sessionID, "backend", cfg.Backend.BaseURL, "headless", opts.prompt != "")

	metrics := observability.NewMetrics("agentgraph")

	var store persistence.Store
	if s, err := persistence.NewSQLiteStore(ctx, cfg.Cache.Path); err != nil {
		logger.Warn("agent cache unavailable", "path", cfg.Cache.Path, "error", err)
	} else {
		store = s
		defer s.Close()
	}

	client := agents.NewClient(cfg.Backend.BaseURL, agents.ClientOptions{
		Endpoints: agents.Endpoints{
			Agents:      cfg.Backend.AgentsPath,
			Marketplace: cfg.Backend.MarketplacePath,
			Health:      cfg.Backend.HealthPath,
		},
		Timeout: cfg.Backend.RequestTimeout(),
		Logger:  logger,
		Metrics: metrics,
	})
	dir := agents.NewDirectory(client, store, displayOverrides(cfg.Agents), logger)
	if err := dir.Load(ctx); err != nil {
		logger.Warn("agent cache load failed", "error", err)
	}
	if opts.agentCommand() {
		return runAgents(ctx, client, dir, opts, stdout, stderr)
	}

	hub := render.NewHub(metrics)
	defer hub.Close()

	runner := session.New(session.Options{
		Opener: stream.NewClient(cfg.Backend.ChatURL(),
			stream.WithLogger(logger),
			stream.WithMetrics(metrics)),
		Publisher: hub,
		Directory: dir,
		Logger:    logger,
		SessionID: sessionID,
		UserID:    cfg.Client.UserID,
	})

	if cfg.Renderer.On() && !opts.noRenderer {
		srv := render.NewServer(hub, metrics, logger)
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Renderer.Addr); err != nil {
				logger.Error("graph feed stopped", "addr", cfg.Renderer.Addr, "error", err)
			}
		}()
	}

	bootstrapDone := make(chan struct{})
	go func() {
		defer close(bootstrapDone)
		bootstrap(ctx, client, dir, logger)
	}()

	if opts.prompt != "" {
		<-bootstrapDone
		return runHeadless(ctx, runner, opts, stdout, stderr)
	}
	return runTUI(ctx, stop, runner, bootstrapDone, cfg, globalPath, opts.projectPath, logger, stderr)
}

// bootstrap checks backend health and refreshes the agent directory in
// parallel. Failures are logged; the client works without either.
func bootstrap(ctx context.Context, client *agents.Client, dir *agents.Directory, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := client.Health(gctx)
		if err != nil {
			logger.Warn("backend health check failed", "error", err)
			return nil // Return nil to not abort errgroup
		}
		if !h.Healthy() {
			logger.Warn("backend not ready", "status", h.Status, "message", h.Message)
			return nil
		}
		logger.Info("backend healthy", "agents", h.AgentsCount, "supervisor_active", h.SupervisorActive)
		return nil
	})
	g.Go(func() error {
		if err := dir.Refresh(gctx); err != nil {
			logger.Warn("agent directory refresh failed", "error", err)
		}
		return nil
	})
	_ = g.Wait()
}

func runHeadless(ctx context.Context, runner *session.Runner, opts options, stdout, stderr io.Writer) int {
	state, err := runner.Run(ctx, opts.prompt)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
	}
	if werr := writeResult(stdout, opts.format, state, runner.Graph()); werr != nil {
		fmt.Fprintf(stderr, "error writing result: %v\n", werr)
		return 1
	}
	if err != nil {
		return 1
	}
	return 0
}

// result is the json output of a headless run.
type result struct {
	Response string      `json:"response"`
	Agent    string      `json:"agent,omitempty"`
	Tasks    []task.Task `json:"tasks"`
	Graph    graph.Model `json:"graph"`
}

func writeResult(w io.Writer, format string, state chat.State, g graph.Model) error {
	a, _ := state.Assistant()
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		tasks := state.Tasks
		if tasks == nil {
			tasks = []task.Task{}
		}
		return enc.Encode(result{Response: a.Content, Agent: a.AgentName, Tasks: tasks, Graph: g})
	case "mermaid":
		_, err := io.WriteString(w, graph.RenderMermaid(g))
		return err
	default:
		_, err := fmt.Fprintf(w, "%s\n%s\n", graph.RenderText(g), a.Content)
		return err
	}
}

func runTUI(ctx context.Context, stop context.CancelFunc, runner *session.Runner, ready <-chan struct{}, cfg *config.Config, globalPath, projectPath string, logger *slog.Logger, stderr io.Writer) int {
	// Re-project once the directory refresh lands so display hints show up.
	model := tui.New(ctx, runner, cfg, globalPath, projectPath).WithReady(ready)

	// Start Bubble Tea program in a goroutine so run can handle shutdown
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	select {
	case err := <-errChan:
		// Normal TUI exit (user pressed 'q' or ctrl+c)
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			logger.Error("tui exited", "error", err)
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	case <-ctx.Done():
		// Signal received (SIGINT or SIGTERM)
		// Call stop() to restore default signal handling (double Ctrl+C = force exit)
		stop()
		logger.Info("shutdown signal received")

		p.Quit()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		select {
		case err := <-errChan:
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				logger.Error("tui exit error", "error", err)
			}
		case <-shutdownCtx.Done():
			logger.Warn("shutdown timeout exceeded, forcing exit")
		}
	}

	logger.Info("shutdown complete")
	return 0
}

// openLogger writes to the configured log file, falling back to stderr.
func openLogger(cfg config.LogConfig, stderr io.Writer) (*slog.Logger, func()) {
	if cfg.Path == "" {
		return logging.New(stderr, cfg.Level), func() {}
	}
	f, err := logging.Open(cfg.Path)
	if err != nil {
		fmt.Fprintf(stderr, "warning: %v; logging to stderr\n", err)
		return logging.New(stderr, cfg.Level), func() {}
	}
	return logging.New(f, cfg.Level), func() { f.Close() }
}

func displayOverrides(in map[string]config.AgentDisplayConfig) map[string]graph.Display {
	out := make(map[string]graph.Display, len(in))
	for name, a := range in {
		out[name] = graph.Display{Icon: a.Icon, Color: a.Color, Category: a.Category}
	}
	return out
}
