package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/musicdoc/internal/api"
	"github.com/kalambet/musicdoc/internal/config"
	"github.com/kalambet/musicdoc/internal/generate"
	"github.com/kalambet/musicdoc/internal/jobs"
	"github.com/kalambet/musicdoc/internal/llm"
	"github.com/kalambet/musicdoc/internal/lookup"
	"github.com/kalambet/musicdoc/internal/matching"
	"github.com/kalambet/musicdoc/internal/pipeline"
	"github.com/kalambet/musicdoc/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the documentary tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and job status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// app holds the components shared by serve and mcp.
type app struct {
	cfg       config.Config
	store     *storage.Store
	jobs      *jobs.Store
	docs      *pipeline.Documentary
	composer  generate.Documentarian
	searcher  lookup.Searcher
	matcher   *matching.Matcher
	inspector *lookup.Inspector
	lock      *flock.Flock
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	for _, dir := range []string{cfg.Storage.DataDir, cfg.Storage.TTSDir, cfg.ArtDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %q: %w", dir, err)
		}
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another musicdoc instance is using %s", cfg.Storage.DataDir)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	searcher, err := buildSearcher(ctx, cfg)
	if err != nil {
		store.Close()
		lock.Unlock()
		return nil, err
	}
	gens, err := buildGenerators(ctx, cfg)
	if err != nil {
		store.Close()
		lock.Unlock()
		return nil, err
	}

	jobStore := jobs.NewStore(jobs.Options{
		MaxPerUser:   cfg.Jobs.MaxPerUser,
		Retention:    cfg.Jobs.Retention,
		ReapInterval: cfg.Jobs.ReapInterval,
	})
	matcher := matching.NewMatcher(searcher)

	docs := pipeline.New(pipeline.Deps{
		Jobs:      jobStore,
		Planner:   gens.planner,
		Narrator:  gens.narrator,
		Art:       gens.art,
		Synth:     gens.synth,
		Matcher:   matcher,
		Playlists: store,
	}, pipeline.Config{
		Threshold: cfg.Matching.Threshold,
		TTSDir:    cfg.Storage.TTSDir,
		MockTTS:   gens.mockTTS,
	})

	return &app{
		cfg:       cfg,
		store:     store,
		jobs:      jobStore,
		docs:      docs,
		composer:  gens.composer,
		searcher:  searcher,
		matcher:   matcher,
		inspector: lookup.NewInspector(&http.Client{Timeout: 15 * time.Second}),
		lock:      lock,
	}, nil
}

// Close waits for running jobs, then releases storage and the lock. The
// context the jobs run on must already be cancelled or finished.
func (a *app) Close() {
	a.jobs.Shutdown()
	a.docs.Wait()
	if err := a.store.Close(); err != nil {
		slog.Warn("closing storage", "error", err)
	}
	if err := a.lock.Unlock(); err != nil {
		slog.Warn("releasing lock", "error", err)
	}
}

// buildSearcher returns nil when no lookup backend is usable; matching then
// reports every slot as not found.
func buildSearcher(ctx context.Context, cfg config.Config) (lookup.Searcher, error) {
	var next lookup.Searcher
	switch cfg.YouTube.SearchMethod {
	case config.SearchAPI:
		s, err := lookup.NewAPISearcher(ctx, cfg.YouTube.APIKey, cfg.Matching.MaxResults)
		if err != nil {
			return nil, fmt.Errorf("creating YouTube client: %w", err)
		}
		next = s
	default:
		s := lookup.NewYTDLPSearcher(cfg.YouTube.YTDLPPath, cfg.Matching.MaxResults)
		if err := s.CheckBinary(); err != nil {
			slog.Warn("video lookup disabled", "error", err)
			return nil, nil
		}
		next = s
	}
	return lookup.NewGuarded(next, lookup.GuardOptions{
		Name:              "youtube-" + cfg.YouTube.SearchMethod,
		RequestsPerSecond: cfg.YouTube.RequestsPerSecond,
	}), nil
}

type generators struct {
	planner  generate.Planner
	narrator generate.Narrator
	composer generate.Documentarian
	art      generate.ArtGenerator
	synth    generate.Synthesizer
	mockTTS  bool
}

func buildGenerators(ctx context.Context, cfg config.Config) (generators, error) {
	g := generators{mockTTS: cfg.TTS.Mock}

	var oa *llm.OpenAI
	if cfg.LLM.OpenAIAPIKey != "" {
		oa = llm.NewOpenAI(cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIBaseURL)
	}

	switch cfg.LLM.Provider {
	case config.ProviderMock:
		g.planner, g.narrator = generate.MockPlanner{}, generate.MockNarrator{}
		g.composer = generate.MockDocumentarian{}
	case config.ProviderOllama:
		ol := llm.NewOllama(cfg.LLM.OllamaBaseURL)
		if err := llm.EnsureOllamaReady(ctx, ol, cfg.LLM.OllamaModel, os.Stderr); err != nil {
			return g, err
		}
		g.planner = generate.NewPlanGenerator(ol, cfg.LLM.OllamaModel)
		g.narrator = generate.NewNarrationGenerator(ol, cfg.LLM.OllamaModel)
		g.composer = generate.NewDocumentaryGenerator(ol, cfg.LLM.OllamaModel)
	default:
		if oa == nil {
			return g, errors.New("llm.provider=openai requires an API key")
		}
		g.planner = generate.NewPlanGenerator(oa, cfg.LLM.PlanModel)
		g.narrator = generate.NewNarrationGenerator(oa, cfg.LLM.NarrationModel)
		g.composer = generate.NewDocumentaryGenerator(oa, cfg.LLM.PlanModel)
	}

	if oa == nil {
		if !g.mockTTS {
			slog.Warn("no OpenAI API key: narration audio is mocked and album art is off")
			g.mockTTS = true
		}
		return g, nil
	}
	if cfg.Art.Enabled {
		g.art = generate.NewAlbumArtGenerator(oa, cfg.Art.Model, cfg.ArtDir())
	}
	if !g.mockTTS {
		g.synth = generate.NewSpeechSynthesizer(oa, cfg.TTS.Model, cfg.TTS.Voice, cfg.TTS.Speed)
	}
	return g, nil
}

func (a *app) appDeps(ctx context.Context) api.AppDeps {
	deps := api.AppDeps{
		Jobs:          a.jobs,
		Runner:        a.docs,
		Playlists:     a.store,
		Inspector:     a.inspector,
		Documentarian: a.composer,
		SearchMethod:  a.cfg.YouTube.SearchMethod,
		Threshold:     a.cfg.Matching.Threshold,
		Token:         a.cfg.Server.APIToken,
		TTSDir:        a.cfg.Storage.TTSDir,
		ArtDir:        a.cfg.ArtDir(),
		BaseContext:   ctx,
	}
	if a.searcher != nil {
		deps.Searcher = a.searcher
		deps.Matcher = a.matcher
	}
	return deps
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "musicdoc version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	defer stop()

	go a.jobs.RunReaper(ctx)

	if cfg.Server.APIToken == "" {
		slog.Warn("API token not set: /api is unauthenticated")
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewAppHandler(a.appDeps(ctx)),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("musicdoc listening", "addr", cfg.Addr(), "llm", cfg.LLM.Provider, "search", cfg.YouTube.SearchMethod)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Streams end on their own once the job store shuts down.
	a.jobs.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// stdout carries the protocol; logs go to stderr.
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	defer stop()

	go a.jobs.RunReaper(ctx)

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Jobs:          a.jobs,
		Runner:        a.docs,
		Playlists:     a.store,
		Searcher:      a.searcher,
		Documentarian: a.composer,
		BaseContext:   ctx,
		UserID:        asUserID,
	})
	slog.Info("MCP server started (stdio transport)")
	if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.LoadUnchecked()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		printWarning("config does not validate: %v", err)
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}

	hctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var health map[string]string
	if err := client.getJSON(hctx, "/health", &health); err != nil {
		printStatus("Server", "stopped")
	} else {
		printStatus("Server", "running on %s", cfg.Addr())
		var result struct {
			Stats jobs.Stats `json:"stats"`
		}
		if err := client.getJSON(ctx, "/api/jobs/stats", &result); err == nil {
			s := result.Stats
			printStatus("Jobs", "%d total, %d running, %d pending, %d completed, %d failed",
				s.Total, s.Running, s.Pending, s.Completed, s.Failed)
		} else {
			printWarning("could not read job stats: %v", err)
		}
	}

	printStatus("LLM", "%s", cfg.LLM.Provider)
	printStatus("Video search", "%s", cfg.YouTube.SearchMethod)
	if n, size, err := dirUsage(cfg.Storage.TTSDir); err == nil {
		printStatus("Narration audio", "%d files, %s", n, humanize.Bytes(uint64(size)))
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// dirUsage counts regular files under dir and their total size.
func dirUsage(dir string) (int, int64, error) {
	var n int
	var size int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		n++
		size += info.Size()
		return nil
	})
	return n, size, err
}
