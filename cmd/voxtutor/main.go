// Command voxtutor runs a live audio tutoring session against a realtime
// speech model, with an ops HTTP server for health and metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/studyloop/voxtutor/internal/config"
	"github.com/studyloop/voxtutor/internal/health"
	"github.com/studyloop/voxtutor/internal/observe"
	"github.com/studyloop/voxtutor/internal/tutor"
	"github.com/studyloop/voxtutor/pkg/audio"
	audiodev "github.com/studyloop/voxtutor/pkg/audio/malgo"
	"github.com/studyloop/voxtutor/pkg/provider/live/gemini"
	"github.com/studyloop/voxtutor/pkg/sessionlog"
	"github.com/studyloop/voxtutor/pkg/sessionlog/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	student := flag.String("student", "", "student display name (overrides session.student_name)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxtutor: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxtutor: %v\n", err)
		}
		return 1
	}

	studentName := *student
	if studentName == "" {
		studentName = cfg.Session.StudentName
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxtutor starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"student", studentName,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "voxtutor"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Transcript store (optional) ───────────────────────────────────────────
	var store sessionlog.Store
	checkers := []health.Checker{
		{Name: "live_provider", Check: func(_ context.Context) error {
			if cfg.Provider.APIKey == "" {
				return errors.New("no API key configured")
			}
			return nil
		}},
	}
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pgStore, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			slog.Error("failed to open transcript store", "err", err)
			return 1
		}
		defer pgStore.Close()
		store = pgStore
		checkers = append(checkers, health.Checker{Name: "session_store", Check: pgStore.Ping})
		slog.Info("transcript store connected")
	}

	// ── Live provider ─────────────────────────────────────────────────────────
	var provOpts []gemini.Option
	if cfg.Provider.Model != "" {
		provOpts = append(provOpts, gemini.WithModel(cfg.Provider.Model))
	}
	if cfg.Provider.BaseURL != "" {
		provOpts = append(provOpts, gemini.WithBaseURL(cfg.Provider.BaseURL))
	}
	provider := gemini.New(cfg.Provider.APIKey, provOpts...)
	caps := provider.Capabilities()

	// ── Session manager ───────────────────────────────────────────────────────
	mgr := tutor.NewManager(tutor.ManagerConfig{
		Provider: provider,
		NewInput: func() audio.InputDevice {
			return audiodev.NewCapture(caps.InputSampleRate)
		},
		NewOutput: func() (audio.OutputDevice, error) {
			speaker := audiodev.NewSpeaker(caps.OutputSampleRate)
			if err := speaker.Open(); err != nil {
				return nil, err
			}
			return speaker, nil
		},
		Store:           store,
		Metrics:         metrics,
		Voice:           cfg.Provider.Voice,
		TranscriptLines: cfg.Session.TranscriptLines,
		IdleTimeout:     cfg.Session.IdleTimeout.Std(),
		ConnectRetries:  cfg.Session.ConnectRetries,
		ConnectBackoff:  cfg.Session.ConnectBackoff.Std(),
	})
	mgr.OnStatus(func(s tutor.Status) {
		slog.Info("session status", "status", s)
	})

	// ── Ops HTTP server ───────────────────────────────────────────────────────
	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8080"
	}
	srv := &http.Server{
		Addr:    listenAddr,
		Handler: observe.Middleware(metrics)(mux),
	}

	// ── Supervisor ────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("ops server listening", "addr", listenAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		if err := mgr.Start(gctx, studentName); err != nil {
			return fmt.Errorf("start session: %w", err)
		}
		slog.Info("session live — press Ctrl+C to shut down")
		<-gctx.Done()
		return mgr.Stop()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
