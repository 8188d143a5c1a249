package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hashreel/hashreel-agent/internal/api"
	"github.com/hashreel/hashreel-agent/internal/config"
	"github.com/hashreel/hashreel-agent/internal/db"
	"github.com/hashreel/hashreel-agent/internal/discover"
	"github.com/hashreel/hashreel-agent/internal/fetch"
	"github.com/hashreel/hashreel-agent/internal/history"
	"github.com/hashreel/hashreel-agent/internal/ledger"
	"github.com/hashreel/hashreel-agent/internal/logging"
	"github.com/hashreel/hashreel-agent/internal/pipeline"
	"github.com/hashreel/hashreel-agent/internal/toolrun"
	"github.com/hashreel/hashreel-agent/internal/transform"
	"github.com/hashreel/hashreel-agent/internal/verify"
)

func main() {
	hashtag := flag.String("hashtag", "", "run once for this hashtag and exit")
	count := flag.Int("count", 5, "number of new videos to process in one-shot mode")
	flag.Parse()

	if err := run(*hashtag, *count); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run(hashtag string, count int) error {
	startTime := time.Now()

	// Missing .env is fine, environment variables still apply.
	godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.VideosDir(), cfg.OutputDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting hashreel agent",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
	)

	doctor := toolrun.NewDoctor(cfg.FetcherPath(), cfg.EncoderPath(), cfg.ProberPath(), logger)
	caps := doctor.Refresh()

	runner := toolrun.NewRunner(logger)
	verifier := verify.New(runner, cfg.ProberPath(), cfg.VerifyTimeout(), logger)
	fetcher := fetch.New(runner, verifier, cfg.FetcherPath(), cfg.FetchTimeout(), logger)
	engine := transform.New(runner, cfg.EncoderPath(), cfg.ProberPath(), cfg.OutputDir(),
		cfg.GeometryTimeout(), cfg.EncodeTimeout(), logger)
	finder := discover.NewChromeFinder(discover.Config{
		ScrollAttempts: cfg.ScrollAttempts(),
		ScrollPause:    cfg.ScrollPause(),
		PageWait:       cfg.PageWait(),
	}, cfg.BrowserHeadless(), logger)
	store := ledger.New(cfg.LedgerPath(), logger)
	logger.Info("processed ledger loaded",
		"path", logging.SanitizePath(cfg.LedgerPath()),
		"count", store.Count(),
	)

	spec := transform.Spec{
		Mirror:      cfg.Mirror(),
		CropPercent: cfg.CropPercent(),
	}

	newOrchestrator := func() *pipeline.Orchestrator {
		return pipeline.New(finder, fetcher, engine, store, spec, cfg.VideosDir(), logger)
	}

	if hashtag != "" {
		if !caps.AllRequired() {
			return fmt.Errorf("required tools missing (fetcher=%v encoder=%v), install yt-dlp and ffmpeg",
				caps.HasFetcher, caps.HasEncoder)
		}
		return runOnce(newOrchestrator(), hashtag, count, logger)
	}

	if !caps.AllRequired() {
		logger.Warn("required tools missing, queued runs will fail until installed",
			"fetcher", caps.HasFetcher,
			"encoder", caps.HasEncoder,
		)
	}

	return runDaemon(cfg, newOrchestrator, doctor, store, startTime, logger)
}

// runOnce executes a single run in the foreground, printing progress to
// stdout, and exits nonzero on a fatal tool or browser failure.
func runOnce(orch *pipeline.Orchestrator, hashtag string, count int, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range orch.Events() {
			switch ev.Kind {
			case pipeline.EventStatus:
				fmt.Println(ev.Message)
			case pipeline.EventProgress:
				fmt.Printf("progress: %d%%\n", int(ev.Progress*100))
			case pipeline.EventComplete, pipeline.EventFailed:
				fmt.Println(ev.Message)
			}
		}
	}()

	outcome := orch.Run(ctx, hashtag, count)
	<-done

	if outcome.Fatal != nil {
		return outcome.Fatal
	}

	logger.Info("one-shot run finished",
		"attempted", outcome.Attempted,
		"succeeded", outcome.Succeeded,
		"failed", outcome.Failed,
	)
	return nil
}

// runDaemon starts the run queue and the local HTTP API, blocking until a
// shutdown signal arrives.
func runDaemon(cfg config.Config, newOrchestrator func() *pipeline.Orchestrator, doctor *toolrun.Doctor, store *ledger.Store, startTime time.Time, logger *slog.Logger) error {
	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := history.NewRepository(database.Conn())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runRunner := history.NewRunner(repo, func() history.RunExecutor {
		return newOrchestrator()
	}, logger)
	go runRunner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Repository: repo,
		Runner:     runRunner,
		Doctor:     doctor,
		Ledger:     store,
		Logger:     logger,
		StartTime:  startTime,
		Version:    config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	logger.Info("agent ready", "api", "http://"+apiServer.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
