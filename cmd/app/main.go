// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"coursesync/internal/config"
	"coursesync/internal/domain/model"
	"coursesync/internal/domain/ports/adapter"
	aiAdapters "coursesync/internal/infra/adapters/ai"
	"coursesync/internal/infra/adapters/scrape"
	"coursesync/internal/infra/api"
	"coursesync/internal/infra/logging"
	"coursesync/internal/infra/metrics"
	"coursesync/internal/infra/sched"
	"coursesync/internal/infra/store"
	"coursesync/internal/usecase"
)

// set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted keys)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("coursesync stopped")
	}
}

func run(cfg *config.Config, logger *zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- LLM providers ----
	ai := buildCompleter(cfg, logger)

	// ---- Use cases ----
	defaults := model.Settings{
		HoursPerDay:          cfg.Planner.HoursPerDay,
		RiskThreshold:        cfg.Planner.RiskThreshold,
		NotificationLeadDays: cfg.Planner.NotificationLeadDays,
		SemesterStart:        cfg.Planner.SemesterStart,
	}
	repo := store.NewJSONStateRepo(cfg.Storage.DataDir, defaults, logger)
	scraper := scrape.New(cfg.Scrape.FirecrawlKey, cfg.Scrape.FirecrawlURL, cfg.Scrape.Timeout)
	planner := usecase.NewPlannerUseCase(ai, cfg.AI.MaxOutputTokens, logger)
	courses := usecase.NewCourseUseCase(repo, planner, scraper, defaults, logger)

	// warm the cache so a broken data dir shows up at startup
	if snap, err := courses.State(ctx); err != nil {
		logger.Warn().Err(err).Str("data_dir", repo.Dir()).Msg("could not load saved state")
	} else {
		logger.Info().
			Int("courses", snap.Stats.TotalCourses).
			Int("assignments", snap.Stats.TotalAssignments).
			Str("data_dir", repo.Dir()).
			Msg("state loaded")
	}

	// ---- HTTP ----
	srv := api.NewServer(courses, cfg.Server.RequestTimeout, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// ---- Deadline reminders ----
	if cfg.Planner.ReminderInterval > 0 {
		worker := sched.NewReminderWorker(cfg.Planner.ReminderInterval, courses, logger)
		g.Go(func() error {
			if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	// ---- Outside edits to the data files ----
	if cfg.Storage.Watch {
		g.Go(func() error {
			err := repo.Watch(gctx, func(string) { courses.Invalidate() })
			if err != nil && !errors.Is(err, context.Canceled) {
				// non-fatal: the server keeps its cached state
				logger.Warn().Err(err).Msg("state watcher stopped")
			}
			return nil
		})
	}

	// ---- Graceful shutdown ----
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutdown requested")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// buildCompleter registers every provider and falls back to the next one
// when the configured provider has no key. A missing key is not fatal:
// calls fail with ErrNotConfigured and the API answers 503.
func buildCompleter(cfg *config.Config, logger *zerolog.Logger) adapter.Completer {
	retry := aiAdapters.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.AI.MaxAttempts
	retry.BaseDelay = cfg.AI.BaseDelay

	compatName := "groq"
	if cfg.AI.Provider == "openai" {
		compatName = "openai"
	}
	compat := aiAdapters.NewOpenAIAdapter(aiAdapters.OpenAIConfig{
		Provider:        compatName,
		APIKey:          cfg.AI.APIKey,
		BaseURL:         cfg.AI.BaseURL,
		Model:           cfg.AI.Model,
		MaxOutputTokens: cfg.AI.MaxOutputTokens,
		Timeout:         cfg.AI.Timeout,
		Retry:           retry,
	}, logger)
	gemini := aiAdapters.NewGeminiAdapter(aiAdapters.GeminiConfig{
		APIKey:          cfg.AI.GeminiKey,
		BaseURL:         cfg.AI.GeminiURL,
		Model:           cfg.AI.GeminiModel,
		MaxOutputTokens: cfg.AI.MaxOutputTokens,
		Timeout:         cfg.AI.Timeout,
		Retry:           retry,
	}, logger)

	claude := aiAdapters.NewAnthropicAdapter(aiAdapters.AnthropicConfig{
		APIKey:          cfg.AI.AnthropicKey,
		BaseURL:         cfg.AI.AnthropicURL,
		Model:           cfg.AI.AnthropicModel,
		MaxOutputTokens: cfg.AI.MaxOutputTokens,
		Timeout:         cfg.AI.Timeout,
		Retry:           retry,
	}, logger)

	multi := aiAdapters.NewMultiAIAdapter(cfg.AI.Provider, map[string]adapter.Completer{
		compatName:  compat,
		"gemini":    gemini,
		"anthropic": claude,
	})
	logger.Info().
		Str("provider", cfg.AI.Provider).
		Strs("order", multi.Providers()).
		Str("model", cfg.AI.Model).
		Str("key", logging.Redact(cfg.AI.APIKey, cfg.Runtime.Dev)).
		Msg("llm configured")
	if cfg.AI.APIKey == "" && cfg.AI.GeminiKey == "" && cfg.AI.AnthropicKey == "" {
		logger.Warn().Msg("no LLM api key configured; LLM endpoints will answer 503")
	}

	return aiAdapters.NewLimitedAI(multi, cfg.AI.ConcurrentLimit)
}
