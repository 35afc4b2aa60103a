package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"spritebot/cache"
	"spritebot/config"
	"spritebot/discord"
	"spritebot/mcp"
	"spritebot/metrics"
	"spritebot/pipeline"
	"spritebot/planner"
	"spritebot/provider"
	"spritebot/ratelimit"
	"spritebot/storage"
	"spritebot/validation"
)

const (
	shutdownTimeout = 15 * time.Second
	pruneInterval   = 10 * time.Minute
	statusInterval  = 30 * time.Second
)

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, closeLog := config.InitLogging(cfg.DataDir())
	defer closeLog()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	llm, err := provider.FromPlannerConfig(cfg.Planner)
	if err != nil {
		return fmt.Errorf("failed to create planner backend: %w", err)
	}
	pingCtx, cancelPing := context.WithTimeout(ctx, 10*time.Second)
	if err := llm.Ping(pingCtx); err != nil {
		logger.Warn("planner backend not reachable, continuing", "provider", cfg.Planner.Provider, "error", err)
	}
	cancelPing()

	plan := planner.New(llm, planner.Options{
		BotName:     cfg.Bot.Name,
		Temperature: cfg.Planner.Temperature,
		MaxTokens:   cfg.Planner.MaxTokens,
		Prompts:     planner.PromptsFromConfig(cfg.Prompts),
		Logger:      logger,
	})

	for _, rt := range mcp.NewRuntimeChecker().Preflight(cfg.Providers) {
		if !rt.OK() {
			logger.Warn("provider runtime problem", "command", rt.Command, "error", rt.Error)
		}
	}

	registry := mcp.NewRegistry(logger)
	registry.SetCallTimeout(cfg.ToolCallTimeout())
	if err := registry.Initialize(ctx, cfg.Providers); err != nil {
		return fmt.Errorf("failed to start tool providers: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		registry.Shutdown(shutdownCtx)
	}()

	validator := validation.New()
	registerSchemas(validator, registry.Descriptors(), logger)

	resultCache := cache.New(cache.WithTTL(cfg.CacheTTL()), cache.WithLogger(logger))
	resultCache.Clear()
	stopSweeper, err := resultCache.StartSweeper("")
	if err != nil {
		return err
	}
	defer stopSweeper()

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequests: cfg.Limits.MaxRequestsPerUserPerHour,
		Window:      time.Hour,
	})
	go pruneLimiter(ctx, limiter, logger)

	store, err := storage.NewConversationStore(cfg.StoragePath(), cfg.Limits.HistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to open conversation store: %w", err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	reportStatus(registry, resultCache, m)
	go watchStatus(ctx, registry, resultCache, m)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	pipe := pipeline.New(plan, registry, store, validator, resultCache, limiter,
		pipeline.Config{
			ErrorMessage:  cfg.Bot.ErrorMessage,
			HistoryWindow: cfg.Limits.HistoryWindow,
		},
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
	)

	bot, err := discord.New(discord.Config{
		Token:        cfg.Discord.Token,
		NotifyAfter:  cfg.NotifyAfter(),
		ErrorMessage: cfg.Bot.ErrorMessage,
		Logger:       logger,
	}, pipe)
	if err != nil {
		return err
	}
	if err := bot.Start(ctx); err != nil {
		return fmt.Errorf("failed to connect to Discord: %w", err)
	}

	logger.Info("spritebot running",
		"version", Version,
		"bot", cfg.Bot.Name,
		"planner", cfg.Planner.Provider,
		"model", llm.GetModel(),
		"providers", len(cfg.Providers),
		"tools", len(registry.Tools()),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := bot.Stop(shutdownCtx); err != nil {
		logger.Warn("error closing discord session", "error", err)
	}
	return nil
}

// registerSchemas adds the input schemas reported by providers for tools
// that have no built-in argument type.
func registerSchemas(v *validation.Validator, descriptors []mcp.ToolDescriptor, logger *slog.Logger) {
	for _, d := range descriptors {
		if v.Has(d.Name) || len(d.InputSchema) == 0 {
			continue
		}
		if err := v.RegisterSchema(d.Name, d.InputSchema); err != nil {
			logger.Warn("ignoring provider schema", "tool", d.Name, "provider", d.Provider, "error", err)
		}
	}
}

func pruneLimiter(ctx context.Context, limiter *ratelimit.Limiter, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Prune(); n > 0 {
				logger.Debug("pruned idle rate limit entries", "users", n)
			}
		}
	}
}

// reportStatus publishes provider liveness and cache occupancy.
func reportStatus(registry *mcp.Registry, resultCache *cache.ResultCache, m *metrics.Metrics) {
	for _, p := range registry.Providers() {
		m.SetProviderUp(p.Name, p.State != mcp.StateDead)
	}
	m.SetCacheEntries(resultCache.Stats().Size)
}

func watchStatus(ctx context.Context, registry *mcp.Registry, resultCache *cache.ResultCache, m *metrics.Metrics) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reportStatus(registry, resultCache, m)
		}
	}
}
