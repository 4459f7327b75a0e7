// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"finance-copilot/internal/agent"
	"finance-copilot/internal/config"
	"finance-copilot/internal/domain/ports/adapter"
	"finance-copilot/internal/domain/ports/repository"
	aiAdapters "finance-copilot/internal/infra/adapters/ai"
	"finance-copilot/internal/infra/adapters/market"
	"finance-copilot/internal/infra/api"
	"finance-copilot/internal/infra/api/apiv1"
	pg "finance-copilot/internal/infra/db/postgres"
	"finance-copilot/internal/infra/logging"
	"finance-copilot/internal/infra/memcache"
	"finance-copilot/internal/infra/metrics"
	red "finance-copilot/internal/infra/redis"
	"finance-copilot/internal/infra/sched"
	"finance-copilot/internal/infra/security"
	"finance-copilot/internal/infra/worker"
	"finance-copilot/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("service stopped with error")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second, logger)

	// ---- Security ----
	var enc *security.EncryptionService
	if cfg.Security.EncryptionKey != "" {
		enc, err = security.NewEncryptionService(cfg.Security.EncryptionKey)
		if err != nil {
			return fmt.Errorf("encryption: %w", err)
		}
	}
	hasher := security.NewPasswordHasher(0)
	tokens := security.NewTokenManager(cfg.Auth.SecretKey, cfg.Auth.TokenTTL)

	// ---- Repositories ----
	var userRepo repository.UserRepository = pg.NewUserRepo(pool)
	authSessionRepo := pg.NewAuthSessionRepo(pool)
	chatRepo := pg.NewChatSessionRepo(pool, enc)
	docRepo := pg.NewDocumentRepo(pool)
	watchRepo := pg.NewWatchlistRepo(pool)
	vectors := pg.NewVectorIndex(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Redis (optional) ----
	var (
		quotes  adapter.QuoteCache
		limiter api.Limiter
		locker  sched.Locker
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer redisClient.Close()
		quotes = red.NewQuoteCache(redisClient)
		limiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
		userRepo = pg.NewUserRepoCacheDecorator(userRepo, redisClient, cfg.Redis.TTL)
	} else {
		logger.Warn().Msg("redis not configured: using in-process quote cache, chat rate limit disabled")
		quotes = memcache.NewQuoteCache(cfg.Market.QuoteCacheTTL, time.Minute)
	}

	// ---- AI ----
	chatAI, embedder, err := buildAI(ctx, cfg.AI, logger)
	if err != nil {
		return err
	}

	// ---- Market data ----
	finnhub := market.NewFinnhub(cfg.Market.FinnhubKey, cfg.Market.HTTPTimeout)
	var providers []adapter.MarketProvider
	if cfg.Market.FinnhubKey != "" {
		providers = append(providers, finnhub)
	}
	if cfg.Market.AlphaVantageKey != "" {
		providers = append(providers, market.NewAlphaVantage(cfg.Market.AlphaVantageKey, cfg.Market.HTTPTimeout))
	}
	if len(providers) == 0 {
		logger.Warn().Msg("no market data key configured: stock endpoints will report the provider as unavailable")
		providers = append(providers, finnhub)
	}

	// ---- Agent ----
	runner := agent.NewRunner(chatAI, cfg.AI.DefaultModel, cfg.AI.AgentMaxIterations, cfg.AI.AgentTimeout, logger)
	buffers, err := agent.NewBufferCache(cfg.AI.BufferCacheSize, cfg.AI.BufferTokenLimit, agent.NewTokenCounter())
	if err != nil {
		return fmt.Errorf("buffer cache: %w", err)
	}

	// ---- Use cases ----
	marketUC := usecase.NewMarketUseCase(providers, finnhub, quotes, cfg.Market.QuoteCacheTTL, logger)
	authSessionUC := usecase.NewAuthSessionUseCase(authSessionRepo, logger)
	authUC := usecase.NewAuthUseCase(userRepo, authSessionUC, hasher, tokens, txManager, logger)
	convUC := usecase.NewConversationUseCase(chatRepo, txManager, logger)
	knowledgeUC := usecase.NewKnowledgeUseCase(docRepo, vectors, embedder, logger)
	watchlistUC := usecase.NewWatchlistUseCase(watchRepo, marketUC, txManager, logger)
	chatUC := usecase.NewChatUseCase(convUC, knowledgeUC, watchlistUC, marketUC, chatAI, runner, buffers,
		usecase.ChatOptions{Model: cfg.AI.DefaultModel, FallbackModel: cfg.AI.FallbackModel}, logger)
	insightUC := usecase.NewInsightUseCase(marketUC, chatAI, cfg.AI.FallbackModel, logger)

	// ---- Background workers ----
	workers := worker.NewPool(cfg.Scheduler.Workers, logger)
	workers.Start(ctx)
	defer workers.Stop()

	go sched.NewSessionSweeper(cfg.Scheduler.SessionSweepInterval, authSessionUC, logger).Run(ctx)
	go sched.NewIndexBackfill(cfg.Scheduler.IndexBackfillInterval, knowledgeUC, workers, locker, logger).Run(ctx)

	// ---- HTTP ----
	apiServer := apiv1.NewServer(authUC, marketUC, insightUC, watchlistUC, chatUC, knowledgeUC, apiv1.Options{
		Limiter:        limiter,
		LimiterKey:     red.UserCommandKey,
		ChatPerMinute:  cfg.RateLimit.ChatPerMinute,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Metrics:        promhttp.Handler(),
	}, logger)
	srv := api.NewServer(cfg.HTTP, apiv1.NewRouter(apiServer), logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	return nil
}

// buildAI returns the chat adapter and the embedder. Missing keys leave the
// service running with the unconfigured stand-in; without Gemini the embedder
// is nil and knowledge search uses text matching only.
func buildAI(ctx context.Context, cfg config.AIConfig, logger *zerolog.Logger) (adapter.AIServiceAdapter, adapter.Embedder, error) {
	byProvider := map[string]adapter.AIServiceAdapter{}
	var embedder adapter.Embedder

	if cfg.GeminiKey != "" {
		gem, err := aiAdapters.NewGeminiAdapter(ctx, aiAdapters.GeminiOptions{
			APIKey:         cfg.GeminiKey,
			BaseURL:        cfg.GeminiURL,
			DefaultModel:   cfg.DefaultModel,
			EmbeddingModel: cfg.EmbeddingModel,
			EmbeddingDims:  cfg.EmbeddingDims,
			MaxOutput:      cfg.MaxOutputTokens,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("gemini: %w", err)
		}
		byProvider["gemini"] = gem
		embedder = gem
	}
	if cfg.OpenAIKey != "" {
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.FallbackModel, cfg.MaxOutputTokens)
		if err != nil {
			return nil, nil, fmt.Errorf("openai: %w", err)
		}
		byProvider["openai"] = oa
	}

	if len(byProvider) == 0 {
		logger.Warn().Msg("no AI provider key configured: chat and insights run without a model")
		return aiAdapters.NewUnconfiguredAI(), embedder, nil
	}
	defaultProvider := "gemini"
	if _, ok := byProvider[defaultProvider]; !ok {
		defaultProvider = "openai"
	}
	multi := aiAdapters.NewMultiAIAdapter(defaultProvider, byProvider, nil)
	return aiAdapters.NewLimitedAI(multi, cfg.ConcurrentLimit), embedder, nil
}
