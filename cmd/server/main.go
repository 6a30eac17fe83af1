package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/suPer8Hu/yt-assistant/internal/ai"
	"github.com/suPer8Hu/yt-assistant/internal/chat"
	"github.com/suPer8Hu/yt-assistant/internal/config"
	"github.com/suPer8Hu/yt-assistant/internal/db"
	"github.com/suPer8Hu/yt-assistant/internal/httpapi"
	"github.com/suPer8Hu/yt-assistant/internal/httpapi/handlers"
	"github.com/suPer8Hu/yt-assistant/internal/logging"
	"github.com/suPer8Hu/yt-assistant/internal/metrics"
	"github.com/suPer8Hu/yt-assistant/internal/prompt"
	"github.com/suPer8Hu/yt-assistant/internal/store/rabbitmq"
	"github.com/suPer8Hu/yt-assistant/internal/transcript"
	"github.com/suPer8Hu/yt-assistant/internal/youtube"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Log, "yt-assistant")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Log.Format == "json" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Provider registry; AI_PROVIDER picks one at startup.
	reg := newRegistry(cfg.AI)
	provider, err := reg.Get(ctx, cfg.AI.Provider, "")
	if err != nil {
		logger.Fatal("select ai provider", zap.Error(err))
	}
	if cfg.AI.Provider == "openai" && strings.TrimSpace(cfg.AI.OpenAIAPIKey) == "" {
		logger.Warn("OPENAI_API_KEY is not set; completion requests will fail")
	}

	dispatcher := ai.NewDispatcher(cfg.AI.Provider, provider, ai.DispatcherConfig{
		Timeout: cfg.AI.Timeout,
		Breaker: ai.BreakerConfig{
			MaxRequests:      cfg.AI.BreakerMaxRequests,
			Interval:         cfg.AI.BreakerInterval,
			Timeout:          cfg.AI.BreakerTimeout,
			FailureThreshold: cfg.AI.BreakerFailureThreshold,
			MinRequests:      cfg.AI.BreakerMinRequests,
		},
	}, logger)

	source := youtube.NewInnertubeSource(cfg.Transcript.YouTubeURL)
	fetcher := youtube.NewFetcher(source, cfg.Transcript.Languages, cfg.Transcript.Timeout, logger)
	cache := transcript.NewCache(fetcher, logger)

	builder := prompt.NewBuilder(prompt.Instructions{
		Ask:        cfg.Prompt.AskInstruction,
		Analysis:   cfg.Prompt.AnalysisInstruction,
		Suggestion: cfg.Prompt.SuggestionInstruction,
	})

	svc := chat.NewService(cache, dispatcher, builder, logger)

	// Exchange log (optional)
	var exchanges handlers.ExchangeLister
	if cfg.Exchange.Enabled() {
		gdb, err := db.Connect(cfg.Exchange.DBDriver, cfg.Exchange.DBDSN)
		if err != nil {
			logger.Fatal("connect exchange database", zap.Error(err))
		}
		repo := chat.NewRepo(gdb)
		if err := repo.AutoMigrate(); err != nil {
			logger.Fatal("migrate exchange table", zap.Error(err))
		}
		exchanges = repo

		if cfg.Exchange.Queued() {
			pub, err := rabbitmq.NewPublisher(cfg.Exchange.RabbitURL, cfg.Exchange.RabbitQueue)
			if err != nil {
				logger.Fatal("connect rabbitmq", zap.Error(err))
			}
			defer pub.Close()
			svc.SetRecorder(pub, metrics.SinkQueue)
		} else {
			svc.SetRecorder(repo, metrics.SinkDB)
		}
		logger.Info("exchange log enabled",
			zap.String("driver", cfg.Exchange.DBDriver),
			zap.Bool("queued", cfg.Exchange.Queued()),
		)
	}

	router := httpapi.NewRouter(handlers.NewHandler(svc, exchanges, logger), logger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server starting",
			zap.String("addr", cfg.Server.Addr),
			zap.String("ai_provider", cfg.AI.Provider),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	logger.Info("server exited")
}

func newRegistry(cfg config.AIConfig) *ai.Registry {
	reg := ai.NewRegistry()

	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenAIModel
		}
		return ai.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, m), nil
	})

	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})

	return reg
}
