package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"feedpulse/internal/ai"
	"feedpulse/internal/analytics"
	"feedpulse/internal/blob"
	"feedpulse/internal/config"
	"feedpulse/internal/publisher"
	"feedpulse/internal/scheduler"
	"feedpulse/internal/server"
	"feedpulse/internal/service"
	"feedpulse/internal/source/discord"
	"feedpulse/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	sink := analytics.New(cfg.Redis.Addr, cfg.Redis.Stream, logger)
	defer sink.Close()

	blobStore, err := blob.New(ctx, blob.Config{
		Endpoint:      cfg.Blob.Endpoint,
		AccessKey:     cfg.Blob.AccessKey,
		SecretKey:     cfg.Blob.SecretKey,
		Bucket:        cfg.Blob.Bucket,
		UseSSL:        cfg.Blob.UseSSL,
		PublicBaseURL: cfg.Blob.PublicBaseURL,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to blob storage", "error", err)
		os.Exit(1)
	}

	chat, err := ai.NewChat(cfg.AI.BaseURL, cfg.AI.Token, cfg.AI.ChatModel, logger)
	if err != nil {
		logger.Error("failed to create chat client", "error", err)
		os.Exit(1)
	}

	embedder, err := ai.NewEmbedder(cfg.AI.BaseURL, cfg.AI.Token, cfg.AI.EmbeddingModel, logger)
	if err != nil {
		logger.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}

	speech := ai.NewSpeech(ai.SpeechConfig{
		BaseURL: cfg.AI.BaseURL,
		Token:   cfg.AI.Token,
		Model:   cfg.AI.SpeechModel,
		Voice:   cfg.AI.SpeechVoice,
		Timeout: cfg.AI.Timeout,
	}, logger)

	adapter := discord.New(discord.Config{
		BaseURL:        cfg.Discord.BaseURL,
		Token:          cfg.Discord.Token,
		PageSize:       cfg.Discord.PageSize,
		Timeout:        cfg.Discord.Timeout,
		MaxAttempts:    cfg.Discord.Retry.MaxAttempts,
		InitialBackoff: cfg.Discord.Retry.InitialBackoff,
		MaxBackoff:     cfg.Discord.Retry.MaxBackoff,
	}, logger)

	sourceStore := postgres.NewSourceStore(db)
	postStore := postgres.NewPostStore(db)
	tagStore := postgres.NewTagStore(db)
	vectorIndex := postgres.NewVectorIndex(db)
	txManager := postgres.NewTransactionManager(db)

	ingestService := service.NewIngestService(sourceStore, postStore, adapter, rabbitMQ, sink, logger)
	enrichService := service.NewEnrichService(
		postStore, tagStore, vectorIndex, chat, embedder, speech, blobStore, txManager, sink, logger,
	)
	postService := service.NewPostService(postStore, sourceStore, tagStore, vectorIndex, embedder, logger)
	scaffoldService := service.NewScaffoldService(postStore, chat, blobStore, sink, logger)
	sourceService := service.NewSourceService(sourceStore, logger)

	e := server.New(server.Services{
		Ingest:   ingestService,
		Enrich:   enrichService,
		Posts:    postService,
		Scaffold: scaffoldService,
		Sources:  sourceService,
	}, cfg.Server.CronSecret, logger)

	sched := scheduler.NewScheduler(ingestService, cfg.Poll.Interval, cfg.Poll.RunTimeout, logger)
	go func() {
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("scheduler error", "error", err)
		}
	}()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server",
		"addr", cfg.Server.Addr,
		"poll_interval", cfg.Poll.Interval,
	)

	if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
