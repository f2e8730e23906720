package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"feedpulse/internal/ai"
	"feedpulse/internal/analytics"
	"feedpulse/internal/blob"
	"feedpulse/internal/config"
	"feedpulse/internal/consumer"
	"feedpulse/internal/service"
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

	postStore := postgres.NewPostStore(db)
	tagStore := postgres.NewTagStore(db)
	vectorIndex := postgres.NewVectorIndex(db)
	txManager := postgres.NewTransactionManager(db)

	enrichService := service.NewEnrichService(
		postStore, tagStore, vectorIndex, chat, embedder, speech, blobStore, txManager, sink, logger,
	)

	cons, err := consumer.New(consumer.Config{
		URL:        cfg.RabbitMQ.URL,
		QueueName:  cfg.RabbitMQ.QueueName,
		Prefetch:   cfg.RabbitMQ.Prefetch,
		RunTimeout: cfg.Poll.RunTimeout,
	}, enrichService, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer cons.Close()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting enrichment worker", "queue", cfg.RabbitMQ.QueueName)

	if err := cons.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer error", "error", err)
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
