package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/vbonduro/plantid/internal/config"
	"github.com/vbonduro/plantid/internal/db"
	"github.com/vbonduro/plantid/internal/gateway"
	claudegw "github.com/vbonduro/plantid/internal/gateway/claude"
	geminigw "github.com/vbonduro/plantid/internal/gateway/gemini"
	mockgw "github.com/vbonduro/plantid/internal/gateway/mock"
	ollamagw "github.com/vbonduro/plantid/internal/gateway/ollama"
	"github.com/vbonduro/plantid/internal/logging"
	"github.com/vbonduro/plantid/internal/session"
	"github.com/vbonduro/plantid/internal/store"
	"github.com/vbonduro/plantid/internal/web"
	"github.com/vbonduro/plantid/internal/web/templates"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// a missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env: %v", err)
	}
	cfg := config.Load()

	logger, cleanup, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		cleanup()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := newGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Typed nils would defeat the nil checks downstream, so the journal
	// interfaces stay unset when it is disabled.
	var (
		recorder session.Recorder
		history  web.HistoryStore
	)
	if cfg.DBPath != "" {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() {
			if err := database.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		}()
		identStore := store.NewIdentificationStore(database)
		recorder, history = identStore, identStore
	} else {
		logger.Info("identification journal disabled")
	}

	sessions := session.NewManager(gw, recorder, cfg.SessionMax, cfg.SessionTTL, logger)
	httpServer := web.NewServer(sessions, history, templates.FS, logger).HTTPServer(cfg.ListenAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	// background classifications still hold the gateway and journal
	sessions.Wait()
	return err
}

func newGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger) (gateway.Gateway, error) {
	if cfg.TestMode {
		logger.Warn("PLANTID_TEST_MODE=1, using mock gateway")
		return mockgw.NewMockGateway(logger), nil
	}

	switch cfg.VisionBackend {
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			return nil, errors.New("CLAUDE_API_KEY is required when VISION_BACKEND=claude")
		}
		logger.Info("using Claude backend", "model", cfg.ClaudeModel)
		return claudegw.NewClaudeGateway(cfg.ClaudeAPIKey, cfg.ClaudeModel), nil
	case "ollama":
		logger.Info("using Ollama backend", "host", cfg.OllamaHost, "model", cfg.OllamaModel)
		return ollamagw.NewOllamaGateway(cfg.OllamaHost, cfg.OllamaModel), nil
	case "gemini", "":
		if cfg.GeminiAPIKey == "" {
			return nil, errors.New("GEMINI_API_KEY is required when VISION_BACKEND=gemini")
		}
		logger.Info("using Gemini backend", "model", cfg.GeminiModel)
		g, err := geminigw.NewGeminiGateway(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown VISION_BACKEND %q", cfg.VisionBackend)
	}
}
