package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/docqa-assistant/server/internal/assistant/extract"
	"github.com/docqa-assistant/server/internal/assistant/generation"
	"github.com/docqa-assistant/server/internal/assistant/model"
	"github.com/docqa-assistant/server/internal/assistant/repo"
	"github.com/docqa-assistant/server/internal/assistant/session"
	"github.com/docqa-assistant/server/internal/core"
	"github.com/docqa-assistant/server/internal/server"
	logx "github.com/docqa-assistant/server/pkg/logger"
	pkgredis "github.com/docqa-assistant/server/pkg/redis"
)

// AppConfig defines all configurable parameters of the assistant,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogFile     string `envconfig:"LOG_FILE"`

	// Infrastructure
	HTTP  server.Config
	Redis pkgredis.Config

	// Assistant configs
	Session    model.SessionConfig
	Generation model.GenerationConfig
	Prompt     model.PromptConfig
	Upload     model.UploadConfig
}

func main() {
	// Load .env file
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env file: %v\n", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to process environment config: %v\n", err)
		os.Exit(1)
	}

	env := core.ParseEnvironment(cfg.Environment)
	logx.Init(logx.LoggerOpts{Environment: env, FilePath: cfg.LogFile})
	gin.SetMode(env.GinMode())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newSessionStore(ctx, cfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to initialise session store")
	}
	defer closeStore()

	gen := generation.NewClient(cfg.Generation)
	controller, err := session.NewController(store, extract.NewDocumentExtractor(), gen, session.Config{
		Model:         cfg.Generation.Model,
		Prompt:        cfg.Prompt,
		ResetOnUpload: cfg.Session.ResetOnUpload,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build session controller")
	}

	router, err := server.NewRouter(server.Deps{
		Assistant: controller,
		HTTP:      cfg.HTTP,
		Session:   cfg.Session,
		Upload:    cfg.Upload,
		Model:     gen.Model(),
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build router")
	}

	logx.Info().
		Str("environment", env.String()).
		Str("store", cfg.Session.Store).
		Str("model", gen.Model()).
		Str("generationURL", cfg.Generation.URL).
		Msg("financial document assistant starting")

	if err := server.Run(ctx, cfg.HTTP, router); err != nil {
		logx.Error().Err(err).Msg("server stopped with error")
		closeStore()
		os.Exit(1)
	}
	logx.Info().Msg("server stopped")
}

// newSessionStore picks the session backend named by SESSION_STORE.
func newSessionStore(ctx context.Context, cfg AppConfig) (model.SessionStore, func(), error) {
	switch cfg.Session.Store {
	case "", model.StoreMemory:
		return repo.NewMemorySessionRepository(cfg.Session.TTL), func() {}, nil
	case model.StoreRedis:
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		logx.Info().Msg("connected to redis")
		return repo.NewRedisSessionRepository(rdb, cfg.Session.TTL), func() { _ = rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown SESSION_STORE %q (want %q or %q)", cfg.Session.Store, model.StoreMemory, model.StoreRedis)
	}
}
