// Package app wires configuration, storage, services and HTTP routes together.
package app

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/web-casa/aiui/internal/auth"
	"github.com/web-casa/aiui/internal/cache"
	"github.com/web-casa/aiui/internal/config"
	"github.com/web-casa/aiui/internal/database"
	"github.com/web-casa/aiui/internal/event"
	"github.com/web-casa/aiui/internal/llm"
	"github.com/web-casa/aiui/internal/logging"
	"github.com/web-casa/aiui/internal/metrics"
	"github.com/web-casa/aiui/internal/noa"
	"github.com/web-casa/aiui/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// login attempts allowed per IP inside the window
const (
	loginMaxAttempts = 5
	loginWindowSecs  = 900
)

// App holds all application dependencies.
type App struct {
	cfg     *config.Config
	router  *gin.Engine
	db      *gorm.DB
	redis   *cache.Redis
	limiter *auth.RateLimiter
	log     *zap.Logger
}

// Services groups the domain services built from one database.
type Services struct {
	Models  *service.AIModelService
	Threads *service.ThreadService
	Prompts *service.PromptService
	Users   *service.UserService
}

// NewServices builds the domain services. A nil cache disables model caching.
func NewServices(db *gorm.DB, c cache.ModelCache, completer service.Completer, bus *event.Bus, log *zap.Logger, cfg *config.Config) *Services {
	return &Services{
		Models:  service.NewAIModelService(db, c, bus, log),
		Threads: service.NewThreadService(db, bus, log),
		Prompts: service.NewPromptService(db, completer, bus, log, cfg.AITimeout),
		Users:   service.NewUserService(db, log),
	}
}

// New initializes the application: DB → cache → event bus → services → routes.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := database.Init(cfg.DatabaseURL, log)
	if err != nil {
		return nil, errors.Wrap(err, "database")
	}

	a := &App{cfg: cfg, db: db, log: log}

	var modelCache cache.ModelCache
	if cfg.RedisURL != "" {
		a.redis, err = cache.Connect(cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "redis")
		}
		modelCache = a.redis
		log.Info("model cache enabled")
	}

	bus := event.NewBus(log)
	if modelCache != nil {
		cache.Subscribe(bus, modelCache, log)
	}
	metrics.Subscribe(bus)

	client := llm.NewClient(cfg.OpenAIAPIKey)
	svcs := NewServices(db, modelCache, client, bus, log, cfg)

	var transcriber noa.Transcriber
	if cfg.OpenAIAPIKey != "" || cfg.TranscribeBaseURL != "" {
		transcriber = llm.NewTranscriber(cfg.TranscribeBaseURL, cfg.OpenAIAPIKey, cfg.TranscribeModel)
	}
	proc := noa.NewProcessor(transcriber, svcs.Models, svcs.Prompts, noa.Options{
		Model:             cfg.NOAModel,
		Persist:           cfg.NOAPersist,
		TranscribeTimeout: cfg.AITimeout,
	}, log)

	a.limiter = auth.NewRateLimiter(loginMaxAttempts, loginWindowSecs)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(logging.Middleware(log))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	a.router = router

	a.registerRoutes(svcs, client, proc)
	return a, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return ":" + a.cfg.Port }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background work and closes connections.
func (a *App) Shutdown() {
	a.limiter.Close()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close failed", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	cfg.AllowOriginFunc = func(origin string) bool { return allowed[origin] }
	return cfg
}
