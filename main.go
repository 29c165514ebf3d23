package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/crypto/bcrypt"

	"todo-api/api"
	"todo-api/domain"
	"todo-api/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configureLogging()
	cfg := loadConfig()
	logger := log.StandardLogger()

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.sampleRatio))),
	)
	otel.SetTracerProvider(tp)

	store, err := storage.New(cfg.connStr, cfg.todosTable, cfg.usersTable, cfg.eventsQueue)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	var (
		todos   domain.TodoStorage     = store
		users   domain.IdentityStorage = store
		deduper api.Deduper
		rc      *redis.Client
	)
	if cfg.redisConn != "" {
		rc = redis.NewClient(redisOptions(cfg.redisConn))
		cache := storage.NewCache(store, rc, cfg.cacheTTL)
		todos, users = cache, cache
		deduper = api.NewRedisDeduper(rc, cfg.idempotencyTTL)
	} else {
		log.Warn("REDIS_CONNECTION_STRING not set; cache and idempotency keys disabled")
	}

	var (
		events domain.EventPublisher
		sender *api.EventSender
	)
	if cfg.eventsQueue != "" {
		sender = api.NewEventSender(store, api.EventSenderConfig{
			Workers:        cfg.eventWorkers,
			Buffer:         cfg.eventBuffer,
			HandoffTimeout: 50 * time.Millisecond,
			RetryInitial:   cfg.eventRetryInitial,
			RetryMax:       cfg.eventRetryMax,
			MaxAttempts:    cfg.eventMaxAttempts,
		}, logger)
		events = sender
	}

	authCfg := api.AuthConfig{
		Secret:      []byte(cfg.jwtSecret),
		Expiry:      cfg.jwtExpiry,
		Audience:    cfg.jwtAudience,
		Issuer:      cfg.jwtIssuer,
		KeyCacheTTL: cfg.jwksCacheTTL,
	}
	if cfg.jwksURL != "" {
		jwks, err := keyfunc.Get(cfg.jwksURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				log.WithError(err).Error("jwks refresh failed")
			},
		})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		defer jwks.EndBackground()
		authCfg.JWKS = jwks
	}
	auth, err := api.NewAuth(authCfg)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = api.SonicSerializer{}
	e.HTTPErrorHandler = api.HTTPErrorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, api.IdempotencyHeader},
	}))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(api.GzipRequestMiddleware())

	api.Register(e, api.Deps{
		Todos:   domain.NewTodoService(todos, users, events),
		Users:   domain.NewUserService(users, bcrypt.DefaultCost),
		Auth:    auth,
		Tokens:  auth,
		Deduper: deduper,
		Logger:  logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := e.Start(":" + cfg.port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	if sender != nil {
		sender.Close()
	}
	if rc != nil {
		if err := rc.Close(); err != nil {
			log.WithError(err).Warn("redis close")
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("tracer shutdown")
	}
}
