package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/job-board/internal/config"
	"github.com/iliyamo/job-board/internal/database"
	"github.com/iliyamo/job-board/internal/handler"
	"github.com/iliyamo/job-board/internal/logging"
	"github.com/iliyamo/job-board/internal/middleware"
	"github.com/iliyamo/job-board/internal/queue"
	"github.com/iliyamo/job-board/internal/repository"
	"github.com/iliyamo/job-board/internal/router"
	"github.com/iliyamo/job-board/internal/service"
	"github.com/iliyamo/job-board/internal/utils"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// a missing .env is fine; the environment may already be populated
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	if cfg.UsingDevSecret() {
		logger.Warn("JWT_SECRET not set, using the development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		if cfg.RevocationBackend == config.BackendRedis {
			return err
		}
		logger.Warn("redis unavailable, login rate limiting disabled", "error", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var revocations service.RevocationStore
	switch cfg.RevocationBackend {
	case config.BackendRedis:
		revocations = repository.NewRedisBlacklist(rdb, "revoked")
	default:
		blacklist := repository.NewBlacklistRepo(db)
		revocations = blacklist
		go service.NewBlacklistPruner(blacklist, cfg.BlacklistPruneEvery, logger).Run(ctx)
	}

	tokens, err := utils.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return err
	}
	users := repository.NewUserRepo(db)
	auth := service.NewAuthenticator(tokens, revocations, service.NewIdentityResolver(users))

	var events service.EventPublisher = service.NopPublisher{}
	if cfg.AMQPURL != "" {
		events = service.NewAMQPPublisher(cfg.AMQPURL, logger)
		if cfg.AuditConsumer {
			go func() {
				if err := queue.NewAuditConsumer(cfg.AMQPURL, cfg.AuditLogDir, logger).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("audit consumer stopped", "error", err)
				}
			}()
		}
	}

	authHandler := &handler.AuthHandler{
		Users:        users,
		Passwords:    utils.NewPasswordHasher(cfg.PasswordPepper),
		Tokens:       tokens,
		Revocations:  revocations,
		Events:       events,
		Logger:       logger,
		CookieName:   cfg.AuthCookieName,
		CookieSecure: cfg.CookieSecure,
	}
	authHandler.Prepare()

	e := newEcho(logger)
	router.RegisterRoutes(e)
	router.RegisterAuth(e, router.Deps{
		Auth:         auth,
		Handler:      authHandler,
		LoginLimiter: loginLimiter(rdb, logger),
		CookieName:   cfg.AuthCookieName,
		Logger:       logger,
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "revocation_backend", cfg.RevocationBackend)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	err = e.Shutdown(shutdownCtx)
	authHandler.Wait()
	return err
}

func newEcho(logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				logger.LogAttrs(c.Request().Context(), slog.LevelError, "request", attrs...)
				return nil
			}
			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	}))
	return e
}

func loginLimiter(rdb *redis.Client, logger *slog.Logger) echo.MiddlewareFunc {
	cfg := config.LoadRateLimitConfig()
	if rdb == nil {
		cfg.Enabled = false
	}
	return middleware.NewTokenBucket(cfg, rdb, logger)
}
