package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/opla-backend/internal/config"
	"github.com/iliyamo/opla-backend/internal/database"
	"github.com/iliyamo/opla-backend/internal/gateway"
	"github.com/iliyamo/opla-backend/internal/handler"
	"github.com/iliyamo/opla-backend/internal/logging"
	"github.com/iliyamo/opla-backend/internal/metrics"
	"github.com/iliyamo/opla-backend/internal/middleware"
	"github.com/iliyamo/opla-backend/internal/otp"
	"github.com/iliyamo/opla-backend/internal/queue"
	"github.com/iliyamo/opla-backend/internal/rbac"
	"github.com/iliyamo/opla-backend/internal/repository"
	"github.com/iliyamo/opla-backend/internal/router"
	"github.com/iliyamo/opla-backend/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, "opla-api", cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	db, err := database.Open(ctx, database.Options{
		User:     cfg.DBUser,
		Password: cfg.DBPass,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	// Redis is optional at startup; without it OTP issuance reports
	// unavailability and the HTTP limiter keeps buckets in memory.
	rdb := config.NewRedisClient(cfg.Redis, logger)
	if rdb != nil {
		defer rdb.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	tokens, err := token.NewService(cfg.TokenConfig())
	if err != nil {
		return err
	}

	otpOpts := []otp.Option{otp.WithLogger(logger), otp.WithMetrics(m)}
	if cfg.AMQPURL != "" {
		otpOpts = append(otpOpts, otp.WithNotifier(queue.NewPublisher(cfg.AMQPURL, logger)))
		consumer := queue.NewConsumer(cfg.AMQPURL, queue.LogSender{Log: logger}, logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("otp consumer stopped", "error", err)
			}
		}()
	} else {
		logger.Warn("AMQP_URL not set; OTP codes are not dispatched by SMS")
	}
	challenges := otp.NewService(otp.NewRedisStore(rdb), cfg.OTPConfig(), otpOpts...)

	members := repository.NewMembershipRepo(db)
	resolver, err := rbac.NewResolver(repository.NewRoleRepo(db), members)
	if err != nil {
		return err
	}
	gw, err := gateway.New(gateway.Deps{
		Users:      repository.NewUserRepo(db),
		Orgs:       repository.NewOrgRepo(db),
		Members:    members,
		Teams:      repository.NewTeamRepo(db),
		Tokens:     tokens,
		OTP:        challenges,
		RBAC:       resolver,
		BcryptCost: cfg.BcryptCost,
		Logger:     logger,
		Metrics:    m,
	})
	if err != nil {
		return err
	}

	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(logging.RequestLogger(logger))
	e.Use(m.Middleware())

	router.RegisterRoutes(e, handler.NewHealthHandler(healthChecks(db, rdb)), m.Handler())
	router.RegisterAuth(e, handler.NewAuthHandler(gw), gw, middleware.NewTokenBucket(rlCfg, rdb, logger))
	router.RegisterOrganizations(e, handler.NewOrgHandler(gw), handler.NewRoleHandler(gw), handler.NewTeamHandler(gw), gw)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr, "mode", string(cfg.Mode()))
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
	return e.Shutdown(shutdownCtx)
}

func healthChecks(db *sql.DB, rdb *redis.Client) map[string]handler.Check {
	checks := map[string]handler.Check{"mysql": db.PingContext}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}
