package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/aphorist/aphorist/api"
	"github.com/aphorist/aphorist/auth"
	"github.com/aphorist/aphorist/auth/password"
	"github.com/aphorist/aphorist/auth/token"
	"github.com/aphorist/aphorist/config"
	"github.com/aphorist/aphorist/llm/azure"
	"github.com/aphorist/aphorist/logger"
	"github.com/aphorist/aphorist/observability"
	"github.com/aphorist/aphorist/redis"
	"github.com/aphorist/aphorist/server"
	"github.com/aphorist/aphorist/server/endpoint"
	"github.com/aphorist/aphorist/user"
	"github.com/aphorist/aphorist/version"
)

const serviceName = "aphorist"

func main() {
	var cfg config.Config
	if err := config.Load(serviceName, &cfg); err != nil {
		logger.NewDefault(serviceName).Fatal("Failed to load configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}
	build := version.Get()
	cfg.Version = build.Version
	cfg.ApplyDefaults()

	log := logger.New(&cfg.Logging, cfg.Name)
	logger.SetGlobalLogger(log)
	log.Info("Build info", map[string]interface{}{
		"version": build.Version,
		"commit":  build.Commit,
		"go":      build.GoVersion,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("Service exited with error", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func run(cfg config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := observability.Init(ctx, cfg.Name, cfg.Version, cfg.Observability, log)
	if err != nil {
		return err
	}

	rdb, err := redis.New(cfg.Redis, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("Redis close error", map[string]interface{}{"error": err.Error()})
		}
	}()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = rdb.Ping(pingCtx)
	cancel()
	if err != nil {
		// The store is allowed to be down at boot; requests report 503 until it returns.
		log.Warn("Redis unreachable at startup", map[string]interface{}{
			"addr":  cfg.Redis.Addr,
			"error": err.Error(),
		})
	}

	tokens, err := token.NewService(cfg.Auth.JWT)
	if err != nil {
		return err
	}
	hasher := password.NewHasher(cfg.Auth.Password)
	users := user.NewStore(rdb, log)
	authSvc := auth.NewService(users, hasher, tokens, log)

	provider, err := azure.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}

	metrics, err := observability.NewMetrics(cfg.Name)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server, log)
	srv.ApplyMiddleware()
	srv.Engine().GET("/health", endpoint.Health(cfg.Name, map[string]endpoint.CheckFunc{
		"redis": rdb.Ping,
	}))

	handler := api.NewHandler(authSvc, provider, metrics, log,
		api.WithProviderTimeout(cfg.LLM.Timeout))
	handler.RegisterRoutes(srv.Engine())

	if err := srv.Start(ctx); err != nil {
		return err
	}
	log.Info("Service started", map[string]interface{}{
		"addr":        srv.Addr(),
		"environment": cfg.Environment,
		"version":     cfg.Version,
	})

	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Server shutdown error", map[string]interface{}{"error": err.Error()})
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.Warn("Telemetry shutdown error", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Shutdown complete")
	return nil
}
