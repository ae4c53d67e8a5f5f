// cmd/portal/main.go
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"recruit-portal/internal/backend"
	"recruit-portal/internal/common/auth"
	"recruit-portal/internal/common/config"
	"recruit-portal/internal/common/database"
	transport "recruit-portal/internal/common/http"
	"recruit-portal/internal/common/logger"
	"recruit-portal/internal/common/observability"
	"recruit-portal/internal/functions"
	"recruit-portal/internal/handler"
	"recruit-portal/internal/query"
	"recruit-portal/internal/session"
	"recruit-portal/internal/views"
	"recruit-portal/pkg/registry"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format,
		zap.String("service", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting recruit portal...", zap.String("version", cfg.App.Version))

	obs := observability.New(observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		JaegerEndpoint: cfg.Observability.JaegerEndpoint,
	}, log)
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			zapLog.Warn("observability shutdown failed", zap.Error(err))
		}
	}()

	ctx := context.Background()

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		redis = database.NewRedis(cfg.Redis)
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Identity ---
	kc := auth.NewKeycloakClient(
		cfg.Auth.Keycloak.URL,
		cfg.Auth.Keycloak.Realm,
		cfg.Auth.Keycloak.ClientID,
		cfg.Auth.Keycloak.ClientSecret,
	)
	provider := auth.NewProvider(kc, auth.NewSessionStore(redis), time.Duration(cfg.Auth.SessionTTL)*time.Second, log)
	sessions := session.NewRegistry(provider, log,
		session.WithRevalidateAfter(config.GetDuration(cfg.Auth.RevalidateAfter)),
		session.WithIdleTimeout(config.GetDuration(cfg.Auth.IdleTimeout)),
	)
	defer sessions.Close()

	// --- Backend client and query cache ---
	tc, err := transport.NewClient(transport.Config{
		BaseURL:        cfg.Backend.BaseURL,
		DefaultTimeout: config.GetDuration(cfg.Backend.DefaultTimeout),
		UploadTimeout:  config.GetDuration(cfg.Backend.UploadTimeout),
	}, log,
		transport.WithTracer(obs.Tracer()),
		transport.WithCallObserver(obs.RecordBackendCall),
	)
	if err != nil {
		zapLog.Fatal("backend transport config invalid", zap.Error(err))
	}
	api, err := backend.New(tc, registry.Default(), log)
	if err != nil {
		zapLog.Fatal("endpoint catalog invalid", zap.Error(err))
	}

	var cacheOpts []query.Option
	if cfg.Cache.Mirror {
		cacheOpts = append(cacheOpts, query.WithMirror(query.NewRedisMirror(redis)))
	}
	cache := query.New(query.Config{
		StaleTime:  config.GetDuration(cfg.Cache.StaleTime),
		RetryDelay: config.GetDuration(cfg.Cache.RetryDelay),
		GCTime:     config.GetDuration(cfg.Cache.GCTime),
	}, log, cacheOpts...)
	defer cache.Close()

	cache.Subscribe("", func(s query.Snapshot) {
		family := strings.SplitN(s.Key, "/", 2)[0]
		obs.RecordQuerySettled(context.Background(), family, string(s.Status))
	})

	loc, err := time.LoadLocation(cfg.App.TimeZone)
	if err != nil {
		zapLog.Fatal("invalid time zone", zap.String("time_zone", cfg.App.TimeZone), zap.Error(err))
	}

	// --- HTTP surface ---
	rl := handler.PerMinute(cfg.RateLimit.PublicPerMinute, cfg.RateLimit.PublicBurst)
	hcfg := handler.DefaultConfig()
	hcfg.CORSAllowedOrigin = cfg.Server.CORSAllowedOrigin
	hcfg.CookieSecure = cfg.Server.CookieSecure
	hcfg.RateLimit = rl

	h, err := handler.New(handler.Deps{
		Views:    views.New(api, cache, views.Config{Location: loc}, log),
		Auth:     provider,
		Sessions: sessions,
		GetJobs:  functions.NewGetJobs(api, log),
		Ready:    redis.Ping,
	}, hcfg, log)
	if err != nil {
		zapLog.Fatal("handler config invalid", zap.Error(err))
	}
	defer h.Close()

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      h.Routes(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("Portal listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Recruit portal stopped gracefully")
}
