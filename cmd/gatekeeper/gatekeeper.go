package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatekeeper/internal/admission"
	"gatekeeper/internal/api"
	"gatekeeper/internal/breaker"
	"gatekeeper/internal/config"
	"gatekeeper/internal/logger"
	"gatekeeper/internal/models"
	"gatekeeper/internal/observability"
	"gatekeeper/internal/ratelimit"
	"gatekeeper/internal/storage"
	"gatekeeper/internal/validate"
	"gatekeeper/internal/version"
)

var (
	configFile    = flag.String("config", "", "Path to configuration file")
	exampleConfig = flag.String("write-example-config", "", "Write an example configuration file to the given path and exit")
	showVersion   = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	ver := version.GetInfo()
	if *showVersion {
		fmt.Println(ver.String())
		return
	}
	if *exampleConfig != "" {
		if err := config.SaveExample(*exampleConfig); err != nil {
			slog.Error("Failed to write example config", "error", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	var metrics *observability.AdmissionMetrics
	if cfg.Metrics.Enabled {
		metrics, err = observability.NewAdmissionMetrics()
		if err != nil {
			slog.Error("Failed to create admission metrics", "error", err)
			os.Exit(1)
		}
	}

	storageInstance, err := storage.NewFactory().Create(cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer storageInstance.Close()

	var activeStorage storage.Storage = storageInstance
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedStorage(storageInstance)
		if err != nil {
			slog.Error("Failed to create instrumented storage", "error", err)
			os.Exit(1)
		}
		activeStorage = instrumented
	}

	breakers := breaker.NewRegistry(cfg.Breakers, func(name string, from, to breaker.State) {
		slog.Warn("Circuit breaker state change", "breaker", name, "from", from, "to", to)
		if metrics != nil {
			metrics.RecordBreakerTransition(context.Background(), name, string(from), string(to))
		}
	})

	counterStore, err := buildCounterStore(cfg, metrics)
	if err != nil {
		slog.Error("Failed to initialize rate limit store", "error", err)
		os.Exit(1)
	}
	defer counterStore.Close()
	limiter := ratelimit.NewLimiter(counterStore)

	var validator *validate.Validator
	if cfg.Validation.Enabled {
		validator, err = validate.NewValidator(cfg.Validation)
		if err != nil {
			slog.Error("Failed to compile validation rules", "error", err)
			os.Exit(1)
		}
	}

	controller, err := admission.NewController(cfg, limiter, validator, activeStorage, breakers, metrics, log)
	if err != nil {
		slog.Error("Failed to build admission pipeline", "error", err)
		os.Exit(1)
	}

	backend, err := api.NewBackend(cfg.Admission.Upstream, breakers)
	if err != nil {
		slog.Error("Failed to configure upstream", "error", err)
		os.Exit(1)
	}
	if backend == nil {
		slog.Info("No upstream configured, running standalone")
	}

	handlers := api.NewHandlers(activeStorage, breakers, ver)

	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	router := api.SetupRoutes(handlers, admission.Middleware(controller), backend, routeOpts...)

	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Starting server", "addr", server.Addr)

		var err error
		if cfg.Server.TLSEnabled {
			if cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "" {
				slog.Error("TLS is enabled but cert file or key file is not specified")
				os.Exit(1)
			}
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// buildCounterStore selects the rate limit counter backend. The Redis store
// is wrapped so that store failures degrade to per-node local counters
// instead of failing requests.
func buildCounterStore(cfg *models.Config, metrics *observability.AdmissionMetrics) (ratelimit.CounterStore, error) {
	local := ratelimit.NewLocalStore(cfg.Limits.CleanupInterval)
	if cfg.Limits.Store != models.LimitStoreRedis {
		return local, nil
	}

	redisStore, err := ratelimit.NewRedisStore(ratelimit.RedisOptions{
		Addr:      cfg.Limits.Redis.Addr,
		Password:  cfg.Limits.Redis.Password,
		DB:        cfg.Limits.Redis.DB,
		PoolSize:  cfg.Limits.Redis.PoolSize,
		KeyPrefix: cfg.Limits.Redis.KeyPrefix,
		Timeout:   cfg.Limits.StoreTimeout,
	})
	if err != nil {
		local.Close()
		return nil, err
	}

	var onDegrade func()
	if metrics != nil {
		onDegrade = func() { metrics.RecordDegraded(context.Background()) }
	}
	return ratelimit.NewFailOpenStore(redisStore, local, onDegrade), nil
}
