// Command server starts the Tube Curator admin API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"tube-curator/internal/api"
	"tube-curator/internal/auth"
	"tube-curator/internal/curation"
	"tube-curator/internal/observability/logging"
	"tube-curator/internal/observability/metrics"
	"tube-curator/internal/server"
	"tube-curator/internal/storage"
	"tube-curator/internal/youtube"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	dataPath := flag.String("data", "", "path to JSON datastore")
	storageDriver := flag.String("storage-driver", "", "datastore driver (json or postgres)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresMaxConnLifetime := flag.Duration("postgres-max-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection")
	postgresMaxConnIdle := flag.Duration("postgres-max-conn-idle", 0, "maximum idle time for a pooled Postgres connection")
	postgresHealthInterval := flag.Duration("postgres-health-interval", 0, "interval between Postgres health checks")
	postgresAcquireTimeout := flag.Duration("postgres-acquire-timeout", 0, "timeout when acquiring a Postgres connection from the pool")
	postgresAppName := flag.String("postgres-app-name", "", "application_name reported to Postgres")
	mode := flag.String("mode", "", "server runtime mode (development or production)")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	jwtSecret := flag.String("jwt-secret", "", "HMAC secret for access tokens (at least 32 bytes)")
	jwtIssuer := flag.String("jwt-issuer", "", "issuer claim stamped on access tokens")
	jwtAudience := flag.String("jwt-audience", "", "audience claim stamped on access tokens")
	jwtTTL := flag.Duration("jwt-ttl", 0, "access token lifetime")
	rateLimit := flag.Int("rate-limit", 0, "requests allowed per client per window (0 uses the default)")
	rateWindow := flag.Duration("rate-window", 0, "fixed rate limiting window")
	rateRedisAddr := flag.String("rate-redis-addr", "", "Redis address for shared rate limit counters")
	rateRedisPassword := flag.String("rate-redis-password", "", "Redis password for shared rate limit counters")
	rateRedisTimeout := flag.Duration("rate-redis-timeout", 0, "timeout for Redis rate limit operations")
	adminOrigins := flag.String("cors-admin-origins", "", "comma separated origins allowed for the admin console")
	mobileOrigins := flag.String("cors-mobile-origins", "", "comma separated origins allowed for web mobile builds")
	validateInterval := flag.Duration("validate-interval", 0, "how often the availability sweep runs (0 disables)")
	validateStaleness := flag.Duration("validate-staleness", 0, "how old a check may be before a video is due again")
	validateBatch := flag.Int("validate-batch", 0, "maximum videos per availability sweep")
	validateConcurrency := flag.Int("validate-concurrency", 0, "concurrent availability probes per sweep")
	probeTimeout := flag.Duration("probe-timeout", 0, "timeout for a single YouTube availability probe")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("TUBE_CURATOR_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("TUBE_CURATOR_LOG_FORMAT")),
	})
	auditLogger := logging.WithComponent(logger, "audit")
	recorder := metrics.Default()

	serverMode := modeValue(*mode, os.Getenv("TUBE_CURATOR_MODE"))
	listenAddr := resolveListenAddr(*addr, serverMode, os.Getenv("TUBE_CURATOR_ADDR"))

	postgresDefaultDSN := resolvePostgresDSN(*postgresDSN)
	driver, err := resolveStorageDriver(*storageDriver, os.Getenv("TUBE_CURATOR_STORAGE_DRIVER"), postgresDefaultDSN)
	if err != nil {
		logger.Error("failed to resolve storage driver", "error", err)
		os.Exit(1)
	}
	if serverMode == "production" && driver != "postgres" {
		logger.Error("production mode requires the postgres datastore driver", "driver", driver)
		os.Exit(1)
	}

	var store storage.Repository
	switch driver {
	case "json":
		dataFile := resolveDataPath(*dataPath, os.Getenv("TUBE_CURATOR_DATA"))
		store, err = storage.NewJSONRepository(dataFile)
	case "postgres":
		if postgresDefaultDSN == "" {
			logger.Error("postgres storage selected without DSN")
			os.Exit(1)
		}
		var pgOptions []storage.Option
		maxConns := resolveInt(*postgresMaxConns, "TUBE_CURATOR_POSTGRES_MAX_CONNS")
		minConns := resolveInt(*postgresMinConns, "TUBE_CURATOR_POSTGRES_MIN_CONNS")
		if maxConns > 0 || minConns > 0 {
			pgOptions = append(pgOptions, storage.WithPostgresPoolLimits(int32(maxConns), int32(minConns)))
		}
		maxLifetime := resolveDuration(*postgresMaxConnLifetime, "TUBE_CURATOR_POSTGRES_MAX_CONN_LIFETIME", 0)
		maxIdle := resolveDuration(*postgresMaxConnIdle, "TUBE_CURATOR_POSTGRES_MAX_CONN_IDLE", 0)
		healthInterval := resolveDuration(*postgresHealthInterval, "TUBE_CURATOR_POSTGRES_HEALTH_INTERVAL", 0)
		if maxLifetime > 0 || maxIdle > 0 || healthInterval > 0 {
			pgOptions = append(pgOptions, storage.WithPostgresPoolDurations(maxLifetime, maxIdle, healthInterval))
		}
		if acquireTimeout := resolveDuration(*postgresAcquireTimeout, "TUBE_CURATOR_POSTGRES_ACQUIRE_TIMEOUT", 0); acquireTimeout > 0 {
			pgOptions = append(pgOptions, storage.WithPostgresAcquireTimeout(acquireTimeout))
		}
		if appName := firstNonEmpty(*postgresAppName, os.Getenv("TUBE_CURATOR_POSTGRES_APP_NAME")); appName != "" {
			pgOptions = append(pgOptions, storage.WithPostgresApplicationName(appName))
		}
		store, err = storage.NewPostgresRepository(postgresDefaultDSN, pgOptions...)
	default:
		logger.Error("unsupported storage driver", "driver", driver)
		os.Exit(1)
	}
	if err != nil {
		logger.Error("failed to open datastore", "error", err)
		os.Exit(1)
	}

	secret := firstNonEmpty(*jwtSecret, os.Getenv("TUBE_CURATOR_JWT_SECRET"))
	if secret == "" {
		logger.Error("no token secret configured: provide --jwt-secret or TUBE_CURATOR_JWT_SECRET")
		os.Exit(1)
	}
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:    []byte(secret),
		Issuer:    firstNonEmpty(*jwtIssuer, os.Getenv("TUBE_CURATOR_JWT_ISSUER")),
		Audience:  firstNonEmpty(*jwtAudience, os.Getenv("TUBE_CURATOR_JWT_AUDIENCE")),
		AccessTTL: resolveDuration(*jwtTTL, "TUBE_CURATOR_JWT_TTL", 0),
	})
	if err != nil {
		logger.Error("failed to configure token manager", "error", err)
		os.Exit(1)
	}

	checker := youtube.NewClient(youtube.WithHTTPClient(&http.Client{
		Timeout: resolveDuration(*probeTimeout, "TUBE_CURATOR_PROBE_TIMEOUT", 10*time.Second),
	}))

	handler := api.NewHandler(store, tokens)
	handler.Checker = checker

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	validator := curation.NewValidator(store, checker, logging.WithComponent(logger, "validator"), recorder, curation.Config{
		CheckInterval: resolveDuration(*validateStaleness, "TUBE_CURATOR_VALIDATE_STALENESS", 0),
		BatchSize:     resolveInt(*validateBatch, "TUBE_CURATOR_VALIDATE_BATCH"),
		Concurrency:   resolveInt(*validateConcurrency, "TUBE_CURATOR_VALIDATE_CONCURRENCY"),
	})
	sweepInterval := resolveDuration(*validateInterval, "TUBE_CURATOR_VALIDATE_INTERVAL", time.Hour)
	validatorStop := startVideoValidationWorker(workerCtx, logging.WithComponent(logger, "validator"), validator, sweepInterval)
	defer validatorStop()

	srv, err := server.New(handler, server.Config{
		Addr: listenAddr,
		TLS: server.TLSConfig{
			CertFile: firstNonEmpty(*tlsCert, os.Getenv("TUBE_CURATOR_TLS_CERT")),
			KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("TUBE_CURATOR_TLS_KEY")),
		},
		RateLimit: server.RateLimitConfig{
			Limit:         resolveInt(*rateLimit, "TUBE_CURATOR_RATE_LIMIT"),
			Window:        resolveDuration(*rateWindow, "TUBE_CURATOR_RATE_WINDOW", 0),
			RedisAddr:     firstNonEmpty(*rateRedisAddr, os.Getenv("TUBE_CURATOR_RATE_REDIS_ADDR")),
			RedisPassword: firstNonEmpty(*rateRedisPassword, os.Getenv("TUBE_CURATOR_RATE_REDIS_PASSWORD")),
			RedisTimeout:  resolveDuration(*rateRedisTimeout, "TUBE_CURATOR_RATE_REDIS_TIMEOUT", 2*time.Second),
		},
		CORS: server.CORSConfig{
			AdminOrigins:  splitAndTrim(firstNonEmpty(*adminOrigins, os.Getenv("TUBE_CURATOR_CORS_ADMIN_ORIGINS"))),
			MobileOrigins: splitAndTrim(firstNonEmpty(*mobileOrigins, os.Getenv("TUBE_CURATOR_CORS_MOBILE_ORIGINS"))),
		},
		Verifier:    tokens,
		Logger:      logger,
		AuditLogger: auditLogger,
		Metrics:     recorder,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info("Tube Curator API listening", "addr", listenAddr, "mode", serverMode, "driver", driver)
		logger.Info("metrics endpoint available", "path", "/metrics")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errs:
		logger.Error("server error", "error", err)
	}

	workerCancel()
	validatorStop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	if err := store.Close(ctx); err != nil {
		logger.Warn("failed to close datastore", "error", err)
	}

	logger.Info("server stopped")
}

func modeValue(flagMode, envMode string) string {
	mode := strings.ToLower(strings.TrimSpace(flagMode))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(envMode))
	}
	if mode == "" {
		mode = "development"
	}
	return mode
}

func resolveListenAddr(flagValue, mode, envAddr string) string {
	listenAddr := strings.TrimSpace(flagValue)
	if listenAddr == "" {
		listenAddr = strings.TrimSpace(envAddr)
	}
	if listenAddr == "" {
		listenAddr = defaultListenForMode(mode)
	}
	return listenAddr
}

func defaultListenForMode(mode string) string {
	if mode == "production" {
		return ":80"
	}
	return ":8080"
}

func resolveStorageDriver(flagValue, envValue, postgresDSN string) (string, error) {
	if driver := strings.ToLower(strings.TrimSpace(flagValue)); driver != "" {
		return driver, nil
	}
	if driver := strings.ToLower(strings.TrimSpace(envValue)); driver != "" {
		return driver, nil
	}
	if strings.TrimSpace(postgresDSN) != "" {
		return "postgres", nil
	}
	return "json", nil
}

func resolveDataPath(flagValue, envValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := strings.TrimSpace(envValue); env != "" {
		return env
	}
	return "data/store.json"
}

func resolvePostgresDSN(flagValue string) string {
	return strings.TrimSpace(firstNonEmpty(flagValue, os.Getenv("TUBE_CURATOR_POSTGRES_DSN"), os.Getenv("DATABASE_URL")))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}
