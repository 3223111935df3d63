package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orderhub-dev/backend-kiosk/internal/analytics"
	"github.com/orderhub-dev/backend-kiosk/internal/audit"
	"github.com/orderhub-dev/backend-kiosk/internal/auth"
	"github.com/orderhub-dev/backend-kiosk/internal/catalog"
	"github.com/orderhub-dev/backend-kiosk/internal/common"
	"github.com/orderhub-dev/backend-kiosk/internal/config"
	"github.com/orderhub-dev/backend-kiosk/internal/db"
	"github.com/orderhub-dev/backend-kiosk/internal/device"
	"github.com/orderhub-dev/backend-kiosk/internal/health"
	"github.com/orderhub-dev/backend-kiosk/internal/kiosk"
	"github.com/orderhub-dev/backend-kiosk/internal/obs"
	"github.com/orderhub-dev/backend-kiosk/internal/order"
	"github.com/orderhub-dev/backend-kiosk/internal/payment"
	"github.com/orderhub-dev/backend-kiosk/internal/queue"
	"github.com/orderhub-dev/backend-kiosk/internal/ratelimit"
	"github.com/orderhub-dev/backend-kiosk/internal/realtime"
	"github.com/orderhub-dev/backend-kiosk/internal/security"
	"github.com/orderhub-dev/backend-kiosk/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "kiosk")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "kiosk-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if envBool("DB_AUTO_MIGRATE", true) {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, "kiosk-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	validate := validator.New()

	catalogStore := &catalog.Store{Pool: pool}
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store: catalogStore,
		Cache: catalog.NewCache(redisClient, cfg.MenuCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})
	catalogAdmin := catalog.NewAdminHandler(catalog.AdminHandlerConfig{
		Store:    catalogStore,
		Service:  catalogService,
		Validate: validate,
	})

	authService, err := auth.NewService(auth.Config{
		Pool:      pool,
		Secret:    cfg.JWTSecret,
		AccessTTL: cfg.AccessTokenTTL,
		Issuer:    "kiosk-api",
		Audience:  "back-office",
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := auth.NewHandler(authService)
	authMiddleware := auth.Middleware{Service: authService}

	deviceService := &device.Service{Pool: pool}
	deviceHandler := device.NewHandler(deviceService)
	deviceMiddleware := device.Middleware{Service: deviceService}

	orderStore := &order.Store{Pool: pool}
	journal := &order.Journal{Client: redisClient, Log: logger}
	orderHandler := order.NewHandler(order.HandlerConfig{Store: orderStore, Journal: journal})

	auditStore := &audit.PGStore{Pool: pool}
	auditService := &audit.Service{
		Store:        auditStore,
		Enabled:      envBool("AUDIT_ENABLED", true),
		SamplingRate: envFloat("AUDIT_SAMPLING_RATE", 1.0),
	}
	auditRecorder := audit.HTTPRecorder{
		Service: auditService,
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("audit record failed")
		},
	}
	auditHandler := audit.Handler{Store: auditStore}

	analyticsHandler := &analytics.Handler{Svc: &analytics.Service{
		Pool:         pool,
		R:            redisClient,
		TTL:          cfg.AnalyticsCacheTTL,
		DefaultRange: cfg.AnalyticsRange,
	}}

	enqueuer := queue.Enqueuer{R: redisClient}
	queueStore := queue.NewStore(pool)
	queueAdmin := &queue.AdminHandler{Store: queueStore, Queue: enqueuer, Logger: logger}

	publisher := &realtime.Publisher{Client: redisClient}
	stream := &realtime.StreamHandler{
		Subscriber: &realtime.Subscriber{Client: redisClient},
		Log:        logger,
	}

	collector := &payment.Collector{
		Terminal:     payment.NewHTTPTerminal(cfg.TerminalBaseURL, cfg.TerminalAPIKey),
		PollInterval: cfg.TerminalPollInterval,
		PollAttempts: cfg.TerminalPollAttempts,
	}

	registry, err := kiosk.NewRegistry(kiosk.Deps{
		Catalog:     catalogService,
		Collector:   collector,
		Orders:      orderStore,
		Journal:     journal,
		Publish:     publisher,
		SideEffects: queue.Scheduler{Enq: enqueuer},
		TaxBps:      cfg.TaxBps,
		CardFeeBps:  cfg.CardFeeBps,
		TipPercents: cfg.TipPercents,
		IdleTimeout: cfg.IdleTimeout,
		ResetDelay:  cfg.ResetDelay,
		Log:         logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise session registry")
	}
	kioskHandler := kiosk.NewHandler(kiosk.HandlerConfig{Registry: registry})

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go registry.RunSweeper(sweepCtx, cfg.SweepInterval)

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	sessionLimiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:sessions:"},
		Config: ratelimit.Config{
			Key:    sessionRateKey,
			Window: cfg.SessionRateWindow,
			Max:    cfg.SessionRateMax,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	tenantResolver := tenant.NewResolver(cfg.TenantHeader, cfg.RootDomain, cfg.DefaultTenant)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Tenant-ID", "X-Device-ID", "X-Device-Secret", "X-Kiosk-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	pprofEnabled := envBool("OBS_ENABLE_PPROF", true)
	if pprofEnabled {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		// Guest-facing kiosk surface. Devices authenticate with provisioned
		// secrets; the device binds the request to its tenant.
		v.Route("/kiosk", func(k chi.Router) {
			k.Use(deviceMiddleware.Require)
			k.Get("/menu", catalogHandler.Menu)
			k.With(sessionLimiter.Middleware, idem.Middleware).Post("/sessions", kioskHandler.StartSession)
			kioskHandler.SessionRoutes(k)
		})

		// Kitchen display stream. Staff tokens carry the tenant.
		v.Route("/kds", func(k chi.Router) {
			k.Use(authMiddleware.RequireAuth)
			k.Get("/stream", stream.ServeHTTP)
			k.Get("/orders", orderHandler.List)
			k.Patch("/orders/{id}/status", orderHandler.UpdateStatus)
		})

		v.With(tenantResolver.Middleware).Post("/admin/login", authHandler.Login)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)
			admin.Use(auditRecorder.Middleware(audit.HTTPConfig{}))

			admin.Get("/audit-logs", auditHandler.List)

			admin.Route("/analytics", func(an chi.Router) {
				an.Get("/sales", analyticsHandler.Sales)
				an.Get("/top-items", analyticsHandler.TopItems)
				an.Get("/overview", analyticsHandler.Overview)
			})

			admin.Get("/orders", orderHandler.List)
			admin.Get("/orders/{id}", orderHandler.Get)
			admin.Patch("/orders/{id}/status", orderHandler.UpdateStatus)
			admin.Get("/orders/journal", orderHandler.Journal)
			admin.Delete("/orders/journal/{paymentRef}", orderHandler.ResolveJournal)

			admin.Post("/devices", deviceHandler.Provision)
			admin.Get("/devices", deviceHandler.List)
			admin.Delete("/devices/{id}", deviceHandler.Revoke)

			admin.Route("/menu", func(m chi.Router) {
				m.Post("/categories", catalogAdmin.CreateCategory)
				m.Put("/categories/{id}", catalogAdmin.UpdateCategory)
				m.Delete("/categories/{id}", catalogAdmin.DeleteCategory)
				m.Post("/items", catalogAdmin.CreateItem)
				m.Put("/items/{id}", catalogAdmin.UpdateItem)
				m.Patch("/items/{id}/sold-out", catalogAdmin.SetSoldOut)
				m.Delete("/items/{id}", catalogAdmin.DeleteItem)
				m.Post("/modifier-groups", catalogAdmin.CreateGroup)
				m.Put("/modifier-groups/{id}", catalogAdmin.UpdateGroup)
				m.Delete("/modifier-groups/{id}", catalogAdmin.DeleteGroup)
				m.Post("/modifier-groups/{id}/options", catalogAdmin.CreateOption)
				m.Put("/modifier-options/{id}", catalogAdmin.UpdateOption)
				m.Delete("/modifier-options/{id}", catalogAdmin.DeleteOption)
				m.Post("/items/{id}/modifier-groups/{groupId}", catalogAdmin.AttachGroup)
				m.Delete("/items/{id}/modifier-groups/{groupId}", catalogAdmin.DetachGroup)
			})

			admin.Route("/queue", func(q chi.Router) {
				q.Get("/dlq", queueAdmin.ListDLQ)
				q.Post("/dlq/{id}/replay", queueAdmin.ReplayDLQ)
				q.Get("/stats", queueAdmin.Stats)
			})
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()
	health.SetReady(true)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-runCtx.Done():
		logger.Info().Msg("shutdown signal received")
		health.SetReady(false)
		stopSweeper()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

// sessionRateKey buckets session creation per device, falling back to the
// client address for unauthenticated probes.
func sessionRateKey(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-Device-ID")); id != "" {
		return id
	}
	return common.ClientIP(r)
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/block", pprof.Handler("block"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/mutex", pprof.Handler("mutex"))
	mux.Handle("/threadcreate", pprof.Handler("threadcreate"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
