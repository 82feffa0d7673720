// Package app builds the service graph from configuration. Backing services
// are optional: without Redis, Postgres or Kafka the matching in-memory
// implementation is used.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	audithandler "trustline/internal/audit"
	awardhandler "trustline/internal/award/handler"
	awardmetrics "trustline/internal/award/metrics"
	awardpublisher "trustline/internal/award/publisher"
	awardservice "trustline/internal/award/service"
	awardstore "trustline/internal/award/store"
	"trustline/internal/decision"
	"trustline/internal/decision/adapters"
	decisionhandler "trustline/internal/decision/handler"
	decisionmetrics "trustline/internal/decision/metrics"
	decisionstore "trustline/internal/decision/store"
	"trustline/internal/geocode"
	jwttoken "trustline/internal/jwt_token"
	"trustline/internal/noise"
	"trustline/internal/platform/config"
	"trustline/internal/platform/kafka"
	"trustline/internal/platform/metrics"
	"trustline/internal/platform/postgres"
	"trustline/internal/platform/redis"
	ratelimitmetrics "trustline/internal/ratelimit/metrics"
	ratelimitmw "trustline/internal/ratelimit/middleware"
	ratelimitmodels "trustline/internal/ratelimit/models"
	ratelimitservice "trustline/internal/ratelimit/service"
	ratelimitstore "trustline/internal/ratelimit/store"
	httptransport "trustline/internal/transport/http"
	"trustline/internal/verification/evidence"
	verificationhandler "trustline/internal/verification/handler"
	"trustline/internal/verification/history"
	verificationmetrics "trustline/internal/verification/metrics"
	"trustline/internal/verification/ports"
	verificationservice "trustline/internal/verification/service"
	verificationstore "trustline/internal/verification/store"
	audit "trustline/pkg/platform/audit"
	"trustline/pkg/platform/audit/publishers/compliance"
	auditmemory "trustline/pkg/platform/audit/store/memory"
	auditpostgres "trustline/pkg/platform/audit/store/postgres"
	"trustline/pkg/platform/circuit"
	"trustline/pkg/platform/tx"
)

// sessionSweepInterval paces the in-memory session cleanup.
const sessionSweepInterval = time.Minute

// App is a wired service ready to serve.
type App struct {
	Handler http.Handler
	Tokens  *jwttoken.JWTService

	closers []func(context.Context)
}

// New connects the configured backing services and wires every module.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close(context.WithoutCancel(ctx))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	health := map[string]httptransport.HealthCheck{}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		a.closers = append(a.closers, func(context.Context) { _ = rdb.Close() })
		health["redis"] = rdb.Health
		logger.InfoContext(ctx, "redis enabled")
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if db != nil {
		a.closers = append(a.closers, func(context.Context) { _ = db.Close() })
		health["postgres"] = db.PingContext
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		logger.InfoContext(ctx, "postgres enabled", "migrate", cfg.Postgres.Migrate)
	}

	kc, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	if kc != nil {
		a.closers = append(a.closers, kc.Close)
		health["kafka"] = kc.Producer.Ping
		if cfg.Kafka.EnsureTopic {
			if err := awardpublisher.EnsureTopic(ctx, kc.Admin, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
				return nil, err
			}
		}
		logger.InfoContext(ctx, "kafka enabled", "topic", cfg.Kafka.Topic)
	}

	auditStore, auditor := newAuditor(db, registry, logger)

	award := newAwardService(cfg, rdb, kc, auditor, registry, logger)
	evaluator := newDecisionService(cfg, db, auditor, registry, logger)
	sessions := a.newSessionStore(ctx, cfg, rdb, logger)
	verification := newVerificationService(cfg, sessions, evaluator, award, auditor, registry, logger)

	limiter, err := newRateLimiter(cfg, rdb, registry, logger)
	if err != nil {
		return nil, err
	}

	a.Tokens = jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	if cfg.Auth.AdminToken == "" {
		logger.WarnContext(ctx, "admin token not set; operator routes are disabled")
	}

	a.Handler = httptransport.NewRouter(httptransport.Deps{
		Logger:       logger,
		Metrics:      metrics.NewWithRegistry(registry, registry),
		Tokens:       jwttoken.NewAdapter(a.Tokens),
		AdminToken:   cfg.Auth.AdminToken,
		RateLimit:    limiter,
		Verification: verificationhandler.New(verification, logger, cfg.Verification.MaxPhotoBytes),
		Decision:     decisionhandler.New(evaluator, logger),
		Award:        awardhandler.New(award, logger),
		Audit:        audithandler.New(auditStore, logger),
		Health:       health,
	})
	ok = true
	return a, nil
}

// Close releases backing connections in reverse order of acquisition.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
	a.closers = nil
}

func newAuditor(db *sql.DB, reg prometheus.Registerer, logger *slog.Logger) (audit.Store, *compliance.Publisher) {
	var store audit.Store = auditmemory.NewInMemoryStore()
	if db != nil {
		store = auditpostgres.New(db)
	}
	return store, compliance.New(store,
		compliance.WithLogger(logger),
		compliance.WithMetrics(compliance.NewMetrics(reg)),
	)
}

func newAwardService(cfg *config.Config, rdb *redis.Client, kc *kafka.Clients, auditor *compliance.Publisher, reg prometheus.Registerer, logger *slog.Logger) *awardservice.Service {
	var ledger awardservice.Ledger = awardstore.NewInMemoryLedger()
	if rdb != nil {
		ledger = awardstore.NewRedisLedger(rdb.Client)
	}
	var publisher awardservice.Publisher = awardpublisher.NewInMemory()
	if kc != nil {
		publisher = awardpublisher.NewKafka(kc.Producer, cfg.Kafka.Topic)
	}
	return awardservice.New(ledger,
		awardservice.WithPublisher(publisher),
		awardservice.WithAuditor(auditor),
		awardservice.WithMetrics(awardmetrics.NewWithRegisterer(reg)),
		awardservice.WithLogger(logger),
	)
}

func newDecisionService(cfg *config.Config, db *sql.DB, auditor *compliance.Publisher, reg prometheus.Registerer, logger *slog.Logger) *decision.Service {
	src := newNoise(cfg.Verification)
	var simOpts []evidence.Option
	if !cfg.Verification.SimulateLatency {
		simOpts = append(simOpts, evidence.WithLatency(0))
	}
	opts := []decision.Option{
		decision.WithAuditor(auditor),
		decision.WithMetrics(decisionmetrics.NewWithRegisterer(reg)),
		decision.WithLogger(logger),
		decision.WithEvidenceTimeout(cfg.Verification.ValidationTimeout),
	}
	if db != nil {
		opts = append(opts,
			decision.WithStore(decisionstore.NewPostgres(db)),
			decision.WithTransactor(tx.NewSQLRunner(db)),
		)
	} else {
		opts = append(opts, decision.WithStore(decisionstore.NewInMemoryStore()))
	}
	return decision.NewService(
		evidence.NewEXIFSimulator(src, simOpts...),
		adapters.NewAddressDBAdapter(evidence.NewAddressDB(src, simOpts...)),
		opts...,
	)
}

// newSessionStore prefers Redis. The in-memory store is swept in the
// background until ctx is done or the app closes.
func (a *App) newSessionStore(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *slog.Logger) ports.SessionStore {
	if rdb != nil {
		return verificationstore.NewRedis(rdb.Client, cfg.Verification.SessionTTL)
	}
	store := verificationstore.NewInMemoryStore(verificationstore.WithMemoryTTL(cfg.Verification.SessionTTL))
	cleanupCtx, stop := context.WithCancel(ctx)
	a.closers = append(a.closers, func(context.Context) { stop() })
	go func() {
		if err := store.StartCleanup(cleanupCtx, sessionSweepInterval); err != nil && !errors.Is(err, context.Canceled) {
			logger.ErrorContext(ctx, "session cleanup stopped", "error", err)
		}
	}()
	return store
}

func newVerificationService(cfg *config.Config, sessions ports.SessionStore, evaluator *decision.Service, award *awardservice.Service, auditor *compliance.Publisher, reg prometheus.Registerer, logger *slog.Logger) *verificationservice.Service {

	var analyzerOpts []history.AnalyzerOption
	if !cfg.Verification.SimulateLatency {
		analyzerOpts = append(analyzerOpts, history.WithLatency(0))
	}

	profile, err := decision.ParseProfile(cfg.Verification.DefaultProfile)
	if err != nil {
		profile = decision.FullProfile
	}

	opts := []verificationservice.Option{
		verificationservice.WithAwarder(award),
		verificationservice.WithAuditor(auditor),
		verificationservice.WithMetrics(verificationmetrics.NewWithRegisterer(reg)),
		verificationservice.WithLogger(logger),
		verificationservice.WithDefaultProfile(profile),
		verificationservice.WithMaxPhotoBytes(cfg.Verification.MaxPhotoBytes),
		verificationservice.WithValidationTimeout(cfg.Verification.ValidationTimeout),
	}
	if cfg.Geocoder.Enabled {
		opts = append(opts, verificationservice.WithGeocoder(newGeocoder(cfg.Geocoder, logger)))
	}
	return verificationservice.New(sessions, evaluator,
		history.NewSimulator(newNoise(cfg.Verification)),
		history.NewAnalyzer(analyzerOpts...),
		opts...,
	)
}

func newGeocoder(cfg config.Geocoder, logger *slog.Logger) *geocode.Fallback {
	nominatim := geocode.NewNominatim(
		geocode.WithBaseURL(cfg.BaseURL),
		geocode.WithUserAgent(cfg.UserAgent),
		geocode.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	breaker := circuit.New("nominatim",
		circuit.WithFailureThreshold(cfg.FailureThreshold),
		circuit.WithCooldown(cfg.Cooldown),
	)
	return geocode.NewFallback(nominatim, breaker, logger)
}

func newRateLimiter(cfg *config.Config, rdb *redis.Client, reg prometheus.Registerer, logger *slog.Logger) (*ratelimitmw.Middleware, error) {
	limits, err := rateLimits(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	var store ratelimitservice.BucketStore = ratelimitstore.NewInMemoryBucketStore()
	if rdb != nil {
		store = ratelimitstore.NewRedisBucketStore(rdb.Client)
	}
	svc := ratelimitservice.New(store,
		ratelimitservice.WithLimits(limits),
		ratelimitservice.WithMetrics(ratelimitmetrics.NewWithRegisterer(reg)),
	)
	return ratelimitmw.New(svc, logger, ratelimitmw.WithDisabled(cfg.RateLimit.Disabled)), nil
}

// rateLimits overlays configured limits on the defaults.
func rateLimits(cfg config.RateLimit) (map[ratelimitmodels.EndpointClass]ratelimitmodels.Limit, error) {
	limits := make(map[ratelimitmodels.EndpointClass]ratelimitmodels.Limit, len(ratelimitmodels.DefaultLimits))
	for class, limit := range ratelimitmodels.DefaultLimits {
		limits[class] = limit
	}
	for name, spec := range cfg.Limits {
		class := ratelimitmodels.EndpointClass(name)
		if !class.IsValid() {
			return nil, fmt.Errorf("rate_limit.limits: unknown endpoint class %q", name)
		}
		if spec.Requests <= 0 || spec.Window <= 0 {
			return nil, errors.New("rate_limit.limits." + name + ": requests and window must be positive")
		}
		limits[class] = ratelimitmodels.Limit{Requests: spec.Requests, Window: spec.Window}
	}
	return limits, nil
}

func newNoise(cfg config.Verification) noise.Source {
	if cfg.Seed != 0 {
		return noise.New(cfg.Seed)
	}
	return noise.NewRandom()
}
