package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dneufang33/mira-sora-visions/internal/config"
	"github.com/dneufang33/mira-sora-visions/internal/domain/rules"
	"github.com/dneufang33/mira-sora-visions/internal/infra/deepgram"
	"github.com/dneufang33/mira-sora-visions/internal/infra/did"
	"github.com/dneufang33/mira-sora-visions/internal/infra/metrics"
	"github.com/dneufang33/mira-sora-visions/internal/infra/openai"
	s3infra "github.com/dneufang33/mira-sora-visions/internal/infra/s3"
	stripeinfra "github.com/dneufang33/mira-sora-visions/internal/infra/stripe"
	pgrepo "github.com/dneufang33/mira-sora-visions/internal/repo/postgres"
	redrepo "github.com/dneufang33/mira-sora-visions/internal/repo/redis"
	audiosvc "github.com/dneufang33/mira-sora-visions/internal/services/audio"
	authsvc "github.com/dneufang33/mira-sora-visions/internal/services/auth"
	entsvc "github.com/dneufang33/mira-sora-visions/internal/services/entitlements"
	exportsvc "github.com/dneufang33/mira-sora-visions/internal/services/export"
	paymentsvc "github.com/dneufang33/mira-sora-visions/internal/services/payments"
	ratesvc "github.com/dneufang33/mira-sora-visions/internal/services/rate"
	readingsvc "github.com/dneufang33/mira-sora-visions/internal/services/readings"
	videosvc "github.com/dneufang33/mira-sora-visions/internal/services/videos"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	m := metrics.New()
	r := chi.NewRouter()
	ApplyMiddlewares(r, log, m, cfg.HTTP.RequestTimeout)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
		if cfg.Postgres.Migrate {
			if err := pgrepo.Migrate(cfg.Postgres.DSN); err != nil {
				pool.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	redisReady := pingRedis(ctx, redisClient, log)

	var mirror entsvc.Mirror = entsvc.NewMemoryMirror()
	var busy entsvc.BusyLocker
	var rateLimiter *ratesvc.Limiter
	if redisReady {
		mirror = redrepo.NewMirrorRepo(redisClient, cfg.Limits.MirrorTTL)
		busy = redrepo.NewBusyRepo(redisClient)
		rateLimiter = ratesvc.NewLimiter(redrepo.NewRateRepo(redisClient), cfg.Limits.GenerationsPerMinute, cfg.Limits.GenerationsPerHour)
	} else {
		log.Warn("redis unavailable, using in-process subscription mirror without busy flags or rate limits")
	}

	var storage *s3infra.Storage
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
		storage = s3infra.NewStorage(nil, cfg.S3.Bucket, cfg.S3.PublicBase, cfg.S3.SignedTTL)
	} else {
		storage = s3infra.NewStorage(c, cfg.S3.Bucket, cfg.S3.PublicBase, cfg.S3.SignedTTL)
	}

	policy := rules.NewTierPolicy(cfg.Billing.WrittenThreshold, cfg.Billing.WrittenPriceCents, cfg.Billing.SpokenPriceCents)
	stripeClient := stripeinfra.NewClient(cfg.Billing.StripeSecretKey)

	verifier := authsvc.NewVerifier(authsvc.Config{
		SupabaseURL:   cfg.Auth.SupabaseURL,
		AnonKey:       cfg.Auth.SupabaseAnonKey,
		JWTSecret:     cfg.Auth.JWTSecret,
		RemoteTimeout: cfg.Auth.RemoteTimeout,
	})

	entitlementService := entsvc.NewService(entsvc.Dependencies{
		Billing: stripeClient,
		Store:   pgrepo.NewSubscriberRepo(pool),
		Mirror:  mirror,
		Busy:    busy,
		Metrics: m,
		Logger:  log,
	}, entsvc.Config{
		MonthlyAllotment: cfg.Billing.MonthlyAllotment,
		Policy:           policy,
		BusyTTL:          cfg.Limits.BusyTTL,
	})

	paymentService := paymentsvc.NewService(stripeClient, paymentsvc.Config{
		Currency: cfg.Billing.Currency,
		AppURL:   cfg.AppURL,
		Policy:   policy,
	}, log)

	readingService := readingsvc.NewService(readingsvc.Dependencies{
		Store: pgrepo.NewReadingRepo(pool),
		Generator: openai.NewClient(openai.Config{
			APIKey:    cfg.Vendors.OpenAI.APIKey,
			BaseURL:   cfg.Vendors.OpenAI.BaseURL,
			Model:     cfg.Vendors.OpenAI.Model,
			MaxTokens: cfg.Vendors.OpenAI.MaxTokens,
			Timeout:   cfg.Vendors.OpenAI.Timeout,
		}),
		Limiter: rateLimiter,
		Metrics: m,
		Logger:  log,
	})

	audioService := audiosvc.NewService(audiosvc.Dependencies{
		Store:    pgrepo.NewAudioRepo(pool),
		Readings: readingService,
		Synthesizer: deepgram.NewClient(deepgram.Config{
			APIKey:  cfg.Vendors.Deepgram.APIKey,
			BaseURL: cfg.Vendors.Deepgram.BaseURL,
			Model:   cfg.Vendors.Deepgram.Model,
			Timeout: cfg.Vendors.Deepgram.Timeout,
		}),
		Storage: storage,
		Gate:    entitlementService,
		Limiter: rateLimiter,
		Metrics: m,
		Logger:  log,
	})

	exportService := exportsvc.NewService(readingService, storage, entitlementService, log)

	videoService := videosvc.NewService(videosvc.Dependencies{
		Store:    pgrepo.NewVideoRepo(pool),
		Readings: readingService,
		Presenter: did.NewClient(did.Config{
			APIKey:  cfg.Vendors.DID.APIKey,
			BaseURL: cfg.Vendors.DID.BaseURL,
			Voice:   cfg.Vendors.DID.Voice,
			Timeout: cfg.Vendors.DID.Timeout,
		}),
		Gate:    entitlementService,
		Limiter: rateLimiter,
		Metrics: m,
		Logger:  log,
	}, videosvc.Config{DefaultAvatar: cfg.Vendors.DID.DefaultAvatar})

	RegisterRoutes(r, Dependencies{
		Verifier:           verifier,
		EntitlementService: entitlementService,
		PaymentService:     paymentService,
		ReadingService:     readingService,
		AudioService:       audioService,
		ExportService:      exportService,
		VideoService:       videoService,
		Metrics:            m,
		Policy:             policy,
		Logger:             log,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		httpRouter: r,
	}, nil
}

func pingRedis(ctx context.Context, client *goredis.Client, log *zap.Logger) bool {
	if client == nil {
		return false
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis ping failed", zap.Error(err))
		return false
	}
	return true
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
