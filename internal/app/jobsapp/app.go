package jobsapp

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/dneufang33/mira-sora-visions/internal/config"
	s3infra "github.com/dneufang33/mira-sora-visions/internal/infra/s3"
	"github.com/dneufang33/mira-sora-visions/internal/jobs/cleanup"
	pgrepo "github.com/dneufang33/mira-sora-visions/internal/repo/postgres"
)

const jobTimeout = 5 * time.Minute

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type App struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *pgxpool.Pool
	cron     *cron.Cron
	jobs     []Job
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("init postgres for jobs app: %w", err)
	}

	s3Client, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init s3 for jobs app: %w", err)
	}
	storage := s3infra.NewStorage(s3Client, cfg.S3.Bucket, cfg.S3.PublicBase, cfg.S3.SignedTTL)

	audioCleanup := cleanup.New(pgrepo.NewAudioRepo(pool), storage, cfg.Jobs.AudioRetention, nil, logger)

	app := &App{
		cfg:      cfg,
		logger:   logger,
		postgres: pool,
	}
	if err := app.schedule(cfg.Jobs.CleanupSchedule, audioCleanup); err != nil {
		pool.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) schedule(spec string, jobs ...Job) error {
	a.cron = cron.New(cron.WithLogger(cronLogger{log: a.logger}), cron.WithChain(cron.SkipIfStillRunning(cronLogger{log: a.logger})))
	for _, job := range jobs {
		if _, err := a.cron.AddFunc(spec, func() { a.runJob(job) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name(), err)
		}
		a.jobs = append(a.jobs, job)
	}
	return nil
}

func (a *App) runJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := job.Run(ctx); err != nil {
		a.logger.Error("job failed", zap.String("job", job.Name()), zap.Error(err))
	}
}

// Run executes every job once, then on schedule until ctx is done.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("jobs app started", zap.Int("jobs", len(a.jobs)))
	for _, job := range a.jobs {
		a.runJob(job)
	}

	a.cron.Start()
	<-ctx.Done()
	stopped := a.cron.Stop()
	<-stopped.Done()

	a.logger.Info("jobs app stopped")
	return nil
}

func (a *App) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
}

type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
