package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"TenderRadar/internal/config"
	"TenderRadar/internal/digest"
	"TenderRadar/internal/dispatch"
	"TenderRadar/internal/infrastructure/archive"
	"TenderRadar/internal/infrastructure/classifier"
	"TenderRadar/internal/infrastructure/email"
	"TenderRadar/internal/infrastructure/parser"
	"TenderRadar/internal/infrastructure/scheduler"
	"TenderRadar/internal/infrastructure/storage"
	"TenderRadar/internal/infrastructure/ted"
	"TenderRadar/internal/logging"
	"TenderRadar/internal/matcher"
	"TenderRadar/internal/ports"
	"TenderRadar/internal/source"
	"TenderRadar/internal/usecase"
)

// Application wires config to the pipeline stages and owns their lifecycle.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sqlx.DB
	archive   *archive.Archive
	pipeline  *usecase.Pipeline
	assigner  *usecase.Assigner
	scheduler *usecase.Scheduler
}

// New builds a runnable application instance: connects storage, applies
// migrations and assembles the pipeline.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Connect(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	store := storage.NewStore(db)

	registry := source.NewRegistry()
	registry.Register("ted", ted.NewClient(
		cfg.Source.APIURL, cfg.Source.APIKey, nil,
		baseLogger.With("component", "source.ted")))
	src, err := registry.Resolve("ted")
	if err != nil {
		db.Close()
		return nil, err
	}

	noticeParser := parser.New(
		&http.Client{Timeout: cfg.Parser.Timeout()},
		baseLogger.With("component", "parser"))

	var cls ports.Classifier
	if cfg.Classifier.APIKey != "" {
		cls = classifier.NewClient(cfg.Classifier, baseLogger.With("component", "classifier"))
	}

	mailer := email.NewSMTPMailer(cfg.SMTP)
	consoleOnly := !mailer.Configured()
	if consoleOnly {
		baseLogger.Info("smtp credentials missing, digests go to the console")
	}

	var arch *archive.Archive
	if cfg.Archive.OutputDir != "" {
		arch, err = archive.Open(cfg.Archive.OutputDir, cfg.Archive.IndexPath,
			baseLogger.With("component", "archive"))
		if err != nil {
			// The archive is a side artifact; a broken index must not
			// keep notifications from going out.
			baseLogger.Warn("archive unavailable", "error", err)
			arch = nil
		}
	}

	builder := digest.New()
	dispatcher := dispatch.New(mailer, store, builder,
		baseLogger.With("component", "dispatcher"), consoleOnly)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:       src,
		Parser:       noticeParser,
		Store:        store,
		Matcher:      matcher.New(store, baseLogger.With("component", "matcher")),
		Builder:      builder,
		Dispatcher:   dispatcher,
		Archiver:     archiverOrNil(arch),
		Logger:       baseLogger.With("component", "pipeline"),
		FetchLimit:   cfg.Source.Limit,
		ParseWorkers: cfg.Parser.Workers,
	})

	assigner := usecase.NewAssigner(store, cls, baseLogger.With("component", "assigner"))

	driver := scheduler.NewDailyScheduler(cfg.Scheduler.CronExpression)
	sched := usecase.NewScheduler(driver, assigner, pipeline, baseLogger.With("component", "scheduler"))

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		archive:   arch,
		pipeline:  pipeline,
		assigner:  assigner,
		scheduler: sched,
	}, nil
}

// Run executes a single cycle when no cron expression is configured;
// otherwise it starts the scheduler and blocks until the context is done.
func (a *Application) Run(ctx context.Context) error {
	defer a.Close()

	if a.cfg.Scheduler.CronExpression == "" {
		now := time.Now().In(a.cfg.Scheduler.Location())
		if err := a.assigner.AssignAll(ctx); err != nil {
			return err
		}
		return a.pipeline.RunCycle(ctx, now)
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return a.scheduler.Stop(context.Background())
}

// Close releases the archive index and the database connection.
func (a *Application) Close() {
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.logger.Warn("close archive", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", "error", err)
		}
	}
}

// archiverOrNil avoids handing the pipeline a typed-nil interface.
func archiverOrNil(arch *archive.Archive) ports.Archiver {
	if arch == nil {
		return nil
	}
	return arch
}
