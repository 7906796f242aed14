package prepress

import (
	"context"
	"os"
	"time"

	"cirello.io/oversight"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/siteworks/prepress/src/application/component"
	"github.com/siteworks/prepress/src/application/component/web"
	"github.com/siteworks/prepress/src/application/service"
	"github.com/siteworks/prepress/src/config"
	"github.com/siteworks/prepress/src/util"
)

type StartCmd struct {
	Components []string `arg:"positional,env:PREPRESS_COMPONENTS" help:"any of: sentinel, web"`

	WebListen     string        `arg:"--web-listen,env:PREPRESS_WEB_LISTEN" default:":8080"`
	SyncInterval  time.Duration `arg:"--sync-interval,env:PREPRESS_SYNC_INTERVAL" default:"5m"`
	ExternalLinks bool          `arg:"--external-links" help:"probe external links over HTTP"`
	Schema        string        `arg:"--schema" help:"file with a CUE schema that front matter must satisfy"`

	LogDb bool `arg:"--log-db"`
}

func (cmd StartCmd) Run(logger *zerolog.Logger) error {
	instance, err := NewInstance(cmd, logger)
	if err != nil {
		return err
	}
	defer instance.Close()

	return instance.Run(context.Background())
}

type InstanceOpts interface {
	NewDB(*zerolog.Logger) (*pgxpool.Pool, error)
	GetSchema() (util.CUEString, error)
	GetComponentOpts() InstanceComponentsOpts
	GetSyncInterval() time.Duration
	GetExternalLinks() bool
}

type InstanceComponentsOpts struct {
	Sentinel bool
	Web      *InstanceWebComponentOpts
}

type InstanceWebComponentOpts struct {
	ListenAddr string
}

func (cmd StartCmd) NewDB(logger *zerolog.Logger) (*pgxpool.Pool, error) {
	return config.DBConnection(logger, cmd.LogDb)
}

func (cmd StartCmd) GetSchema() (util.CUEString, error) {
	if cmd.Schema == "" {
		return service.DefaultFrontMatterSchema, nil
	}
	buf, err := os.ReadFile(cmd.Schema)
	if err != nil {
		return "", errors.WithMessagef(err, "Could not read schema file %q", cmd.Schema)
	}
	return util.CUEString(buf), nil
}

func (cmd StartCmd) GetComponentOpts() InstanceComponentsOpts {
	start := InstanceComponentsOpts{}

	webOpts := InstanceWebComponentOpts{ListenAddr: cmd.WebListen}

	// If none are given then start all,
	// otherwise start only those that are given.
	for _, component := range cmd.Components {
		switch component {
		case "sentinel":
			start.Sentinel = true
		case "web":
			start.Web = &webOpts
		default:
			panic("Unknown component: " + component)
		}
	}
	if !start.Sentinel && start.Web == nil {
		start.Sentinel = true
		start.Web = &webOpts
	}

	return start
}

func (cmd StartCmd) GetSyncInterval() time.Duration {
	return cmd.SyncInterval
}

func (cmd StartCmd) GetExternalLinks() bool {
	return cmd.ExternalLinks
}

func NewInstance(opts InstanceOpts, logger *zerolog.Logger) (Instance, error) {
	instance := Instance{logger: logger}

	if db, err := opts.NewDB(logger); err != nil {
		logger.Fatal().Err(err).Send()
		return instance, err
	} else {
		instance.db = db
	}

	schema, err := opts.GetSchema()
	if err != nil {
		return instance, err
	}

	sourceService := service.NewSourceService(instance.db, logger)
	documentService := service.NewDocumentService(instance.db, logger)
	reportService := service.NewReportService(instance.db, logger)
	eventService := service.NewEventService(logger)
	linkService := service.NewLinkService(logger)

	checkService, err := service.NewCheckService(schema, linkService, logger)
	if err != nil {
		return instance, err
	}

	// buffered so a sync request from the API does not block the handler
	syncRequests := make(chan string, 16)

	start := opts.GetComponentOpts()

	if start.Sentinel {
		instance.Sentinel = &component.ContentSentinel{
			Logger:          logger.With().Str("component", "ContentSentinel").Logger(),
			SourceService:   sourceService,
			DocumentService: documentService,
			ReportService:   reportService,
			CheckService:    checkService,
			EventService:    eventService,
			Db:              instance.db,
			Interval:        opts.GetSyncInterval(),
			ExternalLinks:   opts.GetExternalLinks(),
			SyncRequests:    syncRequests,
		}
	}

	if start.Web != nil {
		instance.Web = &web.Web{
			Listen:          start.Web.ListenAddr,
			Logger:          logger.With().Str("component", "Web").Logger(),
			SourceService:   sourceService,
			DocumentService: documentService,
			ReportService:   reportService,
			EventService:    eventService,
			Db:              instance.db,
			SyncRequests:    syncRequests,
		}
	}

	return instance, nil
}

type Instance struct {
	Sentinel *component.ContentSentinel
	Web      *web.Web

	logger *zerolog.Logger
	db     *pgxpool.Pool
}

func (self Instance) Close() {
	self.db.Close()
}

func (self Instance) Run(ctx context.Context) error {
	self.logger.Info().Msg("Starting components")

	supervisor := oversight.New(
		oversight.WithLogger(&config.SupervisorLogger{Logger: self.logger}),
		oversight.WithSpecification(
			10,                    // number of restarts
			1*time.Minute,         // within this time period
			oversight.OneForOne(), // restart every task on its own
		),
	)

	if self.Sentinel != nil {
		if err := supervisor.Add(self.Sentinel.Start); err != nil {
			return err
		}
	}

	if self.Web != nil {
		if err := supervisor.Add(self.Web.Start); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := supervisor.Start(ctx); err != nil {
		return errors.WithMessage(err, "While starting supervisor")
	}

	<-ctx.Done()
	return nil
}
