package component

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/siteworks/prepress/src/application/service"
	"github.com/siteworks/prepress/src/config"
	"github.com/siteworks/prepress/src/domain"
)

// ContentSentinel keeps the database in step with every registered
// content source: fetch, walk, upsert documents, validate what changed.
type ContentSentinel struct {
	Logger          zerolog.Logger
	SourceService   service.SourceService
	DocumentService service.DocumentService
	ReportService   service.ReportService
	CheckService    service.CheckService
	EventService    service.EventService
	Db              config.PgxIface

	Interval      time.Duration
	ExternalLinks bool

	// SyncRequests carries source names whose re-sync was requested
	// through the API. A request forces fresh reports.
	SyncRequests <-chan string
}

func (self *ContentSentinel) WithQuerier(querier config.PgxIface) *ContentSentinel {
	return &ContentSentinel{
		Logger:          self.Logger,
		SourceService:   self.SourceService.WithQuerier(querier),
		DocumentService: self.DocumentService.WithQuerier(querier),
		ReportService:   self.ReportService.WithQuerier(querier),
		CheckService:    self.CheckService,
		EventService:    self.EventService,
		Db:              querier,
		Interval:        self.Interval,
		ExternalLinks:   self.ExternalLinks,
		SyncRequests:    self.SyncRequests,
	}
}

func (self *ContentSentinel) Start(ctx context.Context) error {
	self.Logger.Info().Dur("interval", self.Interval).Msg("Starting")

	self.syncAll(ctx, false)

	ticker := time.NewTicker(self.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case name := <-self.SyncRequests:
			self.Logger.Info().Str("source", name).Msg("Sync requested")
			if source, err := self.SourceService.GetByName(name); err != nil {
				self.Logger.Err(err).Str("source", name).Msg("Could not look up source to sync")
			} else if source == nil {
				self.Logger.Warn().Str("source", name).Msg("Sync requested for unknown source")
			} else if err := self.syncSource(ctx, source, true); err != nil {
				self.Logger.Err(err).Str("source", name).Msg("Failed to sync source")
			}
		case <-ticker.C:
			self.syncAll(ctx, false)
		}
	}
}

func (self *ContentSentinel) syncAll(ctx context.Context, force bool) {
	sources, err := self.SourceService.GetAll()
	if err != nil {
		self.Logger.Err(err).Msg("Could not list sources")
		return
	}

	for _, source := range sources {
		// copy so we don't point to the loop variable
		source := source
		if err := self.syncSource(ctx, &source, force); err != nil {
			self.Logger.Err(err).Str("source", source.Name).Msg("Failed to sync source")
		}
	}
}

func (self *ContentSentinel) syncSource(ctx context.Context, source *domain.Source, force bool) error {
	timer := prometheus.NewTimer(metricSyncDuration)
	defer timer.ObserveDuration()

	logger := self.Logger.With().Str("source", source.Name).Logger()
	logger.Debug().Bool("force", force).Msg("Syncing source")

	dst, err := self.SourceService.Fetch(ctx, source)
	if err != nil {
		return err
	}

	contentDir := filepath.Join(dst, filepath.FromSlash(source.ContentDir))
	assetDir := ""
	if source.AssetDir != "" {
		assetDir = filepath.Join(dst, filepath.FromSlash(source.AssetDir))
	}
	routes := source.Routes.Set()

	// non-nil so an emptied source still deletes its documents
	seen := []string{}
	if err := filepath.WalkDir(contentDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if path != contentDir && strings.HasPrefix(entry.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".mdx":
		default:
			return nil
		}

		rel, err := filepath.Rel(contentDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		seen = append(seen, rel)

		return self.syncDocument(ctx, source, path, rel, assetDir, routes, force)
	}); err != nil {
		return errors.WithMessagef(err, "While walking content of source %q", source.Name)
	}

	if deleted, err := self.DocumentService.DeleteVanished(source.Id, seen); err != nil {
		return err
	} else if deleted > 0 {
		logger.Info().Int64("documents", deleted).Msg("Removed vanished documents")
	}

	metricLastSync.SetToCurrentTime()
	logger.Debug().Int("documents", len(seen)).Msg("Synced source")
	return nil
}

func (self *ContentSentinel) syncDocument(ctx context.Context, source *domain.Source, path, rel, assetDir string, routes map[string]struct{}, force bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.WithMessagef(err, "While reading document %q", rel)
	}

	hash := domain.HashBody(raw)

	previous, err := self.DocumentService.GetBySourceIdAndPath(source.Id, rel)
	if err != nil {
		return err
	}

	needsReport := force || previous == nil || previous.BodyHash != hash
	if !needsReport {
		// Unchanged, but it may never have been validated.
		if report, err := self.ReportService.GetLatestByDocumentId(previous.Id); err != nil {
			return err
		} else if report != nil {
			return nil
		}
	}

	var fields map[string]any
	if frontMatter, _, _, err := domain.SplitFrontMatter(raw); err == nil {
		// Broken YAML shows up as a finding; the stored front matter stays nil.
		fields, _ = domain.DecodeFrontMatter(frontMatter)
	}

	findings := self.CheckService.Validate(ctx, service.CheckInput{
		Path:          rel,
		Raw:           raw,
		AssetDir:      assetDir,
		Routes:        routes,
		ExternalLinks: self.ExternalLinks,
	})

	document := &domain.Document{
		SourceId:    source.Id,
		Path:        rel,
		FrontMatter: fields,
		BodyHash:    hash,
	}
	report := &domain.Report{BodyHash: hash, Findings: findings}

	if err := pgx.BeginFunc(ctx, self.Db, func(tx pgx.Tx) error {
		sentinel := self.WithQuerier(tx)
		if err := sentinel.DocumentService.Save(document); err != nil {
			return err
		}
		report.DocumentId = document.Id
		return sentinel.ReportService.Save(report)
	}); err != nil {
		return errors.WithMessagef(err, "While saving report for document %q", rel)
	}

	metricDocumentsValidated.Inc()
	for _, finding := range findings {
		metricFindings.WithLabelValues(string(finding.CheckKind), string(finding.Severity)).Inc()
	}

	self.EventService.Publish(domain.ReportEvent{
		DocumentPath: rel,
		Report:       *report,
	})

	if !report.Ok() {
		self.Logger.Info().
			Str("source", source.Name).
			Str("document", rel).
			Int("errors", report.Errors()).
			Int("warnings", report.Warnings()).
			Msg("Document has validation errors")
	}

	return nil
}
