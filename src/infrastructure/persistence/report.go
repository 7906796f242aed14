package persistence

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/siteworks/prepress/src/config"
	"github.com/siteworks/prepress/src/domain"
	"github.com/siteworks/prepress/src/domain/repository"
)

type reportRepository struct {
	DB config.PgxIface
}

func NewReportRepository(db config.PgxIface) repository.ReportRepository {
	return &reportRepository{DB: db}
}

func (a *reportRepository) WithQuerier(querier config.PgxIface) repository.ReportRepository {
	return &reportRepository{DB: querier}
}

func (a *reportRepository) GetById(id uuid.UUID) (*domain.Report, error) {
	report := domain.Report{}
	err := pgxscan.Get(
		context.Background(), a.DB, &report,
		`SELECT id, document_id, body_hash, created_at FROM reports WHERE id = $1`,
		id,
	)
	if pgxscan.NotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := a.loadFindings(&report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (a *reportRepository) GetByDocumentId(documentId uuid.UUID, page *repository.Page) (reports []domain.Report, err error) {
	if err = fetchPage(
		a.DB, page, &reports,
		`id, document_id, body_hash, created_at`,
		`reports WHERE document_id = $1`, `created_at DESC`,
		documentId,
	); err != nil {
		return
	}

	for i := range reports {
		if err = a.loadFindings(&reports[i]); err != nil {
			return
		}
	}
	return
}

func (a *reportRepository) GetLatestByDocumentId(documentId uuid.UUID) (*domain.Report, error) {
	report := domain.Report{}
	err := pgxscan.Get(
		context.Background(), a.DB, &report,
		`SELECT id, document_id, body_hash, created_at FROM reports WHERE document_id = $1 ORDER BY created_at DESC FETCH FIRST ROW ONLY`,
		documentId,
	)
	if pgxscan.NotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := a.loadFindings(&report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (a *reportRepository) loadFindings(report *domain.Report) error {
	return pgxscan.Select(
		context.Background(), a.DB, &report.Findings,
		`SELECT check_kind, severity, line, detail FROM findings WHERE report_id = $1 ORDER BY ordinal`,
		report.Id,
	)
}

// Save inserts the report and its findings.
// Callers are expected to pass a transaction as the querier.
func (a *reportRepository) Save(report *domain.Report) error {
	if err := pgxscan.Get(
		context.Background(), a.DB, report,
		`INSERT INTO reports (document_id, body_hash) VALUES ($1, $2) RETURNING id, created_at`,
		report.DocumentId, report.BodyHash,
	); err != nil {
		return err
	}

	if len(report.Findings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for ordinal, finding := range report.Findings {
		batch.Queue(
			`INSERT INTO findings (report_id, ordinal, check_kind, severity, line, detail) VALUES ($1, $2, $3, $4, $5, $6)`,
			report.Id, ordinal, finding.CheckKind, finding.Severity, finding.Line, finding.Detail,
		)
	}

	br := a.DB.SendBatch(context.Background(), batch)
	defer br.Close()

	for range report.Findings {
		if _, err := br.Exec(); err != nil {
			return errors.WithMessage(err, "While inserting finding")
		}
	}
	return nil
}

func (a *reportRepository) GetStatistics() (counts []domain.FindingCount, err error) {
	err = pgxscan.Select(
		context.Background(), a.DB, &counts,
		`SELECT f.check_kind, f.severity, count(*) AS count
		FROM findings f
		JOIN (
			SELECT DISTINCT ON (document_id) id
			FROM reports
			ORDER BY document_id, created_at DESC
		) latest ON latest.id = f.report_id
		GROUP BY f.check_kind, f.severity
		ORDER BY f.check_kind, f.severity`,
	)
	return
}
