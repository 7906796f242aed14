package service

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/siteworks/prepress/src/config"
	"github.com/siteworks/prepress/src/domain"
	"github.com/siteworks/prepress/src/domain/repository"
	"github.com/siteworks/prepress/src/infrastructure/persistence"
)

type ReportService interface {
	WithQuerier(config.PgxIface) ReportService

	GetById(uuid.UUID) (*domain.Report, error)
	GetByDocumentId(uuid.UUID, *repository.Page) ([]domain.Report, error)
	GetLatestByDocumentId(uuid.UUID) (*domain.Report, error)
	Save(*domain.Report) error
	GetStatistics() ([]domain.FindingCount, error)
}

type reportService struct {
	logger           zerolog.Logger
	reportRepository repository.ReportRepository
}

func NewReportService(db config.PgxIface, logger *zerolog.Logger) ReportService {
	return &reportService{
		logger:           logger.With().Str("component", "ReportService").Logger(),
		reportRepository: persistence.NewReportRepository(db),
	}
}

func (self *reportService) WithQuerier(querier config.PgxIface) ReportService {
	return &reportService{
		logger:           self.logger,
		reportRepository: self.reportRepository.WithQuerier(querier),
	}
}

func (self *reportService) GetById(id uuid.UUID) (report *domain.Report, err error) {
	self.logger.Debug().Str("id", id.String()).Msg("Getting Report by ID")
	report, err = self.reportRepository.GetById(id)
	err = errors.WithMessagef(err, "Could not select existing Report with ID %q", id)
	return
}

func (self *reportService) GetByDocumentId(documentId uuid.UUID, page *repository.Page) (reports []domain.Report, err error) {
	self.logger.Debug().Str("documentId", documentId.String()).Msg("Getting Reports by Document ID")
	reports, err = self.reportRepository.GetByDocumentId(documentId, page)
	err = errors.WithMessagef(err, "Could not select Reports for Document with ID %q", documentId)
	return
}

func (self *reportService) GetLatestByDocumentId(documentId uuid.UUID) (report *domain.Report, err error) {
	self.logger.Debug().Str("documentId", documentId.String()).Msg("Getting latest Report by Document ID")
	report, err = self.reportRepository.GetLatestByDocumentId(documentId)
	err = errors.WithMessagef(err, "Could not select latest Report for Document with ID %q", documentId)
	return
}

func (self *reportService) Save(report *domain.Report) error {
	self.logger.Debug().Str("documentId", report.DocumentId.String()).Int("findings", len(report.Findings)).Msg("Saving Report")
	if err := self.reportRepository.Save(report); err != nil {
		return errors.WithMessage(err, "Could not insert Report")
	}
	self.logger.Debug().Str("id", report.Id.String()).Msg("Saved Report")
	return nil
}

func (self *reportService) GetStatistics() (counts []domain.FindingCount, err error) {
	self.logger.Debug().Msg("Getting finding statistics")
	counts, err = self.reportRepository.GetStatistics()
	err = errors.WithMessage(err, "Could not select finding statistics")
	return
}
