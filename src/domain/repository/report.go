package repository

import (
	"github.com/google/uuid"

	"github.com/siteworks/prepress/src/config"
	"github.com/siteworks/prepress/src/domain"
)

type ReportRepository interface {
	WithQuerier(config.PgxIface) ReportRepository

	GetById(uuid.UUID) (*domain.Report, error)
	GetByDocumentId(uuid.UUID, *Page) ([]domain.Report, error)
	GetLatestByDocumentId(uuid.UUID) (*domain.Report, error)
	Save(*domain.Report) error
	GetStatistics() ([]domain.FindingCount, error)
}
