package repository

import (
	"github.com/google/uuid"

	"github.com/siteworks/prepress/src/config"
	"github.com/siteworks/prepress/src/domain"
)

type DocumentRepository interface {
	WithQuerier(config.PgxIface) DocumentRepository

	GetById(uuid.UUID) (*domain.Document, error)
	GetBySourceIdAndPath(uuid.UUID, string) (*domain.Document, error)
	GetAll(*Page) ([]domain.Document, error)
	GetBySourceId(uuid.UUID, *Page) ([]domain.Document, error)
	Save(*domain.Document) error
	DeleteBySourceIdExceptPaths(uuid.UUID, []string) (int64, error)
}
