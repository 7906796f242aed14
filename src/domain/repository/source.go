package repository

import (
	"github.com/google/uuid"

	"github.com/siteworks/prepress/src/config"
	"github.com/siteworks/prepress/src/domain"
)

type SourceRepository interface {
	WithQuerier(config.PgxIface) SourceRepository

	GetById(uuid.UUID) (*domain.Source, error)
	GetByName(string) (*domain.Source, error)
	GetAll() ([]domain.Source, error)
	Save(*domain.Source) error
	Delete(uuid.UUID) error
}
