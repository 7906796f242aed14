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

type DocumentService interface {
	WithQuerier(config.PgxIface) DocumentService

	GetById(uuid.UUID) (*domain.Document, error)
	GetBySourceIdAndPath(uuid.UUID, string) (*domain.Document, error)
	GetAll(*repository.Page) ([]domain.Document, error)
	GetBySourceId(uuid.UUID, *repository.Page) ([]domain.Document, error)
	Save(*domain.Document) error
	DeleteVanished(uuid.UUID, []string) (int64, error)
}

type documentService struct {
	logger             zerolog.Logger
	documentRepository repository.DocumentRepository
}

func NewDocumentService(db config.PgxIface, logger *zerolog.Logger) DocumentService {
	return &documentService{
		logger:             logger.With().Str("component", "DocumentService").Logger(),
		documentRepository: persistence.NewDocumentRepository(db),
	}
}

func (self *documentService) WithQuerier(querier config.PgxIface) DocumentService {
	return &documentService{
		logger:             self.logger,
		documentRepository: self.documentRepository.WithQuerier(querier),
	}
}

func (self *documentService) GetById(id uuid.UUID) (document *domain.Document, err error) {
	self.logger.Debug().Str("id", id.String()).Msg("Getting Document by ID")
	document, err = self.documentRepository.GetById(id)
	err = errors.WithMessagef(err, "Could not select existing Document with ID %q", id)
	return
}

func (self *documentService) GetBySourceIdAndPath(sourceId uuid.UUID, path string) (document *domain.Document, err error) {
	self.logger.Debug().Str("sourceId", sourceId.String()).Str("path", path).Msg("Getting Document by path")
	document, err = self.documentRepository.GetBySourceIdAndPath(sourceId, path)
	err = errors.WithMessagef(err, "Could not select Document %q of Source %q", path, sourceId)
	return
}

func (self *documentService) GetAll(page *repository.Page) (documents []domain.Document, err error) {
	self.logger.Debug().Int("offset", page.Offset).Int("limit", page.Limit).Msg("Getting Documents")
	documents, err = self.documentRepository.GetAll(page)
	err = errors.WithMessage(err, "Could not select Documents")
	return
}

func (self *documentService) GetBySourceId(sourceId uuid.UUID, page *repository.Page) (documents []domain.Document, err error) {
	self.logger.Debug().Str("sourceId", sourceId.String()).Msg("Getting Documents by Source ID")
	documents, err = self.documentRepository.GetBySourceId(sourceId, page)
	err = errors.WithMessagef(err, "Could not select Documents for Source with ID %q", sourceId)
	return
}

func (self *documentService) Save(document *domain.Document) error {
	self.logger.Debug().Str("path", document.Path).Msg("Saving Document")
	if err := self.documentRepository.Save(document); err != nil {
		return errors.WithMessagef(err, "Could not insert Document %q", document.Path)
	}
	self.logger.Debug().Str("id", document.Id.String()).Msg("Saved Document")
	return nil
}

// DeleteVanished removes every document of the source whose path is
// not in the given list anymore.
func (self *documentService) DeleteVanished(sourceId uuid.UUID, keepPaths []string) (deleted int64, err error) {
	self.logger.Debug().Str("sourceId", sourceId.String()).Int("kept", len(keepPaths)).Msg("Deleting vanished Documents")
	deleted, err = self.documentRepository.DeleteBySourceIdExceptPaths(sourceId, keepPaths)
	err = errors.WithMessagef(err, "Could not delete vanished Documents of Source %q", sourceId)
	return
}
