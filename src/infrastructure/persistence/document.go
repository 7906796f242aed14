package persistence

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/siteworks/prepress/src/config"
	"github.com/siteworks/prepress/src/domain"
	"github.com/siteworks/prepress/src/domain/repository"
)

type documentRepository struct {
	DB config.PgxIface
}

func NewDocumentRepository(db config.PgxIface) repository.DocumentRepository {
	return &documentRepository{DB: db}
}

func (a *documentRepository) WithQuerier(querier config.PgxIface) repository.DocumentRepository {
	return &documentRepository{DB: querier}
}

const documentColumns = `id, source_id, path, front_matter, body_hash, first_seen_at, updated_at`

func (a *documentRepository) GetById(id uuid.UUID) (*domain.Document, error) {
	document := domain.Document{}
	err := pgxscan.Get(
		context.Background(), a.DB, &document,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`,
		id,
	)
	if pgxscan.NotFound(err) {
		return nil, nil
	}
	return &document, err
}

func (a *documentRepository) GetBySourceIdAndPath(sourceId uuid.UUID, path string) (*domain.Document, error) {
	document := domain.Document{}
	err := pgxscan.Get(
		context.Background(), a.DB, &document,
		`SELECT `+documentColumns+` FROM documents WHERE source_id = $1 AND path = $2`,
		sourceId, path,
	)
	if pgxscan.NotFound(err) {
		return nil, nil
	}
	return &document, err
}

func (a *documentRepository) GetAll(page *repository.Page) (documents []domain.Document, err error) {
	err = fetchPage(
		a.DB, page, &documents,
		documentColumns, `documents`, `path ASC`,
	)
	return
}

func (a *documentRepository) GetBySourceId(sourceId uuid.UUID, page *repository.Page) (documents []domain.Document, err error) {
	err = fetchPage(
		a.DB, page, &documents,
		documentColumns, `documents WHERE source_id = $1`, `path ASC`,
		sourceId,
	)
	return
}

// Save upserts by (source_id, path). updated_at only moves
// when the body hash actually changed.
func (a *documentRepository) Save(document *domain.Document) error {
	return pgxscan.Get(
		context.Background(), a.DB, document,
		`INSERT INTO documents (source_id, path, front_matter, body_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_id, path) DO UPDATE SET
			front_matter = EXCLUDED.front_matter,
			body_hash = EXCLUDED.body_hash,
			updated_at = CASE
				WHEN documents.body_hash = EXCLUDED.body_hash
				THEN documents.updated_at
				ELSE now()
			END
		RETURNING id, first_seen_at, updated_at`,
		document.SourceId, document.Path, document.FrontMatter, document.BodyHash,
	)
}

func (a *documentRepository) DeleteBySourceIdExceptPaths(sourceId uuid.UUID, paths []string) (int64, error) {
	tag, err := a.DB.Exec(
		context.Background(),
		`DELETE FROM documents WHERE source_id = $1 AND path != ALL($2)`,
		sourceId, paths,
	)
	return tag.RowsAffected(), err
}
