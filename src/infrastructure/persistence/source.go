package persistence

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/siteworks/prepress/src/config"
	"github.com/siteworks/prepress/src/domain"
	"github.com/siteworks/prepress/src/domain/repository"
)

type sourceRepository struct {
	DB config.PgxIface
}

func NewSourceRepository(db config.PgxIface) repository.SourceRepository {
	return &sourceRepository{DB: db}
}

func (a *sourceRepository) WithQuerier(querier config.PgxIface) repository.SourceRepository {
	return &sourceRepository{DB: querier}
}

func (a *sourceRepository) GetById(id uuid.UUID) (*domain.Source, error) {
	source := domain.Source{}
	err := pgxscan.Get(
		context.Background(), a.DB, &source,
		`SELECT id, name, url, content_dir, asset_dir, routes, created_at FROM sources WHERE id = $1`,
		id,
	)
	if pgxscan.NotFound(err) {
		return nil, nil
	}
	return &source, err
}

func (a *sourceRepository) GetByName(name string) (*domain.Source, error) {
	source := domain.Source{}
	err := pgxscan.Get(
		context.Background(), a.DB, &source,
		`SELECT id, name, url, content_dir, asset_dir, routes, created_at FROM sources WHERE name = $1`,
		name,
	)
	if pgxscan.NotFound(err) {
		return nil, nil
	}
	return &source, err
}

func (a *sourceRepository) GetAll() (sources []domain.Source, err error) {
	err = pgxscan.Select(
		context.Background(), a.DB, &sources,
		`SELECT id, name, url, content_dir, asset_dir, routes, created_at FROM sources ORDER BY name`,
	)
	return
}

func (a *sourceRepository) Save(source *domain.Source) error {
	return pgxscan.Get(
		context.Background(), a.DB, source,
		`INSERT INTO sources (name, url, content_dir, asset_dir, routes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			url = EXCLUDED.url,
			content_dir = EXCLUDED.content_dir,
			asset_dir = EXCLUDED.asset_dir,
			routes = EXCLUDED.routes
		RETURNING id, created_at`,
		source.Name, source.Url, source.ContentDir, source.AssetDir, source.Routes,
	)
}

func (a *sourceRepository) Delete(id uuid.UUID) error {
	_, err := a.DB.Exec(
		context.Background(),
		`DELETE FROM sources WHERE id = $1`,
		id,
	)
	return err
}
