package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"

	"github.com/siteworks/prepress/src/domain"
)

func TestShouldGetDocumentById(t *testing.T) {
	t.Parallel()

	documentId := uuid.New()
	document := domain.Document{
		Id:       documentId,
		SourceId: uuid.New(),
		Path:     "blog/signing-artifacts.md",
		FrontMatter: map[string]any{
			"title": "Signing artifacts in CI",
		},
		BodyHash:    "sha256-xxx",
		FirstSeenAt: time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	// given
	mock, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer mock.Close(context.Background())
	rows := mock.NewRows([]string{"id", "source_id", "path", "front_matter", "body_hash", "first_seen_at", "updated_at"}).
		AddRow(document.Id, document.SourceId, document.Path, document.FrontMatter, document.BodyHash, document.FirstSeenAt, document.UpdatedAt)
	mock.ExpectQuery("SELECT(.*)").WithArgs(documentId).WillReturnRows(rows)

	repository := NewDocumentRepository(mock)

	// when
	result, err := repository.GetById(documentId)

	// then
	assert.Nil(t, err)
	if assert.NotNil(t, result) {
		assert.Equal(t, document.Id, result.Id)
		assert.Equal(t, document.Path, result.Path)
		assert.Equal(t, document.FrontMatter, result.FrontMatter)
		assert.Equal(t, document.BodyHash, result.BodyHash)
	}
}

func TestShouldReturnNilForUnknownDocument(t *testing.T) {
	t.Parallel()

	documentId := uuid.New()

	// given
	mock, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer mock.Close(context.Background())
	mock.ExpectQuery("SELECT(.*)").WithArgs(documentId).
		WillReturnRows(mock.NewRows([]string{"id", "source_id", "path", "front_matter", "body_hash", "first_seen_at", "updated_at"}))

	repository := NewDocumentRepository(mock)

	// when
	result, err := repository.GetById(documentId)

	// then
	assert.Nil(t, err)
	assert.Nil(t, result)
}

func TestShouldSaveDocument(t *testing.T) {
	t.Parallel()

	dateTime := time.Now().UTC()
	documentId := uuid.New()
	document := domain.Document{
		SourceId: uuid.New(),
		Path:     "blog/signing-artifacts.md",
		FrontMatter: map[string]any{
			"title": "Signing artifacts in CI",
		},
		BodyHash: "sha256-xxx",
	}

	// given
	mock, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer mock.Close(context.Background())
	rows := mock.NewRows([]string{"id", "first_seen_at", "updated_at"}).AddRow(documentId, dateTime, dateTime)
	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(document.SourceId, document.Path, document.FrontMatter, document.BodyHash).
		WillReturnRows(rows)

	repository := NewDocumentRepository(mock)

	// when
	err = repository.Save(&document)

	// then
	assert.Nil(t, err)
	assert.Equal(t, documentId, document.Id)
	assert.Equal(t, dateTime, document.FirstSeenAt)
	assert.Equal(t, dateTime, document.UpdatedAt)
}

func TestShouldDeleteVanishedDocuments(t *testing.T) {
	t.Parallel()

	sourceId := uuid.New()
	paths := []string{"blog/kept.md"}

	// given
	mock, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer mock.Close(context.Background())
	mock.ExpectExec("DELETE FROM documents").
		WithArgs(sourceId, paths).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	repository := NewDocumentRepository(mock)

	// when
	deleted, err := repository.DeleteBySourceIdExceptPaths(sourceId, paths)

	// then
	assert.Nil(t, err)
	assert.Equal(t, int64(2), deleted)
}
