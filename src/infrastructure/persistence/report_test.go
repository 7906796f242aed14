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

func TestShouldGetLatestReportWithFindings(t *testing.T) {
	t.Parallel()

	documentId := uuid.New()
	reportId := uuid.New()
	line := 12

	// given
	mock, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer mock.Close(context.Background())

	reportRows := mock.NewRows([]string{"id", "document_id", "body_hash", "created_at"}).
		AddRow(reportId, documentId, "sha256-xxx", time.Now().UTC())
	mock.ExpectQuery("SELECT(.*)FROM reports").WithArgs(documentId).WillReturnRows(reportRows)

	findingRows := mock.NewRows([]string{"check_kind", "severity", "line", "detail"}).
		AddRow(domain.CheckLink, domain.SeverityError, &line, `internal link "/servcies" does not match any route`).
		AddRow(domain.CheckFence, domain.SeverityWarning, nil, "code fence has no language tag")
	mock.ExpectQuery("SELECT(.*)FROM findings").WithArgs(reportId).WillReturnRows(findingRows)

	repository := NewReportRepository(mock)

	// when
	report, err := repository.GetLatestByDocumentId(documentId)

	// then
	assert.Nil(t, err)
	if assert.NotNil(t, report) {
		assert.Equal(t, reportId, report.Id)
		assert.Len(t, report.Findings, 2)
		assert.Equal(t, 1, report.Errors())
		assert.Equal(t, 1, report.Warnings())
		assert.False(t, report.Ok())
	}
}

func TestShouldReturnNilWhenDocumentWasNeverValidated(t *testing.T) {
	t.Parallel()

	documentId := uuid.New()

	// given
	mock, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer mock.Close(context.Background())
	mock.ExpectQuery("SELECT(.*)FROM reports").WithArgs(documentId).
		WillReturnRows(mock.NewRows([]string{"id", "document_id", "body_hash", "created_at"}))

	repository := NewReportRepository(mock)

	// when
	report, err := repository.GetLatestByDocumentId(documentId)

	// then
	assert.Nil(t, err)
	assert.Nil(t, report)
}

func TestShouldSaveCleanReport(t *testing.T) {
	t.Parallel()

	dateTime := time.Now().UTC()
	reportId := uuid.New()
	report := domain.Report{
		DocumentId: uuid.New(),
		BodyHash:   "sha256-xxx",
	}

	// given
	mock, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer mock.Close(context.Background())
	rows := mock.NewRows([]string{"id", "created_at"}).AddRow(reportId, dateTime)
	mock.ExpectQuery("INSERT INTO reports").
		WithArgs(report.DocumentId, report.BodyHash).
		WillReturnRows(rows)

	repository := NewReportRepository(mock)

	// when
	err = repository.Save(&report)

	// then
	assert.Nil(t, err)
	assert.Equal(t, reportId, report.Id)
	assert.Equal(t, dateTime, report.CreatedAt)
}

func TestShouldGetStatistics(t *testing.T) {
	t.Parallel()

	// given
	mock, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer mock.Close(context.Background())
	rows := mock.NewRows([]string{"check_kind", "severity", "count"}).
		AddRow(domain.CheckFrontMatter, domain.SeverityError, 3).
		AddRow(domain.CheckLink, domain.SeverityWarning, 7)
	mock.ExpectQuery("SELECT(.*)FROM findings").WillReturnRows(rows)

	repository := NewReportRepository(mock)

	// when
	counts, err := repository.GetStatistics()

	// then
	assert.Nil(t, err)
	if assert.Len(t, counts, 2) {
		assert.Equal(t, domain.CheckFrontMatter, counts[0].CheckKind)
		assert.Equal(t, 3, counts[0].Count)
	}
}
