package web

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/rs/zerolog"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/assert"

	"github.com/siteworks/prepress/src/application/service"
	"github.com/siteworks/prepress/src/domain"
)

func newWeb(t *testing.T) (*Web, pgxmock.PgxConnIface, chan string) {
	t.Helper()

	mock, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() {
		_ = mock.Close(context.Background())
	})

	logger := zerolog.Nop()
	syncRequests := make(chan string, 1)

	return &Web{
		Listen:          ":0",
		Logger:          logger,
		SourceService:   service.NewSourceService(mock, &logger),
		DocumentService: service.NewDocumentService(mock, &logger),
		ReportService:   service.NewReportService(mock, &logger),
		EventService:    service.NewEventService(&logger),
		Db:              mock,
		SyncRequests:    syncRequests,
	}, mock, syncRequests
}

func TestShouldReportHealth(t *testing.T) {
	t.Parallel()

	// given
	web, mock, _ := newWeb(t)
	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	// when, then
	apitest.New().Handler(web.router()).
		Method(http.MethodGet).
		URL("/health").
		Expect(t).
		Status(http.StatusNoContent).
		End()
}

func TestShouldListSources(t *testing.T) {
	t.Parallel()

	sourceId := uuid.New()
	createdAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// given
	web, mock, _ := newWeb(t)
	rows := mock.NewRows([]string{"id", "name", "url", "content_dir", "asset_dir", "routes", "created_at"}).
		AddRow(sourceId, "blog", "git::https://example.com/blog", "src/content/blog", "public", domain.Routes{"/services", "/contact"}, createdAt)
	mock.ExpectQuery("SELECT(.*)FROM sources").WillReturnRows(rows)

	// when, then
	apitest.New().Handler(web.router()).
		Method(http.MethodGet).
		URL("/api/source").
		Expect(t).
		Status(http.StatusOK).
		Assert(func(res *http.Response, req *http.Request) error {
			assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
			return nil
		}).
		End()
}

func TestShouldRequestSync(t *testing.T) {
	t.Parallel()

	sourceId := uuid.New()

	// given
	web, mock, syncRequests := newWeb(t)
	rows := mock.NewRows([]string{"id", "name", "url", "content_dir", "asset_dir", "routes", "created_at"}).
		AddRow(sourceId, "blog", "git::https://example.com/blog", "src/content/blog", "public", domain.Routes{}, time.Now().UTC())
	mock.ExpectQuery("SELECT(.*)FROM sources WHERE name").WithArgs("blog").WillReturnRows(rows)

	// when
	apitest.New().Handler(web.router()).
		Method(http.MethodPost).
		URL("/api/source/blog/sync").
		Expect(t).
		Status(http.StatusNoContent).
		End()

	// then
	select {
	case name := <-syncRequests:
		assert.Equal(t, "blog", name)
	default:
		t.Fatal("expected a sync request to be queued")
	}
}

func TestShouldRejectSyncForUnknownSource(t *testing.T) {
	t.Parallel()

	// given
	web, mock, _ := newWeb(t)
	mock.ExpectQuery("SELECT(.*)FROM sources WHERE name").WithArgs("nope").
		WillReturnRows(mock.NewRows([]string{"id", "name", "url", "content_dir", "asset_dir", "routes", "created_at"}))

	// when, then
	apitest.New().Handler(web.router()).
		Method(http.MethodPost).
		URL("/api/source/nope/sync").
		Expect(t).
		Status(http.StatusNotFound).
		End()
}

func TestShouldRejectMalformedDocumentId(t *testing.T) {
	t.Parallel()

	// given
	web, _, _ := newWeb(t)

	// when, then
	apitest.New().Handler(web.router()).
		Method(http.MethodGet).
		URL("/api/document/not-a-uuid").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestShouldRejectSourceWithoutName(t *testing.T) {
	t.Parallel()

	// given
	web, _, _ := newWeb(t)

	// when, then
	apitest.New().Handler(web.router()).
		Method(http.MethodPost).
		URL("/api/source").
		Body(`{"url": "git::https://example.com/blog"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}
