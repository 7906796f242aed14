package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/siteworks/prepress/src/application/service"
	"github.com/siteworks/prepress/src/config"
	"github.com/siteworks/prepress/src/domain"
	"github.com/siteworks/prepress/src/domain/repository"
)

type Web struct {
	Listen string

	Logger          zerolog.Logger
	SourceService   service.SourceService
	DocumentService service.DocumentService
	ReportService   service.ReportService
	EventService    service.EventService
	Db              config.PgxIface

	// SyncRequests hands source names to the sentinel for re-validation.
	SyncRequests chan<- string
}

func (self *Web) Start(ctx context.Context) error {
	self.Logger.Info().Str("listen", self.Listen).Msg("Starting")

	server := &http.Server{Addr: self.Listen, Handler: self.router()}

	go func() {
		if err := server.ListenAndServe(); err != nil {
			self.Logger.Err(err).Msgf("Failed to start web server on %s", self.Listen)
		}
	}()

	<-ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		self.Logger.Err(err).Msg("Failed to stop web server")
	}

	return nil
}

func (self *Web) router() *mux.Router {
	muxRouter := mux.NewRouter().StrictSlash(true).UseEncodedPath()
	muxRouter.NotFoundHandler = http.NotFoundHandler()

	// sorted alphabetically, please keep it this way
	muxRouter.HandleFunc("/api/document/{id}/report", self.ApiDocumentIdReportGet).Methods(http.MethodGet)
	muxRouter.HandleFunc("/api/document/{id}", self.ApiDocumentIdGet).Methods(http.MethodGet)
	muxRouter.HandleFunc("/api/document", self.ApiDocumentGet).Methods(http.MethodGet)
	muxRouter.HandleFunc("/api/report/stream", self.ApiReportStreamGet).Methods(http.MethodGet)
	muxRouter.HandleFunc("/api/report/{id}", self.ApiReportIdGet).Methods(http.MethodGet)
	muxRouter.HandleFunc("/api/source/{name}/sync", self.ApiSourceNameSyncPost).Methods(http.MethodPost)
	muxRouter.HandleFunc("/api/source/{name}", self.ApiSourceNameDelete).Methods(http.MethodDelete)
	muxRouter.HandleFunc("/api/source/{name}", self.ApiSourceNameGet).Methods(http.MethodGet)
	muxRouter.HandleFunc("/api/source", self.ApiSourceGet).Methods(http.MethodGet)
	muxRouter.HandleFunc("/api/source", self.ApiSourcePost).Methods(http.MethodPost)
	muxRouter.HandleFunc("/api/statistics", self.ApiStatisticsGet).Methods(http.MethodGet)

	muxRouter.HandleFunc("/health", self.HealthGet).Methods(http.MethodGet)
	muxRouter.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	muxRouter.HandleFunc("/", self.IndexGet).Methods(http.MethodGet)
	muxRouter.HandleFunc("/document/{id}", self.DocumentIdGet).Methods(http.MethodGet)
	muxRouter.HandleFunc("/document", self.DocumentGet).Methods(http.MethodGet)
	muxRouter.HandleFunc("/source/{name}/sync", self.SourceNameSyncPost).Methods(http.MethodPost)
	muxRouter.HandleFunc("/source", self.SourceGet).Methods(http.MethodGet)
	muxRouter.PathPrefix("/static/").Handler(http.StripPrefix("/", http.FileServer(http.FS(staticFs))))

	return muxRouter
}

func (self *Web) IndexGet(w http.ResponseWriter, req *http.Request) {
	http.Redirect(w, req, "/document", http.StatusFound)
}

func (self *Web) DocumentGet(w http.ResponseWriter, req *http.Request) {
	if page, err := getPage(req); err != nil {
		self.ClientError(w, err)
		return
	} else if documents, err := self.DocumentService.GetAll(page); err != nil {
		self.ServerError(w, err)
		return
	} else {
		type entry struct {
			Document *domain.Document
			Report   *domain.Report
		}

		entries := make([]entry, len(documents))

		{
			errChan := make(chan error, len(documents))

			wg := &sync.WaitGroup{}

			wg.Add(len(documents))
			for i, document := range documents {
				// copy so we don't point to loop variable
				document := document
				entries[i].Document = &document

				go func(i int, id uuid.UUID) {
					defer wg.Done()

					report, err := self.ReportService.GetLatestByDocumentId(id)
					if err != nil {
						errChan <- err
					} else {
						entries[i].Report = report
					}
				}(i, document.Id)
			}

			wg.Wait()

			select {
			case err := <-errChan:
				self.ServerError(w, err)
				return
			default:
			}
		}

		if err := self.render("document/index.html", w, map[string]any{
			"Entries": entries,
			"Page":    page,
		}); err != nil {
			self.ServerError(w, err)
			return
		}
	}
}

func (self *Web) DocumentIdGet(w http.ResponseWriter, req *http.Request) {
	if id, err := uuid.Parse(mux.Vars(req)["id"]); err != nil {
		self.ClientError(w, errors.WithMessage(err, "Could not parse Document ID"))
		return
	} else if document, err := self.DocumentService.GetById(id); err != nil {
		self.ServerError(w, errors.WithMessagef(err, "Could not get Document by ID: %q", id))
		return
	} else if document == nil {
		self.NotFound(w, nil)
		return
	} else if report, err := self.ReportService.GetLatestByDocumentId(id); err != nil {
		self.ServerError(w, errors.WithMessagef(err, "Could not get latest Report for Document with ID %q", id))
		return
	} else if err := self.render("document/detail.html", w, map[string]any{
		"Document": document,
		"Report":   report,
	}); err != nil {
		self.ServerError(w, err)
		return
	}
}

func (self *Web) SourceGet(w http.ResponseWriter, req *http.Request) {
	if sources, err := self.SourceService.GetAll(); err != nil {
		self.ServerError(w, err)
		return
	} else if statistics, err := self.ReportService.GetStatistics(); err != nil {
		self.ServerError(w, err)
		return
	} else if err := self.render("source/index.html", w, map[string]any{
		"Sources":    sources,
		"Statistics": statistics,
	}); err != nil {
		self.ServerError(w, err)
		return
	}
}

func (self *Web) SourceNameSyncPost(w http.ResponseWriter, req *http.Request) {
	self.ApiSourceNameSyncPost(NopResponseWriter{w}, req)

	if referer := req.Header.Get("Referer"); referer != "" {
		http.Redirect(w, req, referer, http.StatusFound)
	} else {
		http.Redirect(w, req, "/source", http.StatusFound)
	}
}

func (self *Web) ApiSourceGet(w http.ResponseWriter, req *http.Request) {
	if sources, err := self.SourceService.GetAll(); err != nil {
		self.ServerError(w, errors.WithMessage(err, "Failed to get all sources"))
	} else {
		self.json(w, sources, http.StatusOK)
	}
}

type apiSourcePostBody struct {
	Name       string        `json:"name"`
	Url        string        `json:"url"`
	ContentDir string        `json:"contentDir"`
	AssetDir   string        `json:"assetDir"`
	Routes     domain.Routes `json:"routes"`
}

func (self *Web) ApiSourcePost(w http.ResponseWriter, req *http.Request) {
	body := apiSourcePostBody{}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		self.ClientError(w, errors.WithMessage(err, "Could not unmarshal source from request body"))
		return
	}

	if body.Name == "" || body.Url == "" {
		self.ClientError(w, errors.New("A source needs both a name and a url"))
		return
	}

	source := domain.Source{
		Name:       body.Name,
		Url:        body.Url,
		ContentDir: body.ContentDir,
		AssetDir:   body.AssetDir,
		Routes:     body.Routes,
	}

	if err := self.SourceService.Save(&source); err != nil {
		self.ServerError(w, errors.WithMessagef(err, "Failed to save source %q", source.Name))
		return
	}

	// a fresh source should be validated right away, best effort
	select {
	case self.SyncRequests <- source.Name:
	default:
	}

	self.json(w, source, http.StatusOK)
}

func (self *Web) ApiSourceNameGet(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	if name, err := url.PathUnescape(vars["name"]); err != nil {
		self.ClientError(w, errors.WithMessagef(err, "Invalid escaping of source name: %q", vars["name"]))
		return
	} else if source, err := self.SourceService.GetByName(name); err != nil {
		self.ServerError(w, errors.WithMessagef(err, "Failed to get source %q", name))
		return
	} else if source == nil {
		self.NotFound(w, nil)
		return
	} else {
		self.json(w, source, http.StatusOK)
	}
}

func (self *Web) ApiSourceNameDelete(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	if name, err := url.PathUnescape(vars["name"]); err != nil {
		self.ClientError(w, errors.WithMessagef(err, "Invalid escaping of source name: %q", vars["name"]))
		return
	} else if source, err := self.SourceService.GetByName(name); err != nil {
		self.ServerError(w, errors.WithMessagef(err, "Failed to get source %q", name))
		return
	} else if source == nil {
		self.NotFound(w, nil)
		return
	} else if err := self.SourceService.Delete(source.Id); err != nil {
		self.ServerError(w, errors.WithMessagef(err, "Failed to delete source %q", name))
		return
	} else {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (self *Web) ApiSourceNameSyncPost(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	if name, err := url.PathUnescape(vars["name"]); err != nil {
		self.ClientError(w, errors.WithMessagef(err, "Invalid escaping of source name: %q", vars["name"]))
		return
	} else if source, err := self.SourceService.GetByName(name); err != nil {
		self.ServerError(w, errors.WithMessagef(err, "Failed to get source %q", name))
		return
	} else if source == nil {
		self.NotFound(w, nil)
		return
	} else {
		select {
		case self.SyncRequests <- source.Name:
			w.WriteHeader(http.StatusNoContent)
		default:
			self.Error(w, HandlerError{errors.New("Sync queue is full"), http.StatusServiceUnavailable})
		}
	}
}

func (self *Web) ApiDocumentGet(w http.ResponseWriter, req *http.Request) {
	if page, err := getPage(req); err != nil {
		self.ClientError(w, err)
	} else if documents, err := self.DocumentService.GetAll(page); err != nil {
		self.ServerError(w, errors.WithMessage(err, "Failed to get documents"))
	} else {
		self.json(w, documents, http.StatusOK)
	}
}

func (self *Web) ApiDocumentIdGet(w http.ResponseWriter, req *http.Request) {
	if id, err := uuid.Parse(mux.Vars(req)["id"]); err != nil {
		self.ClientError(w, errors.WithMessage(err, "Could not parse Document ID"))
	} else if document, err := self.DocumentService.GetById(id); err != nil {
		self.ServerError(w, errors.WithMessagef(err, "Could not get Document by ID: %q", id))
	} else if document == nil {
		self.NotFound(w, nil)
	} else {
		self.json(w, document, http.StatusOK)
	}
}

func (self *Web) ApiDocumentIdReportGet(w http.ResponseWriter, req *http.Request) {
	if id, err := uuid.Parse(mux.Vars(req)["id"]); err != nil {
		self.ClientError(w, errors.WithMessage(err, "Could not parse Document ID"))
	} else if page, err := getPage(req); err != nil {
		self.ClientError(w, err)
	} else if reports, err := self.ReportService.GetByDocumentId(id, page); err != nil {
		self.ServerError(w, errors.WithMessagef(err, "Could not get Reports for Document with ID %q", id))
	} else {
		self.json(w, reports, http.StatusOK)
	}
}

func (self *Web) ApiReportIdGet(w http.ResponseWriter, req *http.Request) {
	if id, err := uuid.Parse(mux.Vars(req)["id"]); err != nil {
		self.ClientError(w, errors.WithMessage(err, "Could not parse Report ID"))
	} else if report, err := self.ReportService.GetById(id); err != nil {
		self.ServerError(w, errors.WithMessagef(err, "Could not get Report by ID: %q", id))
	} else if report == nil {
		self.NotFound(w, nil)
	} else {
		self.json(w, report, http.StatusOK)
	}
}

func (self *Web) ApiStatisticsGet(w http.ResponseWriter, req *http.Request) {
	if counts, err := self.ReportService.GetStatistics(); err != nil {
		self.ServerError(w, errors.WithMessage(err, "Failed to get statistics"))
	} else {
		self.json(w, counts, http.StatusOK)
	}
}

func (self *Web) HealthGet(w http.ResponseWriter, req *http.Request) {
	if _, err := self.Db.Exec(req.Context(), "SELECT 1;"); err != nil {
		self.Error(w, HandlerError{err, http.StatusServiceUnavailable})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApiReportStreamGet pushes every new report to the client as it is created,
// over a websocket if the client asks for one, chunked HTTP otherwise.
func (self *Web) ApiReportStreamGet(w http.ResponseWriter, req *http.Request) {
	messagesFunc := func(ctx context.Context) <-chan []byte {
		messages := make(chan []byte, 1)

		go func() {
			defer close(messages)

			for event := range self.EventService.Subscribe(ctx) {
				if buf, err := json.Marshal(event); err != nil {
					self.Logger.Err(err).Msg("While marshaling report event to JSON")
				} else {
					select {
					case messages <- buf:
					case <-ctx.Done():
						return
					}
				}
			}
		}()

		return messages
	}

	if req.Header.Get("Upgrade") == "websocket" {
		self.streamWS(messagesFunc, w, req)
	} else {
		self.streamHTTP(messagesFunc, w, req)
	}
}

func (self *Web) streamHTTP(messagesFunc func(context.Context) <-chan []byte, w http.ResponseWriter, req *http.Request) {
	messages := messagesFunc(req.Context())

	/*
		It is inefficient to flush after every line.
		Instead we write as long as values are available on the channel,
		then flush, and then do the next read in a blocking fashion
		so that we don't enter a busy loop.
	*/

	flushed := false
	var message []byte
Line:
	for {
		if message != nil {
			if _, err := w.Write(append(message, '\n')); err != nil {
				self.Logger.Err(err).Msg("Error writing report event")
				return
			}

			message = nil
		}

		if flushed {
			// this blocks so that we don't flush in a busy loop
			msg, ok := <-messages
			if !ok {
				break
			}

			message = msg
			flushed = false
			continue
		}

		select {
		case msg, ok := <-messages:
			if !ok {
				break Line
			}
			message = msg
		default:
			// flush if there is no value to read yet
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			flushed = true
		}
	}
}

var websocketUpgrader = websocket.Upgrader{}

func (self *Web) streamWS(messagesFunc func(context.Context) <-chan []byte, w http.ResponseWriter, req *http.Request) {
	conn, err := websocketUpgrader.Upgrade(w, req, nil)
	if err != nil {
		self.ClientError(w, err)
		return
	}

	go func() {
		defer func() {
			if err := conn.Close(); err != nil {
				self.Logger.Err(err).Msg("While closing websocket")
			}
		}()

		noMoreMessages := false
		ctx, cancel := context.WithCancel(context.Background())
		defer func() {
			noMoreMessages = true
			cancel()
		}()

		// Cancel context to unsubscribe when the connection is closed.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.NextReader(); err != nil {
					if _, ok := err.(*websocket.CloseError); ok || noMoreMessages {
						break
					}
				}
			}
		}()

		for message := range messagesFunc(ctx) {
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				self.Logger.Err(err).Msg("While writing message to websocket")
			}
		}
	}()
}

func getPage(req *http.Request) (*repository.Page, error) {
	page := repository.Page{}

	if offsetStr := req.FormValue("offset"); offsetStr == "" {
		page.Offset = 0
	} else if offset, err := strconv.Atoi(offsetStr); err != nil {
		return nil, errors.WithMessage(err, "offset parameter is invalid, should be positive integer")
	} else {
		page.Offset = offset
	}

	if limitStr := req.FormValue("limit"); limitStr == "" {
		page.Limit = 10
	} else if limit, err := strconv.Atoi(limitStr); err != nil {
		return nil, errors.WithMessage(err, "limit parameter is invalid, should be positive integer")
	} else {
		page.Limit = limit
	}

	return &page, nil
}

// Use this to call API request handlers from UI request handlers.
type NopResponseWriter struct{ http.ResponseWriter }

func (w NopResponseWriter) WriteHeader(int) {}

func (w NopResponseWriter) Write(b []byte) (int, error) {
	return io.Discard.Write(b)
}

type HandlerError struct {
	error
	StatusCode int
}

func (self HandlerError) HasError() bool {
	return self.error != nil
}

func (self *Web) ServerError(w http.ResponseWriter, err error) {
	self.Error(w, HandlerError{err, http.StatusInternalServerError})
}

func (self *Web) ClientError(w http.ResponseWriter, err error) {
	self.Error(w, HandlerError{err, http.StatusBadRequest})
}

func (self *Web) NotFound(w http.ResponseWriter, err error) {
	self.Error(w, HandlerError{err, http.StatusNotFound})
}

func (self *Web) Error(w http.ResponseWriter, err error) {
	status := 500

	if handlerErr, ok := err.(HandlerError); ok {
		status = handlerErr.StatusCode
		if !handlerErr.HasError() {
			err = nil
		}
	}

	var e *zerolog.Event
	if status >= 500 {
		e = self.Logger.Error()
	} else {
		e = self.Logger.Debug()
	}
	e.Int("status", status).Msg("Handler error")

	var msg string
	if err != nil {
		msg = err.Error()
	}

	http.Error(w, msg, status)
}

func (self *Web) json(w http.ResponseWriter, obj any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		self.ServerError(w, err)
		return
	}
}
