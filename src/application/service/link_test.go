package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLinkCheck(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/ok":
			w.WriteHeader(http.StatusOK)
		case "/head-hostile":
			// Some servers reject HEAD; the probe must fall back to GET.
			if req.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	logger := zerolog.New(io.Discard)
	linkService := NewLinkService(&logger)

	assert.Nil(t, linkService.Check(context.Background(), server.URL+"/ok"))
	assert.Nil(t, linkService.Check(context.Background(), server.URL+"/head-hostile"))
	assert.Error(t, linkService.Check(context.Background(), server.URL+"/missing"))
}

func TestLinkCheckCachesResults(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	logger := zerolog.New(io.Discard)
	linkService := NewLinkService(&logger)

	assert.Nil(t, linkService.Check(context.Background(), server.URL))
	before := hits.Load()
	assert.Nil(t, linkService.Check(context.Background(), server.URL))
	assert.Equal(t, before, hits.Load(), "second check must be served from the cache")
}
