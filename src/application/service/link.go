package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// LinkService probes external links over HTTP.
// Results are cached for the lifetime of the service so that a URL
// repeated across documents is only probed once per sync.
type LinkService interface {
	Check(ctx context.Context, url string) error
}

type linkService struct {
	logger zerolog.Logger
	client *retryablehttp.Client

	mutex sync.Mutex
	seen  map[string]error
}

func NewLinkService(logger *zerolog.Logger) LinkService {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 500 * time.Millisecond
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	return &linkService{
		logger: logger.With().Str("component", "LinkService").Logger(),
		client: client,
		seen:   map[string]error{},
	}
}

func (self *linkService) Check(ctx context.Context, url string) error {
	self.mutex.Lock()
	if err, cached := self.seen[url]; cached {
		self.mutex.Unlock()
		return err
	}
	self.mutex.Unlock()

	err := self.probe(ctx, url)
	if err != nil {
		self.logger.Debug().Str("url", url).Err(err).Msg("Link probe failed")
	}

	self.mutex.Lock()
	self.seen[url] = err
	self.mutex.Unlock()

	return err
}

// HEAD first. Some servers reject HEAD outright, so fall back to GET.
func (self *linkService) probe(ctx context.Context, url string) error {
	var lastErr error
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := retryablehttp.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return err
		}

		resp, err := self.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode < 400 {
			return nil
		}
		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}
	return lastErr
}
