package staging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// HTTPFetcher retrieves remote locators over HTTP with an optional request
// rate cap, so a burst of image fetches does not hammer the origin.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPFetcher builds a fetcher whose requests time out after timeout.
// perSec caps the request rate across all concurrent fetches; zero or
// negative means unlimited.
func NewHTTPFetcher(timeout time.Duration, perSec float64) *HTTPFetcher {
	f := &HTTPFetcher{client: &http.Client{Timeout: timeout}}
	if perSec > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	}
	return f
}

// Fetch downloads uri and returns its body. The caller closes it.
func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) (io.ReadCloser, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}
