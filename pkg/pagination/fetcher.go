package pagination

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/icse/api-cache/pkg/client"
	"github.com/icse/api-cache/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "apicache_pages_fetched_total",
	Help: "Total collection pages kept by host",
}, []string{"host"})

// PageGetter is the single-page GET the fetcher needs; *client.Client implements it.
type PageGetter interface {
	Get(ctx context.Context, rawURL, token string) (*http.Response, error)
}

// Page is one fetched page of a collection.
type Page struct {
	URL  string
	Body string
}

// Result holds the pages of a collection in fetch order.
type Result struct {
	Pages []Page
}

// Concat returns the page bodies concatenated as raw text.
func (r *Result) Concat() string {
	var b strings.Builder
	for _, p := range r.Pages {
		b.WriteString(p.Body)
	}
	return b.String()
}

// Fetcher walks paginated collections sequentially.
type Fetcher struct {
	getter PageGetter
	logger zerolog.Logger
}

// NewFetcher creates a new fetcher.
func NewFetcher(getter PageGetter) *Fetcher {
	return &Fetcher{
		getter: getter,
		logger: logging.NewLogger("pagination"),
	}
}

// Fetch GETs startURL with token and follows rel="next" links until there
// are none. A 404 ends the walk and is not part of the result. Any other
// non-2xx status is returned as a status error.
func (f *Fetcher) Fetch(ctx context.Context, startURL, token string) (*Result, error) {
	start := time.Now()
	result := &Result{}
	visited := make(map[string]bool)

	for next := startURL; next != ""; {
		current := next
		next = ""
		visited[current] = true

		body, resp, base, err := f.fetchPage(ctx, current, token)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusNotFound {
			f.logger.Debug().
				Str("url", current).
				Int("pages", len(result.Pages)).
				Msg("Page not found, ending walk")
			break
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &client.APIError{
				Class:      client.ErrorClassStatus,
				URL:        current,
				StatusCode: resp.StatusCode,
				Message:    truncate(resp.Status+" "+string(body), 200),
			}
		}

		result.Pages = append(result.Pages, Page{URL: current, Body: string(body)})
		pagesFetchedTotal.WithLabelValues(base.Host).Inc()

		if link, ok := NextLink(resp.Header, base); ok {
			if visited[link] {
				f.logger.Warn().
					Str("url", current).
					Str("next", link).
					Msg("Next link points at a fetched page, ending walk")
				break
			}
			next = link
		}
	}

	f.logger.Info().
		Str("url", startURL).
		Int("pages", len(result.Pages)).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return result, nil
}

// fetchPage GETs one page and reads its body; the response body is always
// closed before returning. The returned URL is the one relative next links
// resolve against: the final URL after redirects when known.
func (f *Fetcher) fetchPage(ctx context.Context, rawURL, token string) ([]byte, *http.Response, *url.URL, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse page url: %w", err)
	}

	resp, err := f.getter.Get(ctx, rawURL, token)
	if err != nil {
		return nil, nil, nil, err
	}
	defer resp.Body.Close()

	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, nil, &client.APIError{
			Class: client.ErrorClassTransport,
			URL:   rawURL,
			Err:   fmt.Errorf("read response body: %w", err),
		}
	}

	return body, resp, base, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
