package app

import (
	"context"
	"fmt"
	"time"

	"github.com/icse/api-cache/pkg/client"
	"github.com/icse/api-cache/pkg/fixture"
	"github.com/icse/api-cache/pkg/iam"
	"github.com/icse/api-cache/pkg/logging"
	"github.com/icse/api-cache/pkg/metrics"
	"github.com/icse/api-cache/pkg/pagination"
	"github.com/icse/api-cache/pkg/resources"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"go.uber.org/multierr"
)

// Refresher fetches every resource of a catalog and writes its fixture.
type Refresher struct {
	Auth    *iam.Authenticator
	Fetcher *pagination.Fetcher
	Writer  *fixture.Writer
	Catalog []resources.Resource
	Params  resources.Params

	// KeepGoing isolates failures per resource. When false the first
	// failure aborts the run before any file is written.
	KeepGoing bool

	Now func() time.Time
}

// Report summarizes a refresh.
type Report struct {
	Written   []string
	Unchanged []string
	Failed    []string
}

// ResourceError ties a failure to the resource it happened on.
type ResourceError struct {
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// Refresh exchanges apiKey for a token and refreshes every resource in
// catalog order. Under KeepGoing the returned error combines every
// resource failure and the successful fixtures are still written.
func (r *Refresher) Refresh(ctx context.Context, apiKey string) (*Report, error) {
	logger := logging.NewLogger("refresh")
	now := r.Now
	if now == nil {
		now = time.Now
	}
	start := now()
	defer func() {
		metrics.RunDuration.Set(now().Sub(start).Seconds())
	}()

	token, err := r.Auth.GetToken(ctx, apiKey)
	if err != nil {
		recordError(err)
		return nil, err
	}

	report := &Report{}
	var entries []*fixture.Entry
	var errs error

	for _, res := range r.Catalog {
		entry, err := r.fetch(ctx, res, token, now(), logger)
		if err != nil {
			recordError(err)
			err = &ResourceError{Resource: res.Name, Err: err}
			if !r.KeepGoing {
				return nil, err
			}
			logger.Warn().Err(err).Str("resource", res.Name).Msg("Skipping resource")
			report.Failed = append(report.Failed, res.Name)
			errs = multierr.Append(errs, err)
			continue
		}
		entries = append(entries, entry)
	}

	for _, entry := range entries {
		path, changed, err := r.Writer.Write(entry)
		if err != nil {
			err = &ResourceError{Resource: entry.Name, Err: err}
			if !r.KeepGoing {
				return report, err
			}
			report.Failed = append(report.Failed, entry.Name)
			errs = multierr.Append(errs, err)
			continue
		}
		report.Written = append(report.Written, path)
		if !changed {
			report.Unchanged = append(report.Unchanged, path)
		}
	}

	if errs != nil {
		return report, errs
	}

	metrics.LastSuccess.Set(float64(now().Unix()))
	logger.Info().
		Int("fixtures", len(report.Written)).
		Int("unchanged", len(report.Unchanged)).
		Msg("Refresh complete")
	return report, nil
}

func (r *Refresher) fetch(ctx context.Context, res resources.Resource, token string, fetchedAt time.Time, logger zerolog.Logger) (*fixture.Entry, error) {
	rawURL, err := res.Render(r.Params)
	if err != nil {
		return nil, err
	}

	result, err := r.Fetcher.Fetch(ctx, rawURL, token)
	if err != nil {
		return nil, err
	}

	doc, err := result.Merge()
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("resource", res.Name).
		Int("pages", len(result.Pages)).
		Int("items", itemCount(doc)).
		Msg("Fetched resource")

	return &fixture.Entry{
		Name:      res.Name,
		Data:      []byte(doc),
		Pages:     len(result.Pages),
		FetchedAt: fetchedAt,
	}, nil
}

// itemCount is the number of elements in doc if it is an array, or the
// combined length of its array members if it is an object.
func itemCount(doc string) int {
	parsed := gjson.Parse(doc)
	if parsed.IsArray() {
		return int(parsed.Get("#").Int())
	}
	n := 0
	parsed.ForEach(func(_, value gjson.Result) bool {
		if value.IsArray() {
			n += int(value.Get("#").Int())
		}
		return true
	})
	return n
}

func recordError(err error) {
	class := client.ClassOf(err)
	if class == "" {
		class = "other"
	}
	metrics.ErrorsTotal.WithLabelValues(string(class)).Inc()
}
