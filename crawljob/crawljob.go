// Package crawljob holds the stateful parts of the crawl screens: the
// controller that submits a crawl and watches it to completion, and the job
// history listing that refreshes itself while visible jobs are still active.
package crawljob

import (
	"context"
	"errors"

	"github.com/LexiconIndonesia/crawler-admin-service/common/models"
	"github.com/LexiconIndonesia/crawler-admin-service/common/validation"
)

var (
	ErrSubmitInProgress = errors.New("a crawl submission is already in progress")
	ErrNotRetryable     = errors.New("job is not retryable")
	ErrNotCancellable   = errors.New("job is not cancellable")
	ErrJobNotVisible    = errors.New("job is not on the current page")
	ErrInvalidFilter    = errors.New("invalid job filter")
)

// ValidationError is returned by Submit when the request is incomplete.
type ValidationError = validation.Error

// notification sources
const (
	sourceCrawl   = "crawl"
	sourceHistory = "history"
)

// JobAPI is the part of the upstream API the controller uses.
type JobAPI interface {
	Crawl(ctx context.Context, payload models.CreateCrawlPayload) (models.CrawlJob, error)
	Job(ctx context.Context, id string) (models.CrawlJob, error)
}

// ListAPI is the part of the upstream API the listing uses.
type ListAPI interface {
	Jobs(ctx context.Context, params models.JobListParams) (models.Page[models.CrawlJob], error)
	RetryJob(ctx context.Context, id string) (models.CrawlJob, error)
	CancelJob(ctx context.Context, id string) error
}

// DriverLister returns the names of the crawler drivers.
type DriverLister interface {
	Drivers(ctx context.Context) ([]string, error)
}

// DriverRefresher is implemented by driver listers that cache the list.
type DriverRefresher interface {
	Invalidate(ctx context.Context) error
}
