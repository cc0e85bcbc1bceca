package crawljob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LexiconIndonesia/crawler-admin-service/common/models"
	"github.com/samber/mo"
)

var errUpstream = errors.New("upstream unavailable")

// untilDone blocks like a request whose caller went away, and fails with the
// context error the transport would report.
func untilDone(ctx context.Context) error {
	<-ctx.Done()
	return fmt.Errorf("request aborted: %w", ctx.Err())
}

// fakeAPI implements JobAPI, ListAPI and DriverLister. Unset hooks fail.
type fakeAPI struct {
	mu sync.Mutex

	crawl  func(ctx context.Context, p models.CreateCrawlPayload) (models.CrawlJob, error)
	job    func(ctx context.Context, id string) (models.CrawlJob, error)
	jobs   func(ctx context.Context, p models.JobListParams) (models.Page[models.CrawlJob], error)
	retry  func(ctx context.Context, id string) (models.CrawlJob, error)
	cancel func(ctx context.Context, id string) error

	drivers    []string
	driversErr error

	crawlCalls  int
	jobCalls    int
	jobsCalls   int
	retryCalls  int
	cancelCalls int
	lastParams  models.JobListParams
	payloads    []models.CreateCrawlPayload
}

func (f *fakeAPI) Crawl(ctx context.Context, p models.CreateCrawlPayload) (models.CrawlJob, error) {
	f.mu.Lock()
	f.crawlCalls++
	f.payloads = append(f.payloads, p)
	fn := f.crawl
	f.mu.Unlock()
	if fn == nil {
		return models.CrawlJob{}, errUpstream
	}
	return fn(ctx, p)
}

func (f *fakeAPI) Job(ctx context.Context, id string) (models.CrawlJob, error) {
	f.mu.Lock()
	f.jobCalls++
	fn := f.job
	f.mu.Unlock()
	if fn == nil {
		return models.CrawlJob{}, errUpstream
	}
	return fn(ctx, id)
}

func (f *fakeAPI) Jobs(ctx context.Context, p models.JobListParams) (models.Page[models.CrawlJob], error) {
	f.mu.Lock()
	f.jobsCalls++
	f.lastParams = p
	fn := f.jobs
	f.mu.Unlock()
	if fn == nil {
		return models.Page[models.CrawlJob]{}, errUpstream
	}
	return fn(ctx, p)
}

func (f *fakeAPI) RetryJob(ctx context.Context, id string) (models.CrawlJob, error) {
	f.mu.Lock()
	f.retryCalls++
	fn := f.retry
	f.mu.Unlock()
	if fn == nil {
		return models.CrawlJob{}, errUpstream
	}
	return fn(ctx, id)
}

func (f *fakeAPI) CancelJob(ctx context.Context, id string) error {
	f.mu.Lock()
	f.cancelCalls++
	fn := f.cancel
	f.mu.Unlock()
	if fn == nil {
		return errUpstream
	}
	return fn(ctx, id)
}

func (f *fakeAPI) Drivers(ctx context.Context) ([]string, error) {
	return f.drivers, f.driversErr
}

func (f *fakeAPI) calls() (crawl, job, jobs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.crawlCalls, f.jobCalls, f.jobsCalls
}

func (f *fakeAPI) params() models.JobListParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastParams
}

// statusSequence returns a Job hook that walks through statuses, repeating
// the last one.
func statusSequence(base models.CrawlJob, statuses ...models.JobStatus) func(context.Context, string) (models.CrawlJob, error) {
	var mu sync.Mutex
	i := 0
	return func(ctx context.Context, id string) (models.CrawlJob, error) {
		mu.Lock()
		defer mu.Unlock()
		j := base
		j.Status = statuses[min(i, len(statuses)-1)]
		i++
		return j, nil
	}
}

func newJob(id string, status models.JobStatus) models.CrawlJob {
	now := time.Now().UTC()
	return models.CrawlJob{
		ID:           id,
		SourceDriver: "mangadex",
		MangaName:    mo.Some("One Piece"),
		StorageType:  models.StoragePublic,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func page(jobs ...models.CrawlJob) models.Page[models.CrawlJob] {
	return models.Page[models.CrawlJob]{
		Items: jobs,
		Pagination: models.Pagination{
			Total:       len(jobs),
			PerPage:     20,
			CurrentPage: 1,
			LastPage:    1,
		},
	}
}

func intPtr(n int) *int { return &n }
