package crawljob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LexiconIndonesia/crawler-admin-service/common"
	"github.com/LexiconIndonesia/crawler-admin-service/common/crawlerapi"
	"github.com/LexiconIndonesia/crawler-admin-service/common/inflight"
	"github.com/LexiconIndonesia/crawler-admin-service/common/models"
	"github.com/LexiconIndonesia/crawler-admin-service/common/notify"
	"github.com/LexiconIndonesia/crawler-admin-service/common/work"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// DefaultListPollInterval is how often the history refreshes while a visible
// job is active.
const DefaultListPollInterval = 10 * time.Second

// ListingView is a snapshot of the history screen.
type ListingView struct {
	Items         []models.CrawlJobView  `json:"items"`
	Total         int                    `json:"total"`
	Page          int                    `json:"page"`
	PageSize      int                    `json:"page_size"`
	LastPage      int                    `json:"last_page"`
	Filter        models.JobFilter       `json:"filter"`
	Loading       bool                   `json:"loading"`
	Polling       bool                   `json:"polling"`
	Retrying      []string               `json:"retrying"`
	Cancelling    []string               `json:"cancelling"`
	Drivers       []string               `json:"drivers"`
	StatusOptions []models.JobStatusView `json:"status_options"`
}

// Listing is the paginated job history. It refreshes itself only while the
// visible page holds a pending or running job; active jobs on other pages do
// not keep the refresh alive.
type Listing struct {
	api      ListAPI
	drivers  DriverLister
	notifier notify.Notifier
	interval time.Duration
	logger   zerolog.Logger

	retrying   *inflight.Set[string]
	cancelling *inflight.Set[string]

	mu         sync.Mutex
	items      []models.CrawlJob
	total      int
	page       int
	pageSize   int
	filter     models.JobFilter
	loading    int
	poll       *work.Loop
	pollGen    uint64
	driverList []string
	closed     bool
}

// ListingOption configures a Listing.
type ListingOption func(*Listing)

// WithListInterval overrides DefaultListPollInterval.
func WithListInterval(d time.Duration) ListingOption {
	return func(l *Listing) {
		if d > 0 {
			l.interval = d
		}
	}
}

// WithListDrivers sets the source of the driver filter options.
func WithListDrivers(d DriverLister) ListingOption {
	return func(l *Listing) {
		l.drivers = d
	}
}

// WithPageSize sets the initial page size.
func WithPageSize(n int) ListingOption {
	return func(l *Listing) {
		if n > 0 {
			l.pageSize = n
		}
	}
}

// WithActionClaimer shares the retry and cancel markers through c.
func WithActionClaimer(c inflight.Claimer) ListingOption {
	return func(l *Listing) {
		l.retrying = inflight.NewSet("retry", inflight.WithClaimer[string](c))
		l.cancelling = inflight.NewSet("cancel", inflight.WithClaimer[string](c))
	}
}

// NewListing creates a listing on page 1 with no filters. Nothing is fetched
// until Open or Load.
func NewListing(api ListAPI, notifier notify.Notifier, opts ...ListingOption) *Listing {
	l := &Listing{
		api:        api,
		notifier:   notifier,
		interval:   DefaultListPollInterval,
		logger:     log.With().Str("component", "job-listing").Logger(),
		retrying:   inflight.NewSet[string]("retry"),
		cancelling: inflight.NewSet[string]("cancel"),
		page:       common.DefaultPage,
		pageSize:   common.DefaultPageSize,
		driverList: []string{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open loads the driver options and the current page. A failed driver load
// is ignored.
func (l *Listing) Open(ctx context.Context) error {
	if l.drivers != nil {
		if drivers, err := l.drivers.Drivers(ctx); err == nil {
			l.mu.Lock()
			l.driverList = drivers
			l.mu.Unlock()
		} else {
			l.logger.Debug().Err(err).Msg("Driver options unavailable")
		}
	}
	return l.Load(ctx)
}

// Load fetches the current page with the current filters. On failure the list
// is emptied and the refresh stops.
func (l *Listing) Load(ctx context.Context) error {
	return l.load(ctx, 0)
}

// load does the work of Load. gen is the refresh generation that issued a
// background tick, or 0 for a caller's own load. The result of a tick whose
// refresh was disarmed meanwhile is dropped.
func (l *Listing) load(ctx context.Context, gen uint64) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return common.ErrClosed
	}
	params := models.JobListParams{Page: l.page, PerPage: l.pageSize, Filter: l.filter}
	l.loading++
	l.mu.Unlock()

	res, err := l.api.Jobs(ctx, params)

	l.mu.Lock()
	l.loading--
	if common.Cancelled(ctx) {
		l.mu.Unlock()
		if err != nil {
			return ctx.Err()
		}
		return nil
	}
	if gen != 0 && gen != l.pollGen {
		// fetched for a refresh that was disarmed meanwhile
		l.mu.Unlock()
		return nil
	}

	if err != nil {
		l.items = nil
		l.total = 0
		stale := l.detachPollLocked()
		l.mu.Unlock()

		if stale != nil {
			stale.Cancel()
		}
		l.notifier.Publish(notify.Error(sourceHistory, "Failed to load crawl jobs"))
		return fmt.Errorf("loading jobs: %w", err)
	}

	l.items = res.Items
	l.total = res.Pagination.Total
	stale := l.managePollLocked()
	l.mu.Unlock()

	if stale != nil {
		stale.Cancel()
	}
	return nil
}

// managePollLocked arms the refresh when a visible job is active and disarms
// it otherwise. A loop that has to stop is returned so the caller can cancel
// it after releasing the lock.
func (l *Listing) managePollLocked() *work.Loop {
	active := lo.SomeBy(l.items, func(j models.CrawlJob) bool {
		return j.Status.IsActive()
	})

	if !active {
		return l.detachPollLocked()
	}
	if l.poll != nil || l.closed {
		return nil
	}

	l.pollGen++
	gen := l.pollGen
	loop, err := work.StartLoop(context.Background(), l.interval, func(ctx context.Context) {
		_ = l.load(ctx, gen)
	}, work.WithLoopID("job-list-poll"))
	if err != nil {
		l.logger.Error().Err(err).Msg("Failed to start job list refresh")
		return nil
	}
	l.poll = loop
	return nil
}

func (l *Listing) detachPollLocked() *work.Loop {
	p := l.poll
	l.poll = nil
	l.pollGen++
	return p
}

// Search applies filter and returns to page 1.
func (l *Listing) Search(ctx context.Context, filter models.JobFilter) error {
	if filter.Status != "" && !filter.Status.Known() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, filter.Status)
	}

	l.mu.Lock()
	l.filter = filter
	l.page = 1
	l.mu.Unlock()
	return l.Load(ctx)
}

// ResetFilters clears the filters and returns to page 1.
func (l *Listing) ResetFilters(ctx context.Context) error {
	return l.Search(ctx, models.JobFilter{})
}

// SetPage moves to page n, keeping the filters.
func (l *Listing) SetPage(ctx context.Context, n int) error {
	l.mu.Lock()
	l.page = max(n, 1)
	l.mu.Unlock()
	return l.Load(ctx)
}

// SetPageSize changes the page size and returns to page 1.
func (l *Listing) SetPageSize(ctx context.Context, n int) error {
	if n < 1 {
		n = common.DefaultPageSize
	}
	l.mu.Lock()
	l.pageSize = n
	l.page = 1
	l.mu.Unlock()
	return l.Load(ctx)
}

// Retry asks the backend to rerun a failed or partial job that is on the
// current page, then reloads.
func (l *Listing) Retry(ctx context.Context, jobID string) error {
	job, err := l.visible(jobID)
	if err != nil {
		return err
	}
	if !job.Status.Retryable() {
		return fmt.Errorf("%w: status %s", ErrNotRetryable, job.Status)
	}

	err = l.retrying.Do(ctx, jobID, func(ctx context.Context) error {
		if _, err := l.api.RetryJob(ctx, jobID); err != nil {
			if common.Cancelled(ctx) {
				return ctx.Err()
			}
			l.notifier.Publish(notify.Error(sourceHistory, "Retry failed", crawlerapi.FieldMessages(err)...))
			return fmt.Errorf("retrying job %s: %w", jobID, err)
		}
		l.notifier.Publish(notify.Success(sourceHistory, fmt.Sprintf("Job %q was retried", models.MangaLabel(job))))
		return nil
	})
	if err != nil {
		return err
	}

	l.reload(ctx)
	return nil
}

// Cancel asks the backend to stop a pending or running job that is on the
// current page, then reloads.
func (l *Listing) Cancel(ctx context.Context, jobID string) error {
	job, err := l.visible(jobID)
	if err != nil {
		return err
	}
	if !job.Status.Cancellable() {
		return fmt.Errorf("%w: status %s", ErrNotCancellable, job.Status)
	}

	err = l.cancelling.Do(ctx, jobID, func(ctx context.Context) error {
		if err := l.api.CancelJob(ctx, jobID); err != nil {
			if common.Cancelled(ctx) {
				return ctx.Err()
			}
			l.notifier.Publish(notify.Error(sourceHistory, "Cancel failed", crawlerapi.FieldMessages(err)...))
			return fmt.Errorf("cancelling job %s: %w", jobID, err)
		}
		l.notifier.Publish(notify.Success(sourceHistory, fmt.Sprintf("Job %q was cancelled", models.MangaLabel(job))))
		return nil
	})
	if err != nil {
		return err
	}

	l.reload(ctx)
	return nil
}

// reload refreshes after a successful action. The action already succeeded,
// so a failed reload is only reported through Load's own notification.
func (l *Listing) reload(ctx context.Context) {
	if err := l.Load(ctx); err != nil && !errors.Is(err, common.ErrClosed) {
		l.logger.Debug().Err(err).Msg("Reload after action failed")
	}
}

func (l *Listing) visible(jobID string) (models.CrawlJob, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	job, ok := lo.Find(l.items, func(j models.CrawlJob) bool { return j.ID == jobID })
	if !ok {
		return models.CrawlJob{}, fmt.Errorf("%w: %s", ErrJobNotVisible, jobID)
	}
	return job, nil
}

// Polling reports whether the auto-refresh is armed.
func (l *Listing) Polling() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.poll != nil
}

// View returns a snapshot for the history screen.
func (l *Listing) View() ListingView {
	l.mu.Lock()
	defer l.mu.Unlock()

	lastPage := 1
	if l.total > 0 && l.pageSize > 0 {
		lastPage = (l.total + l.pageSize - 1) / l.pageSize
	}

	return ListingView{
		Items:         lo.Map(l.items, func(j models.CrawlJob, _ int) models.CrawlJobView { return j.View() }),
		Total:         l.total,
		Page:          l.page,
		PageSize:      l.pageSize,
		LastPage:      lastPage,
		Filter:        l.filter,
		Loading:       l.loading > 0,
		Polling:       l.poll != nil,
		Retrying:      l.retrying.IDs(),
		Cancelling:    l.cancelling.IDs(),
		Drivers:       l.driverList,
		StatusOptions: models.StatusOptions(),
	}
}

// StopPolling disarms the refresh and waits for it to exit. A later Load arms
// it again if needed.
func (l *Listing) StopPolling() {
	l.mu.Lock()
	p := l.detachPollLocked()
	l.mu.Unlock()

	if p != nil {
		p.Stop()
	}
}

// Close stops the refresh for good.
func (l *Listing) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.StopPolling()
}
