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
	"github.com/LexiconIndonesia/crawler-admin-service/common/validation"
	"github.com/LexiconIndonesia/crawler-admin-service/common/work"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/mo"
)

// DefaultJobPollInterval is how often a watched job is fetched.
const DefaultJobPollInterval = 5 * time.Second

// PollSession is the polling of one watched job. It is created by
// startPolling and ended by stopPolling or by the poll that observes a
// terminal status; nothing else touches it.
type PollSession struct {
	jobID  string
	loop   *work.Loop
	cancel context.CancelFunc
}

// JobID returns the watched job id.
func (s *PollSession) JobID() string { return s.jobID }

func (s *PollSession) stop() {
	s.cancel()
	s.loop.Wait()
}

// ControllerState is a snapshot of the controller.
type ControllerState struct {
	Submitting bool                 `json:"submitting"`
	Watching   bool                 `json:"watching"`
	Job        *models.CrawlJobView `json:"job"`
}

// Controller submits crawl jobs and watches the latest one until it ends.
type Controller struct {
	api      JobAPI
	drivers  DriverLister
	notifier notify.Notifier
	interval time.Duration
	validate *validation.Validator
	logger   zerolog.Logger

	submitting inflight.Flag

	mu      sync.Mutex
	job     mo.Option[models.CrawlJob]
	session *PollSession
	closed  bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithPollInterval overrides DefaultJobPollInterval.
func WithPollInterval(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithDrivers sets where the driver list comes from.
func WithDrivers(d DriverLister) ControllerOption {
	return func(c *Controller) {
		c.drivers = d
	}
}

// NewController creates an idle controller.
func NewController(api JobAPI, notifier notify.Notifier, opts ...ControllerOption) *Controller {
	c := &Controller{
		api:      api,
		notifier: notifier,
		interval: DefaultJobPollInterval,
		validate: newValidator(),
		logger:   log.With().Str("component", "crawl-controller").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit validates req, creates the crawl job and starts watching it.
//
// Validation failures never reach the upstream API. A submit while another is
// waiting for its response returns ErrSubmitInProgress.
func (c *Controller) Submit(ctx context.Context, req SubmitRequest) (models.CrawlJob, error) {
	if err := c.checkOpen(); err != nil {
		return models.CrawlJob{}, err
	}

	if err := c.validate.Struct(req); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			c.notifier.Publish(notify.Error(sourceCrawl, "Please fix the crawl form", verr.Messages()...))
		}
		return models.CrawlJob{}, err
	}

	var job models.CrawlJob
	err := c.submitting.Do(ctx, func(ctx context.Context) error {
		created, err := c.api.Crawl(ctx, req.Payload())
		if err != nil {
			if common.Cancelled(ctx) {
				return ctx.Err()
			}
			c.notifier.Publish(notify.Error(sourceCrawl, "Failed to start crawl job", crawlerapi.FieldMessages(err)...))
			return fmt.Errorf("submitting crawl: %w", err)
		}
		job = created
		return nil
	})
	if errors.Is(err, common.ErrBusy) {
		return models.CrawlJob{}, ErrSubmitInProgress
	}
	if err != nil {
		return models.CrawlJob{}, err
	}

	c.notifier.Publish(notify.Success(sourceCrawl, "Crawl job started", models.MangaLabel(job)))
	if err := c.startPolling(job); err != nil {
		return job, err
	}

	c.logger.Info().Str("jobID", job.ID).Str("driver", job.SourceDriver).Msg("Crawl job submitted")
	return job, nil
}

// startPolling makes job the watched job and replaces any previous session.
func (c *Controller) startPolling(job models.CrawlJob) error {
	ctx, cancel := context.WithCancel(context.Background())
	s := &PollSession{jobID: job.ID, cancel: cancel}

	loop, err := work.StartLoop(ctx, c.interval, func(ctx context.Context) {
		c.poll(ctx, s)
	}, work.WithLoopID("job-poll-"+job.ID), work.WithTickTimeout(c.interval))
	if err != nil {
		cancel()
		return fmt.Errorf("starting job poll: %w", err)
	}
	s.loop = loop

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		s.stop()
		return common.ErrClosed
	}
	old := c.session
	c.session = s
	c.job = mo.Some(job)
	c.mu.Unlock()

	if old != nil {
		old.stop()
	}
	return nil
}

// stopPolling ends the current session and waits for its goroutine.
func (c *Controller) stopPolling() {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()

	if s != nil {
		s.stop()
	}
}

// poll runs on the session goroutine. Results for a session that is no
// longer current are dropped.
func (c *Controller) poll(ctx context.Context, s *PollSession) {
	job, err := c.api.Job(ctx, s.jobID)
	if err != nil {
		if !errors.Is(ctx.Err(), context.Canceled) {
			c.logger.Debug().Err(err).Str("jobID", s.jobID).Msg("Job poll failed")
		}
		return
	}

	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return
	}
	c.job = mo.Some(job)
	terminal := job.Status.IsTerminal()
	if terminal {
		c.session = nil
	}
	c.mu.Unlock()

	if !terminal {
		return
	}

	// Called from inside the loop, so cancel without waiting.
	s.cancel()

	if outcome, ok := job.Status.Outcome(); ok {
		details := []string{models.MangaLabel(job)}
		if msg, ok := job.ErrorMessage.Get(); ok && msg != "" {
			details = append(details, msg)
		}
		c.notifier.Publish(notify.New(outcome.Severity, sourceCrawl, outcome.Message, details...))
	}
	c.logger.Info().Str("jobID", job.ID).Str("status", string(job.Status)).Msg("Watched job finished")
}

// Drivers returns the crawler drivers for the submission form.
func (c *Controller) Drivers(ctx context.Context) ([]string, error) {
	if c.drivers == nil {
		return []string{}, nil
	}
	drivers, err := c.drivers.Drivers(ctx)
	if err != nil {
		c.notifier.Publish(notify.Error(sourceCrawl, "Failed to load crawler drivers"))
		return nil, err
	}
	return drivers, nil
}

// RefreshDrivers drops any cached driver list before loading it again. If the
// cache cannot be cleared the cached list is returned.
func (c *Controller) RefreshDrivers(ctx context.Context) ([]string, error) {
	if r, ok := c.drivers.(DriverRefresher); ok {
		if err := r.Invalidate(ctx); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to drop cached driver list")
		}
	}
	return c.Drivers(ctx)
}

// State returns a snapshot for the submission screen.
func (c *Controller) State() ControllerState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := ControllerState{
		Submitting: c.submitting.Active(),
		Watching:   c.session != nil,
	}
	if job, ok := c.job.Get(); ok {
		view := job.View()
		st.Job = &view
	}
	return st
}

// StopWatching ends polling and forgets the watched job. The controller can
// submit again afterwards.
func (c *Controller) StopWatching() {
	c.stopPolling()

	c.mu.Lock()
	c.job = mo.None[models.CrawlJob]()
	c.mu.Unlock()
}

// Close stops polling for good. Requests still in flight are cancelled and
// their results ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.stopPolling()
}

func (c *Controller) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return common.ErrClosed
	}
	return nil
}
