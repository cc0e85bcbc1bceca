package crawlerapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/LexiconIndonesia/crawler-admin-service/common/models"
	"github.com/google/uuid"
)

// Crawl submits a crawl request and returns the created job.
func (c *Client) Crawl(ctx context.Context, payload models.CreateCrawlPayload) (models.CrawlJob, error) {
	env, err := do[models.CrawlJob](ctx, c, http.MethodPost, "/crawl", nil, payload)
	if err != nil {
		return models.CrawlJob{}, fmt.Errorf("crawl: %w", err)
	}
	return env.Data, nil
}

// Drivers returns the names of the available crawler drivers.
func (c *Client) Drivers(ctx context.Context) ([]string, error) {
	env, err := do[[]string](ctx, c, http.MethodGet, "/drivers", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("drivers: %w", err)
	}
	if env.Data == nil {
		return []string{}, nil
	}
	return env.Data, nil
}

// Jobs returns one page of the job history.
func (c *Client) Jobs(ctx context.Context, params models.JobListParams) (models.Page[models.CrawlJob], error) {
	env, err := do[[]models.CrawlJob](ctx, c, http.MethodGet, "/jobs", jobQuery(params), nil)
	if err != nil {
		return models.Page[models.CrawlJob]{}, fmt.Errorf("list jobs: %w", err)
	}
	items := env.Data
	if items == nil {
		items = []models.CrawlJob{}
	}
	return models.Page[models.CrawlJob]{Items: items, Pagination: env.Pagination}, nil
}

// Job fetches a single job.
func (c *Client) Job(ctx context.Context, id string) (models.CrawlJob, error) {
	path, err := jobPath(id, "")
	if err != nil {
		return models.CrawlJob{}, err
	}
	env, err := do[models.CrawlJob](ctx, c, http.MethodGet, path, nil, nil)
	if err != nil {
		return models.CrawlJob{}, fmt.Errorf("get job %s: %w", id, err)
	}
	return env.Data, nil
}

// RetryJob asks the backend to retry a failed or partial job.
func (c *Client) RetryJob(ctx context.Context, id string) (models.CrawlJob, error) {
	path, err := jobPath(id, "/retry")
	if err != nil {
		return models.CrawlJob{}, err
	}
	env, err := do[models.CrawlJob](ctx, c, http.MethodPost, path, nil, struct{}{})
	if err != nil {
		return models.CrawlJob{}, fmt.Errorf("retry job %s: %w", id, err)
	}
	return env.Data, nil
}

// CancelJob asks the backend to cancel a pending or running job.
func (c *Client) CancelJob(ctx context.Context, id string) error {
	path, err := jobPath(id, "")
	if err != nil {
		return err
	}
	if _, err := do[struct{}](ctx, c, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("cancel job %s: %w", id, err)
	}
	return nil
}

func jobPath(id, suffix string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidJobID, id)
	}
	return "/jobs/" + parsed.String() + suffix, nil
}

func jobQuery(params models.JobListParams) url.Values {
	q := pageQuery(params.Page, params.PerPage)
	setIf(q, "filter[status]", string(params.Filter.Status))
	setIf(q, "filter[source_driver]", params.Filter.SourceDriver)
	setIf(q, "filter[manga_name]", params.Filter.MangaName)
	return q
}
