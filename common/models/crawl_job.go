package models

import (
	"time"

	"github.com/samber/mo"
)

// CrawlMode selects how a crawl target is addressed.
type CrawlMode string

const (
	CrawlModeURL  CrawlMode = "url"
	CrawlModePage CrawlMode = "page"
)

// StorageType is where crawled images are stored.
type StorageType string

const (
	StorageS3      StorageType = "s3"
	StoragePublic  StorageType = "public"
	StorageHotlink StorageType = "hotlink"
)

// CrawlOptions are the image-processing settings sent with a crawl request.
type CrawlOptions struct {
	Resize          bool `json:"resize"`
	ResizeWidth     int  `json:"resize_width"`
	Compress        bool `json:"compress"`
	CompressQuality int  `json:"compress_quality"`
	Watermark       bool `json:"watermark"`
	Credit          bool `json:"credit"`
}

// DefaultCrawlOptions mirrors the defaults of the submission form.
func DefaultCrawlOptions() CrawlOptions {
	return CrawlOptions{
		Resize:          true,
		ResizeWidth:     900,
		Compress:        true,
		CompressQuality: 90,
		Watermark:       true,
		Credit:          true,
	}
}

// CrawlJob is one crawl execution tracked by the backend.
type CrawlJob struct {
	ID              string                  `json:"id"`
	SourceDriver    string                  `json:"source_driver"`
	MangaURL        mo.Option[string]       `json:"manga_url" swaggertype:"string"`
	MangaName       mo.Option[string]       `json:"manga_name" swaggertype:"string"`
	StartPage       mo.Option[int]          `json:"start_page" swaggertype:"integer"`
	EndPage         mo.Option[int]          `json:"end_page" swaggertype:"integer"`
	StorageType     StorageType             `json:"storage_type"`
	Options         mo.Option[CrawlOptions] `json:"options" swaggertype:"object"`
	Status          JobStatus               `json:"status"`
	TotalChapters   int                     `json:"total_chapters"`
	CrawledChapters int                     `json:"crawled_chapters"`
	TotalImages     int                     `json:"total_images"`
	ErrorMessage    mo.Option[string]       `json:"error_message" swaggertype:"string"`
	DurationSeconds mo.Option[int]          `json:"duration_seconds" swaggertype:"integer"`
	StartedAt       mo.Option[time.Time]    `json:"started_at" swaggertype:"string"`
	CompletedAt     mo.Option[time.Time]    `json:"completed_at" swaggertype:"string"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// Progress returns crawled chapters as a percentage of the total.
func (j CrawlJob) Progress() int {
	if j.TotalChapters <= 0 {
		return 0
	}
	p := j.CrawledChapters * 100 / j.TotalChapters
	if p > 100 {
		return 100
	}
	return p
}

// CrawlJobView is a job enriched with display fields for the console.
type CrawlJobView struct {
	CrawlJob
	Label       string        `json:"label"`
	Duration    string        `json:"duration"`
	Progress    int           `json:"progress"`
	StatusView  JobStatusView `json:"status_view"`
	Retryable   bool          `json:"retryable"`
	Cancellable bool          `json:"cancellable"`
}

// View builds the display form of j.
func (j CrawlJob) View() CrawlJobView {
	return CrawlJobView{
		CrawlJob:    j,
		Label:       MangaLabel(j),
		Duration:    FormatDuration(j.DurationSeconds),
		Progress:    j.Progress(),
		StatusView:  j.Status.View(),
		Retryable:   j.Status.Retryable(),
		Cancellable: j.Status.Cancellable(),
	}
}

// CreateCrawlPayload is the body of POST /crawl.
type CreateCrawlPayload struct {
	SourceDriver string        `json:"source_driver"`
	Mode         CrawlMode     `json:"mode"`
	MangaURL     string        `json:"manga_url,omitempty"`
	StartPage    *int          `json:"start_page,omitempty"`
	EndPage      *int          `json:"end_page,omitempty"`
	StorageType  StorageType   `json:"storage_type"`
	Options      *CrawlOptions `json:"options,omitempty"`
	UseProxies   bool          `json:"use_proxies"`
}

// JobFilter narrows the job history listing. Empty fields are not sent.
type JobFilter struct {
	Status       JobStatus `json:"status,omitempty"`
	SourceDriver string    `json:"source_driver,omitempty"`
	MangaName    string    `json:"manga_name,omitempty"`
}

// JobListParams is the query of GET /jobs.
type JobListParams struct {
	Page    int
	PerPage int
	Filter  JobFilter
}
