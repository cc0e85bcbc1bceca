package crawljob

import (
	"github.com/LexiconIndonesia/crawler-admin-service/common/models"
	"github.com/LexiconIndonesia/crawler-admin-service/common/validation"
	"github.com/go-playground/validator/v10"
)

// SubmitRequest is the crawl form.
type SubmitRequest struct {
	SourceDriver string               `json:"source_driver" validate:"required"`
	Mode         models.CrawlMode     `json:"mode" validate:"required,oneof=url page"`
	MangaURL     string               `json:"manga_url,omitempty" validate:"omitempty,url"`
	StartPage    *int                 `json:"start_page,omitempty" validate:"omitempty,min=1"`
	EndPage      *int                 `json:"end_page,omitempty" validate:"omitempty,min=1"`
	StorageType  models.StorageType   `json:"storage_type" validate:"required,oneof=s3 public hotlink"`
	Options      *models.CrawlOptions `json:"options,omitempty"`
	UseProxies   bool                 `json:"use_proxies"`
}

// Payload builds the upstream request. Only the target fields of the chosen
// mode are sent and missing options take the form defaults.
func (r SubmitRequest) Payload() models.CreateCrawlPayload {
	opts := models.DefaultCrawlOptions()
	if r.Options != nil {
		opts = *r.Options
	}

	p := models.CreateCrawlPayload{
		SourceDriver: r.SourceDriver,
		Mode:         r.Mode,
		StorageType:  r.StorageType,
		Options:      &opts,
		UseProxies:   r.UseProxies,
	}
	switch r.Mode {
	case models.CrawlModeURL:
		p.MangaURL = r.MangaURL
	case models.CrawlModePage:
		p.StartPage = r.StartPage
		p.EndPage = r.EndPage
	}
	return p
}

func newValidator() *validation.Validator {
	v := validation.New()
	v.RegisterStructRule(submitRule, SubmitRequest{})
	return v
}

// submitRule enforces the fields that depend on the crawl mode.
func submitRule(sl validator.StructLevel) {
	r := sl.Current().Interface().(SubmitRequest)

	switch r.Mode {
	case models.CrawlModeURL:
		if r.MangaURL == "" {
			sl.ReportError(r.MangaURL, "manga_url", "MangaURL", "required_for_mode", string(r.Mode))
		}
	case models.CrawlModePage:
		if r.StartPage == nil {
			sl.ReportError(r.StartPage, "start_page", "StartPage", "required_for_mode", string(r.Mode))
		}
		if r.EndPage == nil {
			sl.ReportError(r.EndPage, "end_page", "EndPage", "required_for_mode", string(r.Mode))
		}
	}

	if r.StartPage != nil && r.EndPage != nil && *r.StartPage > *r.EndPage {
		sl.ReportError(r.StartPage, "start_page", "StartPage", "ltefield_json", "end_page")
	}
}
