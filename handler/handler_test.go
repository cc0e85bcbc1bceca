package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LexiconIndonesia/crawler-admin-service/common"
	"github.com/LexiconIndonesia/crawler-admin-service/common/crawlerapi"
	"github.com/LexiconIndonesia/crawler-admin-service/common/db"
	"github.com/LexiconIndonesia/crawler-admin-service/common/models"
	"github.com/LexiconIndonesia/crawler-admin-service/common/notify"
	"github.com/LexiconIndonesia/crawler-admin-service/common/redis"
	"github.com/LexiconIndonesia/crawler-admin-service/crawljob"
	"github.com/LexiconIndonesia/crawler-admin-service/proxypool"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend is an in-memory crawler API.
type backend struct {
	mu      sync.Mutex
	jobs    []models.CrawlJob
	proxies []models.Proxy
	retried []string
	crawled []models.CreateCrawlPayload
	fail    error
}

func (b *backend) Crawl(_ context.Context, p models.CreateCrawlPayload) (models.CrawlJob, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return models.CrawlJob{}, b.fail
	}
	b.crawled = append(b.crawled, p)
	return models.CrawlJob{ID: "job-new", SourceDriver: p.SourceDriver, Status: models.JobStatusPending}, nil
}

func (b *backend) Job(_ context.Context, id string) (models.CrawlJob, error) {
	return models.CrawlJob{ID: id, Status: models.JobStatusRunning}, nil
}

func (b *backend) Drivers(context.Context) ([]string, error) {
	return []string{"mangadex", "komiku"}, nil
}

func (b *backend) Jobs(_ context.Context, p models.JobListParams) (models.Page[models.CrawlJob], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return models.Page[models.CrawlJob]{}, b.fail
	}
	return models.Page[models.CrawlJob]{
		Items:      b.jobs,
		Pagination: models.Pagination{Total: len(b.jobs), PerPage: p.PerPage, CurrentPage: p.Page},
	}, nil
}

func (b *backend) RetryJob(_ context.Context, id string) (models.CrawlJob, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.retried = append(b.retried, id)
	return models.CrawlJob{ID: id, Status: models.JobStatusPending}, nil
}

func (b *backend) CancelJob(context.Context, string) error { return nil }

func (b *backend) Proxies(_ context.Context, p models.ProxyListParams) (models.ProxyPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return models.ProxyPage{
		Page: models.Page[models.Proxy]{
			Items:      b.proxies,
			Pagination: models.Pagination{Total: len(b.proxies), PerPage: p.PerPage, CurrentPage: p.Page},
		},
		Stats: mo.Some(models.ProxyStats{Active: len(b.proxies), Total: len(b.proxies)}),
	}, nil
}

func (b *backend) CreateProxy(_ context.Context, in models.ProxyInput) (models.Proxy, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := models.Proxy{ID: int64(len(b.proxies) + 1), Address: in.Address, Type: in.Type, IsActive: true}
	b.proxies = append(b.proxies, p)
	return p, nil
}

func (b *backend) DeleteProxy(context.Context, int64) error { return nil }

func (b *backend) TestProxies(_ context.Context, ids []int64) ([]models.ProxyTestResult, error) {
	out := make([]models.ProxyTestResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.ProxyTestResult{ID: id, Success: true, ResponseTimeMs: mo.Some(42)})
	}
	return out, nil
}

func (b *backend) ImportProxies(_ context.Context, in models.ProxyImport) (int, error) {
	return len(strings.Split(in.Text, "\n")), nil
}

func (b *backend) RemoveDeadProxies(context.Context) (int, error) { return 0, nil }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var res models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func TestSubmitRejectsInvalidFormWithoutCallingUpstream(t *testing.T) {
	b := &backend{}
	c := crawljob.NewController(b, notify.Discard, crawljob.WithPollInterval(time.Hour))
	t.Cleanup(c.Close)
	h := NewCrawlHandler(c).Router()

	rec := do(t, h, http.MethodPost, "/", `{"mode":"url","storage_type":"s3"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	res := decodeError(t, rec)
	assert.Contains(t, res.Fields, "source_driver")
	assert.Contains(t, res.Fields, "manga_url")
	assert.Empty(t, b.crawled)
}

func TestSubmitStartsWatching(t *testing.T) {
	b := &backend{}
	c := crawljob.NewController(b, notify.Discard, crawljob.WithPollInterval(time.Hour))
	t.Cleanup(c.Close)
	h := NewCrawlHandler(c).Router()

	rec := do(t, h, http.MethodPost, "/", `{"source_driver":"mangadex","mode":"url","manga_url":"https://example.com/manga/1","storage_type":"s3"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodGet, "/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Data crawljob.ControllerState `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Data.Watching)

	rec = do(t, h, http.MethodDelete, "/active", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, c.State().Watching)
}

func TestDriversRoute(t *testing.T) {
	b := &backend{}
	c := crawljob.NewController(b, notify.Discard, crawljob.WithDrivers(b))
	h := NewCrawlHandler(c).Router()

	rec := do(t, h, http.MethodGet, "/drivers", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":["mangadex","komiku"]}`, rec.Body.String())
}

func TestDriversRouteRefreshBypassesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.Wrap(redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = rc.Close() })
	require.NoError(t, mr.Set(common.DriverCacheKey, `["mangadex"]`))

	b := &backend{}
	cache := crawlerapi.NewDriverCache(b, rc, time.Minute)
	c := crawljob.NewController(b, notify.Discard, crawljob.WithDrivers(cache))
	h := NewCrawlHandler(c).Router()

	rec := do(t, h, http.MethodGet, "/drivers", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":["mangadex"]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/drivers?refresh=true", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":["mangadex","komiku"]}`, rec.Body.String())

	cached, err := mr.Get(common.DriverCacheKey)
	require.NoError(t, err)
	assert.JSONEq(t, `["mangadex","komiku"]`, cached)
}

func TestJobActions(t *testing.T) {
	b := &backend{jobs: []models.CrawlJob{
		{ID: "job-failed", Status: models.JobStatusFailed},
		{ID: "job-done", Status: models.JobStatusCompleted},
	}}
	l := crawljob.NewListing(b, notify.Discard, crawljob.WithListInterval(time.Hour))
	t.Cleanup(l.Close)
	h := NewJobsHandler(l).Router()

	rec := do(t, h, http.MethodGet, "/?refresh=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Data crawljob.ListingView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Len(t, res.Data.Items, 2)
	assert.False(t, res.Data.Polling)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"retry failed job", "/job-failed/retry", http.StatusOK},
		{"retry completed job", "/job-done/retry", http.StatusConflict},
		{"retry job on another page", "/job-missing/retry", http.StatusNotFound},
		{"cancel completed job", "/job-done/cancel", http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, "")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, []string{"job-failed"}, b.retried)
}

func TestJobSearchRejectsUnknownStatus(t *testing.T) {
	l := crawljob.NewListing(&backend{}, notify.Discard)
	t.Cleanup(l.Close)
	h := NewJobsHandler(l).Router()

	rec := do(t, h, http.MethodPost, "/search", `{"status":"exploded"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/page", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProxyRoutes(t *testing.T) {
	b := &backend{proxies: []models.Proxy{{ID: 1, Address: "10.0.0.1:8080", Type: models.ProxyHTTP, IsActive: true}}}
	m := proxypool.NewManager(b, notify.Discard)
	h := NewProxyHandler(m).Router()

	rec := do(t, h, http.MethodGet, "/?refresh=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/", `{"address":"not an address","type":"http"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeError(t, rec).Fields, "address")

	rec = do(t, h, http.MethodPost, "/", `{"address":" 10.0.0.2:3128 ","type":"socks5"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodPost, "/import", `{"text":"10.0.0.3:80\n\n10.0.0.3:80\n# comment\n10.0.0.4:80","type":"http"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var imported struct {
		Data CountResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &imported))
	assert.Equal(t, 2, imported.Data.Count)

	rec = do(t, h, http.MethodPost, "/test", `{"selected":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/99/selected", `{"selected":true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPut, "/1/selected", `{"selected":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/test", `{"selected":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		Data proxypool.TestSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Data.OK)
	assert.Equal(t, 1, summary.Data.Total)

	rec = do(t, h, http.MethodPost, "/test", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/abc/test", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/dead", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

type fakeHistory struct {
	records []db.NotificationRecord
	err     error
}

func (f fakeHistory) ListRecent(_ context.Context, limit int) ([]db.NotificationRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records[:min(limit, len(f.records))], nil
}

func TestNotificationSources(t *testing.T) {
	hub, err := notify.NewHub(notify.HubConfig{Recent: 10, Workers: 1})
	require.NoError(t, err)
	t.Cleanup(hub.Close)
	hub.Publish(notify.Success("proxy", "Proxy added"))
	hub.Publish(notify.Error("crawl", "Failed to start crawl job"))

	h := NewNotificationHandler(hub, nil).Router()
	rec := do(t, h, http.MethodGet, "/?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res struct {
		Data []notify.Notification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Failed to start crawl job", res.Data[0].Message)

	rec = do(t, h, http.MethodGet, "/?source=db", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	history := fakeHistory{records: []db.NotificationRecord{{ID: "n-1", Category: "info", Source: "history", Message: "stored"}}}
	h = NewNotificationHandler(hub, history).Router()
	rec = do(t, h, http.MethodGet, "/?source=db", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Data, 1)
	assert.Equal(t, "stored", res.Data[0].Message)

	h = NewNotificationHandler(hub, fakeHistory{err: errors.New("db down")}).Router()
	rec = do(t, h, http.MethodGet, "/?source=db", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthReportsFailingDependency(t *testing.T) {
	h := NewHealthHandler(map[string]HealthCheck{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	})

	rec := do(t, h.Router(), http.MethodGet, "/", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	r := chi.NewRouter()
	r.Get("/health", h.HandleLiveness)
	rec = do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"in flight", fmt.Errorf("retry: %w", common.ErrInFlight), http.StatusConflict},
		{"busy submit", crawljob.ErrSubmitInProgress, http.StatusConflict},
		{"closed", common.ErrClosed, http.StatusServiceUnavailable},
		{"bad job id", crawlerapi.ErrInvalidJobID, http.StatusBadRequest},
		{"unauthorized upstream", &crawlerapi.Error{StatusCode: http.StatusUnauthorized}, http.StatusBadGateway},
		{"upstream validation", &crawlerapi.Error{StatusCode: http.StatusUnprocessableEntity, Fields: map[string][]string{"address": {"taken"}}}, http.StatusUnprocessableEntity},
		{"upstream not found", &crawlerapi.Error{StatusCode: http.StatusNotFound}, http.StatusNotFound},
		{"upstream failure", &crawlerapi.Error{StatusCode: http.StatusInternalServerError, Message: "stack trace"}, http.StatusBadGateway},
		{"transport", errors.New("dial tcp: refused"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tt.err)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotContains(t, rec.Body.String(), "stack trace")
		})
	}
}
