package crawlerapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/LexiconIndonesia/crawler-admin-service/common/models"
	"github.com/samber/mo"
)

type importResult struct {
	Imported int `json:"imported"`
}

type removeResult struct {
	Removed int `json:"removed"`
}

// Proxies returns one page of the proxy pool plus the pool stats.
func (c *Client) Proxies(ctx context.Context, params models.ProxyListParams) (models.ProxyPage, error) {
	env, err := do[[]models.Proxy](ctx, c, http.MethodGet, "/proxies", proxyQuery(params), nil)
	if err != nil {
		return models.ProxyPage{}, fmt.Errorf("list proxies: %w", err)
	}
	items := env.Data
	if items == nil {
		items = []models.Proxy{}
	}
	page := models.ProxyPage{
		Page: models.Page[models.Proxy]{Items: items, Pagination: env.Pagination},
	}
	if env.Stats != nil {
		page.Stats = mo.Some(*env.Stats)
	}
	return page, nil
}

// CreateProxy adds one proxy to the pool.
func (c *Client) CreateProxy(ctx context.Context, input models.ProxyInput) (models.Proxy, error) {
	env, err := do[models.Proxy](ctx, c, http.MethodPost, "/proxies", nil, input)
	if err != nil {
		return models.Proxy{}, fmt.Errorf("create proxy: %w", err)
	}
	return env.Data, nil
}

// DeleteProxy removes one proxy.
func (c *Client) DeleteProxy(ctx context.Context, id int64) error {
	if _, err := do[struct{}](ctx, c, http.MethodDelete, fmt.Sprintf("/proxies/%d", id), nil, nil); err != nil {
		return fmt.Errorf("delete proxy %d: %w", id, err)
	}
	return nil
}

// TestProxies checks connectivity of the given proxies, or of the whole pool
// when ids is empty.
func (c *Client) TestProxies(ctx context.Context, ids []int64) ([]models.ProxyTestResult, error) {
	env, err := do[[]models.ProxyTestResult](ctx, c, http.MethodPost, "/proxies/test", nil, models.ProxyTestRequest{ProxyIDs: ids})
	if err != nil {
		return nil, fmt.Errorf("test proxies: %w", err)
	}
	if env.Data == nil {
		return []models.ProxyTestResult{}, nil
	}
	return env.Data, nil
}

// ImportProxies bulk-imports newline separated addresses and returns the
// number of proxies the backend created.
func (c *Client) ImportProxies(ctx context.Context, input models.ProxyImport) (int, error) {
	env, err := do[importResult](ctx, c, http.MethodPost, "/proxies/import", nil, input)
	if err != nil {
		return 0, fmt.Errorf("import proxies: %w", err)
	}
	return env.Data.Imported, nil
}

// RemoveDeadProxies deletes every proxy the backend classifies as dead.
func (c *Client) RemoveDeadProxies(ctx context.Context) (int, error) {
	env, err := do[removeResult](ctx, c, http.MethodDelete, "/proxies/dead", nil, nil)
	if err != nil {
		return 0, fmt.Errorf("remove dead proxies: %w", err)
	}
	return env.Data.Removed, nil
}

func proxyQuery(params models.ProxyListParams) url.Values {
	q := pageQuery(params.Page, params.PerPage)
	setIf(q, "filter[type]", string(params.Filter.Type))
	if active, ok := params.Filter.IsActive.Get(); ok {
		if active {
			q.Set("filter[is_active]", "1")
		} else {
			q.Set("filter[is_active]", "0")
		}
	}
	return q
}
