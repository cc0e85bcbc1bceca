// Package proxypool manages the egress proxies used by the crawler workers.
package proxypool

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/LexiconIndonesia/crawler-admin-service/common"
	"github.com/LexiconIndonesia/crawler-admin-service/common/crawlerapi"
	"github.com/LexiconIndonesia/crawler-admin-service/common/inflight"
	"github.com/LexiconIndonesia/crawler-admin-service/common/models"
	"github.com/LexiconIndonesia/crawler-admin-service/common/notify"
	"github.com/LexiconIndonesia/crawler-admin-service/common/validation"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const source = "proxy"

var (
	ErrNothingSelected = errors.New("no proxies selected")
	ErrInvalidFilter   = errors.New("invalid proxy filter")
)

// ValidationError is returned by Create and Import for incomplete input.
type ValidationError = validation.Error

// API is the part of the upstream API the manager uses.
type API interface {
	Proxies(ctx context.Context, params models.ProxyListParams) (models.ProxyPage, error)
	CreateProxy(ctx context.Context, input models.ProxyInput) (models.Proxy, error)
	DeleteProxy(ctx context.Context, id int64) error
	TestProxies(ctx context.Context, ids []int64) ([]models.ProxyTestResult, error)
	ImportProxies(ctx context.Context, input models.ProxyImport) (int, error)
	RemoveDeadProxies(ctx context.Context) (int, error)
}

// TestSummary is the outcome of a bulk test.
type TestSummary struct {
	OK      int                      `json:"ok"`
	Total   int                      `json:"total"`
	Results []models.ProxyTestResult `json:"results"`
}

// View is a snapshot of the proxy screen.
type View struct {
	Items          []models.ProxyView `json:"items"`
	Total          int                `json:"total"`
	Page           int                `json:"page"`
	PageSize       int                `json:"page_size"`
	LastPage       int                `json:"last_page"`
	Stats          models.ProxyStats  `json:"stats"`
	Filter         models.ProxyFilter `json:"filter"`
	Loading        bool               `json:"loading"`
	Testing        []int64            `json:"testing"`
	TestingAll     bool               `json:"testing_all"`
	TestingChecked bool               `json:"testing_selected"`
	RemovingDead   bool               `json:"removing_dead"`
	Creating       bool               `json:"creating"`
	Importing      bool               `json:"importing"`
	Selected       []int64            `json:"selected"`
	ProxyTypes     []models.ProxyType `json:"proxy_types"`
}

// Manager holds the proxy list and runs the pool actions.
type Manager struct {
	api      API
	notifier notify.Notifier
	validate *validation.Validator
	logger   zerolog.Logger

	testing      *inflight.Set[int64]
	testAll      inflight.Flag
	testSelected inflight.Flag
	removeDead   inflight.Flag
	creating     inflight.Flag
	importing    inflight.Flag

	mu       sync.Mutex
	items    []models.Proxy
	total    int
	stats    models.ProxyStats
	page     int
	pageSize int
	filter   models.ProxyFilter
	loading  int
	selected map[int64]struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithPageSize sets the initial page size.
func WithPageSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.pageSize = n
		}
	}
}

// WithTestClaimer shares the per-proxy test markers through c.
func WithTestClaimer(c inflight.Claimer) Option {
	return func(m *Manager) {
		m.testing = inflight.NewSet("proxy-test", inflight.WithClaimer[int64](c))
	}
}

// NewManager creates a manager on page 1 with no filters.
func NewManager(api API, notifier notify.Notifier, opts ...Option) *Manager {
	m := &Manager{
		api:      api,
		notifier: notifier,
		validate: validation.New(),
		logger:   log.With().Str("component", "proxy-manager").Logger(),
		testing:  inflight.NewSet[int64]("proxy-test"),
		page:     common.DefaultPage,
		pageSize: common.DefaultPageSize,
		selected: make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load fetches the current page. Stats from the previous load are kept when
// the response has none.
func (m *Manager) Load(ctx context.Context) error {
	m.mu.Lock()
	params := models.ProxyListParams{Page: m.page, PerPage: m.pageSize, Filter: m.filter}
	m.loading++
	m.mu.Unlock()

	res, err := m.api.Proxies(ctx, params)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading--

	if err != nil && common.Cancelled(ctx) {
		return ctx.Err()
	}
	clear(m.selected)

	if err != nil {
		m.items = nil
		m.total = 0
		m.notifier.Publish(notify.Error(source, "Failed to load proxies"))
		return fmt.Errorf("loading proxies: %w", err)
	}

	m.items = res.Items
	m.total = res.Pagination.Total
	if stats, ok := res.Stats.Get(); ok {
		m.stats = stats
	}
	return nil
}

// Search applies filter and returns to page 1.
func (m *Manager) Search(ctx context.Context, filter models.ProxyFilter) error {
	if filter.Type != "" && !slices.Contains(models.ProxyTypes, filter.Type) {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidFilter, filter.Type)
	}

	m.mu.Lock()
	m.filter = filter
	m.page = 1
	m.mu.Unlock()
	return m.Load(ctx)
}

// ResetFilters clears the filters and returns to page 1.
func (m *Manager) ResetFilters(ctx context.Context) error {
	return m.Search(ctx, models.ProxyFilter{})
}

// SetPage moves to page n, keeping the filters.
func (m *Manager) SetPage(ctx context.Context, n int) error {
	m.mu.Lock()
	m.page = max(n, 1)
	m.mu.Unlock()
	return m.Load(ctx)
}

// SetPageSize changes the page size and returns to page 1.
func (m *Manager) SetPageSize(ctx context.Context, n int) error {
	if n < 1 {
		n = common.DefaultPageSize
	}
	m.mu.Lock()
	m.pageSize = n
	m.page = 1
	m.mu.Unlock()
	return m.Load(ctx)
}

// Create adds one proxy and shows page 1.
func (m *Manager) Create(ctx context.Context, input models.ProxyInput) (models.Proxy, error) {
	input.Address = strings.TrimSpace(input.Address)
	if err := m.validate.Struct(input); err != nil {
		m.publishValidation(err)
		return models.Proxy{}, err
	}

	var created models.Proxy
	err := m.creating.Do(ctx, func(ctx context.Context) error {
		p, err := m.api.CreateProxy(ctx, input)
		if err != nil {
			if common.Cancelled(ctx) {
				return ctx.Err()
			}
			m.notifier.Publish(notify.Error(source, "Failed to add proxy", crawlerapi.FieldMessages(err)...))
			return fmt.Errorf("creating proxy: %w", err)
		}
		created = p
		return nil
	})
	if err != nil {
		return models.Proxy{}, err
	}

	m.notifier.Publish(notify.Success(source, "Proxy added", created.Address))
	m.reloadFirstPage(ctx)
	return created, nil
}

// Import sends a newline separated list of proxies. Blank lines, comments
// and duplicates are dropped before sending. It returns the number the
// backend imported.
func (m *Manager) Import(ctx context.Context, input models.ProxyImport) (int, error) {
	lines := ImportLines(input.Text)
	input.Text = strings.Join(lines, "\n")
	if input.Type == "" {
		input.Type = models.ProxyHTTP
	}
	if err := m.validate.Struct(input); err != nil {
		m.publishValidation(err)
		return 0, err
	}

	var imported int
	err := m.importing.Do(ctx, func(ctx context.Context) error {
		n, err := m.api.ImportProxies(ctx, input)
		if err != nil {
			if common.Cancelled(ctx) {
				return ctx.Err()
			}
			m.notifier.Publish(notify.Error(source, "Failed to import proxies", crawlerapi.FieldMessages(err)...))
			return fmt.Errorf("importing proxies: %w", err)
		}
		imported = min(max(n, 0), len(lines))
		return nil
	})
	if err != nil {
		return 0, err
	}

	m.notifier.Publish(notify.Success(source, fmt.Sprintf("Imported %d proxies", imported)))
	m.reloadFirstPage(ctx)
	return imported, nil
}

// ImportLines normalises bulk import text to one unique proxy per line.
func ImportLines(text string) []string {
	lines := lo.Map(strings.Split(text, "\n"), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	lines = lo.Filter(lines, func(s string, _ int) bool {
		return s != "" && !strings.HasPrefix(s, "#")
	})
	return lo.Uniq(lines)
}

// Test checks one proxy. The id is marked in flight for exactly as long as
// the request is outstanding; other proxies can be tested meanwhile.
func (m *Manager) Test(ctx context.Context, id int64) (models.ProxyTestResult, error) {
	address := m.address(id)

	var result models.ProxyTestResult
	err := m.testing.Do(ctx, id, func(ctx context.Context) error {
		results, err := m.api.TestProxies(ctx, []int64{id})
		if err != nil {
			if common.Cancelled(ctx) {
				return ctx.Err()
			}
			m.notifier.Publish(notify.Error(source, fmt.Sprintf("Failed to test proxy %s", address)))
			return fmt.Errorf("testing proxy %d: %w", id, err)
		}

		r, ok := lo.Find(results, func(r models.ProxyTestResult) bool { return r.ID == id })
		if !ok {
			result = models.ProxyTestResult{ID: id, Address: address}
			m.notifier.Publish(notify.Warning(source, fmt.Sprintf("No test result for proxy %s", address)))
			return nil
		}
		result = r

		if r.Success {
			ms := "?"
			if v, ok := r.ResponseTimeMs.Get(); ok {
				ms = fmt.Sprint(v)
			}
			m.notifier.Publish(notify.Success(source, fmt.Sprintf("Proxy %s OK (%sms)", address, ms)))
		} else {
			m.notifier.Publish(notify.Warning(source, fmt.Sprintf("Proxy %s failed the test", address)))
		}
		return nil
	})
	if err != nil {
		return models.ProxyTestResult{}, err
	}

	m.reload(ctx)
	return result, nil
}

// TestAll checks the whole pool.
func (m *Manager) TestAll(ctx context.Context) (TestSummary, error) {
	return m.testMany(ctx, &m.testAll, nil)
}

// TestSelected checks the proxies ticked on the current page.
func (m *Manager) TestSelected(ctx context.Context) (TestSummary, error) {
	ids := m.Selected()
	if len(ids) == 0 {
		return TestSummary{}, ErrNothingSelected
	}
	return m.testMany(ctx, &m.testSelected, ids)
}

func (m *Manager) testMany(ctx context.Context, flag *inflight.Flag, ids []int64) (TestSummary, error) {
	var summary TestSummary
	err := flag.Do(ctx, func(ctx context.Context) error {
		results, err := m.api.TestProxies(ctx, ids)
		if err != nil {
			if common.Cancelled(ctx) {
				return ctx.Err()
			}
			m.notifier.Publish(notify.Error(source, "Failed to test proxies"))
			return fmt.Errorf("testing proxies: %w", err)
		}
		summary = TestSummary{
			OK:      lo.CountBy(results, func(r models.ProxyTestResult) bool { return r.Success }),
			Total:   len(results),
			Results: results,
		}
		return nil
	})
	if err != nil {
		return TestSummary{}, err
	}

	m.notifier.Publish(notify.Success(source, fmt.Sprintf("Test finished: %d/%d proxies working", summary.OK, summary.Total)))
	m.reload(ctx)
	return summary, nil
}

// RemoveDead deletes every dead proxy and shows page 1. It reports 0 when
// there was nothing to remove.
func (m *Manager) RemoveDead(ctx context.Context) (int, error) {
	var removed int
	err := m.removeDead.Do(ctx, func(ctx context.Context) error {
		n, err := m.api.RemoveDeadProxies(ctx)
		if err != nil {
			if common.Cancelled(ctx) {
				return ctx.Err()
			}
			m.notifier.Publish(notify.Error(source, "Failed to remove dead proxies"))
			return fmt.Errorf("removing dead proxies: %w", err)
		}
		removed = max(n, 0)
		return nil
	})
	if err != nil {
		return 0, err
	}

	m.notifier.Publish(notify.Success(source, fmt.Sprintf("Removed %d dead proxies", removed)))
	m.reloadFirstPage(ctx)
	return removed, nil
}

// Delete removes one proxy and reloads the current page.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	address := m.address(id)
	if err := m.api.DeleteProxy(ctx, id); err != nil {
		if common.Cancelled(ctx) {
			return ctx.Err()
		}
		m.notifier.Publish(notify.Error(source, "Failed to delete proxy"))
		return fmt.Errorf("deleting proxy %d: %w", id, err)
	}

	m.notifier.Publish(notify.Success(source, fmt.Sprintf("Deleted proxy %s", address)))
	m.reload(ctx)
	return nil
}

// SetSelected ticks or unticks a proxy on the current page. The selection is
// cleared by every load.
func (m *Manager) SetSelected(id int64, selected bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !lo.ContainsBy(m.items, func(p models.Proxy) bool { return p.ID == id }) {
		return fmt.Errorf("proxy %d: %w", id, common.ErrNotFound)
	}
	if selected {
		m.selected[id] = struct{}{}
	} else {
		delete(m.selected, id)
	}
	return nil
}

// Selected returns the ticked ids in ascending order.
func (m *Manager) Selected() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := lo.Keys(m.selected)
	slices.Sort(ids)
	return ids
}

// View returns a snapshot for the proxy screen.
func (m *Manager) View() View {
	ids := m.Selected()

	m.mu.Lock()
	defer m.mu.Unlock()

	lastPage := 1
	if m.total > 0 && m.pageSize > 0 {
		lastPage = (m.total + m.pageSize - 1) / m.pageSize
	}

	return View{
		Items: lo.Map(m.items, func(p models.Proxy, _ int) models.ProxyView {
			return models.ProxyView{Proxy: p, Health: p.Health(), Testing: m.testing.Has(p.ID)}
		}),
		Total:          m.total,
		Page:           m.page,
		PageSize:       m.pageSize,
		LastPage:       lastPage,
		Stats:          m.stats,
		Filter:         m.filter,
		Loading:        m.loading > 0,
		Testing:        m.testing.IDs(),
		TestingAll:     m.testAll.Active(),
		TestingChecked: m.testSelected.Active(),
		RemovingDead:   m.removeDead.Active(),
		Creating:       m.creating.Active(),
		Importing:      m.importing.Active(),
		Selected:       ids,
		ProxyTypes:     models.ProxyTypes,
	}
}

func (m *Manager) address(id int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := lo.Find(m.items, func(p models.Proxy) bool { return p.ID == id })
	if !ok {
		return fmt.Sprintf("#%d", id)
	}
	return p.Address
}

func (m *Manager) publishValidation(err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		m.notifier.Publish(notify.Error(source, "Please fix the proxy form", verr.Messages()...))
	}
}

func (m *Manager) reloadFirstPage(ctx context.Context) {
	m.mu.Lock()
	m.page = 1
	m.mu.Unlock()
	m.reload(ctx)
}

// reload refreshes after a successful action; Load reports its own failure.
func (m *Manager) reload(ctx context.Context) {
	if err := m.Load(ctx); err != nil {
		m.logger.Debug().Err(err).Msg("Reload after action failed")
	}
}
