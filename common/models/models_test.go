package models

import (
	"encoding/json"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusDispatch(t *testing.T) {
	tests := []struct {
		status      JobStatus
		terminal    bool
		active      bool
		retryable   bool
		cancellable bool
		severity    Severity
	}{
		{JobStatusPending, false, true, false, true, ""},
		{JobStatusRunning, false, true, false, true, ""},
		{JobStatusCompleted, true, false, false, false, SeveritySuccess},
		{JobStatusFailed, true, false, true, false, SeverityError},
		{JobStatusPartial, true, false, true, false, SeverityWarning},
		{JobStatusCancelled, true, false, false, false, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.True(t, tt.status.Known())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, tt.active, tt.status.IsActive())
			assert.Equal(t, tt.retryable, tt.status.Retryable())
			assert.Equal(t, tt.cancellable, tt.status.Cancellable())

			outcome, ok := tt.status.Outcome()
			assert.Equal(t, tt.terminal, ok)
			assert.Equal(t, tt.severity, outcome.Severity)
			if ok {
				assert.NotEmpty(t, outcome.Message)
			}
		})
	}
}

func TestEveryStatusHasALabel(t *testing.T) {
	for _, s := range AllJobStatuses {
		assert.NotEqual(t, string(s), s.Label(), "status %s falls through to the unknown case", s)
	}
	assert.Len(t, StatusOptions(), len(AllJobStatuses))
}

func TestUnknownStatus(t *testing.T) {
	s := JobStatus("paused")
	assert.False(t, s.Known())
	assert.False(t, s.IsTerminal())
	assert.False(t, s.IsActive())
	assert.False(t, s.Cancellable())

	_, err := ParseJobStatus("paused")
	assert.Error(t, err)

	got, err := ParseJobStatus("running")
	require.NoError(t, err)
	assert.Equal(t, JobStatusRunning, got)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   mo.Option[int]
		want string
	}{
		{mo.None[int](), "-"},
		{mo.Some(0), "-"},
		{mo.Some(42), "42s"},
		{mo.Some(60), "1m 0s"},
		{mo.Some(125), "2m 5s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.in))
	}
}

func TestMangaLabel(t *testing.T) {
	tests := []struct {
		name string
		job  CrawlJob
		want string
	}{
		{
			name: "manga name wins",
			job:  CrawlJob{MangaName: mo.Some("One Piece"), MangaURL: mo.Some("https://example.com/x")},
			want: "One Piece",
		},
		{
			name: "short url path",
			job:  CrawlJob{MangaURL: mo.Some("https://example.com/manga/abc")},
			want: "/manga/abc",
		},
		{
			name: "long url path keeps the tail",
			job:  CrawlJob{MangaURL: mo.Some("https://example.com/manga/a-very-long-series-name-chapter-list")},
			want: "...ng-series-name-chapter-list",
		},
		{
			name: "unparsable url is cut from the front",
			job:  CrawlJob{MangaURL: mo.Some("not a url but a rather long piece of text")},
			want: "not a url but a rather long...",
		},
		{
			name: "page range",
			job:  CrawlJob{StartPage: mo.Some(1), EndPage: mo.Some(5)},
			want: "Pages 1-5",
		},
		{
			name: "open page range",
			job:  CrawlJob{},
			want: "Pages 1-?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MangaLabel(tt.job)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len([]rune(got)), 30)
		})
	}
}

func TestProxyIsDead(t *testing.T) {
	tests := []struct {
		name   string
		proxy  Proxy
		dead   bool
		health ProxyHealth
	}{
		{"never tested and inactive", Proxy{IsActive: false}, false, ProxyDisabled},
		{"never tested and active", Proxy{IsActive: true}, false, ProxyUntested},
		{"inactive and failed", Proxy{IsActive: false, LastTestResult: mo.Some(false)}, true, ProxyDead},
		{"inactive but passed", Proxy{IsActive: false, LastTestResult: mo.Some(true)}, false, ProxyDisabled},
		{"active and failed", Proxy{IsActive: true, LastTestResult: mo.Some(false)}, false, ProxyFailing},
		{"active and passed", Proxy{IsActive: true, LastTestResult: mo.Some(true)}, false, ProxyAlive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.dead, tt.proxy.IsDead())
			assert.Equal(t, tt.health, tt.proxy.Health())
		})
	}
}

func TestCrawlJobDecodesMissingFieldsAsNone(t *testing.T) {
	raw := `{"id":"0190c4a5-0000-7000-8000-000000000001","source_driver":"mangadex","status":"running",
		"storage_type":"public","start_page":1,"end_page":5,"total_chapters":10,"crawled_chapters":4}`

	var job CrawlJob
	require.NoError(t, json.Unmarshal([]byte(raw), &job))

	assert.Equal(t, JobStatusRunning, job.Status)
	assert.False(t, job.MangaName.IsPresent())
	assert.Equal(t, 5, job.EndPage.OrEmpty())
	assert.Equal(t, 40, job.Progress())
	assert.Equal(t, "Pages 1-5", job.View().Label)
	assert.True(t, job.View().Cancellable)
}
