package common

import "time"

const (
	// AppName is the name of the application
	AppName = "crawler-admin-service"

	// CrawlerAPIPrefix is the path prefix of the crawler admin endpoints on the upstream API
	CrawlerAPIPrefix = "/api/admin/crawler"

	// LoginPath is excluded from the unauthorized hook
	LoginPath = "/api/admin/auth/login"
)

// Redis keys
const (
	DriverCacheKey     = "crawler:admin:drivers"
	InflightKeyPrefix  = "crawler:admin:inflight:"
	DefaultDriverTTL   = 10 * time.Minute
	DefaultInflightTTL = 2 * time.Minute
)

// NATS subjects and streams
const (
	NotificationStream        = "CRAWLER_ADMIN"
	NotificationSubjectPrefix = "crawler.admin.notifications"
)

// Default paging
const (
	DefaultPage     = 1
	DefaultPageSize = 20
)
