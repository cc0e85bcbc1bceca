package models

import (
	"time"

	"github.com/samber/mo"
)

// ProxyType is the protocol an egress proxy speaks.
type ProxyType string

const (
	ProxyHTTP   ProxyType = "http"
	ProxySOCKS4 ProxyType = "socks4"
	ProxySOCKS5 ProxyType = "socks5"
)

// ProxyTypes lists the supported proxy types.
var ProxyTypes = []ProxyType{ProxyHTTP, ProxySOCKS4, ProxySOCKS5}

// ProxyHealth is the derived classification shown next to a proxy.
type ProxyHealth string

const (
	ProxyUntested ProxyHealth = "untested"
	ProxyAlive    ProxyHealth = "alive"
	ProxyFailing  ProxyHealth = "failing"
	ProxyDisabled ProxyHealth = "disabled"
	ProxyDead     ProxyHealth = "dead"
)

// Proxy is one egress proxy of the crawler pool.
type Proxy struct {
	ID             int64                `json:"id"`
	Address        string               `json:"address"`
	Type           ProxyType            `json:"type"`
	Username       mo.Option[string]    `json:"username" swaggertype:"string"`
	Password       mo.Option[string]    `json:"password" swaggertype:"string"`
	IsActive       bool                 `json:"is_active"`
	LastTestedAt   mo.Option[time.Time] `json:"last_tested_at" swaggertype:"string"`
	LastTestResult mo.Option[bool]      `json:"last_test_result" swaggertype:"boolean"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// IsDead reports whether the proxy is deactivated and failed its last test.
// A proxy that was never tested is never dead.
func (p Proxy) IsDead() bool {
	result, tested := p.LastTestResult.Get()
	return !p.IsActive && tested && !result
}

// Health classifies the proxy from its activation flag and last test.
func (p Proxy) Health() ProxyHealth {
	result, tested := p.LastTestResult.Get()
	switch {
	case p.IsDead():
		return ProxyDead
	case !p.IsActive:
		return ProxyDisabled
	case !tested:
		return ProxyUntested
	case result:
		return ProxyAlive
	default:
		return ProxyFailing
	}
}

// ProxyView is a proxy with its derived health.
type ProxyView struct {
	Proxy
	Health  ProxyHealth `json:"health"`
	Testing bool        `json:"testing"`
}

// ProxyInput is the body of POST /proxies.
type ProxyInput struct {
	Address  string    `json:"address" validate:"required,hostname_port"`
	Type     ProxyType `json:"type" validate:"required,oneof=http socks4 socks5"`
	Username string    `json:"username,omitempty" validate:"omitempty,max=255"`
	Password string    `json:"password,omitempty" validate:"omitempty,max=255"`
}

// ProxyImport is the body of POST /proxies/import.
type ProxyImport struct {
	Text string    `json:"text" validate:"required"`
	Type ProxyType `json:"type" validate:"required,oneof=http socks4 socks5"`
}

// ProxyTestRequest is the body of POST /proxies/test. No ids means the whole pool.
type ProxyTestRequest struct {
	ProxyIDs []int64 `json:"proxy_ids,omitempty"`
}

// ProxyTestResult is the outcome of testing one proxy.
type ProxyTestResult struct {
	ID             int64          `json:"id"`
	Address        string         `json:"address"`
	Success        bool           `json:"success"`
	ResponseTimeMs mo.Option[int] `json:"response_time_ms" swaggertype:"integer"`
}

// ProxyStats are pool-wide counts computed by the backend.
type ProxyStats struct {
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
	Dead     int `json:"dead"`
	Total    int `json:"total"`
}

// ProxyFilter narrows the proxy listing.
type ProxyFilter struct {
	Type     ProxyType       `json:"type,omitempty"`
	IsActive mo.Option[bool] `json:"is_active" swaggertype:"boolean"`
}

// ProxyListParams is the query of GET /proxies.
type ProxyListParams struct {
	Page    int
	PerPage int
	Filter  ProxyFilter
}

// ProxyPage is a page of proxies plus the pool stats.
type ProxyPage struct {
	Page[Proxy]
	Stats mo.Option[ProxyStats]
}
