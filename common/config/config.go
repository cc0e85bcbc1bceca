package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

func loadEnvString(key string, result *string) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	*result = s
}

func loadEnvUint(key string, result *uint) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return
	}
	*result = uint(n)
}

func loadEnvInt(key string, result *int) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return
	}
	*result = n
}

func loadEnvBool(key string, result *bool) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return
	}
	*result = b
}

// loadEnvDuration accepts Go durations ("5s", "1m") or a bare number of seconds.
func loadEnvDuration(key string, result *time.Duration) {
	s, ok := os.LookupEnv(key)

	if !ok {
		return
	}
	if d, err := time.ParseDuration(s); err == nil {
		*result = d
		return
	}
	if n, err := strconv.Atoi(s); err == nil {
		*result = time.Duration(n) * time.Second
		return
	}
	log.Warn().Str("key", key).Str("value", s).Msg("Ignoring invalid duration")
}

/* Configuration */

/* PgSQL Configuration */
type pgSqlConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     uint   `json:"port"`
	Database string `json:"database"`
	SslMode  string `json:"ssl_mode"`
	User     string `json:"user"`
	Password string `json:"-"`
}

func (p pgSqlConfig) ConnStr() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s", p.Host, p.Port, p.User, p.Password, p.Database, p.SslMode)
}

func defaultPgSql() pgSqlConfig {
	return pgSqlConfig{
		Enabled:  false,
		Host:     "localhost",
		Port:     5432,
		Database: "database",
		User:     "",
		Password: "",
		SslMode:  "disable",
	}
}

func (p *pgSqlConfig) loadFromEnv() {
	loadEnvBool("POSTGRES_ENABLED", &p.Enabled)
	loadEnvString("POSTGRES_HOST", &p.Host)
	loadEnvUint("POSTGRES_PORT", &p.Port)
	loadEnvString("POSTGRES_DB_NAME", &p.Database)
	loadEnvString("POSTGRES_SSLMODE", &p.SslMode)
	loadEnvString("POSTGRES_USERNAME", &p.User)
	loadEnvString("POSTGRES_PASSWORD", &p.Password)
}

/* Listen Configuration */

type listenConfig struct {
	Host string `json:"host"`
	Port uint   `json:"port"`
}

func (l listenConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.Host, l.Port)
}

func defaultListenConfig() listenConfig {
	return listenConfig{
		Host: "127.0.0.1",
		Port: 8080,
	}
}

func (l *listenConfig) loadFromEnv() {
	loadEnvString("LISTEN_HOST", &l.Host)
	loadEnvUint("LISTEN_PORT", &l.Port)
}

/* Upstream crawler API */

type apiConfig struct {
	BaseURL string        `json:"base_url"`
	Token   string        `json:"-"`
	Timeout time.Duration `json:"timeout"`
}

func (a *apiConfig) loadFromEnv() {
	loadEnvString("API_BASE_URL", &a.BaseURL)
	loadEnvString("API_TOKEN", &a.Token)
	loadEnvDuration("API_TIMEOUT", &a.Timeout)
	a.BaseURL = strings.TrimRight(a.BaseURL, "/")
}

func defaultApiConfig() apiConfig {
	return apiConfig{
		BaseURL: "http://localhost:8000",
		Token:   "",
		Timeout: 30 * time.Second,
	}
}

/* Polling */

type pollingConfig struct {
	JobInterval     time.Duration `json:"job_interval"`
	ListInterval    time.Duration `json:"list_interval"`
	DefaultPageSize int           `json:"default_page_size"`
}

func (p *pollingConfig) loadFromEnv() {
	loadEnvDuration("JOB_POLL_INTERVAL", &p.JobInterval)
	loadEnvDuration("JOB_LIST_POLL_INTERVAL", &p.ListInterval)
	loadEnvInt("DEFAULT_PAGE_SIZE", &p.DefaultPageSize)
}

func defaultPollingConfig() pollingConfig {
	return pollingConfig{
		JobInterval:     5 * time.Second,
		ListInterval:    10 * time.Second,
		DefaultPageSize: 20,
	}
}

type natsConfig struct {
	Enabled          bool
	Host             string
	Port             uint
	Username         string
	Password         string
	JetStreamEnabled bool
}

func (c *natsConfig) loadFromEnv() {
	loadEnvBool("NATS_ENABLED", &c.Enabled)
	c.Host = getEnv("NATS_HOST", c.Host)
	loadEnvUint("NATS_PORT", &c.Port)
	c.Username = getEnv("NATS_USER", "")
	c.Password = getEnv("NATS_PASSWORD", "")
	loadEnvBool("NATS_JETSTREAM_ENABLED", &c.JetStreamEnabled)
}

func (c *natsConfig) URL() string {
	return fmt.Sprintf("nats://%s:%d", c.Host, c.Port)
}

func defaultNatsConfig() natsConfig {
	return natsConfig{
		Enabled:          false,
		Host:             "localhost",
		Port:             4222,
		Username:         "",
		Password:         "",
		JetStreamEnabled: true,
	}
}

type securityConfig struct {
	BackendApiKey  string
	AllowedOrigins []string
}

func (s *securityConfig) loadFromEnv() {
	s.BackendApiKey = getEnv("BACKEND_API_KEY", "")
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		s.AllowedOrigins = splitList(origins)
	}
}

func defaultSecurityConfig() securityConfig {
	return securityConfig{
		BackendApiKey:  "",
		AllowedOrigins: []string{"*"},
	}
}

type redisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     uint   `json:"port"`
	Password string `json:"-"`
	DB       int    `json:"db"`
	// SharedInflight stores in-flight markers in Redis so replicas share them.
	SharedInflight bool          `json:"shared_inflight"`
	DriverCacheTTL time.Duration `json:"driver_cache_ttl"`
}

func (r *redisConfig) loadFromEnv() {
	loadEnvBool("REDIS_ENABLED", &r.Enabled)
	loadEnvString("REDIS_HOST", &r.Host)
	loadEnvUint("REDIS_PORT", &r.Port)
	loadEnvString("REDIS_PASSWORD", &r.Password)
	loadEnvInt("REDIS_DB", &r.DB)
	loadEnvBool("REDIS_SHARED_INFLIGHT", &r.SharedInflight)
	loadEnvDuration("DRIVER_CACHE_TTL", &r.DriverCacheTTL)
	log.Info().Interface("redis", r).Msg("Redis config loaded")
}

func (r redisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func defaultRedisConfig() redisConfig {
	return redisConfig{
		Enabled:        false,
		Host:           "localhost",
		Port:           6379,
		Password:       "",
		DB:             0,
		SharedInflight: false,
		DriverCacheTTL: 10 * time.Minute,
	}
}

type logConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

func (l *logConfig) loadFromEnv() {
	loadEnvString("LOG_LEVEL", &l.Level)
	loadEnvBool("LOG_PRETTY", &l.Pretty)
}

func defaultLogConfig() logConfig {
	return logConfig{
		Level:  "info",
		Pretty: false,
	}
}

type notificationConfig struct {
	// Recent is the size of the in-memory notification ring.
	Recent  int `json:"recent"`
	Workers int `json:"workers"`
}

func (n *notificationConfig) loadFromEnv() {
	loadEnvInt("NOTIFICATION_RECENT", &n.Recent)
	loadEnvInt("NOTIFICATION_WORKERS", &n.Workers)
}

func defaultNotificationConfig() notificationConfig {
	return notificationConfig{
		Recent:  100,
		Workers: 2,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type Config struct {
	Listen       listenConfig
	Api          apiConfig
	Polling      pollingConfig
	PgSql        pgSqlConfig
	Security     securityConfig
	Nats         natsConfig
	Redis        redisConfig
	Log          logConfig
	Notification notificationConfig
}

func (c *Config) LoadFromEnv() {
	c.Listen.loadFromEnv()
	c.Api.loadFromEnv()
	c.Polling.loadFromEnv()
	c.PgSql.loadFromEnv()
	c.Security.loadFromEnv()
	c.Nats.loadFromEnv()
	c.Redis.loadFromEnv()
	c.Log.loadFromEnv()
	c.Notification.loadFromEnv()
}

// Validate reports settings the service cannot start with.
func (c Config) Validate() error {
	if c.Api.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if c.Polling.JobInterval <= 0 || c.Polling.ListInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive")
	}
	if c.Polling.DefaultPageSize <= 0 {
		return fmt.Errorf("DEFAULT_PAGE_SIZE must be positive")
	}
	return nil
}

func DefaultConfig() Config {
	return Config{
		Listen:       defaultListenConfig(),
		Api:          defaultApiConfig(),
		Polling:      defaultPollingConfig(),
		PgSql:        defaultPgSql(),
		Security:     defaultSecurityConfig(),
		Nats:         defaultNatsConfig(),
		Redis:        defaultRedisConfig(),
		Log:          defaultLogConfig(),
		Notification: defaultNotificationConfig(),
	}
}
