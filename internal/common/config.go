// Package common provides shared utilities for the portfolio digest
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bobmcallan/digest/internal/models"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the digest
type Config struct {
	Environment string                 `toml:"environment"`
	Portfolio   PortfolioConfig        `toml:"portfolio"`
	Provider    ProviderConfig         `toml:"provider"`
	FX          FXConfig               `toml:"fx"`
	Scanner     ScannerConfig          `toml:"scanner"`
	Alerts      models.AlertThresholds `toml:"alerts"`
	Clients     ClientsConfig          `toml:"clients"`
	Email       EmailConfig            `toml:"email"`
	Output      OutputConfig           `toml:"output"`
	Cache       CacheConfig            `toml:"cache"`
	Archive     ArchiveConfig          `toml:"archive"`
	Server      ServerConfig           `toml:"server"`
	Schedule    ScheduleConfig         `toml:"schedule"`
	Logging     LoggingConfig          `toml:"logging"`
}

// PortfolioConfig locates the holdings table and names its columns
type PortfolioConfig struct {
	File           string `toml:"file"`
	Sheet          string `toml:"sheet"`         // xlsx only; empty means the first sheet
	HeaderMarker   string `toml:"header_marker"` // substring identifying the header row
	SymbolColumn   string `toml:"symbol_column"`
	CostColumn     string `toml:"cost_column"`
	QuantityColumn string `toml:"quantity_column"`
	CurrencyColumn string `toml:"currency_column"` // optional
}

// ProviderConfig selects the market data provider
type ProviderConfig struct {
	Name            string   `toml:"name"` // eodhd | yahoo
	BatchSize       int      `toml:"batch_size"`
	PreferLastPrice bool     `toml:"prefer_last_price"`
	Benchmarks      []string `toml:"benchmarks"`
}

// FXConfig holds the reporting currency and hardcoded fallback rates.
// Fallback keys are pair codes, e.g. "USDILS" = 3.7 (1 USD in ILS).
type FXConfig struct {
	ReportingCurrency string             `toml:"reporting_currency"`
	Fallback          map[string]float64 `toml:"fallback"`
}

// ScannerConfig holds market scanner configuration
type ScannerConfig struct {
	Enabled             bool     `toml:"enabled"`
	Universes           []string `toml:"universes"` // "eodhd:GSPC.INDX" or "file:path/to/list.txt"
	BatchSize           int      `toml:"batch_size"`
	CapitalizationFloor float64  `toml:"capitalization_floor"`
	MovementFloor       float64  `toml:"movement_floor"`
	TopN                int      `toml:"top_n"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EODHD  EODHDConfig  `toml:"eodhd"`
	Yahoo  YahooConfig  `toml:"yahoo"`
	Gemini GeminiConfig `toml:"gemini"`
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 30*time.Second)
}

// YahooConfig holds Yahoo Finance configuration
type YahooConfig struct {
	HistoryPeriod string `toml:"history_period"` // download window for two-session batches
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *GeminiConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 60*time.Second)
}

// EmailConfig holds SMTP delivery configuration
type EmailConfig struct {
	SMTPHost      string   `toml:"smtp_host"`
	SMTPPort      int      `toml:"smtp_port"`
	Sender        string   `toml:"sender"`
	Password      string   `toml:"password"`
	Recipients    []string `toml:"recipients"`
	SubjectPrefix string   `toml:"subject_prefix"`
}

// Enabled reports whether enough is configured to send mail
func (c *EmailConfig) Enabled() bool {
	return c.SMTPHost != "" && c.Sender != "" && len(c.Recipients) > 0
}

// OutputConfig holds local file delivery configuration
type OutputConfig struct {
	Dir      string `toml:"dir"`
	Filename string `toml:"filename"` // time layout, e.g. "digest-2006-01-02.html"
}

// CacheConfig holds process-level response cache configuration
type CacheConfig struct {
	Backend       string `toml:"backend"` // memory | redis | none
	TTL           string `toml:"ttl"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	KeyPrefix     string `toml:"key_prefix"`
}

// GetTTL parses and returns the cache TTL
func (c *CacheConfig) GetTTL() time.Duration {
	return parseDuration(c.TTL, 5*time.Minute)
}

// ArchiveConfig holds the optional report archive connection
type ArchiveConfig struct {
	Backend   string `toml:"backend"` // none | surrealdb
	Address   string `toml:"address"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
}

// Enabled reports whether delivered reports are archived
func (c *ArchiveConfig) Enabled() bool {
	return c.Backend != "" && c.Backend != "none"
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Address returns host:port
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ScheduleConfig holds the serve-mode cron schedule (with seconds field)
type ScheduleConfig struct {
	Cron       string `toml:"cron"`
	RunOnStart bool   `toml:"run_on_start"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // console | json
}

// NewDefaultConfig returns a Config with sensible defaults. Narrative and
// email are disabled until keys and addresses are provided.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Portfolio: PortfolioConfig{
			File:           "portfolio.xlsx",
			HeaderMarker:   "Symbol",
			SymbolColumn:   "Symbol",
			CostColumn:     "Cost Price",
			QuantityColumn: "Quantity",
		},
		Provider: ProviderConfig{
			Name:            "yahoo",
			BatchSize:       50,
			PreferLastPrice: true,
			Benchmarks:      []string{"^GSPC", "^IXIC", "^DJI", "^TA125.TA"},
		},
		FX: FXConfig{
			ReportingCurrency: "ILS",
			Fallback:          map[string]float64{"USDILS": 3.7},
		},
		Scanner: ScannerConfig{
			Enabled:             true,
			Universes:           []string{"eodhd:GSPC.INDX", "eodhd:NDX.INDX"},
			BatchSize:           100,
			CapitalizationFloor: 100_000_000,
			MovementFloor:       5,
			TopN:                20,
		},
		Alerts: models.AlertThresholds{
			TotalDropPct: -10,
			DailyDropPct: -3,
			DailyGainPct: 3,
		},
		Clients: ClientsConfig{
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
			},
			Yahoo: YahooConfig{
				HistoryPeriod: "5d",
			},
			Gemini: GeminiConfig{
				Model:   "gemini-2.0-flash",
				Timeout: "60s",
			},
		},
		Email: EmailConfig{
			SMTPHost:      "smtp.gmail.com",
			SMTPPort:      587,
			SubjectPrefix: "Daily Portfolio Digest",
		},
		Output: OutputConfig{
			Dir:      "reports",
			Filename: "digest-2006-01-02.html",
		},
		Cache: CacheConfig{
			Backend:   "memory",
			TTL:       "5m",
			RedisAddr: "localhost:6379",
			KeyPrefix: "digest:",
		},
		Archive: ArchiveConfig{
			Backend:   "none",
			Address:   "ws://localhost:8000/rpc",
			Username:  "root",
			Password:  "root",
			Namespace: "digest",
			Database:  "reports",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Schedule: ScheduleConfig{
			Cron: "0 30 16 * * MON-FRI",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Order: defaults, TOML files (later override earlier), .env, environment.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// .env never overrides variables already set in the process environment
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DIGEST_ENV"); env != "" {
		config.Environment = env
	}

	if v := os.Getenv("DIGEST_PORTFOLIO_FILE"); v != "" {
		config.Portfolio.File = v
	}
	if v := os.Getenv("DIGEST_HEADER_MARKER"); v != "" {
		config.Portfolio.HeaderMarker = v
	}
	if v := os.Getenv("DIGEST_PROVIDER"); v != "" {
		config.Provider.Name = strings.ToLower(v)
	}
	if v := os.Getenv("DIGEST_REPORTING_CURRENCY"); v != "" {
		config.FX.ReportingCurrency = strings.ToUpper(v)
	}

	if v, ok := envFloat("DIGEST_CAPITALIZATION_FLOOR"); ok {
		config.Scanner.CapitalizationFloor = v
	}
	if v, ok := envFloat("DIGEST_MOVEMENT_FLOOR"); ok {
		config.Scanner.MovementFloor = v
	}
	if v := os.Getenv("DIGEST_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Scanner.TopN = n
		}
	}
	if v, ok := envFloat("DIGEST_ALERT_TOTAL_DROP_PCT"); ok {
		config.Alerts.TotalDropPct = v
	}
	if v, ok := envFloat("DIGEST_ALERT_DAILY_DROP_PCT"); ok {
		config.Alerts.DailyDropPct = v
	}
	if v, ok := envFloat("DIGEST_ALERT_DAILY_GAIN_PCT"); ok {
		config.Alerts.DailyGainPct = v
	}

	if v := os.Getenv("EODHD_API_KEY"); v != "" {
		config.Clients.EODHD.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Clients.Gemini.APIKey = v
	}

	if v := os.Getenv("SENDER_EMAIL"); v != "" {
		config.Email.Sender = v
	}
	if v := os.Getenv("SENDER_PASSWORD"); v != "" {
		config.Email.Password = v
	}
	if v := os.Getenv("RECIPIENT_EMAIL"); v != "" {
		config.Email.Recipients = splitList(v)
	}
	if v := os.Getenv("DIGEST_SMTP_HOST"); v != "" {
		config.Email.SMTPHost = v
	}

	if v := os.Getenv("DIGEST_OUTPUT_DIR"); v != "" {
		config.Output.Dir = v
	}
	if v := os.Getenv("DIGEST_CACHE_BACKEND"); v != "" {
		config.Cache.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("DIGEST_REDIS_ADDR"); v != "" {
		config.Cache.RedisAddr = v
	}

	if v := os.Getenv("DIGEST_ARCHIVE_BACKEND"); v != "" {
		config.Archive.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("SURREALDB_ADDRESS"); v != "" {
		config.Archive.Address = v
	}
	if v := os.Getenv("SURREALDB_USERNAME"); v != "" {
		config.Archive.Username = v
	}
	if v := os.Getenv("SURREALDB_PASSWORD"); v != "" {
		config.Archive.Password = v
	}

	if host := os.Getenv("DIGEST_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("DIGEST_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if v := os.Getenv("DIGEST_SCHEDULE"); v != "" {
		config.Schedule.Cron = v
	}

	if level := os.Getenv("DIGEST_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// Validate rejects configurations no run could succeed with
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "eodhd", "yahoo":
	default:
		return fmt.Errorf("unknown provider %q (want eodhd or yahoo)", c.Provider.Name)
	}
	if strings.TrimSpace(c.FX.ReportingCurrency) == "" {
		return fmt.Errorf("fx.reporting_currency must be set")
	}
	if c.Provider.BatchSize <= 0 || c.Scanner.BatchSize <= 0 {
		return fmt.Errorf("batch sizes must be positive")
	}
	if c.Scanner.TopN <= 0 {
		return fmt.Errorf("scanner.top_n must be positive, got %d", c.Scanner.TopN)
	}
	if c.Scanner.MovementFloor < 0 || c.Scanner.CapitalizationFloor < 0 {
		return fmt.Errorf("scanner floors must not be negative")
	}
	switch c.Cache.Backend {
	case "memory", "redis", "none", "":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Archive.Backend {
	case "none", "":
	case "surrealdb":
		if c.Archive.Address == "" || c.Archive.Namespace == "" || c.Archive.Database == "" {
			return fmt.Errorf("archive.address, namespace and database must be set for surrealdb")
		}
	default:
		return fmt.Errorf("unknown archive backend %q", c.Archive.Backend)
	}
	return nil
}

// Warnings lists optional features disabled by missing settings
func (c *Config) Warnings() []string {
	var w []string
	if c.Provider.Name == "eodhd" && c.Clients.EODHD.APIKey == "" {
		w = append(w, "clients.eodhd.api_key is empty; EODHD requests will be rejected")
	}
	if c.Scanner.Enabled && c.Clients.EODHD.APIKey == "" && hasEODHDUniverse(c.Scanner.Universes) {
		w = append(w, "EODHD universes configured without an EODHD key; those universes will be skipped")
	}
	if c.Clients.Gemini.APIKey == "" {
		w = append(w, "GEMINI_API_KEY not set; narrative sections disabled")
	}
	if !c.Email.Enabled() {
		w = append(w, "email not configured; reports are written to files only")
	}
	return w
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ResolveAPIKey resolves an API key from environment or fallback
func ResolveAPIKey(name string, fallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"eodhd_api_key":  {"EODHD_API_KEY", "DIGEST_EODHD_API_KEY"},
		"gemini_api_key": {"GEMINI_API_KEY", "DIGEST_GEMINI_API_KEY", "GOOGLE_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

func hasEODHDUniverse(universes []string) bool {
	for _, u := range universes {
		if strings.HasPrefix(u, "eodhd:") {
			return true
		}
	}
	return false
}

func envFloat(name string) (float64, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
