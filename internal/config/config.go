package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	CORSAllowedOrigins []string

	// Pricing. Basis points keep the math in integers end to end.
	TaxBps      int
	CardFeeBps  int
	TipPercents []int

	// Kiosk session lifecycle.
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	ResetDelay    time.Duration

	// Menu cache.
	MenuCacheTTL time.Duration

	// Back-office analytics.
	AnalyticsCacheTTL time.Duration
	AnalyticsRange    int

	// Request plumbing.
	IdempotencyTTL    time.Duration
	SessionRateMax    int
	SessionRateWindow time.Duration

	// Card terminal.
	TerminalBaseURL      string
	TerminalAPIKey       string
	TerminalPollInterval time.Duration
	TerminalPollAttempts int

	// Register mirror.
	POSBaseURL    string
	POSMerchantID string
	POSToken      string

	// Print agent.
	PrinterBaseURL string
	PrinterToken   string

	// Back-office auth.
	AccessTokenTTL time.Duration

	// Tenancy.
	TenantHeader  string
	RootDomain    string
	DefaultTenant string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		JWTSecret:          k.String("JWT_SECRET"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		TaxBps:      parseInt(k.String("TAX_BPS"), 700),
		CardFeeBps:  parseInt(k.String("CARD_FEE_BPS"), 300),
		TipPercents: parseIntList(k.String("TIP_PERCENTS"), []int{10, 15, 20}),

		IdleTimeout:   parseDuration(k.String("KIOSK_IDLE_TIMEOUT"), "180s"),
		SweepInterval: parseDuration(k.String("KIOSK_SWEEP_INTERVAL"), "15s"),
		ResetDelay:    parseDuration(k.String("KIOSK_RESET_DELAY"), "5s"),

		MenuCacheTTL: parseDuration(k.String("MENU_CACHE_TTL"), "60s"),

		AnalyticsCacheTTL: parseDuration(k.String("ANALYTICS_CACHE_TTL"), "5m"),
		AnalyticsRange:    parseInt(k.String("ANALYTICS_DEFAULT_RANGE_DAYS"), 30),

		IdempotencyTTL:    parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		SessionRateMax:    parseInt(k.String("SESSION_RATE_MAX"), 30),
		SessionRateWindow: parseDuration(k.String("SESSION_RATE_WINDOW"), "1m"),

		TerminalBaseURL:      k.String("TERMINAL_BASE_URL"),
		TerminalAPIKey:       k.String("TERMINAL_API_KEY"),
		TerminalPollInterval: parseDuration(k.String("TERMINAL_POLL_INTERVAL"), "1s"),
		TerminalPollAttempts: parseInt(k.String("TERMINAL_POLL_ATTEMPTS"), 120),

		POSBaseURL:    k.String("POS_BASE_URL"),
		POSMerchantID: k.String("POS_MERCHANT_ID"),
		POSToken:      k.String("POS_TOKEN"),

		PrinterBaseURL: k.String("PRINTER_BASE_URL"),
		PrinterToken:   k.String("PRINTER_TOKEN"),

		AccessTokenTTL: parseDuration(k.String("ACCESS_TOKEN_TTL"), "15m"),

		TenantHeader:  valueOrDefault(k.String("TENANT_HEADER"), "X-Tenant-ID"),
		RootDomain:    strings.TrimSpace(k.String("TENANT_ROOT_DOMAIN")),
		DefaultTenant: strings.TrimSpace(k.String("DEFAULT_TENANT")),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.TaxBps < 0 || cfg.CardFeeBps < 0 {
		return nil, errors.New("TAX_BPS and CARD_FEE_BPS must be non-negative")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return n
}

func parseIntList(value string, fallback []int) []int {
	parts := splitAndTrim(value)
	if len(parts) == 0 {
		return fallback
	}
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return fallback
		}
		out = append(out, n)
	}
	return out
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
