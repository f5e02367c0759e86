package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/expense-assistant-go/internal/domain"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
	BackendMemory   = "memory"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Classifier (Groq, OpenAI-compatible)
	GroqAPIKey          string
	GroqAPIURL          string
	GroqModel           string
	ClassifierMaxTokens int

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CategoryCacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Storage
	StorageBackend string
	SQLiteDBPath   string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseTable      string

	// Events
	AMQPURL      string
	AMQPExchange string

	// Ledger
	Timezone              string
	CurrencySymbol        string
	QueryCategoryMatch    string
	MutationCategoryMatch string
}

var defaults = map[string]any{
	"PORT":                        8080,
	"LOG_LEVEL":                   "info",
	"GROQ_API_KEY":                "",
	"GROQ_API_URL":                "https://api.groq.com/openai/v1/chat/completions",
	"GROQ_MODEL":                  "llama-3.3-70b-versatile",
	"CLASSIFIER_MAX_TOKENS":       300,
	"HTTP_TIMEOUT":                15 * time.Second,
	"MAX_RETRIES":                 0,
	"INITIAL_BACKOFF":             200 * time.Millisecond,
	"MAX_CONCURRENCY":             50,
	"CATEGORY_CACHE_TTL":          time.Duration(0),
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"STORAGE_BACKEND":             BackendSQLite,
	"SQLITE_DB_PATH":              "./data/expenses.db",
	"SUPABASE_URL":                "",
	"SUPABASE_ANON_KEY":           "",
	"SUPABASE_SERVICE_ROLE_KEY":   "",
	"SUPABASE_TABLE":              "expenses",
	"AMQP_URL":                    "",
	"AMQP_EXCHANGE":               "expenses",
	"TIMEZONE":                    "Local",
	"CURRENCY_SYMBOL":             "₹",
	"QUERY_CATEGORY_MATCH":        string(domain.MatchContains),
	"MUTATION_CATEGORY_MATCH":     string(domain.MatchFold),
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	return &Config{
		Port:     v.GetInt("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),

		GroqAPIKey:          v.GetString("GROQ_API_KEY"),
		GroqAPIURL:          v.GetString("GROQ_API_URL"),
		GroqModel:           v.GetString("GROQ_MODEL"),
		ClassifierMaxTokens: v.GetInt("CLASSIFIER_MAX_TOKENS"),

		HTTPTimeout: v.GetDuration("HTTP_TIMEOUT"),

		MaxRetries:     v.GetInt("MAX_RETRIES"),
		InitialBackoff: v.GetDuration("INITIAL_BACKOFF"),
		MaxConcurrency: v.GetInt("MAX_CONCURRENCY"),

		CategoryCacheTTL: v.GetDuration("CATEGORY_CACHE_TTL"),

		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),

		StorageBackend: strings.ToLower(v.GetString("STORAGE_BACKEND")),
		SQLiteDBPath:   v.GetString("SQLITE_DB_PATH"),

		SupabaseURL:        v.GetString("SUPABASE_URL"),
		SupabaseAnonKey:    v.GetString("SUPABASE_ANON_KEY"),
		SupabaseServiceKey: v.GetString("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseTable:      v.GetString("SUPABASE_TABLE"),

		AMQPURL:      v.GetString("AMQP_URL"),
		AMQPExchange: v.GetString("AMQP_EXCHANGE"),

		Timezone:              v.GetString("TIMEZONE"),
		CurrencySymbol:        v.GetString("CURRENCY_SYMBOL"),
		QueryCategoryMatch:    v.GetString("QUERY_CATEGORY_MATCH"),
		MutationCategoryMatch: v.GetString("MUTATION_CATEGORY_MATCH"),
	}
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Port))
	}
	if c.GroqAPIKey == "" {
		problems = append(problems, "GROQ_API_KEY is required")
	}
	if c.MaxRetries < 0 {
		problems = append(problems, "MAX_RETRIES cannot be negative")
	}
	if c.HTTPTimeout <= 0 {
		problems = append(problems, "HTTP_TIMEOUT must be positive")
	}

	switch c.StorageBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLITE_DB_PATH cannot be empty when using sqlite backend")
		}
	case BackendSupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" || c.SupabaseServiceKey == "" {
			problems = append(problems, "SUPABASE_URL, SUPABASE_ANON_KEY and SUPABASE_SERVICE_ROLE_KEY are required for supabase backend")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("invalid storage backend '%s': must be one of [sqlite supabase memory]", c.StorageBackend))
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP_EXCHANGE cannot be empty when AMQP_URL is set")
		}
	}

	if _, err := c.Location(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := c.QueryMatch(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := c.MutationMatch(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// Location resolves TIMEZONE. "Local" and "" mean the process time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE '%s': %w", c.Timezone, err)
	}
	return loc, nil
}

// QueryMatch is the category policy used by totals.
func (c *Config) QueryMatch() (domain.MatchPolicy, error) {
	return parseMatch("QUERY_CATEGORY_MATCH", c.QueryCategoryMatch)
}

// MutationMatch is the category policy used to locate edit and delete targets.
func (c *Config) MutationMatch() (domain.MatchPolicy, error) {
	return parseMatch("MUTATION_CATEGORY_MATCH", c.MutationCategoryMatch)
}

func parseMatch(key, value string) (domain.MatchPolicy, error) {
	p, ok := domain.ParseMatchPolicy(value)
	if !ok {
		return "", fmt.Errorf("invalid %s '%s': must be one of [exact fold contains]", key, value)
	}
	return p, nil
}
