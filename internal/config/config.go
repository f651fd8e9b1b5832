package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port            string        `json:"port" validate:"required,numeric"`
	Env             string        `json:"env" validate:"oneof=development staging production test"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" validate:"gt=0"`
	HTTPTimeout     time.Duration `json:"http_timeout" validate:"gt=0"`

	// Site
	SiteURL  string `json:"site_url" validate:"required,url"`
	SiteName string `json:"site_name" validate:"required"`

	// Redis configuration; an empty URL selects the in-memory page cache
	RedisURL        string        `json:"redis_url" validate:"omitempty,url"`
	RedisPrefix     string        `json:"redis_prefix"`
	CacheTTL        time.Duration `json:"cache_ttl" validate:"gte=0"`
	ViewDedupWindow time.Duration `json:"view_dedup_window" validate:"gte=0"`

	// CloudFlare R2 mirror of feeds and sitemaps
	R2Endpoint  string `json:"r2_endpoint" validate:"omitempty,url"`
	R2AccessKey string `json:"r2_access_key"`
	R2SecretKey string `json:"r2_secret_key"`
	R2Bucket    string `json:"r2_bucket"`
	R2AccountID string `json:"r2_account_id"`
	R2Region    string `json:"r2_region"`

	// AI Configuration
	AIApiKey    string        `json:"-"`
	AIModel     string        `json:"ai_model" validate:"required"`
	AIBaseURL   string        `json:"ai_base_url" validate:"required,url"`
	AITimeout   time.Duration `json:"ai_timeout" validate:"gt=0"`
	AIMaxTokens int           `json:"ai_max_tokens" validate:"gt=0"`

	// Search engine notification
	PingEndpoints           []string      `json:"ping_endpoints" validate:"dive,url"`
	IndexingEndpoint        string        `json:"indexing_endpoint" validate:"required,url"`
	GoogleServiceAccountKey string        `json:"-"`
	NotifyTimeout           time.Duration `json:"notify_timeout" validate:"gt=0"`

	// Storage
	DatabasePath    string `json:"database_path" validate:"required"`
	SearchIndexPath string `json:"search_index_path"`
	CategoriesFile  string `json:"categories_file"`

	// Ads
	AdCode      string `json:"ad_code"`
	AdPositions []int  `json:"ad_positions" validate:"dive,gt=0"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Security
	AdminAPIKey string `json:"-"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := &Config{
		// Server configuration
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		SiteURL:  strings.TrimRight(getEnv("SITE_URL", "https://skyauthor.labs"), "/"),
		SiteName: getEnv("SITE_NAME", "SkyAuthor Labs"),

		// Redis configuration
		RedisURL:        getEnv("REDIS_URL", ""),
		RedisPrefix:     getEnv("REDIS_PREFIX", "newsroom:"),
		CacheTTL:        getEnvAsDuration("CACHE_TTL", time.Hour),
		ViewDedupWindow: getEnvAsDuration("VIEW_DEDUP_WINDOW", 0),

		// CloudFlare R2 Configuration
		R2Endpoint:  getEnv("R2_ENDPOINT", ""),
		R2AccessKey: getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:    getEnv("R2_BUCKET", ""),
		R2AccountID: getEnv("CLOUDFLARE_ACCOUNT_ID", ""),
		R2Region:    getEnv("R2_REGION", "auto"),

		// AI Configuration
		AIApiKey:    getEnv("AI_API_KEY", getEnv("GOOGLE_GEMINI_API_KEY", "")),
		AIModel:     getEnv("AI_MODEL", "gemini-2.0-flash"),
		AIBaseURL:   getEnv("AI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/models"),
		AITimeout:   getEnvAsDuration("AI_TIMEOUT", 20*time.Second),
		AIMaxTokens: getEnvAsInt("AI_MAX_TOKENS", 600),

		PingEndpoints: getEnvAsList("PING_ENDPOINTS", []string{
			"https://www.google.com/ping",
			"https://www.bing.com/ping",
		}),
		IndexingEndpoint:        getEnv("INDEXING_ENDPOINT", "https://indexing.googleapis.com/v3/urlNotifications:publish"),
		GoogleServiceAccountKey: getEnv("GOOGLE_SERVICE_ACCOUNT_KEY", ""),
		NotifyTimeout:           getEnvAsDuration("NOTIFY_TIMEOUT", 15*time.Second),

		// Storage
		DatabasePath:    getEnv("DATABASE_PATH", "./data/newsroom.db"),
		SearchIndexPath: getEnv("SEARCH_INDEX_PATH", "./data/search.bleve"),
		CategoriesFile:  getEnv("CATEGORIES_FILE", ""),

		AdCode:      getEnv("AD_CODE", ""),
		AdPositions: getEnvAsIntList("AD_POSITIONS", []int{3, 7, 12}),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		// Security
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
	}

	if path := getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""); path != "" && cfg.GoogleServiceAccountKey == "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		cfg.GoogleServiceAccountKey = string(data)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
		}
		return err
	}

	if c.R2Enabled() && (c.R2AccessKey == "" || c.R2SecretKey == "") {
		return errors.New("R2_ACCESS_KEY and R2_SECRET_ACCESS_KEY are required when R2_BUCKET is set")
	}
	return nil
}

// R2Enabled reports whether the static feed mirror is configured.
func (c *Config) R2Enabled() bool {
	return c.R2Bucket != "" && (c.R2Endpoint != "" || c.R2AccountID != "")
}

// R2EndpointURL returns the explicit endpoint or the account's default R2 endpoint.
func (c *Config) R2EndpointURL() string {
	if c.R2Endpoint != "" {
		return c.R2Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2AccountID)
}

// AIEnabled reports whether an AI credential is configured.
func (c *Config) AIEnabled() bool {
	return c.AIApiKey != ""
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsList(name string, defaultVal []string) []string {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsIntList(name string, defaultVal []int) []int {
	parts := getEnvAsList(name, nil)
	if len(parts) == 0 {
		return defaultVal
	}
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
			return defaultVal
		}
		out = append(out, n)
	}
	return out
}
