package middleware

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/skyauthor/newsroom/internal/logger"
)

// AuthConfig defines the config for the auth middleware
type AuthConfig struct {
	// Next defines a function to skip middleware.
	// Optional. Default: nil
	Next func(c *fiber.Ctx) bool

	// Validator reports whether the presented key is accepted.
	// Required.
	Validator func(key string) (bool, error)

	// ErrorHandler is executed for a missing or rejected key.
	// Optional. Default: 401 Invalid or missing API Key
	ErrorHandler fiber.ErrorHandler

	// ContextKey is the Locals key the accepted key is stored under.
	// Optional. Default: "apiKey"
	ContextKey string

	// Header carries the key, with or without a "Bearer " prefix.
	// Optional. Default: "X-API-Key"
	Header string
}

var (
	errMissingKey = errors.New("missing API key")
	errInvalidKey = errors.New("invalid API key")
)

// ConfigDefault is the default config
var ConfigDefault = AuthConfig{
	ErrorHandler: func(c *fiber.Ctx, err error) error {
		logger.Get().Warn().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Err(err).
			Msg("Authentication failed")

		status := fiber.StatusUnauthorized
		msg := "Invalid or missing API Key"
		if errors.Is(err, errInvalidKey) {
			status = fiber.StatusForbidden
			msg = "Admin access required"
		}
		return c.Status(status).JSON(fiber.Map{"error": msg})
	},
	ContextKey: "apiKey",
	Header:     "X-API-Key",
}

// NewAuth creates a new API key middleware
func NewAuth(config ...AuthConfig) fiber.Handler {
	cfg := ConfigDefault
	if len(config) > 0 {
		cfg = config[0]
		if cfg.ErrorHandler == nil {
			cfg.ErrorHandler = ConfigDefault.ErrorHandler
		}
		if cfg.ContextKey == "" {
			cfg.ContextKey = ConfigDefault.ContextKey
		}
		if cfg.Header == "" {
			cfg.Header = ConfigDefault.Header
		}
	}
	if cfg.Validator == nil {
		cfg.Validator = func(string) (bool, error) { return false, nil }
	}

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}

		token := strings.TrimSpace(strings.TrimPrefix(c.Get(cfg.Header), "Bearer "))
		if token == "" {
			return cfg.ErrorHandler(c, errMissingKey)
		}

		valid, err := cfg.Validator(token)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}
		if !valid {
			return cfg.ErrorHandler(c, errInvalidKey)
		}

		c.Locals(cfg.ContextKey, token)
		return c.Next()
	}
}

// AdminOnly accepts only requests carrying adminKey. An empty adminKey rejects
// every request so the admin API is closed unless configured.
func AdminOnly(adminKey string) fiber.Handler {
	expected := []byte(adminKey)
	return NewAuth(AuthConfig{
		Validator: func(key string) (bool, error) {
			if len(expected) == 0 {
				return false, nil
			}
			return subtle.ConstantTimeCompare([]byte(key), expected) == 1, nil
		},
	})
}
