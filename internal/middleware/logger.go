package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/skyauthor/newsroom/internal/logger"
)

// LoggerConfig defines the config for the logger middleware
type LoggerConfig struct {
	// Next defines a function to skip middleware.
	// Optional. Default: nil
	Next func(c *fiber.Ctx) bool

	// Logger is the zerolog logger instance to use.
	// If not provided, the global logger is used.
	Logger *zerolog.Logger

	// Fields to include in the logs
	Fields []string
}

// DefaultLoggerConfig is the default config
var DefaultLoggerConfig = LoggerConfig{
	Fields: []string{"latency", "status", "method", "path", "ip", "user_agent", "request_id"},
}

// NewLogger logs one line per request. 5xx responses log at error level and
// 4xx at warn. Errors are rendered here with the app ErrorHandler. The request
// logger is attached to the user context for logger.WithContext.
func NewLogger(config ...LoggerConfig) fiber.Handler {
	cfg := DefaultLoggerConfig
	if len(config) > 0 {
		cfg = config[0]
		if len(cfg.Fields) == 0 {
			cfg.Fields = DefaultLoggerConfig.Fields
		}
	}

	fields := make(map[string]bool, len(cfg.Fields))
	for _, f := range cfg.Fields {
		fields[f] = true
	}

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}

		base := cfg.Logger
		if base == nil {
			base = logger.Get()
		}
		reqCtx := base.With()
		if id, ok := c.Locals("requestid").(string); ok && id != "" {
			reqCtx = reqCtx.Str("request_id", id)
		}
		reqLog := reqCtx.Logger()
		c.SetUserContext(reqLog.WithContext(c.UserContext()))

		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		// Render the error now so the logged status is the one sent.
		if err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		status := c.Response().StatusCode()

		var event *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			event = base.Error()
		case status >= fiber.StatusBadRequest:
			event = base.Warn()
		default:
			event = base.Info()
		}

		if fields["method"] {
			event = event.Str("method", c.Method())
		}
		if fields["path"] {
			event = event.Str("path", c.Path())
		}
		if fields["status"] {
			event = event.Int("status", status)
		}
		if fields["ip"] {
			event = event.Str("ip", c.IP())
		}
		if fields["user_agent"] {
			event = event.Str("user_agent", c.Get(fiber.HeaderUserAgent))
		}
		if fields["request_id"] {
			if id, ok := c.Locals("requestid").(string); ok {
				event = event.Str("request_id", id)
			}
		}
		if fields["latency"] {
			event = event.Dur("latency", latency)
		}
		if err != nil {
			event = event.Err(err)
		}
		event.Msg("request")

		return nil
	}
}

// RequestLogger logs the fields the API needs
func RequestLogger() fiber.Handler {
	return NewLogger(LoggerConfig{
		Fields: []string{"latency", "status", "method", "path", "ip", "request_id"},
	})
}
