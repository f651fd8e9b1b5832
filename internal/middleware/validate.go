package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/skyauthor/newsroom/internal/apperr"
	"github.com/skyauthor/newsroom/internal/logger"
)

const validatedKey = "validated"

// Validator is a struct that holds the validator instance
type Validator struct {
	validate *validator.Validate
}

// NewValidator reports fields by their JSON names.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v}
}

// Validate validates s against its struct tags
func (v *Validator) Validate(s interface{}) error {
	return v.validate.Struct(s)
}

var shared = NewValidator()

// ValidateBody parses the request body into a fresh T, validates it and stores
// it for the handler. Handlers read it back with Body. An empty body validates
// the zero T.
func ValidateBody[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := new(T)
		if len(c.Body()) > 0 {
			if err := c.BodyParser(body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
			}
		}
		if err := shared.Validate(body); err != nil {
			return err
		}

		c.Locals(validatedKey, body)
		return c.Next()
	}
}

// ValidateQuery does for query parameters what ValidateBody does for the body.
func ValidateQuery[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		params := new(T)
		if err := c.QueryParser(params); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid query parameters: "+err.Error())
		}
		if err := shared.Validate(params); err != nil {
			return err
		}

		c.Locals(validatedKey, params)
		return c.Next()
	}
}

// Body returns the value stored by ValidateBody or ValidateQuery.
func Body[T any](c *fiber.Ctx) *T {
	if v, ok := c.Locals(validatedKey).(*T); ok {
		return v
	}
	return new(T)
}

// ErrorHandler maps errors to status codes and a JSON body
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	body := fiber.Map{}

	var (
		fe  *fiber.Error
		ve  apperr.ValidationError
		vse validator.ValidationErrors
	)
	switch {
	case errors.As(err, &vse):
		code = fiber.StatusUnprocessableEntity
		fields := make(map[string]string, len(vse))
		for _, f := range vse {
			fields[f.Field()] = f.Tag()
		}
		body["error"] = "Validation failed"
		body["fields"] = fields
	case errors.As(err, &ve):
		code = fiber.StatusBadRequest
		body["error"] = ve.Error()
		body["fields"] = ve.Items
	case errors.Is(err, apperr.ErrInvalidInput):
		code = fiber.StatusBadRequest
		body["error"] = err.Error()
	case errors.Is(err, apperr.ErrNotFound):
		code = fiber.StatusNotFound
		body["error"] = http.StatusText(code)
	case errors.Is(err, apperr.ErrConflict):
		code = fiber.StatusConflict
		body["error"] = err.Error()
	case errors.Is(err, apperr.ErrOptimizationFailed):
		code = fiber.StatusBadGateway
		body["error"] = err.Error()
	case errors.As(err, &fe):
		code = fe.Code
		body["error"] = fe.Message
	default:
		body["error"] = http.StatusText(code)
	}

	if code >= fiber.StatusInternalServerError {
		logger.WithContext(c.UserContext()).Error().
			Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", code).
			Msg("HTTP error")
	}

	return c.Status(code).JSON(body)
}
