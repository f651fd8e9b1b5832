package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/skyauthor/newsroom/internal/apperr"
)

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(RequestLogger())
	return app
}

func decode(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestAdminOnly(t *testing.T) {
	app := newApp()
	app.Get("/admin", AdminOnly("secret"), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"wrong", "nope", fiber.StatusForbidden},
		{"valid", "secret", fiber.StatusOK},
		{"bearer", "Bearer secret", fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/admin", nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestAdminOnlyWithoutKeyRejectsEverything(t *testing.T) {
	app := newApp()
	app.Get("/admin", AdminOnly(""), func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("X-API-Key", "anything")
	resp, _ := app.Test(req)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestErrorHandlerMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		msg  string
	}{
		{"validation", apperr.Invalid("key_takeaways", "add at least one key takeaway."), 400, "add at least one key takeaway."},
		{"wrapped validation", fmt.Errorf("%w: %w", apperr.ErrOptimizationFailed, apperr.Invalid("content", "add title and content first")), 400, "add title and content first"},
		{"not found", fmt.Errorf("article: %w", apperr.ErrNotFound), 404, "Not Found"},
		{"conflict", fmt.Errorf("%w: slug taken", apperr.ErrConflict), 409, "conflict: slug taken"},
		{"optimization", apperr.ErrOptimizationFailed, 502, "seo optimization failed"},
		{"fiber", fiber.NewError(fiber.StatusTeapot, "short and stout"), 418, "short and stout"},
		{"unknown", fmt.Errorf("disk on fire"), 500, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp()
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if got := decode(t, resp.Body)["error"]; got != tt.msg {
				t.Errorf("error = %v, want %q", got, tt.msg)
			}
		})
	}
}

type subscribeBody struct {
	Email string `json:"email" validate:"required,email"`
}

func TestValidateBody(t *testing.T) {
	app := newApp()
	app.Post("/", ValidateBody[subscribeBody](), func(c *fiber.Ctx) error {
		return c.SendString(Body[subscribeBody](c).Email)
	})

	post := func(body string) (int, []byte) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, data
	}

	if code, body := post(`{"email":"a@example.com"}`); code != 200 || string(body) != "a@example.com" {
		t.Errorf("valid body: %d %s", code, body)
	}

	code, body := post(`{"email":"nope"}`)
	if code != fiber.StatusUnprocessableEntity {
		t.Fatalf("invalid email status = %d", code)
	}
	fields := decode(t, bytes.NewReader(body))["fields"].(map[string]interface{})
	if fields["email"] != "email" {
		t.Errorf("fields = %v", fields)
	}

	if code, _ := post(`{`); code != fiber.StatusBadRequest {
		t.Errorf("malformed body status = %d", code)
	}
}

type pageQuery struct {
	Page int `query:"page" json:"page" validate:"gte=0"`
}

func TestValidateQuery(t *testing.T) {
	app := newApp()
	app.Get("/", ValidateQuery[pageQuery](), func(c *fiber.Ctx) error {
		return c.JSON(Body[pageQuery](c))
	})

	resp, _ := app.Test(httptest.NewRequest("GET", "/?page=3", nil))
	if resp.StatusCode != 200 || decode(t, resp.Body)["page"] != float64(3) {
		t.Errorf("valid query status = %d", resp.StatusCode)
	}
	resp, _ = app.Test(httptest.NewRequest("GET", "/?page=-1", nil))
	if resp.StatusCode != fiber.StatusUnprocessableEntity {
		t.Errorf("invalid query status = %d", resp.StatusCode)
	}
}
