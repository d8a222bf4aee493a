package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/pkg/utils"
)

func TestCronSecret(t *testing.T) {
	cases := []struct {
		name       string
		secret     string
		header     string
		query      string
		wantStatus int
	}{
		{"header", "s3cret", "s3cret", "", fiber.StatusOK},
		{"query", "s3cret", "", "s3cret", fiber.StatusOK},
		{"wrong", "s3cret", "guess", "", fiber.StatusUnauthorized},
		{"missing", "s3cret", "", "", fiber.StatusUnauthorized},
		{"unconfigured", "", "", "", fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewAuthMiddleware(config.Config{CronSecret: tc.secret})
			app := fiber.New()
			app.Post("/cron/publish-scheduled", m.CronSecret(), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			target := "/cron/publish-scheduled"
			if tc.query != "" {
				target += "?secret=" + tc.query
			}
			req := httptest.NewRequest("POST", target, nil)
			if tc.header != "" {
				req.Header.Set("X-Cron-Secret", tc.header)
			}

			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := config.Config{SecretKey: "test-secret", CookieName: "crosspost_session"}
	m := NewAuthMiddleware(cfg)

	app := fiber.New()
	app.Get("/api/posts", m.AuthMiddleware(), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(string))
	})

	token, err := utils.GenerateToken(cfg.SecretKey, 42, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/posts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || string(body) != "42" {
		t.Fatalf("bearer: status %d body %q", resp.StatusCode, body)
	}

	req = httptest.NewRequest("GET", "/api/posts", nil)
	req.Header.Set("Cookie", cfg.CookieName+"="+token)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("cookie: status %d", resp.StatusCode)
	}

	forged, _ := utils.GenerateToken("other-secret", 42, time.Hour)
	for name, header := range map[string]string{"missing": "", "forged": "Bearer " + forged} {
		req := httptest.NewRequest("GET", "/api/posts", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("%s: app.Test: %v", name, err)
		}
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Fatalf("%s: status %d, want 401", name, resp.StatusCode)
		}
	}
}
