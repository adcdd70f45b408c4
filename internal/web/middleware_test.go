package web

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dirctl/ldapdm/internal/authz"
	"github.com/dirctl/ldapdm/internal/config"
)

func newMiddlewareTestApp(cfg *config.Config, tokenAuth *authz.TokenAuthenticator) *App {
	a := &App{
		cfg:         cfg,
		tokenAuth:   tokenAuth,
		rateLimiter: NewRateLimiter(DefaultRateLimiterConfig()),
		fiber:       fiber.New(fiber.Config{ErrorHandler: handle500}),
	}

	a.fiber.Get("/protected", a.requireAuth(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	return a
}

func TestRequireAuthRejectsMissingCredentials(t *testing.T) {
	a := newMiddlewareTestApp(&config.Config{}, nil)
	defer a.rateLimiter.Stop()

	resp, err := a.fiber.Test(httptest.NewRequest(fiber.MethodGet, "/protected", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRequireAuthAcceptsTrustedHeader(t *testing.T) {
	a := newMiddlewareTestApp(&config.Config{AuthHeader: "X-Remote-User"}, nil)
	defer a.rateLimiter.Stop()

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set("X-Remote-User", "alice")

	resp, err := a.fiber.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRequireAuthAcceptsBearerToken(t *testing.T) {
	tokenAuth := authz.NewTokenAuthenticator(map[string]string{"bob": "secret-token"})
	a := newMiddlewareTestApp(&config.Config{}, tokenAuth)
	defer a.rateLimiter.Stop()

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer secret-token")

	resp, err := a.fiber.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRequireAuthBlocksAfterRepeatedFailures(t *testing.T) {
	cfg := &config.Config{AuthHeader: "X-Remote-User"}
	a := &App{
		cfg: cfg,
		rateLimiter: NewRateLimiter(RateLimiterConfig{
			MaxAttempts:  2,
			WindowPeriod: time.Minute,
			BlockPeriod:  time.Minute,
			CleanupEvery: time.Hour,
		}),
		fiber: fiber.New(fiber.Config{ErrorHandler: handle500}),
	}
	defer a.rateLimiter.Stop()

	a.fiber.Get("/protected", a.requireAuth(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 2; i++ {
		resp, err := a.fiber.Test(httptest.NewRequest(fiber.MethodGet, "/protected", nil))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}

		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Fatalf("expected 401 on attempt %d, got %d", i, resp.StatusCode)
		}
	}

	resp, err := a.fiber.Test(httptest.NewRequest(fiber.MethodGet, "/protected", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403 once blocked, got %d", resp.StatusCode)
	}
}
