package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

func TestAdminAllowList(t *testing.T) {
	list := NewAdminAllowList([]int64{30, 10, 30, 20})
	if !list.IsAdmin(10) || list.IsAdmin(11) {
		t.Fatalf("unexpected membership")
	}
	ids := list.AdminIDs()
	if len(ids) != 3 || ids[0] != 10 || ids[2] != 30 {
		t.Fatalf("ids: %v", ids)
	}
	err := list.Authorize(11)
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != apperrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	var empty *AdminAllowList
	if empty.IsAdmin(10) || len(empty.AdminIDs()) != 0 {
		t.Fatalf("nil list must deny everyone")
	}
}

func TestTokenManager_RoundTripAndExpiry(t *testing.T) {
	tm := NewTokenManager("secret", 10)
	base := time.Date(2025, time.May, 1, 12, 0, 0, 0, time.UTC)
	tm.now = func() time.Time { return base }

	token, expiresAt, err := tm.GenerateToken(42)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if !expiresAt.Equal(base.Add(10 * time.Minute)) {
		t.Fatalf("expiresAt: %v", expiresAt)
	}
	claims, err := tm.ParseToken(token)
	if err != nil || claims.AdminID != 42 || claims.Subject != "42" {
		t.Fatalf("ParseToken: %+v %v", claims, err)
	}

	tm.now = func() time.Time { return base.Add(11 * time.Minute) }
	if _, err := tm.ParseToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}

	other := NewTokenManager("another", 10)
	other.now = func() time.Time { return base }
	if _, err := other.ParseToken(token); err == nil {
		t.Fatalf("expected signature mismatch")
	}
}

func newProtectedApp(tm *TokenManager, admins *AdminAllowList) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	mw := NewAdminMiddleware(tm, admins)
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.JSON(fiber.Map{"admin_id": principal.AdminID})
	})
	return app
}

func TestAdminMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 10)
	app := newProtectedApp(tm, NewAdminAllowList([]int64{7}))

	admin, _, err := tm.GenerateToken(7)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	revoked, _, err := tm.GenerateToken(8)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", header: "", status: http.StatusUnauthorized},
		{name: "malformed", header: "Token abc", status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer abc", status: http.StatusUnauthorized},
		{name: "not on allow list", header: "Bearer " + revoked, status: http.StatusForbidden},
		{name: "ok", header: "Bearer " + admin, status: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tc.status {
				t.Fatalf("status %d, want %d", resp.StatusCode, tc.status)
			}
		})
	}
}
