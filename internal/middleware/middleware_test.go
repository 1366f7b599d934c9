package middleware

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/auth"
	"github.com/adpilot/backend/internal/config"
	"github.com/adpilot/backend/internal/rbac"
	"github.com/adpilot/backend/internal/repositories"
)

type fakeMembers map[uuid.UUID]string

func (f fakeMembers) GetMemberRole(_ context.Context, _ uuid.UUID, userID uuid.UUID) (string, error) {
	role, ok := f[userID]
	if !ok {
		return "", repositories.ErrNotFound
	}
	return role, nil
}

func newProjectApp(t *testing.T, members MemberLookup, perm string) (*fiber.App, *config.Config) {
	t.Helper()
	cfg := &config.Config{JWTSecret: "test-secret"}
	app := fiber.New()
	app.Use(RequestIDMiddleware())
	app.Post("/projects/:projectId/rules",
		AuthMiddleware(cfg, zap.NewNop()),
		ProjectMiddleware(members, perm, zap.NewNop()),
		func(c *fiber.Ctx) error {
			return c.SendString(GetProjectID(c).String())
		})
	return app, cfg
}

func bearer(t *testing.T, cfg *config.Config, user uuid.UUID) string {
	t.Helper()
	token, err := auth.GenerateJWT(cfg.JWTSecret, user, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestProjectMiddleware(t *testing.T) {
	admin, viewer, stranger := uuid.New(), uuid.New(), uuid.New()
	members := fakeMembers{admin: rbac.RoleAdmin, viewer: rbac.RoleViewer}
	app, cfg := newProjectApp(t, members, rbac.PermManageRules)
	project := uuid.New()

	tests := []struct {
		name       string
		path       string
		authz      string
		wantStatus int
	}{
		{name: "admin allowed", path: "/projects/" + project.String() + "/rules", authz: bearer(t, cfg, admin), wantStatus: fiber.StatusOK},
		{name: "viewer forbidden", path: "/projects/" + project.String() + "/rules", authz: bearer(t, cfg, viewer), wantStatus: fiber.StatusForbidden},
		{name: "non member", path: "/projects/" + project.String() + "/rules", authz: bearer(t, cfg, stranger), wantStatus: fiber.StatusNotFound},
		{name: "bad project id", path: "/projects/nope/rules", authz: bearer(t, cfg, admin), wantStatus: fiber.StatusBadRequest},
		{name: "no token", path: "/projects/" + project.String() + "/rules", wantStatus: fiber.StatusUnauthorized},
		{name: "not bearer", path: "/projects/" + project.String() + "/rules", authz: "Basic abc", wantStatus: fiber.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tt.path, nil)
			if tt.authz != "" {
				req.Header.Set("Authorization", tt.authz)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	app := fiber.New()
	app.Use(RateLimitMiddleware(rdb, 2, time.Minute))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	mr.FastForward(time.Minute + time.Second)
	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestInternalKeyMiddleware(t *testing.T) {
	app := fiber.New()
	app.Post("/cb", InternalKeyMiddleware("k1"), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	locked := fiber.New()
	locked.Post("/cb", InternalKeyMiddleware(""), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	req := httptest.NewRequest("POST", "/cb", nil)
	req.Header.Set("X-Internal-Key", "k1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	req = httptest.NewRequest("POST", "/cb", nil)
	req.Header.Set("X-Internal-Key", "wrong")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("POST", "/cb", nil)
	resp, err = locked.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRequestIDMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(RequestIDMiddleware())
	app.Get("/id", func(c *fiber.Ctx) error { return c.SendString(GetRequestID(c)) })

	req := httptest.NewRequest("GET", "/id", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))

	// oversized ids are replaced
	req = httptest.NewRequest("GET", "/id", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 100))
	resp, err = app.Test(req)
	require.NoError(t, err)
	_, err = uuid.Parse(resp.Header.Get("X-Request-ID"))
	assert.NoError(t, err)
}
