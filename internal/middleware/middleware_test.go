package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/config"
	"github.com/labreserve/lab-reservation/internal/model"
	"github.com/labreserve/lab-reservation/internal/service"
)

func newContext(req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: "from-cookie"})
	req.Header.Set(echo.HeaderAuthorization, "Bearer from-header")
	c, _ := newContext(req)
	if got := TokenFromRequest(c, "auth_token"); got != "from-cookie" {
		t.Fatalf("cookie should win, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer from-header")
	c, _ = newContext(req)
	if got := TokenFromRequest(c, "auth_token"); got != "from-header" {
		t.Fatalf("expected bearer token, got %q", got)
	}

	c, _ = newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	if got := TokenFromRequest(c, "auth_token"); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(model.RoleAdmin)(okHandler)

	c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	c.Set(sessionKey, service.SessionContext{UserID: "u1", Role: model.RoleProfessor})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	c, rec = newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	c.Set(sessionKey, service.SessionContext{UserID: "u2", Role: model.RoleAdmin})
	_ = h(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	c, rec = newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	_ = h(c)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("missing session should be 403, got %d", rec.Code)
	}
}

func TestRequirePasswordChanged(t *testing.T) {
	h := RequirePasswordChanged()(okHandler)

	c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	c.Set(sessionKey, service.SessionContext{UserID: "u1", FirstAccess: true})
	_ = h(c)
	if rec.Code != http.StatusForbidden || !strings.Contains(rec.Body.String(), "password change required") {
		t.Fatalf("expected 403 password change required, got %d %s", rec.Code, rec.Body.String())
	}

	c, rec = newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	c.Set(sessionKey, service.SessionContext{UserID: "u1"})
	_ = h(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.1.2.3")
	c, _ := newContext(req)
	c.SetPath("/auth/login")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}
	if got := buildRateKey(cfg, c); got != "rl:ip:10.1.2.3" {
		t.Fatalf("ip key: %q", got)
	}
	cfg.KeyStrategy = "ip_user_route"
	if got := buildRateKey(cfg, c); got != "rl:ip:10.1.2.3:user:anon:route:POST /auth/login" {
		t.Fatalf("default key: %q", got)
	}
	c.Set(userIDKey, "u-42")
	cfg.KeyStrategy = "user"
	if got := buildRateKey(cfg, c); got != "rl:user:u-42" {
		t.Fatalf("user key: %q", got)
	}
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	log := zap.NewNop()
	limiter := NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, log)
	cache := NewCatalogCache(config.CacheConfig{Enabled: true}, nil, log)

	h := limiter(cache.Read()(cache.Invalidate()(okHandler)))
	c, rec := newContext(httptest.NewRequest(http.MethodGet, "/laboratories", nil))
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "" {
		t.Fatalf("unexpected response %d cache=%q", rec.Code, rec.Header().Get("X-Cache"))
	}
}

func TestResponseKeyDependsOnQuery(t *testing.T) {
	c1, _ := newContext(httptest.NewRequest(http.MethodGet, "/time-slots?a=1", nil))
	c2, _ := newContext(httptest.NewRequest(http.MethodGet, "/time-slots?a=2", nil))
	k1, k2 := responseKey("cache", c1), responseKey("cache", c2)
	if k1 == k2 || !strings.HasPrefix(k1, "cache:") {
		t.Fatalf("keys %q %q", k1, k2)
	}
}

func TestCaptureWriterRespectsLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("defg"))
	if rec.Body.String() != "abcdefg" {
		t.Fatalf("client must receive the full body, got %q", rec.Body.String())
	}
	if cw.buf.String() != "abc" || cw.size != 7 {
		t.Fatalf("captured %q size %d", cw.buf.String(), cw.size)
	}
}

// fakeResolver records the context each Resolve call receives.
type fakeResolver struct {
	sc       service.SessionContext
	err      error
	deadline time.Time
	hasDL    bool
}

func (f *fakeResolver) Resolve(ctx context.Context, _ string) (service.SessionContext, error) {
	f.deadline, f.hasDL = ctx.Deadline()
	return f.sc, f.err
}

func TestAuthenticateBoundsResolve(t *testing.T) {
	fr := &fakeResolver{sc: service.SessionContext{UserID: "u1", Role: model.RoleProfessor}}
	h := Authenticate(fr, "auth_token", 2*time.Second, zap.NewNop())(func(c echo.Context) error {
		sc, ok := CurrentSession(c)
		if !ok || sc.UserID != "u1" || c.Get(userIDKey) != "u1" {
			t.Errorf("session not stored: %+v", sc)
		}
		return c.NoContent(http.StatusOK)
	})

	c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
	start := time.Now()
	_ = h(c)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !fr.hasDL || fr.deadline.After(start.Add(2*time.Second+time.Second)) {
		t.Fatalf("resolve must run under the request timeout, deadline=%v set=%v", fr.deadline, fr.hasDL)
	}
}

func TestAuthenticateErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrUnauthenticated, http.StatusUnauthorized},
		{&service.Error{Kind: service.KindUnavailable, Message: "service unavailable", Err: errors.New("db down")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := Authenticate(&fakeResolver{err: tc.err}, "auth_token", time.Second, zap.NewNop())(okHandler)
		c, rec := newContext(httptest.NewRequest(http.MethodGet, "/", nil))
		_ = h(c)
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestTokenBucketFailsOpenOnSlowRedis(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	// accept connections and never answer
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	rdb := redis.NewClient(&redis.Options{
		Addr:                  ln.Addr().String(),
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		MaxRetries:            -1,
		ContextTimeoutEnabled: true,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl", Timeout: 100 * time.Millisecond}
	h := NewTokenBucket(cfg, rdb, zap.NewNop())(okHandler)

	c, rec := newContext(httptest.NewRequest(http.MethodGet, "/reservations", nil))
	start := time.Now()
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("bucket check was not bounded by its timeout: %v", elapsed)
	}
}
