package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/labreserve/lab-reservation/internal/config"
	"github.com/labreserve/lab-reservation/internal/database"
	"github.com/labreserve/lab-reservation/internal/model"
	"github.com/labreserve/lab-reservation/internal/queue"
	"github.com/labreserve/lab-reservation/internal/repository"
	"github.com/labreserve/lab-reservation/internal/service"
)

type testServer struct {
	e        *echo.Echo
	cfg      config.Config
	accounts *service.AccountService
	admin    model.User
	profA    model.User
	profB    model.User
	lab      model.Laboratory
	slot     model.TimeSlot
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Config{
		Env:                      "test",
		JWTSecret:                "router-test-secret",
		SessionTTL:               24 * time.Hour,
		BcryptCost:               4,
		RequestTimeout:           5 * time.Second,
		CookieName:               "auth_token",
		CookieSecure:             true,
		DefaultProfessorPassword: "12345678",
		DB:                       config.DBConfig{Driver: database.DriverSQLite, Path: filepath.Join(t.TempDir(), "router.db")},
	}
	db, err := database.Open(cfg.DB)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	if err := database.Migrate(ctx, db, cfg.DB.Driver); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := zap.NewNop()
	s := &testServer{cfg: cfg}
	s.accounts = service.NewAccountService(db, cfg.BcryptCost, cfg.DefaultProfessorPassword, log)
	catalog := service.NewCatalogService(db, log)
	s.e = New(Deps{
		Cfg:      cfg,
		Log:      log,
		Sessions: service.NewSessionManager(repository.NewSessionRepo(db), cfg.JWTSecret, cfg.SessionTTL, log),
		Accounts: s.accounts,
		Catalog:  catalog,
		Engine:   service.NewBookingEngine(db, queue.NopPublisher{}, log),
	})

	mk := func(name, email, role string, first bool) model.User {
		u, _, err := s.accounts.EnsureUser(ctx, name, email, role, "secret123", first)
		if err != nil {
			t.Fatalf("ensure user: %v", err)
		}
		return u
	}
	s.admin = mk("Admin", "admin@example.com", model.RoleAdmin, false)
	s.profA = mk("Prof A", "a@example.com", model.RoleProfessor, false)
	s.profB = mk("Prof B", "b@example.com", model.RoleProfessor, false)
	if s.lab, err = catalog.CreateLaboratory(ctx, "L1"); err != nil {
		t.Fatalf("lab: %v", err)
	}
	if s.slot, err = catalog.CreateTimeSlot(ctx, "08:00", "10:00"); err != nil {
		t.Fatalf("slot: %v", err)
	}
	return s
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, rec.Code, rec.Body.String())
	}
	var out struct {
		Token string `json:"token"`
	}
	decode(t, rec, &out)
	return out.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "ok" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	expectStatus(t, s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@example.com"}), http.StatusBadRequest)
	rec := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@example.com", "password": "nope"})
	expectStatus(t, rec, http.StatusUnauthorized)
	wrongPass := rec.Body.String()
	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "nope"})
	expectStatus(t, rec, http.StatusUnauthorized)
	if rec.Body.String() != wrongPass {
		t.Fatalf("unknown email and wrong password must look alike: %q vs %q", rec.Body.String(), wrongPass)
	}

	rec = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@example.com", "password": "secret123"})
	expectStatus(t, rec, http.StatusOK)
	var out struct {
		User  map[string]any `json:"user"`
		Token string         `json:"token"`
	}
	decode(t, rec, &out)
	if out.Token == "" || out.User["email"] != "a@example.com" {
		t.Fatalf("unexpected login body: %s", rec.Body.String())
	}
	if _, leaked := out.User["passwordHash"]; leaked {
		t.Fatal("password hash must not be serialized")
	}

	var ck *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "auth_token" {
			ck = c
		}
	}
	if ck == nil {
		t.Fatal("session cookie not set")
	}
	if !ck.HttpOnly || !ck.Secure || ck.SameSite != http.SameSiteStrictMode || ck.MaxAge != 86400 || ck.Value != out.Token {
		t.Fatalf("unexpected cookie: %+v", ck)
	}

	// the cookie alone authenticates
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: ck.Value})
	me := httptest.NewRecorder()
	s.e.ServeHTTP(me, req)
	expectStatus(t, me, http.StatusOK)
}

func TestUnauthenticatedRequests(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/reservations", "/laboratories", "/users/me", "/users/sessions"} {
		rec := s.do(t, http.MethodGet, path, "", nil)
		expectStatus(t, rec, http.StatusUnauthorized)
	}
	expectStatus(t, s.do(t, http.MethodGet, "/reservations", "garbage", nil), http.StatusUnauthorized)
	expectStatus(t, s.do(t, http.MethodPost, "/auth/logout", "", nil), http.StatusUnauthorized)
}

func TestReservationScenarioOverHTTP(t *testing.T) {
	s := newTestServer(t)
	a := s.login(t, "a@example.com", "secret123")
	b := s.login(t, "b@example.com", "secret123")
	body := map[string]string{"laboratoryId": s.lab.ID, "timeSlotId": s.slot.ID, "date": "2024-06-10"}

	rec := s.do(t, http.MethodPost, "/reservations", a, body)
	expectStatus(t, rec, http.StatusCreated)
	var res model.ReservationDetail
	decode(t, rec, &res)
	if res.Status != model.ReservationActive || res.Laboratory.Name != "L1" || res.TimeSlot.Start != "08:00" || res.Professor.Email != "a@example.com" {
		t.Fatalf("unexpected reservation: %s", rec.Body.String())
	}

	expectStatus(t, s.do(t, http.MethodPost, "/reservations", b, body), http.StatusConflict)
	expectStatus(t, s.do(t, http.MethodGet, "/reservations/"+res.ID, b, nil), http.StatusForbidden)
	expectStatus(t, s.do(t, http.MethodPut, "/reservations/"+res.ID, b, map[string]string{"status": "CANCELLED"}), http.StatusForbidden)
	expectStatus(t, s.do(t, http.MethodPut, "/reservations/"+res.ID, a, map[string]string{"status": "ACTIVE"}), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodPut, "/reservations/missing", a, map[string]string{"status": "CANCELLED"}), http.StatusNotFound)

	rec = s.do(t, http.MethodPut, "/reservations/"+res.ID, a, map[string]string{"status": "CANCELLED"})
	expectStatus(t, rec, http.StatusOK)
	expectStatus(t, s.do(t, http.MethodPut, "/reservations/"+res.ID, a, map[string]string{"status": "CANCELLED"}), http.StatusBadRequest)

	expectStatus(t, s.do(t, http.MethodPost, "/reservations", b, body), http.StatusCreated)

	var list []model.ReservationDetail
	rec = s.do(t, http.MethodGet, "/reservations", b, nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &list)
	if len(list) != 1 || list[0].ProfessorID != s.profB.ID {
		t.Fatalf("B should only see their reservation: %s", rec.Body.String())
	}

	admin := s.login(t, "admin@example.com", "secret123")
	rec = s.do(t, http.MethodGet, "/reservations?date=2024-06-10", admin, nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &list)
	if len(list) != 2 {
		t.Fatalf("admin should see both reservations, got %d", len(list))
	}
	expectStatus(t, s.do(t, http.MethodGet, "/reservations?date=junk", admin, nil), http.StatusBadRequest)

	expectStatus(t, s.do(t, http.MethodDelete, "/reservations/"+res.ID, a, nil), http.StatusForbidden)
	expectStatus(t, s.do(t, http.MethodDelete, "/reservations/"+res.ID, admin, nil), http.StatusNoContent)
	expectStatus(t, s.do(t, http.MethodDelete, "/reservations/"+res.ID, admin, nil), http.StatusNotFound)
}

func TestCreateReservationErrors(t *testing.T) {
	s := newTestServer(t)
	a := s.login(t, "a@example.com", "secret123")
	admin := s.login(t, "admin@example.com", "secret123")

	expectStatus(t, s.do(t, http.MethodPost, "/reservations", a, map[string]string{"laboratoryId": s.lab.ID}), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodPost, "/reservations", a, map[string]string{
		"laboratoryId": "missing", "timeSlotId": s.slot.ID, "date": "2024-06-10",
	}), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodPost, "/reservations", a, map[string]string{
		"laboratoryId": s.lab.ID, "timeSlotId": s.slot.ID, "date": "2024-06-10", "professorId": s.profB.ID,
	}), http.StatusForbidden)

	rec := s.do(t, http.MethodPost, "/reservations", admin, map[string]string{
		"laboratoryId": s.lab.ID, "timeSlotId": s.slot.ID, "date": "2024-06-10", "professorId": s.profB.ID,
	})
	expectStatus(t, rec, http.StatusCreated)
	var res model.ReservationDetail
	decode(t, rec, &res)
	if res.ProfessorID != s.profB.ID {
		t.Fatalf("admin booking should belong to B, got %s", res.ProfessorID)
	}
}

func TestSessionRoutes(t *testing.T) {
	s := newTestServer(t)
	first := s.login(t, "a@example.com", "secret123")
	second := s.login(t, "a@example.com", "secret123")

	rec := s.do(t, http.MethodGet, "/users/sessions", second, nil)
	expectStatus(t, rec, http.StatusOK)
	var views []service.SessionView
	decode(t, rec, &views)
	if len(views) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(views))
	}
	var firstID string
	for _, v := range views {
		if !v.Current {
			firstID = v.ID
		}
	}
	if firstID == "" {
		t.Fatalf("no non-current session in %s", rec.Body.String())
	}

	bToken := s.login(t, "b@example.com", "secret123")
	expectStatus(t, s.do(t, http.MethodDelete, "/users/sessions", bToken, map[string]string{"sessionId": firstID}), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodDelete, "/users/sessions", second, map[string]string{"sessionId": firstID}), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodGet, "/users/me", first, nil), http.StatusUnauthorized)

	rec = s.do(t, http.MethodPost, "/auth/refresh-token", second, nil)
	expectStatus(t, rec, http.StatusOK)
	var renewed struct {
		Token string `json:"token"`
	}
	decode(t, rec, &renewed)
	expectStatus(t, s.do(t, http.MethodGet, "/users/me", renewed.Token, nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodGet, "/users/me", second, nil), http.StatusUnauthorized)

	rec = s.do(t, http.MethodPost, "/auth/logout-all", renewed.Token, nil)
	expectStatus(t, rec, http.StatusOK)
	if sc := rec.Header().Get("Set-Cookie"); !strings.Contains(sc, "Max-Age=0") {
		t.Fatalf("cookie should be cleared, got %q", sc)
	}
	expectStatus(t, s.do(t, http.MethodGet, "/users/me", renewed.Token, nil), http.StatusUnauthorized)
	expectStatus(t, s.do(t, http.MethodGet, "/users/me", bToken, nil), http.StatusOK)

	expectStatus(t, s.do(t, http.MethodPost, "/auth/logout", bToken, nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodGet, "/users/me", bToken, nil), http.StatusUnauthorized)
}

func TestFirstAccessGate(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@example.com", "secret123")

	rec := s.do(t, http.MethodPost, "/professors", admin, map[string]string{"name": "Prof C", "email": "c@example.com"})
	expectStatus(t, rec, http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodPost, "/professors", admin, map[string]string{"name": "Dup", "email": "c@example.com"}), http.StatusConflict)

	c := s.login(t, "c@example.com", "12345678")
	rec = s.do(t, http.MethodGet, "/reservations", c, nil)
	expectStatus(t, rec, http.StatusForbidden)
	if !strings.Contains(rec.Body.String(), "password change required") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	expectStatus(t, s.do(t, http.MethodGet, "/laboratories", c, nil), http.StatusForbidden)

	rec = s.do(t, http.MethodGet, "/users/me", c, nil)
	expectStatus(t, rec, http.StatusOK)
	var me model.User
	decode(t, rec, &me)
	if !me.FirstAccess {
		t.Fatal("new professor must have firstAccess set")
	}

	expectStatus(t, s.do(t, http.MethodPost, "/users/change-password", c, map[string]string{
		"currentPassword": "12345678", "newPassword": "abc",
	}), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodPost, "/users/change-password", c, map[string]string{
		"currentPassword": "12345678", "newPassword": strings.Repeat("x", 80),
	}), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodPost, "/users/change-password", c, map[string]string{
		"currentPassword": "12345678", "newPassword": "new-secret",
	}), http.StatusOK)

	// same token, flag re-read from storage
	expectStatus(t, s.do(t, http.MethodGet, "/reservations", c, nil), http.StatusOK)
}

func TestCatalogRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@example.com", "secret123")
	a := s.login(t, "a@example.com", "secret123")

	expectStatus(t, s.do(t, http.MethodPost, "/laboratories", a, map[string]string{"name": "L2"}), http.StatusForbidden)
	expectStatus(t, s.do(t, http.MethodPost, "/laboratories", admin, map[string]string{"name": " "}), http.StatusBadRequest)
	rec := s.do(t, http.MethodPost, "/laboratories", admin, map[string]string{"name": "L2"})
	expectStatus(t, rec, http.StatusCreated)
	var lab model.Laboratory
	decode(t, rec, &lab)

	rec = s.do(t, http.MethodPut, "/laboratories/"+lab.ID, admin, map[string]string{"name": "L2b"})
	expectStatus(t, rec, http.StatusOK)
	expectStatus(t, s.do(t, http.MethodGet, "/laboratories/"+lab.ID, a, nil), http.StatusOK)

	var labs []model.Laboratory
	rec = s.do(t, http.MethodGet, "/laboratories", a, nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &labs)
	if len(labs) != 2 {
		t.Fatalf("expected 2 labs, got %d", len(labs))
	}

	expectStatus(t, s.do(t, http.MethodPost, "/time-slots", admin, map[string]string{"start": "09:00", "end": "11:00"}), http.StatusBadRequest)
	rec = s.do(t, http.MethodPost, "/time-slots", admin, map[string]string{"start": "10:00", "end": "12:00"})
	expectStatus(t, rec, http.StatusCreated)

	// booking on the lab, then deleting the lab cancels it
	rec = s.do(t, http.MethodPost, "/reservations", a, map[string]string{"laboratoryId": lab.ID, "timeSlotId": s.slot.ID, "date": "2024-06-10"})
	expectStatus(t, rec, http.StatusCreated)
	var res model.ReservationDetail
	decode(t, rec, &res)

	expectStatus(t, s.do(t, http.MethodDelete, "/laboratories/"+lab.ID, a, nil), http.StatusForbidden)
	expectStatus(t, s.do(t, http.MethodDelete, "/laboratories/"+lab.ID, admin, nil), http.StatusNoContent)
	expectStatus(t, s.do(t, http.MethodGet, "/laboratories/"+lab.ID, a, nil), http.StatusNotFound)

	rec = s.do(t, http.MethodGet, "/reservations/"+res.ID, a, nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &res)
	if res.Status != model.ReservationCancelled {
		t.Fatalf("reservation should be cancelled, got %s", res.Status)
	}

	expectStatus(t, s.do(t, http.MethodDelete, "/time-slots/"+s.slot.ID, admin, nil), http.StatusNoContent)
	var slots []model.TimeSlot
	rec = s.do(t, http.MethodGet, "/time-slots", a, nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &slots)
	if len(slots) != 1 || slots[0].Start != "10:00" {
		t.Fatalf("unexpected slots: %s", rec.Body.String())
	}
}

func TestProfessorRoutes(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "admin@example.com", "secret123")
	a := s.login(t, "a@example.com", "secret123")

	expectStatus(t, s.do(t, http.MethodGet, "/professors", a, nil), http.StatusForbidden)
	rec := s.do(t, http.MethodGet, "/professors", admin, nil)
	expectStatus(t, rec, http.StatusOK)
	var profs []model.User
	decode(t, rec, &profs)
	if len(profs) != 2 {
		t.Fatalf("expected 2 professors, got %d", len(profs))
	}

	expectStatus(t, s.do(t, http.MethodGet, "/professors/"+s.profA.ID, a, nil), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodGet, "/professors/"+s.profB.ID, a, nil), http.StatusForbidden)

	rec = s.do(t, http.MethodPut, "/professors/"+s.profA.ID, a, map[string]string{"name": "Prof A2"})
	expectStatus(t, rec, http.StatusOK)
	var updated model.User
	decode(t, rec, &updated)
	if updated.Name != "Prof A2" || updated.Email != "a@example.com" {
		t.Fatalf("unexpected update: %s", rec.Body.String())
	}
	expectStatus(t, s.do(t, http.MethodPut, "/professors/"+s.profA.ID, admin, map[string]string{"email": "b@example.com"}), http.StatusConflict)
	expectStatus(t, s.do(t, http.MethodPut, "/professors/"+s.profA.ID, admin, map[string]string{"password": strings.Repeat("x", 80)}), http.StatusBadRequest)

	expectStatus(t, s.do(t, http.MethodPost, "/reservations", a, map[string]string{"laboratoryId": s.lab.ID, "timeSlotId": s.slot.ID, "date": "2024-06-10"}), http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodDelete, "/professors/"+s.profA.ID, a, nil), http.StatusForbidden)
	expectStatus(t, s.do(t, http.MethodDelete, "/professors/"+s.profA.ID, admin, nil), http.StatusNoContent)
	expectStatus(t, s.do(t, http.MethodGet, "/users/me", a, nil), http.StatusUnauthorized)
	expectStatus(t, s.do(t, http.MethodDelete, "/professors/"+s.profA.ID, admin, nil), http.StatusNotFound)

	rec = s.do(t, http.MethodGet, "/reservations", admin, nil)
	var list []model.ReservationDetail
	decode(t, rec, &list)
	if len(list) != 0 {
		t.Fatalf("professor reservations should be gone, got %d", len(list))
	}
}
