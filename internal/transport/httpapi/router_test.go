package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"

	"github.com/Leganyst/court-reservation/internal/auth"
	"github.com/Leganyst/court-reservation/internal/calendar"
	"github.com/Leganyst/court-reservation/internal/db"
	"github.com/Leganyst/court-reservation/internal/model"
	"github.com/Leganyst/court-reservation/internal/mq"
	"github.com/Leganyst/court-reservation/internal/repository"
	"github.com/Leganyst/court-reservation/internal/service"
)

// 2030-01-07: понедельник в будущем.
const testDate = "2030-01-07"

type testAPI struct {
	router *gin.Engine
	issuer *auth.Issuer
	users  *repository.GormUserRepository
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := db.NewInMemory()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := model.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	mr := miniredis.RunT(t)
	client := repository.NewRedisClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	club := calendar.NewClub(calendar.DefaultCourts)
	users := repository.NewGormUserRepository(gdb)
	manual := repository.NewManualBlockStore(client)
	pub := mq.LogPublisher{}

	booking := service.NewBookingService(club, repository.NewGormBookingRepository(gdb), users, manual,
		repository.NewPendingStore(client, time.Minute), pub, time.Second)
	admin := service.NewAdminService(club, repository.NewGormWeeklyBlockRepository(gdb), repository.NewGormSettingRepository(gdb),
		users, repository.NewGormEventRepository(gdb), manual, pub, time.Second)
	issuer := auth.NewIssuer("test-secret", time.Hour)

	return &testAPI{
		router: NewRouter(NewHandler(booking, admin, issuer)),
		issuer: issuer,
		users:  users,
	}
}

// token заводит участника с нужным статусом и выдаёт ему токен.
func (a *testAPI) token(t *testing.T, name string, admin bool) string {
	t.Helper()
	ctx := context.Background()
	u, err := a.users.Register(ctx, name, admin)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := a.users.SetStatus(ctx, u.ID, model.UserStatusApproved, nil); err != nil {
		t.Fatalf("approve: %v", err)
	}
	tok, err := a.issuer.CreateAccessToken(u.ID.String())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func TestRouter_Healthz(t *testing.T) {
	api := newTestAPI(t)
	w, _ := api.do(t, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRouter_RequiresToken(t *testing.T) {
	api := newTestAPI(t)

	w, _ := api.do(t, http.MethodGet, "/v1/days/"+testDate, "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	w, _ = api.do(t, http.MethodGet, "/v1/days/"+testDate, "garbage", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", w.Code)
	}
}

func TestRouter_RegisterWaitsForApproval(t *testing.T) {
	api := newTestAPI(t)

	w, body := api.do(t, http.MethodPost, "/v1/auth/register", "", gin.H{"name": "Paul"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	tok, _ := body["access_token"].(string)
	if tok == "" {
		t.Fatalf("expected token in %v", body)
	}

	w, body = api.do(t, http.MethodGet, "/v1/days/"+testDate, tok, nil)
	if w.Code != http.StatusForbidden || body["kind"] != "permission" {
		t.Fatalf("pending member must be refused, got %d %v", w.Code, body)
	}

	w, _ = api.do(t, http.MethodPost, "/v1/auth/register", "", gin.H{"name": "P"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("short name must fail, got %d", w.Code)
	}
}

func TestRouter_BookingFlow(t *testing.T) {
	api := newTestAPI(t)
	uta := api.token(t, "Uta", false)
	karl := api.token(t, "Karl", false)

	w, body := api.do(t, http.MethodPost, "/v1/days/"+testDate+"/press", uta, gin.H{"court": 0, "time": "09:00"})
	if w.Code != http.StatusOK {
		t.Fatalf("press: %d %s", w.Code, w.Body.String())
	}
	if body["label"] != "Mo, 07.01.2030, 09:00–09:30 (P1)" {
		t.Fatalf("unexpected label %v", body["label"])
	}

	w, _ = api.do(t, http.MethodGet, "/v1/pending", uta, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("pending: %d", w.Code)
	}

	w, body = api.do(t, http.MethodPost, "/v1/pending/confirm", uta, gin.H{"end": "10:00"})
	if w.Code != http.StatusCreated {
		t.Fatalf("confirm: %d %s", w.Code, w.Body.String())
	}
	if bs, _ := body["bookings"].([]any); len(bs) != 2 {
		t.Fatalf("expected 2 bookings, got %v", body)
	}

	w, body = api.do(t, http.MethodPost, "/v1/days/"+testDate+"/press", karl, gin.H{"court": 0, "time": "09:30"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("karl may not touch uta's booking, got %d %v", w.Code, body)
	}

	w, body = api.do(t, http.MethodGet, "/v1/me/bookings?page=1&page_size=1", uta, nil)
	if w.Code != http.StatusOK || body["total"] != float64(2) || body["has_next"] != true {
		t.Fatalf("unexpected my bookings %d %v", w.Code, body)
	}
	w, body = api.do(t, http.MethodGet, "/v1/me/stats?year=2030", uta, nil)
	if w.Code != http.StatusOK || body["bookings"] != float64(2) {
		t.Fatalf("unexpected stats %d %v", w.Code, body)
	}

	w, _ = api.do(t, http.MethodDelete, "/v1/pending", uta, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("cancel: %d", w.Code)
	}
	w, _ = api.do(t, http.MethodGet, "/v1/pending", uta, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected no pending, got %d", w.Code)
	}
}

func TestRouter_ConflictReturnsFreshDay(t *testing.T) {
	api := newTestAPI(t)
	uta := api.token(t, "Uta", false)
	karl := api.token(t, "Karl", false)
	press := "/v1/days/" + testDate + "/press"

	if w, _ := api.do(t, http.MethodPost, press, uta, gin.H{"court": 1, "time": "11:00"}); w.Code != http.StatusOK {
		t.Fatalf("uta press: %d", w.Code)
	}
	if w, _ := api.do(t, http.MethodPost, press, karl, gin.H{"court": 1, "time": "11:00"}); w.Code != http.StatusOK {
		t.Fatalf("karl press: %d", w.Code)
	}
	if w, _ := api.do(t, http.MethodPost, "/v1/pending/confirm", karl, nil); w.Code != http.StatusCreated {
		t.Fatalf("karl confirm: %d %s", w.Code, w.Body.String())
	}

	w, body := api.do(t, http.MethodPost, "/v1/pending/confirm", uta, nil)
	if w.Code != http.StatusConflict || body["kind"] != "conflict" {
		t.Fatalf("expected 409, got %d %v", w.Code, body)
	}
	if _, ok := body["day"].(map[string]any); !ok {
		t.Fatalf("conflict must carry the fresh day, got %v", body)
	}
}

func TestRouter_QuotaExceeded(t *testing.T) {
	api := newTestAPI(t)
	uta := api.token(t, "Uta", false)
	press := "/v1/days/" + testDate + "/press"

	api.do(t, http.MethodPost, press, uta, gin.H{"court": 2, "time": "08:00"})
	if w, _ := api.do(t, http.MethodPost, "/v1/pending/confirm", uta, gin.H{"end": "10:00"}); w.Code != http.StatusCreated {
		t.Fatalf("confirm: %d", w.Code)
	}

	api.do(t, http.MethodPost, press, uta, gin.H{"court": 2, "time": "15:00"})
	w, body := api.do(t, http.MethodPost, "/v1/pending/confirm", uta, gin.H{})
	if w.Code != http.StatusUnprocessableEntity || body["kind"] != "quota_exceeded" {
		t.Fatalf("expected 422, got %d %v", w.Code, body)
	}
	if q, ok := body["quota"].(map[string]any); !ok || q["booked_hours"] != float64(2) {
		t.Fatalf("expected quota details, got %v", body)
	}
}

func TestRouter_BadInput(t *testing.T) {
	api := newTestAPI(t)
	uta := api.token(t, "Uta", false)

	w, _ := api.do(t, http.MethodGet, "/v1/days/07.01.2030", uta, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad date must be 400, got %d", w.Code)
	}
	w, _ = api.do(t, http.MethodPost, "/v1/days/"+testDate+"/press", uta, gin.H{"court": 0, "time": "21:00"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("closing time is not a slot, got %d", w.Code)
	}
	w, _ = api.do(t, http.MethodPost, "/v1/days/"+testDate+"/press", uta, gin.H{"time": "09:00"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("court is required, got %d", w.Code)
	}
}

func TestRouter_Admin(t *testing.T) {
	api := newTestAPI(t)
	admin := api.token(t, "Admin", true)
	uta := api.token(t, "Uta", false)

	w, _ := api.do(t, http.MethodGet, "/v1/admin/rules", uta, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("members may not use admin routes, got %d", w.Code)
	}

	w, body := api.do(t, http.MethodPost, "/v1/admin/rules", admin, gin.H{
		"courts": []int{0, 1}, "weekday": 1, "from": "18:00", "to": "20:00", "reason": "Training",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("add rule: %d %s", w.Code, w.Body.String())
	}
	if rules, _ := body["rules"].([]any); len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %v", body)
	}

	press := "/v1/days/" + testDate + "/press"
	w, body = api.do(t, http.MethodPost, press, uta, gin.H{"court": 1, "time": "18:00"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("blocked slot must be refused, got %d %v", w.Code, body)
	}
	w, body = api.do(t, http.MethodPost, press, admin, gin.H{"court": 1, "time": "18:00"})
	if w.Code != http.StatusOK || body["notice"] != "Training" {
		t.Fatalf("admin gets a notice, got %d %v", w.Code, body)
	}

	w, body = api.do(t, http.MethodPut, "/v1/admin/quota", admin, gin.H{"max_hours": 3.2})
	if w.Code != http.StatusOK || body["max_hours"] != float64(3) {
		t.Fatalf("unexpected quota %d %v", w.Code, body)
	}
	w, body = api.do(t, http.MethodPut, "/v1/admin/quota", admin, gin.H{"delta": 0.5})
	if w.Code != http.StatusOK || body["max_hours"] != 3.5 {
		t.Fatalf("unexpected quota %d %v", w.Code, body)
	}
	w, _ = api.do(t, http.MethodPut, "/v1/admin/quota", admin, gin.H{"max_hours": 3, "delta": 0.5})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("both fields must be rejected, got %d", w.Code)
	}

	w, body = api.do(t, http.MethodPost, "/v1/admin/days/"+testDate+"/manual-blocks", admin, gin.H{"court": 2, "time": "12:00"})
	if w.Code != http.StatusOK || body["blocked"] != true {
		t.Fatalf("toggle: %d %v", w.Code, body)
	}

	w, body = api.do(t, http.MethodGet, "/v1/admin/users?status=approved", admin, nil)
	if w.Code != http.StatusOK || body["total"] != float64(2) {
		t.Fatalf("users: %d %v", w.Code, body)
	}

	w, body = api.do(t, http.MethodGet, "/v1/admin/events", admin, nil)
	if w.Code != http.StatusOK || body["total"] != float64(4) {
		t.Fatalf("events: %d %v", w.Code, body)
	}
}
