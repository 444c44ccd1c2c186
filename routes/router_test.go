package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bumisarana/absensi-client/apiclient"
	"github.com/bumisarana/absensi-client/attendance"
	"github.com/bumisarana/absensi-client/auth"
	"github.com/bumisarana/absensi-client/config"
	"github.com/bumisarana/absensi-client/controllers"
	"github.com/bumisarana/absensi-client/location"
	"github.com/bumisarana/absensi-client/middleware"
	"github.com/bumisarana/absensi-client/models"
	"github.com/bumisarana/absensi-client/session"
)

// upstream simulates the remote attendance API for end-to-end gateway tests.
type upstream struct {
	mu     sync.Mutex
	record models.AttendanceRecord
}

func (u *upstream) handler() http.Handler {
	mux := http.NewServeMux()

	ok := func(w http.ResponseWriter, body map[string]any) {
		body["success"] = true
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}
	user := map[string]any{
		"kar_nik": "1234", "kar_nama": "Budi", "kar_kd_unit": "SOLO01", "nama_unit": "Kantor Solo",
	}

	mux.HandleFunc("/api/auth/generate-otp", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"message": "OTP terkirim"})
	})
	mux.HandleFunc("/api/auth/verify-otp", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Otp string `json:"otp"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Otp != "123456" {
			ok(w, map[string]any{"success": false, "message": "OTP salah"})
			return
		}
		ok(w, map[string]any{"token": "tok-xyz", "user": user})
	})
	mux.HandleFunc("/api/auth/verify-token", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"user": user})
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{})
	})
	mux.HandleFunc("/api/unit/SOLO01", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"data": []map[string]any{{
			"kd_unit": "SOLO01", "nm_unit": "Kantor Solo",
			"latitude": -7.538982, "longitude": 110.844009,
		}}})
	})
	mux.HandleFunc("/api/absensi/tambahcoba", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		if u.record.CheckInTime == "" {
			u.record.CheckInTime = "08:00:01"
		} else {
			u.record.CheckOutTime = "17:00:01"
		}
		u.mu.Unlock()
		ok(w, map[string]any{})
	})
	mux.HandleFunc("/api/absensi/hari-ini", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		rec := u.record
		u.mu.Unlock()
		if rec.CheckInTime == "" {
			ok(w, map[string]any{"data": []any{}})
			return
		}
		ok(w, map[string]any{"data": []models.AttendanceRecord{rec}})
	})
	mux.HandleFunc("/api/absensi/history", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"data": []map[string]any{{"tanggal": "2026-08-27"}}})
	})
	return mux
}

type gateway struct {
	router  http.Handler
	store   *session.MemoryStore
	cookies []*http.Cookie
}

func newGateway(t *testing.T, up *httptest.Server) *gateway {
	t.Helper()

	cfg := config.AppConfig{
		GinMode:            "test",
		AllowedOrigins:     []string{"http://localhost:8088"},
		RateLimitPerMinute: 1000,
	}
	store := session.NewMemoryStore()
	api := apiclient.New(up.URL + "/api")
	flow := auth.NewFlow(api, store, models.BrowserInfo{DeviceID: "dev-test"})
	manual := location.NewManual()
	orch := attendance.NewOrchestrator(api, flow, manual)

	secret := []byte("test-secret")
	router := SetupRouter(cfg,
		controllers.NewAuthController(flow, secret),
		controllers.NewDashboardController(orch, manual),
		secret)

	return &gateway{router: router, store: store}
}

// do performs one request against the gateway, carrying session cookies.
func (g *gateway) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body != "" {
		rd = strings.NewReader(body)
	} else {
		rd = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range g.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	g.router.ServeHTTP(w, req)
	if cs := w.Result().Cookies(); len(cs) > 0 {
		g.cookies = cs
	}
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp struct {
		Code    int            `json:"code"`
		Message string         `json:"message"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return resp.Data
}

func TestGateway_FullAttendanceDay(t *testing.T) {
	up := httptest.NewServer((&upstream{}).handler())
	defer up.Close()
	g := newGateway(t, up)

	if w := g.do(t, "GET", "/health", ""); w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}

	// Protected routes reject anonymous requests.
	if w := g.do(t, "GET", "/api/dashboard", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous dashboard = %d", w.Code)
	}

	if w := g.do(t, "POST", "/api/auth/generate-otp", `{"kar_nik":"1234"}`); w.Code != http.StatusOK {
		t.Fatalf("generate-otp = %d: %s", w.Code, w.Body.String())
	}

	// Wrong OTP is an explicit denial with the upstream message.
	w := g.do(t, "POST", "/api/auth/login", `{"kar_nik":"1234","otp":"000000"}`)
	if w.Code == http.StatusOK {
		t.Fatal("wrong OTP must not log in")
	}
	if !strings.Contains(w.Body.String(), "OTP salah") {
		t.Errorf("denial body = %s", w.Body.String())
	}

	w = g.do(t, "POST", "/api/auth/login", `{"kar_nik":"1234","otp":"123456"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", w.Code, w.Body.String())
	}
	if len(g.cookies) == 0 || g.cookies[0].Name != middleware.SessionCookie {
		t.Fatalf("login must set the session cookie, got %+v", g.cookies)
	}
	if token, _ := g.store.Token(); token != "tok-xyz" {
		t.Errorf("stored token = %q", token)
	}

	// Dashboard before any location reading: gates closed.
	data := decodeData(t, g.do(t, "GET", "/api/dashboard", ""))
	if data["has_location"] != false {
		t.Fatalf("dashboard before location = %+v", data)
	}
	if data["can_check_in"] == true {
		t.Error("check-in must stay disabled without a location")
	}

	// Check-in without a reading is a gate denial.
	if w := g.do(t, "POST", "/api/dashboard/checkin", ""); w.Code != http.StatusConflict {
		t.Fatalf("checkin without location = %d: %s", w.Code, w.Body.String())
	}

	// Browser shares its position inside the geofence.
	data = decodeData(t, g.do(t, "POST", "/api/dashboard/location", `{"latitude":-7.538982,"longitude":110.844009}`))
	if data["within_range"] != true || data["can_check_in"] != true {
		t.Fatalf("location update = %+v", data)
	}

	data = decodeData(t, g.do(t, "POST", "/api/dashboard/checkin", ""))
	if data["status"] != "checked-in" || data["can_check_out"] != true {
		t.Fatalf("after checkin = %+v", data)
	}

	// Second check-in is gated.
	if w := g.do(t, "POST", "/api/dashboard/checkin", ""); w.Code != http.StatusConflict {
		t.Fatalf("second checkin = %d", w.Code)
	}

	data = decodeData(t, g.do(t, "POST", "/api/dashboard/checkout", ""))
	if data["status"] != "completed" {
		t.Fatalf("after checkout = %+v", data)
	}

	w = g.do(t, "GET", "/api/dashboard/history", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "2026-08-27") {
		t.Fatalf("history = %d: %s", w.Code, w.Body.String())
	}

	if w := g.do(t, "POST", "/api/auth/logout", ""); w.Code != http.StatusOK {
		t.Fatalf("logout = %d: %s", w.Code, w.Body.String())
	}
	if token, _ := g.store.Token(); token != "" {
		t.Error("logout must clear the stored credential")
	}

	if w := g.do(t, "GET", "/api/no-such-route", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown api route = %d", w.Code)
	}
}

func TestGateway_OutOfRangeBlocksActions(t *testing.T) {
	up := httptest.NewServer((&upstream{}).handler())
	defer up.Close()
	g := newGateway(t, up)

	g.do(t, "POST", "/api/auth/generate-otp", `{"kar_nik":"1234"}`)
	if w := g.do(t, "POST", "/api/auth/login", `{"kar_nik":"1234","otp":"123456"}`); w.Code != http.StatusOK {
		t.Fatalf("login = %d", w.Code)
	}

	// Roughly 2 km away from the unit.
	data := decodeData(t, g.do(t, "POST", "/api/dashboard/location", `{"latitude":-7.519,"longitude":110.844009}`))
	if data["within_range"] != false {
		t.Fatalf("location update = %+v", data)
	}
	if w := g.do(t, "POST", "/api/dashboard/checkin", ""); w.Code != http.StatusConflict {
		t.Errorf("out-of-range checkin = %d", w.Code)
	}
	if w := g.do(t, "POST", "/api/dashboard/checkout", ""); w.Code != http.StatusConflict {
		t.Errorf("out-of-range checkout = %d", w.Code)
	}
}
