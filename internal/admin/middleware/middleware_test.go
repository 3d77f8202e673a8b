package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/block-inventory/pkg/config"
)

func testValidator() KeyValidator {
	return apikey.NewStatic([]config.StaticKey{
		{Name: "admin", Key: "admin-key", Capabilities: []string{"manage_options"}, RateLimit: 2},
		{Name: "viewer", Key: "viewer-key"},
	})
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
})

func protected() http.Handler {
	return Auth(testValidator())(RequireCapability("manage_options")(okHandler))
}

func TestAuthKeySources(t *testing.T) {
	h := protected()
	for name, mutate := range map[string]func(*http.Request){
		"bearer": func(r *http.Request) { r.Header.Set("Authorization", "Bearer admin-key") },
		"header": func(r *http.Request) { r.Header.Set("X-API-Key", "admin-key") },
		"query":  func(r *http.Request) { r.URL.RawQuery = "api_key=admin-key" },
	} {
		req := httptest.NewRequest(http.MethodGet, "/admin/kitchen-sink", nil)
		mutate(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", name, rec.Code)
		}
	}
}

func TestAuthRejectsJSON(t *testing.T) {
	h := protected()
	tests := []struct {
		key  string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"wrong", http.StatusUnauthorized},
		{"viewer-key", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/admin/kitchen-sink", nil)
		if tt.key != "" {
			req.Header.Set("X-API-Key", tt.key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("key %q: expected %d, got %d", tt.key, tt.want, rec.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["error"] == "" {
			t.Errorf("key %q: expected JSON error, got %v", tt.key, err)
		}
	}
}

func TestAuthRejectsAJAXWithEnvelope(t *testing.T) {
	h := protected()
	for _, key := range []string{"", "wrong", "viewer-key"} {
		req := httptest.NewRequest(http.MethodPost, AJAXPrefix+"load-blocks-chunk", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("key %q: expected 200, got %d", key, rec.Code)
		}
		var body struct {
			Success bool              `json:"success"`
			Data    map[string]string `json:"data"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Success || body.Data["message"] != UnauthorizedMessage {
			t.Errorf("key %q: unexpected body %+v", key, body)
		}
	}
}

func TestPublicRoutesSkipAuth(t *testing.T) {
	h := protected()
	for _, path := range []string{"/health", "/health/ready", "/pages/12"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.New(time.Minute)
	defer limiter.Close()
	h := Auth(testValidator())(RateLimit(limiter, 60)(okHandler))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/admin/nonces", nil)
		req.Header.Set("X-API-Key", "admin-key")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "60" {
			t.Error("expected Retry-After header")
		}
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected codes %v", codes)
	}
}

func TestCORS(t *testing.T) {
	h := CORS(DefaultCORSConfig([]string{"https://admin.example"}))(okHandler)

	req := httptest.NewRequest(http.MethodOptions, "/admin/nonces", nil)
	req.Header.Set("Origin", "https://admin.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "https://admin.example" {
		t.Errorf("unexpected preflight %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/nonces", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unlisted origin must not be allowed")
	}
}
