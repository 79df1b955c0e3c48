package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jamroom/backend/internal/logging"
	"github.com/jamroom/backend/internal/services"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuthMiddleware(t *testing.T) {
	authService := services.NewAuthService("test-secret", time.Hour)
	validToken, _ := authService.GenerateToken("u1", "alice", false)

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"invalid token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + validToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotClaims *services.Claims
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotClaims = GetClaims(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			AuthMiddleware(authService)(next).ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
			if tt.expectedStatus == http.StatusOK && (gotClaims == nil || gotClaims.UserID != "u1") {
				t.Errorf("claims = %+v, want u1", gotClaims)
			}
		})
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		claims         *services.Claims
		expectedStatus int
	}{
		{"no claims", nil, http.StatusForbidden},
		{"regular user", &services.Claims{UserID: "u2"}, http.StatusForbidden},
		{"admin", &services.Claims{UserID: "u1", IsAdmin: true}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			rr := httptest.NewRecorder()

			AdminOnlyMiddleware(okHandler).ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := BearerToken(req); err != ErrMissingAuth {
		t.Errorf("err = %v, want ErrMissingAuth", err)
	}

	req.Header.Set("Authorization", "Bearer abc")
	token, err := BearerToken(req)
	if err != nil || token != "abc" {
		t.Errorf("BearerToken() = %q, %v", token, err)
	}

	req.Header.Set("Authorization", "Bearer a b")
	if _, err := BearerToken(req); err != ErrInvalidAuthFormat {
		t.Errorf("err = %v, want ErrInvalidAuthFormat", err)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2)
	defer rl.Stop()
	handler := rl.Middleware(okHandler)

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("10.0.0.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, code)
		}
	}
	if code := send("10.0.0.1:5678"); code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", code)
	}
	if code := send("10.0.0.2:1234"); code != http.StatusOK {
		t.Errorf("other IP status = %d, want 200", code)
	}
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(10)
	defer rl.Stop()
	rl.Stop()

	rl.getVisitor("10.0.0.1")
	rl.evictIdle(time.Now().Add(visitorIdleTimeout + time.Second))

	rl.mu.Lock()
	n := len(rl.visitors)
	rl.mu.Unlock()
	if n != 0 {
		t.Errorf("visitors = %d, want 0", n)
	}
}

func TestRealIPMiddleware(t *testing.T) {
	m := NewRealIPMiddleware([]string{"10.0.0.0/8", "192.168.1.1", "bogus"})

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"untrusted peer ignores headers", "203.0.113.5:1000", map[string]string{"X-Forwarded-For": "1.2.3.4", "X-Real-IP": "6.6.6.6"}, "203.0.113.5"},
		{"trusted cidr uses xff first hop", "10.1.2.3:1000", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.1.2.3"}, "1.2.3.4"},
		{"trusted ip prefers cloudflare", "192.168.1.1:1000", map[string]string{"CF-Connecting-IP": "5.6.7.8", "X-Forwarded-For": "1.2.3.4"}, "5.6.7.8"},
		{"trusted without headers", "10.0.0.9:1000", nil, "10.0.0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = logging.ExtractClientIP(r)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			m.Handler(next).ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("client IP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware([]string{"http://localhost:5173", "http://localhost:3000"})(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q, want first configured origin", got)
	}
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"http://localhost:5173"}
	if !OriginAllowed(allowed, "") {
		t.Error("empty origin should be allowed")
	}
	if !OriginAllowed(allowed, "http://localhost:5173") {
		t.Error("configured origin should be allowed")
	}
	if OriginAllowed(allowed, "http://evil.example") {
		t.Error("foreign origin should be rejected")
	}
}

func TestRequestContextMiddleware(t *testing.T) {
	var attrs *logging.RequestAttrs
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attrs = logging.GetRequestAttrs(r.Context())
	})
	handler := RequestContextMiddleware(UpdateRequestContextMiddleware(next))

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	req.RemoteAddr = "10.0.0.1:999"
	req = req.WithContext(WithClaims(req.Context(), &services.Claims{UserID: "u1", IsAdmin: true}))

	handler.ServeHTTP(httptest.NewRecorder(), req)

	if attrs == nil {
		t.Fatal("request attrs missing")
	}
	if attrs.Method != http.MethodPost || attrs.Path != "/api/sessions" || attrs.IP != "10.0.0.1" {
		t.Errorf("attrs = %+v", attrs)
	}
	if attrs.UserID != "u1" || attrs.Role != "admin" {
		t.Errorf("auth attrs = %q/%q, want u1/admin", attrs.UserID, attrs.Role)
	}
}
