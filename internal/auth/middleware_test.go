package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestMiddleware(t *testing.T) {
	a, err := New(Options{Secret: testSecret, Issuer: "callctl"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	var seen *Claims
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	valid := signToken(t, jwt.MapClaims{
		"sub":       "u1",
		"email":     "sup@example.com",
		"iss":       "callctl",
		"exp":       time.Now().Add(time.Hour).Unix(),
		"extension": "900",
		"realm_access": map[string]interface{}{
			"roles": []interface{}{"agent", "supervisor"},
		},
	})
	expired := signToken(t, jwt.MapClaims{"iss": "callctl", "exp": time.Now().Add(-time.Hour).Unix()})
	wrongIssuer := signToken(t, jwt.MapClaims{"iss": "other", "exp": time.Now().Add(time.Hour).Unix()})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"health skips auth", "/health", "", http.StatusOK},
		{"missing token", "/api/queues", "", http.StatusUnauthorized},
		{"valid token", "/api/queues", "Bearer " + valid, http.StatusOK},
		{"expired token", "/api/queues", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong issuer", "/api/queues", "Bearer " + wrongIssuer, http.StatusUnauthorized},
		{"garbage", "/api/queues", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/ws?token="+valid, nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen == nil || seen.Role != RoleSupervisor || seen.Extension != "900" {
		t.Errorf("unexpected claims %+v", seen)
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name    string
		role    string
		handler http.Handler
		want    int
	}{
		{"agent blocked from supervisor route", RoleAgent, RequireSupervisor(ok), http.StatusForbidden},
		{"supervisor allowed", RoleSupervisor, RequireSupervisor(ok), http.StatusOK},
		{"admin allowed on supervisor route", RoleAdmin, RequireSupervisor(ok), http.StatusOK},
		{"supervisor blocked from admin route", RoleSupervisor, RequireAdmin(ok), http.StatusForbidden},
		{"no user", "", RequireAdmin(ok), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.role != "" {
				req = req.WithContext(WithUser(req.Context(), &Claims{Role: tt.role}))
			}
			rr := httptest.NewRecorder()
			tt.handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestCanActFor(t *testing.T) {
	agent := &Claims{Role: RoleAgent, Extension: "101"}
	if !agent.CanActFor("101") || agent.CanActFor("102") {
		t.Error("agent should only act for own extension")
	}
	sup := &Claims{Role: RoleSupervisor}
	if !sup.CanActFor("102") {
		t.Error("supervisor should act for anyone")
	}
	viewer := &Claims{Role: RoleViewer, Extension: "101"}
	if viewer.CanActFor("101") {
		t.Error("viewer should not act")
	}
}

func TestNewRequiresVerification(t *testing.T) {
	if _, err := New(Options{}, zerolog.Nop()); err == nil {
		t.Error("expected error without JWKS, secret or disabled flag")
	}
}
