package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type mockMetrics struct {
	failures []string
}

func (m *mockMetrics) RecordAuthFailure(ctx context.Context, reason string) {
	m.failures = append(m.failures, reason)
}

type mockStatusChecker struct {
	approved bool
	err      error
}

func (m mockStatusChecker) IsApproved(ctx context.Context, userID string) (bool, error) {
	return m.approved, m.err
}

func issueTestToken(t *testing.T, cfg Config, role string) string {
	t.Helper()
	tok, _, err := NewIssuer(cfg).Issue("user-123", role)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

func principalEcho(t *testing.T, called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		pr, ok := FromContext(r.Context())
		if !ok {
			t.Error("Expected principal in context, got none")
			return
		}
		if pr.UserID != "user-123" {
			t.Errorf("Expected UserID 'user-123', got '%s'", pr.UserID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

// TestMiddleware_BearerToken tests that a valid bearer token allows the request to proceed
func TestMiddleware_BearerToken(t *testing.T) {
	cfg := testConfig(t)
	called := false
	handler := Middleware(NewVerifier(cfg))(principalEcho(t, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/beds", nil)
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, cfg, RoleNurse))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("Expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}

func TestMiddleware_LegacyHeader(t *testing.T) {
	cfg := testConfig(t)
	called := false
	handler := Middleware(NewVerifier(cfg))(principalEcho(t, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/beds", nil)
	req.Header.Set(LegacyTokenHeader, issueTestToken(t, cfg, RoleNurse))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called || rec.Code != http.StatusOK {
		t.Errorf("Expected legacy header to authenticate, got %d", rec.Code)
	}
}

func TestMiddleware_Rejections(t *testing.T) {
	cfg := testConfig(t)

	tests := []struct {
		name       string
		header     string
		value      string
		wantReason string
	}{
		{"missing", "", "", "missing_authorization"},
		{"wrong scheme", "Authorization", "Basic abc", "missing_authorization"},
		{"garbage token", "Authorization", "Bearer not-a-jwt", "invalid_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &mockMetrics{}
			called := false
			handler := MiddlewareWithMetrics(NewVerifier(cfg), nil, metrics)(principalEcho(t, &called))

			req := httptest.NewRequest(http.MethodGet, "/api/beds", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if called {
				t.Error("Handler must not be called")
			}
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401, got %d", rec.Code)
			}
			if len(metrics.failures) != 1 || metrics.failures[0] != tt.wantReason {
				t.Errorf("Expected failure %q, got %v", tt.wantReason, metrics.failures)
			}
		})
	}
}

func TestMiddleware_AccountNoLongerApproved(t *testing.T) {
	cfg := testConfig(t)
	called := false
	handler := MiddlewareWithMetrics(NewVerifier(cfg), mockStatusChecker{approved: false}, nil)(principalEcho(t, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/beds", nil)
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, cfg, RoleNurse))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Error("Handler must not be called")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", rec.Code)
	}
}

func TestMiddleware_StatusCheckError(t *testing.T) {
	cfg := testConfig(t)
	called := false
	handler := MiddlewareWithMetrics(NewVerifier(cfg), mockStatusChecker{err: errors.New("db down")}, nil)(principalEcho(t, &called))

	req := httptest.NewRequest(http.MethodGet, "/api/beds", nil)
	req.Header.Set("Authorization", "Bearer "+issueTestToken(t, cfg, RoleNurse))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rec.Code)
	}
}

func TestRequirePermission_Allowed(t *testing.T) {
	perms := Permissions{RoleNurse: {"vitals:record"}}
	called := false
	handler := RequirePermission("vitals:record", perms)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/critical-factors", nil)
	req = req.WithContext(ContextWithPrincipal(req.Context(), &Principal{UserID: "u", Role: RoleNurse}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("Expected handler to be called")
	}
}

func TestRequirePermission_ForbiddenListsRequiredRoles(t *testing.T) {
	perms := Permissions{
		RoleNurse:      {"vitals:record"},
		RoleConsultant: {"patients:discharge"},
		RoleSuperAdmin: {"patients:discharge"},
	}
	handler := RequirePermission("patients:discharge", perms)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler must not be called")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/patients/p1/discharge", nil)
	req = req.WithContext(ContextWithPrincipal(req.Context(), &Principal{UserID: "u", Role: RoleNurse}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected status 403, got %d", rec.Code)
	}
	var body ForbiddenResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body.Role != RoleNurse {
		t.Errorf("Expected role %q, got %q", RoleNurse, body.Role)
	}
	if len(body.RequiredRoles) != 2 || body.RequiredRoles[0] != RoleConsultant || body.RequiredRoles[1] != RoleSuperAdmin {
		t.Errorf("Unexpected required roles %v", body.RequiredRoles)
	}
}

func TestRequirePermission_NoPrincipal(t *testing.T) {
	handler := RequirePermission("beds:view", Permissions{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/beds", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
}
