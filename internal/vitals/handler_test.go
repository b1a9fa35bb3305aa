package vitals

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/hdu-care/hdu-service/internal/auth"
)

// mockService implements ServiceInterface for testing
type mockService struct {
	listConfigsFunc  func(ctx context.Context, activeOnly bool) ([]Config, error)
	createConfigFunc func(ctx context.Context, actorID string, req CreateConfigRequest) (*Config, error)
	updateConfigFunc func(ctx context.Context, actorID, id string, req UpdateConfigRequest) (*Config, error)
	deleteConfigFunc func(ctx context.Context, actorID, id string) error
}

func (m *mockService) ListConfigs(ctx context.Context, activeOnly bool) ([]Config, error) {
	return m.listConfigsFunc(ctx, activeOnly)
}

func (m *mockService) CreateConfig(ctx context.Context, actorID string, req CreateConfigRequest) (*Config, error) {
	return m.createConfigFunc(ctx, actorID, req)
}

func (m *mockService) UpdateConfig(ctx context.Context, actorID, id string, req UpdateConfigRequest) (*Config, error) {
	return m.updateConfigFunc(ctx, actorID, id, req)
}

func (m *mockService) DeleteConfig(ctx context.Context, actorID, id string) error {
	return m.deleteConfigFunc(ctx, actorID, id)
}

func withAdmin(req *http.Request) *http.Request {
	return req.WithContext(auth.ContextWithPrincipal(req.Context(), &auth.Principal{UserID: "admin-1", Role: auth.RoleSuperAdmin}))
}

func TestListConfigs_ActiveFilter(t *testing.T) {
	var gotActive bool
	handler := NewHandler(&mockService{
		listConfigsFunc: func(ctx context.Context, activeOnly bool) ([]Config, error) {
			gotActive = activeOnly
			return []Config{{Name: SpO2}}, nil
		},
	})

	rec := httptest.NewRecorder()
	handler.ListConfigs(rec, httptest.NewRequest(http.MethodGet, "/api/critical-factors/vital-signs-config?active=true", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !gotActive {
		t.Error("Expected active filter to be passed")
	}
	var resp ConfigListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(resp.Configs) != 1 {
		t.Errorf("Expected one config, got %d", len(resp.Configs))
	}
}

func TestCreateConfig_DuplicateAnswers400(t *testing.T) {
	handler := NewHandler(&mockService{
		createConfigFunc: func(ctx context.Context, actorID string, req CreateConfigRequest) (*Config, error) {
			return nil, ErrDuplicateConfig
		},
	})

	body, _ := json.Marshal(CreateConfigRequest{Name: SpO2, Label: "SpO2"})
	req := withAdmin(httptest.NewRequest(http.MethodPost, "/api/critical-factors/vital-signs-config", bytes.NewReader(body)))
	rec := httptest.NewRecorder()
	handler.CreateConfig(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}
}

func TestDeleteConfig_NotFound(t *testing.T) {
	handler := NewHandler(&mockService{
		deleteConfigFunc: func(ctx context.Context, actorID, id string) error {
			if id != "cfg-9" {
				t.Errorf("Expected id cfg-9, got %s", id)
			}
			return ErrConfigNotFound
		},
	})

	req := withAdmin(httptest.NewRequest(http.MethodDelete, "/api/critical-factors/vital-signs-config/cfg-9", nil))
	req = mux.SetURLVars(req, map[string]string{"id": "cfg-9"})
	rec := httptest.NewRecorder()
	handler.DeleteConfig(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestCreateConfig_Unauthenticated(t *testing.T) {
	handler := NewHandler(&mockService{})

	rec := httptest.NewRecorder()
	handler.CreateConfig(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{}`))))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
}
