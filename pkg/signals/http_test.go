package signals

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/vitalis-health/platform/pkg/auth"
	"github.com/vitalis-health/platform/pkg/catalog"
	"github.com/vitalis-health/platform/pkg/common/models"
	"github.com/vitalis-health/platform/pkg/server"
)

func newTestRouter(t *testing.T, store *fakeStore) (*mux.Router, *auth.JWTManager) {
	t.Helper()
	manager, err := auth.NewJWTManager("unit-test-secret-key", "vitalis-health", "vitalis-api", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	svc := NewService(catalog.Default(), store, nil, nil)
	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(server.Authenticate(manager))
	NewHandler(svc).Register(api)
	return router, manager
}

func authedRequest(t *testing.T, manager *auth.JWTManager, userID uuid.UUID, method, path string, body interface{}) *http.Request {
	t.Helper()
	token, err := manager.IssueToken(userID, "member", "")
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestCaptureEndpoint(t *testing.T) {
	store := newFakeStore()
	router, manager := newTestRouter(t, store)
	userID := uuid.New()

	req := authedRequest(t, manager, userID, http.MethodPost, "/api/v1/signals/capture", map[string]interface{}{
		"signal_id": "heart_rate_resting",
		"value":     map[string]interface{}{"kind": "numeric", "numeric": 62},
		"source":    "device",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Instance models.SignalInstance `json:"instance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Instance.UserID != userID {
		t.Error("capture without an explicit user_id should default to the caller")
	}
	if resp.Instance.Unit != "bpm" {
		t.Errorf("unit = %q", resp.Instance.Unit)
	}
}

func TestCaptureEndpointRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t, newFakeStore())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals/capture", bytes.NewBufferString("{}"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestCaptureEndpointErrorMapping(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name       string
		body       map[string]interface{}
		wantStatus int
		wantCode   string
	}{
		{
			name: "unknown signal",
			body: map[string]interface{}{
				"signal_id": "nope",
				"value":     map[string]interface{}{"kind": "numeric", "numeric": 1},
				"source":    "manual",
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "unknown_signal",
		},
		{
			name: "source not allowed",
			body: map[string]interface{}{
				"signal_id": "heart_rate_current",
				"value":     map[string]interface{}{"kind": "numeric", "numeric": 80},
				"source":    "manual",
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "source_not_allowed",
		},
		{
			name: "out of range",
			body: map[string]interface{}{
				"signal_id": "heart_rate_resting",
				"value":     map[string]interface{}{"kind": "numeric", "numeric": 9999},
				"source":    "manual",
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "validation_failed",
		},
		{
			name: "safety gate",
			body: map[string]interface{}{
				"signal_id": "blood_pressure_systolic",
				"value":     map[string]interface{}{"kind": "numeric", "numeric": 200},
				"source":    "manual",
			},
			wantStatus: http.StatusConflict,
			wantCode:   "requires_confirmation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			router, manager := newTestRouter(t, store)

			req := authedRequest(t, manager, userID, http.MethodPost, "/api/v1/signals/capture", tt.body)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var resp struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", resp.Error.Code, tt.wantCode)
			}
			if store.writeCalls != 0 {
				t.Error("rejected capture must not reach the store")
			}
		})
	}
}

func TestLatestEndpoint(t *testing.T) {
	store := newFakeStore()
	router, manager := newTestRouter(t, store)
	userID := uuid.New()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, manager, userID, http.MethodGet, "/api/v1/signals/steps/latest", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("empty history status = %d, want 404", rec.Code)
	}

	capture := authedRequest(t, manager, userID, http.MethodPost, "/api/v1/signals/capture", map[string]interface{}{
		"signal_id": "steps",
		"value":     map[string]interface{}{"kind": "numeric", "numeric": 8500},
		"source":    "device",
	})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, capture)
	if rec.Code != http.StatusCreated {
		t.Fatalf("capture failed: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(t, manager, userID, http.MethodGet, "/api/v1/signals/steps/latest", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("latest status = %d", rec.Code)
	}
	var resp struct {
		Instance models.SignalInstance `json:"instance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Instance.Value.Numeric == nil || *resp.Instance.Value.Numeric != 8500 {
		t.Errorf("latest value = %v", resp.Instance.Value.Numeric)
	}
}

func TestCatalogEndpointContextFilter(t *testing.T) {
	router, manager := newTestRouter(t, newFakeStore())
	userID := uuid.New()

	count := func(path string) int {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, authedRequest(t, manager, userID, http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("catalog status = %d", rec.Code)
		}
		var resp struct {
			Signals []json.RawMessage `json:"signals"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		return len(resp.Signals)
	}

	all := count("/api/v1/catalog")
	male := count(fmt.Sprintf("/api/v1/catalog?sex=%s&age=%d", "male", 40))
	if male >= all {
		t.Errorf("male context should exclude female-only signals: %d vs %d", male, all)
	}
}
