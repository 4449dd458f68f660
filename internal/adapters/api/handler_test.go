package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poyrazK/zonekeeper/internal/adapters/memory"
	"github.com/poyrazK/zonekeeper/internal/core/domain"
	"github.com/poyrazK/zonekeeper/internal/core/services"
	"github.com/poyrazK/zonekeeper/internal/dns/nsec3"
	"github.com/poyrazK/zonekeeper/internal/dns/rdata"
)

const testToken = "secret-token"

func setupHandler(t *testing.T) (*http.ServeMux, *memory.Store) {
	t.Helper()
	st := memory.NewStore()
	z := st.AddZone("example.com.", "")
	for _, r := range []domain.Record{
		{Name: "example.com.", Type: domain.TypeSOA, Content: "ns1.example.com hostmaster.example.com 1 3600 600 604800 300", TTL: 3600, Auth: true},
		{Name: "example.com.", Type: domain.TypeNS, Content: "ns1.example.com", TTL: 3600, Auth: true},
		{Name: "ns1.example.com.", Type: domain.TypeA, Content: "192.0.2.1", TTL: 3600, Auth: true},
		{Name: "www.sub.example.com.", Type: domain.TypeA, Content: "192.0.2.80", TTL: 3600, Auth: true},
	} {
		st.AddRecord(z.ID, r)
	}
	st.AddKey(z.ID, domain.DNSSECKey{KeyType: "KSK", Algorithm: 13, Active: true})

	p := st.AddZone("presigned.test.", "")
	st.SetMetadata(p.ID, domain.MetaPresigned, "1")

	logger := slog.New(slog.DiscardHandler)
	keeper := services.NewKeeperService(st, 0, logger)
	cfg := services.DefaultConfig()
	rectifier := services.NewRectifyService(st, keeper, nsec3.NewHasher(), cfg, logger)
	checker := services.NewCheckService(st, keeper, rdata.NewCanonicalizer(), cfg, logger)

	checks := map[string]HealthCheck{"store": func(context.Context) error { return nil }}
	h := NewAPIHandler(rectifier, checker, testToken, checks, logger)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux, st
}

func do(mux *http.ServeMux, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestRectifyZone(t *testing.T) {
	mux, _ := setupHandler(t)

	w := do(mux, "POST", "/zones/example.com/rectify")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res domain.RectifyResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if res.Zone != "example.com." || res.Posture != domain.PostureNSEC {
		t.Errorf("Unexpected result: %+v", res)
	}
	if len(res.ENTInserted) != 1 || res.ENTInserted[0] != "sub.example.com." {
		t.Errorf("Expected ENT sub.example.com., got %v", res.ENTInserted)
	}
}

func TestRectifyZone_ErrorCodes(t *testing.T) {
	mux, _ := setupHandler(t)

	tests := []struct {
		path string
		code int
	}{
		{"/zones/missing.test/rectify", http.StatusNotFound},
		{"/zones/presigned.test/rectify", http.StatusConflict},
		{"/zones/bad..name/rectify", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := do(mux, "POST", tt.path)
		if w.Code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.code, w.Code)
		}
	}
}

func TestRectifyZone_NoSOA(t *testing.T) {
	mux, st := setupHandler(t)
	st.AddZone("empty.test.", "")

	w := do(mux, "POST", "/zones/empty.test/rectify")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d", w.Code)
	}
}

func TestRectifyAllZones(t *testing.T) {
	mux, _ := setupHandler(t)

	w := do(mux, "POST", "/rectify-all")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var body struct {
		Result domain.BatchResult `json:"result"`
		Error  string             `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Result.Zones != 2 || body.Result.Skipped != 1 || body.Result.Failed != 0 || body.Error != "" {
		t.Errorf("Unexpected batch: %+v", body)
	}
}

func TestRectifyAllZones_PartialFailure(t *testing.T) {
	mux, st := setupHandler(t)
	st.FailOn(memory.OpList, errors.New("backend down"))

	w := do(mux, "POST", "/rectify-all")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var body struct {
		Result domain.BatchResult `json:"result"`
		Error  string             `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Result.Failed != 1 || body.Error == "" {
		t.Errorf("Expected one failed zone with an error, got %+v", body)
	}
}

func TestCheckZone(t *testing.T) {
	mux, _ := setupHandler(t)

	w := do(mux, "GET", "/zones/example.com./check")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var report domain.CheckReport
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if report.RecordsChecked != 4 || report.Errors != 0 {
		t.Errorf("Unexpected report: %+v", report)
	}

	w = do(mux, "GET", "/zones/missing.test/check")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown zone, got %d", w.Code)
	}
}

func TestOrdering(t *testing.T) {
	mux, _ := setupHandler(t)

	if w := do(mux, "POST", "/zones/example.com/rectify"); w.Code != http.StatusOK {
		t.Fatalf("rectify failed: %d", w.Code)
	}

	w := do(mux, "GET", "/zones/example.com/ordering?name=www.sub.example.com")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body["before"] != "www.sub.example.com." || body["after"] != "example.com." {
		t.Errorf("Unexpected ordering: %v", body)
	}

	if w := do(mux, "GET", "/zones/example.com/ordering"); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without name, got %d", w.Code)
	}
	if w := do(mux, "GET", "/zones/example.com/ordering?name=www.example.org"); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for out-of-zone name, got %d", w.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	mux, _ := setupHandler(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	h := NewAPIHandler(nil, nil, "", map[string]HealthCheck{
		"db": func(context.Context) error { return errors.New("down") },
	}, nil)
	w = httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
	var body map[string]any
	_ = json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "DEGRADED" {
		t.Errorf("Expected DEGRADED, got %v", body["status"])
	}
}

func TestMetrics(t *testing.T) {
	mux, _ := setupHandler(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}
