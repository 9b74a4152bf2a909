package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"matchd/internal/features"
	"matchd/internal/predict"
	"matchd/internal/session"
	"matchd/pkg/types"
)

type mockService struct {
	predictResp *types.PredictResponse
	predictErr  error
	statusResp  *types.StatusResponse
	statusErr   error
	reloadResp  *types.ReloadResponse
	reloadErr   error
	readyErr    error

	reloadCalls int
}

func (m *mockService) Predict(ctx context.Context, req types.PredictRequest) (*types.PredictResponse, error) {
	return m.predictResp, m.predictErr
}

func (m *mockService) Status(ctx context.Context) (*types.StatusResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *mockService) Reload(ctx context.Context) (*types.ReloadResponse, error) {
	m.reloadCalls++
	return m.reloadResp, m.reloadErr
}

func (m *mockService) Ready(ctx context.Context) error { return m.readyErr }

func defaultMock() *mockService {
	return &mockService{
		predictResp: &types.PredictResponse{
			Fixture: types.FixtureContext{MatchID: 1, Home: "Arsenal", Away: "Chelsea", Season: "2024", DatasetVersion: "5"},
			Models: []types.ModelPrediction{{
				ModelID:       "performance_dense",
				Probabilities: types.Outcome{Home: 0.5, Draw: 0.25, Away: 0.25},
			}},
			Ensemble: types.Ensemble{Method: "mean", ModelCount: 1, Probabilities: types.Outcome{Home: 0.5, Draw: 0.25, Away: 0.25}},
		},
		statusResp: &types.StatusResponse{RunID: "run-1", DatasetVersion: "5"},
		reloadResp: &types.ReloadResponse{RunID: "run-2", ReloadedAtUnix: 1700000000, ModelCount: 2},
	}
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var e types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error payload: %v (%s)", err, rec.Body.String())
	}
	return e
}

func TestPredictEndpoint(t *testing.T) {
	mux := NewMux(defaultMock())

	rec := postJSON(t, mux, "/predict", `{"home":"Arsenal","away":"Chelsea"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp types.PredictResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ensemble.ModelCount != 1 || resp.Fixture.Home != "Arsenal" {
		t.Errorf("response = %+v", resp)
	}
}

func TestPredictRequiresJSONContentType(t *testing.T) {
	mux := NewMux(defaultMock())
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func TestPredictRejectsBadBody(t *testing.T) {
	mux := NewMux(defaultMock())
	if rec := postJSON(t, mux, "/predict", `{`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON: status = %d, want 400", rec.Code)
	}
	if rec := postJSON(t, mux, "/predict", `{"home":"Arsenal"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing away: status = %d, want 400", rec.Code)
	}
}

func TestPredictErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid request", features.ErrInvalidRequest("home and away must be different teams"), http.StatusBadRequest},
		{"unknown team", features.ErrUnknownTeam("Narnia FC"), http.StatusNotFound},
		{"fixture not found", features.ErrFixtureNotFound("fixture not found"), http.StatusNotFound},
		{"no usable model", predict.ErrNoUsableModel("no usable model produced a prediction"), http.StatusServiceUnavailable},
		{"runtime unavailable", session.ErrRuntimeUnavailable("runtime not compiled in"), http.StatusServiceUnavailable},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			svc := defaultMock()
			svc.predictErr = c.err
			rec := postJSON(t, NewMux(svc), "/predict", `{"home":"A","away":"B"}`)
			if rec.Code != c.want {
				t.Fatalf("status = %d, want %d", rec.Code, c.want)
			}
			e := decodeError(t, rec)
			if e.Code != c.want || e.Error == "" {
				t.Errorf("payload = %+v", e)
			}
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	mux := NewMux(defaultMock())
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp types.StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RunID != "run-1" {
		t.Errorf("run_id = %q", resp.RunID)
	}
}

func TestReloadWithoutToken(t *testing.T) {
	SetReloadToken("")
	svc := defaultMock()
	rec := postJSON(t, NewMux(svc), "/reload", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if svc.reloadCalls != 0 {
		t.Error("reload ran without a configured token")
	}
}

func TestReloadInvalidToken(t *testing.T) {
	SetReloadToken("secret")
	t.Cleanup(func() { SetReloadToken("") })

	svc := defaultMock()
	mux := NewMux(svc)
	req := httptest.NewRequest(http.MethodPost, "/reload", nil)
	req.Header.Set("X-Reload-Token", "wrong")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if svc.reloadCalls != 0 {
		t.Error("reload ran despite a bad token")
	}
}

func TestReloadSuccess(t *testing.T) {
	SetReloadToken("secret")
	t.Cleanup(func() { SetReloadToken("") })

	svc := defaultMock()
	mux := NewMux(svc)

	// Header auth.
	req := httptest.NewRequest(http.MethodPost, "/reload", nil)
	req.Header.Set("X-Reload-Token", "secret")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp types.ReloadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RunID != "run-2" || resp.ModelCount != 2 {
		t.Errorf("response = %+v", resp)
	}

	// Query param auth.
	req = httptest.NewRequest(http.MethodPost, "/reload?token=secret", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("query token: status = %d", rec.Code)
	}
	if svc.reloadCalls != 2 {
		t.Errorf("reload calls = %d, want 2", svc.reloadCalls)
	}
}

func TestReloadFailureKeepsError(t *testing.T) {
	SetReloadToken("secret")
	t.Cleanup(func() { SetReloadToken("") })

	svc := defaultMock()
	svc.reloadErr = errors.New("manifest unreachable: /tmp/missing.json")
	req := httptest.NewRequest(http.MethodPost, "/reload?token=secret", nil)
	rec := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if e := decodeError(t, rec); !strings.Contains(e.Error, "unreachable") {
		t.Errorf("payload = %+v", e)
	}
}

func TestHealthAndReady(t *testing.T) {
	svc := defaultMock()
	mux := NewMux(svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ready" {
		t.Errorf("readyz = %d %q", rec.Code, rec.Body.String())
	}

	svc.readyErr = predict.ErrNoUsableModel("no runnable model")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz not-ready = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux := NewMux(defaultMock())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "matchd_http_requests_total") {
		t.Error("metrics output missing matchd_http_requests_total")
	}
}
