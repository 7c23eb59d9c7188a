package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tengml/tengml/materials"
	"github.com/tengml/tengml/predictor"
)

func newTrainedServer(t *testing.T) (*Server, *predictor.Service) {
	t.Helper()
	svc := predictor.NewService()
	db := materials.NewDatabase(materials.Fallback(), materials.SourceFallback, "")
	_, err := svc.Train(context.Background(), db)
	require.NoError(t, err)
	return NewServer(svc, Options{PageSize: 2}), svc
}

func do(t *testing.T, h http.Handler, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	srv := NewServer(predictor.NewService(), Options{})
	rec := do(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	decode(t, rec, &body)
	assert.Equal(t, "ok", body.Status)
	assert.False(t, body.ModelsReady)

	srv, _ = newTrainedServer(t)
	rec = do(t, srv, http.MethodGet, "/healthz", "")
	decode(t, rec, &body)
	assert.True(t, body.ModelsReady)
}

func TestUntrainedServiceReturns503(t *testing.T) {
	srv := NewServer(predictor.NewService(), Options{})

	for _, target := range []string{"/api/models", "/api/materials", "/api/stats", "/api/models/voc/parity.png"} {
		rec := do(t, srv, http.MethodGet, target, "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
		var body errorBody
		decode(t, rec, &body)
		assert.Equal(t, "NOT_FITTED", body.Code, target)
	}

	rec := do(t, srv, http.MethodPost, "/api/predict", `{"polymer":"CA","filler":"MXene","loading":5,"thickness":70}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMaterialsPaging(t *testing.T) {
	srv, _ := newTrainedServer(t)

	rec := do(t, srv, http.MethodGet, "/api/materials?page=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page materials.Page
	decode(t, rec, &page)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.PerPage)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 4, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "CAMX_003", page.Items[0].ID)
	assert.True(t, page.HasPrev)
	assert.False(t, page.HasNext)

	rec = do(t, srv, http.MethodGet, "/api/materials?page=9&per_page=10", "")
	decode(t, rec, &page)
	assert.Equal(t, 1, page.Page)
	assert.Len(t, page.Items, 4)

	rec = do(t, srv, http.MethodGet, "/api/materials?page=two", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMaterialByID(t *testing.T) {
	srv, _ := newTrainedServer(t)

	rec := do(t, srv, http.MethodGet, "/api/materials/CAMX_004", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var m map[string]interface{}
	decode(t, rec, &m)
	assert.Equal(t, "CAMX_004", m["ID"])

	rec = do(t, srv, http.MethodGet, "/api/materials/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMaterialsXLSXExport(t *testing.T) {
	srv, _ := newTrainedServer(t)

	rec := do(t, srv, http.MethodGet, "/api/materials.xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))

	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, os.WriteFile(path, rec.Body.Bytes(), 0o644))
	ms, err := materials.LoadXLSX(path)
	require.NoError(t, err)
	assert.Len(t, ms, 4)
}

func TestStats(t *testing.T) {
	srv, _ := newTrainedServer(t)

	rec := do(t, srv, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st materials.Stats
	decode(t, rec, &st)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 1, st.Polymers)
	assert.Equal(t, 1, st.Fillers)
	assert.InDelta(t, 1.6, st.MaxPower, 1e-12)
}

func TestModels(t *testing.T) {
	srv, svc := newTrainedServer(t)
	set, err := svc.Current()
	require.NoError(t, err)

	rec := do(t, srv, http.MethodGet, "/api/models", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var sum predictor.Summary
	decode(t, rec, &sum)
	assert.Equal(t, set.ID, sum.ID)
	assert.Equal(t, 4, sum.Samples)
	assert.Len(t, sum.Metrics, 4)
	for m, ms := range sum.Metrics {
		assert.GreaterOrEqual(t, ms.Score.R2, 0.0, m)
		assert.LessOrEqual(t, ms.Score.R2, 1.0, m)
	}
}

func TestParityPNG(t *testing.T) {
	srv, _ := newTrainedServer(t)

	rec := do(t, srv, http.MethodGet, "/api/models/Power/parity.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	assert.NoError(t, err)

	rec = do(t, srv, http.MethodGet, "/api/models/efficiency/parity.png", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPredict(t *testing.T) {
	srv, svc := newTrainedServer(t)
	set, err := svc.Current()
	require.NoError(t, err)

	rec := do(t, srv, http.MethodPost, "/api/predict", `{"polymer":"CA","filler":"MXene","loading":5,"thickness":70}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var p predictor.Prediction
	decode(t, rec, &p)
	assert.Equal(t, set.ID, p.ModelSetID)
	assert.Equal(t, materials.CAMXPreset(), p.Composition)
	assert.GreaterOrEqual(t, p.Voc, 0.0)
	assert.GreaterOrEqual(t, p.Power, 0.0)
}

func TestPredictDefaultsMissingFields(t *testing.T) {
	srv, _ := newTrainedServer(t)

	rec := do(t, srv, http.MethodPost, "/api/predict", `{"polymer":"CA"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var p predictor.Prediction
	decode(t, rec, &p)
	assert.Equal(t, 0.0, p.Composition.Loading)
	assert.Equal(t, 100.0, p.Composition.Thickness)
}

func TestPredictRejectsBadRequests(t *testing.T) {
	srv, _ := newTrainedServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"polymer":`},
		{"unknown field", `{"polymer":"CA","colour":"red"}`},
		{"negative loading", `{"polymer":"CA","loading":-1,"thickness":70}`},
		{"no polymer", `{"filler":"MXene","loading":5,"thickness":70}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/predict", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body errorBody
			decode(t, rec, &body)
			assert.NotEmpty(t, body.Error)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader("polymer=CA"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestPreset(t *testing.T) {
	srv := NewServer(predictor.NewService(), Options{})
	rec := do(t, srv, http.MethodGet, "/api/presets/camx", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var c materials.Composition
	decode(t, rec, &c)
	assert.Equal(t, materials.CAMXPreset(), c)
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"ID":"A","Polymer":"PTFE","Filler":"Ag","Loading":2,"Thickness":50,"Voc":310,"Isc":20,"Power":2.1},
		{"ID":"B","Polymer":"PI","Filler":"None","Loading":0,"Thickness":120,"Voc":150,"Isc":8,"Power":0.9},
		{"ID":"C","Polymer":"CA","Filler":"MXene","Loading":5,"Thickness":70,"Voc":200,"Isc":12,"Power":1.2}
	]`), 0o644))

	svc := predictor.NewService()
	srv := NewServer(svc, Options{Sources: materials.Sources{JSONPath: path}})

	rec := do(t, srv, http.MethodPost, "/api/reload", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sum predictor.Summary
	decode(t, rec, &sum)
	assert.Equal(t, materials.SourceJSON, sum.Source)
	assert.Equal(t, 3, sum.Samples)

	rec = do(t, srv, http.MethodGet, "/api/materials/B", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	_, err := predictor.ParseMetric("x")
	status, _ := statusFor(err)
	assert.Equal(t, http.StatusNotFound, status)

	_, err = predictor.NewService().Current()
	status, code := statusFor(err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "NOT_FITTED", code)

	status, _ = statusFor(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestRecovererReturns500(t *testing.T) {
	srv := NewServer(predictor.NewService(), Options{})
	srv.router.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := do(t, srv, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
