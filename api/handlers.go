package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tengml/tengml/materials"
	"github.com/tengml/tengml/pkg/errors"
	"github.com/tengml/tengml/predictor"
	"github.com/tengml/tengml/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type healthResponse struct {
	Status      string `json:"status"`
	ModelsReady bool   `json:"models_ready"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, err := s.svc.Current()
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", ModelsReady: err == nil})
}

// database returns the database behind the current model set.
func (s *Server) database() (*materials.Database, error) {
	if _, err := s.svc.Current(); err != nil {
		return nil, err
	}
	return s.svc.Database(), nil
}

func (s *Server) handleMaterials(w http.ResponseWriter, r *http.Request) {
	db, err := s.database()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := intQuery(r, "page", 1)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	perPage, err := intQuery(r, "per_page", s.opts.PageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, db.Page(page, perPage))
}

func (s *Server) handleMaterial(w http.ResponseWriter, r *http.Request) {
	db, err := s.database()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	m, ok := db.Find(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "material " + strconv.Quote(id) + " not found"})
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleMaterialsXLSX(w http.ResponseWriter, r *http.Request) {
	db, err := s.database()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := materials.WriteXLSX(&buf, db.Materials); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+materials.DefaultXLSXPath+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	db, err := s.database()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, db.Stats())
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	set, err := s.svc.Current()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set.Summary())
}

func (s *Server) handleParity(w http.ResponseWriter, r *http.Request) {
	m, err := predictor.ParseMetric(chi.URLParam(r, "metric"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	measured, predicted, err := s.svc.Parity(m)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := report.Parity(m.Label(), measured, predicted)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WritePNG(&buf, p); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// predictRequest is the POST /api/predict body. Omitted loading and
// thickness take the same defaults as a database row missing them.
type predictRequest struct {
	Polymer   string   `json:"polymer"`
	Filler    string   `json:"filler"`
	Loading   *float64 `json:"loading"`
	Thickness *float64 `json:"thickness"`
}

func (req predictRequest) composition() materials.Composition {
	m := materials.Material{Polymer: req.Polymer, Filler: req.Filler}
	if req.Loading != nil {
		m.Loading = materials.Num(*req.Loading)
	}
	if req.Thickness != nil {
		m.Thickness = materials.Num(*req.Thickness)
	}
	return m.Composition()
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, errors.NewInvalidInputErrorf("predict", "invalid request body: %v", err))
		return
	}

	p, err := s.svc.Predict(req.composition())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, materials.CAMXPreset())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	set, err := s.svc.Reload(r.Context(), s.opts.Sources)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set.Summary())
}

func intQuery(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.NewInvalidInputErrorf("query", "%s must be an integer, got %q", key, v)
	}
	return n, nil
}
