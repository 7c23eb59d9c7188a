package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/tengml/tengml/pkg/errors"
	"github.com/tengml/tengml/pkg/log"
	"github.com/tengml/tengml/predictor"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// statusFor maps an error to its HTTP status and error code.
func statusFor(err error) (int, string) {
	var ve *errors.ValidationError
	switch {
	case errors.Is(err, predictor.ErrUnknownMetric):
		return http.StatusNotFound, ""
	case errors.IsNotFitted(err):
		return http.StatusServiceUnavailable, log.ErrorNotFitted
	case errors.IsInvalidInput(err), errors.As(err, &ve):
		return http.StatusBadRequest, log.ErrorInvalidInput
	default:
		return http.StatusInternalServerError, log.ErrorInternal
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", err,
			log.RequestIDKey, middleware.GetReqID(r.Context()),
			log.MethodKey, r.Method,
		)
		msg = "internal error"
	} else {
		s.logger.Debug("request rejected",
			log.RequestIDKey, middleware.GetReqID(r.Context()),
			log.StatusKey, status,
			"error", err.Error(),
		)
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
