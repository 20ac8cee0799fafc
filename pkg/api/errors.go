package api

import (
	"errors"
	"net/http"

	"kpm-monitor/pkg/models"

	"go.uber.org/zap"
)

// errorBody is the uniform error payload
type errorBody struct {
	Error string   `json:"error"`
	Kind  string   `json:"kind"`
	Unmet []string `json:"unmet,omitempty"`
}

// writeError maps the engine's error taxonomy to HTTP statuses:
// validation 400, state conflicts 409, authorization 403, not found
// 404. Anything else is a 500 and gets logged.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var (
		verr *models.ValidationError
		serr *models.StateError
		aerr *models.AuthorizationError
		nerr *models.NotFoundError
	)

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Error(), Kind: "validation"})
	case errors.As(err, &serr):
		writeJSON(w, http.StatusConflict, errorBody{Error: serr.Error(), Kind: "state", Unmet: serr.Unmet})
	case errors.As(err, &aerr):
		writeJSON(w, http.StatusForbidden, errorBody{Error: aerr.Error(), Kind: "authorization"})
	case errors.As(err, &nerr):
		writeJSON(w, http.StatusNotFound, errorBody{Error: nerr.Error(), Kind: "not_found"})
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Kind: "internal"})
	}
}
