// Package api exposes the engine over HTTP. Authentication and role
// resolution happen upstream; requests arrive with an opaque capability
// object in the X-Actor header, injected by the identity gateway.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"kpm-monitor/pkg/models"
	"kpm-monitor/pkg/service"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server wires the engine services to HTTP routes
type Server struct {
	services *service.Services
	validate *validator.Validate
	logger   *zap.Logger
}

func NewServer(services *service.Services, logger *zap.Logger) *Server {
	return &Server{
		services: services,
		validate: validator.New(),
		logger:   logger,
	}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/plans/{planId}/metrics/{metricId}", s.handleUpsertMetric).Methods("PUT")
	api.HandleFunc("/plans/{planId}/versions", s.handlePublishVersion).Methods("POST")
	api.HandleFunc("/plans/{planId}/versions/{versionId}", s.handleGetVersion).Methods("GET")
	api.HandleFunc("/plans/{planId}/cycles", s.handleCreateCycle).Methods("POST")
	api.HandleFunc("/plans/{planId}/summary", s.handleSummary).Methods("GET")
	api.HandleFunc("/cycles/{cycleId}", s.handleGetCycle).Methods("GET")
	api.HandleFunc("/cycles/{cycleId}/transitions", s.handleTransition).Methods("POST")
	api.HandleFunc("/cycles/{cycleId}/results/{metricId}", s.handleUpsertResult).Methods("PUT")
	api.HandleFunc("/results/{resultId}", s.handleDeleteResult).Methods("DELETE")
	api.HandleFunc("/approvals/{approvalId}/actions", s.handleApprovalAction).Methods("POST")

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// actorFromRequest decodes the capability object supplied by the
// external identity collaborator. A missing header yields a zero-value
// actor with no capabilities.
func actorFromRequest(r *http.Request) (models.Actor, error) {
	var actor models.Actor
	header := r.Header.Get("X-Actor")
	if header == "" {
		return actor, nil
	}
	if err := json.Unmarshal([]byte(header), &actor); err != nil {
		return actor, models.NewValidationError("X-Actor", "malformed capability header")
	}
	return actor, nil
}

// decode parses and validates a JSON request body.
func (s *Server) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return models.NewValidationError("body", "invalid request body")
	}
	if err := s.validate.Struct(dst); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return models.NewValidationError(verrs[0].Field(), "failed "+verrs[0].Tag()+" validation")
		}
		return models.NewValidationError("body", err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
