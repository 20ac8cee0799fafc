package api

import (
	"net/http"
	"strconv"

	"kpm-monitor/pkg/models"

	"github.com/gorilla/mux"
)

func (s *Server) handleUpsertMetric(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	actor, err := actorFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req models.UpsertMetricRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	def, err := s.services.Metrics.Upsert(r.Context(), actor, vars["planId"], vars["metricId"], req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handlePublishVersion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	actor, err := actorFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req models.PublishVersionRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	version, err := s.services.Versions.Publish(r.Context(), actor, vars["planId"], req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, version)
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	version, err := s.services.Versions.Get(r.Context(), vars["planId"], vars["versionId"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, version)
}

func (s *Server) handleCreateCycle(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	actor, err := actorFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req models.CreateCycleRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	cycle, err := s.services.Cycles.Create(r.Context(), actor, vars["planId"], req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cycle)
}

func (s *Server) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	detail, err := s.services.Cycles.Get(r.Context(), vars["cycleId"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	actor, err := actorFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req models.TransitionRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	cycle, err := s.services.Cycles.Transition(r.Context(), actor, vars["cycleId"], req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cycle)
}

func (s *Server) handleUpsertResult(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	actor, err := actorFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req models.UpsertResultRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.services.Results.Upsert(r.Context(), actor, vars["cycleId"], vars["metricId"], req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	actor, err := actorFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.services.Results.Delete(r.Context(), actor, vars["resultId"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApprovalAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	actor, err := actorFromRequest(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req models.ApprovalActionRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	approval, err := s.services.Approvals.Act(r.Context(), actor, vars["approvalId"], req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, approval)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	cycleCount := 0
	if raw := r.URL.Query().Get("cycles"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, models.NewValidationError("cycles", "must be a non-negative integer"))
			return
		}
		cycleCount = n
	}

	summary, err := s.services.Summary.Performance(r.Context(), vars["planId"], cycleCount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
