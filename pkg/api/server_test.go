package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"kpm-monitor/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	s := &Server{logger: zap.NewNop()}

	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", models.NewValidationError("reason", "required"), http.StatusBadRequest, "validation"},
		{"state", models.NewStateError("cycle", "APPROVED", "terminal"), http.StatusConflict, "state"},
		{"authorization", models.NewAuthorizationError("start_cycle"), http.StatusForbidden, "authorization"},
		{"not found", models.NewNotFoundError("cycle", "c1"), http.StatusNotFound, "not_found"},
		{"internal", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.writeError(rec, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"kind":"`+tc.kind+`"`)
		})
	}
}

func TestWriteErrorCarriesUnmetDetails(t *testing.T) {
	s := &Server{logger: zap.NewNop()}
	rec := httptest.NewRecorder()

	s.writeError(rec, &models.StateError{
		Entity:  "cycle",
		Current: "DATA_COLLECTION",
		Message: "required metrics have no result",
		Unmet:   []string{"Accuracy", "Drift"},
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unmet":["Accuracy","Drift"]`)
}

func TestActorFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/v1/cycles/c1/transitions", nil)
	r.Header.Set("X-Actor", `{"id":"u-7","can_start_cycle":true,"approver_regions":["EU"]}`)

	actor, err := actorFromRequest(r)

	require.NoError(t, err)
	assert.Equal(t, "u-7", actor.ID)
	assert.True(t, actor.CanStartCycle)
	assert.False(t, actor.CanCancelCycle)
	assert.True(t, actor.CanApproveRegion("EU"))
	assert.False(t, actor.CanApproveRegion("US"))
}

func TestActorFromRequestMissingHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/cycles/c1", nil)

	actor, err := actorFromRequest(r)

	require.NoError(t, err)
	assert.Empty(t, actor.ID)
	assert.False(t, actor.CanApprove(models.ScopeGlobal, ""))
}

func TestActorFromRequestMalformedHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/cycles/c1", nil)
	r.Header.Set("X-Actor", "{not json")

	_, err := actorFromRequest(r)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}
