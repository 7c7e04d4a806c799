package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsmith/platform/internal/domain"
	"github.com/oddsmith/platform/internal/settlement"
)

// --- Admin Grading Tests ---

type fakeGrader struct {
	pickID string
	opts   settlement.GradeOptions
	rec    *domain.GradingRecord
	err    error
	calls  int
}

func (f *fakeGrader) Grade(_ context.Context, pickID string, opts settlement.GradeOptions) (*domain.GradingRecord, error) {
	f.calls++
	f.pickID = pickID
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.rec, nil
}

func postGrade(t *testing.T, grader *fakeGrader, pickID string, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := &AdminHandler{settler: grader}
	r := chi.NewRouter()
	r.Post("/api/grading/pick/{pickID}", h.GradePick)

	req := httptest.NewRequest(http.MethodPost, "/api/grading/pick/"+pickID, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGradePick(t *testing.T) {
	stored := &domain.GradingRecord{
		PickID:     "pick-1",
		EventID:    "nba-5001",
		Settlement: domain.SettleWin,
		GradedAt:   time.Date(2026, 3, 15, 2, 0, 0, 0, time.UTC),
	}

	t.Run("forwards admin_override and admin_note", func(t *testing.T) {
		grader := &fakeGrader{rec: stored}

		rec := postGrade(t, grader, "pick-1", `{"admin_override":"WIN","admin_note":"late stat correction"}`)
		assert.Equal(t, http.StatusOK, rec.Code)

		assert.Equal(t, "pick-1", grader.pickID)
		assert.Equal(t, "admin", grader.opts.GradeSource)
		require.NotNil(t, grader.opts.Override)
		assert.Equal(t, domain.SettleWin, *grader.opts.Override)
		assert.Equal(t, "late stat correction", grader.opts.AdminNote)

		var body domain.GradingRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, domain.SettleWin, body.Settlement)
	})

	t.Run("empty body grades without override", func(t *testing.T) {
		grader := &fakeGrader{rec: stored}

		rec := postGrade(t, grader, "pick-1", `{}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, grader.opts.Override)
		assert.Empty(t, grader.opts.AdminNote)
	})

	t.Run("unknown override value is a 400", func(t *testing.T) {
		grader := &fakeGrader{rec: stored}

		rec := postGrade(t, grader, "pick-1", `{"admin_override":"COVERED"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, grader.calls)
	})

	t.Run("engine errors keep their status", func(t *testing.T) {
		grader := &fakeGrader{err: domain.ErrMappingDrift("nba-5001", "provider names diverged")}

		rec := postGrade(t, grader, "pick-1", `{}`)
		assert.Equal(t, http.StatusConflict, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "MAPPING_DRIFT", body["code"])
	})
}
