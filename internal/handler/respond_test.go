package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsmith/platform/internal/domain"
)

// --- RespondError Tests ---

func TestRespondErrorContractMismatchBody(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, domain.ErrMarketContractMismatch("NBA", "spread", "REGULATION"))

	assert.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		ErrorCode      string            `json:"error_code"`
		Message        string            `json:"message"`
		RequestContext map[string]string `json:"request_context"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "MARKET_CONTRACT_MISMATCH", body.ErrorCode)
	assert.NotEmpty(t, body.Message)
	assert.Equal(t, map[string]string{
		"sport":             "NBA",
		"market_type":       "spread",
		"market_settlement": "REGULATION",
	}, body.RequestContext)
}

func TestRespondErrorPlainAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, domain.ErrNotFound("event", "nba-5001"))

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.NotContains(t, body, "request_context")
	assert.NotContains(t, body, "error_code")
}

func TestRespondErrorUnknownError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
}
