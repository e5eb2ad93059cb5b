package apperr_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmallTownDocumentary/gallery-backend/internal/apperr"
)

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, apperr.Status(apperr.Unauthorized()))
	assert.Equal(t, http.StatusNotFound, apperr.Status(apperr.NotFound("Project not found.")))
	assert.Equal(t, http.StatusBadRequest, apperr.Status(apperr.Invalid("bad")))
	assert.Equal(t, http.StatusConflict, apperr.Status(apperr.Conflict("dup")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, apperr.Status(apperr.TooLarge("big")))
	assert.Equal(t, http.StatusInternalServerError, apperr.Status(errors.New("boom")))
}

func TestWrappedErrorsKeepKind(t *testing.T) {
	err := fmt.Errorf("claim: %w", apperr.Conflict("Project has already been claimed."))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, "Project has already been claimed.", apperr.Message(err))
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := apperr.Internal(cause)
	assert.Equal(t, apperr.GenericMessage, apperr.Message(err))
	assert.ErrorIs(t, err, cause)
}

func TestWriteResultAndError(t *testing.T) {
	rec := httptest.NewRecorder()
	apperr.WriteResult(rec, map[string]interface{}{"count": 2})
	require.Equal(t, http.StatusOK, rec.Code)

	var ok map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ok))
	assert.Contains(t, ok, "error")
	assert.Nil(t, ok["error"])
	assert.EqualValues(t, 2, ok["count"])

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	apperr.WriteError(rec, req, apperr.NotFound("Photo not found."))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var failed map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failed))
	assert.Equal(t, "Photo not found.", failed["error"])
}
