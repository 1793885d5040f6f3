package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/distrimax/fulfillgo/internal/packing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondPackingErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"lock held", packing.ErrLockHeld, http.StatusLocked},
		{"not owner", packing.ErrNotOwner, http.StatusForbidden},
		{"lock expired", packing.ErrLockExpired, http.StatusForbidden},
		{"not found", packing.ErrNotFound, http.StatusNotFound},
		{"unknown barcode", packing.ErrBarcodeUnresolvable, http.StatusNotFound},
		{"product not in order", packing.ErrProductNotInOrder, http.StatusBadRequest},
		{"forbidden", packing.ErrForbidden, http.StatusForbidden},
		{"invalid input", packing.ErrInvalidInput, http.StatusBadRequest},
		{"invalid state", packing.ErrInvalidState, http.StatusBadRequest},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondPackingError(rec, tt.err)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRespondPackingErrorLockConflict(t *testing.T) {
	expires := time.Now().Add(10 * time.Minute)

	t.Run("held by another carries the holder", func(t *testing.T) {
		rec := httptest.NewRecorder()
		respondPackingError(rec, &packing.LockConflictError{
			Err: packing.ErrLockHeld, Holder: "carlos", ExpiresAt: &expires,
		})

		assert.Equal(t, http.StatusLocked, rec.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "carlos", body["holder"])
		assert.NotEmpty(t, body["expires_at"])
	})

	t.Run("expired own lease is a conflict", func(t *testing.T) {
		rec := httptest.NewRecorder()
		respondPackingError(rec, &packing.LockConflictError{
			Err: packing.ErrLockExpired, Holder: "maria", ExpiresAt: &expires,
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("no ownership at all", func(t *testing.T) {
		rec := httptest.NewRecorder()
		respondPackingError(rec, &packing.LockConflictError{Err: packing.ErrNotOwner})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestBlockedStatus(t *testing.T) {
	for in, want := range map[string]packingStatusExpectation{
		"faltante":         {status: "blocked_faltante", ok: true},
		"blocked_faltante": {status: "blocked_faltante", ok: true},
		"novedad":          {status: "blocked_novedad", ok: true},
		"blocked_novedad":  {status: "blocked_novedad", ok: true},
		"paused":           {ok: false},
		"completed":        {ok: false},
		"requires_review":  {ok: false},
		"":                 {ok: false},
	} {
		status, ok := blockedStatus(in)
		assert.Equal(t, want.ok, ok, in)
		if want.ok {
			assert.Equal(t, want.status, string(status), in)
		}
	}
}

type packingStatusExpectation struct {
	status string
	ok     bool
}

func TestRespondPackingErrorCompletion(t *testing.T) {
	rec := httptest.NewRecorder()
	respondPackingError(rec, &packing.CompletionError{
		TotalItems: 4, VerifiedItems: 3, PendingItems: 1, EvidenceCount: 0,
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["pending_items"])
	assert.Equal(t, float64(0), body["evidence_count"])
}
