package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusAndCode(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", Validation("discharge reason is required"), http.StatusBadRequest, "validation_error"},
		{"not found", NotFound("bed not found"), http.StatusNotFound, "not_found"},
		{"conflict", Conflict("bed is already occupied"), http.StatusBadRequest, "conflict"},
		{"unauthorized", Unauthorized("invalid token"), http.StatusUnauthorized, "unauthorized"},
		{"forbidden", Forbidden("role not allowed"), http.StatusForbidden, "forbidden"},
		{"wrapped", fmt.Errorf("assign bed: %w", NotFound("bed not found")), http.StatusNotFound, "not_found"},
		{"plain", errors.New("connection refused"), http.StatusInternalServerError, "server_error"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.status, Status(tc.err))
			assert.Equal(t, tc.code, Code(tc.err))
		})
	}
}

func TestSentinelIdentity(t *testing.T) {
	errBedOccupied := Conflict("bed is already occupied")
	wrapped := fmt.Errorf("assign: %w", errBedOccupied)

	assert.ErrorIs(t, wrapped, errBedOccupied)
	assert.ErrorIs(t, wrapped, ErrConflict)
	assert.NotErrorIs(t, wrapped, ErrNotFound)
	assert.Equal(t, "assign: bed is already occupied", wrapped.Error())
}
