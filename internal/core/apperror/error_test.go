package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsufficientFundsMessage(t *testing.T) {
	err := NewInsufficientFunds("line-1", "50000.00", "32000.00")

	assert.Equal(t, CodeInsufficientFunds, err.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
	assert.Equal(t, "insufficient available budget: requested 50000.00, available 32000.00", err.Message)
	assert.Equal(t, "32000.00", err.Details["available"])
}

func TestHasCodeThroughWrapping(t *testing.T) {
	base := NewInvalidTransition("requisition", "converted", "approve")
	wrapped := fmt.Errorf("approve requisition: %w", base)

	assert.True(t, HasCode(wrapped, CodeInvalidTransition))
	assert.False(t, HasCode(wrapped, CodeValidation))
	assert.False(t, HasCode(errors.New("plain"), CodeValidation))

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "converted", appErr.Details["status"])
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(wrapped))
}

func TestGetHTTPStatusDefaultsToInternal(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("db down")))
}

func TestWithCauseUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternal(nil).WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}
