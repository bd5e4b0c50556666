package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("load: %w", Clone(ErrNotFound, "student not found"))
	appErr := FromError(wrapped)
	assert.Equal(t, ErrNotFound.Code, appErr.Code)
	assert.Equal(t, "student not found", appErr.Message)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Nil(t, FromError(nil))
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, ErrRosterUnavailable.Code, ErrRosterUnavailable.Status, "save roster")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "save roster: connection refused", err.Error())
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrValidation, "bad term")
	assert.Equal(t, "bad term", clone.Message)
	assert.Equal(t, "validation failed", ErrValidation.Message)
	assert.Nil(t, Clone(nil, "x"))
}

func TestIsMatchesClonesByCode(t *testing.T) {
	err := fmt.Errorf("gradebook: %w", Clone(ErrForbidden, "teachers may only edit their classes"))
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestInvalidListsFieldReasons(t *testing.T) {
	type payment struct {
		Amount float64 `validate:"gt=0"`
		Method string  `validate:"required"`
	}
	verr := validator.New().Struct(payment{})
	appErr := Invalid(verr, "invalid payment payload")

	assert.Equal(t, ErrValidation.Code, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, map[string]string{"amount": "gt=0", "method": "required"}, appErr.Details)

	plain := Invalid(errors.New("bad month"), "invalid month")
	assert.Nil(t, plain.Details)
}
