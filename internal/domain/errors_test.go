package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClasses(t *testing.T) {
	assert.ErrorIs(t, ErrNoChanges, ErrValidation)
	assert.Equal(t, "validation failed: no changes selected", ErrNoChanges.Error())

	assert.ErrorIs(t, ErrBookingNotFound, ErrNotFound)
	assert.Equal(t, "booking not found", ErrBookingNotFound.Error())

	assert.ErrorIs(t, ErrConcurrentModification, ErrConflict)
	assert.ErrorIs(t, ErrBookingCancelled, ErrConflict)
	assert.ErrorIs(t, ErrInvalidCredentials, ErrUnauthorized)

	err := Validationf("field %q is required", "fullName")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), `"fullName"`)

	ext := Externalf("send email", errors.New("boom"))
	assert.ErrorIs(t, ext, ErrExternal)
	assert.Contains(t, ext.Error(), "boom")
}
