package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	conflict := NewConflict("username already taken", nil)
	assert.Same(t, conflict, ToDomainError(fmt.Errorf("wrapped: %w", conflict)))

	notFound := ToDomainError(fmt.Errorf("lookup: %w", pgx.ErrNoRows))
	assert.Equal(t, http.StatusNotFound, notFound.HTTPStatus)
	assert.Equal(t, "NOT_FOUND", notFound.Code)

	internal := ToDomainError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)
	assert.Equal(t, "internal server error", internal.Message)
	assert.EqualError(t, internal.Unwrap(), "boom")
}

func TestNewAuthenticationFailed(t *testing.T) {
	err := ToDomainError(NewAuthenticationFailed())
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	assert.Equal(t, "AUTHENTICATION_FAILED", err.Code)
	assert.Equal(t, "invalid credentials", err.Error())
}
