package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		err  *AppError
		want int
	}{
		{NotFound("doctor", nil), http.StatusNotFound},
		{Validation("bad"), http.StatusBadRequest},
		{Unauthorized(nil), http.StatusUnauthorized},
		{Forbidden(nil), http.StatusForbidden},
		{Conflict("slot taken", nil), http.StatusConflict},
		{Internal(fmt.Errorf("boom")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.StatusCode(), tc.err.Error())
	}
}

func TestCodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("booking: %w", Conflict("slot unavailable", nil))

	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, ErrInternal, CodeOf(fmt.Errorf("plain")))
	assert.False(t, IsForbidden(nil))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := NotFound("consultation", fmt.Errorf("sql: no rows in result set"))

	assert.Equal(t, "consultation not found: sql: no rows in result set", err.Error())
	assert.Equal(t, "consultation not found", err.PublicMessage())
}
