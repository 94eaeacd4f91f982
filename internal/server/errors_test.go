package server

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/apply-app/apply-api/internal/tasks"
	"github.com/stretchr/testify/assert"
)

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "url", Message: "must be an absolute http(s) URL"}
	assert.Equal(t, "validation error: url - must be an absolute http(s) URL", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestErrForbidden(t *testing.T) {
	err := &ErrForbidden{Resource: "job offer"}
	assert.Equal(t, "access to job offer denied", err.Error())
	assert.Equal(t, http.StatusForbidden, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "ErrValidation",
			err:      &ErrValidation{Field: "url", Message: "required"},
			expected: http.StatusBadRequest,
		},
		{
			name:     "ErrForbidden",
			err:      &ErrForbidden{Resource: "job offer"},
			expected: http.StatusForbidden,
		},
		{
			name:     "ErrNotFound",
			err:      &ErrNotFound{Resource: "job offer"},
			expected: http.StatusNotFound,
		},
		{
			name:     "wrapped run not found",
			err:      fmt.Errorf("retrieve: %w", tasks.ErrNotFound),
			expected: http.StatusNotFound,
		},
		{
			name:     "run already finished",
			err:      tasks.ErrTerminal,
			expected: http.StatusConflict,
		},
		{
			name:     "Unknown error",
			err:      assert.AnError,
			expected: http.StatusInternalServerError,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}
