package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/ytgrab/internal/domain"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		kind domain.ErrorKind
		want int
	}{
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrNoFormats, http.StatusNotFound},
		{domain.ErrFormatNotAvailable, http.StatusNotFound},
		{domain.ErrAlreadyTerminal, http.StatusConflict},
		{domain.ErrInsufficientSpace, http.StatusRequestEntityTooLarge},
		{domain.ErrUnavailable, http.StatusBadGateway},
		{domain.ErrTransientNetwork, http.StatusBadGateway},
		{domain.ErrExpiredURL, http.StatusBadGateway},
		{domain.ErrMerge, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(domain.NewError(tt.kind, "detail")))
		})
	}
}

func TestStatusForError_UnclassifiedIs500(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, statusForError(errors.New("plain")))
}
