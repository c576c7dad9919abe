package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/ytgrab/internal/domain"
)

// statusForError maps an error classification to an HTTP status code
func statusForError(err error) int {
	switch domain.KindOf(err) {
	case domain.ErrInvalidInput:
		return http.StatusBadRequest
	case domain.ErrNotFound, domain.ErrNoFormats, domain.ErrFormatNotAvailable:
		return http.StatusNotFound
	case domain.ErrAlreadyTerminal:
		return http.StatusConflict
	case domain.ErrInsufficientSpace:
		return http.StatusRequestEntityTooLarge
	case domain.ErrUnavailable, domain.ErrTransientNetwork, domain.ErrExpiredURL:
		return http.StatusBadGateway
	case domain.ErrMerge:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a classified error as a JSON response
func writeError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if kind := domain.KindOf(err); kind != "" {
		body["kind"] = string(kind)
	}
	c.JSON(statusForError(err), body)
}
