// Package handler exposes the HTTP endpoints of the three services.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"linktree-ai-go/internal/apperr"
)

// respondError maps an error's kind to an HTTP status and writes the
// JSON error body.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindRateLimited:
		status = http.StatusTooManyRequests
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
