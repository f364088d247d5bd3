package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"linktree-ai-go/internal/apperr"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", apperr.New(apperr.KindValidation, "documents and metadatas length mismatch"), http.StatusBadRequest},
		{"forbidden", apperr.New(apperr.KindForbidden, "no active subscription"), http.StatusForbidden},
		{"not found", apperr.New(apperr.KindNotFound, "tenant not found"), http.StatusNotFound},
		{"rate limited", apperr.New(apperr.KindRateLimited, "token quota exceeded"), http.StatusTooManyRequests},
		{"upstream", apperr.New(apperr.KindUpstream, "embedding provider failed"), http.StatusInternalServerError},
		{"plain error", errors.New("something broke"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondError(c, tc.err)

			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.err.Error())
		})
	}
}
