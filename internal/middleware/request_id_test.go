package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"propagated", "till-42-abc", true},
		{"minted when absent", "", false},
		{"minted when oversized", strings.Repeat("x", 129), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.incoming != "" {
				req.Header.Set(RequestIDHeader, tc.incoming)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			assert.Equal(t, got, w.Body.String())
			if tc.keep {
				assert.Equal(t, tc.incoming, got)
				return
			}
			_, err := uuid.Parse(got)
			assert.NoError(t, err)
		})
	}
}
