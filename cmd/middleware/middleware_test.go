package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/wb-go/wbf/ginext"

	"tourbook/internal/model"
)

type headerAuth string

func (h headerAuth) Authorize(header string) error {
	if header != string(h) {
		return model.ErrUnauthorized
	}
	return nil
}

func newEngine(auth Authorizer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := zerolog.Nop()
	r := gin.New()
	r.Use(LoggingMiddleware(&log))
	r.POST("/admin", AdminAuth(auth, &log), func(c *ginext.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestAdminAuth(t *testing.T) {
	r := newEngine(headerAuth("Bearer good"))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer good", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer bad", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
			}
		})
	}
}
