package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, inbound string) (header, fromGin, fromCtx string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) {
		fromGin = Value(c)
		fromCtx = FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if inbound != "" {
		req.Header.Set(HeaderKey, inbound)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Header().Get(HeaderKey), fromGin, fromCtx
}

func TestMiddlewareKeepsWellFormedID(t *testing.T) {
	header, fromGin, fromCtx := serve(t, "gateway-7f3a.1")
	assert.Equal(t, "gateway-7f3a.1", header)
	assert.Equal(t, header, fromGin)
	assert.Equal(t, header, fromCtx)
}

func TestMiddlewareReplacesMissingOrUnsafeID(t *testing.T) {
	for _, inbound := range []string{"", "bad id\nforged=1", strings.Repeat("x", maxLength+1)} {
		header, fromGin, _ := serve(t, inbound)
		_, err := uuid.Parse(header)
		assert.NoError(t, err, "inbound %q", inbound)
		assert.Equal(t, header, fromGin)
	}
}

func TestFromContextWithoutID(t *testing.T) {
	assert.Empty(t, FromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
