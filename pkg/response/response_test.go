package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

func testContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestErrorCarriesDetails(t *testing.T) {
	c, w := testContext()
	err := appErrors.Clone(appErrors.ErrValidation, "invalid payment payload")
	err.Details = map[string]string{"amount": "gt=0"}
	Error(c, err)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Equal(t, "gt=0", body.Error.Details["amount"])
	assert.Empty(t, c.Errors)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestErrorServerSideIsRecordedAndMasked(t *testing.T) {
	c, w := testContext()
	Error(c, errors.New("pq: connection reset"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Len(t, c.Errors, 1)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestAttachment(t *testing.T) {
	c, w := testContext()
	require.NoError(t, Attachment(c, "fees_10A.csv", "text/csv", 8, strings.NewReader("a,b\n1,2\n")))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="fees_10A.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "8", w.Header().Get("Content-Length"))
	assert.Equal(t, "a,b\n1,2\n", w.Body.String())
}
