package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(RequestIDKey, "r-1")
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSuccess_DefaultsTo200(t *testing.T) {
	c, w := testContext()
	Success(c, 0, "ok", map[string]int{"n": 1})

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.True(t, body.Success)
	assert.Equal(t, "r-1", body.RequestID)
	assert.Empty(t, body.Error)
}

func TestUnprocessable_CarriesDetails(t *testing.T) {
	c, w := testContext()
	Unprocessable(c, "rejected", errors.New("gap"), map[string]interface{}{"conflicting_trip_id": 4})

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, "gap", body.Error)
	assert.EqualValues(t, 4, body.Data.(map[string]interface{})["conflicting_trip_id"])
}

func TestUnavailable_RetryAfter(t *testing.T) {
	tests := []struct {
		wait     time.Duration
		expected string
	}{
		{0, "1"},
		{300 * time.Millisecond, "1"},
		{2 * time.Second, "2"},
		{2600 * time.Millisecond, "3"},
	}
	for _, tt := range tests {
		c, w := testContext()
		Unavailable(c, "busy", nil, tt.wait)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, tt.expected, w.Header().Get("Retry-After"), "wait %s", tt.wait)
	}
}

func TestInternal_HidesCause(t *testing.T) {
	c, w := testContext()
	Internal(c, "internal server error")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, decode(t, w).Error)
}
