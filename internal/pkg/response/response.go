// internal/pkg/response/response.go
package response

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key the logging middleware stores the
// request id under. Every envelope echoes it.
const RequestIDKey = "request_id"

// Response is the envelope of every API reply. On errors Data may carry
// remediation details, such as the conflicting trip of a rejected write.
type Response struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success:   true,
		Message:   message,
		Data:      data,
		RequestID: c.GetString(RequestIDKey),
	})
}

// Error aborts the chain and writes a failure envelope.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	c.Abort()

	resp := Response{
		Message:   message,
		RequestID: c.GetString(RequestIDKey),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	if len(data) > 0 {
		resp.Data = data[0]
	}

	c.JSON(code, resp)
}

func ValidationError(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, err)
}

func Unauthorized(c *gin.Context, message string, err error) {
	Error(c, http.StatusUnauthorized, message, err)
}

func Forbidden(c *gin.Context, message string, err error, data ...interface{}) {
	Error(c, http.StatusForbidden, message, err, data...)
}

// Unprocessable reports a well-formed request the chain rules refuse.
func Unprocessable(c *gin.Context, message string, err error, details map[string]interface{}) {
	Error(c, http.StatusUnprocessableEntity, message, err, details)
}

// Unavailable asks the client to retry, e.g. when a chain lock is contended.
func Unavailable(c *gin.Context, message string, err error, retryAfter time.Duration) {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", strconv.Itoa(secs))
	Error(c, http.StatusServiceUnavailable, message, err)
}

// Internal hides the cause from the client; log it before calling.
func Internal(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message, nil)
}
