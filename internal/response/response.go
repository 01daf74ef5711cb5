// Package response writes the JSON envelope shared by every endpoint:
// {"status", "message", "data", "errors"}.
package response

import (
	"github.com/gin-gonic/gin"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the body of every API response
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	Errors  any    `json:"errors"`
}

// Success writes a success envelope
func Success(c *gin.Context, code int, message string, data any) {
	c.JSON(code, Envelope{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

// Error writes an error envelope. errs carries per-field details when present.
func Error(c *gin.Context, code int, message string, errs any) {
	c.JSON(code, Envelope{
		Status:  StatusError,
		Message: message,
		Errors:  errs,
	})
}

// Abort writes an error envelope and stops the handler chain
func Abort(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Envelope{
		Status:  StatusError,
		Message: message,
	})
}
