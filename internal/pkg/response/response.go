// Package response holds the JSON envelope helpers shared by all handlers.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wei-Shaw/tokengate/internal/pkg/errors"
)

// ErrorBody is the wire form of a gateway error.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": ErrorBody{
			Code:    string(errors.CodeUnknown),
			Message: message,
		},
	})
}

// ErrorFrom renders a classified error with its own HTTP status.
func ErrorFrom(c *gin.Context, err error) {
	ge := errors.FromError(err)
	if ge == nil {
		Success(c, nil)
		return
	}
	c.JSON(ge.Status, gin.H{
		"success": false,
		"error":   BodyFrom(ge),
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message)
}

// BodyFrom converts a GatewayError into its wire form.
func BodyFrom(ge *errors.GatewayError) ErrorBody {
	return ErrorBody{
		Code:      string(ge.Code),
		Message:   ge.Message,
		Retryable: ge.Retryable,
	}
}
