// Package response writes the JSON envelope shared by every endpoint:
// {"success": bool, ...} on success and
// {"success": false, "message": ..., "error": <kind>} on failure.
package response

import (
	"github.com/gin-gonic/gin"

	pkgerrors "university-user-service/pkg/errors"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// MessageResponse is a success body with only a message.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DataResponse is a success body carrying a single resource.
type DataResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

// OK writes a success envelope with data.
func OK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, DataResponse{Success: true, Message: message, Data: data})
}

// Message writes a success envelope with a message only.
func Message(c *gin.Context, status int, message string) {
	c.JSON(status, MessageResponse{Success: true, Message: message})
}

// Error maps err to its status code and aborts the request. Internal
// failures are reported with a generic message.
func Error(c *gin.Context, err error) {
	kind := pkgerrors.KindOf(err)
	if kind == "" {
		kind = pkgerrors.KindInternal
	}
	Fail(c, kind, pkgerrors.PublicMessage(err))
}

// Fail aborts the request with an error envelope of the given kind.
func Fail(c *gin.Context, kind pkgerrors.Kind, message string) {
	c.AbortWithStatusJSON(kind.HTTPStatus(), ErrorResponse{
		Success: false,
		Message: message,
		Error:   string(kind),
	})
}
