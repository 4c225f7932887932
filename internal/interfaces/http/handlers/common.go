// Package handlers implements the HTTP API: query understanding, candidate
// ranking, and health. All responses are JSON; errors carry the stable
// machine-readable code from pkg/errors.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/shortalex12333/Cloud-PMS-sub001/internal/interfaces/http/middleware"
	"github.com/shortalex12333/Cloud-PMS-sub001/pkg/errors"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id,omitempty"`
	Detail    interface{} `json:"detail,omitempty"`
}

// respondError maps an application error to its HTTP status and writes the
// standard body. Unknown errors become a generic 500 without leaking
// internals.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := code.HTTPStatus()

	msg := "internal error"
	if appErr, ok := err.(*errors.AppError); ok && status < 500 {
		msg = appErr.Message
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:      code.String(),
		Message:   msg,
		RequestID: middleware.GetRequestID(c),
	})
}

// respondErrorWithDetail is respondError with an extra structured payload,
// used where the client can act on it (e.g. the no-signal hint).
func respondErrorWithDetail(c *gin.Context, err error, detail interface{}) {
	code := errors.GetCode(err)
	status := code.HTTPStatus()

	msg := "internal error"
	if appErr, ok := err.(*errors.AppError); ok && status < 500 {
		msg = appErr.Message
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:      code.String(),
		Message:   msg,
		RequestID: middleware.GetRequestID(c),
		Detail:    detail,
	})
}
