package apperror

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
)

// Response is the JSON body of every error reply.
type Response struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Respond renders err as a JSON error response and aborts the chain.
// Unclassified errors become a generic 500 and their detail only goes to the log.
func Respond(c *gin.Context, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = Unexpected(err)
	}

	status := HTTPStatus(e.Kind)
	if status >= 500 {
		slog.Error("Request failed",
			"error", e.Error(),
			"kind", e.Kind.String(),
			"request_id", c.GetString("request_id"),
		)
		_ = c.Error(e)
		c.AbortWithStatusJSON(status, Response{
			Error:   "internal_error",
			Message: "internal server error",
		})
		return
	}

	c.AbortWithStatusJSON(status, Response{
		Error:   e.Code,
		Message: e.Message,
	})
}
