package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"conduit-api/internal/domain"
)

// ErrorBody is the shape of every error response that carries a body.
type ErrorBody struct {
	Errors struct {
		Body []string `json:"body"`
	} `json:"errors"`
}

func errorBody(messages ...string) *ErrorBody {
	var b ErrorBody
	b.Errors.Body = messages
	return &b
}

// mapError converts a use case failure into a status and body. A nil body means the
// response is sent without one.
func mapError(err error) (int, *ErrorBody) {
	var de *domain.Error
	if !errors.As(err, &de) {
		return http.StatusInternalServerError, errorBody("internal server error")
	}

	switch de.Kind {
	case domain.KindValidation:
		messages := de.Messages()
		if len(messages) == 0 {
			messages = []string{"invalid request"}
		}
		return http.StatusUnprocessableEntity, errorBody(messages...)
	case domain.KindNotFound:
		return http.StatusNotFound, errorBody("not found")
	case domain.KindForbidden:
		return http.StatusForbidden, errorBody("forbidden")
	case domain.KindConflict:
		return http.StatusUnprocessableEntity, errorBody(de.Field + " is already taken")
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized, nil
	default:
		return http.StatusInternalServerError, errorBody("internal server error")
	}
}

// respondError writes the mapped error and logs failures that reach the 500 branch.
func (h *Handler) respondError(c *gin.Context, err error) {
	status, body := mapError(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		requestLogger(c, h.log).WithError(err).Error("request failed")
	}
	if body == nil {
		c.AbortWithStatus(status)
		return
	}
	c.AbortWithStatusJSON(status, body)
}
