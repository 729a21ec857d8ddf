package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pushbolt/pushbolt/pkg/store"
)

// errorBody is the uniform error response shape.
type errorBody struct {
	Error     string `json:"error"`
	ErrorCode int    `json:"errorCode"`
}

func abortStatus(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorBody{Error: msg, ErrorCode: status})
}

// abortError maps a store or pipeline error to its HTTP status. Database
// and unknown errors are scrubbed to a generic 500 and logged with the
// request path.
func abortError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		abortStatus(c, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrAlreadyExists):
		abortStatus(c, http.StatusConflict, err.Error())
	default:
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			abortStatus(c, http.StatusBadRequest, verr.Message)
			return
		}
		slog.Error("request failed", "path", c.Request.URL.Path, "error", err)
		abortStatus(c, http.StatusInternalServerError, "internal server error")
	}
}

func unauthorized(c *gin.Context, msg string) {
	abortStatus(c, http.StatusUnauthorized, msg)
}

func forbidden(c *gin.Context, msg string) {
	abortStatus(c, http.StatusForbidden, msg)
}

func badRequest(c *gin.Context, msg string) {
	abortStatus(c, http.StatusBadRequest, msg)
}
