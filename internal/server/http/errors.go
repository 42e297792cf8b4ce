package http

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/gin-gonic/gin"
)

// errorStatus maps the error taxonomy onto status codes and client messages.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusBadRequest, "Incorrect email or password"
	case errors.Is(err, common.ErrAccountInactive):
		return http.StatusBadRequest, "Inactive user"
	case errors.Is(err, common.ErrDuplicateEmail):
		return http.StatusBadRequest, "The user with this email already exists in the system."
	case errors.Is(err, common.ErrTokenInvalid):
		return http.StatusForbidden, "Could not validate credentials"
	case errors.Is(err, common.ErrInsufficientPrivilege):
		return http.StatusForbidden, "The user doesn't have enough privileges"
	case errors.Is(err, common.ErrAccountNotFound):
		return http.StatusNotFound, "User not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *HTTPServer) abortWithError(c *gin.Context, err error) {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}
