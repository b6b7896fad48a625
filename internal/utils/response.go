package utils

import (
	"errors"
	"net/http"

	"github.com/cz7host/frp/internal/api/dto/common"
	"github.com/cz7host/frp/internal/registry"

	"github.com/gin-gonic/gin"
)

// HandleSuccess sends a success response with data
func HandleSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, common.NewSuccessResponse(data))
}

// HandleCreated sends a created response with data
func HandleCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, common.NewSuccessResponse(data))
}

// HandleMessage sends a success response with just a message
func HandleMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, common.NewMessageResponse(message))
}

// HandleNoContent sends a success response with no content
func HandleNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// HandleAPIError maps registry errors to their HTTP status and falls back
// to the provided defaults for everything else.
func HandleAPIError(c *gin.Context, err error, defaultCode common.ErrorCode, defaultMessage string) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, common.NewErrorResponse(common.ErrCodeNotFound, "Tunnel not found", nil))
	case errors.Is(err, registry.ErrConflict):
		c.JSON(http.StatusConflict, common.NewErrorResponse(common.ErrCodeConflict, "Domain is already in use", nil))
	default:
		status := http.StatusInternalServerError
		switch defaultCode {
		case common.ErrCodeValidation, common.ErrCodeBadRequest:
			status = http.StatusBadRequest
		case common.ErrCodeUnauthorized:
			status = http.StatusUnauthorized
		case common.ErrCodeNotFound:
			status = http.StatusNotFound
		case common.ErrCodeConflict:
			status = http.StatusConflict
		}
		c.JSON(status, common.NewErrorResponse(defaultCode, defaultMessage, err.Error()))
	}
}
