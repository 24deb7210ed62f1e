package errs

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Error   string    `json:"error,omitempty"`
}

var errorStatusMap = map[ErrorCode]int{
	ErrInternal:    http.StatusInternalServerError,
	ErrBackend:     http.StatusBadGateway,
	ErrTimeout:     http.StatusGatewayTimeout,
	ErrUnavailable: http.StatusServiceUnavailable,

	ErrBadRequest:      http.StatusBadRequest,
	ErrValidation:      http.StatusBadRequest,
	ErrUnsupportedFile: http.StatusBadRequest,
	ErrPayloadTooLarge: http.StatusRequestEntityTooLarge,
	ErrRateLimited:     http.StatusTooManyRequests,

	ErrPostNotFound: http.StatusNotFound,
	ErrIndexEmpty:   http.StatusNotFound,
}

// StatusOf maps an error to the HTTP status it is reported with.
func StatusOf(err error) int {
	if status, ok := errorStatusMap[CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HandleError writes err as a JSON error body and aborts the gin chain.
func HandleError(c *gin.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		resp := ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
		}
		if appErr.Err != nil {
			resp.Error = appErr.Err.Error()
		}
		c.AbortWithStatusJSON(StatusOf(appErr), resp)
		return
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Code:    ErrInternal,
		Message: "Internal Server Error",
		Error:   err.Error(),
	})
}
