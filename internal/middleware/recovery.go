package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/trashposts/post-search/internal/errs"
)

func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered",
					zap.Any("error", r),
					zap.String("request_id", GetRequestID(c)),
					zap.String("stack", string(debug.Stack())))

				errs.HandleError(c, errs.New(errs.ErrInternal, "internal server error"))
			}
		}()
		c.Next()
	}
}
