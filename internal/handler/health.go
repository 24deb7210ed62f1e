package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trashposts/post-search/internal/service"
)

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "post-search",
		"time":    time.Now().Unix(),
	})
}

// Ready reports whether the search backend answers a ping.
func Ready(svc service.PostServicer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ready": true})
	}
}

// Index GET / is the connectivity check the web client calls on load.
func Index(svc service.PostServicer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusOK, gin.H{
				"status":  "failure",
				"message": "backend cannot connect to elasticsearch",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "backend is connected to elasticsearch",
		})
	}
}
