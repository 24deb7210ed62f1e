package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/trashposts/post-search/api"
	"github.com/trashposts/post-search/internal/handler"
	"github.com/trashposts/post-search/internal/middleware"
	"github.com/trashposts/post-search/internal/service"
)

const (
	PathHealth  = "/health"
	PathReady   = "/ready"
	PathSwagger = "/swagger"
)

type Deps struct {
	Service          service.PostServicer
	Log              *zap.Logger
	CORSOrigins      []string
	ImportMaxBytes   int64
	ImportRatePerMin int
}

func New(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	posts := handler.NewPostHandler(d.Service, log)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.AccessLog(log), middleware.Recovery(log))
	r.Use(corsMiddleware(d.CORSOrigins))

	r.GET("/", handler.Index(d.Service))
	r.GET(PathHealth, handler.Health)
	r.GET(PathReady, handler.Ready(d.Service))
	r.GET(PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, PathSwagger+"/") })
	r.GET(PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = PathSwagger + "/index.html"
			c.Request.RequestURI = PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(PathSwagger+"/openapi.json"))(c)
	})

	g := r.Group("/api")
	g.GET("/search", posts.Search)
	g.POST("/search", posts.AdvancedSearch)
	g.DELETE("/delete/:id", posts.Delete)
	g.GET("/similar/:id", posts.Similar)
	g.POST("/import",
		middleware.RateLimit(d.ImportRatePerMin),
		middleware.BodyLimit(d.ImportMaxBytes),
		posts.Import)
	g.GET("/random", posts.Random)
	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
