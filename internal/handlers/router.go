package handlers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"property-search/internal/apiclient"
	"property-search/internal/boundary"
	"property-search/internal/logging"
	"property-search/internal/netstatus"
	"property-search/internal/ratelimit"
	"property-search/internal/render"
	"property-search/internal/session"
)

// RouterDeps wires the router. Monitor, Breaker and Limiter are optional.
type RouterDeps struct {
	Client      Backend
	Pages       *render.Pages
	Sessions    *session.Store
	Monitor     *netstatus.Monitor
	Breaker     *apiclient.Breaker
	Limiter     *ratelimit.RateLimiter
	CORSOrigins []string
	LogRequests bool
}

// NewRouter builds the gin engine with every route of the front end.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.HTMLRender = deps.Pages
	if deps.LogRequests {
		r.Use(logging.Middleware())
	}
	r.Use(gin.Recovery())
	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", logging.RequestIDHeader},
			ExposeHeaders:    []string{logging.RequestIDHeader},
			AllowCredentials: true,
		}))
	}

	pageHandler := NewPageHandler(deps.Client, deps.Sessions, deps.Monitor)
	apiHandler := NewAPIHandler(deps.Client, deps.Monitor, deps.Breaker, deps.Limiter)

	r.GET("/health", apiHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	pages := r.Group("/", boundary.Middleware("page", pageHandler.Fallback))
	if deps.Limiter != nil {
		pages.Use(deps.Limiter.Middleware())
	}
	{
		pages.GET("/", pageHandler.Home)
		pages.GET("/properties", pageHandler.Search)
		pages.POST("/properties/search", pageHandler.SubmitSearch)
		pages.GET("/properties/:id", pageHandler.Detail)
	}

	api := r.Group("/api", boundary.Middleware("api", boundary.JSONFallback))
	if deps.Limiter != nil {
		api.Use(deps.Limiter.Middleware())
	}
	{
		api.GET("/properties", apiHandler.GetProperties)
		api.GET("/properties/:id", apiHandler.GetProperty)
	}

	r.NoRoute(pageHandler.NotFound)
	return r
}
