// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"nearby/internal/http/handlers"
	"nearby/internal/http/middleware"
	"nearby/internal/infra"
	"nearby/internal/modules/location"
)

type RouterDeps struct {
	Sessions handlers.Sessions
	Location *location.Service
	Verifier infra.TokenVerifier
	Logger   logrus.FieldLogger
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger), middleware.Logging(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	searchHandler := handlers.NewSearchHandler(deps.Sessions)
	api.PUT("/search/query", searchHandler.SetQuery)
	api.GET("/search", searchHandler.Get)
	api.GET("/search/stream", searchHandler.Stream)
	api.POST("/search/results/:id/eta", searchHandler.Enrich)

	locationHandler := handlers.NewLocationHandler(deps.Sessions)
	api.GET("/location", locationHandler.Get)
	api.POST("/location/access", locationHandler.RequestAccess)
	api.POST("/location/refresh", locationHandler.Refresh)

	deviceHandler := handlers.NewDeviceHandler(deps.Location)
	api.PUT("/device/location", deviceHandler.ReportLocation)
	api.PUT("/device/permission", deviceHandler.ReportPermission)
	api.GET("/device/prompt", deviceHandler.Prompt)

	return r
}

// MetricsHandler exposes the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
