package api

import (
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/datallboy/gofetch/internal/api/controllers"
	"github.com/datallboy/gofetch/internal/app"
	"github.com/datallboy/gofetch/internal/metrics"
)

func RegisterRoutes(e *echo.Echo, app *app.Context) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			// route pattern, not the raw URI, keeps label cardinality bounded
			metrics.RecordHTTPRequest(v.Method, c.Path(), v.Status, v.Latency)
			return nil
		},
	}))

	transferCtrl := &controllers.TransferController{App: app}

	e.POST("/api/transfers", transferCtrl.Create)
	e.GET("/api/transfers", transferCtrl.List)
	e.GET("/api/transfers/:id", transferCtrl.Get)
	e.DELETE("/api/transfers/:id", transferCtrl.Stop)
	e.GET("/api/history", transferCtrl.History)

	// Prometheus scrape endpoint
	e.GET("/metrics", func(c *echo.Context) error {
		metrics.Handler().ServeHTTP(c.Response(), c.Request())
		return nil
	})
}
