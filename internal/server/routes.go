package server

import (
	"net/http"

	"stockledger/internal/handler"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo, health HealthCheck, invH *handler.InventoryHandler, adminH *handler.AdminInventoryHandler) {
	e.GET("/healthz", func(c echo.Context) error {
		if health != nil {
			if err := health(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, handler.ErrorResponse{Error: "unavailable"})
			}
		}
		return c.JSON(http.StatusOK, handler.SuccessResponse{Message: "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	invH.RegisterRoutes(e)
	adminH.RegisterRoutes(e)
}
