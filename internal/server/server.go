package server

import (
	"context"

	"stockledger/internal/handler"
	"stockledger/internal/middleware"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// HealthCheck は依存先（DBなど）の疎通確認。nil なら常にOK
type HealthCheck func(ctx context.Context) error

// New は middleware とルートを載せた echo を返す。起動・停止は呼び出し側。
func New(logger zerolog.Logger, health HealthCheck, invH *handler.InventoryHandler, adminH *handler.AdminInventoryHandler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(logger))

	RegisterRoutes(e, health, invH, adminH)
	return e
}
