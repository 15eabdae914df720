package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestLogger はリクエストごとの logger を context に入れ、終了時に1行出す。
// usecase 側は zerolog.Ctx(ctx) で同じ request_id 付きの logger を使う。
func RequestLogger(base zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			logger := base.With().
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Str("method", req.Method).
				Str("route", c.Path()).
				Logger()
			c.SetRequest(req.WithContext(logger.WithContext(req.Context())))

			start := time.Now()
			if err := next(c); err != nil {
				//ここでレスポンスを確定させてstatusを拾う
				c.Error(err)
			}

			status := c.Response().Status
			ev := logger.Info()
			if status >= 500 {
				ev = logger.Error()
			}
			ev.Int("status", status).Dur("latency", time.Since(start)).Msg("request")
			return nil
		}
	}
}
