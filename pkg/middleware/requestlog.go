package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"acao/pkg/logger"
)

// RequestLog writes one structured line per request.
func RequestLog(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req, res := c.Request(), c.Response()
			kv := []interface{}{
				"method", req.Method,
				"path", c.Path(),
				"uri", req.RequestURI,
				"status", res.Status,
				"bytes", res.Size,
				"latency_ms", time.Since(start).Milliseconds(),
			}
			switch {
			case res.Status >= 500:
				log.Error("request", kv...)
			case res.Status >= 400:
				log.Warn("request", kv...)
			default:
				log.Info("request", kv...)
			}
			return nil
		}
	}
}
