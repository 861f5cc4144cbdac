package middleware

import (
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/pkg/appctx"
	"github.com/Ramsey-B/clover/pkg/metrics"
)

// quietPrefixes are polled by probes and scrapers; they log at debug
var quietPrefixes = []string{"/metrics", "/api/v1/health"}

func isQuiet(path string) bool {
	for _, prefix := range quietPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Logger writes one structured line per request and records its latency
func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)

			req := c.Request()
			res := c.Response()
			ctx := req.Context()

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordHTTPRequest(req.Method, route, res.Status, elapsed.Seconds())

			log := logger.WithContext(ctx).WithFields(map[string]any{
				"request_id":    appctx.GetRequestID(ctx),
				"user_id":       appctx.GetUserID(ctx),
				"method":        req.Method,
				"uri":           req.RequestURI,
				"route":         route,
				"status":        res.Status,
				"remote_ip":     c.RealIP(),
				"response_ms":   elapsed.Milliseconds(),
				"response_size": res.Size,
			})
			if isQuiet(req.URL.Path) {
				log.Debug("Request")
			} else {
				log.Info("Request")
			}
			return nil
		}
	}
}
