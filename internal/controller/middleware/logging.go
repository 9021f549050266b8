package middleware

import (
	"strconv"
	"time"

	"github.com/Freeeeeet/office_hours/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccessLog пишет строку журнала на каждый запрос и замеряет длительность
func AccessLog(logger *zap.Logger, recorder *metrics.Recorder, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		latency := time.Since(start)

		recorder.ObserveRequest(c.Request.Method, route, strconv.Itoa(status), latency.Seconds())

		if _, ok := skip[c.Request.URL.Path]; ok {
			return
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", GetRequestID(c)),
		}

		switch {
		case status >= 500:
			logger.Error("HTTP request", fields...)
		case status >= 400:
			logger.Warn("HTTP request", fields...)
		default:
			logger.Info("HTTP request", fields...)
		}
	}
}
