package api

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/Locquiano101/CnscCodexMain-sub000/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	defaultCORSHeaders = []string{
		"Content-Type", "Content-Length", "Authorization", "Accept",
		"Origin", "Cache-Control", "X-Requested-With", "X-Request-ID",
	}
	defaultCORSMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}
)

// RequestLogger 访问日志，带上 trace_id 和 actor_id
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}

		log := logger.WithContext(c.Request.Context())
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("HTTP 请求", fields...)
		case status == http.StatusTooManyRequests || status == http.StatusForbidden:
			log.Warn("HTTP 请求", fields...)
		default:
			log.Info("HTTP 请求", fields...)
		}
	}
}

// CORS 跨域中间件，CORS_ALLOW_ORIGINS 为空时允许任意来源
func CORS() gin.HandlerFunc {
	origins := envList("CORS_ALLOW_ORIGINS")
	headers := strings.Join(orDefault(envList("CORS_ALLOW_HEADERS"), defaultCORSHeaders), ", ")
	methods := strings.Join(orDefault(envList("CORS_ALLOW_METHODS"), defaultCORSMethods), ", ")

	return func(c *gin.Context) {
		h := c.Writer.Header()
		origin := c.GetHeader("Origin")

		if len(origins) == 0 {
			h.Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && slices.Contains(origins, origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}

		h.Set("Access-Control-Allow-Headers", headers)
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
		h.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
