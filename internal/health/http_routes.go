package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RegisterHTTPRoutes 注册详细健康报告路由。
// 轻量探针（/healthz /readyz）由 httpserver 包负责，这里只暴露
// 带逐项结果的 GET /health。
func RegisterHTTPRoutes(r *gin.Engine, aggregator *Aggregator) {
	r.GET("/health", func(c *gin.Context) {
		ctx := c.Request.Context()

		results := aggregator.CheckAll(ctx)
		overall := aggregator.OverallStatus(ctx)

		// Degraded 仍返回200，表示可以服务
		code := http.StatusOK
		if overall == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, HealthReport{
			Status:    overall,
			Timestamp: time.Now(),
			Checks:    results,
		})
	})
}
