package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/omnik-bridge/internal/api/middleware"
	cfgpkg "github.com/taoyao-code/omnik-bridge/internal/config"
	"github.com/taoyao-code/omnik-bridge/internal/omnik"
)

// RegisterRoutes 注册遥测查询路由
func RegisterRoutes(r *gin.Engine, client *omnik.Client, authCfg cfgpkg.AuthConfig, logger *zap.Logger) {
	if r == nil || client == nil {
		return
	}

	handler := NewHandler(client, logger)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RequestID())
	if authCfg.Enabled {
		v1.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	}

	v1.GET("/inverter", handler.GetInverter)
	v1.GET("/device", handler.GetDevice)

	logger.Info("api routes registered", zap.Int("endpoints", 2))
}
