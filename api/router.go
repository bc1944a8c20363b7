package api

import (
	"net/http"

	emailaiHandlers "crmbackend/api/handlers/emailai"
	gatesHandlers "crmbackend/api/handlers/gates"
	"crmbackend/internal/config"
	"crmbackend/internal/emailai"
	"crmbackend/internal/gates"
	"crmbackend/internal/identity"
	"crmbackend/internal/metrics"

	"github.com/gin-gonic/gin"
)

// SetupRouter 组装 Gin 路由
func SetupRouter(cfg *config.Config, emailService *emailai.Service, gateService *gates.Service) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger())

	// 健康检查与监控指标（不需要身份头）
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// 邮件内容生成 API
	emailHandler := emailaiHandlers.NewHandler(emailService)
	emailGroup := router.Group("/api/email-ai", identity.Middleware())
	{
		emailGroup.POST("/subject", emailHandler.GenerateSubject)
		emailGroup.POST("/body", emailHandler.GenerateBody)
		emailGroup.POST("/template", emailHandler.OptimizeTemplate)
		emailGroup.POST("/personalize", emailHandler.PersonalizeContent)
	}

	// 功能开关管理 API（运营侧）
	gateHandler := gatesHandlers.NewHandler(gateService)
	adminGroup := router.Group("/api/admin/gates", identity.Middleware())
	{
		adminGroup.PUT("", gateHandler.SetGate)
		adminGroup.GET("", gateHandler.ListGates)
	}

	return router
}
