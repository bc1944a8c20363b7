package gates

import (
	"net/http"

	"crmbackend/api/handlers/common"
	"crmbackend/internal/gates"
	"crmbackend/internal/identity"

	"github.com/gin-gonic/gin"
)

// Handler 功能开关管理接口
//
// 运营侧使用：按租户查看与设置开关。tenantId 传空字符串表示
// 全局开关（含紧急停用开关）。
type Handler struct {
	service *gates.Service
}

// NewHandler 创建处理器
func NewHandler(service *gates.Service) *Handler {
	return &Handler{service: service}
}

// setGateRequest 开关设置请求
type setGateRequest struct {
	TenantID    string `json:"tenantId"`
	GateKey     string `json:"gateKey" binding:"required"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// SetGate 写入或更新功能开关
// PUT /api/admin/gates
func (h *Handler) SetGate(c *gin.Context) {
	var req setGateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Message: err.Error()})
		return
	}

	actor, _ := identity.GetActor(c)

	gate := &gates.FeatureGate{
		TenantID:    req.TenantID,
		GateKey:     req.GateKey,
		Enabled:     req.Enabled,
		Description: req.Description,
		UpdatedBy:   actor.UserID,
	}
	if err := h.service.SetGate(c.Request.Context(), gate); err != nil {
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gate)
}

// ListGates 列出租户开关
// GET /api/admin/gates?tenantId=xxx（缺省时列出全局开关）
func (h *Handler) ListGates(c *gin.Context) {
	tenantID := c.Query("tenantId")

	result, err := h.service.ListGates(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"gates": result})
}
