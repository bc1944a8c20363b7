package emailai

import (
	"errors"
	"net/http"

	"crmbackend/api/handlers/common"
	"crmbackend/internal/emailai"
	"crmbackend/internal/gates"
	"crmbackend/internal/identity"

	"github.com/gin-gonic/gin"
)

// Handler 邮件内容生成 API 处理器
type Handler struct {
	service *emailai.Service
}

// NewHandler 创建处理器
func NewHandler(service *emailai.Service) *Handler {
	return &Handler{service: service}
}

// generateRequest 各能力通用的请求外层：上下文 + 调用选项
type generateRequest[T any] struct {
	Context T               `json:"context" binding:"required"`
	Options requestOptions  `json:"options"`
}

// requestOptions 请求级调用选项
type requestOptions struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
	MaxRetries  int     `json:"maxRetries"`
}

// buildOptions 组装生成选项，身份来自请求上下文
func buildOptions(c *gin.Context, opts requestOptions) (emailai.GenerationOptions, bool) {
	actor, ok := identity.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, common.ErrorResponse{Message: "未认证"})
		return emailai.GenerationOptions{}, false
	}
	return emailai.GenerationOptions{
		Actor:       actor,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		MaxRetries:  opts.MaxRetries,
	}, true
}

// GenerateSubject 生成邮件主题
// POST /api/email-ai/subject
func (h *Handler) GenerateSubject(c *gin.Context) {
	var req generateRequest[emailai.SubjectContext]
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Message: err.Error()})
		return
	}

	opts, ok := buildOptions(c, req.Options)
	if !ok {
		return
	}

	result, err := h.service.GenerateSubject(c.Request.Context(), &req.Context, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GenerateBody 生成邮件正文
// POST /api/email-ai/body
func (h *Handler) GenerateBody(c *gin.Context) {
	var req generateRequest[emailai.BodyContext]
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Message: err.Error()})
		return
	}

	opts, ok := buildOptions(c, req.Options)
	if !ok {
		return
	}

	result, err := h.service.GenerateBody(c.Request.Context(), &req.Context, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// OptimizeTemplate 优化邮件模板
// POST /api/email-ai/template
func (h *Handler) OptimizeTemplate(c *gin.Context) {
	var req generateRequest[emailai.TemplateContext]
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Message: err.Error()})
		return
	}

	opts, ok := buildOptions(c, req.Options)
	if !ok {
		return
	}

	result, err := h.service.OptimizeTemplate(c.Request.Context(), &req.Context, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// PersonalizeContent 个性化改写
// POST /api/email-ai/personalize
func (h *Handler) PersonalizeContent(c *gin.Context) {
	var req generateRequest[emailai.PersonalizeContext]
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Message: err.Error()})
		return
	}

	opts, ok := buildOptions(c, req.Options)
	if !ok {
		return
	}

	result, err := h.service.PersonalizeContent(c.Request.Context(), &req.Context, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// respondError 将管线错误映射为 HTTP 状态码
//
// 管线保证错误类型精确、消息指明具体原因（如缺失的必含词条），
// 这里只做状态码映射，消息原样透传给调用方自纠。
func respondError(c *gin.Context, err error) {
	var (
		ksErr  *gates.KillSwitchError
		famErr *gates.FamilyDisabledError
		capErr *gates.CapabilityDisabledError
		cvErr  *emailai.ConstraintViolationError
		svErr  *emailai.SafetyViolationError
		vErr   *emailai.ValidationError
		pErr   *emailai.ProviderError
	)

	switch {
	case errors.As(err, &ksErr):
		c.JSON(http.StatusServiceUnavailable, common.ErrorResponse{Message: err.Error()})
	case errors.As(err, &famErr), errors.As(err, &capErr):
		c.JSON(http.StatusForbidden, common.ErrorResponse{Message: err.Error()})
	case errors.As(err, &cvErr), errors.As(err, &svErr):
		c.JSON(http.StatusUnprocessableEntity, common.ErrorResponse{Message: err.Error()})
	case errors.As(err, &vErr), errors.As(err, &pErr):
		c.JSON(http.StatusBadGateway, common.ErrorResponse{Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Message: err.Error()})
	}
}
