package emailai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"crmbackend/internal/audit"
	"crmbackend/internal/config"
	"crmbackend/internal/emailai"
	"crmbackend/internal/gates"
	"crmbackend/internal/identity"
	"crmbackend/internal/logger"
	"crmbackend/pkg/aiinterface"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== 测试伪实现 =====

type stubEnforcer struct {
	err error
}

func (e *stubEnforcer) Enforce(ctx context.Context, actor gates.Actor, familyKey, capabilityKey string) error {
	return e.err
}

type stubClient struct {
	content string
	err     error
}

func (c *stubClient) ChatCompletion(ctx context.Context, req *aiinterface.ChatCompletionRequest) (*aiinterface.ChatCompletionResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &aiinterface.ChatCompletionResponse{Content: c.content}, nil
}

func (c *stubClient) Name() string { return "stub" }
func (c *stubClient) Close() error { return nil }

type stubRecorder struct{}

func (r *stubRecorder) Record(ctx context.Context, entry audit.Entry) {}

func testConfig() *config.Config {
	return &config.Config{
		AI: config.AIConfig{
			OpenAI: config.OpenAIConfig{Model: "gpt-4o-mini"},
		},
		EmailAI: config.EmailAIConfig{
			MaxSubjectLength: 78,
			MaxBodyLength:    5000,
			MaxRetries:       0,
			BackoffBaseMs:    1,
			SafetyThreshold:  0.8,
		},
	}
}

func setupRouter(t *testing.T, enforcer gates.Enforcer, client aiinterface.ModelClient) *gin.Engine {
	t.Helper()
	logger.InitForTest()
	gin.SetMode(gin.TestMode)

	service := emailai.NewService(enforcer, client, &stubRecorder{}, nil, testConfig())
	handler := NewHandler(service)

	r := gin.New()
	group := r.Group("/api/email-ai", identity.Middleware())
	group.POST("/subject", handler.GenerateSubject)
	group.POST("/body", handler.GenerateBody)
	group.POST("/template", handler.OptimizeTemplate)
	group.POST("/personalize", handler.PersonalizeContent)
	return r
}

func doPost(t *testing.T, r *gin.Engine, path string, payload any, withIdentity bool) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if withIdentity {
		req.Header.Set(identity.HeaderTenantID, "tenant-1")
		req.Header.Set(identity.HeaderUserID, "user-1")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ===== 用例 =====

// TestGenerateSubjectOK 主题生成成功返回 200 与结果 JSON
func TestGenerateSubjectOK(t *testing.T) {
	client := &stubClient{content: `{"subject":"Your April invoice is ready","confidence":0.9,"reasoning":"direct","alternatives":[]}`}
	r := setupRouter(t, &stubEnforcer{}, client)

	w := doPost(t, r, "/api/email-ai/subject", gin.H{
		"context": gin.H{"purpose": "billing notice", "audience": "customers"},
	}, true)

	require.Equal(t, http.StatusOK, w.Code)
	var result emailai.SubjectResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "Your April invoice is ready", result.Subject)
}

// TestGenerateSubjectMissingIdentity 缺少身份头返回 401
func TestGenerateSubjectMissingIdentity(t *testing.T) {
	r := setupRouter(t, &stubEnforcer{}, &stubClient{})

	w := doPost(t, r, "/api/email-ai/subject", gin.H{
		"context": gin.H{"purpose": "p"},
	}, false)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestGenerateSubjectBadJSON 非法请求体返回 400
func TestGenerateSubjectBadJSON(t *testing.T) {
	r := setupRouter(t, &stubEnforcer{}, &stubClient{})

	req := httptest.NewRequest(http.MethodPost, "/api/email-ai/subject", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(identity.HeaderTenantID, "tenant-1")
	req.Header.Set(identity.HeaderUserID, "user-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestKillSwitchMapsTo503 紧急停用开关激活时返回 503
func TestKillSwitchMapsTo503(t *testing.T) {
	enforcer := &stubEnforcer{err: &gates.KillSwitchError{System: emailai.SystemName}}
	r := setupRouter(t, enforcer, &stubClient{})

	w := doPost(t, r, "/api/email-ai/body", gin.H{
		"context": gin.H{"purpose": "p", "tone": "professional"},
	}, true)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "temporarily disabled")
}

// TestFamilyDisabledMapsTo403 功能族未开通返回 403
func TestFamilyDisabledMapsTo403(t *testing.T) {
	enforcer := &stubEnforcer{err: &gates.FamilyDisabledError{Family: emailai.SystemName}}
	r := setupRouter(t, enforcer, &stubClient{})

	w := doPost(t, r, "/api/email-ai/subject", gin.H{
		"context": gin.H{"purpose": "p"},
	}, true)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "not enabled")
}

// TestConstraintViolationMapsTo422 约束校验失败返回 422
func TestConstraintViolationMapsTo422(t *testing.T) {
	client := &stubClient{content: `{"subject":"A quiet update","confidence":0.9,"reasoning":"r","alternatives":[]}`}
	r := setupRouter(t, &stubEnforcer{}, client)

	w := doPost(t, r, "/api/email-ai/subject", gin.H{
		"context": gin.H{"purpose": "p", "mustInclude": []string{"invoice"}},
	}, true)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "missing required content")
}

// TestProviderErrorMapsTo502 模型提供商故障返回 502
func TestProviderErrorMapsTo502(t *testing.T) {
	client := &stubClient{err: errors.New("connection refused")}
	r := setupRouter(t, &stubEnforcer{}, client)

	w := doPost(t, r, "/api/email-ai/template", gin.H{
		"context": gin.H{"purpose": "newsletter", "existingTemplate": "<p>hi</p>", "goals": []string{"improve readability"}},
		"options": gin.H{"maxRetries": -1},
	}, true)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

// TestPersonalizeOK 个性化改写成功
func TestPersonalizeOK(t *testing.T) {
	client := &stubClient{content: "SUBJECT: Hi Alice\nBODY:\nDear Alice, a note for Acme."}
	r := setupRouter(t, &stubEnforcer{}, client)

	w := doPost(t, r, "/api/email-ai/personalize", gin.H{
		"context": gin.H{
			"subject": "Hi",
			"body":    "a note",
			"profile": gin.H{"name": "Alice", "company": "Acme"},
		},
	}, true)

	require.Equal(t, http.StatusOK, w.Code)
	var result emailai.PersonalizeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "Hi Alice", result.Subject)
	assert.Greater(t, result.PersonalizationScore, 0.0)
}
