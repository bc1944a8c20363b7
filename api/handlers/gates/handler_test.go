package gates

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crmbackend/internal/gates"
	"crmbackend/internal/identity"
	"crmbackend/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRouter(t *testing.T) (*gin.Engine, *gates.Service) {
	t.Helper()
	logger.InitForTest()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	service := gates.NewService(db, nil, "Email AI", "email_ai_kill_switch", time.Minute)
	require.NoError(t, service.AutoMigrate())

	handler := NewHandler(service)
	r := gin.New()
	group := r.Group("/api/admin/gates", identity.Middleware())
	group.PUT("", handler.SetGate)
	group.GET("", handler.ListGates)
	return r, service
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(identity.HeaderTenantID, "ops-tenant")
	req.Header.Set(identity.HeaderUserID, "ops-user")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// TestSetGateCreatesRecord 设置开关后可查询到记录
func TestSetGateCreatesRecord(t *testing.T) {
	r, service := setupRouter(t)

	w := doRequest(t, r, http.MethodPut, "/api/admin/gates", gin.H{
		"tenantId":    "tenant-1",
		"gateKey":     "email_ai",
		"enabled":     true,
		"description": "开通邮件功能族",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var gate gates.FeatureGate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &gate))
	assert.NotEmpty(t, gate.ID)
	assert.Equal(t, "ops-user", gate.UpdatedBy)

	assert.True(t, service.CheckGate(context.Background(), gates.Actor{TenantID: "tenant-1"}, "email_ai"))
}

// TestSetGateMissingKey 缺少 gateKey 返回 400
func TestSetGateMissingKey(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(t, r, http.MethodPut, "/api/admin/gates", gin.H{
		"tenantId": "tenant-1",
		"enabled":  true,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestListGatesByTenant 按租户列出开关，不混入其他租户
func TestListGatesByTenant(t *testing.T) {
	r, _ := setupRouter(t)

	for _, payload := range []gin.H{
		{"tenantId": "tenant-1", "gateKey": "email_ai", "enabled": true},
		{"tenantId": "tenant-1", "gateKey": "email_ai_subject", "enabled": true},
		{"tenantId": "tenant-2", "gateKey": "email_ai", "enabled": false},
	} {
		w := doRequest(t, r, http.MethodPut, "/api/admin/gates", payload)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doRequest(t, r, http.MethodGet, "/api/admin/gates?tenantId=tenant-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Gates []gates.FeatureGate `json:"gates"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Gates, 2)
}

// TestListGlobalGates 不带 tenantId 时列出全局开关
func TestListGlobalGates(t *testing.T) {
	r, _ := setupRouter(t)

	w := doRequest(t, r, http.MethodPut, "/api/admin/gates", gin.H{
		"gateKey": "email_ai_kill_switch",
		"enabled": true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, r, http.MethodGet, "/api/admin/gates", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Gates []gates.FeatureGate `json:"gates"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Gates, 1)
	assert.Equal(t, "email_ai_kill_switch", resp.Gates[0].GateKey)
}
