package gates

import (
	"context"
	"testing"
	"time"

	"crmbackend/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	testSystem     = "Email AI"
	testKillSwitch = "email_ai_kill_switch"
	testFamily     = "email_ai"
	testCapability = "email_ai_subject"
)

// setupTestService 创建测试数据库与服务
func setupTestService(t *testing.T) *Service {
	logger.InitForTest()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	svc := NewService(db, nil, testSystem, testKillSwitch, time.Minute)
	require.NoError(t, svc.AutoMigrate())
	return svc
}

// enableGate 写入一条启用的开关记录
func enableGate(t *testing.T, svc *Service, tenantID, key string, enabled bool) {
	err := svc.SetGate(context.Background(), &FeatureGate{
		TenantID: tenantID,
		GateKey:  key,
		Enabled:  enabled,
	})
	require.NoError(t, err)
}

// TestEnforceAllEnabled 全部开关启用时放行
func TestEnforceAllEnabled(t *testing.T) {
	svc := setupTestService(t)
	actor := Actor{TenantID: "tenant1", UserID: "user1"}

	enableGate(t, svc, "tenant1", testFamily, true)
	enableGate(t, svc, "tenant1", testCapability, true)

	err := svc.Enforce(context.Background(), actor, testFamily, testCapability)
	assert.NoError(t, err)
}

// TestEnforceKillSwitchFirst 紧急停用开关优先于其它开关状态
func TestEnforceKillSwitchFirst(t *testing.T) {
	svc := setupTestService(t)
	actor := Actor{TenantID: "tenant1", UserID: "user1"}

	// 即使功能族和能力都启用，停用开关激活时也必须拒绝
	enableGate(t, svc, "tenant1", testFamily, true)
	enableGate(t, svc, "tenant1", testCapability, true)
	enableGate(t, svc, "", testKillSwitch, true)

	err := svc.Enforce(context.Background(), actor, testFamily, testCapability)
	require.Error(t, err)

	var ksErr *KillSwitchError
	assert.ErrorAs(t, err, &ksErr)
	assert.Contains(t, err.Error(), "temporarily disabled")
}

// TestEnforceFamilyDisabled 功能族未启用时短路，不再检查具体能力
func TestEnforceFamilyDisabled(t *testing.T) {
	svc := setupTestService(t)
	actor := Actor{TenantID: "tenant1", UserID: "user1"}

	enableGate(t, svc, "tenant1", testCapability, true)

	err := svc.Enforce(context.Background(), actor, testFamily, testCapability)
	require.Error(t, err)

	var famErr *FamilyDisabledError
	assert.ErrorAs(t, err, &famErr)
	assert.Contains(t, err.Error(), "not enabled for this user")
}

// TestEnforceCapabilityDisabled 能力未启用时返回具体错误并指明开关键
func TestEnforceCapabilityDisabled(t *testing.T) {
	svc := setupTestService(t)
	actor := Actor{TenantID: "tenant1", UserID: "user1"}

	enableGate(t, svc, "tenant1", testFamily, true)

	err := svc.Enforce(context.Background(), actor, testFamily, testCapability)
	require.Error(t, err)

	var capErr *CapabilityDisabledError
	assert.ErrorAs(t, err, &capErr)
	assert.Contains(t, err.Error(), testCapability)
}

// TestCheckGateDefaultClosed 无记录时按关闭处理
func TestCheckGateDefaultClosed(t *testing.T) {
	svc := setupTestService(t)
	actor := Actor{TenantID: "tenant1", UserID: "user1"}

	assert.False(t, svc.CheckGate(context.Background(), actor, "unknown_gate"))
}

// TestCheckGateTenantIsolation 不同租户的开关互不影响
func TestCheckGateTenantIsolation(t *testing.T) {
	svc := setupTestService(t)

	enableGate(t, svc, "tenant1", testFamily, true)

	assert.True(t, svc.CheckGate(context.Background(), Actor{TenantID: "tenant1"}, testFamily))
	assert.False(t, svc.CheckGate(context.Background(), Actor{TenantID: "tenant2"}, testFamily))
}

// TestSetGateInvalidatesCache 更新开关后缓存立即失效
func TestSetGateInvalidatesCache(t *testing.T) {
	svc := setupTestService(t)
	actor := Actor{TenantID: "tenant1", UserID: "user1"}
	ctx := context.Background()

	enableGate(t, svc, "tenant1", testFamily, true)
	assert.True(t, svc.CheckGate(ctx, actor, testFamily))

	enableGate(t, svc, "tenant1", testFamily, false)
	assert.False(t, svc.CheckGate(ctx, actor, testFamily))
}

// TestWarmLoadsGlobalGates 预热后停用开关无需访问数据库即可命中
func TestWarmLoadsGlobalGates(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()

	enableGate(t, svc, "", testKillSwitch, true)
	require.NoError(t, svc.Warm(ctx))

	assert.True(t, svc.killSwitchActive(ctx))
}
