package gates

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FeatureGate 功能开关
//
// tenant_id 为空字符串表示全局开关（如紧急停用开关），
// 否则为租户级覆盖。同一 (tenant_id, gate_key) 只允许一条记录。
type FeatureGate struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	TenantID string `json:"tenantId" gorm:"size:64;not null;default:'';uniqueIndex:idx_gate_tenant_key"`
	GateKey  string `json:"gateKey" gorm:"size:128;not null;uniqueIndex:idx_gate_tenant_key"`
	Enabled  bool   `json:"enabled" gorm:"not null;default:false"`

	// 说明信息，便于运营排查
	Description string `json:"description" gorm:"size:255"`
	UpdatedBy   string `json:"updatedBy" gorm:"size:64"`

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

// TableName 指定表名
func (FeatureGate) TableName() string {
	return "feature_gates"
}

// BeforeCreate 创建前自动生成 ID
func (g *FeatureGate) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.New().String()
	}
	return nil
}

// Actor 请求主体标识
type Actor struct {
	TenantID string `json:"tenantId"`
	UserID   string `json:"userId"`
}
