package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 字段截断上限，防止超长提示词/响应撑爆审计表
const (
	MaxPromptLength   = 1000
	MaxResponseLength = 2000
	MaxErrorLength    = 500
)

// GenerationAuditRecord 生成调用审计记录
//
// 每次顶层生成调用（无论成功失败）写入一条，插入后不再修改。
type GenerationAuditRecord struct {
	ID         string `json:"id" gorm:"primaryKey;type:uuid"`
	TenantID   string `json:"tenantId" gorm:"size:64;not null;index"`
	ActorID    string `json:"actorId" gorm:"size:64;not null;index"`
	Capability string `json:"capability" gorm:"size:32;not null;index"` // subject, body, template, personalize
	Model      string `json:"model" gorm:"size:64;not null"`

	Prompt   string `json:"prompt" gorm:"size:1000"`   // 截断至 1000 字符
	Response string `json:"response" gorm:"size:2000"` // 截断至 2000 字符

	Success    bool   `json:"success" gorm:"not null;index"`
	DurationMs int64  `json:"durationMs" gorm:"not null"`
	Error      string `json:"error" gorm:"size:500"` // 截断至 500 字符

	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime;index"`
}

// TableName 指定表名
func (GenerationAuditRecord) TableName() string {
	return "generation_audit_records"
}

// BeforeCreate 创建前自动生成 ID
func (r *GenerationAuditRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// truncate 按字符数截断，避免切断多字节字符
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
