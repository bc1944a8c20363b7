package audit

import (
	"context"
	"time"

	"crmbackend/internal/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Entry 单次生成调用的审计内容
type Entry struct {
	TenantID   string
	ActorID    string
	Capability string
	Model      string
	Prompt     string
	Response   string
	Success    bool
	Duration   time.Duration
	Err        error // 可为 nil
}

// Recorder 审计记录接口
//
// Record 对调用方控制流是 fire-and-forget 的：写入失败只在本地记日志，
// 绝不向上传播，也不能替换调用方自身的结果或错误。
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// DBRecorder 基于数据库的审计记录器，进程内只构造一个实例并按引用传递。
type DBRecorder struct {
	db *gorm.DB
}

// NewDBRecorder 创建审计记录器
func NewDBRecorder(db *gorm.DB) *DBRecorder {
	return &DBRecorder{db: db}
}

// AutoMigrate 自动迁移表结构
func (r *DBRecorder) AutoMigrate() error {
	return r.db.AutoMigrate(&GenerationAuditRecord{})
}

// Record 写入一条审计记录；失败时静默记日志，不中断业务流程
func (r *DBRecorder) Record(ctx context.Context, entry Entry) {
	record := &GenerationAuditRecord{
		TenantID:   entry.TenantID,
		ActorID:    entry.ActorID,
		Capability: entry.Capability,
		Model:      entry.Model,
		Prompt:     truncate(entry.Prompt, MaxPromptLength),
		Response:   truncate(entry.Response, MaxResponseLength),
		Success:    entry.Success,
		DurationMs: entry.Duration.Milliseconds(),
	}
	if entry.Err != nil {
		record.Error = truncate(entry.Err.Error(), MaxErrorLength)
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		logger.Error("审计记录写入失败",
			zap.String("tenant_id", entry.TenantID),
			zap.String("capability", entry.Capability),
			zap.Error(err),
		)
	}
}

// CountByTenant 按租户统计审计记录数，供运营报表使用
func (r *DBRecorder) CountByTenant(ctx context.Context, tenantID string, since time.Time) (total, failed int64, err error) {
	base := r.db.WithContext(ctx).Model(&GenerationAuditRecord{}).
		Where("tenant_id = ? AND created_at >= ?", tenantID, since)

	if err = base.Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err = r.db.WithContext(ctx).Model(&GenerationAuditRecord{}).
		Where("tenant_id = ? AND created_at >= ? AND success = ?", tenantID, since, false).
		Count(&failed).Error
	return total, failed, err
}
