package gates

import (
	"context"
	"sync"
	"time"

	"crmbackend/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Checker 功能开关查询接口
//
// 对管线而言这是一个黑盒布尔判定；查询失败时按关闭处理（fail closed）。
type Checker interface {
	CheckGate(ctx context.Context, actor Actor, gateKey string) bool
}

// Enforcer 三级授权检查接口：紧急停用开关 → 功能族 → 具体能力
type Enforcer interface {
	Enforce(ctx context.Context, actor Actor, familyKey, capabilityKey string) error
}

// cacheEntry 内存缓存条目
type cacheEntry struct {
	enabled  bool
	expireAt time.Time
}

// Service 功能开关服务
//
// 数据库为权威来源，之上叠加进程内缓存与可选的 Redis 缓存层。
// 紧急停用开关以全局记录（tenant_id 为空）存储，不受租户覆盖影响。
type Service struct {
	db            *gorm.DB
	rdb           redis.UniversalClient // 可为 nil
	system        string                // 系统展示名，用于错误消息
	killSwitchKey string
	cacheTTL      time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry // key: tenantID + "\x00" + gateKey
}

// NewService 创建功能开关服务
// rdb 传 nil 时只使用数据库 + 进程内缓存。
func NewService(db *gorm.DB, rdb redis.UniversalClient, system, killSwitchKey string, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Service{
		db:            db,
		rdb:           rdb,
		system:        system,
		killSwitchKey: killSwitchKey,
		cacheTTL:      cacheTTL,
		cache:         make(map[string]cacheEntry),
	}
}

// AutoMigrate 自动迁移表结构
func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&FeatureGate{})
}

// Warm 预热：首次使用前加载全局开关，保证紧急停用开关立即可用
func (s *Service) Warm(ctx context.Context) error {
	var global []FeatureGate
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", "").Find(&global).Error; err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range global {
		s.cache[cacheKey("", g.GateKey)] = cacheEntry{
			enabled:  g.Enabled,
			expireAt: time.Now().Add(s.cacheTTL),
		}
	}
	return nil
}

// Enforce 按固定顺序做三级检查，任一失败立即短路返回对应错误。
//
// 紧急停用开关必须最先且独立检查，保证运营侧一键停用对所有租户生效。
func (s *Service) Enforce(ctx context.Context, actor Actor, familyKey, capabilityKey string) error {
	// 1. 全局紧急停用开关：激活即拒绝
	if s.killSwitchActive(ctx) {
		return &KillSwitchError{System: s.system}
	}

	// 2. 功能族开关
	if !s.CheckGate(ctx, actor, familyKey) {
		return &FamilyDisabledError{Family: s.system}
	}

	// 3. 具体能力开关
	if !s.CheckGate(ctx, actor, capabilityKey) {
		return &CapabilityDisabledError{Key: capabilityKey}
	}

	return nil
}

// killSwitchActive 查询全局紧急停用开关状态
func (s *Service) killSwitchActive(ctx context.Context) bool {
	enabled, found := s.lookup(ctx, "", s.killSwitchKey)
	return found && enabled
}

// CheckGate 查询租户级开关；无记录或查询失败时按关闭处理
func (s *Service) CheckGate(ctx context.Context, actor Actor, gateKey string) bool {
	enabled, found := s.lookup(ctx, actor.TenantID, gateKey)
	return found && enabled
}

// lookup 按内存缓存 → Redis → 数据库的顺序查询开关
func (s *Service) lookup(ctx context.Context, tenantID, gateKey string) (enabled bool, found bool) {
	key := cacheKey(tenantID, gateKey)

	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && time.Now().Before(entry.expireAt) {
		return entry.enabled, true
	}

	if s.rdb != nil {
		if val, err := s.rdb.Get(ctx, redisKey(tenantID, gateKey)).Result(); err == nil {
			enabled = val == "1"
			s.fillCache(key, enabled)
			return enabled, true
		}
	}

	var gate FeatureGate
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND gate_key = ?", tenantID, gateKey).
		First(&gate).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			logger.Warn("功能开关查询失败",
				zap.String("tenant_id", tenantID),
				zap.String("gate_key", gateKey),
				zap.Error(err),
			)
		}
		// 无记录时也写入负缓存，避免每次请求都打到数据库
		s.fillCache(key, false)
		return false, false
	}

	s.fillCache(key, gate.Enabled)
	if s.rdb != nil {
		val := "0"
		if gate.Enabled {
			val = "1"
		}
		_ = s.rdb.Set(ctx, redisKey(tenantID, gateKey), val, s.cacheTTL).Err()
	}

	return gate.Enabled, true
}

// SetGate 写入或更新开关，并使相关缓存失效
func (s *Service) SetGate(ctx context.Context, gate *FeatureGate) error {
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND gate_key = ?", gate.TenantID, gate.GateKey).
		Assign(map[string]interface{}{
			"enabled":     gate.Enabled,
			"description": gate.Description,
			"updated_by":  gate.UpdatedBy,
		}).
		FirstOrCreate(gate).Error
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.cache, cacheKey(gate.TenantID, gate.GateKey))
	s.mu.Unlock()

	if s.rdb != nil {
		_ = s.rdb.Del(ctx, redisKey(gate.TenantID, gate.GateKey)).Err()
	}
	return nil
}

// ListGates 列出指定租户的全部开关记录；tenantID 为空时列出全局开关
func (s *Service) ListGates(ctx context.Context, tenantID string) ([]FeatureGate, error) {
	var result []FeatureGate
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("gate_key").
		Find(&result).Error
	return result, err
}

func (s *Service) fillCache(key string, enabled bool) {
	s.mu.Lock()
	s.cache[key] = cacheEntry{enabled: enabled, expireAt: time.Now().Add(s.cacheTTL)}
	s.mu.Unlock()
}

func cacheKey(tenantID, gateKey string) string {
	return tenantID + "\x00" + gateKey
}

func redisKey(tenantID, gateKey string) string {
	if tenantID == "" {
		return "gates:global:" + gateKey
	}
	return "gates:" + tenantID + ":" + gateKey
}
