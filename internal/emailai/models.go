package emailai

import (
	"crmbackend/internal/gates"
)

// Capability 生成能力标识
type Capability string

const (
	CapabilitySubject     Capability = "subject"     // 邮件主题生成
	CapabilityBody        Capability = "body"        // 邮件正文生成
	CapabilityTemplate    Capability = "template"    // 模板优化
	CapabilityPersonalize Capability = "personalize" // 个性化改写
)

// 功能开关键
const (
	SystemName        = "Email AI"
	GateFamilyKey     = "email_ai"
	KillSwitchGateKey = "email_ai_kill_switch"
)

// GateKeyFor 返回能力对应的开关键
func GateKeyFor(c Capability) string {
	return GateFamilyKey + "_" + string(c)
}

// 邮件语气枚举
const (
	ToneProfessional = "professional"
	ToneFriendly     = "friendly"
	ToneFormal       = "formal"
	ToneCasual       = "casual"
	ToneUrgent       = "urgent"
)

// validTones 正文结果允许的语气集合
var validTones = map[string]bool{
	ToneProfessional: true,
	ToneFriendly:     true,
	ToneFormal:       true,
	ToneCasual:       true,
	ToneUrgent:       true,
}

// GenerationOptions 单次生成调用的选项
type GenerationOptions struct {
	Actor       gates.Actor `json:"actor"`       // 请求主体（租户 + 用户）
	Temperature float64     `json:"temperature"` // 采样温度
	MaxTokens   int         `json:"maxTokens"`   // Token 预算，0 表示使用默认
	MaxRetries  int         `json:"maxRetries"`  // 重试次数，0 表示使用配置默认，负数表示不重试
}

// SubjectContext 主题生成上下文
type SubjectContext struct {
	Purpose     string   `json:"purpose" binding:"required"` // 邮件目的
	Audience    string   `json:"audience"`                   // 目标受众
	Tone        string   `json:"tone"`                       // 期望语气
	Keywords    []string `json:"keywords"`                   // 关键词
	MustInclude []string `json:"mustInclude"`                // 必须包含的内容
	MustAvoid   []string `json:"mustAvoid"`                  // 禁止出现的内容
}

// BodyContext 正文生成上下文
type BodyContext struct {
	Purpose      string   `json:"purpose" binding:"required"`
	Audience     string   `json:"audience"`
	Tone         string   `json:"tone"`
	KeyPoints    []string `json:"keyPoints"`    // 要点列表
	CallToAction string   `json:"callToAction"` // 行动号召
	MustInclude  []string `json:"mustInclude"`
	MustAvoid    []string `json:"mustAvoid"`
}

// TemplateContext 模板优化上下文
type TemplateContext struct {
	Purpose          string   `json:"purpose" binding:"required"`
	Audience         string   `json:"audience"`
	ExistingTemplate string   `json:"existingTemplate"` // 现有模板标记文本
	Goals            []string `json:"goals"`            // 优化目标
}

// RecipientProfile 收件人画像
type RecipientProfile struct {
	Name      string   `json:"name"`
	Company   string   `json:"company"`
	Industry  string   `json:"industry"`
	Interests []string `json:"interests"`
}

// PersonalizeContext 个性化改写上下文
type PersonalizeContext struct {
	Subject string           `json:"subject" binding:"required"` // 原始主题
	Body    string           `json:"body" binding:"required"`    // 原始正文
	Profile RecipientProfile `json:"profile"`
}

// SubjectResult 主题生成结果
type SubjectResult struct {
	Subject      string   `json:"subject"`
	Confidence   float64  `json:"confidence"` // 0..1
	Reasoning    string   `json:"reasoning"`
	Alternatives []string `json:"alternatives"` // 至多 3 条，逐条独立过安全过滤
}

// BodyResult 正文生成结果
type BodyResult struct {
	Body       string  `json:"body"`
	Tone       string  `json:"tone"` // professional, friendly, formal, casual, urgent
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	// SafetyScore 由安全分类器在生成后覆写，模型自报的值不可信
	SafetyScore float64 `json:"safetyScore"`
}

// TemplateStructure 模板结构拆解
type TemplateStructure struct {
	Header string `json:"header"`
	Body   string `json:"body"`
	Footer string `json:"footer"`
	CTA    string `json:"cta"`
}

// TemplateResult 模板优化结果
type TemplateResult struct {
	Template        string            `json:"template"`  // 优化后的模板标记文本
	Variables       []string          `json:"variables"` // 占位符名称列表
	Structure       TemplateStructure `json:"structure"`
	Confidence      float64           `json:"confidence"`
	Recommendations []string          `json:"recommendations"`
}

// PersonalizeResult 个性化改写结果
type PersonalizeResult struct {
	Subject              string  `json:"subject"`
	Body                 string  `json:"body"`
	PersonalizationScore float64 `json:"personalizationScore"` // 0..1
}

// SafetyAssessment 安全评估结果
//
// 不变式：Safe == (Score >= 阈值)
type SafetyAssessment struct {
	Safe   bool     `json:"safe"`
	Score  float64  `json:"score"`  // 0..1，1.0 为最安全
	Issues []string `json:"issues"` // 按检出顺序排列的可读问题描述
}
