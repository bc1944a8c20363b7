package emailai

import (
	"fmt"
	"strings"
)

// ProviderError 模型提供商调用在重试耗尽后仍然失败
type ProviderError struct {
	Capability Capability
	Err        error // 最后一次底层错误
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("AI provider request failed for %s generation: %v", e.Capability, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ValidationError 结构化输出不符合预期模式
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "generated output did not match expected schema: " + e.Reason
}

// SafetyViolationError 主输出未通过安全分类器
type SafetyViolationError struct {
	Field      string // 触发字段，如 subject、body
	Assessment SafetyAssessment
}

func (e *SafetyViolationError) Error() string {
	msg := fmt.Sprintf("generated %s failed safety check (score %.2f)", e.Field, e.Assessment.Score)
	if len(e.Assessment.Issues) > 0 {
		msg += ": " + strings.Join(e.Assessment.Issues, "; ")
	}
	return msg
}

// ConstraintKind 约束违规类型
type ConstraintKind string

const (
	ConstraintMissing   ConstraintKind = "missing"   // 缺少必须包含的内容
	ConstraintForbidden ConstraintKind = "forbidden" // 出现禁止的内容
)

// ConstraintViolationError 约束校验失败，消息中指明具体违规词条
type ConstraintViolationError struct {
	Kind ConstraintKind
	Term string
}

func (e *ConstraintViolationError) Error() string {
	if e.Kind == ConstraintMissing {
		return fmt.Sprintf("missing required content: %q", e.Term)
	}
	return fmt.Sprintf("prohibited content detected: %q", e.Term)
}
