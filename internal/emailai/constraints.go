package emailai

import "strings"

// ValidateConstraints 校验生成文本是否满足内容约束
//
// 大小写不敏感的子串匹配；任一缺失的必含词条或任一出现的禁用词条
// 都立即返回错误（fail closed），错误消息指明具体词条。
func ValidateConstraints(text string, mustInclude, mustAvoid []string) error {
	lower := strings.ToLower(text)

	for _, term := range mustInclude {
		if term == "" {
			continue
		}
		if !strings.Contains(lower, strings.ToLower(term)) {
			return &ConstraintViolationError{Kind: ConstraintMissing, Term: term}
		}
	}

	for _, term := range mustAvoid {
		if term == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(term)) {
			return &ConstraintViolationError{Kind: ConstraintForbidden, Term: term}
		}
	}

	return nil
}
