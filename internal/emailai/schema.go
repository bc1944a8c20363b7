package emailai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// maxAlternatives 主题备选数量上限
const maxAlternatives = 3

// extractJSON 从模型响应中提取第一个完整的 JSON 对象
//
// 模型偶尔会在 JSON 前后输出说明文字或 markdown 围栏，
// 取首个 "{" 到末个 "}" 之间的内容兜底。
func extractJSON(content string) (string, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", &ValidationError{Reason: "response contains no JSON object"}
	}
	return content[start : end+1], nil
}

// parseSubjectResult 解析并校验主题生成结果
func parseSubjectResult(content string, maxLength int) (*SubjectResult, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var result SubjectResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, &ValidationError{Reason: "invalid JSON: " + err.Error()}
	}

	if strings.TrimSpace(result.Subject) == "" {
		return nil, &ValidationError{Reason: "subject is empty"}
	}
	if runeLen(result.Subject) > maxLength {
		return nil, &ValidationError{Reason: fmt.Sprintf("subject exceeds %d characters", maxLength)}
	}
	result.Confidence = clamp01(result.Confidence)
	if len(result.Alternatives) > maxAlternatives {
		result.Alternatives = result.Alternatives[:maxAlternatives]
	}

	return &result, nil
}

// parseBodyResult 解析并校验正文生成结果
func parseBodyResult(content string, maxLength int) (*BodyResult, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var result BodyResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, &ValidationError{Reason: "invalid JSON: " + err.Error()}
	}

	if strings.TrimSpace(result.Body) == "" {
		return nil, &ValidationError{Reason: "body is empty"}
	}
	if runeLen(result.Body) > maxLength {
		return nil, &ValidationError{Reason: fmt.Sprintf("body exceeds %d characters", maxLength)}
	}
	if !validTones[result.Tone] {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown tone %q", result.Tone)}
	}
	result.Confidence = clamp01(result.Confidence)
	result.SafetyScore = clamp01(result.SafetyScore)

	return &result, nil
}

// parseTemplateResult 解析并校验模板优化结果
func parseTemplateResult(content string) (*TemplateResult, error) {
	raw, err := extractJSON(content)
	if err != nil {
		return nil, err
	}

	var result TemplateResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, &ValidationError{Reason: "invalid JSON: " + err.Error()}
	}

	if strings.TrimSpace(result.Template) == "" {
		return nil, &ValidationError{Reason: "template is empty"}
	}
	result.Confidence = clamp01(result.Confidence)

	return &result, nil
}

// parsePersonalizeText 解析个性化改写的自由文本响应
//
// 个性化能力后处理自由文本而非 JSON 模式，约定格式为
// "SUBJECT: ..." 行后跟 "BODY:" 与正文。
func parsePersonalizeText(content string) (subject, body string, err error) {
	subjectIdx := strings.Index(content, "SUBJECT:")
	bodyIdx := strings.Index(content, "BODY:")
	if subjectIdx < 0 || bodyIdx <= subjectIdx {
		return "", "", &ValidationError{Reason: "response missing SUBJECT/BODY sections"}
	}

	subject = strings.TrimSpace(content[subjectIdx+len("SUBJECT:") : bodyIdx])
	body = strings.TrimSpace(content[bodyIdx+len("BODY:"):])

	if subject == "" || body == "" {
		return "", "", &ValidationError{Reason: "personalized subject or body is empty"}
	}
	return subject, body, nil
}

// clamp01 将数值截断到 [0, 1]
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// runeLen 按字符数计算长度，避免多字节内容被误判超限
func runeLen(s string) int {
	return len([]rune(s))
}
