package emailai

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultSafetyThreshold 默认安全评分阈值
const DefaultSafetyThreshold = 0.8

// 各类风险的评分扣减
const (
	riskProhibitedPattern = 0.3
	riskExcessiveCaps     = 0.2
	riskExcessiveExclaim  = 0.1

	capsRatioLimit    = 0.5
	exclamationLimit  = 3
)

// prohibitedPatterns 垃圾营销/钓鱼/欺诈常见用语，小写匹配
var prohibitedPatterns = []string{
	"click here now",
	"act fast",
	"act now",
	"free money",
	"limited time only",
	"urgent",
	"congratulations you won",
	"claim your",
	"100% free",
	"no risk",
	"guaranteed income",
	"double your",
	"make money fast",
	"wire transfer",
	"verify your account",
	"confirm your password",
	"once in a lifetime",
}

// Classifier 内容安全分类策略接口
//
// 可插拔：更严格或基于模型的分类器可替换默认启发式实现，
// 编排层不感知具体实现。
type Classifier interface {
	Assess(text string) SafetyAssessment
}

// HeuristicClassifier 启发式安全分类器
//
// 纯函数、无 I/O、对任意输入（空串、纯空白、单字符）都不会失败。
// 这是挡在模型前面的廉价、可解释的确定性闸门，不替代模型侧安全能力。
type HeuristicClassifier struct {
	threshold float64
	patterns  []string
}

// NewHeuristicClassifier 创建启发式分类器；threshold <= 0 时使用默认阈值
func NewHeuristicClassifier(threshold float64) *HeuristicClassifier {
	if threshold <= 0 {
		threshold = DefaultSafetyThreshold
	}
	return &HeuristicClassifier{
		threshold: threshold,
		patterns:  prohibitedPatterns,
	}
}

// Assess 对文本做确定性安全评估
//
// 评分算法：从 risk = 0 开始累计，
// 每命中一个违禁用语 +0.3，大写字母占比超过 0.5 +0.2，
// 感叹号超过 3 个 +0.1；score = max(0, 1-risk)。
func (c *HeuristicClassifier) Assess(text string) SafetyAssessment {
	risk := 0.0
	issues := []string{}

	lower := strings.ToLower(text)
	for _, pattern := range c.patterns {
		if strings.Contains(lower, pattern) {
			issues = append(issues, fmt.Sprintf("Prohibited pattern detected: %q", pattern))
			risk += riskProhibitedPattern
		}
	}

	if ratio := upperCaseRatio(text); ratio > capsRatioLimit {
		issues = append(issues, "Excessive capitalization detected")
		risk += riskExcessiveCaps
	}

	if strings.Count(text, "!") > exclamationLimit {
		issues = append(issues, "Excessive exclamation marks")
		risk += riskExcessiveExclaim
	}

	score := 1.0 - risk
	if score < 0 {
		score = 0
	}

	return SafetyAssessment{
		Safe:   score >= c.threshold,
		Score:  score,
		Issues: issues,
	}
}

// upperCaseRatio 大写字母数量占文本总长度的比例；空文本返回 0
func upperCaseRatio(text string) float64 {
	runes := []rune(text)
	if len(runes) == 0 {
		return 0
	}
	upper := 0
	for _, r := range runes {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper) / float64(len(runes))
}
