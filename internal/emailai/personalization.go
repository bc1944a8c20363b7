package emailai

import "strings"

// 各画像字段的个性化权重
const (
	weightName     = 0.30
	weightCompany  = 0.25
	weightIndustry = 0.20
	weightInterest = 0.25
)

// ScorePersonalization 评估文本中融入了多少收件人画像信息
//
// 纯函数，对画像字段做大小写敏感的字面子串匹配（不做模糊匹配）。
// 命中规则：姓名 +0.30，公司 +0.25，行业 +0.20，
// 任一兴趣词条 +0.25；总分截断到 1.0。
func ScorePersonalization(text string, profile RecipientProfile) float64 {
	score := 0.0

	if profile.Name != "" && strings.Contains(text, profile.Name) {
		score += weightName
	}
	if profile.Company != "" && strings.Contains(text, profile.Company) {
		score += weightCompany
	}
	if profile.Industry != "" && strings.Contains(text, profile.Industry) {
		score += weightIndustry
	}
	for _, interest := range profile.Interests {
		if interest != "" && strings.Contains(text, interest) {
			score += weightInterest
			break
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}
