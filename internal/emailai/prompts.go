package emailai

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// systemPrompt 所有能力共用的系统指令
const systemPrompt = "You are an email marketing assistant for a CRM platform. " +
	"Always respond with a single JSON object that exactly matches the requested schema. " +
	"Never include markdown fences or commentary outside the JSON."

// 编码器只初始化一次；获取失败（如离线环境）时退回字符数估算
var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// estimateTokens 估算文本的 token 数量
func estimateTokens(text string) int {
	encodingOnce.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		// 粗略估算：平均 4 字符一个 token
		return len(text)/4 + 1
	}
	return len(encoding.Encode(text, nil, nil))
}

// resolveTokenBudget 结合提示词长度收敛 token 预算
//
// 请求的预算留给响应使用；未指定时按能力给出保守默认值。
func resolveTokenBudget(requested int, capability Capability) int {
	if requested > 0 {
		return requested
	}
	switch capability {
	case CapabilitySubject:
		return 300
	case CapabilityBody:
		return 1500
	case CapabilityTemplate:
		return 2000
	default:
		return 1500
	}
}

// buildSubjectPrompt 构建主题生成提示词，约束直接写入指令
func buildSubjectPrompt(c *SubjectContext, maxLength int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Generate an email subject line for the following campaign.\n")
	fmt.Fprintf(&b, "Purpose: %s\n", c.Purpose)
	if c.Audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", c.Audience)
	}
	if c.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", c.Tone)
	}
	if len(c.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords to consider: %s\n", strings.Join(c.Keywords, ", "))
	}
	writeConstraintLines(&b, c.MustInclude, c.MustAvoid)
	fmt.Fprintf(&b, "The subject must be at most %d characters.\n", maxLength)

	b.WriteString("Respond with JSON: {\"subject\": string, \"confidence\": number between 0 and 1, " +
		"\"reasoning\": string, \"alternatives\": array of up to 3 strings}.")
	return b.String()
}

// buildBodyPrompt 构建正文生成提示词
func buildBodyPrompt(c *BodyContext, maxLength int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write an email body for the following campaign.\n")
	fmt.Fprintf(&b, "Purpose: %s\n", c.Purpose)
	if c.Audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", c.Audience)
	}
	if c.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", c.Tone)
	}
	if len(c.KeyPoints) > 0 {
		fmt.Fprintf(&b, "Key points to cover:\n")
		for _, p := range c.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	if c.CallToAction != "" {
		fmt.Fprintf(&b, "Call to action: %s\n", c.CallToAction)
	}
	writeConstraintLines(&b, c.MustInclude, c.MustAvoid)
	fmt.Fprintf(&b, "The body must be at most %d characters.\n", maxLength)

	b.WriteString("Respond with JSON: {\"body\": string, " +
		"\"tone\": one of professional|friendly|formal|casual|urgent, " +
		"\"confidence\": number between 0 and 1, \"reasoning\": string, " +
		"\"safetyScore\": number between 0 and 1}.")
	return b.String()
}

// buildTemplatePrompt 构建模板优化提示词
func buildTemplatePrompt(c *TemplateContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Optimize the following email template.\n")
	fmt.Fprintf(&b, "Purpose: %s\n", c.Purpose)
	if c.Audience != "" {
		fmt.Fprintf(&b, "Audience: %s\n", c.Audience)
	}
	if len(c.Goals) > 0 {
		fmt.Fprintf(&b, "Optimization goals: %s\n", strings.Join(c.Goals, ", "))
	}
	if c.ExistingTemplate != "" {
		fmt.Fprintf(&b, "Existing template:\n%s\n", c.ExistingTemplate)
	}

	b.WriteString("Use {{variable}} placeholders for personalization fields. " +
		"Respond with JSON: {\"template\": string, \"variables\": array of placeholder names, " +
		"\"structure\": {\"header\": string, \"body\": string, \"footer\": string, \"cta\": string}, " +
		"\"confidence\": number between 0 and 1, \"recommendations\": array of strings}.")
	return b.String()
}

// buildPersonalizePrompt 构建个性化改写提示词（自由文本，不走 JSON 模式）
func buildPersonalizePrompt(c *PersonalizeContext) string {
	var b strings.Builder

	b.WriteString("Personalize the following email for the recipient. " +
		"Weave the recipient details naturally into the text, keeping the original intent.\n")
	fmt.Fprintf(&b, "Recipient name: %s\n", c.Profile.Name)
	if c.Profile.Company != "" {
		fmt.Fprintf(&b, "Company: %s\n", c.Profile.Company)
	}
	if c.Profile.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", c.Profile.Industry)
	}
	if len(c.Profile.Interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(c.Profile.Interests, ", "))
	}
	fmt.Fprintf(&b, "\nOriginal subject: %s\n", c.Subject)
	fmt.Fprintf(&b, "Original body:\n%s\n", c.Body)

	b.WriteString("\nRespond in exactly this format:\nSUBJECT: <personalized subject>\nBODY:\n<personalized body>")
	return b.String()
}

// writeConstraintLines 将必含/禁用约束写入提示词
func writeConstraintLines(b *strings.Builder, mustInclude, mustAvoid []string) {
	if len(mustInclude) > 0 {
		fmt.Fprintf(b, "The text MUST include: %s\n", strings.Join(mustInclude, "; "))
	}
	if len(mustAvoid) > 0 {
		fmt.Fprintf(b, "The text MUST NOT mention: %s\n", strings.Join(mustAvoid, "; "))
	}
}
