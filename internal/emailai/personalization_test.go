package emailai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestScorePersonalizationFullProfile 四类信息全部命中时评分约为 1.0
func TestScorePersonalizationFullProfile(t *testing.T) {
	profile := RecipientProfile{
		Name:      "Alice Zhang",
		Company:   "Acme Corp",
		Industry:  "logistics",
		Interests: []string{"automation", "fleet tracking"},
	}
	text := "Hi Alice Zhang, Acme Corp has been a leader in logistics, " +
		"and our automation suite can help your team move faster."

	score := ScorePersonalization(text, profile)
	assert.InDelta(t, 1.0, score, 1e-9)
}

// TestScorePersonalizationWeights 各字段按权重独立计分
func TestScorePersonalizationWeights(t *testing.T) {
	profile := RecipientProfile{
		Name:      "Bob",
		Company:   "Initech",
		Industry:  "fintech",
		Interests: []string{"payments"},
	}

	tests := []struct {
		name     string
		text     string
		expected float64
	}{
		{"仅姓名", "Hello Bob, hope you are well.", 0.30},
		{"仅公司", "Initech has a strong quarter ahead.", 0.25},
		{"仅行业", "The fintech space is evolving quickly.", 0.20},
		{"仅兴趣", "New payments features just launched.", 0.25},
		{"姓名加公司", "Bob, Initech could benefit from this.", 0.55},
		{"无命中", "Generic newsletter content here.", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, ScorePersonalization(tt.text, profile), 1e-9)
		})
	}
}

// TestScorePersonalizationCaseSensitive 字面匹配区分大小写
func TestScorePersonalizationCaseSensitive(t *testing.T) {
	profile := RecipientProfile{Name: "Alice"}

	assert.InDelta(t, 0.30, ScorePersonalization("Dear Alice,", profile), 1e-9)
	assert.InDelta(t, 0.0, ScorePersonalization("Dear alice,", profile), 1e-9)
}

// TestScorePersonalizationInterestCountsOnce 多个兴趣命中只计一次
func TestScorePersonalizationInterestCountsOnce(t *testing.T) {
	profile := RecipientProfile{
		Interests: []string{"golf", "sailing"},
	}

	score := ScorePersonalization("We cover both golf and sailing trips.", profile)
	assert.InDelta(t, 0.25, score, 1e-9)
}

// TestScorePersonalizationEmptyProfile 空画像恒为 0
func TestScorePersonalizationEmptyProfile(t *testing.T) {
	assert.Equal(t, 0.0, ScorePersonalization("any text at all", RecipientProfile{}))
}
