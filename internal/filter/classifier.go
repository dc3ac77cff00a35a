package filter

import "strings"

// exclusionTerms disqualify a channel even when inclusion terms are present.
var exclusionTerms = []string{
	"game", "gaming", "gameplay", "review", "tutorial", "vlog",
	"comedy", "entertainment", "news", "sports", "cooking",
	"lyrics", "vocal", "singing", "talk", "podcast", "karaoke",
	"ゲーム", "レビュー", "チュートリアル", "ニュース", "スポーツ", "料理",
	"歌詞", "ボーカル", "トーク", "歌ってみた",
}

var inclusionTerms = []string{
	"bgm", "music", "lofi", "lo-fi", "chill", "relax", "study", "work", "sleep",
	"piano", "jazz", "ambient", "instrumental", "meditation", "healing",
	"カフェ", "作業用", "勉強用", "睡眠", "リラックス", "ヒーリング", "インスト", "瞑想",
}

var (
	highValueTerms   = []string{"bgm", "instrumental", "ambient", "lo-fi", "lofi"}
	mediumValueTerms = []string{"chill", "relaxing", "study music", "meditation"}
)

// Classifier decides BGM relevance from a channel's title and description.
type Classifier struct {
	vocabulary []string
}

// NewClassifier tags channels against vocabulary, usually the full keyword taxonomy.
func NewClassifier(vocabulary []string) *Classifier {
	return &Classifier{vocabulary: append([]string(nil), vocabulary...)}
}

func normalize(title, description string) string {
	return strings.ToLower(title + " " + description)
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// IsBgmRelevant reports whether the channel looks like a BGM channel.
// Any exclusion term wins over inclusion terms.
func (c *Classifier) IsBgmRelevant(title, description string) bool {
	text := normalize(title, description)
	if containsAny(text, exclusionTerms) {
		return false
	}
	return containsAny(text, inclusionTerms)
}

// MatchingKeywords returns every vocabulary keyword found in the text, in vocabulary order.
func (c *Classifier) MatchingKeywords(title, description string) []string {
	text := normalize(title, description)
	matches := []string{}
	for _, kw := range c.vocabulary {
		if strings.Contains(text, strings.ToLower(kw)) {
			matches = append(matches, kw)
		}
	}
	return matches
}

// RelevanceScore is a display-only 0-100 weighting of BGM vocabulary density.
func (c *Classifier) RelevanceScore(title, description string) int {
	text := normalize(title, description)
	score := 0
	for _, term := range highValueTerms {
		if strings.Contains(text, term) {
			score += 20
		}
	}
	for _, term := range mediumValueTerms {
		if strings.Contains(text, term) {
			score += 10
		}
	}
	if score > 100 {
		return 100
	}
	return score
}
