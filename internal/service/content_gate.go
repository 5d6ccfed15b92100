package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"waflow/internal/constants"
	"waflow/internal/models"
)

// ContentRiskLevel buckets a content risk score.
type ContentRiskLevel string

const (
	ContentRiskSafe     ContentRiskLevel = "safe"
	ContentRiskLow      ContentRiskLevel = "low"
	ContentRiskMedium   ContentRiskLevel = "medium"
	ContentRiskHigh     ContentRiskLevel = "high"
	ContentRiskCritical ContentRiskLevel = "critical"
)

// Heuristic weights. Each independent signal contributes points toward
// the 0-100 score.
const (
	contentPointsPerLink     = 15
	contentPointsPerPhone    = 10
	contentPointsCapsRatio   = 10
	contentPointsEmoji       = 10
	contentPointsLength      = 5
	contentPointsPerKeyword  = 8
	contentPointsPerCurrency = 5

	contentCapsMinLetters = 10
	contentCapsRatioLimit = 0.5
	contentEmojiLimit     = 5
	contentMaxLength      = 1000
	contentMinLength      = 3
	contentKeywordCap     = 3
	contentCurrencyCap    = 4
)

var (
	linkPattern     = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)
	phonePattern    = regexp.MustCompile(`\+?\d[\d\s\-()]{6,14}\d`)
	currencyPattern = regexp.MustCompile(`(?i)([$€£₹]\s?\d|(usd|eur|gbp|inr|btc)\b)`)
)

var spamKeywords = []string{
	"free", "winner", "guaranteed", "click here", "limited time",
	"act now", "100%", "no cost", "prize", "urgent", "congratulations",
	"risk-free", "cash bonus",
}

// ContentAssessment is the result of scoring one message body.
type ContentAssessment struct {
	Score   int              `json:"score"`
	Level   ContentRiskLevel `json:"level"`
	Blocked bool             `json:"blocked"`
	Reasons []string         `json:"reasons,omitempty"`
}

// ContentGate scores free text against independent spam heuristics and
// blocks anything at or above the configured threshold before it ever
// reaches the network.
type ContentGate struct {
	blockThreshold int
}

func NewContentGate(cfg models.ContentGateConfig) *ContentGate {
	threshold := cfg.BlockThreshold
	if threshold <= 0 {
		threshold = constants.DefaultContentBlockThreshold
	}
	return &ContentGate{blockThreshold: threshold}
}

// Assess scores the text and reports whether it may be sent.
func (g *ContentGate) Assess(text string) *ContentAssessment {
	score := 0
	var reasons []string

	if links := len(linkPattern.FindAllString(text, -1)); links > 0 {
		score += links * contentPointsPerLink
		reasons = append(reasons, fmt.Sprintf("%d link(s)", links))
	}

	if phones := len(phonePattern.FindAllString(text, -1)); phones > 0 {
		score += phones * contentPointsPerPhone
		reasons = append(reasons, fmt.Sprintf("%d phone number(s)", phones))
	}

	if ratio, letters := capsRatio(text); letters >= contentCapsMinLetters && ratio >= contentCapsRatioLimit {
		score += contentPointsCapsRatio
		reasons = append(reasons, "excessive capitalization")
	}

	if emoji := emojiCount(text); emoji > contentEmojiLimit {
		score += contentPointsEmoji
		reasons = append(reasons, fmt.Sprintf("%d emoji", emoji))
	}

	if length := len([]rune(text)); length > contentMaxLength || length < contentMinLength {
		score += contentPointsLength
		reasons = append(reasons, "message length out of bounds")
	}

	if hits := keywordHits(text); hits > 0 {
		if hits > contentKeywordCap {
			hits = contentKeywordCap
		}
		score += hits * contentPointsPerKeyword
		reasons = append(reasons, fmt.Sprintf("%d spam keyword(s)", hits))
	}

	if currency := len(currencyPattern.FindAllString(text, -1)); currency > 0 {
		if currency > contentCurrencyCap {
			currency = contentCurrencyCap
		}
		score += currency * contentPointsPerCurrency
		reasons = append(reasons, fmt.Sprintf("%d currency mention(s)", currency))
	}

	if score > 100 {
		score = 100
	}

	return &ContentAssessment{
		Score:   score,
		Level:   levelForScore(score),
		Blocked: score >= g.blockThreshold,
		Reasons: reasons,
	}
}

func levelForScore(score int) ContentRiskLevel {
	switch {
	case score >= 70:
		return ContentRiskCritical
	case score >= 40:
		return ContentRiskHigh
	case score >= 20:
		return ContentRiskMedium
	case score >= 10:
		return ContentRiskLow
	default:
		return ContentRiskSafe
	}
}

func capsRatio(text string) (float64, int) {
	letters, upper := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0, 0
	}
	return float64(upper) / float64(letters), letters
}

func emojiCount(text string) int {
	count := 0
	for _, r := range text {
		if unicode.In(r, unicode.So, unicode.Sk) || (r >= 0x1F300 && r <= 0x1FAFF) {
			count++
		}
	}
	return count
}

func keywordHits(text string) int {
	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range spamKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return hits
}
