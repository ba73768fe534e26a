// Package sentiment assigns a coarse tone label to item text using a
// two-tier strategy: an optional statistical scorer tried first, and a
// keyword rule table that always works.
package sentiment

import (
	"fmt"
	"strings"

	"github.com/jonreiter/govader"
)

// Tone vocabulary. Every classification yields exactly one of these.
const (
	Neutral  = "neutral"
	Concern  = "concern"
	Alarm    = "alarm"
	Advisory = "advisory"
	Positive = "positive"
)

// Keyword categories are checked in order; the first hit wins.
var (
	alarmKeywords    = []string{"outbreak", "alarm", "urgent", "surge", "spike"}
	concernKeywords  = []string{"concern", "worry", "rise", "increase"}
	advisoryKeywords = []string{"advisory", "recommend", "precaution", "warn"}
)

// Scorer produces a compound polarity score in [-1, 1].
type Scorer interface {
	Compound(text string) (float64, error)
}

// Classifier labels text. A nil scorer means only the rule table runs; a
// scorer that errors is ignored for that call and the rule table answers
// instead, so callers never observe scorer failures.
type Classifier struct {
	scorer Scorer
}

// NewClassifier builds a classifier around an optional scorer.
func NewClassifier(scorer Scorer) *Classifier {
	return &Classifier{scorer: scorer}
}

// Classify returns the tone label for text.
func (c *Classifier) Classify(text string) string {
	if strings.TrimSpace(text) == "" {
		return Neutral
	}
	if c.scorer != nil {
		if score, err := c.scorer.Compound(text); err == nil {
			return labelForScore(score)
		}
	}
	return Lexical(text)
}

// labelForScore maps a compound score onto the tone vocabulary.
func labelForScore(score float64) string {
	switch {
	case score >= 0.5:
		return Positive
	case score <= -0.3:
		return Alarm
	case score < 0:
		return Concern
	default:
		return Neutral
	}
}

// Lexical is the always-available rule-table tier.
func Lexical(text string) string {
	t := strings.ToLower(text)
	for _, k := range alarmKeywords {
		if strings.Contains(t, k) {
			return Alarm
		}
	}
	for _, k := range concernKeywords {
		if strings.Contains(t, k) {
			return Concern
		}
	}
	for _, k := range advisoryKeywords {
		if strings.Contains(t, k) {
			return Advisory
		}
	}
	return Neutral
}

// VADERScorer wraps govader's intensity analyzer.
type VADERScorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVADERScorer builds the statistical tier.
func NewVADERScorer() *VADERScorer {
	return &VADERScorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Compound implements Scorer. Panics inside the analyzer are converted to
// errors so the classifier can fall back to the rule table.
func (s *VADERScorer) Compound(text string) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("vader: %v", r)
		}
	}()
	return s.analyzer.PolarityScores(text).Compound, nil
}
