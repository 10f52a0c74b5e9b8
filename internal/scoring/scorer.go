package scoring

import (
	"math"

	"phishguard/internal/features"
)

// Tier is the discrete risk bucket derived from a score.
type Tier string

const (
	TierLow    Tier = "LOW"
	TierMedium Tier = "MEDIUM"
	TierHigh   Tier = "HIGH"
)

// Rule adds Points (hundredths of a score unit) when Applies holds.
type Rule struct {
	Name    string
	Points  int
	Applies func(v map[string]float64) bool
}

// Rules is the heuristic table. Weights are kept in hundredths so that
// sums like 0.30+0.15+0.25 land exactly on a tier boundary.
var Rules = []Rule{
	{Name: "long_url", Points: 20, Applies: above(features.KeyURLLength, 75)},
	{Name: "long_domain", Points: 15, Applies: above(features.KeyDomainLength, 30)},
	{Name: "ip_host", Points: 30, Applies: set(features.KeyHasIP)},
	{Name: "no_https", Points: 15, Applies: unset(features.KeyHasHTTPS)},
	{Name: "suspicious_tld", Points: 25, Applies: set(features.KeySuspiciousTLD)},
	{Name: "suspicious_words", Points: 20, Applies: set(features.KeyHasSuspiciousWords)},
	{Name: "many_dots", Points: 10, Applies: above(features.KeyNumDots, 4)},
	{Name: "many_hyphens", Points: 10, Applies: above(features.KeyNumHyphens, 3)},
	{Name: "at_sign", Points: 20, Applies: above(features.KeyNumAt, 0)},
}

const maxPoints = 100

func above(key string, limit float64) func(map[string]float64) bool {
	return func(v map[string]float64) bool { return v[key] > limit }
}

func set(key string) func(map[string]float64) bool {
	return func(v map[string]float64) bool { return v[key] == 1 }
}

func unset(key string) func(map[string]float64) bool {
	return func(v map[string]float64) bool { return v[key] == 0 }
}

// Assessment is the score and tier for one URL.
type Assessment struct {
	Score   float64  `json:"score"`
	Tier    Tier     `json:"tier"`
	Signals []string `json:"signals"`
}

// Percent is the score on a 0-100 scale rounded to two decimals.
func (a Assessment) Percent() float64 {
	return Percent(a.Score)
}

// Scorer maps extracted features to an assessment.
type Scorer interface {
	Assess(f features.URLFeatures) Assessment
}

// RuleScorer is the additive, clamped heuristic scorer.
type RuleScorer struct {
	rules []Rule
}

// NewRuleScorer creates a scorer over the default rule table.
func NewRuleScorer() *RuleScorer {
	return &RuleScorer{rules: Rules}
}

// Assess scores the features and derives the tier.
func (s *RuleScorer) Assess(f features.URLFeatures) Assessment {
	return s.AssessVector(f.Vector())
}

// AssessVector scores a possibly partial feature vector. Missing keys read as zero.
func (s *RuleScorer) AssessVector(v map[string]float64) Assessment {
	points := 0
	signals := make([]string, 0)
	for _, rule := range s.rules {
		if rule.Applies(v) {
			points += rule.Points
			signals = append(signals, rule.Name)
		}
	}
	if points > maxPoints {
		points = maxPoints
	}

	score := float64(points) / 100
	return Assessment{
		Score:   score,
		Tier:    TierFromScore(score),
		Signals: signals,
	}
}

// Score is a shorthand for the default scorer's score over f.
func Score(f features.URLFeatures) float64 {
	return NewRuleScorer().Assess(f).Score
}

// TierFromScore buckets a score in [0,1].
func TierFromScore(score float64) Tier {
	switch {
	case score >= 0.7:
		return TierHigh
	case score >= 0.4:
		return TierMedium
	default:
		return TierLow
	}
}

// Percent converts a [0,1] score to 0-100 rounded to two decimals.
func Percent(score float64) float64 {
	return math.Round(score*100*100) / 100
}
