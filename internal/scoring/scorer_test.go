package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"phishguard/internal/features"
	"phishguard/internal/scoring"
)

func assess(t *testing.T, raw string) scoring.Assessment {
	t.Helper()
	ex := features.NewExtractor(zap.NewNop())
	return scoring.NewRuleScorer().Assess(ex.Extract(raw))
}

func TestRuleScorer_IPLoginURL(t *testing.T) {
	a := assess(t, "http://192.168.1.1/login.php")

	// ip 0.30 + no_https 0.15 + suspicious_words 0.20
	assert.Equal(t, 0.65, a.Score)
	assert.Equal(t, scoring.TierMedium, a.Tier)
	assert.Equal(t, 65.0, a.Percent())
	assert.ElementsMatch(t, []string{"ip_host", "no_https", "suspicious_words"}, a.Signals)
}

func TestRuleScorer_CleanHTTPS(t *testing.T) {
	a := assess(t, "https://example.com")

	assert.Equal(t, 0.0, a.Score)
	assert.Equal(t, scoring.TierLow, a.Tier)
	assert.Empty(t, a.Signals)
}

func TestRuleScorer_ExactTierBoundary(t *testing.T) {
	// ip 0.30 + no_https 0.15 + suspicious_tld 0.25 = 0.70
	a := scoring.NewRuleScorer().Assess(features.URLFeatures{HasIP: true, SuspiciousTLD: true})

	assert.Equal(t, 0.7, a.Score)
	assert.Equal(t, scoring.TierHigh, a.Tier)
}

func TestRuleScorer_ClampsAtOne(t *testing.T) {
	f := features.URLFeatures{
		URLLength:          200,
		DomainLength:       60,
		NumDots:            9,
		NumHyphens:         5,
		NumAt:              1,
		HasIP:              true,
		SuspiciousTLD:      true,
		HasSuspiciousWords: true,
	}
	a := scoring.NewRuleScorer().Assess(f)

	assert.Equal(t, 1.0, a.Score)
	assert.Equal(t, scoring.TierHigh, a.Tier)
	assert.Len(t, a.Signals, 9)
}

func TestRuleScorer_ThresholdsAreStrict(t *testing.T) {
	f := features.URLFeatures{
		URLLength:    75,
		DomainLength: 30,
		NumDots:      4,
		NumHyphens:   3,
		HasHTTPS:     true,
	}
	assert.Equal(t, 0.0, scoring.NewRuleScorer().Assess(f).Score)

	f.URLLength = 76
	assert.Equal(t, 0.2, scoring.NewRuleScorer().Assess(f).Score)
}

func TestRuleScorer_PartialVector(t *testing.T) {
	s := scoring.NewRuleScorer()

	// an empty vector only trips the https rule
	empty := s.AssessVector(map[string]float64{})
	assert.Equal(t, 0.15, empty.Score)
	assert.Equal(t, scoring.TierLow, empty.Tier)

	partial := s.AssessVector(map[string]float64{features.KeyNumAt: 1, features.KeyHasHTTPS: 1})
	assert.Equal(t, 0.2, partial.Score)
}

func TestRuleScorer_Deterministic(t *testing.T) {
	inputs := []string{
		"",
		"http://192.168.1.1/login.php",
		"https://secure-update-account.example.tk/verify?user=a&token=b",
		"\xff\xfe garbage",
		"ftp://user@host.xyz:21/a_b-c",
	}
	for _, in := range inputs {
		first := assess(t, in)
		second := assess(t, in)
		assert.Equal(t, first, second)
		assert.GreaterOrEqual(t, first.Score, 0.0)
		assert.LessOrEqual(t, first.Score, 1.0)
	}
}

func TestTierFromScore(t *testing.T) {
	tests := []struct {
		score float64
		want  scoring.Tier
	}{
		{0, scoring.TierLow},
		{0.39, scoring.TierLow},
		{0.4, scoring.TierMedium},
		{0.69, scoring.TierMedium},
		{0.7, scoring.TierHigh},
		{1, scoring.TierHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scoring.TierFromScore(tt.score), "score %v", tt.score)
	}
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 65.0, scoring.Percent(0.65))
	assert.Equal(t, 12.35, scoring.Percent(0.123456))
	assert.Equal(t, 100.0, scoring.Percent(1))
}

func TestScore(t *testing.T) {
	assert.Equal(t, 0.15, scoring.Score(features.URLFeatures{}))
}

func TestRuleScorer_MalformedURLsAreStillScored(t *testing.T) {
	tests := []struct {
		raw   string
		score float64
	}{
		{"http://192.168.1.1/login%zz", 0.65},
		{"http://192.168.1.1/login\x7f", 0.65},
		{"http://paypal-login.tk:abc/verify", 0.60},
		{"http://exa mple.tk/login", 0.60},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.score, assess(t, tt.raw).Score)
		})
	}
}
