package features

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Feature keys as they appear in API responses and in score vectors.
const (
	KeyURLLength          = "url_length"
	KeyDomainLength       = "domain_length"
	KeyPathLength         = "path_length"
	KeyNumDots            = "num_dots"
	KeyNumHyphens         = "num_hyphens"
	KeyNumUnderscores     = "num_underscores"
	KeyNumSlashes         = "num_slashes"
	KeyNumQuestionMarks   = "num_questionmarks"
	KeyNumEquals          = "num_equals"
	KeyNumAt              = "num_at"
	KeyNumAmpersands      = "num_ampersands"
	KeyNumDigits          = "num_digits"
	KeyHasIP              = "has_ip"
	KeyHasHTTPS           = "has_https"
	KeySuspiciousTLD      = "suspicious_tld"
	KeyHasSuspiciousWords = "has_suspicious_words"
)

// SuspiciousTLDs are matched as substrings of the host, not as suffixes.
var SuspiciousTLDs = []string{".tk", ".ml", ".ga", ".cf", ".gq", ".xyz", ".top"}

// SuspiciousWords are matched case-insensitively anywhere in the URL.
var SuspiciousWords = []string{"login", "verify", "secure", "account", "update", "banking", "wallet", "crypto"}

// Prefix match only: octets are not range checked and trailing text is allowed.
var ipHostPattern = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+`)

// URLFeatures holds the lexical measurements of one URL.
type URLFeatures struct {
	URLLength          int
	DomainLength       int
	PathLength         int
	NumDots            int
	NumHyphens         int
	NumUnderscores     int
	NumSlashes         int
	NumQuestionMarks   int
	NumEquals          int
	NumAt              int
	NumAmpersands      int
	NumDigits          int
	HasIP              bool
	HasHTTPS           bool
	SuspiciousTLD      bool
	HasSuspiciousWords bool
}

// Vector returns the features keyed by name, booleans as 0 or 1.
func (f URLFeatures) Vector() map[string]float64 {
	return map[string]float64{
		KeyURLLength:          float64(f.URLLength),
		KeyDomainLength:       float64(f.DomainLength),
		KeyPathLength:         float64(f.PathLength),
		KeyNumDots:            float64(f.NumDots),
		KeyNumHyphens:         float64(f.NumHyphens),
		KeyNumUnderscores:     float64(f.NumUnderscores),
		KeyNumSlashes:         float64(f.NumSlashes),
		KeyNumQuestionMarks:   float64(f.NumQuestionMarks),
		KeyNumEquals:          float64(f.NumEquals),
		KeyNumAt:              float64(f.NumAt),
		KeyNumAmpersands:      float64(f.NumAmpersands),
		KeyNumDigits:          float64(f.NumDigits),
		KeyHasIP:              flag(f.HasIP),
		KeyHasHTTPS:           flag(f.HasHTTPS),
		KeySuspiciousTLD:      flag(f.SuspiciousTLD),
		KeyHasSuspiciousWords: flag(f.HasSuspiciousWords),
	}
}

// MarshalJSON encodes the features as a flat object of numbers.
func (f URLFeatures) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Vector())
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Extractor computes URLFeatures and logs inputs that cannot be split.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates a new feature extractor
func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract never fails. Input that cannot be split yields the zero URLFeatures.
func (e *Extractor) Extract(raw string) URLFeatures {
	f, err := Extract(raw)
	if err != nil {
		e.logger.Error("Error extracting features", zap.String("url", raw), zap.Error(err))
		return URLFeatures{}
	}
	return f
}

// Extract splits raw and measures it. The error is only informational;
// callers that must not fail should use Extractor.Extract.
func Extract(raw string) (URLFeatures, error) {
	parts, err := splitURL(raw)
	if err != nil {
		return URLFeatures{}, err
	}

	host := parts.netloc
	lower := strings.ToLower(raw)

	return URLFeatures{
		URLLength:          utf8.RuneCountInString(raw),
		DomainLength:       utf8.RuneCountInString(host),
		PathLength:         utf8.RuneCountInString(parts.path),
		NumDots:            strings.Count(raw, "."),
		NumHyphens:         strings.Count(raw, "-"),
		NumUnderscores:     strings.Count(raw, "_"),
		NumSlashes:         strings.Count(raw, "/"),
		NumQuestionMarks:   strings.Count(raw, "?"),
		NumEquals:          strings.Count(raw, "="),
		NumAt:              strings.Count(raw, "@"),
		NumAmpersands:      strings.Count(raw, "&"),
		NumDigits:          countDigits(raw),
		HasIP:              ipHostPattern.MatchString(host),
		HasHTTPS:           parts.scheme == "https",
		SuspiciousTLD:      containsAny(host, SuspiciousTLDs),
		HasSuspiciousWords: containsAny(lower, SuspiciousWords),
	}, nil
}

// countDigits counts decimal digits (Unicode Nd). Superscripts and other
// non-decimal numerals are not counted.
func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
