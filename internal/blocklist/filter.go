// Package blocklist keeps a Bloom filter of confirmed phishing URLs so
// clients can pull one compact artefact and test URLs locally.
package blocklist

import (
	"encoding/json"
	"strings"
	"sync"

	"phishguard/internal/models"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"
)

// Filter is a concurrent-safe Bloom filter of confirmed URLs.
type Filter struct {
	mu      sync.RWMutex
	filter  *bloom.BloomFilter
	count   uint
	version uint64
	logger  *zap.Logger
}

// Snapshot is the JSON document served to clients.
type Snapshot struct {
	Version uint64             `json:"version"`
	Count   uint               `json:"count"`
	Filter  *bloom.BloomFilter `json:"filter"`
}

// NewFilter sizes the filter for capacity entries at the given false positive rate.
func NewFilter(capacity uint, falsePositiveRate float64, logger *zap.Logger) *Filter {
	return &Filter{
		filter: bloom.NewWithEstimates(capacity, falsePositiveRate),
		logger: logger,
	}
}

func normalize(url string) string {
	return strings.TrimSpace(url)
}

// Add inserts a URL. Re-adding a URL that tests positive is a no-op.
func (f *Filter) Add(url string) bool {
	key := normalize(url)
	if key == "" {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.filter.TestString(key) {
		return false
	}
	f.filter.AddString(key)
	f.count++
	f.version++
	return true
}

// Contains reports whether url might be blocklisted. False positives are
// possible, false negatives are not.
func (f *Filter) Contains(url string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(normalize(url))
}

// Len returns the number of distinct URLs added.
func (f *Filter) Len() uint {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

// Version increases on every successful Add.
func (f *Filter) Version() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.version
}

// Serialize returns the snapshot as JSON.
func (f *Filter) Serialize() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return json.Marshal(Snapshot{
		Version: f.version,
		Count:   f.count,
		Filter:  f.filter,
	})
}

// OnConfirmed adds a newly confirmed report's URL.
func (f *Filter) OnConfirmed(report *models.Report) {
	if f.Add(report.URL) {
		f.logger.Debug("URL added to blocklist",
			zap.String("report_id", report.ID),
			zap.Uint64("version", f.Version()))
	}
}
