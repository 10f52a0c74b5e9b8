package models

import (
	"errors"
	"sort"
	"time"

	"phishguard/internal/features"
	"phishguard/internal/scoring"
)

// ConfirmationThreshold is the minimum number of scam votes before a report
// can be confirmed. Upvotes must also strictly outnumber downvotes.
const ConfirmationThreshold = 3

var (
	ErrReportNotFound = errors.New("report not found")
	ErrDuplicateVote  = errors.New("address has already voted on this report")
)

// ReportStatus filters listings by confirmation state
type ReportStatus string

const (
	StatusAll       ReportStatus = ""
	StatusConfirmed ReportStatus = "confirmed"
	StatusPending   ReportStatus = "pending"
)

// ParseReportStatus maps a query value to a status. Unknown values list everything.
func ParseReportStatus(s string) ReportStatus {
	switch ReportStatus(s) {
	case StatusConfirmed:
		return StatusConfirmed
	case StatusPending:
		return StatusPending
	default:
		return StatusAll
	}
}

// Ledger records which addresses voted on a report and how.
// true means the address voted scam.
type Ledger map[string]bool

// Has reports whether address already voted.
func (l Ledger) Has(address string) bool {
	_, ok := l[address]
	return ok
}

// Addresses returns the voter addresses in sorted order.
func (l Ledger) Addresses() []string {
	out := make([]string, 0, len(l))
	for addr := range l {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Report is a community claim that a URL is phishing
type Report struct {
	ID              string    `json:"id" db:"id"`
	URL             string    `json:"url" db:"url"`
	ReporterAddress string    `json:"reporter_address" db:"reporter_address"`
	Description     *string   `json:"description" db:"description"`
	PhishingScore   *float64  `json:"phishing_score" db:"phishing_score"` // 0-100
	Upvotes         int       `json:"upvotes" db:"upvotes"`
	Downvotes       int       `json:"downvotes" db:"downvotes"`
	ConfirmedScam   bool      `json:"confirmed_scam" db:"confirmed_scam"`
	Timestamp       time.Time `json:"timestamp" db:"created_at"`
	Voters          Ledger    `json:"-" db:"-"`
}

// VoteDelta is the change an accepted vote makes to a report.
type VoteDelta struct {
	ReportID       string
	Voter          string
	IsScam         bool
	Confirmed      bool // confirmation flag after the vote
	NewlyConfirmed bool // the vote flipped the report to confirmed
}

// UpvoteIncrement is 1 for a scam vote.
func (d VoteDelta) UpvoteIncrement() int {
	if d.IsScam {
		return 1
	}
	return 0
}

// DownvoteIncrement is 1 for a not-scam vote.
func (d VoteDelta) DownvoteIncrement() int {
	if d.IsScam {
		return 0
	}
	return 1
}

// Status returns the state machine state of the report.
func (r *Report) Status() ReportStatus {
	if r.ConfirmedScam {
		return StatusConfirmed
	}
	return StatusPending
}

// ApplyVote records a vote from voter. A repeated address is rejected without
// touching the report. Confirmation is re-evaluated on the new counts and is
// never cleared once set.
func (r *Report) ApplyVote(voter string, isScam bool) (VoteDelta, error) {
	if r.Voters.Has(voter) {
		return VoteDelta{}, ErrDuplicateVote
	}
	if r.Voters == nil {
		r.Voters = make(Ledger)
	}

	if isScam {
		r.Upvotes++
	} else {
		r.Downvotes++
	}
	r.Voters[voter] = isScam

	wasConfirmed := r.ConfirmedScam
	if r.Upvotes >= ConfirmationThreshold && r.Upvotes > r.Downvotes {
		r.ConfirmedScam = true
	}

	return VoteDelta{
		ReportID:       r.ID,
		Voter:          voter,
		IsScam:         isScam,
		Confirmed:      r.ConfirmedScam,
		NewlyConfirmed: r.ConfirmedScam && !wasConfirmed,
	}, nil
}

// ReportFilter narrows FindAll results. Limit 0 uses the default cap, negative means no cap.
type ReportFilter struct {
	Status ReportStatus
	Limit  int
}

// ReportCreate is the submission payload
type ReportCreate struct {
	URL             string  `json:"url" binding:"required"`
	ReporterAddress string  `json:"reporter_address" binding:"required"`
	Description     *string `json:"description,omitempty"`
}

// VoteRequest is the voting payload
type VoteRequest struct {
	ReportID     string `json:"report_id" binding:"required"`
	VoterAddress string `json:"voter_address" binding:"required"`
	IsScam       *bool  `json:"is_scam" binding:"required"`
}

// VoteResult is returned for an accepted vote.
type VoteResult struct {
	Accepted      bool `json:"accepted"`
	ConfirmedScam bool `json:"confirmed_scam"`
}

// AnalysisRequest asks for a URL to be scored without storing it
type AnalysisRequest struct {
	URL string `json:"url" binding:"required"`
}

// Analysis is the scoring result exposed by the analyze endpoint.
type Analysis struct {
	URL                 string               `json:"url"`
	PhishingProbability float64              `json:"phishing_probability"`
	RiskLevel           scoring.Tier         `json:"risk_level"`
	Features            features.URLFeatures `json:"features"`
	Signals             []string             `json:"signals"`
}

// DashboardStats summarises all stored reports.
type DashboardStats struct {
	TotalReports    int `json:"total_reports"`
	ConfirmedScams  int `json:"confirmed_scams"`
	PendingReports  int `json:"pending_reports"`
	TotalVotes      int `json:"total_votes"`
	UniqueReporters int `json:"unique_reporters"`
}

// FeedEvent is pushed to live subscribers.
type FeedEvent struct {
	Type      string    `json:"type"`
	ReportID  string    `json:"report_id"`
	URL       string    `json:"url"`
	Upvotes   int       `json:"upvotes"`
	Downvotes int       `json:"downvotes"`
	At        time.Time `json:"at"`
}

// EventReportConfirmed is sent when a report crosses the confirmation threshold.
const EventReportConfirmed = "report_confirmed"
