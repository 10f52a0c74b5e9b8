package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"phishguard/internal/features"
	"phishguard/internal/models"
	"phishguard/internal/scoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence the report service depends on
type Store interface {
	Insert(ctx context.Context, report *models.Report) error
	FindByID(ctx context.Context, id string) (*models.Report, error)
	FindAll(ctx context.Context, filter models.ReportFilter) ([]*models.Report, error)
	AtomicUpdate(ctx context.Context, id string, mutate func(*models.Report) (models.VoteDelta, error)) (*models.Report, models.VoteDelta, error)
	Stats(ctx context.Context) (*models.DashboardStats, error)
}

// ConfirmationListener is told about reports that just crossed the vote threshold
type ConfirmationListener interface {
	OnConfirmed(report *models.Report)
}

// ReportService scores URLs and runs the voting workflow
type ReportService struct {
	store     Store
	extractor *features.Extractor
	scorer    scoring.Scorer
	listeners []ConfirmationListener
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService creates a new report service
func NewReportService(
	store Store,
	extractor *features.Extractor,
	scorer scoring.Scorer,
	logger *zap.Logger,
	listeners ...ConfirmationListener,
) *ReportService {
	return &ReportService{
		store:     store,
		extractor: extractor,
		scorer:    scorer,
		listeners: listeners,
		logger:    logger,
		now:       time.Now,
	}
}

// Analyze scores a URL without storing anything
func (s *ReportService) Analyze(rawURL string) *models.Analysis {
	f := s.extractor.Extract(rawURL)
	assessment := s.scorer.Assess(f)

	return &models.Analysis{
		URL:                 rawURL,
		PhishingProbability: assessment.Percent(),
		RiskLevel:           assessment.Tier,
		Features:            f,
		Signals:             assessment.Signals,
	}
}

// SubmitReport scores the URL once and stores a new pending report
func (s *ReportService) SubmitReport(ctx context.Context, req models.ReportCreate) (*models.Report, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.ReporterAddress) == "" {
		return nil, fmt.Errorf("%w: reporter address is required", ErrInvalidInput)
	}

	score := s.scorer.Assess(s.extractor.Extract(req.URL)).Percent()

	report := &models.Report{
		ID:              uuid.New().String(),
		URL:             req.URL,
		ReporterAddress: req.ReporterAddress,
		Description:     req.Description,
		PhishingScore:   &score,
		Voters:          models.Ledger{},
		Timestamp:       s.now().UTC(),
	}

	if err := s.store.Insert(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	s.logger.Info("Report submitted",
		zap.String("id", report.ID),
		zap.String("url", report.URL),
		zap.Float64("phishing_score", score))

	return report, nil
}

// GetReport returns a single report
func (s *ReportService) GetReport(ctx context.Context, id string) (*models.Report, error) {
	return s.store.FindByID(ctx, id)
}

// ListReports returns reports newest first
func (s *ReportService) ListReports(ctx context.Context, status models.ReportStatus) ([]*models.Report, error) {
	return s.store.FindAll(ctx, models.ReportFilter{Status: status})
}

// Vote applies one address's vote to a report. The ledger check, counter
// update and confirmation flip commit together or not at all.
func (s *ReportService) Vote(ctx context.Context, req models.VoteRequest) (*models.VoteResult, error) {
	if req.IsScam == nil {
		return nil, fmt.Errorf("%w: is_scam is required", ErrInvalidInput)
	}
	if strings.TrimSpace(req.VoterAddress) == "" {
		return nil, fmt.Errorf("%w: voter address is required", ErrInvalidInput)
	}
	isScam := *req.IsScam

	report, delta, err := s.store.AtomicUpdate(ctx, req.ReportID, func(r *models.Report) (models.VoteDelta, error) {
		return r.ApplyVote(req.VoterAddress, isScam)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Vote recorded",
		zap.String("report_id", req.ReportID),
		zap.String("voter", req.VoterAddress),
		zap.Bool("is_scam", isScam),
		zap.Bool("confirmed", delta.Confirmed))

	if delta.NewlyConfirmed {
		s.logger.Info("Report confirmed as scam",
			zap.String("report_id", report.ID),
			zap.Int("upvotes", report.Upvotes),
			zap.Int("downvotes", report.Downvotes))
		for _, l := range s.listeners {
			l.OnConfirmed(report)
		}
	}

	return &models.VoteResult{
		Accepted:      true,
		ConfirmedScam: delta.Confirmed,
	}, nil
}

// Stats returns dashboard statistics
func (s *ReportService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	return s.store.Stats(ctx)
}

// WarmListeners replays every confirmed report to the listeners, e.g. to
// rebuild the blocklist after a restart.
func (s *ReportService) WarmListeners(ctx context.Context) (int, error) {
	confirmed, err := s.store.FindAll(ctx, models.ReportFilter{Status: models.StatusConfirmed, Limit: -1})
	if err != nil {
		return 0, fmt.Errorf("failed to load confirmed reports: %w", err)
	}

	for _, report := range confirmed {
		for _, l := range s.listeners {
			l.OnConfirmed(report)
		}
	}
	return len(confirmed), nil
}
