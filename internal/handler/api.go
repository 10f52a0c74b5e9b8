package handler

import (
	"context"
	"errors"
	"net/http"

	"phishguard/internal/blocklist"
	"phishguard/internal/feed"
	"phishguard/internal/models"
	"phishguard/internal/service"
	"phishguard/internal/whois"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DomainLookup resolves registration data for a URL's domain
type DomainLookup interface {
	Lookup(ctx context.Context, rawURL string) (*whois.DomainInfo, error)
}

// Handler handles HTTP requests
type Handler struct {
	reports   *service.ReportService
	blocklist *blocklist.Filter
	hub       *feed.Hub
	domains   DomainLookup
	logger    *zap.Logger
}

// NewHandler creates a new API handler. domains may be nil to disable WHOIS lookups.
func NewHandler(
	reports *service.ReportService,
	blocklist *blocklist.Filter,
	hub *feed.Hub,
	domains DomainLookup,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		reports:   reports,
		blocklist: blocklist,
		hub:       hub,
		domains:   domains,
		logger:    logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/", h.Root)

		// Scoring
		api.POST("/ml/analyze", h.Analyze)
		api.GET("/ml/domain", h.DomainInfo)

		// Reports and votes
		api.POST("/reports", h.CreateReport)
		api.GET("/reports", h.ListReports)
		api.GET("/reports/:id", h.GetReport)
		api.POST("/reports/vote", h.Vote)

		api.GET("/stats", h.Stats)

		// Consensus distribution
		api.GET("/blocklist", h.Blocklist)
		api.GET("/blocklist/check", h.BlocklistCheck)
		api.GET("/feed", h.Feed)
	}

	// Health check
	r.GET("/health", h.HealthCheck)
}

// Root returns the API banner
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "PhishGuard API - community phishing URL database"})
}

// Analyze scores a URL without storing it
func (h *Handler) Analyze(c *gin.Context) {
	var req models.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.reports.Analyze(req.URL))
}

// DomainInfo returns WHOIS registration data for the url query parameter
func (h *Handler) DomainInfo(c *gin.Context) {
	if h.domains == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "domain lookups are disabled"})
		return
	}

	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}

	info, err := h.domains.Lookup(c.Request.Context(), rawURL)
	switch {
	case errors.Is(err, whois.ErrNoDomain):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.logger.Error("Domain lookup failed", zap.String("url", rawURL), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "domain lookup failed"})
	default:
		c.JSON(http.StatusOK, info)
	}
}

// CreateReport stores a new phishing report
func (h *Handler) CreateReport(c *gin.Context) {
	var req models.ReportCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.reports.SubmitReport(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err, "Error creating report")
		return
	}

	c.JSON(http.StatusOK, report)
}

// ListReports returns reports, optionally filtered by ?status=confirmed|pending
func (h *Handler) ListReports(c *gin.Context) {
	status := models.ParseReportStatus(c.Query("status"))

	reports, err := h.reports.ListReports(c.Request.Context(), status)
	if err != nil {
		h.respondError(c, err, "Error fetching reports")
		return
	}

	c.JSON(http.StatusOK, reports)
}

// GetReport returns one report
func (h *Handler) GetReport(c *gin.Context) {
	report, err := h.reports.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Error fetching report")
		return
	}

	c.JSON(http.StatusOK, report)
}

// Vote records a vote (is_scam true = upvote, false = downvote)
func (h *Handler) Vote(c *gin.Context) {
	var req models.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.reports.Vote(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err, "Error recording vote")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "Vote recorded successfully",
		"accepted":       result.Accepted,
		"confirmed_scam": result.ConfirmedScam,
	})
}

// Stats returns dashboard statistics
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.reports.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "Error fetching statistics")
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Blocklist serves the Bloom filter of confirmed URLs
func (h *Handler) Blocklist(c *gin.Context) {
	data, err := h.blocklist.Serialize()
	if err != nil {
		h.logger.Error("Failed to serialize blocklist", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error serializing blocklist"})
		return
	}

	c.Data(http.StatusOK, "application/json", data)
}

// BlocklistCheck tests a single URL against the blocklist
func (h *Handler) BlocklistCheck(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":         rawURL,
		"blocklisted": h.blocklist.Contains(rawURL),
		"version":     h.blocklist.Version(),
	})
}

// Feed upgrades to a websocket streaming confirmation events
func (h *Handler) Feed(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"service":          "phishguard",
		"version":          "1.0.0",
		"blocklist_size":   h.blocklist.Len(),
		"feed_subscribers": h.hub.Subscribers(),
	})
}

// respondError maps domain errors to status codes. Anything unexpected is
// logged and reported as a generic server error.
func (h *Handler) respondError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, models.ErrReportNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
	case errors.Is(err, models.ErrDuplicateVote):
		c.JSON(http.StatusBadRequest, gin.H{"error": "You have already voted on this report"})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error(message, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}
