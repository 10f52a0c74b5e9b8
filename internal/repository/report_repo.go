package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"phishguard/internal/models"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultListLimit caps listings when the filter sets no limit
const DefaultListLimit = 1000

const reportColumns = `id, url, reporter_address, description, phishing_score,
	upvotes, downvotes, confirmed_scam, created_at`

// ReportRepository stores reports and their voter ledgers in SQLite
type ReportRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewReportRepository opens the database at dbPath and applies migrations
func NewReportRepository(dbPath string, logger *zap.Logger) (*ReportRepository, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serialises writers, so every vote transaction
	// sees the result of the previous one. It also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	repo := &ReportRepository{
		db:     db,
		logger: logger,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Report repository initialized", zap.String("db_path", dbPath))

	return repo, nil
}

func (r *ReportRepository) migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	driver, err := sqlitemigrate.WithInstance(r.db.DB, &sqlitemigrate.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Insert saves a new report
func (r *ReportRepository) Insert(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (` + reportColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		report.ID,
		report.URL,
		report.ReporterAddress,
		report.Description,
		report.PhishingScore,
		report.Upvotes,
		report.Downvotes,
		report.ConfirmedScam,
		report.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

// FindByID loads a report with its voter ledger
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.Report, error) {
	return findByID(ctx, r.db, id)
}

type voterRow struct {
	ReportID     string `db:"report_id"`
	VoterAddress string `db:"voter_address"`
	IsScam       bool   `db:"is_scam"`
}

func findByID(ctx context.Context, q sqlx.QueryerContext, id string) (*models.Report, error) {
	report := &models.Report{}
	err := sqlx.GetContext(ctx, q, report, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	var voters []voterRow
	err = sqlx.SelectContext(ctx, q, &voters,
		`SELECT report_id, voter_address, is_scam FROM report_voters WHERE report_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load voter ledger: %w", err)
	}

	report.Voters = make(models.Ledger, len(voters))
	for _, v := range voters {
		report.Voters[v.VoterAddress] = v.IsScam
	}
	return report, nil
}

// FindAll lists reports newest first, optionally filtered by status
func (r *ReportRepository) FindAll(ctx context.Context, filter models.ReportFilter) ([]*models.Report, error) {
	where := ""
	args := []interface{}{}
	switch filter.Status {
	case models.StatusConfirmed:
		where = "WHERE confirmed_scam = ?"
		args = append(args, true)
	case models.StatusPending:
		where = "WHERE confirmed_scam = ?"
		args = append(args, false)
	}

	// SQLite treats a negative LIMIT as unbounded.
	limit := filter.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + reportColumns + ` FROM reports ` + where + ` ORDER BY created_at DESC LIMIT ?`

	reports := []*models.Report{}
	if err := r.db.SelectContext(ctx, &reports, query, append(args, limit)...); err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}

	byID := make(map[string]*models.Report, len(reports))
	for _, report := range reports {
		report.Voters = models.Ledger{}
		byID[report.ID] = report
	}

	var voters []voterRow
	voterQuery := `
		SELECT v.report_id, v.voter_address, v.is_scam
		FROM report_voters v
		JOIN reports ON reports.id = v.report_id
		` + where
	if err := r.db.SelectContext(ctx, &voters, voterQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to query voter ledgers: %w", err)
	}
	for _, v := range voters {
		if report, ok := byID[v.ReportID]; ok {
			report.Voters[v.VoterAddress] = v.IsScam
		}
	}

	return reports, nil
}

// AtomicUpdate loads the report, lets mutate decide the change and persists
// the resulting delta in one transaction.
func (r *ReportRepository) AtomicUpdate(
	ctx context.Context,
	id string,
	mutate func(*models.Report) (models.VoteDelta, error),
) (*models.Report, models.VoteDelta, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, models.VoteDelta{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	report, err := findByID(ctx, tx, id)
	if err != nil {
		return nil, models.VoteDelta{}, err
	}

	delta, err := mutate(report)
	if err != nil {
		return nil, models.VoteDelta{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO report_voters (report_id, voter_address, is_scam, voted_at)
		VALUES (?, ?, ?, ?)
	`, id, delta.Voter, delta.IsScam, time.Now().UTC())
	if err != nil {
		if isPrimaryKeyViolation(err) {
			return nil, models.VoteDelta{}, models.ErrDuplicateVote
		}
		return nil, models.VoteDelta{}, fmt.Errorf("failed to record voter: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE reports
		SET upvotes = upvotes + ?, downvotes = downvotes + ?, confirmed_scam = (confirmed_scam OR ?)
		WHERE id = ?
	`, delta.UpvoteIncrement(), delta.DownvoteIncrement(), delta.Confirmed, id)
	if err != nil {
		return nil, models.VoteDelta{}, fmt.Errorf("failed to update vote counts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, models.VoteDelta{}, fmt.Errorf("failed to commit vote: %w", err)
	}

	return report, delta, nil
}

func isPrimaryKeyViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// Stats aggregates dashboard numbers over all reports
func (r *ReportRepository) Stats(ctx context.Context) (*models.DashboardStats, error) {
	var row struct {
		Total     int `db:"total"`
		Confirmed int `db:"confirmed"`
		Votes     int `db:"votes"`
		Reporters int `db:"reporters"`
	}

	err := r.db.GetContext(ctx, &row, `
		SELECT COUNT(*) AS total,
		       COALESCE(SUM(CASE WHEN confirmed_scam THEN 1 ELSE 0 END), 0) AS confirmed,
		       COALESCE(SUM(upvotes + downvotes), 0) AS votes,
		       COUNT(DISTINCT reporter_address) AS reporters
		FROM reports
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	return &models.DashboardStats{
		TotalReports:    row.Total,
		ConfirmedScams:  row.Confirmed,
		PendingReports:  row.Total - row.Confirmed,
		TotalVotes:      row.Votes,
		UniqueReporters: row.Reporters,
	}, nil
}

// Close closes the database connection
func (r *ReportRepository) Close() error {
	return r.db.Close()
}
