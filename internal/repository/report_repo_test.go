package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"phishguard/internal/models"
	"phishguard/internal/repository"
)

func newRepo(t *testing.T) *repository.ReportRepository {
	t.Helper()
	repo, err := repository.NewReportRepository(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func insertReport(t *testing.T, repo *repository.ReportRepository, id, reporter string, at time.Time) *models.Report {
	t.Helper()
	score := 65.0
	r := &models.Report{
		ID:              id,
		URL:             "http://" + id + ".example.tk/login",
		ReporterAddress: reporter,
		PhishingScore:   &score,
		Timestamp:       at.UTC(),
	}
	require.NoError(t, repo.Insert(context.Background(), r))
	return r
}

func vote(repo *repository.ReportRepository, id, voter string, scam bool) (*models.Report, models.VoteDelta, error) {
	return repo.AtomicUpdate(context.Background(), id, func(r *models.Report) (models.VoteDelta, error) {
		return r.ApplyVote(voter, scam)
	})
}

func TestReportRepository_InsertAndFind(t *testing.T) {
	repo := newRepo(t)
	desc := "fake bank login"
	now := time.Now().UTC().Truncate(time.Second)

	in := &models.Report{
		ID:              "abc",
		URL:             "http://192.168.1.1/login.php",
		ReporterAddress: "0xreporter",
		Description:     &desc,
		Timestamp:       now,
	}
	require.NoError(t, repo.Insert(context.Background(), in))

	got, err := repo.FindByID(context.Background(), "abc")
	require.NoError(t, err)

	assert.Equal(t, in.URL, got.URL)
	assert.Equal(t, in.ReporterAddress, got.ReporterAddress)
	require.NotNil(t, got.Description)
	assert.Equal(t, desc, *got.Description)
	assert.Nil(t, got.PhishingScore)
	assert.False(t, got.ConfirmedScam)
	assert.True(t, now.Equal(got.Timestamp))
	assert.Empty(t, got.Voters)
}

func TestReportRepository_FindByIDMissing(t *testing.T) {
	repo := newRepo(t)

	_, err := repo.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrReportNotFound)
}

func TestReportRepository_AtomicUpdatePersistsVote(t *testing.T) {
	repo := newRepo(t)
	insertReport(t, repo, "r1", "0xrep", time.Now())

	for i := 0; i < 3; i++ {
		_, _, err := vote(repo, "r1", fmt.Sprintf("0xv%d", i), true)
		require.NoError(t, err)
	}

	got, err := repo.FindByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Upvotes)
	assert.Equal(t, 0, got.Downvotes)
	assert.True(t, got.ConfirmedScam)
	assert.Equal(t, []string{"0xv0", "0xv1", "0xv2"}, got.Voters.Addresses())
}

func TestReportRepository_AtomicUpdateDuplicate(t *testing.T) {
	repo := newRepo(t)
	insertReport(t, repo, "r1", "0xrep", time.Now())

	_, _, err := vote(repo, "r1", "0xv", true)
	require.NoError(t, err)

	_, _, err = vote(repo, "r1", "0xv", false)
	require.ErrorIs(t, err, models.ErrDuplicateVote)

	got, err := repo.FindByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Upvotes)
	assert.Equal(t, 0, got.Downvotes)
}

func TestReportRepository_AtomicUpdateMissing(t *testing.T) {
	repo := newRepo(t)

	_, _, err := vote(repo, "ghost", "0xv", true)
	assert.ErrorIs(t, err, models.ErrReportNotFound)
}

func TestReportRepository_ConcurrentVotesDoNotLoseIncrements(t *testing.T) {
	repo := newRepo(t)
	insertReport(t, repo, "r1", "0xrep", time.Now())

	const voters = 20
	var wg sync.WaitGroup
	errs := make(chan error, voters*2)
	for i := 0; i < voters; i++ {
		wg.Add(2)
		addr := fmt.Sprintf("0x%02d", i)
		// every address tries twice; exactly one attempt may land
		for j := 0; j < 2; j++ {
			go func(scam bool) {
				defer wg.Done()
				_, _, err := vote(repo, "r1", addr, scam)
				errs <- err
			}(i%2 == 0)
		}
	}
	wg.Wait()
	close(errs)

	accepted, duplicates := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			accepted++
		case assert.ErrorIs(t, err, models.ErrDuplicateVote):
			duplicates++
		}
	}
	assert.Equal(t, voters, accepted)
	assert.Equal(t, voters, duplicates)

	got, err := repo.FindByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, voters, got.Upvotes+got.Downvotes)
	assert.Len(t, got.Voters, voters)
}

func TestReportRepository_FindAllFilters(t *testing.T) {
	repo := newRepo(t)
	base := time.Now().Add(-time.Hour)
	insertReport(t, repo, "old", "0xa", base)
	insertReport(t, repo, "mid", "0xb", base.Add(time.Minute))
	insertReport(t, repo, "new", "0xa", base.Add(2*time.Minute))

	for i := 0; i < 3; i++ {
		_, _, err := vote(repo, "mid", fmt.Sprintf("0xv%d", i), true)
		require.NoError(t, err)
	}
	_, _, err := vote(repo, "old", "0xv0", false)
	require.NoError(t, err)

	all, err := repo.FindAll(context.Background(), models.ReportFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "old", all[2].ID)
	assert.Len(t, all[1].Voters, 3)

	confirmed, err := repo.FindAll(context.Background(), models.ReportFilter{Status: models.StatusConfirmed})
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, "mid", confirmed[0].ID)

	pending, err := repo.FindAll(context.Background(), models.ReportFilter{Status: models.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, map[string]bool{"0xv0": false}, map[string]bool(pending[1].Voters))

	limited, err := repo.FindAll(context.Background(), models.ReportFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestReportRepository_Stats(t *testing.T) {
	repo := newRepo(t)

	empty, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DashboardStats{}, *empty)

	now := time.Now()
	insertReport(t, repo, "r1", "0xa", now)
	insertReport(t, repo, "r2", "0xa", now)
	insertReport(t, repo, "r3", "0xb", now)

	for i := 0; i < 3; i++ {
		_, _, err := vote(repo, "r1", fmt.Sprintf("0xv%d", i), true)
		require.NoError(t, err)
	}
	_, _, err = vote(repo, "r2", "0xv0", false)
	require.NoError(t, err)

	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DashboardStats{
		TotalReports:    3,
		ConfirmedScams:  1,
		PendingReports:  2,
		TotalVotes:      4,
		UniqueReporters: 2,
	}, *stats)
}
