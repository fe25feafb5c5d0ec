package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ataa-platform/ataa/internal/analytics"
	_ "github.com/ataa-platform/ataa/testing"
)

type stubAggregates struct {
	loads   int
	summary analytics.Summary
	top     []analytics.TopProject
}

func (s *stubAggregates) DonationAggregates(ctx context.Context) (analytics.Summary, error) {
	s.loads++
	return s.summary, nil
}

func (s *stubAggregates) ProjectCounts(ctx context.Context) (int64, int64, error) {
	return 4, 3, nil
}

func (s *stubAggregates) TopProjects(ctx context.Context, limit int) ([]analytics.TopProject, error) {
	if len(s.top) > limit {
		return s.top[:limit], nil
	}
	return s.top, nil
}

func newAnalyticsService(t *testing.T, repo analytics.Repository) *analytics.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return analytics.NewService(repo, analytics.NewCache(client, time.Minute))
}

func TestSummaryServedFromCache(t *testing.T) {
	repo := &stubAggregates{
		summary: analytics.Summary{PaidCount: 10, PaidMinor: 125000},
		top:     []analytics.TopProject{{ID: 1, Title: "Water well", RaisedMinor: 90000}},
	}
	service := newAnalyticsService(t, repo)

	first, err := service.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(10), first.PaidCount)
	require.Equal(t, int64(4), first.ProjectCount)
	require.Equal(t, int64(3), first.ActiveProjects)
	require.Len(t, first.TopProjects, 1)

	_, err = service.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, repo.loads, "second read must hit the cache")
}

func TestBumpInvalidatesSummary(t *testing.T) {
	repo := &stubAggregates{summary: analytics.Summary{PaidCount: 1}}
	service := newAnalyticsService(t, repo)

	_, err := service.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, repo.loads)

	require.NoError(t, service.Bump(context.Background()))

	_, err = service.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, repo.loads, "bump must force a reload")
}

func TestWarmPopulatesCache(t *testing.T) {
	repo := &stubAggregates{summary: analytics.Summary{PaidCount: 2}}
	service := newAnalyticsService(t, repo)

	require.NoError(t, service.Warm(context.Background()))
	require.Equal(t, 1, repo.loads)

	_, err := service.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, repo.loads)
}

func TestCacheVersionInitialises(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := analytics.NewCache(client, time.Minute)

	ver, err := cache.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)

	require.NoError(t, cache.Bump(context.Background()))
	ver, err = cache.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), ver)
}
