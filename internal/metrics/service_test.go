package metrics_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AngelCh415/dmlab/internal/cache"
	"github.com/AngelCh415/dmlab/internal/ingest"
	"github.com/AngelCh415/dmlab/internal/kpi"
	"github.com/AngelCh415/dmlab/internal/metrics"
	"github.com/AngelCh415/dmlab/internal/models"
	"github.com/AngelCh415/dmlab/internal/store"
)

const fixture = `{
	"config": {
		"accounts": [
			{"id": "acc1", "name": "Main", "weeklyGoals": {"connectionRequests": 20, "permissionSent": 0, "bookedCalls": 2}},
			{"id": "acc2", "name": "Side"}
		]
	},
	"logs": [
		{"id": "l1", "date": "2024-03-04", "accountId": "acc1", "campaignTag": "founders", "connectionRequestsSent": 10, "connectionsAccepted": 3, "permissionMessagesSent": 10, "bookedCalls": 1, "experimentId": "e1", "variantId": "v1", "permissionSeen": 60},
		{"id": "l2", "date": "2024-03-05", "accountId": "acc2", "campaignTag": "agencies", "connectionRequestsSent": 20, "connectionsAccepted": 2},
		{"id": "l3", "date": "2024-03-06", "accountId": "acc1", "campaignTag": "founders", "isOldLeadsLane": true, "permissionMessagesSent": 5, "bookedCalls": 4},
		{"id": "l4", "date": "2024-02-26", "accountId": "acc1", "connectionRequestsSent": 99}
	],
	"experiments": [{"id": "e1", "name": "Opener", "funnelStageTargeted": "PERMISSION", "variants": [{"id": "v1"}, {"id": "v2"}]}],
	"prospects": [
		{"id": "p1", "name": "Ana", "accountId": "acc1", "stage": "BOOKED"},
		{"id": "p2", "name": "Bo", "accountId": "acc2", "stage": "A"},
		{"id": "p3", "name": "Cy", "accountId": "acc1", "stage": "REQUESTED", "isOldLeadsLane": true}
	]
}`

func newService(t *testing.T) (*metrics.Service, *store.MemoryStore, *metrics.Collectors) {
	t.Helper()
	st, _ := ingest.NormalizeJSON([]byte(fixture))
	ms := store.NewMemoryStore(st, zap.NewNop())
	col := metrics.NewCollectors()
	svc := metrics.NewService(ms, zap.NewNop(), metrics.WithCache(cache.NewMemory(0), time.Minute), metrics.WithCollectors(col))
	return svc, ms, col
}

func TestReport_SeparatesOldLeadLane(t *testing.T) {
	svc, _, _ := newService(t)

	rep, err := svc.Report(context.Background(), kpi.Criteria{AccountID: "acc1"})
	require.NoError(t, err)

	assert.True(t, rep.Criteria.ExcludeOldLeads)
	assert.Equal(t, 2, rep.Rows)
	assert.Equal(t, 1, rep.Kpis.Totals.BookedCalls)
	assert.Equal(t, 1, rep.OldLeadRows)
	assert.Equal(t, 4, rep.OldLeads.Totals.BookedCalls)

	rep, err = svc.Report(context.Background(), kpi.Criteria{AccountID: "acc1", IncludeOldLeads: true})
	require.NoError(t, err)
	assert.Equal(t, 5, rep.Kpis.Totals.BookedCalls)
}

func TestReport_MemoizedPerRevision(t *testing.T) {
	svc, ms, col := newService(t)
	ctx := context.Background()

	first, err := svc.Report(ctx, kpi.Criteria{})
	require.NoError(t, err)
	second, err := svc.Report(ctx, kpi.Criteria{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(col.CacheLookups.WithLabelValues("report", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(col.CacheLookups.WithLabelValues("report", "miss")))

	_, err = ms.AddLog(models.DailyLog{AccountID: "acc2", BookedCalls: 7})
	require.NoError(t, err)

	third, err := svc.Report(ctx, kpi.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, first.Kpis.Totals.BookedCalls+7, third.Kpis.Totals.BookedCalls)
	assert.Greater(t, third.Revision, first.Revision)
	assert.Equal(t, 2.0, testutil.ToFloat64(col.CacheLookups.WithLabelValues("report", "miss")))
}

func TestBreakdown(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	page, err := svc.Breakdown(ctx, metrics.ByAccount, kpi.Criteria{IncludeOldLeads: true}, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	assert.Equal(t, "acc1", page.Items[0].Key)
	assert.Equal(t, "Main", page.Items[0].Label)
	assert.Equal(t, 3, page.Items[0].Rows)
	assert.Equal(t, "Side", page.Items[1].Label)
	assert.Equal(t, 100, page.Limit)

	page, err = svc.Breakdown(ctx, metrics.ByDate, kpi.Criteria{}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "2024-03-04", page.Items[0].Key)

	page, err = svc.Breakdown(ctx, metrics.ByVariant, kpi.Criteria{}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	assert.Equal(t, "Unassigned", page.Items[0].Label)
	assert.Equal(t, "Opener / Variant A", page.Items[1].Label)

	page, err = svc.Breakdown(ctx, metrics.ByCampaign, kpi.Criteria{}, 10, 50)
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	_, err = svc.Breakdown(ctx, "week", kpi.Criteria{}, 0, 0)
	assert.ErrorIs(t, err, metrics.ErrBadQuery)
}

func TestEvaluate(t *testing.T) {
	svc, _, _ := newService(t)

	ev, err := svc.Evaluate(context.Background(), "e1", kpi.Criteria{})
	require.NoError(t, err)
	require.Len(t, ev.VariantStats, 2)
	require.NotNil(t, ev.Winner)
	assert.Equal(t, "v1", ev.Winner.VariantID)
	assert.False(t, ev.VariantStats[1].IsValid)

	_, err = svc.Evaluate(context.Background(), "missing", kpi.Criteria{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEvaluate_MemoSeparatesOldLeadsPolicy(t *testing.T) {
	svc, ms, _ := newService(t)
	ctx := context.Background()
	_, err := ms.AddLog(models.DailyLog{
		ID: "old1", Date: "2024-03-07", AccountID: "acc1", ExperimentID: "e1", VariantID: "v1",
		IsOldLeadsLane: true, PermissionSeen: 40, PermissionMessagesSent: 4,
	})
	require.NoError(t, err)

	byDefault, err := svc.Evaluate(ctx, "e1", kpi.Criteria{})
	require.NoError(t, err)
	withOld, err := svc.Evaluate(ctx, "e1", kpi.Criteria{IncludeOldLeads: true})
	require.NoError(t, err)
	again, err := svc.Evaluate(ctx, "e1", kpi.Criteria{})
	require.NoError(t, err)

	assert.Equal(t, 60, byDefault.VariantStats[0].Totals.PermissionSeen)
	assert.Equal(t, 100, withOld.VariantStats[0].Totals.PermissionSeen)
	assert.Equal(t, byDefault, again)
}

func TestWeeklyGoals(t *testing.T) {
	svc, _, _ := newService(t)

	got := svc.WeeklyGoals(time.Date(2024, 3, 6, 15, 0, 0, 0, time.UTC))
	require.Len(t, got, 2)

	main := got[0]
	assert.Equal(t, "2024-03-04", main.WeekStart)
	assert.Equal(t, "2024-03-10", main.WeekEnd)
	assert.Equal(t, 10, main.ConnectionRequests.Actual)
	require.NotNil(t, main.ConnectionRequests.Pct)
	assert.Equal(t, 50.0, *main.ConnectionRequests.Pct)
	assert.Equal(t, 15, main.PermissionSent.Actual)
	assert.Nil(t, main.PermissionSent.Pct)
	assert.Equal(t, 5, main.BookedCalls.Actual)
	assert.Equal(t, 250.0, *main.BookedCalls.Pct)

	assert.Equal(t, 100, got[1].ConnectionRequests.Goal)
}

func TestISOWeek(t *testing.T) {
	tests := []struct{ ref, start, end string }{
		{"2024-03-04", "2024-03-04", "2024-03-10"},
		{"2024-03-10", "2024-03-04", "2024-03-10"},
		{"2024-01-01", "2024-01-01", "2024-01-07"},
		{"2023-12-31", "2023-12-25", "2023-12-31"},
	}
	for _, tt := range tests {
		ref, _ := time.Parse("2006-01-02", tt.ref)
		start, end := metrics.ISOWeek(ref)
		assert.Equal(t, tt.start, start, tt.ref)
		assert.Equal(t, tt.end, end, tt.ref)
	}
}

func TestLeadBoard(t *testing.T) {
	svc, _, _ := newService(t)

	cols := svc.LeadBoard(metrics.BoardFilter{})
	require.Len(t, cols, len(models.FunnelStages))
	assert.Equal(t, models.StageRequested, cols[0].Stage)
	assert.Equal(t, 1, cols[0].Count)
	assert.Equal(t, 1, cols[1].Count)
	assert.Equal(t, "p1", cols[5].Leads[0].ID)

	notOld := false
	cols = svc.LeadBoard(metrics.BoardFilter{AccountID: "acc1", OldLane: &notOld})
	total := 0
	for _, c := range cols {
		total += c.Count
	}
	assert.Equal(t, 1, total)
}

func TestCriteriaFromQuery(t *testing.T) {
	c, err := metrics.CriteriaFromQuery(url.Values{
		"accountId": {"acc1"}, "start": {"2024-03-01"}, "oldLeads": {"only"},
	})
	require.NoError(t, err)
	assert.Equal(t, "acc1", c.AccountID)
	require.NotNil(t, c.DateRange)
	assert.Equal(t, "2024-03-01", c.DateRange.Start)
	assert.True(t, c.OnlyOldLeads)

	bad := []url.Values{
		{"start": {"03/01/2024"}},
		{"start": {"2024-03-05"}, "end": {"2024-03-01"}},
		{"oldLeads": {"maybe"}},
	}
	for _, v := range bad {
		_, err := metrics.CriteriaFromQuery(v)
		assert.ErrorIs(t, err, metrics.ErrBadQuery, v.Encode())
	}
}
