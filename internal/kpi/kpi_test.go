package kpi_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/dmlab/internal/kpi"
	"github.com/AngelCh415/dmlab/internal/models"
)

func primaryTargets() models.KpiTargets {
	return models.KpiTargets{
		models.MetricCR:        30,
		models.MetricPRR:       8,
		models.MetricABR:       4,
		models.MetricBookedKPI: 3,
	}
}

func TestCompute_BasicFunnel(t *testing.T) {
	logs := []models.DailyLog{{
		ConnectionRequestsSent:        100,
		ConnectionsAccepted:           30,
		PermissionMessagesSent:        30,
		PermissionPositives:           3,
		OfferOrBookingIntentPositives: 2,
		BookedCalls:                   1,
	}}

	res := kpi.ComputeLogs(logs, primaryTargets())

	cases := []struct {
		metric models.Metric
		want   float64
		pct    float64
	}{
		{models.MetricCR, 0.30, 30},
		{models.MetricPRR, 0.10, 10},
		{models.MetricABR, 2.0 / 30, 6.67},
		{models.MetricBookedKPI, 1.0 / 30, 3.33},
	}
	for _, tc := range cases {
		t.Run(string(tc.metric), func(t *testing.T) {
			mr, ok := res.Get(tc.metric)
			require.True(t, ok)
			require.NotNil(t, mr.Value)
			assert.InDelta(t, tc.want, *mr.Value, 1e-9)
			require.NotNil(t, mr.Pct)
			assert.InDelta(t, tc.pct, *mr.Pct, 1e-9)
			assert.Equal(t, models.StatusGood, mr.Status)
		})
	}
	assert.Equal(t, kpi.BottleneckNone, res.Bottleneck)
}

func TestCompute_SafeDivisionNeverNaN(t *testing.T) {
	res := kpi.Compute(kpi.Totals{}, models.DefaultKpiTargets())
	require.Len(t, res.Metrics, len(models.Metrics))
	for _, mr := range res.Metrics {
		assert.Nil(t, mr.Value, "metric %s", mr.Metric)
		assert.Nil(t, mr.Pct)
		assert.Equal(t, models.StatusNeutral, mr.Status)
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		tot := kpi.Totals{
			ConnectionRequestsSent:        rng.Intn(3),
			ConnectionsAccepted:           rng.Intn(3),
			PermissionMessagesSent:        rng.Intn(3),
			PermissionSeen:                rng.Intn(3),
			PermissionPositives:           rng.Intn(3),
			OfferOrBookingIntentPositives: rng.Intn(3),
			BookedCalls:                   rng.Intn(3),
			AttendedCalls:                 rng.Intn(3),
			ClosedDeals:                   rng.Intn(3),
		}
		for _, mr := range kpi.Compute(tot, models.DefaultKpiTargets()).Metrics {
			if mr.Value == nil {
				continue
			}
			assert.False(t, math.IsNaN(*mr.Value) || math.IsInf(*mr.Value, 0))
		}
	}
}

func TestCompute_ZeroRateIsNotNull(t *testing.T) {
	res := kpi.Compute(kpi.Totals{PermissionMessagesSent: 10}, primaryTargets())
	abr := res.Value(models.MetricABR)
	require.NotNil(t, abr)
	assert.Equal(t, 0.0, *abr)
	assert.Nil(t, res.Value(models.MetricCR))
}

func TestCompute_MetricWithoutTargetIsNeutral(t *testing.T) {
	res := kpi.Compute(kpi.Totals{BookedCalls: 2, AttendedCalls: 1}, primaryTargets())
	mr, ok := res.Get(models.MetricShowUpRate)
	require.True(t, ok)
	require.NotNil(t, mr.Value)
	assert.Nil(t, mr.Target)
	assert.Equal(t, models.StatusNeutral, mr.Status)
}

func TestClassify(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	tests := []struct {
		name   string
		value  *float64
		target float64
		want   models.Status
	}{
		{"null is neutral", nil, 10, models.StatusNeutral},
		{"exactly on target", f(0.10), 10, models.StatusGood},
		{"above target", f(0.2), 10, models.StatusGood},
		{"at warn threshold", f(0.09), 10, models.StatusWarn},
		{"just below warn", f(0.0899), 10, models.StatusBad},
		{"zero against zero target", f(0), 0, models.StatusGood},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, kpi.Classify(tt.value, tt.target))
		})
	}
}

func TestBottleneck(t *testing.T) {
	targets := primaryTargets()
	tests := []struct {
		name   string
		totals kpi.Totals
		want   string
	}{
		{
			name:   "all four healthy",
			totals: kpi.Totals{ConnectionRequestsSent: 10, ConnectionsAccepted: 5, PermissionMessagesSent: 10, PermissionPositives: 5, OfferOrBookingIntentPositives: 5, BookedCalls: 5},
			want:   kpi.BottleneckNone,
		},
		{
			name:   "abr healthy, booked weak",
			totals: kpi.Totals{ConnectionRequestsSent: 10, ConnectionsAccepted: 5, PermissionMessagesSent: 100, PermissionPositives: 50, OfferOrBookingIntentPositives: 10, BookedCalls: 1},
			want:   kpi.BottleneckBooking,
		},
		{
			name:   "prr healthy only",
			totals: kpi.Totals{PermissionMessagesSent: 100, PermissionPositives: 10, OfferOrBookingIntentPositives: 1},
			want:   kpi.BottleneckOffer,
		},
		{
			name:   "cr healthy only",
			totals: kpi.Totals{ConnectionRequestsSent: 100, ConnectionsAccepted: 40, PermissionMessagesSent: 40},
			want:   kpi.BottleneckPermission,
		},
		{
			name:   "nothing healthy",
			totals: kpi.Totals{ConnectionRequestsSent: 100, ConnectionsAccepted: 1, PermissionMessagesSent: 100},
			want:   kpi.BottleneckTargeting,
		},
		{
			name:   "no data at all",
			totals: kpi.Totals{},
			want:   kpi.BottleneckTargeting,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, kpi.Compute(tt.totals, targets).Bottleneck)
		})
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	logs := make([]models.DailyLog, 50)
	for i := range logs {
		logs[i] = models.DailyLog{
			ConnectionRequestsSent: rng.Intn(100),
			ConnectionsAccepted:    rng.Intn(50),
			PermissionMessagesSent: rng.Intn(50),
			PermissionSeen:         rng.Intn(50),
			PermissionPositives:    rng.Intn(10),
			OfferMessagesSent:      rng.Intn(10),
			OfferSeen:              rng.Intn(10),
			BookedCalls:            rng.Intn(3),
			AttendedCalls:          rng.Intn(3),
			ClosedDeals:            rng.Intn(2),
		}
	}
	want := kpi.Aggregate(logs)
	for i := 0; i < 10; i++ {
		shuffled := append([]models.DailyLog(nil), logs...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, kpi.Aggregate(shuffled))
	}

	var merged kpi.Totals
	merged.Merge(kpi.Aggregate(logs[:20]))
	merged.Merge(kpi.Aggregate(logs[20:]))
	assert.Equal(t, want, merged)
	assert.Equal(t, kpi.Totals{}, kpi.Aggregate(nil))
}

func TestFilter(t *testing.T) {
	logs := []models.DailyLog{
		{ID: "1", Date: "2024-03-01", AccountID: "a1", CampaignTag: "founders", ExperimentID: "e1", VariantID: "v1"},
		{ID: "2", Date: "2024-03-05", AccountID: "a2", CampaignTag: "founders", IsOldLeadsLane: true},
		{ID: "3", Date: "2024-03-09", AccountID: "a1", CampaignTag: "agencies", ExperimentID: "e1", VariantID: "v2"},
		{ID: "4", Date: "2024-02-28", AccountID: "a1", CampaignTag: "founders", IsOldLeadsLane: true},
	}
	ids := func(in []models.DailyLog) []string {
		out := []string{}
		for _, l := range in {
			out = append(out, l.ID)
		}
		return out
	}

	tests := []struct {
		name string
		c    kpi.Criteria
		want []string
	}{
		{"no criteria keeps order", kpi.Criteria{}, []string{"1", "2", "3", "4"}},
		{"all is unrestricted", kpi.Criteria{AccountID: "all", CampaignTag: "all"}, []string{"1", "2", "3", "4"}},
		{"account", kpi.Criteria{AccountID: "a1"}, []string{"1", "3", "4"}},
		{"campaign", kpi.Criteria{CampaignTag: "founders"}, []string{"1", "2", "4"}},
		{"experiment and variant", kpi.Criteria{ExperimentID: "e1", VariantID: "v2"}, []string{"3"}},
		{"inclusive date range", kpi.Criteria{DateRange: &kpi.DateRange{Start: "2024-03-01", End: "2024-03-05"}}, []string{"1", "2"}},
		{"open-ended range", kpi.Criteria{DateRange: &kpi.DateRange{Start: "2024-03-02"}}, []string{"2", "3"}},
		{"exclude old leads", kpi.Criteria{ExcludeOldLeads: true}, []string{"1", "3"}},
		{"only old leads wins", kpi.Criteria{ExcludeOldLeads: true, OnlyOldLeads: true}, []string{"2", "4"}},
		{"and of criteria", kpi.Criteria{AccountID: "a1", OnlyOldLeads: true}, []string{"4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(kpi.Filter(logs, tt.c)))
		})
	}
}

func TestOldLeadExclusion_IndependentAggregates(t *testing.T) {
	logs := []models.DailyLog{
		{ID: "old", IsOldLeadsLane: true, BookedCalls: 5},
		{ID: "new", BookedCalls: 1},
	}
	cfg := models.Config{ExcludeOldLeadsFromKpi: true}

	primary := kpi.Aggregate(kpi.Filter(logs, kpi.Criteria{}.WithOldLeadsPolicy(cfg)))
	oldLane := kpi.Aggregate(kpi.Filter(logs, kpi.Criteria{}.OldLane()))

	assert.Equal(t, 1, primary.BookedCalls)
	assert.Equal(t, 5, oldLane.BookedCalls)
}

func TestCriteria_WithOldLeadsPolicy(t *testing.T) {
	on := models.Config{ExcludeOldLeadsFromKpi: true}
	assert.True(t, kpi.Criteria{}.WithOldLeadsPolicy(on).ExcludeOldLeads)
	assert.False(t, kpi.Criteria{IncludeOldLeads: true}.WithOldLeadsPolicy(on).ExcludeOldLeads)
	assert.False(t, kpi.Criteria{}.WithOldLeadsPolicy(models.Config{}).ExcludeOldLeads)
	only := kpi.Criteria{OnlyOldLeads: true}.WithOldLeadsPolicy(on)
	assert.True(t, only.OnlyOldLeads)
	assert.False(t, only.ExcludeOldLeads)
}

func TestCriteria_KeyDistinguishesLanes(t *testing.T) {
	base := kpi.Criteria{AccountID: "a1"}
	assert.NotEqual(t, base.Key(), base.OldLane().Key())
	assert.Equal(t, base.Key(), kpi.Criteria{AccountID: "a1"}.Key())
	assert.NotEqual(t, base.Key(), kpi.Criteria{AccountID: "a1", IncludeOldLeads: true}.Key())
	assert.NotEqual(t, base.Key(), kpi.Criteria{AccountID: "a1", ExcludeOldLeads: true}.Key())
}
