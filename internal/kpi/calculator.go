package kpi

import (
	"github.com/AngelCh415/dmlab/internal/models"
)

// WarnRatio is the fraction of a target that still counts as "warn".
const WarnRatio = 0.9

// epsilon absorbs float noise from ratio*100 so 30/100 meets a target of 30.
const epsilon = 1e-9

type MetricResult struct {
	Metric models.Metric `json:"metric"`
	Value  *float64      `json:"value"`
	Pct    *float64      `json:"pct"`
	Target *float64      `json:"target"`
	Status models.Status `json:"status"`
}

type Result struct {
	Totals     Totals         `json:"totals"`
	Metrics    []MetricResult `json:"metrics"`
	Bottleneck string         `json:"bottleneck"`
}

// Get returns the result for one metric.
func (r Result) Get(m models.Metric) (MetricResult, bool) {
	for _, mr := range r.Metrics {
		if mr.Metric == m {
			return mr, true
		}
	}
	return MetricResult{}, false
}

// Value returns the ratio for m; nil means no data.
func (r Result) Value(m models.Metric) *float64 {
	mr, _ := r.Get(m)
	return mr.Value
}

// SafeDiv returns nil instead of NaN or Inf when there is no denominator.
func SafeDiv(num, den int) *float64 {
	if den <= 0 {
		return nil
	}
	v := float64(num) / float64(den)
	return &v
}

// Ratios computes every metric from totals.
func Ratios(t Totals) map[models.Metric]*float64 {
	return map[models.Metric]*float64{
		models.MetricCR:             SafeDiv(t.ConnectionsAccepted, t.ConnectionRequestsSent),
		models.MetricPRR:            SafeDiv(t.PermissionPositives, t.PermissionMessagesSent),
		models.MetricABR:            SafeDiv(t.OfferOrBookingIntentPositives, t.PermissionMessagesSent),
		models.MetricBookedKPI:      SafeDiv(t.BookedCalls, t.PermissionMessagesSent),
		models.MetricPositiveToABR:  SafeDiv(t.OfferOrBookingIntentPositives, t.PermissionPositives),
		models.MetricABRToBooked:    SafeDiv(t.BookedCalls, t.OfferOrBookingIntentPositives),
		models.MetricSeenRate:       SafeDiv(t.PermissionSeen, t.PermissionMessagesSent),
		models.MetricShowUpRate:     SafeDiv(t.AttendedCalls, t.BookedCalls),
		models.MetricSalesCloseRate: SafeDiv(t.ClosedDeals, t.AttendedCalls),
	}
}

// Classify compares a 0-1 ratio with a 0-100 target.
func Classify(v *float64, target float64) models.Status {
	if v == nil {
		return models.StatusNeutral
	}
	pct := *v*100 + epsilon
	switch {
	case pct >= target:
		return models.StatusGood
	case pct >= WarnRatio*target:
		return models.StatusWarn
	default:
		return models.StatusBad
	}
}

// Compute derives ratios, statuses and the bottleneck from totals.
func Compute(t Totals, targets models.KpiTargets) Result {
	ratios := Ratios(t)
	res := Result{Totals: t, Metrics: make([]MetricResult, 0, len(models.Metrics))}
	for _, m := range models.Metrics {
		mr := MetricResult{Metric: m, Value: ratios[m], Status: models.StatusNeutral}
		if mr.Value != nil {
			p := round2(*mr.Value * 100)
			mr.Pct = &p
		}
		if target, ok := targets[m]; ok {
			tg := target
			mr.Target = &tg
			mr.Status = Classify(mr.Value, target)
		}
		res.Metrics = append(res.Metrics, mr)
	}
	res.Bottleneck = Bottleneck(ratios, targets)
	return res
}

// ComputeLogs is Aggregate followed by Compute.
func ComputeLogs(logs []models.DailyLog, targets models.KpiTargets) Result {
	return Compute(Aggregate(logs), targets)
}

func round2(f float64) float64 { return float64(int64(f*100+0.5)) / 100 }
