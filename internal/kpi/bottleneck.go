package kpi

import "github.com/AngelCh415/dmlab/internal/models"

const (
	BottleneckNone       = "None (scale volume)"
	BottleneckBooking    = "Booking stage"
	BottleneckOffer      = "Offer stage"
	BottleneckPermission = "Permission stage"
	BottleneckTargeting  = "Targeting/Profile resonance"
)

// bottleneckLadder is read from the latest stage backwards; the first healthy
// metric names the stage right after it.
var bottleneckLadder = []struct {
	metric    models.Metric
	diagnosis string
}{
	{models.MetricBookedKPI, BottleneckNone},
	{models.MetricABR, BottleneckBooking},
	{models.MetricPRR, BottleneckOffer},
	{models.MetricCR, BottleneckPermission},
}

// Bottleneck names the stage where leads are lost. Missing ratios count as 0 and
// missing targets as 0 here only.
func Bottleneck(ratios map[models.Metric]*float64, targets models.KpiTargets) string {
	for _, step := range bottleneckLadder {
		if meetsTarget(ratios[step.metric], targets[step.metric]) {
			return step.diagnosis
		}
	}
	return BottleneckTargeting
}

func meetsTarget(v *float64, target float64) bool {
	pct := 0.0
	if v != nil {
		pct = *v * 100
	}
	return pct+epsilon >= target
}
