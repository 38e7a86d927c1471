package kpi

import "github.com/AngelCh415/dmlab/internal/models"

type VariantStat struct {
	VariantID   string        `json:"variantId"`
	Name        string        `json:"name"`
	Totals      Totals        `json:"totals"`
	Kpis        Result        `json:"kpis"`
	MetricValue *float64      `json:"metricValue"`
	Seen        int           `json:"seen"`
	IsValid     bool          `json:"isValid"`
	Metric      models.Metric `json:"metric"`
}

type Evaluation struct {
	ExperimentID           string        `json:"experimentId"`
	PrimaryMetric          models.Metric `json:"primaryMetric"`
	RequiredSampleSizeSeen int           `json:"requiredSampleSizeSeen"`
	VariantStats           []VariantStat `json:"variantStats"`
	// Winner is nil when no variant has enough sample.
	Winner *VariantStat `json:"winner"`
}

// InsufficientSample reports that no winner may be declared yet.
func (e Evaluation) InsufficientSample() bool { return e.Winner == nil }

// SeenFor picks the validity denominator for the experiment's stage.
func SeenFor(stage models.ExperimentStage, t Totals) int {
	switch stage {
	case models.ExperimentStagePermission:
		return t.PermissionSeen
	case models.ExperimentStageOffer:
		return t.OfferSeen
	default:
		return 0
	}
}

// Evaluate scores every variant of exp over the matching logs and picks a winner
// among the variants that reached the required sample.
func Evaluate(exp models.Experiment, logs []models.DailyLog, c Criteria, cfg models.Config) Evaluation {
	base := c.WithOldLeadsPolicy(cfg)
	base.ExperimentID = exp.ID

	ev := Evaluation{
		ExperimentID:           exp.ID,
		PrimaryMetric:          exp.PrimaryMetric,
		RequiredSampleSizeSeen: exp.RequiredSampleSizeSeen,
		VariantStats:           make([]VariantStat, 0, len(exp.Variants)),
	}
	for _, v := range exp.Variants {
		vc := base
		vc.VariantID = v.ID
		totals := Aggregate(Filter(logs, vc))
		res := Compute(totals, cfg.KpiTargets)
		seen := SeenFor(exp.FunnelStageTargeted, totals)
		ev.VariantStats = append(ev.VariantStats, VariantStat{
			VariantID:   v.ID,
			Name:        v.Name,
			Totals:      totals,
			Kpis:        res,
			MetricValue: res.Value(exp.PrimaryMetric),
			Seen:        seen,
			IsValid:     exp.RequiredSampleSizeSeen == 0 || seen >= exp.RequiredSampleSizeSeen,
			Metric:      exp.PrimaryMetric,
		})
	}

	best := -1
	for i, vs := range ev.VariantStats {
		if !vs.IsValid {
			continue
		}
		if best < 0 || rankValue(vs.MetricValue) > rankValue(ev.VariantStats[best].MetricValue) {
			best = i
		}
	}
	if best >= 0 {
		w := ev.VariantStats[best]
		ev.Winner = &w
	}
	return ev
}

// rankValue ranks a missing value below any real one, including 0.
func rankValue(v *float64) float64 {
	if v == nil {
		return -1
	}
	return *v
}
