package kpi

import (
	"strings"

	"github.com/AngelCh415/dmlab/internal/models"
)

// DateRange is inclusive on both ends; an empty bound is open.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Criteria selects logs. Zero values mean "no restriction"; a log passes only
// when it satisfies every supplied field.
type Criteria struct {
	AccountID    string     `json:"accountId,omitempty"`
	CampaignTag  string     `json:"campaignTag,omitempty"`
	ExperimentID string     `json:"experimentId,omitempty"`
	VariantID    string     `json:"variantId,omitempty"`
	DateRange    *DateRange `json:"dateRange,omitempty"`

	// OnlyOldLeads wins over ExcludeOldLeads. IncludeOldLeads is the explicit
	// "no restriction" setting and is never needed to see both lanes.
	IncludeOldLeads bool `json:"includeOldLeads,omitempty"`
	ExcludeOldLeads bool `json:"excludeOldLeads,omitempty"`
	OnlyOldLeads    bool `json:"onlyOldLeads,omitempty"`
}

// WithOldLeadsPolicy applies the config's exclusion flag unless the caller
// already asked for a specific lane.
func (c Criteria) WithOldLeadsPolicy(cfg models.Config) Criteria {
	if cfg.ExcludeOldLeadsFromKpi && !c.OnlyOldLeads && !c.IncludeOldLeads {
		c.ExcludeOldLeads = true
	}
	return c
}

// OldLane returns the same criteria restricted to the reactivation lane.
func (c Criteria) OldLane() Criteria {
	c.OnlyOldLeads = true
	c.ExcludeOldLeads = false
	c.IncludeOldLeads = false
	return c
}

// Key is a stable representation used for memoization.
func (c Criteria) Key() string {
	var b strings.Builder
	for _, p := range []string{c.AccountID, c.CampaignTag, c.ExperimentID, c.VariantID} {
		b.WriteString(p)
		b.WriteByte('|')
	}
	if c.DateRange != nil {
		b.WriteString(c.DateRange.Start)
		b.WriteByte('~')
		b.WriteString(c.DateRange.End)
	}
	b.WriteByte('|')
	switch {
	case c.OnlyOldLeads:
		b.WriteString("only")
	case c.ExcludeOldLeads:
		b.WriteString("exclude")
	case c.IncludeOldLeads:
		b.WriteString("include")
	default:
		b.WriteString("any")
	}
	return b.String()
}

// Match reports whether a single log satisfies the criteria.
func (c Criteria) Match(l models.DailyLog) bool {
	if !unrestricted(c.AccountID) && l.AccountID != c.AccountID {
		return false
	}
	if !unrestricted(c.CampaignTag) && l.CampaignTag != c.CampaignTag {
		return false
	}
	if c.ExperimentID != "" && l.ExperimentID != c.ExperimentID {
		return false
	}
	if c.VariantID != "" && l.VariantID != c.VariantID {
		return false
	}
	if c.DateRange != nil {
		// ISO calendar dates sort lexicographically.
		if c.DateRange.Start != "" && l.Date < c.DateRange.Start {
			return false
		}
		if c.DateRange.End != "" && l.Date > c.DateRange.End {
			return false
		}
	}
	switch {
	case c.OnlyOldLeads:
		return l.IsOldLeadsLane
	case c.ExcludeOldLeads:
		return !l.IsOldLeadsLane
	}
	return true
}

// Filter keeps the logs matching c, preserving input order.
func Filter(logs []models.DailyLog, c Criteria) []models.DailyLog {
	out := make([]models.DailyLog, 0, len(logs))
	for _, l := range logs {
		if c.Match(l) {
			out = append(out, l)
		}
	}
	return out
}

func unrestricted(v string) bool { return v == "" || v == "all" }
