package store

import (
	"fmt"
	"math"

	"github.com/AngelCh415/dmlab/internal/models"
)

// UpdateTargets overrides the given metrics and leaves the others untouched.
func (s *MemoryStore) UpdateTargets(targets models.KpiTargets) (models.KpiTargets, error) {
	for m, v := range targets {
		if !m.IsValid() {
			return nil, fmt.Errorf("update targets: %w: unknown metric %q", ErrInvalidInput, m)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("update targets: %w: %s must be finite", ErrInvalidInput, m)
		}
	}
	var out models.KpiTargets
	err := s.mutate("update targets", func(st *models.AppState) error {
		if st.Config.KpiTargets == nil {
			st.Config.KpiTargets = models.DefaultKpiTargets()
		}
		for m, v := range targets {
			st.Config.KpiTargets[m] = math.Max(v, 0)
		}
		out = make(models.KpiTargets, len(st.Config.KpiTargets))
		for m, v := range st.Config.KpiTargets {
			out[m] = v
		}
		return nil
	})
	return out, err
}

// Flags is a partial update of the config switches; nil fields are left alone.
type Flags struct {
	ExcludeOldLeadsFromKpi *bool `json:"excludeOldLeadsFromKpi"`
	Autosave               *bool `json:"autosave"`
}

func (s *MemoryStore) SetFlags(f Flags) error {
	return s.mutate("set flags", func(st *models.AppState) error {
		if f.ExcludeOldLeadsFromKpi != nil {
			st.Config.ExcludeOldLeadsFromKpi = *f.ExcludeOldLeadsFromKpi
		}
		if f.Autosave != nil {
			st.Config.Autosave = *f.Autosave
		}
		return nil
	})
}
