package metrics

import "github.com/AngelCh415/dmlab/internal/models"

type BoardColumn struct {
	Stage models.FunnelStage `json:"stage"`
	Count int                `json:"count"`
	Leads []models.Lead      `json:"leads"`
}

// BoardFilter narrows the lead board; empty AccountID or "all" shows every account.
type BoardFilter struct {
	AccountID string
	OldLane   *bool
}

// LeadBoard groups prospects into one column per funnel stage, in pipeline order.
func (s *Service) LeadBoard(f BoardFilter) []BoardColumn {
	cols := make([]BoardColumn, len(models.FunnelStages))
	index := make(map[models.FunnelStage]int, len(models.FunnelStages))
	for i, st := range models.FunnelStages {
		cols[i] = BoardColumn{Stage: st, Leads: []models.Lead{}}
		index[st] = i
	}
	s.st.Read(func(st models.AppState, _ uint64) {
		for _, p := range st.Prospects {
			if f.AccountID != "" && f.AccountID != "all" && p.AccountID != f.AccountID {
				continue
			}
			if f.OldLane != nil && p.IsOldLeadsLane != *f.OldLane {
				continue
			}
			i, ok := index[p.Stage]
			if !ok {
				i = 0
			}
			cols[i].Leads = append(cols[i].Leads, p)
			cols[i].Count++
		}
	})
	return cols
}
