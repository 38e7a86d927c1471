package store

import (
	"fmt"
	"strings"

	"github.com/AngelCh415/dmlab/internal/ingest"
	"github.com/AngelCh415/dmlab/internal/models"
)

func (s *MemoryStore) AddProspect(l models.Lead) (models.Lead, error) {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return l, fmt.Errorf("add prospect: %w: name is required", ErrInvalidInput)
	}
	l.Stage = ingest.ParseLeadStage(string(l.Stage))
	err := s.mutate("add prospect", func(st *models.AppState) error {
		l.ID = s.idOr(strings.TrimSpace(l.ID))
		if indexOf(st.Prospects, l.ID, leadID) >= 0 {
			return ErrDuplicateID
		}
		st.Prospects = append(st.Prospects, l)
		return nil
	})
	return l, err
}

func (s *MemoryStore) UpdateProspect(id string, l models.Lead) (models.Lead, error) {
	l.ID = id
	l.Name = strings.TrimSpace(l.Name)
	l.Stage = ingest.ParseLeadStage(string(l.Stage))
	err := s.mutate("update prospect", func(st *models.AppState) error {
		i := indexOf(st.Prospects, id, leadID)
		if i < 0 {
			return ErrNotFound
		}
		if l.Name == "" {
			l.Name = st.Prospects[i].Name
		}
		st.Prospects[i] = l
		return nil
	})
	return l, err
}

// MoveProspect sets the funnel stage. Unlike the normalizer it rejects unknown codes.
func (s *MemoryStore) MoveProspect(id string, stage models.FunnelStage) (models.Lead, error) {
	code := strings.ToUpper(strings.TrimSpace(string(stage)))
	if code == "" || (!models.FunnelStage(code).IsValid() && ingest.ParseLeadStage(code) == models.StageRequested) {
		return models.Lead{}, fmt.Errorf("move prospect: %w: unknown stage %q", ErrInvalidInput, stage)
	}
	target := ingest.ParseLeadStage(code)
	var out models.Lead
	err := s.mutate("move prospect", func(st *models.AppState) error {
		i := indexOf(st.Prospects, id, leadID)
		if i < 0 {
			return ErrNotFound
		}
		st.Prospects[i].Stage = target
		out = st.Prospects[i]
		return nil
	})
	return out, err
}

func (s *MemoryStore) DeleteProspect(id string) error {
	return s.mutate("delete prospect", func(st *models.AppState) error {
		i := indexOf(st.Prospects, id, leadID)
		if i < 0 {
			return ErrNotFound
		}
		st.Prospects = append(st.Prospects[:i:i], st.Prospects[i+1:]...)
		return nil
	})
}
