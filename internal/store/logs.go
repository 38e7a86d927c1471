package store

import (
	"github.com/AngelCh415/dmlab/internal/ingest"
	"github.com/AngelCh415/dmlab/internal/models"
)

// AddLog appends l, assigning an id when it has none. Counts go through the
// normalizer's clamp.
func (s *MemoryStore) AddLog(l models.DailyLog) (models.DailyLog, error) {
	l = ingest.ClampLog(l)
	err := s.mutate("add log", func(st *models.AppState) error {
		l.ID = s.idOr(l.ID)
		if indexOf(st.Logs, l.ID, logID) >= 0 {
			return ErrDuplicateID
		}
		st.Logs = append(st.Logs, l)
		return nil
	})
	return l, err
}

// ImportLogs appends every record, giving a fresh id to records whose id is
// missing or already taken.
func (s *MemoryStore) ImportLogs(logs []models.DailyLog) ([]models.DailyLog, error) {
	out := make([]models.DailyLog, 0, len(logs))
	err := s.mutate("import logs", func(st *models.AppState) error {
		taken := make(map[string]struct{}, len(st.Logs)+len(logs))
		for _, l := range st.Logs {
			taken[l.ID] = struct{}{}
		}
		for _, l := range logs {
			l = ingest.ClampLog(l)
			if _, dup := taken[l.ID]; dup || l.ID == "" {
				l.ID = s.newID()
			}
			taken[l.ID] = struct{}{}
			out = append(out, l)
		}
		st.Logs = append(st.Logs, out...)
		return nil
	})
	return out, err
}

// UpdateLog replaces the log with the given id.
func (s *MemoryStore) UpdateLog(id string, l models.DailyLog) (models.DailyLog, error) {
	l = ingest.ClampLog(l)
	l.ID = id
	err := s.mutate("update log", func(st *models.AppState) error {
		i := indexOf(st.Logs, id, logID)
		if i < 0 {
			return ErrNotFound
		}
		st.Logs[i] = l
		return nil
	})
	return l, err
}

func (s *MemoryStore) DeleteLog(id string) error {
	return s.mutate("delete log", func(st *models.AppState) error {
		i := indexOf(st.Logs, id, logID)
		if i < 0 {
			return ErrNotFound
		}
		st.Logs = append(st.Logs[:i:i], st.Logs[i+1:]...)
		return nil
	})
}
