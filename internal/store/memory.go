package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AngelCh415/dmlab/internal/models"
)

// MemoryStore is the single authority for the application state. Every action
// runs under the write lock and bumps the revision used to key memoized reports.
type MemoryStore struct {
	mu    sync.RWMutex
	state models.AppState
	rev   uint64
	saved uint64
	log   *zap.Logger
	newID func() string
}

func NewMemoryStore(initial models.AppState, log *zap.Logger) *MemoryStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &MemoryStore{state: initial.Clone(), log: log, newID: uuid.NewString}
}

// Snapshot returns a deep copy of the current state.
func (s *MemoryStore) Snapshot() models.AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Read runs fn against the live state under the read lock. fn must not retain
// or modify any slice it is given.
func (s *MemoryStore) Read(fn func(st models.AppState, rev uint64)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state, s.rev)
}

func (s *MemoryStore) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}

// Dirty reports whether the state changed since the last MarkSaved.
func (s *MemoryStore) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev != s.saved
}

// Autosave reports the config.autosave flag.
func (s *MemoryStore) Autosave() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Config.Autosave
}

// Envelope stamps the current state for persistence and returns the revision it
// reflects, to be handed back to MarkSaved once written.
func (s *MemoryStore) Envelope(now time.Time) (models.PersistedState, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.PersistedState{
		SchemaVersion: models.CurrentSchemaVersion,
		SavedAt:       now.UTC().Format(time.RFC3339),
		Data:          s.state.Clone(),
	}, s.rev
}

// MarkSaved records that rev was persisted. Later changes keep the store dirty.
func (s *MemoryStore) MarkSaved(rev uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rev > s.saved {
		s.saved = rev
	}
}

// Replace swaps in a whole normalized state (load, save, sync pull).
// Replace swaps in st. It returns the state it displaced and the new revision.
func (s *MemoryStore) Replace(st models.AppState) (models.AppState, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state = st.Clone()
	s.rev++
	s.log.Debug("state action", zap.String("action", "replace"), zap.Uint64("revision", s.rev))
	return prev, s.rev
}

// Rollback restores prev only if the state is still at revision rev, so later
// actions are never undone. It reports whether the restore happened.
func (s *MemoryStore) Rollback(rev uint64, prev models.AppState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rev != rev {
		return false
	}
	s.state = prev
	s.rev++
	s.log.Debug("state action", zap.String("action", "rollback"), zap.Uint64("revision", s.rev))
	return true
}

func (s *MemoryStore) mutate(action string, fn func(st *models.AppState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(&s.state); err != nil {
		s.log.Debug("state action rejected", zap.String("action", action), zap.Error(err))
		return fmt.Errorf("%s: %w", action, err)
	}
	s.rev++
	s.log.Debug("state action", zap.String("action", action), zap.Uint64("revision", s.rev))
	return nil
}

func (s *MemoryStore) idOr(id string) string {
	if id == "" {
		return s.newID()
	}
	return id
}

func indexOf[T any](items []T, id string, idOf func(T) string) int {
	for i, it := range items {
		if idOf(it) == id {
			return i
		}
	}
	return -1
}

func logID(l models.DailyLog) string { return l.ID }
func accountID(a models.Account) string { return a.ID }
func experimentID(e models.Experiment) string { return e.ID }
func variantID(v models.Variant) string { return v.ID }
func leadID(l models.Lead) string { return l.ID }
