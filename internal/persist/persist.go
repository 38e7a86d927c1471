// Package persist reads and writes the {schemaVersion, savedAt, data} envelope.
// Backends only move bytes; every load goes through the normalizer.
package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AngelCh415/dmlab/internal/config"
	"github.com/AngelCh415/dmlab/internal/ingest"
	"github.com/AngelCh415/dmlab/internal/metrics"
	"github.com/AngelCh415/dmlab/internal/models"
	"github.com/AngelCh415/dmlab/internal/store"
)

// ErrNoState means the backend holds nothing yet.
var ErrNoState = errors.New("no saved state")

type Backend interface {
	Name() string
	// Load returns the raw stored payload, or ErrNoState.
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, env models.PersistedState) error
	Close() error
}

// New opens the backend selected by cfg.Mode.
func New(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (Backend, error) {
	switch cfg.Mode {
	case "file", "":
		return NewFileStore(cfg.FilePath), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath, cfg.SnapshotsKept)
	case "postgres":
		return OpenPostgres(ctx, cfg.Postgres, cfg.SnapshotsKept)
	case "azure":
		return NewBlobStore(ctx, cfg.Azure, log)
	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.Mode)
	}
}

// Manager loads into and saves from the in-memory store.
type Manager struct {
	b   Backend
	st  *store.MemoryStore
	log *zap.Logger
	col *metrics.Collectors
	now func() time.Time
}

func NewManager(b Backend, st *store.MemoryStore, log *zap.Logger, col *metrics.Collectors) *Manager {
	return &Manager{b: b, st: st, log: log, col: col, now: time.Now}
}

func (m *Manager) Backend() Backend { return m.b }

// Load replaces the store's state with the normalized stored payload. An empty
// backend leaves the default state in place.
func (m *Manager) Load(ctx context.Context) (ingest.Report, error) {
	raw, err := m.b.Load(ctx)
	if errors.Is(err, ErrNoState) {
		m.log.Info("no saved state, starting fresh", zap.String("backend", m.b.Name()))
		return ingest.Report{DetectedVersion: models.CurrentSchemaVersion}, nil
	}
	if err != nil {
		return ingest.Report{}, fmt.Errorf("load from %s: %w", m.b.Name(), err)
	}
	st, rep := ingest.NormalizeJSON(raw)
	m.st.Replace(st)
	m.st.MarkSaved(m.st.Revision())
	m.observeLoad(st, rep)
	m.log.Info("state loaded",
		zap.String("backend", m.b.Name()),
		zap.Int("logs", len(st.Logs)),
		zap.Int("detected_version", rep.DetectedVersion),
		zap.Strings("migrations", rep.Migrations),
	)
	return rep, nil
}

// Save writes the current state and clears the dirty flag for that revision.
func (m *Manager) Save(ctx context.Context) error {
	env, rev := m.st.Envelope(m.now())
	err := m.b.Save(ctx, env)
	if m.col != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		m.col.Saves.WithLabelValues(m.b.Name(), result).Inc()
		m.col.ObserveState(env.Data)
	}
	if err != nil {
		return fmt.Errorf("save to %s: %w", m.b.Name(), err)
	}
	m.st.MarkSaved(rev)
	m.log.Debug("state saved", zap.String("backend", m.b.Name()), zap.Uint64("revision", rev))
	return nil
}

// SaveIfDirty is the autosave tick.
func (m *Manager) SaveIfDirty(ctx context.Context) error {
	if !m.st.Dirty() {
		return nil
	}
	return m.Save(ctx)
}

func (m *Manager) observeLoad(st models.AppState, rep ingest.Report) {
	if m.col == nil {
		return
	}
	m.col.Normalizations.WithLabelValues(fmt.Sprint(rep.DetectedVersion), fmt.Sprint(rep.Migrated())).Inc()
	m.col.ObserveState(st)
}
