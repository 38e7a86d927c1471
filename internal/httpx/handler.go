package httpx

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/AngelCh415/dmlab/internal/ingest"
	"github.com/AngelCh415/dmlab/internal/metrics"
	"github.com/AngelCh415/dmlab/internal/persist"
	"github.com/AngelCh415/dmlab/internal/store"
	"github.com/AngelCh415/dmlab/internal/utils"
)

// Handler serves the state, report and action endpoints. Persist and sync are
// optional; without them save persists nothing and sync answers 503.
type Handler struct {
	st    *store.MemoryStore
	svc   *metrics.Service
	pm    *persist.Manager
	sync  *ingest.Syncer
	log   *zap.Logger
	now   func() time.Time
	ready atomic.Bool
}

func NewHandler(st *store.MemoryStore, svc *metrics.Service, pm *persist.Manager, sy *ingest.Syncer, log *zap.Logger) *Handler {
	return &Handler{st: st, svc: svc, pm: pm, sync: sy, log: log, now: time.Now}
}

// SetReady flips /readyz once the initial state is loaded.
func (h *Handler) SetReady(v bool) { h.ready.Store(v) }

// changed persists right away when config.autosave is on.
func (h *Handler) changed(ctx context.Context) {
	if h.pm == nil || !h.st.Autosave() {
		return
	}
	if err := h.pm.Save(ctx); err != nil {
		h.log.Warn("autosave failed", zap.Error(err), zap.String("request_id", utils.RID(ctx)))
	}
}

func (h *Handler) syncer() (*ingest.Syncer, error) {
	if h.sync == nil || !h.sync.Configured() {
		return nil, ingest.ErrSyncNotConfigured
	}
	return h.sync, nil
}
