package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/AngelCh415/dmlab/internal/models"
	"github.com/AngelCh415/dmlab/internal/store"
)

const (
	AutosaveJobName = "autosave"
	SyncPushJobName = "sync-push"
)

// Saver persists the store when it has unsaved changes.
type Saver interface {
	SaveIfDirty(ctx context.Context) error
}

// Pusher uploads an envelope to the remote sync endpoint.
type Pusher interface {
	Configured() bool
	Push(ctx context.Context, env models.PersistedState) error
}

// Autosave saves dirty state while config.autosave is on.
func Autosave(st *store.MemoryStore, s Saver) Job {
	return func(ctx context.Context) error {
		if !st.Autosave() {
			return nil
		}
		return s.SaveIfDirty(ctx)
	}
}

// SyncPush uploads the current state when the revision moved since the last push.
func SyncPush(st *store.MemoryStore, p Pusher, log *zap.Logger) Job {
	var pushed uint64
	var once bool
	return func(ctx context.Context) error {
		if !p.Configured() {
			return nil
		}
		env, rev := st.Envelope(time.Now())
		if once && rev == pushed {
			log.Debug("sync push skipped, no changes", zap.Uint64("revision", rev))
			return nil
		}
		if err := p.Push(ctx, env); err != nil {
			return err
		}
		pushed, once = rev, true
		return nil
	}
}

// Register adds the autosave job and, when pushExpr is set, the sync push job.
func Register(s *Scheduler, st *store.MemoryStore, saver Saver, autosaveExpr string, p Pusher, pushExpr string) error {
	if autosaveExpr != "" {
		if err := s.AddJob(AutosaveJobName, autosaveExpr, Autosave(st, saver)); err != nil {
			return err
		}
	}
	if pushExpr != "" && p != nil && p.Configured() {
		if err := s.AddJob(SyncPushJobName, pushExpr, SyncPush(st, p, s.log)); err != nil {
			return err
		}
	}
	return nil
}
