package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AngelCh415/dmlab/internal/models"
	"github.com/AngelCh415/dmlab/internal/utils"
)

// ErrSyncNotConfigured is returned when no remote URL is set.
var ErrSyncNotConfigured = errors.New("sync not configured")

// Syncer moves the persisted envelope to and from a remote endpoint.
type Syncer struct {
	c       HTTPClient
	log     *zap.Logger
	url     string
	secret  string
	backoff utils.Backoff
}

func NewSyncer(c HTTPClient, log *zap.Logger, url, secret string) *Syncer {
	return &Syncer{
		c:       c,
		log:     log,
		url:     url,
		secret:  secret,
		backoff: utils.NewBackoff(100*time.Millisecond, 2),
	}
}

// WithBackoff overrides the retry policy used by Pull.
func (s *Syncer) WithBackoff(b utils.Backoff) *Syncer {
	s.backoff = b
	return s
}

func (s *Syncer) Configured() bool { return s.url != "" }

// Pull fetches the remote state in whatever shape it was stored and normalizes it.
func (s *Syncer) Pull(ctx context.Context) (models.AppState, Report, error) {
	if !s.Configured() {
		return models.AppState{}, Report{}, ErrSyncNotConfigured
	}
	var raw any
	if err := GetJSONWithRetry(ctx, s.c, s.url, &raw, s.backoff); err != nil {
		return models.AppState{}, Report{}, fmt.Errorf("sync pull: %w", err)
	}
	st, rep := NormalizeWithReport(raw)
	s.log.Info("sync pull complete",
		zap.Int("logs", len(st.Logs)),
		zap.Int("detected_version", rep.DetectedVersion),
		zap.Strings("migrations", rep.Migrations),
	)
	return st, rep, nil
}

// Push uploads env, signed with the shared secret.
func (s *Syncer) Push(ctx context.Context, env models.PersistedState) error {
	if !s.Configured() {
		return ErrSyncNotConfigured
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("sync push: encode: %w", err)
	}
	if err := postSigned(ctx, s.c, s.url, s.secret, b); err != nil {
		return fmt.Errorf("sync push: %w", err)
	}
	s.log.Info("sync push complete", zap.Int("bytes", len(b)), zap.String("saved_at", env.SavedAt))
	return nil
}
