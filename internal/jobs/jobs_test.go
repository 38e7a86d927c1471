package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AngelCh415/dmlab/internal/ingest"
	"github.com/AngelCh415/dmlab/internal/jobs"
	"github.com/AngelCh415/dmlab/internal/models"
	"github.com/AngelCh415/dmlab/internal/store"
)

type fakeSaver struct{ calls atomic.Int32 }

func (f *fakeSaver) SaveIfDirty(context.Context) error {
	f.calls.Add(1)
	return nil
}

type fakePusher struct {
	configured bool
	err        error
	pushed     []models.PersistedState
}

func (f *fakePusher) Configured() bool { return f.configured }

func (f *fakePusher) Push(_ context.Context, env models.PersistedState) error {
	if f.err != nil {
		return f.err
	}
	f.pushed = append(f.pushed, env)
	return nil
}

func newStore(autosave bool) *store.MemoryStore {
	st := store.NewMemoryStore(ingest.Normalize(nil), zap.NewNop())
	_ = st.SetFlags(store.Flags{Autosave: &autosave})
	return st
}

func TestAutosave_RespectsFlag(t *testing.T) {
	ctx := context.Background()

	off := &fakeSaver{}
	require.NoError(t, jobs.Autosave(newStore(false), off)(ctx))
	assert.Equal(t, int32(0), off.calls.Load())

	on := &fakeSaver{}
	require.NoError(t, jobs.Autosave(newStore(true), on)(ctx))
	assert.Equal(t, int32(1), on.calls.Load())
}

func TestSyncPush_SkipsUnchangedRevision(t *testing.T) {
	ctx := context.Background()
	st := newStore(false)
	p := &fakePusher{configured: true}
	job := jobs.SyncPush(st, p, zap.NewNop())

	require.NoError(t, job(ctx))
	require.NoError(t, job(ctx))
	assert.Len(t, p.pushed, 1)

	_, err := st.AddLog(models.DailyLog{BookedCalls: 1})
	require.NoError(t, err)
	require.NoError(t, job(ctx))
	require.Len(t, p.pushed, 2)
	assert.Len(t, p.pushed[1].Data.Logs, 1)
}

func TestSyncPush_RetriesAfterFailure(t *testing.T) {
	ctx := context.Background()
	p := &fakePusher{configured: true, err: errors.New("remote down")}
	job := jobs.SyncPush(newStore(false), p, zap.NewNop())

	assert.Error(t, job(ctx))
	p.err = nil
	require.NoError(t, job(ctx))
	assert.Len(t, p.pushed, 1)
}

func TestSyncPush_NotConfiguredIsNoop(t *testing.T) {
	p := &fakePusher{}
	require.NoError(t, jobs.SyncPush(newStore(false), p, zap.NewNop())(context.Background()))
	assert.Empty(t, p.pushed)
}

func TestScheduler_AddRemove(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop(), time.Second)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.AddJob("a", "@every 1m", noop))
	assert.Error(t, s.AddJob("a", "@every 1m", noop), "duplicate name")
	assert.Error(t, s.AddJob("b", "not a cron", noop))
	assert.ElementsMatch(t, []string{"a"}, s.Names())

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Empty(t, s.Names())
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop(), time.Second)
	var runs atomic.Int32
	require.NoError(t, s.AddJob("tick", "@every 1s", func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestRegister(t *testing.T) {
	s := jobs.NewScheduler(zap.NewNop(), time.Second)
	st := newStore(true)

	require.NoError(t, jobs.Register(s, st, &fakeSaver{}, "@every 30s", &fakePusher{}, "@every 5m"))
	assert.ElementsMatch(t, []string{jobs.AutosaveJobName}, s.Names(), "unconfigured sync is not scheduled")

	s = jobs.NewScheduler(zap.NewNop(), time.Second)
	require.NoError(t, jobs.Register(s, st, &fakeSaver{}, "@every 30s", &fakePusher{configured: true}, "@every 5m"))
	assert.ElementsMatch(t, []string{jobs.AutosaveJobName, jobs.SyncPushJobName}, s.Names())
}
