package httpx_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AngelCh415/dmlab/internal/config"
	"github.com/AngelCh415/dmlab/internal/httpx"
	"github.com/AngelCh415/dmlab/internal/ingest"
	"github.com/AngelCh415/dmlab/internal/metrics"
	"github.com/AngelCh415/dmlab/internal/models"
	"github.com/AngelCh415/dmlab/internal/persist"
	"github.com/AngelCh415/dmlab/internal/store"
)

type env struct {
	srv   http.Handler
	h     *httpx.Handler
	st    *store.MemoryStore
	path  string
	state func() models.AppState
}

func fixture() models.AppState {
	return ingest.Normalize(map[string]any{
		"config": map[string]any{
			"autosave":               false,
			"excludeOldLeadsFromKpi": false,
			"accounts": []any{
				map[string]any{"id": "acc1", "name": "Main"},
				map[string]any{"id": "acc2", "name": "Side"},
			},
		},
		"logs": []any{
			map[string]any{"id": "l1", "date": "2024-03-04", "accountId": "acc1", "campaignTag": "spring",
				"connectionRequestsSent": 100, "connectionsAccepted": 30, "permissionMessagesSent": 20,
				"permissionSeen": 15, "permissionPositives": 4, "bookedCalls": 1,
				"experimentId": "e1", "variantId": "v1"},
			map[string]any{"id": "l2", "date": "2024-03-05", "accountId": "acc1", "isOldLeadsLane": true,
				"permissionMessagesSent": 10, "permissionPositives": 1},
		},
		"experiments": []any{
			map[string]any{"id": "e1", "name": "Opener", "funnelStageTargeted": "PERMISSION", "variants": []any{
				map[string]any{"id": "v1", "name": "A"},
			}},
		},
		"prospects": []any{
			map[string]any{"id": "p1", "name": "Ana", "accountId": "acc1", "stage": "CONNECTED"},
		},
	})
}

func newEnv(t *testing.T, sy *ingest.Syncer) *env {
	t.Helper()
	return newEnvAt(t, filepath.Join(t.TempDir(), "state.json"), sy)
}

func newEnvAt(t *testing.T, path string, sy *ingest.Syncer) *env {
	t.Helper()
	st := store.NewMemoryStore(fixture(), zap.NewNop())
	col := metrics.NewCollectors()
	svc := metrics.NewService(st, zap.NewNop(), metrics.WithCollectors(col))
	pm := persist.NewManager(persist.NewFileStore(path), st, zap.NewNop(), col)
	h := httpx.NewHandler(st, svc, pm, sy, zap.NewNop())
	cfg := &config.Config{
		App:    config.AppConfig{Environment: "development"},
		Server: config.ServerConfig{MaxBodyMB: 1},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"*"}},
	}
	return &env{srv: httpx.NewRouter(cfg, zap.NewNop(), h, col), h: h, st: st, path: path, state: st.Snapshot}
}

func (e *env) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	case []byte:
		rd = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, httptest.NewRequest(method, target, rd))
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestProbes(t *testing.T) {
	e := newEnv(t, nil)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, e.do(t, http.MethodGet, "/readyz", nil).Code)
	e.h.SetReady(true)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/readyz", nil).Code)

	e.do(t, http.MethodGet, "/api/kpis", nil)
	rec := e.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dmlab_http_requests_total{method="GET",route="/api/kpis",status="200"} 1`)
}

func TestGetData_ReturnsEnvelope(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, http.MethodGet, "/api/data", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[models.PersistedState](t, rec)
	assert.Equal(t, models.CurrentSchemaVersion, got.SchemaVersion)
	assert.NotEmpty(t, got.SavedAt)
	assert.Len(t, got.Data.Logs, 2)
}

func TestSave_NormalizesLegacyPayload(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, http.MethodPost, "/api/save", `{"logs":[{"id":"x","sent":7,"booked":1}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, resp["persisted"])
	assert.EqualValues(t, 1, resp["detectedVersion"])
	assert.False(t, e.st.Dirty())

	logs := e.state().Logs
	require.Len(t, logs, 1)
	assert.Equal(t, 7, logs[0].PermissionMessagesSent)

	raw, err := os.ReadFile(e.path)
	require.NoError(t, err)
	var saved models.PersistedState
	require.NoError(t, json.Unmarshal(raw, &saved))
	assert.Equal(t, models.CurrentSchemaVersion, saved.SchemaVersion)
	assert.Len(t, saved.Data.Logs, 1)
}

func TestSave_RejectsInvalidJSON(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, http.MethodPost, "/api/save", `{"logs": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, e.state().Logs, 2)
}

func TestSave_RestoresStateWhenPersistFails(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	e := newEnvAt(t, filepath.Join(blocker, "state.json"), nil)
	before := e.state()

	rec := e.do(t, http.MethodPost, "/api/save", `{"logs":[{"id":"x","sent":7}]}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, before.Logs, e.state().Logs)
	assert.Equal(t, before.Config, e.state().Config)
}

func TestSave_BodyTooLarge(t *testing.T) {
	e := newEnv(t, nil)
	big := `{"notes":"` + strings.Repeat("x", 2<<20) + `"}`
	rec := e.do(t, http.MethodPost, "/api/save", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestLogActions(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/logs", map[string]any{"accountId": "acc2", "date": "2024-03-06", "bookedCalls": -3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[models.DailyLog](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 0, created.BookedCalls)

	rec = e.do(t, http.MethodPost, "/api/logs", map[string]any{"id": "l1"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/logs", map[string]any{"date": "06/03/2024"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decodeBody[httpx.APIError](t, rec)
	assert.Equal(t, httpx.ErrorTypeValidation, problem.Type)
	assert.Contains(t, problem.Errors, "date")

	rec = e.do(t, http.MethodPut, "/api/logs/"+created.ID, map[string]any{"accountId": "acc2", "bookedCalls": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeBody[models.DailyLog](t, rec).BookedCalls)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodPut, "/api/logs/missing", map[string]any{}).Code)
	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/api/logs/"+created.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/api/logs/"+created.ID, nil).Code)
}

func TestLogActions_CoercesCounts(t *testing.T) {
	e := newEnv(t, nil)

	tests := []struct {
		name  string
		value any
		want  int
	}{
		{"fraction is floored", 2.5, 2},
		{"numeric string", "3", 3},
		{"non numeric string", "lots", 0},
		{"boolean", true, 0},
		{"null", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/logs", map[string]any{"accountId": "acc1", "date": "2024-03-06", "bookedCalls": tt.value})
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			created := decodeBody[models.DailyLog](t, rec)
			assert.Equal(t, tt.want, created.BookedCalls)
			assert.Equal(t, "2024-03-06", created.Date)

			rec = e.do(t, http.MethodPut, "/api/logs/"+created.ID, map[string]any{"accountId": "acc1", "permissionSeen": tt.value})
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tt.want, decodeBody[models.DailyLog](t, rec).PermissionSeen)
		})
	}
}

func TestAccountActions(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/accounts", map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name is required", decodeBody[httpx.APIError](t, rec).Errors["name"])

	rec = e.do(t, http.MethodPost, "/api/accounts", map[string]any{"name": "Third", "weeklyGoals": map[string]any{"bookedCalls": -1}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/accounts/acc1", map[string]any{"weeklyGoals": map[string]any{"bookedCalls": 4}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.do(t, http.MethodPut, "/api/accounts/acc1", map[string]any{"name": "Primary"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	acc := decodeBody[models.Account](t, rec)
	assert.Equal(t, "Primary", acc.Name)
	assert.Equal(t, 4, acc.WeeklyGoals.BookedCalls)

	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodDelete, "/api/accounts/acc1", nil).Code)
	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/api/accounts/acc2", nil).Code)
	assert.Equal(t, http.StatusConflict, e.do(t, http.MethodDelete, "/api/accounts/acc1", nil).Code, "last account")

	rec = e.do(t, http.MethodPost, "/api/accounts/acc1/rename", map[string]any{"newId": "main"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "main", decodeBody[models.Account](t, rec).ID)
	for _, l := range e.state().Logs {
		assert.Equal(t, "main", l.AccountID)
	}
}

func TestExperimentActions(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/experiments", map[string]any{"name": "Offer test", "funnelStageTargeted": "OFFER"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	exp := decodeBody[models.Experiment](t, rec)
	assert.Equal(t, models.MetricABR, exp.PrimaryMetric)
	assert.Equal(t, 30, exp.RequiredSampleSizeSeen)
	require.Len(t, exp.Variants, 1)

	rec = e.do(t, http.MethodPost, "/api/experiments", map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/experiments/"+exp.ID+"/variants/"+exp.Variants[0].ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/experiments/"+exp.ID+"/variants", map[string]any{"message": "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	v := decodeBody[models.Variant](t, rec)
	assert.Equal(t, "Variant B", v.Name)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/api/experiments/"+exp.ID+"/variants/"+v.ID, nil).Code)

	rec = e.do(t, http.MethodPut, "/api/experiments/"+exp.ID, map[string]any{"funnelStageTargeted": "BOOKING"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.MetricBookedKPI, decodeBody[models.Experiment](t, rec).PrimaryMetric)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/api/experiments/"+exp.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/experiments/"+exp.ID+"/evaluation", nil).Code)
}

func TestEvaluation(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, http.MethodGet, "/api/experiments/e1/evaluation", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[struct {
		Evaluation         map[string]any `json:"evaluation"`
		InsufficientSample bool           `json:"insufficientSample"`
	}](t, rec)
	assert.True(t, resp.InsufficientSample, "15 seen is below the permission sample of 60")
	assert.Equal(t, "PRR", resp.Evaluation["primaryMetric"])
}

func TestProspectActions(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/prospects", map[string]any{"name": "Bo", "accountId": "acc2", "stage": "S"})
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decodeBody[models.Lead](t, rec)
	assert.Equal(t, models.StagePermissionSent, p.Stage)

	rec = e.do(t, http.MethodPost, "/api/prospects", map[string]any{"name": "Cy", "linkedinUrl": "not a url"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/prospects/"+p.ID+"/stage", map[string]any{"stage": "BOOKED"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StageBooked, decodeBody[models.Lead](t, rec).Stage)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/prospects/"+p.ID+"/stage", map[string]any{"stage": "NOPE"}).Code)

	rec = e.do(t, http.MethodGet, "/api/prospects/board?accountId=acc2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cols := decodeBody[[]metrics.BoardColumn](t, rec)
	require.Len(t, cols, len(models.FunnelStages))
	assert.Equal(t, models.StageBooked, cols[5].Stage)
	assert.Equal(t, 1, cols[5].Count)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/prospects/board?oldLeads=maybe", nil).Code)
	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/api/prospects/"+p.ID, nil).Code)
}

func TestConfigActions(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPut, "/api/config/targets", map[string]any{"cr": 35, "PRR": -2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	targets := decodeBody[map[string]float64](t, rec)
	assert.Equal(t, 35.0, targets["CR"])
	assert.Equal(t, 0.0, targets["PRR"])
	assert.Equal(t, 4.0, targets["ABR"])

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPut, "/api/config/targets", map[string]any{"NOPE": 1}).Code)

	rec = e.do(t, http.MethodPut, "/api/config/flags", map[string]any{"excludeOldLeadsFromKpi": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"excludeOldLeadsFromKpi": true, "autosave": false}, decodeBody[map[string]bool](t, rec))
}

func TestAutosavePersistsAfterAction(t *testing.T) {
	e := newEnv(t, nil)

	_, err := os.Stat(e.path)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPut, "/api/config/flags", map[string]any{"autosave": true}).Code)
	assert.False(t, e.st.Dirty())

	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/logs", map[string]any{"bookedCalls": 1}).Code)
	assert.False(t, e.st.Dirty())

	raw, err := os.ReadFile(e.path)
	require.NoError(t, err)
	var saved models.PersistedState
	require.NoError(t, json.Unmarshal(raw, &saved))
	assert.Len(t, saved.Data.Logs, 3)
	assert.True(t, saved.Data.Config.Autosave)
}

func TestKpiQueries(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/api/kpis?accountId=acc1&oldLeads=exclude", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rep := decodeBody[map[string]any](t, rec)
	assert.EqualValues(t, 1, rep["rows"])
	assert.EqualValues(t, 1, rep["oldLeadRows"])

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/kpis?start=yesterday", nil).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/kpis?start=2024-03-06&end=2024-03-01", nil).Code)

	rec = e.do(t, http.MethodGet, "/api/kpis/breakdown?by=date&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[metrics.Page[metrics.BreakdownRow]](t, rec)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "2024-03-04", page.Items[0].Key)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/kpis/breakdown?by=weekday", nil).Code)

	rec = e.do(t, http.MethodGet, "/api/goals?date=2024-03-06", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	goals := decodeBody[[]metrics.GoalProgress](t, rec)
	require.Len(t, goals, 2)
	assert.Equal(t, "2024-03-04", goals[0].WeekStart)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/goals?date=march", nil).Code)
}

func TestCSVExportImport(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/api/export.csv?accountId=acc1&oldLeads=exclude", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)

	rec = e.do(t, http.MethodPost, "/api/import.csv", rec.Body.Bytes())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decodeBody[map[string]any](t, rec)["imported"])

	logs := e.state().Logs
	require.Len(t, logs, 3)
	assert.NotEqual(t, "l1", logs[2].ID, "colliding ids are replaced")
	assert.Equal(t, 100, logs[2].ConnectionRequestsSent)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/import.csv", "").Code)
}

func TestSync(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		e := newEnv(t, nil)
		assert.Equal(t, http.StatusServiceUnavailable, e.do(t, http.MethodPost, "/api/sync/pull", nil).Code)
		assert.Equal(t, http.StatusServiceUnavailable, e.do(t, http.MethodPost, "/api/sync/push", nil).Code)
	})

	t.Run("pull and push", func(t *testing.T) {
		var pushed []byte
		var sig string
		remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"schemaVersion":2,"data":{"logs":[{"id":"r1","booked_calls":4}]}}`))
			case http.MethodPost:
				pushed, _ = io.ReadAll(r.Body)
				sig = r.Header.Get(ingest.SignatureHeader)
			}
		}))
		defer remote.Close()

		sy := ingest.NewSyncer(ingest.NewHTTPClient(0), zap.NewNop(), remote.URL, "s3cret")
		e := newEnv(t, sy)

		rec := e.do(t, http.MethodPost, "/api/sync/pull", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decodeBody[map[string]any](t, rec)
		assert.EqualValues(t, 2, resp["detectedVersion"])
		logs := e.state().Logs
		require.Len(t, logs, 1)
		assert.Equal(t, 4, logs[0].BookedCalls)

		rec = e.do(t, http.MethodPost, "/api/sync/push", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, ingest.VerifySignature("s3cret", pushed, sig))
		var env models.PersistedState
		require.NoError(t, json.Unmarshal(pushed, &env))
		assert.Len(t, env.Data.Logs, 1)
	})

	t.Run("upstream failure", func(t *testing.T) {
		remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer remote.Close()

		sy := ingest.NewSyncer(ingest.NewHTTPClient(0), zap.NewNop(), remote.URL, "")
		e := newEnv(t, sy)
		assert.Equal(t, http.StatusBadGateway, e.do(t, http.MethodPost, "/api/sync/push", nil).Code)
	})
}
