package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/AngelCh415/dmlab/internal/cache"
	"github.com/AngelCh415/dmlab/internal/kpi"
	"github.com/AngelCh415/dmlab/internal/models"
	"github.com/AngelCh415/dmlab/internal/store"
)

// Service answers dashboard queries over the store. Results are memoized under
// the store revision, so any action invalidates them.
type Service struct {
	st    *store.MemoryStore
	cache cache.Cache
	ttl   time.Duration
	log   *zap.Logger
	col   *Collectors
}

type Option func(*Service)

func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) { s.cache, s.ttl = c, ttl }
}

func WithCollectors(c *Collectors) Option {
	return func(s *Service) { s.col = c }
}

func NewService(st *store.MemoryStore, log *zap.Logger, opts ...Option) *Service {
	s := &Service{st: st, log: log, cache: cache.NewMemory(0), ttl: 10 * time.Minute}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Report is the primary KPI view plus the independently aggregated old-lead lane.
type Report struct {
	Revision    uint64       `json:"revision"`
	Criteria    kpi.Criteria `json:"criteria"`
	Rows        int          `json:"rows"`
	Kpis        kpi.Result   `json:"kpis"`
	OldLeadRows int          `json:"oldLeadRows"`
	OldLeads    kpi.Result   `json:"oldLeads"`
}

func (s *Service) Report(ctx context.Context, c kpi.Criteria) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}
	var rep Report
	s.st.Read(func(st models.AppState, rev uint64) {
		c = c.WithOldLeadsPolicy(st.Config)
		rep = memo(ctx, s, "report", rev, c.Key(), func() Report {
			primary := kpi.Filter(st.Logs, c)
			old := kpi.Filter(st.Logs, c.OldLane())
			return Report{
				Revision:    rev,
				Criteria:    c,
				Rows:        len(primary),
				Kpis:        kpi.ComputeLogs(primary, st.Config.KpiTargets),
				OldLeadRows: len(old),
				OldLeads:    kpi.ComputeLogs(old, st.Config.KpiTargets),
			}
		})
	})
	return rep, nil
}

type BreakdownRow struct {
	Key   string     `json:"key"`
	Label string     `json:"label"`
	Rows  int        `json:"rows"`
	Kpis  kpi.Result `json:"kpis"`
}

type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Breakdown groups the filtered logs by dimension and computes KPIs per group,
// sorted by key.
func (s *Service) Breakdown(ctx context.Context, by Dimension, c kpi.Criteria, limit, offset int) (Page[BreakdownRow], error) {
	if !by.IsValid() {
		return Page[BreakdownRow]{}, fmt.Errorf("%w: unknown breakdown %q", ErrBadQuery, by)
	}
	if err := ctx.Err(); err != nil {
		return Page[BreakdownRow]{}, err
	}
	var rows []BreakdownRow
	s.st.Read(func(st models.AppState, rev uint64) {
		c = c.WithOldLeadsPolicy(st.Config)
		rows = memo(ctx, s, "breakdown", rev, string(by)+"#"+c.Key(), func() []BreakdownRow {
			return breakdown(st, by, c)
		})
	})
	limit, offset = clampLimitOffset(limit, offset, len(rows))
	return Page[BreakdownRow]{Items: paginate(rows, limit, offset), Total: len(rows), Limit: limit, Offset: offset}, nil
}

func breakdown(st models.AppState, by Dimension, c kpi.Criteria) []BreakdownRow {
	groups := map[string][]models.DailyLog{}
	for _, l := range kpi.Filter(st.Logs, c) {
		k := groupKey(by, l)
		groups[k] = append(groups[k], l)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]BreakdownRow, 0, len(keys))
	for _, k := range keys {
		logs := groups[k]
		rows = append(rows, BreakdownRow{
			Key:   k,
			Label: groupLabel(st, by, logs[0], k),
			Rows:  len(logs),
			Kpis:  kpi.ComputeLogs(logs, st.Config.KpiTargets),
		})
	}
	return rows
}

func groupKey(by Dimension, l models.DailyLog) string {
	switch by {
	case ByAccount:
		return l.AccountID
	case ByCampaign:
		return l.CampaignTag
	case ByDate:
		return l.Date
	case ByExperiment:
		return l.ExperimentID
	default:
		return l.ExperimentID + "/" + l.VariantID
	}
}

func groupLabel(st models.AppState, by Dimension, l models.DailyLog, key string) string {
	switch by {
	case ByAccount:
		if a, ok := st.Config.Account(l.AccountID); ok {
			return a.Name
		}
	case ByExperiment:
		if e, ok := st.Experiment(l.ExperimentID); ok {
			return e.Name
		}
	case ByVariant:
		if e, ok := st.Experiment(l.ExperimentID); ok {
			if v, ok := e.Variant(l.VariantID); ok {
				return e.Name + " / " + v.Name
			}
		}
	}
	if key == "" || key == "/" {
		return "Unassigned"
	}
	return key
}

// Evaluate runs the experiment evaluator with the config's old-leads policy.
// Variant filters are ignored since every variant is scored.
func (s *Service) Evaluate(ctx context.Context, expID string, c kpi.Criteria) (kpi.Evaluation, error) {
	var ev kpi.Evaluation
	var err error
	s.st.Read(func(st models.AppState, rev uint64) {
		exp, ok := st.Experiment(expID)
		if !ok {
			err = fmt.Errorf("experiment %q: %w", expID, store.ErrNotFound)
			return
		}
		c = c.WithOldLeadsPolicy(st.Config)
		c.ExperimentID, c.VariantID = expID, ""
		ev = memo(ctx, s, "evaluation", rev, c.Key(), func() kpi.Evaluation {
			return kpi.Evaluate(exp, st.Logs, c, st.Config)
		})
	})
	return ev, err
}

// memo returns the cached value for key or computes and stores it. Cache
// failures are logged and never fail the query.
func memo[T any](ctx context.Context, s *Service, kind string, rev uint64, key string, compute func() T) T {
	full := fmt.Sprintf("%s|%d|%s", kind, rev, key)
	var cached T
	err := s.cache.Get(ctx, full, &cached)
	if err == nil {
		s.col.lookup(kind, true)
		return cached
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("memo get failed", zap.String("kind", kind), zap.Error(err))
	}
	s.col.lookup(kind, false)

	v := compute()
	if err := s.cache.Set(ctx, full, v, s.ttl); err != nil {
		s.log.Warn("memo set failed", zap.String("kind", kind), zap.Error(err))
	}
	return v
}
