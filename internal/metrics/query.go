package metrics

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/AngelCh415/dmlab/internal/kpi"
)

const (
	dateLayout   = "2006-01-02"
	defaultLimit = 100
	maxLimit     = 1000
)

// ErrBadQuery wraps every query-string validation failure.
var ErrBadQuery = errors.New("bad query")

// Dimension is a breakdown grouping.
type Dimension string

const (
	ByAccount    Dimension = "account"
	ByCampaign   Dimension = "campaign"
	ByDate       Dimension = "date"
	ByExperiment Dimension = "experiment"
	ByVariant    Dimension = "variant"
)

func (d Dimension) IsValid() bool {
	switch d {
	case ByAccount, ByCampaign, ByDate, ByExperiment, ByVariant:
		return true
	}
	return false
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// CriteriaFromQuery reads accountId, campaignTag, experimentId, variantId, start,
// end and oldLeads=include|exclude|only.
func CriteriaFromQuery(v url.Values) (kpi.Criteria, error) {
	c := kpi.Criteria{
		AccountID:    strings.TrimSpace(v.Get("accountId")),
		CampaignTag:  strings.TrimSpace(v.Get("campaignTag")),
		ExperimentID: strings.TrimSpace(v.Get("experimentId")),
		VariantID:    strings.TrimSpace(v.Get("variantId")),
	}
	start, err := parseDate("start", v.Get("start"))
	if err != nil {
		return c, err
	}
	end, err := parseDate("end", v.Get("end"))
	if err != nil {
		return c, err
	}
	if start != "" || end != "" {
		if start != "" && end != "" && start > end {
			return c, fmt.Errorf("%w: start %s is after end %s", ErrBadQuery, start, end)
		}
		c.DateRange = &kpi.DateRange{Start: start, End: end}
	}
	switch norm(v.Get("oldLeads")) {
	case "":
	case "include":
		c.IncludeOldLeads = true
	case "exclude":
		c.ExcludeOldLeads = true
	case "only":
		c.OnlyOldLeads = true
	default:
		return c, fmt.Errorf("%w: oldLeads must be include, exclude or only", ErrBadQuery)
	}
	return c, nil
}

func parseDate(name, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrBadQuery, name)
	}
	return s, nil
}

// PageFromQuery reads limit and offset with the service defaults.
func PageFromQuery(v url.Values) (limit, offset int) {
	return atoiDef(v.Get("limit"), defaultLimit), atoiDef(v.Get("offset"), 0)
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func atoiDef(s string, d int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return d
	}
	return v
}

func clampLimitOffset(limit, offset, n int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset > n {
		offset = n
	}
	return limit, offset
}
