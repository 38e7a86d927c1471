package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/AngelCh415/dmlab/internal/ingest"
	"github.com/AngelCh415/dmlab/internal/kpi"
	"github.com/AngelCh415/dmlab/internal/models"
)

var identityColumns = []string{
	"id", "date", "accountId", "campaignTag", "isOldLeadsLane", "experimentId", "variantId", "notes",
}

var countColumns = []string{
	"connectionRequestsSent", "connectionsAccepted", "permissionMessagesSent", "permissionSeen",
	"permissionPositives", "offerMessagesSent", "offerSeen", "offerOrBookingIntentPositives",
	"bookedCalls", "attendedCalls", "closedDeals",
}

// Header is the export column order: identity, counts, then one percentage column per metric.
func Header() []string {
	h := make([]string, 0, len(identityColumns)+len(countColumns)+len(models.Metrics))
	h = append(h, identityColumns...)
	h = append(h, countColumns...)
	for _, m := range models.Metrics {
		h = append(h, string(m))
	}
	return h
}

func counts(l models.DailyLog) []int {
	return []int{
		l.ConnectionRequestsSent, l.ConnectionsAccepted, l.PermissionMessagesSent, l.PermissionSeen,
		l.PermissionPositives, l.OfferMessagesSent, l.OfferSeen, l.OfferOrBookingIntentPositives,
		l.BookedCalls, l.AttendedCalls, l.ClosedDeals,
	}
}

// WriteCSV writes one row per log with its own KPIs as "%.2f" percentages.
// Metrics without data are left empty.
func WriteCSV(w io.Writer, logs []models.DailyLog) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, l := range logs {
		row := []string{
			l.ID, l.Date, l.AccountID, l.CampaignTag, strconv.FormatBool(l.IsOldLeadsLane),
			l.ExperimentID, l.VariantID, l.Notes,
		}
		for _, c := range counts(l) {
			row = append(row, strconv.Itoa(c))
		}
		ratios := kpi.Ratios(kpi.Aggregate([]models.DailyLog{l}))
		for _, m := range models.Metrics {
			row = append(row, formatPct(ratios[m]))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatPct(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v*100)
}

// ErrNoHeader is returned for empty input.
var ErrNoHeader = errors.New("csv: missing header row")

// ReadCSV parses rows back into logs. Columns are matched by header name, so any
// historical field name the normalizer knows is accepted and KPI columns are ignored.
func ReadCSV(r io.Reader) ([]models.DailyLog, ingest.Report, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ingest.Report{}, ErrNoHeader
	}
	if err != nil {
		return nil, ingest.Report{}, fmt.Errorf("csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var raw []any
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, ingest.Report{}, fmt.Errorf("csv line %d: %w", line, err)
		}
		m := make(map[string]any, len(header))
		for i, col := range header {
			if i >= len(rec) || col == "" {
				continue
			}
			if _, isMetric := ingest.ParseMetric(col); isMetric {
				continue
			}
			if rec[i] != "" {
				m[col] = rec[i]
			}
		}
		raw = append(raw, m)
	}
	st, rep := ingest.NormalizeWithReport(map[string]any{"logs": raw})
	return st.Logs, rep, nil
}
