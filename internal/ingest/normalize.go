package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AngelCh415/dmlab/internal/models"
)

const dateLayout = "2006-01-02"

var defaultWeeklyGoals = models.WeeklyGoals{ConnectionRequests: 100, PermissionSent: 50, BookedCalls: 3}

// Report describes what the normalizer did to a payload.
type Report struct {
	DetectedVersion int      `json:"detectedVersion"`
	Migrations      []string `json:"migrations"`
}

// Migrated reports whether any migration step ran.
func (r Report) Migrated() bool { return len(r.Migrations) > 0 }

// Normalize converts any decoded payload (persisted envelope, bare state, legacy
// settings blob or a plain array of logs) into the canonical state. It never fails:
// malformed fields fall back to typed defaults.
func Normalize(raw any) models.AppState {
	st, _ := NormalizeWithReport(raw)
	return st
}

// NormalizeJSON decodes and normalizes; undecodable input yields the default state.
func NormalizeJSON(data []byte) (models.AppState, Report) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		raw = nil
	}
	return NormalizeWithReport(raw)
}

func NormalizeWithReport(raw any) (models.AppState, Report) {
	state, stored := unwrap(deepCopy(raw))
	version := detectVersion(state, stored)
	state, applied := migrate(state, version)
	return normalizeState(state), Report{DetectedVersion: version, Migrations: applied}
}

// unwrap strips the {schemaVersion, savedAt, data} envelope when present.
func unwrap(raw any) (map[string]any, int) {
	if logs := asSlice(raw); logs != nil {
		return map[string]any{"logs": logs}, 0
	}
	m := asMap(raw)
	if m == nil {
		return map[string]any{}, 0
	}
	stored := clampNonNegInt(m["schemaVersion"])
	if data := asMap(m["data"]); data != nil {
		return data, stored
	}
	delete(m, "schemaVersion")
	delete(m, "savedAt")
	return m, stored
}

func normalizeState(m map[string]any) models.AppState {
	return models.AppState{
		Config:      normalizeConfig(asMap(m["config"])),
		Logs:        normalizeLogs(asSlice(m["logs"])),
		Experiments: normalizeExperiments(asSlice(m["experiments"])),
		Prospects:   normalizeLeads(asSlice(m["prospects"])),
		UI:          normalizeUI(asMap(m["ui"])),
	}
}

func normalizeConfig(m map[string]any) models.Config {
	return models.Config{
		KpiTargets:             NormalizeTargets(asMap(m["kpiTargets"])),
		ExcludeOldLeadsFromKpi: boolOr(m["excludeOldLeadsFromKpi"], true),
		Autosave:               boolOr(m["autosave"], true),
		Accounts:               normalizeAccounts(asSlice(m["accounts"])),
	}
}

// NormalizeTargets starts from the defaults and overrides every recognised metric.
func NormalizeTargets(m map[string]any) models.KpiTargets {
	out := models.DefaultKpiTargets()
	for k, v := range m {
		if metric, ok := ParseMetric(k); ok {
			out[metric] = clampNonNegNumber(v)
		}
	}
	return out
}

// ParseMetric accepts canonical names, lowercase spellings and the SCR shorthand.
func ParseMetric(s string) (models.Metric, bool) {
	m := models.Metric(strings.ToUpper(strings.TrimSpace(s)))
	if m == "SCR" {
		m = models.MetricSalesCloseRate
	}
	return m, m.IsValid()
}

func accountID(i int) string { return fmt.Sprintf("account_%d", i+1) }

func normalizeAccounts(in []any) []models.Account {
	out := make([]models.Account, 0, len(in))
	seen := map[string]struct{}{}
	for i, raw := range in {
		var a models.Account
		switch v := raw.(type) {
		case string:
			a = models.Account{ID: accountID(i), Name: coalesce(strings.TrimSpace(v), accountID(i)), WeeklyGoals: defaultWeeklyGoals}
		case map[string]any:
			id := coalesce(asString(v["id"]), accountID(i))
			a = models.Account{
				ID:          id,
				Name:        coalesce(asString(v["name"]), id),
				WeeklyGoals: normalizeGoals(asMap(v["weeklyGoals"])),
			}
		default:
			continue
		}
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	if len(out) == 0 {
		out = append(out, models.Account{ID: accountID(0), Name: "Account 1", WeeklyGoals: defaultWeeklyGoals})
	}
	return out
}

func normalizeGoals(m map[string]any) models.WeeklyGoals {
	g := defaultWeeklyGoals
	if v := m["connectionRequests"]; v != nil {
		g.ConnectionRequests = clampNonNegInt(v)
	}
	if v := m["permissionSent"]; v != nil {
		g.PermissionSent = clampNonNegInt(v)
	}
	if v := m["bookedCalls"]; v != nil {
		g.BookedCalls = clampNonNegInt(v)
	}
	return g
}

// uniqueID returns id, or a generated one when id is empty or already taken.
func uniqueID(id string, seen map[string]struct{}, gen func(n int) string) string {
	if id != "" {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			return id
		}
	}
	for n := len(seen) + 1; ; n++ {
		cand := gen(n)
		if _, dup := seen[cand]; !dup {
			seen[cand] = struct{}{}
			return cand
		}
	}
}

func normalizeLogs(in []any) []models.DailyLog {
	out := make([]models.DailyLog, 0, len(in))
	seen := map[string]struct{}{}
	for _, raw := range in {
		m := asMap(raw)
		if m == nil {
			continue
		}
		l := NormalizeLog(m)
		l.ID = uniqueID(l.ID, seen, func(n int) string { return fmt.Sprintf("log_%d", n) })
		out = append(out, l)
	}
	return out
}

// NormalizeLog coerces one canonical-shaped record. Counts are floored and clamped to >= 0.
func NormalizeLog(m map[string]any) models.DailyLog {
	return models.DailyLog{
		ID:                            asString(m["id"]),
		Date:                          normalizeDate(m["date"]),
		AccountID:                     asString(m["accountId"]),
		CampaignTag:                   asString(m["campaignTag"]),
		IsOldLeadsLane:                asBool(m["isOldLeadsLane"]),
		ExperimentID:                  asString(m["experimentId"]),
		VariantID:                     asString(m["variantId"]),
		Notes:                         asText(m["notes"]),
		ConnectionRequestsSent:        clampNonNegInt(m["connectionRequestsSent"]),
		ConnectionsAccepted:           clampNonNegInt(m["connectionsAccepted"]),
		PermissionMessagesSent:        clampNonNegInt(m["permissionMessagesSent"]),
		PermissionSeen:                clampNonNegInt(m["permissionSeen"]),
		PermissionPositives:           clampNonNegInt(m["permissionPositives"]),
		OfferMessagesSent:             clampNonNegInt(m["offerMessagesSent"]),
		OfferSeen:                     clampNonNegInt(m["offerSeen"]),
		OfferOrBookingIntentPositives: clampNonNegInt(m["offerOrBookingIntentPositives"]),
		BookedCalls:                   clampNonNegInt(m["bookedCalls"]),
		AttendedCalls:                 clampNonNegInt(m["attendedCalls"]),
		ClosedDeals:                   clampNonNegInt(m["closedDeals"]),
	}
}

// ClampLog applies the normalizer's count rules to an already typed record.
func ClampLog(l models.DailyLog) models.DailyLog {
	for _, p := range []*int{
		&l.ConnectionRequestsSent, &l.ConnectionsAccepted, &l.PermissionMessagesSent,
		&l.PermissionSeen, &l.PermissionPositives, &l.OfferMessagesSent, &l.OfferSeen,
		&l.OfferOrBookingIntentPositives, &l.BookedCalls, &l.AttendedCalls, &l.ClosedDeals,
	} {
		if *p < 0 {
			*p = 0
		}
	}
	l.Date = normalizeDate(l.Date)
	l.AccountID = strings.TrimSpace(l.AccountID)
	l.CampaignTag = strings.TrimSpace(l.CampaignTag)
	return l
}

// normalizeDate keeps ISO calendar dates and truncates timestamps; anything else is "".
func normalizeDate(v any) string {
	s := asString(v)
	if len(s) < len(dateLayout) {
		return ""
	}
	if _, err := time.Parse(dateLayout, s[:len(dateLayout)]); err != nil {
		return ""
	}
	return s[:len(dateLayout)]
}

func normalizeExperiments(in []any) []models.Experiment {
	out := make([]models.Experiment, 0, len(in))
	seen := map[string]struct{}{}
	for i, raw := range in {
		m := asMap(raw)
		if m == nil {
			continue
		}
		id := uniqueID(asString(m["id"]), seen, func(n int) string { return fmt.Sprintf("exp_%d", n) })
		stage := ParseExperimentStage(asString(m["funnelStageTargeted"]))

		metric, ok := ParseMetric(asString(m["primaryMetric"]))
		if !ok {
			metric = stage.PrimaryMetric()
		}
		required := stage.RequiredSampleSizeSeen()
		if v := m["requiredSampleSizeSeen"]; v != nil {
			required = clampNonNegInt(v)
		}

		out = append(out, models.Experiment{
			ID:                     id,
			Name:                   coalesce(asString(m["name"]), fmt.Sprintf("Experiment %d", i+1)),
			Status:                 ParseExperimentStatus(asString(m["status"])),
			FunnelStageTargeted:    stage,
			PrimaryMetric:          metric,
			RequiredSampleSizeSeen: required,
			Variants:               normalizeVariants(id, asSlice(m["variants"])),
		})
	}
	return out
}

// ParseExperimentStage defaults unknown stages to PERMISSION.
func ParseExperimentStage(s string) models.ExperimentStage {
	st := models.ExperimentStage(strings.ToUpper(s))
	if !st.IsValid() {
		return models.ExperimentStagePermission
	}
	return st
}

// ParseExperimentStatus defaults unknown statuses to planned.
func ParseExperimentStatus(s string) models.ExperimentStatus {
	st := models.ExperimentStatus(strings.ToLower(s))
	if !st.IsValid() {
		return models.ExperimentStatusPlanned
	}
	return st
}

// VariantLabel returns "Variant A", "Variant B", ... for a zero-based position.
func VariantLabel(i int) string {
	if i < 26 {
		return "Variant " + string(rune('A'+i))
	}
	return fmt.Sprintf("Variant %d", i+1)
}

func normalizeVariants(expID string, in []any) []models.Variant {
	out := make([]models.Variant, 0, len(in))
	seen := map[string]struct{}{}
	for _, raw := range in {
		m := asMap(raw)
		if m == nil {
			continue
		}
		pos := len(out)
		out = append(out, models.Variant{
			ID:       uniqueID(asString(m["id"]), seen, func(n int) string { return fmt.Sprintf("%s_v%d", expID, n) }),
			Name:     coalesce(asString(m["name"]), VariantLabel(pos)),
			Message:  asText(m["message"]),
			StepType: asString(m["stepType"]),
		})
	}
	if len(out) == 0 {
		out = append(out, DefaultVariant(expID))
	}
	return out
}

// DefaultVariant is synthesized for experiments left without variants.
func DefaultVariant(expID string) models.Variant {
	return models.Variant{ID: expID + "_variant_a", Name: VariantLabel(0)}
}

func normalizeLeads(in []any) []models.Lead {
	out := make([]models.Lead, 0, len(in))
	seen := map[string]struct{}{}
	for _, raw := range in {
		m := asMap(raw)
		if m == nil {
			continue
		}
		out = append(out, models.Lead{
			ID:             uniqueID(asString(m["id"]), seen, func(n int) string { return fmt.Sprintf("lead_%d", n) }),
			Name:           asString(m["name"]),
			LinkedinURL:    asString(m["linkedinUrl"]),
			AccountID:      asString(m["accountId"]),
			Stage:          ParseLeadStage(asString(m["stage"])),
			IsOldLeadsLane: asBool(m["isOldLeadsLane"]),
			Notes:          asText(m["notes"]),
		})
	}
	return out
}

func normalizeUI(m map[string]any) models.UI {
	return models.UI{
		SelectedAccountID: asString(m["selectedAccountId"]),
		SelectedCampaign:  asString(m["selectedCampaign"]),
		ActiveTab:         asString(m["activeTab"]),
	}
}
