package ingest

import (
	"github.com/AngelCh415/dmlab/internal/models"
)

// Schema generations found in stored data:
//
//	1: flat legacy counters (sent, accepted, booked, calendly), string accounts, settings/targets at the root
//	2: snake_case records written by the REST backend (booked_calls, account_id, ...)
//	3: current camelCase shape
const (
	versionLegacy = 1
	versionSnake  = 2
)

// alias lists the historical names of one canonical field, highest priority first
// after the canonical name itself: snake_case, then legacy spellings.
type alias struct {
	canonical string
	snake     string
	legacy    []string
}

var logAliases = []alias{
	{"connectionRequestsSent", "connection_requests_sent", []string{"connectionRequests", "requests", "requested"}},
	{"connectionsAccepted", "connections_accepted", []string{"accepted"}},
	{"permissionMessagesSent", "permission_messages_sent", []string{"permissionSent", "sent"}},
	{"permissionSeen", "permission_seen", []string{"seen"}},
	{"permissionPositives", "permission_positives", []string{"positives", "replies"}},
	{"offerMessagesSent", "offer_messages_sent", []string{"offersSent"}},
	{"offerSeen", "offer_seen", nil},
	{"offerOrBookingIntentPositives", "offer_or_booking_intent_positives", []string{"offerPositives", "calendly", "calendlySent"}},
	{"bookedCalls", "booked_calls", []string{"booked"}},
	{"attendedCalls", "attended_calls", []string{"attended"}},
	{"closedDeals", "closed_deals", []string{"closed", "won"}},
	{"accountId", "account_id", []string{"account"}},
	{"campaignTag", "campaign_tag", []string{"campaign", "tag"}},
	{"isOldLeadsLane", "is_old_leads_lane", []string{"oldLeads", "oldLeadsLane"}},
	{"experimentId", "experiment_id", []string{"experiment"}},
	{"variantId", "variant_id", []string{"variant"}},
}

var experimentAliases = []alias{
	{"funnelStageTargeted", "funnel_stage_targeted", []string{"stage", "funnelStage"}},
	{"primaryMetric", "primary_metric", []string{"metric"}},
	{"requiredSampleSizeSeen", "required_sample_size_seen", []string{"requiredSample", "sampleSize"}},
}

var variantAliases = []alias{
	{"name", "", []string{"label"}},
	{"message", "", []string{"text", "copy"}},
	{"stepType", "step_type", []string{"step"}},
}

var leadAliases = []alias{
	{"linkedinUrl", "linkedin_url", []string{"url", "linkedin"}},
	{"accountId", "account_id", []string{"account"}},
	{"isOldLeadsLane", "is_old_leads_lane", []string{"oldLeads"}},
	{"stage", "", []string{"status"}},
}

var accountAliases = []alias{
	{"weeklyGoals", "weekly_goals", []string{"goals"}},
}

var goalAliases = []alias{
	{"connectionRequests", "connection_requests", []string{"requests"}},
	{"permissionSent", "permission_sent", []string{"sent"}},
	{"bookedCalls", "booked_calls", []string{"booked"}},
}

var configAliases = []alias{
	{"kpiTargets", "kpi_targets", []string{"targets"}},
	{"excludeOldLeadsFromKpi", "exclude_old_leads_from_kpi", []string{"excludeOldLeads"}},
}

// migration upgrades a raw state from version from to from+1.
type migration struct {
	from  int
	name  string
	apply func(state map[string]any)
}

var migrations = []migration{
	{from: versionLegacy, name: "legacy-fields", apply: migrateLegacy},
	{from: versionSnake, name: "snake-case", apply: migrateSnake},
}

// migrate runs every step from version up to current on a private copy of state.
func migrate(state map[string]any, version int) (map[string]any, []string) {
	var applied []string
	for _, m := range migrations {
		if m.from < version {
			continue
		}
		m.apply(state)
		applied = append(applied, m.name)
	}
	return state, applied
}

// detectVersion infers the generation from signature fields. A stored version only
// lowers the result, so mislabelled legacy payloads still get migrated.
func detectVersion(state map[string]any, stored int) int {
	v := models.CurrentSchemaVersion
	switch {
	case hasLegacySignature(state):
		v = versionLegacy
	case hasSnakeSignature(state):
		v = versionSnake
	}
	if stored > 0 && stored < v {
		v = stored
	}
	return v
}

func hasLegacySignature(state map[string]any) bool {
	if _, ok := state["settings"]; ok {
		return true
	}
	if _, ok := state["targets"]; ok {
		return true
	}
	cfg := asMap(state["config"])
	for _, a := range asSlice(cfg["accounts"]) {
		if _, ok := a.(string); ok {
			return true
		}
	}
	return anyRecord(state, func(kind string, rec map[string]any) bool {
		for _, a := range aliasesFor(kind) {
			for _, k := range a.legacy {
				if rec[k] != nil {
					return true
				}
			}
		}
		return false
	})
}

func hasSnakeSignature(state map[string]any) bool {
	for _, a := range configAliases {
		if asMap(state["config"])[a.snake] != nil {
			return true
		}
	}
	return anyRecord(state, func(kind string, rec map[string]any) bool {
		for _, a := range aliasesFor(kind) {
			if a.snake != "" && rec[a.snake] != nil {
				return true
			}
		}
		return false
	})
}

func aliasesFor(kind string) []alias {
	switch kind {
	case "log":
		return logAliases
	case "experiment":
		return experimentAliases
	case "variant":
		return variantAliases
	case "lead":
		return leadAliases
	case "account":
		return accountAliases
	case "goals":
		return goalAliases
	case "config":
		return configAliases
	}
	return nil
}

// anyRecord walks every record map in state, stopping at the first match.
func anyRecord(state map[string]any, fn func(kind string, rec map[string]any) bool) bool {
	found := false
	eachRecord(state, func(kind string, rec map[string]any) {
		if !found && fn(kind, rec) {
			found = true
		}
	})
	return found
}

func eachRecord(state map[string]any, fn func(kind string, rec map[string]any)) {
	for _, l := range asSlice(state["logs"]) {
		if m := asMap(l); m != nil {
			fn("log", m)
		}
	}
	for _, e := range asSlice(state["experiments"]) {
		m := asMap(e)
		if m == nil {
			continue
		}
		fn("experiment", m)
		for _, v := range asSlice(m["variants"]) {
			if vm := asMap(v); vm != nil {
				fn("variant", vm)
			}
		}
	}
	for _, p := range asSlice(state["prospects"]) {
		if m := asMap(p); m != nil {
			fn("lead", m)
		}
	}
	if cfg := asMap(state["config"]); cfg != nil {
		fn("config", cfg)
		for _, a := range asSlice(cfg["accounts"]) {
			am := asMap(a)
			if am == nil {
				continue
			}
			fn("account", am)
			if g := asMap(am["weeklyGoals"]); g != nil {
				fn("goals", g)
			}
			if g := asMap(am["weekly_goals"]); g != nil {
				fn("goals", g)
			}
			if g := asMap(am["goals"]); g != nil {
				fn("goals", g)
			}
		}
	}
}

// migrateLegacy moves root-level settings into config, converts string accounts and
// renames legacy fields to their snake_case successor unless a newer name is present.
func migrateLegacy(state map[string]any) {
	liftRoot(state)
	eachRecord(state, func(kind string, rec map[string]any) {
		for _, a := range aliasesFor(kind) {
			target := a.snake
			if target == "" {
				target = a.canonical
			}
			if rec[a.canonical] == nil && (a.snake == "" || rec[a.snake] == nil) {
				for _, k := range a.legacy {
					if rec[k] != nil {
						rec[target] = rec[k]
						break
					}
				}
			}
			for _, k := range a.legacy {
				if k != target {
					delete(rec, k)
				}
			}
		}
	})
}

// migrateSnake renames snake_case fields to camelCase; snake_case wins over a stale camelCase copy.
func migrateSnake(state map[string]any) {
	eachRecord(state, func(kind string, rec map[string]any) {
		for _, a := range aliasesFor(kind) {
			if a.snake == "" {
				continue
			}
			if v := rec[a.snake]; v != nil {
				rec[a.canonical] = v
			}
			delete(rec, a.snake)
		}
	})
}

func liftRoot(state map[string]any) {
	cfg := asMap(state["config"])
	if cfg == nil {
		cfg = asMap(state["settings"])
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	for _, k := range []string{"accounts", "targets", "kpiTargets", "excludeOldLeads", "excludeOldLeadsFromKpi", "autosave"} {
		if v, ok := state[k]; ok {
			if cfg[k] == nil {
				cfg[k] = v
			}
			delete(state, k)
		}
	}
	delete(state, "settings")

	accounts := asSlice(cfg["accounts"])
	for i, a := range accounts {
		if name, ok := a.(string); ok {
			accounts[i] = map[string]any{"id": accountID(i), "name": name}
		}
	}
	state["config"] = cfg

	if state["prospects"] == nil && state["leads"] != nil {
		state["prospects"] = state["leads"]
	}
	delete(state, "leads")
	if state["logs"] == nil {
		for _, k := range []string{"dailyLogs", "entries"} {
			if state[k] != nil {
				state["logs"] = state[k]
				break
			}
		}
	}
	delete(state, "dailyLogs")
	delete(state, "entries")
}
