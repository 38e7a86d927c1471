package models

type WeeklyGoals struct {
	ConnectionRequests int `json:"connectionRequests"`
	PermissionSent     int `json:"permissionSent"`
	BookedCalls        int `json:"bookedCalls"`
}

type Account struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	WeeklyGoals WeeklyGoals `json:"weeklyGoals"`
}

// DailyLog is one day/account/campaign entry of funnel counts.
type DailyLog struct {
	ID                            string `json:"id"`
	Date                          string `json:"date"`
	AccountID                     string `json:"accountId"`
	CampaignTag                   string `json:"campaignTag"`
	IsOldLeadsLane                bool   `json:"isOldLeadsLane"`
	ExperimentID                  string `json:"experimentId"`
	VariantID                     string `json:"variantId"`
	Notes                         string `json:"notes"`
	ConnectionRequestsSent        int    `json:"connectionRequestsSent"`
	ConnectionsAccepted           int    `json:"connectionsAccepted"`
	PermissionMessagesSent        int    `json:"permissionMessagesSent"`
	PermissionSeen                int    `json:"permissionSeen"`
	PermissionPositives           int    `json:"permissionPositives"`
	OfferMessagesSent             int    `json:"offerMessagesSent"`
	OfferSeen                     int    `json:"offerSeen"`
	OfferOrBookingIntentPositives int    `json:"offerOrBookingIntentPositives"`
	BookedCalls                   int    `json:"bookedCalls"`
	AttendedCalls                 int    `json:"attendedCalls"`
	ClosedDeals                   int    `json:"closedDeals"`
}

type Variant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Message  string `json:"message"`
	StepType string `json:"stepType"`
}

type Experiment struct {
	ID                     string           `json:"id"`
	Name                   string           `json:"name"`
	Status                 ExperimentStatus `json:"status"`
	FunnelStageTargeted    ExperimentStage  `json:"funnelStageTargeted"`
	PrimaryMetric          Metric           `json:"primaryMetric"`
	RequiredSampleSizeSeen int              `json:"requiredSampleSizeSeen"`
	Variants               []Variant        `json:"variants"`
}

// Variant returns the variant with the given id.
func (e Experiment) Variant(id string) (Variant, bool) {
	for _, v := range e.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

type Lead struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	LinkedinURL    string      `json:"linkedinUrl"`
	AccountID      string      `json:"accountId"`
	Stage          FunnelStage `json:"stage"`
	IsOldLeadsLane bool        `json:"isOldLeadsLane"`
	Notes          string      `json:"notes"`
}

// KpiTargets maps a metric to its target percentage (0-100 scale).
type KpiTargets map[Metric]float64

type Config struct {
	KpiTargets             KpiTargets `json:"kpiTargets"`
	ExcludeOldLeadsFromKpi bool       `json:"excludeOldLeadsFromKpi"`
	Autosave               bool       `json:"autosave"`
	Accounts               []Account  `json:"accounts"`
}

// Account returns the account with the given id.
func (c Config) Account(id string) (Account, bool) {
	for _, a := range c.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

// UI holds presentation preferences the dashboard round-trips untouched.
type UI struct {
	SelectedAccountID string `json:"selectedAccountId"`
	SelectedCampaign  string `json:"selectedCampaign"`
	ActiveTab         string `json:"activeTab"`
}

type AppState struct {
	Config      Config       `json:"config"`
	Logs        []DailyLog   `json:"logs"`
	Experiments []Experiment `json:"experiments"`
	Prospects   []Lead       `json:"prospects"`
	UI          UI           `json:"ui"`
}

// Experiment returns the experiment with the given id.
func (s AppState) Experiment(id string) (Experiment, bool) {
	for _, e := range s.Experiments {
		if e.ID == id {
			return e, true
		}
	}
	return Experiment{}, false
}

// Clone returns a deep copy so callers never share slices with the store.
func (s AppState) Clone() AppState {
	out := s
	if s.Config.KpiTargets != nil {
		out.Config.KpiTargets = make(KpiTargets, len(s.Config.KpiTargets))
		for k, v := range s.Config.KpiTargets {
			out.Config.KpiTargets[k] = v
		}
	}
	out.Config.Accounts = cloneSlice(s.Config.Accounts)
	out.Logs = cloneSlice(s.Logs)
	out.Prospects = cloneSlice(s.Prospects)
	out.Experiments = cloneSlice(s.Experiments)
	for i := range out.Experiments {
		out.Experiments[i].Variants = cloneSlice(out.Experiments[i].Variants)
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// PersistedState is the envelope written by every persistence backend.
type PersistedState struct {
	SchemaVersion int      `json:"schemaVersion"`
	SavedAt       string   `json:"savedAt"`
	Data          AppState `json:"data"`
}
