package httpx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/AngelCh415/dmlab/internal/ingest"
	"github.com/AngelCh415/dmlab/internal/models"
	"github.com/AngelCh415/dmlab/internal/store"
)

var validate = validator.New()

// decode reads a JSON body into a struct dst and validates it.
func decode(r *http.Request, dst any) error {
	if err := decodeJSON(r, dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

func decodeJSON(r *http.Request, dst any) error {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", errBadBody, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return fmt.Errorf("%w: empty body", errBadBody)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("%w: %w", errBadBody, err)
	}
	return nil
}

// logRequest holds the identity fields of a log payload for validation. Counts
// are coerced by the normalizer and never rejected.
type logRequest struct {
	ID           string `json:"id" validate:"max=100"`
	Date         string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	AccountID    string `json:"accountId" validate:"max=100"`
	CampaignTag  string `json:"campaignTag" validate:"max=200"`
	ExperimentID string `json:"experimentId" validate:"max=100"`
	VariantID    string `json:"variantId" validate:"max=100"`
	Notes        string `json:"notes" validate:"max=5000"`
}

// decodeLog reads a log payload of any shape through ingest.NormalizeLog. A date
// the normalizer could not read is reported back as a validation error.
func decodeLog(r *http.Request) (models.DailyLog, error) {
	var raw map[string]any
	if err := decodeJSON(r, &raw); err != nil {
		return models.DailyLog{}, err
	}
	l := ingest.NormalizeLog(raw)
	req := logRequest{
		ID:           l.ID,
		Date:         l.Date,
		AccountID:    l.AccountID,
		CampaignTag:  l.CampaignTag,
		ExperimentID: l.ExperimentID,
		VariantID:    l.VariantID,
		Notes:        l.Notes,
	}
	if s, ok := raw["date"].(string); ok && req.Date == "" {
		req.Date = strings.TrimSpace(s)
	}
	if err := validate.Struct(req); err != nil {
		return models.DailyLog{}, err
	}
	return l, nil
}

type goalsRequest struct {
	ConnectionRequests int `json:"connectionRequests" validate:"gte=0"`
	PermissionSent     int `json:"permissionSent" validate:"gte=0"`
	BookedCalls        int `json:"bookedCalls" validate:"gte=0"`
}

func (g goalsRequest) model() models.WeeklyGoals {
	return models.WeeklyGoals{ConnectionRequests: g.ConnectionRequests, PermissionSent: g.PermissionSent, BookedCalls: g.BookedCalls}
}

type createAccountRequest struct {
	ID          string       `json:"id" validate:"max=100"`
	Name        string       `json:"name" validate:"required,max=200"`
	WeeklyGoals goalsRequest `json:"weeklyGoals"`
}

type updateAccountRequest struct {
	Name        string        `json:"name" validate:"max=200"`
	WeeklyGoals *goalsRequest `json:"weeklyGoals"`
}

func (r updateAccountRequest) input() store.AccountUpdate {
	in := store.AccountUpdate{Name: r.Name}
	if r.WeeklyGoals != nil {
		g := r.WeeklyGoals.model()
		in.WeeklyGoals = &g
	}
	return in
}

type renameRequest struct {
	NewID string `json:"newId" validate:"required,max=100"`
}

type variantRequest struct {
	ID       string `json:"id" validate:"max=100"`
	Name     string `json:"name" validate:"max=200"`
	Message  string `json:"message" validate:"max=5000"`
	StepType string `json:"stepType" validate:"max=100"`
}

func (v variantRequest) model() models.Variant {
	return models.Variant{ID: v.ID, Name: v.Name, Message: v.Message, StepType: v.StepType}
}

type experimentRequest struct {
	ID                     string           `json:"id" validate:"max=100"`
	Name                   string           `json:"name" validate:"max=200"`
	Status                 string           `json:"status" validate:"omitempty,oneof=planned active running paused completed archived"`
	FunnelStageTargeted    string           `json:"funnelStageTargeted" validate:"max=50"`
	PrimaryMetric          string           `json:"primaryMetric" validate:"max=50"`
	RequiredSampleSizeSeen *int             `json:"requiredSampleSizeSeen" validate:"omitempty,gte=0"`
	Variants               []variantRequest `json:"variants" validate:"omitempty,dive"`
}

// input keeps a nil Variants slice nil so updates leave the variants alone.
func (r experimentRequest) input() store.ExperimentInput {
	in := store.ExperimentInput{
		ID:                     r.ID,
		Name:                   r.Name,
		Status:                 models.ExperimentStatus(r.Status),
		FunnelStageTargeted:    models.ExperimentStage(r.FunnelStageTargeted),
		PrimaryMetric:          models.Metric(r.PrimaryMetric),
		RequiredSampleSizeSeen: r.RequiredSampleSizeSeen,
	}
	if m, ok := ingest.ParseMetric(r.PrimaryMetric); ok {
		in.PrimaryMetric = m
	}
	if r.Variants != nil {
		in.Variants = make([]models.Variant, 0, len(r.Variants))
		for _, v := range r.Variants {
			in.Variants = append(in.Variants, v.model())
		}
	}
	return in
}

type prospectRequest struct {
	ID             string `json:"id" validate:"max=100"`
	Name           string `json:"name" validate:"max=200"`
	LinkedinURL    string `json:"linkedinUrl" validate:"omitempty,url"`
	AccountID      string `json:"accountId" validate:"max=100"`
	Stage          string `json:"stage" validate:"max=50"`
	IsOldLeadsLane bool   `json:"isOldLeadsLane"`
	Notes          string `json:"notes" validate:"max=5000"`
}

func (p prospectRequest) model() models.Lead {
	return models.Lead{
		ID:             p.ID,
		Name:           p.Name,
		LinkedinURL:    p.LinkedinURL,
		AccountID:      p.AccountID,
		Stage:          models.FunnelStage(p.Stage),
		IsOldLeadsLane: p.IsOldLeadsLane,
		Notes:          p.Notes,
	}
}

type stageRequest struct {
	Stage string `json:"stage" validate:"required,max=50"`
}

// targetsRequest accepts metric names in any case; unknown names are rejected by the store.
type targetsRequest map[string]float64

func (t targetsRequest) model() models.KpiTargets {
	out := make(models.KpiTargets, len(t))
	for k, v := range t {
		m, ok := ingest.ParseMetric(k)
		if !ok {
			m = models.Metric(k)
		}
		out[m] = v
	}
	return out
}
