package ingest

import (
	"strings"

	"github.com/AngelCh415/dmlab/internal/models"
)

// legacyLeadStages maps single-letter board codes and the short enums of the
// snake_case generation onto the current pipeline.
var legacyLeadStages = map[string]models.FunnelStage{
	"A":              models.StageConnected,
	"S":              models.StagePermissionSent,
	"B":              models.StageBooked,
	"C":              models.StageAttended,
	"D":              models.StageClosed,
	"X":              models.StageLost,
	"PERMISSION_POS": models.StagePermissionPositive,
	"OFFER_POS":      models.StageOfferPositive,
}

// ParseLeadStage never fails: unknown codes land on the first stage.
func ParseLeadStage(s string) models.FunnelStage {
	code := strings.ToUpper(strings.TrimSpace(s))
	if st := models.FunnelStage(code); st.IsValid() {
		return st
	}
	if st, ok := legacyLeadStages[code]; ok {
		return st
	}
	return models.StageRequested
}
