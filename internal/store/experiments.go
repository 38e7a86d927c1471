package store

import (
	"fmt"
	"strings"

	"github.com/AngelCh415/dmlab/internal/ingest"
	"github.com/AngelCh415/dmlab/internal/models"
)

// ExperimentInput is the user-editable part of an experiment. Empty PrimaryMetric
// and nil RequiredSampleSizeSeen are derived from the targeted stage.
type ExperimentInput struct {
	ID                     string
	Name                   string
	Status                 models.ExperimentStatus
	FunnelStageTargeted    models.ExperimentStage
	PrimaryMetric          models.Metric
	RequiredSampleSizeSeen *int
	Variants               []models.Variant
}

func (in ExperimentInput) validate() error {
	if in.PrimaryMetric != "" && !in.PrimaryMetric.IsValid() {
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidInput, in.PrimaryMetric)
	}
	if in.RequiredSampleSizeSeen != nil && *in.RequiredSampleSizeSeen < 0 {
		return fmt.Errorf("%w: requiredSampleSizeSeen must be >= 0", ErrInvalidInput)
	}
	return nil
}

func (s *MemoryStore) AddExperiment(in ExperimentInput) (models.Experiment, error) {
	if err := in.validate(); err != nil {
		return models.Experiment{}, fmt.Errorf("add experiment: %w", err)
	}
	var exp models.Experiment
	err := s.mutate("add experiment", func(st *models.AppState) error {
		id := s.idOr(strings.TrimSpace(in.ID))
		if indexOf(st.Experiments, id, experimentID) >= 0 {
			return ErrDuplicateID
		}
		stage := ingest.ParseExperimentStage(string(in.FunnelStageTargeted))
		exp = models.Experiment{
			ID:                     id,
			Name:                   strings.TrimSpace(in.Name),
			Status:                 ingest.ParseExperimentStatus(string(in.Status)),
			FunnelStageTargeted:    stage,
			PrimaryMetric:          stage.PrimaryMetric(),
			RequiredSampleSizeSeen: stage.RequiredSampleSizeSeen(),
		}
		if exp.Name == "" {
			exp.Name = fmt.Sprintf("Experiment %d", len(st.Experiments)+1)
		}
		applyOverrides(&exp, in)
		variants, err := s.prepareVariants(id, in.Variants)
		if err != nil {
			return err
		}
		if len(variants) == 0 {
			variants = []models.Variant{ingest.DefaultVariant(id)}
		}
		exp.Variants = variants
		st.Experiments = append(st.Experiments, exp)
		return nil
	})
	exp.Variants = append([]models.Variant(nil), exp.Variants...)
	return exp, err
}

// UpdateExperiment edits an experiment in place. Changing the stage re-derives the
// primary metric and required sample unless the input overrides them. Nil Variants
// keep the current list.
func (s *MemoryStore) UpdateExperiment(id string, in ExperimentInput) (models.Experiment, error) {
	if err := in.validate(); err != nil {
		return models.Experiment{}, fmt.Errorf("update experiment: %w", err)
	}
	var exp models.Experiment
	err := s.mutate("update experiment", func(st *models.AppState) error {
		i := indexOf(st.Experiments, id, experimentID)
		if i < 0 {
			return ErrNotFound
		}
		exp = st.Experiments[i]
		if name := strings.TrimSpace(in.Name); name != "" {
			exp.Name = name
		}
		if in.Status != "" {
			exp.Status = ingest.ParseExperimentStatus(string(in.Status))
		}
		if in.FunnelStageTargeted != "" {
			stage := ingest.ParseExperimentStage(string(in.FunnelStageTargeted))
			if stage != exp.FunnelStageTargeted {
				exp.FunnelStageTargeted = stage
				exp.PrimaryMetric = stage.PrimaryMetric()
				exp.RequiredSampleSizeSeen = stage.RequiredSampleSizeSeen()
			}
		}
		applyOverrides(&exp, in)
		if in.Variants != nil {
			variants, err := s.prepareVariants(id, in.Variants)
			if err != nil {
				return err
			}
			if len(variants) == 0 {
				return ErrLastVariant
			}
			exp.Variants = variants
		}
		st.Experiments[i] = exp
		return nil
	})
	exp.Variants = append([]models.Variant(nil), exp.Variants...)
	return exp, err
}

func applyOverrides(exp *models.Experiment, in ExperimentInput) {
	if in.PrimaryMetric != "" {
		exp.PrimaryMetric = in.PrimaryMetric
	}
	if in.RequiredSampleSizeSeen != nil {
		exp.RequiredSampleSizeSeen = *in.RequiredSampleSizeSeen
	}
}

func (s *MemoryStore) prepareVariants(expID string, in []models.Variant) ([]models.Variant, error) {
	out := make([]models.Variant, 0, len(in))
	for i, v := range in {
		v.ID = strings.TrimSpace(v.ID)
		if v.ID == "" {
			v.ID = fmt.Sprintf("%s_%s", expID, s.newID())
		}
		if indexOf(out, v.ID, variantID) >= 0 {
			return nil, ErrDuplicateID
		}
		if strings.TrimSpace(v.Name) == "" {
			v.Name = ingest.VariantLabel(i)
		}
		out = append(out, v)
	}
	return out, nil
}

// DeleteExperiment removes the experiment. Logs keep their experimentId.
func (s *MemoryStore) DeleteExperiment(id string) error {
	return s.mutate("delete experiment", func(st *models.AppState) error {
		i := indexOf(st.Experiments, id, experimentID)
		if i < 0 {
			return ErrNotFound
		}
		st.Experiments = append(st.Experiments[:i:i], st.Experiments[i+1:]...)
		return nil
	})
}

func (s *MemoryStore) AddVariant(expID string, v models.Variant) (models.Variant, error) {
	err := s.mutate("add variant", func(st *models.AppState) error {
		i := indexOf(st.Experiments, expID, experimentID)
		if i < 0 {
			return ErrNotFound
		}
		exp := &st.Experiments[i]
		v.ID = strings.TrimSpace(v.ID)
		if v.ID == "" {
			v.ID = fmt.Sprintf("%s_%s", expID, s.newID())
		}
		if indexOf(exp.Variants, v.ID, variantID) >= 0 {
			return ErrDuplicateID
		}
		if strings.TrimSpace(v.Name) == "" {
			v.Name = ingest.VariantLabel(len(exp.Variants))
		}
		exp.Variants = append(exp.Variants[:len(exp.Variants):len(exp.Variants)], v)
		return nil
	})
	return v, err
}

// RemoveVariant deletes a variant unless it is the last one. Logs keep the
// orphaned variantId.
func (s *MemoryStore) RemoveVariant(expID, variantIDToRemove string) error {
	return s.mutate("remove variant", func(st *models.AppState) error {
		i := indexOf(st.Experiments, expID, experimentID)
		if i < 0 {
			return ErrNotFound
		}
		exp := &st.Experiments[i]
		j := indexOf(exp.Variants, variantIDToRemove, variantID)
		if j < 0 {
			return ErrNotFound
		}
		if len(exp.Variants) == 1 {
			return ErrLastVariant
		}
		exp.Variants = append(exp.Variants[:j:j], exp.Variants[j+1:]...)
		return nil
	})
}
