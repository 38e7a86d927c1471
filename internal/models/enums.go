package models

// CurrentSchemaVersion is stamped on every persisted envelope.
const CurrentSchemaVersion = 3

type FunnelStage string

const (
	StageRequested          FunnelStage = "REQUESTED"
	StageConnected          FunnelStage = "CONNECTED"
	StagePermissionSent     FunnelStage = "PERMISSION_SENT"
	StagePermissionPositive FunnelStage = "PERMISSION_POSITIVE"
	StageOfferPositive      FunnelStage = "OFFER_POSITIVE"
	StageBooked             FunnelStage = "BOOKED"
	StageAttended           FunnelStage = "ATTENDED"
	StageClosed             FunnelStage = "CLOSED"
	StageLost               FunnelStage = "LOST"
)

// FunnelStages is the ordered lead pipeline used by the board.
var FunnelStages = []FunnelStage{
	StageRequested,
	StageConnected,
	StagePermissionSent,
	StagePermissionPositive,
	StageOfferPositive,
	StageBooked,
	StageAttended,
	StageClosed,
	StageLost,
}

func (s FunnelStage) IsValid() bool {
	for _, v := range FunnelStages {
		if v == s {
			return true
		}
	}
	return false
}

type Metric string

const (
	MetricCR             Metric = "CR"
	MetricPRR            Metric = "PRR"
	MetricABR            Metric = "ABR"
	MetricBookedKPI      Metric = "BOOKED_KPI"
	MetricPositiveToABR  Metric = "POSITIVE_TO_ABR"
	MetricABRToBooked    Metric = "ABR_TO_BOOKED"
	MetricSeenRate       Metric = "SEEN_RATE"
	MetricShowUpRate     Metric = "SHOW_UP_RATE"
	MetricSalesCloseRate Metric = "SALES_CLOSE_RATE"
)

// Metrics lists every computed ratio in display order.
var Metrics = []Metric{
	MetricCR,
	MetricPRR,
	MetricABR,
	MetricBookedKPI,
	MetricPositiveToABR,
	MetricABRToBooked,
	MetricSeenRate,
	MetricShowUpRate,
	MetricSalesCloseRate,
}

func (m Metric) IsValid() bool {
	for _, v := range Metrics {
		if v == m {
			return true
		}
	}
	return false
}

// DefaultKpiTargets returns a fresh copy of the built-in targets.
func DefaultKpiTargets() KpiTargets {
	return KpiTargets{
		MetricCR:             30,
		MetricPRR:            8,
		MetricABR:            4,
		MetricBookedKPI:      3,
		MetricPositiveToABR:  40,
		MetricABRToBooked:    50,
		MetricSeenRate:       60,
		MetricShowUpRate:     70,
		MetricSalesCloseRate: 20,
	}
}

type ExperimentStage string

const (
	ExperimentStageConnection ExperimentStage = "CONNECTION"
	ExperimentStagePermission ExperimentStage = "PERMISSION"
	ExperimentStageOffer      ExperimentStage = "OFFER"
	ExperimentStageBooking    ExperimentStage = "BOOKING"
)

func (s ExperimentStage) IsValid() bool {
	switch s {
	case ExperimentStageConnection, ExperimentStagePermission, ExperimentStageOffer, ExperimentStageBooking:
		return true
	}
	return false
}

// PrimaryMetric is the metric an experiment on this stage is judged by.
func (s ExperimentStage) PrimaryMetric() Metric {
	switch s {
	case ExperimentStagePermission:
		return MetricPRR
	case ExperimentStageOffer:
		return MetricABR
	case ExperimentStageBooking:
		return MetricBookedKPI
	default:
		return MetricCR
	}
}

// RequiredSampleSizeSeen is the default "seen" count a variant needs to be valid.
func (s ExperimentStage) RequiredSampleSizeSeen() int {
	switch s {
	case ExperimentStagePermission:
		return 60
	case ExperimentStageOffer:
		return 30
	default:
		return 0
	}
}

type ExperimentStatus string

const (
	ExperimentStatusPlanned   ExperimentStatus = "planned"
	ExperimentStatusActive    ExperimentStatus = "active"
	ExperimentStatusRunning   ExperimentStatus = "running"
	ExperimentStatusPaused    ExperimentStatus = "paused"
	ExperimentStatusCompleted ExperimentStatus = "completed"
	ExperimentStatusArchived  ExperimentStatus = "archived"
)

func (s ExperimentStatus) IsValid() bool {
	switch s {
	case ExperimentStatusPlanned, ExperimentStatusActive, ExperimentStatusRunning,
		ExperimentStatusPaused, ExperimentStatusCompleted, ExperimentStatusArchived:
		return true
	}
	return false
}

type Status string

const (
	StatusNeutral Status = "neutral"
	StatusGood    Status = "good"
	StatusWarn    Status = "warn"
	StatusBad     Status = "bad"
)
