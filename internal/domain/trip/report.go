package trip

import "time"

type Method string

const (
	MethodTankToTank    Method = "tank_to_tank"
	MethodSimple        Method = "simple (first refueling)"
	MethodNotApplicable Method = "not_applicable"
	MethodError         Method = "error"
)

// RecalculationResult is always returned for well-formed input; failures are
// reported through Success/Message rather than as errors.
type RecalculationResult struct {
	TripID  int64    `json:"trip_id"`
	Success bool     `json:"success"`
	OldKmpl *float64 `json:"old_kmpl"`
	NewKmpl *float64 `json:"new_kmpl"`
	Method  Method   `json:"method"`
	Message string   `json:"message"`
	Updated bool     `json:"updated"`
}

type DeleteOutcome string

const (
	OutcomeHardDeleted DeleteOutcome = "hard_deleted"
	OutcomeSoftDeleted DeleteOutcome = "soft_deleted"
)

type DeletionImpact struct {
	DownstreamTrips     int     `json:"downstream_trips"`
	DownstreamTripIDs   []int64 `json:"downstream_trip_ids,omitempty"`
	NextRefuelingTripID *int64  `json:"next_refueling_trip_id,omitempty"`
	Message             string  `json:"message"`
}

type DeleteResult struct {
	TripID  int64          `json:"trip_id"`
	Outcome DeleteOutcome  `json:"outcome"`
	Impact  DeletionImpact `json:"impact"`
}

type RecoveryResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Trip    *Trip  `json:"trip,omitempty"`
}

type CorrectionResult struct {
	Trip           *Trip                  `json:"trip"`
	ShiftedTripIDs []int64                `json:"shifted_trip_ids"`
	Recalculations []*RecalculationResult `json:"recalculations,omitempty"`
}

// ========== Chain audit ==========

type IssueType string

const (
	IssueNegativeDistance   IssueType = "negative_distance"
	IssueOdometerRegression IssueType = "odometer_regression"
	IssueLargeOdometerGap   IssueType = "large_odometer_gap"
	IssueMissingMileage     IssueType = "missing_mileage_calculation"
	IssueUnrealisticMileage IssueType = "unrealistic_mileage"
	IssueNone               IssueType = "no_issues"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

const (
	AuditLargeGapKm  = 100.0
	MinRealisticKmpl = 2.0
	MaxRealisticKmpl = 50.0
)

type ChainIssue struct {
	IssueType     IssueType  `json:"issue_type"`
	Severity      Severity   `json:"severity"`
	TripID        int64      `json:"trip_id,omitempty"`
	TripStartDate *time.Time `json:"trip_start_date,omitempty"`
	Description   string     `json:"description"`
	CurrentValue  *float64   `json:"current_value,omitempty"`
	ExpectedValue *float64   `json:"expected_value,omitempty"`
	AutoFixable   bool       `json:"auto_fixable"`
	Fixed         bool       `json:"fixed"`
	FixAction     string     `json:"fix_action,omitempty"`
}

type ValidateOptions struct {
	AutoFix bool
	Range   *DateRange
}

// GapCounts aggregates adjacent-pair gaps of a chain.
type GapCounts struct {
	TotalTrips int `json:"total_trips"`
	Pairs      int `json:"pairs"`
	Perfect    int `json:"perfect"`
	Small      int `json:"small"`
	Moderate   int `json:"moderate"`
	Large      int `json:"large"`
	Negative   int `json:"negative"`
}

type ContinuityReport struct {
	VehicleID       int64     `json:"vehicle_id"`
	Score           *int      `json:"score"`
	Counts          GapCounts `json:"counts"`
	Recommendations []string  `json:"recommendations"`
}

type ChainBreak struct {
	FromTripID     int64     `json:"from_trip_id"`
	ToTripID       int64     `json:"to_trip_id"`
	FromEndDate    time.Time `json:"from_end_date"`
	ToStartDate    time.Time `json:"to_start_date"`
	FromEndKm      float64   `json:"from_end_km"`
	ToStartKm      float64   `json:"to_start_km"`
	GapKm          float64   `json:"gap_km"`
	Classification GapClass  `json:"classification"`
	Remediation    string    `json:"remediation"`
}

type FleetAuditResult struct {
	VehicleID int64        `json:"vehicle_id"`
	Issues    []ChainIssue `json:"issues,omitempty"`
	Error     string       `json:"error,omitempty"`
}
