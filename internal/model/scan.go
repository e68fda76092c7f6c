package model

import (
	"fmt"
	"time"
)

// ScanStatus is the lifecycle state of a scan. Transitions are validated
// through CanTransition; terminal states never transition further.
type ScanStatus string

const (
	ScanPending    ScanStatus = "PENDING"
	ScanInProgress ScanStatus = "IN_PROGRESS"
	ScanCompleted  ScanStatus = "COMPLETED"
	ScanFailed     ScanStatus = "FAILED"
	ScanCancelled  ScanStatus = "CANCELLED"
)

// allowedTransitions is the closed transition table:
// PENDING -> IN_PROGRESS | FAILED | CANCELLED
// IN_PROGRESS -> COMPLETED | FAILED | CANCELLED
var allowedTransitions = map[ScanStatus][]ScanStatus{
	ScanPending:    {ScanInProgress, ScanFailed, ScanCancelled},
	ScanInProgress: {ScanCompleted, ScanFailed, ScanCancelled},
}

// Terminal reports whether the status admits no further transitions.
func (s ScanStatus) Terminal() bool {
	return s == ScanCompleted || s == ScanFailed || s == ScanCancelled
}

// CanTransition reports whether moving from s to next is legal.
func (s ScanStatus) CanTransition(next ScanStatus) bool {
	for _, t := range allowedTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// ErrInvalidTransition is returned when a status mutation violates the
// transition table.
type ErrInvalidTransition struct {
	From ScanStatus
	To   ScanStatus
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid scan transition %s -> %s", e.From, e.To)
}

// SeverityCounts tallies findings per severity.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Scan is one end-to-end run of the pipeline against one contract source.
type Scan struct {
	// ID is an opaque generated scan id (UUID), distinct from any storage key.
	ID string `json:"id"`

	// ContractID references the stored contract source the scan reads.
	ContractID string `json:"contract_id"`

	// OwnerID is the already-authenticated principal who started the scan.
	OwnerID string `json:"owner_id"`

	// ContractName is the display name given at upload time.
	ContractName string `json:"contract_name"`

	Status ScanStatus `json:"status"`

	// RiskScore is in [0,100]; meaningful only for COMPLETED scans.
	RiskScore float64 `json:"risk_score"`

	// RiskLevel classifies RiskScore (see RiskLevelFor).
	RiskLevel RiskLevel `json:"risk_level,omitempty"`

	TotalFindings int            `json:"total_findings"`
	Counts        SeverityCounts `json:"severity_counts"`

	// Progress is a coarse stage estimate in percent: 0 for PENDING, the
	// last completed pipeline stage while running, 100 once terminal.
	// Derived at read time, never persisted.
	Progress int `json:"progress"`

	// ErrorMessage carries the verbatim failure cause for FAILED scans.
	ErrorMessage string `json:"error_message,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// DurationMs is CompletedAt - StartedAt in milliseconds.
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// RiskLevel buckets a risk score for display.
type RiskLevel string

const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
	RiskMinimal  RiskLevel = "MINIMAL"
)

// Risk level thresholds. These were tuned by hand upstream; keep them as
// constants rather than re-deriving.
const (
	riskCriticalThreshold = 70.0
	riskHighThreshold     = 50.0
	riskMediumThreshold   = 30.0
	riskLowThreshold      = 10.0
)

// RiskLevelFor classifies a 0-100 risk score.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score >= riskCriticalThreshold:
		return RiskCritical
	case score >= riskHighThreshold:
		return RiskHigh
	case score >= riskMediumThreshold:
		return RiskMedium
	case score >= riskLowThreshold:
		return RiskLow
	default:
		return RiskMinimal
	}
}
