package models

import (
	"time"

	"github.com/google/uuid"
)

// Signal value typing. Every signal definition declares exactly one value kind
// and every captured value is a tagged union matching that kind.
type ValueType string

const (
	ValueNumeric     ValueType = "numeric"
	ValueCategorical ValueType = "categorical"
	ValueBoolean     ValueType = "boolean"
	ValueText        ValueType = "text"
	ValueSeverity    ValueType = "severity" // 0-10 integer scale
)

// CaptureSource identifies where an observation came from. The set is closed;
// confidence scoring switches exhaustively over it.
type CaptureSource string

const (
	SourceDevice        CaptureSource = "device"
	SourceCheckIn       CaptureSource = "check_in"
	SourceOnboarding    CaptureSource = "onboarding"
	SourceChatConfirmed CaptureSource = "chat_confirmed"
	SourceManual        CaptureSource = "manual"
)

type SafetyAlertLevel string

const (
	SafetyNormal  SafetyAlertLevel = "normal"
	SafetyCaution SafetyAlertLevel = "caution"
	SafetyExtreme SafetyAlertLevel = "extreme"
)

// SignalValue is the tagged union carried by instances and proposals.
// Exactly one payload field is set, matching Kind.
type SignalValue struct {
	Kind     ValueType `json:"kind"`
	Numeric  *float64  `json:"numeric,omitempty"`
	Option   *string   `json:"option,omitempty"`
	Bool     *bool     `json:"bool,omitempty"`
	Text     *string   `json:"text,omitempty"`
	Severity *int      `json:"severity,omitempty"`
}

func NumericValue(v float64) SignalValue {
	return SignalValue{Kind: ValueNumeric, Numeric: &v}
}

func OptionValue(option string) SignalValue {
	return SignalValue{Kind: ValueCategorical, Option: &option}
}

func BoolValue(v bool) SignalValue {
	return SignalValue{Kind: ValueBoolean, Bool: &v}
}

func TextValue(text string) SignalValue {
	return SignalValue{Kind: ValueText, Text: &text}
}

func SeverityValue(level int) SignalValue {
	return SignalValue{Kind: ValueSeverity, Severity: &level}
}

// CaptureContext records the situation an observation was taken in. All fields
// optional; persisted as JSONB alongside the instance.
type CaptureContext struct {
	ActivityState      string `json:"activity_state,omitempty"` // resting, active, post_exercise, sleeping
	TimeOfDay          string `json:"time_of_day,omitempty"`    // morning, midday, evening, night
	Fasting            *bool  `json:"fasting,omitempty"`
	PregnancyTrimester *int   `json:"pregnancy_trimester,omitempty"`
	Notes              string `json:"notes,omitempty"`
}

// UserContext carries the profile attributes signal applicability rules match
// against (sex-specific signals, age-gated signals).
type UserContext struct {
	BiologicalSex string `json:"biological_sex,omitempty"` // female, male
	AgeYears      int    `json:"age_years,omitempty"`
	Pregnant      bool   `json:"pregnant,omitempty"`
}

// SignalInstance is one immutable observation. Corrections insert a new
// instance and set SupersededBy on the old one; rows are never edited.
type SignalInstance struct {
	ID                   uuid.UUID        `json:"id"`
	UserID               uuid.UUID        `json:"user_id"`
	SignalID             string           `json:"signal_id"`
	Value                SignalValue      `json:"value"`
	Unit                 string           `json:"unit,omitempty"`
	Source               CaptureSource    `json:"source"`
	Confidence           float64          `json:"confidence"`
	CapturedAt           time.Time        `json:"captured_at"`
	Context              *CaptureContext  `json:"context,omitempty"`
	SafetyLevel          SafetyAlertLevel `json:"safety_alert_level"`
	RequiresConfirmation bool             `json:"requires_confirmation"`
	AIProposalID         *uuid.UUID       `json:"ai_proposal_id,omitempty"`
	SupersededBy         *uuid.UUID       `json:"superseded_by,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
}

// CaptureRequest is the programmatic capture surface. CapturedAt defaults to
// now; Unit defaults to the definition's unit; BypassSafetyGate must be set
// explicitly to persist an extreme value.
type CaptureRequest struct {
	UserID           uuid.UUID       `json:"user_id"`
	SignalID         string          `json:"signal_id"`
	Value            SignalValue     `json:"value"`
	Unit             string          `json:"unit,omitempty"`
	Source           CaptureSource   `json:"source"`
	CapturedAt       *time.Time      `json:"captured_at,omitempty"`
	Context          *CaptureContext `json:"context,omitempty"`
	ProposalID       *uuid.UUID      `json:"proposal_id,omitempty"`
	BypassSafetyGate bool            `json:"bypass_safety_gate,omitempty"`
}

type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "pending"
	ProposalConfirmed ProposalStatus = "confirmed"
	ProposalRejected  ProposalStatus = "rejected"
	ProposalExpired   ProposalStatus = "expired"
)

// AISignalProposal is a candidate value extracted from unstructured input.
// It becomes a fact only through explicit confirmation.
type AISignalProposal struct {
	ID            uuid.UUID      `json:"id"`
	UserID        uuid.UUID      `json:"user_id"`
	SignalID      string         `json:"signal_id"`
	ProposedValue SignalValue    `json:"proposed_value"`
	ProposedUnit  string         `json:"proposed_unit,omitempty"`
	ExtractedFrom string         `json:"extracted_from"`
	AIConfidence  float64        `json:"ai_confidence"`
	Status        ProposalStatus `json:"status"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
	FinalValue    *SignalValue   `json:"final_value,omitempty"`
	FinalUnit     string         `json:"final_unit,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

type CreateProposalRequest struct {
	UserID        uuid.UUID   `json:"user_id"`
	SignalID      string      `json:"signal_id"`
	ProposedValue SignalValue `json:"proposed_value"`
	ProposedUnit  string      `json:"proposed_unit,omitempty"`
	ExtractedFrom string      `json:"extracted_from"`
	AIConfidence  float64     `json:"ai_confidence"`
}

// UserBaseline is the rolling per-user, per-metric statistical summary anomaly
// detection compares against. Expired baselines must be recomputed before use.
type UserBaseline struct {
	UserID          uuid.UUID `json:"user_id"`
	MetricName      string    `json:"metric_name"`
	BaselineValue   float64   `json:"baseline_value"`
	MinNormal       float64   `json:"min_normal"`
	MaxNormal       float64   `json:"max_normal"`
	StdDeviation    float64   `json:"std_deviation"`
	DataPointsCount int       `json:"data_points_count"`
	WindowDays      int       `json:"window_days"`
	CalculatedAt    time.Time `json:"calculated_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

func (b UserBaseline) Expired(now time.Time) bool {
	return now.After(b.ExpiresAt)
}

type ChangeDirection string

const (
	DirectionIncrease ChangeDirection = "increase"
	DirectionDecrease ChangeDirection = "decrease"
	DirectionTooHigh  ChangeDirection = "too_high"
	DirectionTooLow   ChangeDirection = "too_low"
)

type AnomalySeverity string

const (
	SeverityInfo     AnomalySeverity = "info"
	SeverityWarning  AnomalySeverity = "warning"
	SeverityUrgent   AnomalySeverity = "urgent"
	SeverityCritical AnomalySeverity = "critical"
)

type AnomalyStatus string

const (
	AnomalyActive   AnomalyStatus = "active"
	AnomalyResolved AnomalyStatus = "resolved"
)

type Anomaly struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	MetricName      string          `json:"metric_name"`
	BaselineValue   float64         `json:"baseline_value"`
	CurrentValue    float64         `json:"current_value"`
	ChangeDirection ChangeDirection `json:"change_direction"`
	ChangePercent   float64         `json:"change_percent"`
	Severity        AnomalySeverity `json:"severity"`
	DetectionDays   int             `json:"detection_window_days"`
	BaselineDays    int             `json:"baseline_window_days"`
	Status          AnomalyStatus   `json:"status"`
	DetectedAt      time.Time       `json:"detected_at"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
}

// DetectionResult is what one RunDetection pass returns: everything the
// classifier fired on, the subset that survived de-duplication, and per-metric
// diagnostics for metrics that could not be evaluated.
type DetectionResult struct {
	UserID      uuid.UUID         `json:"user_id"`
	Detected    []Anomaly         `json:"detected"`
	Persisted   []Anomaly         `json:"persisted"`
	Diagnostics map[string]string `json:"diagnostics,omitempty"`
	RanAt       time.Time         `json:"ran_at"`
}

// TrendPoint is one ordered observation in a trend series.
type TrendPoint struct {
	Value      SignalValue `json:"value"`
	Unit       string      `json:"unit,omitempty"`
	CapturedAt time.Time   `json:"captured_at"`
}

// Trend is the typed result of ComputeTrend. Numeric fields are populated for
// numeric signals, counts for boolean signals; categorical signals get the
// ordered history only.
type Trend struct {
	SignalID string       `json:"signal_id"`
	Kind     ValueType    `json:"kind"`
	Days     int          `json:"days"`
	Points   []TrendPoint `json:"points"`

	FirstValue      *float64 `json:"first_value,omitempty"`
	LastValue       *float64 `json:"last_value,omitempty"`
	AbsoluteChange  *float64 `json:"absolute_change,omitempty"`
	PercentChange   *float64 `json:"percent_change,omitempty"`
	TrueCount       *int     `json:"true_count,omitempty"`
	FalseCount      *int     `json:"false_count,omitempty"`
	TrueFrequency   *float64 `json:"true_frequency,omitempty"`
}

// SignalEvent is the Kafka payload published after each successful capture
// and consumed by the anomaly service to schedule detection runs.
type SignalEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"` // signal.captured, signal.superseded
	UserID     uuid.UUID `json:"user_id"`
	SignalID   string    `json:"signal_id"`
	InstanceID uuid.UUID `json:"instance_id"`
	Source     string    `json:"source"`
	CapturedAt time.Time `json:"captured_at"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	EventSignalCaptured   = "signal.captured"
	EventSignalSuperseded = "signal.superseded"
)
