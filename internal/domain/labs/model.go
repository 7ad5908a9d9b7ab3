package labs

import (
	"time"

	"github.com/google/uuid"
)

// LabCategory tags a lab test with the panel it belongs to.
type LabCategory string

const (
	CategoryCBC       LabCategory = "CBC"
	CategoryCMP       LabCategory = "CMP"
	CategoryLipids    LabCategory = "LIPIDS"
	CategoryEndocrine LabCategory = "ENDOCRINE"
	CategoryRenal     LabCategory = "RENAL"
	CategoryHepatic   LabCategory = "HEPATIC"
	CategoryDiabetes  LabCategory = "DIABETES"
	CategoryOther     LabCategory = "OTHER"
)

// LabFlag classifies a value relative to its normal and critical thresholds.
type LabFlag string

const (
	FlagLow          LabFlag = "low"
	FlagNormal       LabFlag = "normal"
	FlagHigh         LabFlag = "high"
	FlagCriticalLow  LabFlag = "critical_low"
	FlagCriticalHigh LabFlag = "critical_high"
	FlagUnknown      LabFlag = "unknown"
)

// IsAbnormal reports whether the flag denotes an out-of-range value.
func (f LabFlag) IsAbnormal() bool {
	switch f {
	case FlagLow, FlagHigh, FlagCriticalLow, FlagCriticalHigh:
		return true
	}
	return false
}

// IsCritical reports whether the flag denotes a panic value.
func (f LabFlag) IsCritical() bool {
	return f == FlagCriticalLow || f == FlagCriticalHigh
}

// LabRiskLevel is the UI-facing severity color for an assessment.
type LabRiskLevel string

const (
	RiskGreen   LabRiskLevel = "green"
	RiskYellow  LabRiskLevel = "yellow"
	RiskRed     LabRiskLevel = "red"
	RiskUnknown LabRiskLevel = "unknown"
)

// SexAtBirth selects sex-specific reference ranges.
type SexAtBirth string

const (
	SexMale    SexAtBirth = "male"
	SexFemale  SexAtBirth = "female"
	SexOther   SexAtBirth = "other"
	SexUnknown SexAtBirth = "unknown"
)

var validSexes = map[SexAtBirth]bool{
	SexMale: true, SexFemale: true, SexOther: true, SexUnknown: true, "": true,
}

// ReportStatus is the lifecycle state of a stored lab report.
type ReportStatus string

const (
	StatusPending        ReportStatus = "pending"
	StatusFinal          ReportStatus = "final"
	StatusAmended        ReportStatus = "amended"
	StatusEnteredInError ReportStatus = "entered-in-error"
)

// CanTransitionTo reports whether s may move to next. Reports move forward
// only (pending to final to amended); any state may be voided.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	if next == StatusEnteredInError {
		return s != StatusEnteredInError
	}
	switch s {
	case StatusPending:
		return next == StatusFinal
	case StatusFinal:
		return next == StatusAmended
	}
	return false
}

// NormalRange is an inclusive [Min, Max] reference interval.
type NormalRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// CriticalThresholds holds optional panic limits. A value at or beyond a
// threshold is critical regardless of the normal range.
type CriticalThresholds struct {
	Low  *float64 `json:"low,omitempty"`
	High *float64 `json:"high,omitempty"`
}

// LabRule is the registry's immutable definition of one canonical lab test.
type LabRule struct {
	Code     string                      `json:"code"`
	Name     string                      `json:"name"`
	Category LabCategory                 `json:"category"`
	Unit     string                      `json:"unit"`
	Normal   map[SexAtBirth]*NormalRange `json:"normal_range"`
	Critical *CriticalThresholds         `json:"critical,omitempty"`
	Note     string                      `json:"note,omitempty"`
	Aliases  []string                    `json:"aliases,omitempty"`
}

// OCRLabRow is one raw textual lab row as captured from OCR or manual entry.
// Every field except RawName and ValueText may be empty.
type OCRLabRow struct {
	RawName            string `json:"raw_name"`
	ValueText          string `json:"value_text"`
	UnitText           string `json:"unit_text,omitempty"`
	ReferenceRangeText string `json:"reference_range_text,omitempty"`
	FlagText           string `json:"flag_text,omitempty"`
}

// ParsedLabValue is the canonical interpretation of one row against one rule.
type ParsedLabValue struct {
	Code       string              `json:"code"`
	Name       string              `json:"name"`
	Category   LabCategory         `json:"category"`
	Value      float64             `json:"value"`
	Unit       string              `json:"unit"`
	Flag       LabFlag             `json:"flag"`
	OutOfRange bool                `json:"is_out_of_range"`
	Normal     *NormalRange        `json:"normal_range,omitempty"`
	Critical   *CriticalThresholds `json:"critical,omitempty"`
	SexUsed    SexAtBirth          `json:"sex_used,omitempty"`
	Rule       *LabRule            `json:"-"`
	Raw        OCRLabRow           `json:"raw"`
}

// LabRiskAssessment is the UI-facing risk signal for one parsed value.
type LabRiskAssessment struct {
	Flag       LabFlag      `json:"flag"`
	Level      LabRiskLevel `json:"level"`
	Label      string       `json:"label"`
	Summary    string       `json:"summary"`
	Detail     string       `json:"detail,omitempty"`
	Value      float64      `json:"value"`
	Unit       string       `json:"unit"`
	Code       string       `json:"code"`
	Name       string       `json:"name"`
	IsCritical bool         `json:"is_critical"`
	IsAbnormal bool         `json:"is_abnormal"`
}

// LabPanelRiskSummary aggregates assessments across a panel.
type LabPanelRiskSummary struct {
	DominantLevel   LabRiskLevel        `json:"dominant_level"`
	AnyCritical     bool                `json:"any_critical"`
	OutOfRangeCount int                 `json:"out_of_range_count"`
	Items           []LabRiskAssessment `json:"items"`
}

// LabReport maps to the lab_report table: one stored, interpreted panel.
type LabReport struct {
	ID              uuid.UUID    `db:"id" json:"id"`
	PatientID       uuid.UUID    `db:"patient_id" json:"patient_id"`
	Sex             SexAtBirth   `db:"sex" json:"sex,omitempty"`
	Status          ReportStatus `db:"status" json:"status"`
	DominantLevel   LabRiskLevel `db:"dominant_level" json:"dominant_level"`
	AnyCritical     bool         `db:"any_critical" json:"any_critical"`
	OutOfRangeCount int          `db:"out_of_range_count" json:"out_of_range_count"`
	Note            *string      `db:"note" json:"note,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

// LabResult maps to the lab_result table: one interpreted row of a report.
// Raw OCR text is kept alongside the canonical value so a report can be
// re-assessed later without the original image.
type LabResult struct {
	ID         uuid.UUID    `db:"id" json:"id"`
	ReportID   uuid.UUID    `db:"report_id" json:"report_id"`
	Code       string       `db:"code" json:"code"`
	Name       string       `db:"name" json:"name"`
	Category   LabCategory  `db:"category" json:"category"`
	Value      float64      `db:"value" json:"value"`
	Unit       string       `db:"unit" json:"unit"`
	Flag       LabFlag      `db:"flag" json:"flag"`
	RiskLevel  LabRiskLevel `db:"risk_level" json:"risk_level"`
	IsCritical bool         `db:"is_critical" json:"is_critical"`
	IsAbnormal bool         `db:"is_abnormal" json:"is_abnormal"`
	RawName    string       `db:"raw_name" json:"raw_name"`
	RawValue   string       `db:"raw_value" json:"raw_value"`
	Summary    string       `db:"summary" json:"summary"`
	CreatedAt  time.Time    `db:"created_at" json:"created_at"`
}
