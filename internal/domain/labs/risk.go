package labs

import (
	"fmt"
	"strconv"
	"strings"
)

// riskEscalationDeviation is the fraction of the range width beyond a bound
// at which a low/high flag escalates from yellow to red. The value is an
// empirical tuning constant, not a clinically derived threshold.
const riskEscalationDeviation = 0.15

var flagRisk = map[LabFlag]struct {
	Level LabRiskLevel
	Label string
}{
	FlagNormal:       {RiskGreen, "Normal"},
	FlagLow:          {RiskYellow, "Low"},
	FlagHigh:         {RiskYellow, "High"},
	FlagCriticalLow:  {RiskRed, "Critically Low"},
	FlagCriticalHigh: {RiskRed, "Critically High"},
	FlagUnknown:      {RiskUnknown, "Unknown"},
}

// AssessLabValueRisk turns one parsed value into a patient-facing risk
// signal. The flag fixes the base level; low and high values that sit far
// outside the range are escalated to red, where "far" means the distance
// past the bound is at least riskEscalationDeviation of the range width.
// Critical flags are red regardless of magnitude.
func AssessLabValueRisk(parsed *ParsedLabValue) LabRiskAssessment {
	base := flagRisk[parsed.Flag]
	level := base.Level

	if rng := parsed.Normal; rng != nil && (parsed.Flag == FlagLow || parsed.Flag == FlagHigh) {
		span := rng.Max - rng.Min
		if span == 0 {
			span = 1
		}
		var deviation float64
		if parsed.Flag == FlagLow {
			deviation = (rng.Min - parsed.Value) / span
		} else {
			deviation = (parsed.Value - rng.Max) / span
		}
		if deviation >= riskEscalationDeviation {
			level = RiskRed
		}
	}

	return LabRiskAssessment{
		Flag:       parsed.Flag,
		Level:      level,
		Label:      base.Label,
		Summary:    riskSummary(parsed),
		Detail:     riskDetail(parsed),
		Value:      parsed.Value,
		Unit:       parsed.Unit,
		Code:       parsed.Code,
		Name:       parsed.Name,
		IsCritical: parsed.Flag.IsCritical(),
		IsAbnormal: parsed.Flag.IsAbnormal(),
	}
}

func riskSummary(p *ParsedLabValue) string {
	switch p.Flag {
	case FlagNormal:
		return fmt.Sprintf("%s is %s %s, which is within the expected range.", p.Name, formatValue(p.Value), p.Unit)
	case FlagLow:
		return fmt.Sprintf("%s is %s %s, which is slightly below the expected range.", p.Name, formatValue(p.Value), p.Unit)
	case FlagHigh:
		return fmt.Sprintf("%s is %s %s, which is slightly above the expected range.", p.Name, formatValue(p.Value), p.Unit)
	case FlagCriticalLow:
		return fmt.Sprintf("%s is %s %s, which is critically low and may require urgent medical attention.", p.Name, formatValue(p.Value), p.Unit)
	case FlagCriticalHigh:
		return fmt.Sprintf("%s is %s %s, which is critically high and may require urgent medical attention.", p.Name, formatValue(p.Value), p.Unit)
	default:
		return fmt.Sprintf("%s: value could not be interpreted.", p.Name)
	}
}

func riskDetail(p *ParsedLabValue) string {
	if p.Flag == FlagUnknown {
		return ""
	}
	var parts []string
	if p.Normal != nil {
		parts = append(parts, fmt.Sprintf("Expected range: %s-%s %s.", formatValue(p.Normal.Min), formatValue(p.Normal.Max), p.Unit))
	}
	if p.Rule != nil && p.Rule.Note != "" {
		parts = append(parts, p.Rule.Note)
	}
	if p.Flag.IsCritical() {
		parts = append(parts, "Please contact your care team promptly about this result.")
	}
	return strings.Join(parts, " ")
}

// formatValue renders a float the way it appears on a lab report: no
// exponent, no trailing zeros.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SummarizePanelRisk aggregates per-value assessments into a panel rollup.
// The dominant level follows priority red > yellow > green; a panel with no
// assessments is unknown.
func SummarizePanelRisk(assessments []LabRiskAssessment) LabPanelRiskSummary {
	summary := LabPanelRiskSummary{
		DominantLevel: RiskUnknown,
		Items:         assessments,
	}
	for _, a := range assessments {
		if a.IsAbnormal {
			summary.OutOfRangeCount++
		}
		if a.IsCritical {
			summary.AnyCritical = true
		}
		switch a.Level {
		case RiskRed:
			summary.DominantLevel = RiskRed
		case RiskYellow:
			if summary.DominantLevel != RiskRed {
				summary.DominantLevel = RiskYellow
			}
		case RiskGreen:
			if summary.DominantLevel == RiskUnknown {
				summary.DominantLevel = RiskGreen
			}
		}
	}
	return summary
}
