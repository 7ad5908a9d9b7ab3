package labs

import (
	"math"
	"strings"
)

// labRules is the canonical registry of lab tests the interpreter understands.
// It is defined once at startup and never mutated, so concurrent reads need no
// synchronization. Reference intervals are conventional adult values; they are
// display guidance for patients, not a substitute for the performing lab's own
// ranges.
var labRules = []*LabRule{
	// -- CBC --
	{
		Code: "HGB", Name: "Hemoglobin", Category: CategoryCBC, Unit: "g/dL",
		Normal: map[SexAtBirth]*NormalRange{
			SexMale:   {Min: 13.5, Max: 17.5},
			SexFemale: {Min: 12.0, Max: 15.5},
		},
		Critical: &CriticalThresholds{Low: f(7.0), High: f(20.0)},
		Note:     "Hemoglobin carries oxygen in your red blood cells. Low values can indicate anemia.",
		Aliases:  []string{"Hb", "Haemoglobin"},
	},
	{
		Code: "HCT", Name: "Hematocrit", Category: CategoryCBC, Unit: "%",
		Normal: map[SexAtBirth]*NormalRange{
			SexMale:   {Min: 38.8, Max: 50.0},
			SexFemale: {Min: 34.9, Max: 44.5},
		},
		Critical: &CriticalThresholds{Low: f(20.0), High: f(60.0)},
		Aliases:  []string{"Hct", "Packed Cell Volume", "PCV"},
	},
	{
		Code: "WBC", Name: "White Blood Cell Count", Category: CategoryCBC, Unit: "x10^3/uL",
		Normal:   map[SexAtBirth]*NormalRange{"any": {Min: 4.5, Max: 11.0}},
		Critical: &CriticalThresholds{Low: f(1.0), High: f(50.0)},
		Note:     "White blood cells fight infection.",
		Aliases:  []string{"Leukocytes", "White Blood Cells"},
	},
	{
		Code: "PLT", Name: "Platelet Count", Category: CategoryCBC, Unit: "x10^3/uL",
		Normal:   map[SexAtBirth]*NormalRange{"any": {Min: 150, Max: 450}},
		Critical: &CriticalThresholds{Low: f(20), High: f(1000)},
		Note:     "Platelets help your blood clot.",
		Aliases:  []string{"Platelets", "Thrombocytes"},
	},
	{
		Code: "RBC", Name: "Red Blood Cell Count", Category: CategoryCBC, Unit: "x10^6/uL",
		Normal: map[SexAtBirth]*NormalRange{
			SexMale:   {Min: 4.7, Max: 6.1},
			SexFemale: {Min: 4.2, Max: 5.4},
		},
		Aliases: []string{"Erythrocytes", "Red Blood Cells"},
	},
	{
		Code: "MCV", Name: "Mean Corpuscular Volume", Category: CategoryCBC, Unit: "fL",
		Normal: map[SexAtBirth]*NormalRange{"any": {Min: 80, Max: 100}},
	},

	// -- CMP --
	{
		Code: "NA", Name: "Sodium", Category: CategoryCMP, Unit: "mmol/L",
		Normal:   map[SexAtBirth]*NormalRange{"any": {Min: 135, Max: 145}},
		Critical: &CriticalThresholds{Low: f(120), High: f(160)},
		Note:     "Sodium reflects fluid and electrolyte balance.",
		Aliases:  []string{"Na", "Na+"},
	},
	{
		Code: "K", Name: "Potassium", Category: CategoryCMP, Unit: "mmol/L",
		Normal:   map[SexAtBirth]*NormalRange{"any": {Min: 3.5, Max: 5.0}},
		Critical: &CriticalThresholds{Low: f(2.5), High: f(6.5)},
		Note:     "Potassium affects heart rhythm and muscle function.",
		Aliases:  []string{"K+"},
	},
	{
		Code: "CL", Name: "Chloride", Category: CategoryCMP, Unit: "mmol/L",
		Normal:  map[SexAtBirth]*NormalRange{"any": {Min: 98, Max: 107}},
		Aliases: []string{"Cl", "Cl-"},
	},
	{
		Code: "CO2", Name: "Carbon Dioxide", Category: CategoryCMP, Unit: "mmol/L",
		Normal:  map[SexAtBirth]*NormalRange{"any": {Min: 23, Max: 29}},
		Aliases: []string{"Bicarbonate", "HCO3"},
	},
	{
		Code: "CA", Name: "Calcium", Category: CategoryCMP, Unit: "mg/dL",
		Normal:   map[SexAtBirth]*NormalRange{"any": {Min: 8.5, Max: 10.5}},
		Critical: &CriticalThresholds{Low: f(6.0), High: f(13.0)},
		Aliases:  []string{"Ca"},
	},

	// -- Renal --
	{
		Code: "BUN", Name: "Blood Urea Nitrogen", Category: CategoryRenal, Unit: "mg/dL",
		Normal:  map[SexAtBirth]*NormalRange{"any": {Min: 7, Max: 20}},
		Aliases: []string{"Urea Nitrogen"},
	},
	{
		Code: "CREAT", Name: "Creatinine", Category: CategoryRenal, Unit: "mg/dL",
		Normal: map[SexAtBirth]*NormalRange{
			SexMale:   {Min: 0.74, Max: 1.35},
			SexFemale: {Min: 0.59, Max: 1.04},
		},
		Critical: &CriticalThresholds{High: f(10.0)},
		Note:     "Creatinine is a marker of kidney function.",
		Aliases:  []string{"Cr", "Serum Creatinine"},
	},
	{
		Code: "EGFR", Name: "Estimated GFR", Category: CategoryRenal, Unit: "mL/min/1.73m2",
		Normal:  map[SexAtBirth]*NormalRange{"any": {Min: 60, Max: 120}},
		Aliases: []string{"eGFR", "Glomerular Filtration Rate"},
	},

	// -- Hepatic --
	{
		Code: "ALT", Name: "Alanine Aminotransferase", Category: CategoryHepatic, Unit: "U/L",
		Normal: map[SexAtBirth]*NormalRange{
			SexMale:   {Min: 7, Max: 55},
			SexFemale: {Min: 7, Max: 45},
		},
		Aliases: []string{"SGPT"},
	},
	{
		Code: "AST", Name: "Aspartate Aminotransferase", Category: CategoryHepatic, Unit: "U/L",
		Normal:  map[SexAtBirth]*NormalRange{"any": {Min: 8, Max: 48}},
		Aliases: []string{"SGOT"},
	},
	{
		Code: "ALP", Name: "Alkaline Phosphatase", Category: CategoryHepatic, Unit: "U/L",
		Normal:  map[SexAtBirth]*NormalRange{"any": {Min: 40, Max: 129}},
		Aliases: []string{"Alk Phos"},
	},
	{
		Code: "TBILI", Name: "Total Bilirubin", Category: CategoryHepatic, Unit: "mg/dL",
		Normal:   map[SexAtBirth]*NormalRange{"any": {Min: 0.1, Max: 1.2}},
		Critical: &CriticalThresholds{High: f(15.0)},
		Aliases:  []string{"Bilirubin", "Bilirubin Total"},
	},
	{
		Code: "ALB", Name: "Albumin", Category: CategoryHepatic, Unit: "g/dL",
		Normal: map[SexAtBirth]*NormalRange{"any": {Min: 3.5, Max: 5.0}},
	},

	// -- Lipids --
	{
		Code: "CHOL", Name: "Total Cholesterol", Category: CategoryLipids, Unit: "mg/dL",
		Normal:  map[SexAtBirth]*NormalRange{"any": {Min: 125, Max: 200}},
		Note:    "Total cholesterol above 200 mg/dL raises cardiovascular risk.",
		Aliases: []string{"Cholesterol", "Cholesterol Total"},
	},
	{
		Code: "LDL", Name: "LDL Cholesterol", Category: CategoryLipids, Unit: "mg/dL",
		Normal:  map[SexAtBirth]*NormalRange{"any": {Min: 40, Max: 100}},
		Aliases: []string{"LDL-C", "Low Density Lipoprotein"},
	},
	{
		Code: "HDL", Name: "HDL Cholesterol", Category: CategoryLipids, Unit: "mg/dL",
		Normal: map[SexAtBirth]*NormalRange{
			SexMale:   {Min: 40, Max: 60},
			SexFemale: {Min: 50, Max: 60},
		},
		Note:    "Higher HDL is generally protective.",
		Aliases: []string{"HDL-C", "High Density Lipoprotein"},
	},
	{
		Code: "TRIG", Name: "Triglycerides", Category: CategoryLipids, Unit: "mg/dL",
		Normal:  map[SexAtBirth]*NormalRange{"any": {Min: 35, Max: 150}},
		Aliases: []string{"TG"},
	},

	// -- Endocrine --
	{
		Code: "TSH", Name: "Thyroid Stimulating Hormone", Category: CategoryEndocrine, Unit: "mIU/L",
		Normal:  map[SexAtBirth]*NormalRange{"any": {Min: 0.4, Max: 4.0}},
		Note:    "TSH outside the range may indicate an over- or under-active thyroid.",
		Aliases: []string{"Thyrotropin"},
	},
	{
		Code: "FT4", Name: "Free T4", Category: CategoryEndocrine, Unit: "ng/dL",
		Normal:  map[SexAtBirth]*NormalRange{"any": {Min: 0.8, Max: 1.8}},
		Aliases: []string{"Free Thyroxine", "T4 Free"},
	},

	// -- Diabetes --
	{
		Code: "GLUCOSE", Name: "Glucose", Category: CategoryDiabetes, Unit: "mg/dL",
		Normal:   map[SexAtBirth]*NormalRange{"any": {Min: 70, Max: 99}},
		Critical: &CriticalThresholds{Low: f(40), High: f(500)},
		Note:     "Fasting glucose of 100-125 mg/dL suggests prediabetes.",
		Aliases:  []string{"Glu", "Blood Sugar", "Fasting Glucose"},
	},
	{
		Code: "HBA1C", Name: "Hemoglobin A1c", Category: CategoryDiabetes, Unit: "%",
		Normal:  map[SexAtBirth]*NormalRange{"any": {Min: 4.0, Max: 5.6}},
		Note:    "A1c reflects average blood sugar over about three months.",
		Aliases: []string{"A1C", "Glycated Hemoglobin", "HgbA1c"},
	},

	// -- Other --
	{
		Code: "CRP", Name: "C-Reactive Protein", Category: CategoryOther, Unit: "mg/L",
		Normal:  map[SexAtBirth]*NormalRange{"any": {Min: 0, Max: 8}},
		Aliases: []string{"CRP, Quantitative"},
	},
	{
		Code: "VITD", Name: "Vitamin D, 25-Hydroxy", Category: CategoryOther, Unit: "ng/mL",
		Normal:  map[SexAtBirth]*NormalRange{"any": {Min: 30, Max: 100}},
		Aliases: []string{"Vitamin D", "25-OH Vitamin D"},
	},
}

// rangeAny keys the sex-independent interval in a rule's Normal map.
const rangeAny SexAtBirth = "any"

var rulesByCode = make(map[string]*LabRule, len(labRules))

func init() {
	for _, r := range labRules {
		rulesByCode[r.Code] = r
	}
}

func f(v float64) *float64 { return &v }

// AllLabRules returns the registry in declaration order.
func AllLabRules() []*LabRule {
	return labRules
}

// FindLabRule resolves a canonical code, display name, or alias to its rule.
// Codes match uppercased; names and aliases match case-insensitively. No
// partial or fuzzy matching happens here — that is the interpreter's job.
func FindLabRule(codeOrName string) (*LabRule, bool) {
	if codeOrName == "" {
		return nil, false
	}
	if r, ok := rulesByCode[strings.ToUpper(codeOrName)]; ok {
		return r, true
	}
	for _, r := range labRules {
		if strings.EqualFold(r.Name, codeOrName) {
			return r, true
		}
	}
	for _, r := range labRules {
		for _, a := range r.Aliases {
			if strings.EqualFold(a, codeOrName) {
				return r, true
			}
		}
	}
	return nil, false
}

// NormalRangeForSex selects the reference interval for a given sex. Male and
// female select their own interval when one exists; everything else falls
// through any, then male, then female. The second return names the interval
// that was used. ok is false only when the rule defines no intervals at all,
// which is a defect in the registry data, not a runtime condition.
func NormalRangeForSex(rule *LabRule, sex SexAtBirth) (*NormalRange, SexAtBirth, bool) {
	if rule == nil || len(rule.Normal) == 0 {
		return nil, "", false
	}
	if sex == SexMale {
		if r := rule.Normal[SexMale]; r != nil {
			return r, SexMale, true
		}
	}
	if sex == SexFemale {
		if r := rule.Normal[SexFemale]; r != nil {
			return r, SexFemale, true
		}
	}
	for _, key := range []SexAtBirth{rangeAny, SexMale, SexFemale} {
		if r := rule.Normal[key]; r != nil {
			return r, key, true
		}
	}
	return nil, "", false
}

// Evaluation is the outcome of classifying one numeric value against a rule.
type Evaluation struct {
	Flag    LabFlag
	Offset  float64
	Range   *NormalRange
	SexUsed SexAtBirth
}

// EvaluateLabValue classifies value against rule's thresholds. Critical
// thresholds use <=/>= and are checked before the normal range, so a value
// that is both below min and at or under critical low reports critical_low.
// Non-finite values and rules with no resolvable range yield unknown.
func EvaluateLabValue(rule *LabRule, value float64, sex SexAtBirth) Evaluation {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Evaluation{Flag: FlagUnknown}
	}
	rng, used, ok := NormalRangeForSex(rule, sex)
	if !ok {
		return Evaluation{Flag: FlagUnknown}
	}
	ev := Evaluation{Range: rng, SexUsed: used}
	crit := rule.Critical
	switch {
	case crit != nil && crit.Low != nil && value <= *crit.Low:
		ev.Flag = FlagCriticalLow
		ev.Offset = value - rng.Min
	case crit != nil && crit.High != nil && value >= *crit.High:
		ev.Flag = FlagCriticalHigh
		ev.Offset = value - rng.Max
	case value < rng.Min:
		ev.Flag = FlagLow
		ev.Offset = value - rng.Min
	case value > rng.Max:
		ev.Flag = FlagHigh
		ev.Offset = value - rng.Max
	default:
		ev.Flag = FlagNormal
	}
	return ev
}
