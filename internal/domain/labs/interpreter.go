package labs

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numericTokenRe = regexp.MustCompile(`-?\d+(\.\d+)?`)
	parentheticRe  = regexp.MustCompile(`\([^)]*\)`)
	nonAlnumRe     = regexp.MustCompile(`[^a-zA-Z0-9 ]+`)
)

// ResolveLabRuleFromName maps a raw OCR test name to a registry rule using a
// cascade of progressively looser attempts: the text as written, then with
// parenthetical content and punctuation stripped, then that uppercased, then
// only the first word of the stripped text. OCR output for the same analyte
// varies wildly across lab PDFs ("Hemoglobin (Hgb)", "HEMOGLOBIN, BLOOD"), and
// the earlier attempts keep exact matches from being shadowed by looser ones.
func ResolveLabRuleFromName(rawName string) (*LabRule, bool) {
	name := strings.TrimSpace(rawName)
	if name == "" {
		return nil, false
	}
	if r, ok := FindLabRule(name); ok {
		return r, true
	}
	stripped := strings.TrimSpace(nonAlnumRe.ReplaceAllString(parentheticRe.ReplaceAllString(name, " "), " "))
	stripped = strings.Join(strings.Fields(stripped), " ")
	if stripped == "" {
		return nil, false
	}
	if r, ok := FindLabRule(stripped); ok {
		return r, true
	}
	if r, ok := FindLabRule(strings.ToUpper(stripped)); ok {
		return r, true
	}
	if first := strings.Fields(stripped)[0]; first != stripped {
		if r, ok := FindLabRule(first); ok {
			return r, true
		}
	}
	return nil, false
}

// ExtractNumericValue pulls the first decimal number out of noisy value text.
// Comma decimal separators become dots, everything that is not a digit, dot,
// or minus is dropped, and the first signed decimal token wins. ok is false
// when the text carries no number at all.
func ExtractNumericValue(valueText string) (float64, bool) {
	s := strings.ReplaceAll(valueText, ",", ".")
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	match := numericTokenRe.FindString(b.String())
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// normalizeUnit prefers the unit as captured, trimmed and with one pair of
// surrounding brackets removed, and falls back to the rule's canonical unit.
func normalizeUnit(unitText string, rule *LabRule) string {
	u := strings.TrimSpace(unitText)
	if len(u) >= 2 {
		first, last := u[0], u[len(u)-1]
		if (first == '(' && last == ')') || (first == '[' && last == ']') || (first == '{' && last == '}') {
			u = strings.TrimSpace(u[1 : len(u)-1])
		}
	}
	if u == "" {
		return rule.Unit
	}
	return u
}

// ParseReferenceRange extracts a [min,max] pair from "min-max" style text.
// It is a best-effort helper for calibration against the performing lab's own
// interval; classification always uses the registry range. Returns nil when
// the text does not contain two numbers.
func ParseReferenceRange(text string) *NormalRange {
	matches := numericTokenRe.FindAllString(strings.ReplaceAll(text, ",", "."), 2)
	if len(matches) < 2 {
		return nil
	}
	min, err1 := strconv.ParseFloat(matches[0], 64)
	max, err2 := strconv.ParseFloat(matches[1], 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	return &NormalRange{Min: min, Max: max}
}

// InterpretOCRLabRow converts one raw row into a canonical parsed value, or
// returns nil when the test name cannot be resolved or the value text carries
// no number. A nil result is the only failure signal; malformed rows never
// produce an error.
func InterpretOCRLabRow(row OCRLabRow, sex SexAtBirth) *ParsedLabValue {
	rule, ok := ResolveLabRuleFromName(row.RawName)
	if !ok {
		return nil
	}
	value, ok := ExtractNumericValue(row.ValueText)
	if !ok {
		return nil
	}
	ev := EvaluateLabValue(rule, value, sex)
	return &ParsedLabValue{
		Code:       rule.Code,
		Name:       rule.Name,
		Category:   rule.Category,
		Value:      value,
		Unit:       normalizeUnit(row.UnitText, rule),
		Flag:       ev.Flag,
		OutOfRange: ev.Flag.IsAbnormal(),
		Normal:     ev.Range,
		Critical:   rule.Critical,
		SexUsed:    ev.SexUsed,
		Rule:       rule,
		Raw:        row,
	}
}

// PanelInterpretation partitions a batch of rows into interpreted values and
// the rows that could not be mapped. Both slices preserve input order.
type PanelInterpretation struct {
	Items       []*ParsedLabValue `json:"items"`
	UnknownRows []OCRLabRow       `json:"unknown_rows"`
}

// InterpretLabPanel applies InterpretOCRLabRow to each row in order.
func InterpretLabPanel(rows []OCRLabRow, sex SexAtBirth) PanelInterpretation {
	out := PanelInterpretation{
		Items:       make([]*ParsedLabValue, 0, len(rows)),
		UnknownRows: make([]OCRLabRow, 0),
	}
	for _, row := range rows {
		if parsed := InterpretOCRLabRow(row, sex); parsed != nil {
			out.Items = append(out.Items, parsed)
		} else {
			out.UnknownRows = append(out.UnknownRows, row)
		}
	}
	return out
}

// InterpretLabLine parses a single free-text line such as
// "HGB 11.2 g/dL (12.0-15.5) L". Tokens before the first numeric token form
// the name, the next token after the value is the unit, and anything past
// that is treated as the lab's own reference range and flag annotations. The
// numeric token must not be the first token; a line with no leading name is
// not a lab line.
func InterpretLabLine(line string, sex SexAtBirth) *ParsedLabValue {
	tokens := strings.Fields(line)
	for i, tok := range tokens {
		if _, err := strconv.ParseFloat(tok, 64); err != nil {
			continue
		}
		if i == 0 {
			return nil
		}
		row := OCRLabRow{
			RawName:   strings.Join(tokens[:i], " "),
			ValueText: tok,
		}
		if i+1 < len(tokens) {
			row.UnitText = tokens[i+1]
		}
		if i+2 < len(tokens) {
			row.ReferenceRangeText = strings.Join(tokens[i+2:], " ")
		}
		return InterpretOCRLabRow(row, sex)
	}
	return nil
}
