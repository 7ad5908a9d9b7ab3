package labs

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	reports ReportRepository
}

func NewService(reports ReportRepository) *Service {
	return &Service{reports: reports}
}

// PanelAssessment is the full interpretation of one submitted panel: the
// parsed values, the rows that could not be mapped, and the risk rollup.
type PanelAssessment struct {
	Items       []*ParsedLabValue   `json:"items"`
	UnknownRows []OCRLabRow         `json:"unknown_rows"`
	Risk        LabPanelRiskSummary `json:"risk"`
}

// ReportDetail bundles a stored report with its result rows and risk rollup.
type ReportDetail struct {
	Report  *LabReport          `json:"report"`
	Results []*LabResult        `json:"results"`
	Risk    LabPanelRiskSummary `json:"risk"`
}

func normalizeSex(sex SexAtBirth) (SexAtBirth, error) {
	if !validSexes[sex] {
		return "", fmt.Errorf("invalid sex: %q", sex)
	}
	if sex == "" {
		return SexUnknown, nil
	}
	return sex, nil
}

// InterpretPanel interprets a batch of raw rows and assesses risk per value.
// Rows that cannot be mapped are reported back, never dropped silently and
// never an error.
func (s *Service) InterpretPanel(rows []OCRLabRow, sex SexAtBirth) (*PanelAssessment, error) {
	sex, err := normalizeSex(sex)
	if err != nil {
		return nil, err
	}
	interp := InterpretLabPanel(rows, sex)
	return assemblePanel(interp), nil
}

// InterpretText interprets free text, one lab result per line. Blank lines
// are skipped; lines that do not look like a lab result come back as unknown
// rows keyed by the raw line.
func (s *Service) InterpretText(text string, sex SexAtBirth) (*PanelAssessment, error) {
	sex, err := normalizeSex(sex)
	if err != nil {
		return nil, err
	}
	interp := PanelInterpretation{
		Items:       make([]*ParsedLabValue, 0),
		UnknownRows: make([]OCRLabRow, 0),
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if parsed := InterpretLabLine(line, sex); parsed != nil {
			interp.Items = append(interp.Items, parsed)
		} else {
			interp.UnknownRows = append(interp.UnknownRows, OCRLabRow{RawName: line})
		}
	}
	return assemblePanel(interp), nil
}

func assemblePanel(interp PanelInterpretation) *PanelAssessment {
	assessments := make([]LabRiskAssessment, 0, len(interp.Items))
	for _, item := range interp.Items {
		assessments = append(assessments, AssessLabValueRisk(item))
	}
	return &PanelAssessment{
		Items:       interp.Items,
		UnknownRows: interp.UnknownRows,
		Risk:        SummarizePanelRisk(assessments),
	}
}

// CreateReport interprets a panel and stores it for the patient. At least one
// row must be interpretable; a panel of only unknown rows has nothing worth
// keeping. New reports start in pending until finalized.
func (s *Service) CreateReport(ctx context.Context, patientID uuid.UUID, sex SexAtBirth, rows []OCRLabRow, note *string) (*ReportDetail, error) {
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("rows are required")
	}
	sex, err := normalizeSex(sex)
	if err != nil {
		return nil, err
	}
	panel, err := s.InterpretPanel(rows, sex)
	if err != nil {
		return nil, err
	}
	if len(panel.Items) == 0 {
		return nil, fmt.Errorf("no interpretable lab rows")
	}

	report := &LabReport{
		PatientID:       patientID,
		Sex:             sex,
		Status:          StatusPending,
		DominantLevel:   panel.Risk.DominantLevel,
		AnyCritical:     panel.Risk.AnyCritical,
		OutOfRangeCount: panel.Risk.OutOfRangeCount,
		Note:            note,
	}
	results := make([]*LabResult, 0, len(panel.Items))
	for i, item := range panel.Items {
		a := panel.Risk.Items[i]
		results = append(results, &LabResult{
			Code:       item.Code,
			Name:       item.Name,
			Category:   item.Category,
			Value:      item.Value,
			Unit:       item.Unit,
			Flag:       item.Flag,
			RiskLevel:  a.Level,
			IsCritical: a.IsCritical,
			IsAbnormal: a.IsAbnormal,
			RawName:    item.Raw.RawName,
			RawValue:   item.Raw.ValueText,
			Summary:    a.Summary,
		})
	}
	if err := s.reports.Create(ctx, report, results); err != nil {
		return nil, err
	}
	return &ReportDetail{Report: report, Results: results, Risk: panel.Risk}, nil
}

func (s *Service) GetReport(ctx context.Context, id uuid.UUID) (*ReportDetail, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	results, err := s.reports.GetResults(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ReportDetail{Report: report, Results: results, Risk: riskFromResults(results)}, nil
}

// GetReportRisk rebuilds the panel rollup from stored result rows.
func (s *Service) GetReportRisk(ctx context.Context, id uuid.UUID) (LabPanelRiskSummary, error) {
	results, err := s.reports.GetResults(ctx, id)
	if err != nil {
		return LabPanelRiskSummary{}, err
	}
	return riskFromResults(results), nil
}

// riskFromResults reconstitutes assessments from persisted rows. Stored
// values carry their own level and summary, so no re-evaluation happens.
func riskFromResults(results []*LabResult) LabPanelRiskSummary {
	assessments := make([]LabRiskAssessment, 0, len(results))
	for _, res := range results {
		assessments = append(assessments, LabRiskAssessment{
			Flag:       res.Flag,
			Level:      res.RiskLevel,
			Label:      flagRisk[res.Flag].Label,
			Summary:    res.Summary,
			Value:      res.Value,
			Unit:       res.Unit,
			Code:       res.Code,
			Name:       res.Name,
			IsCritical: res.IsCritical,
			IsAbnormal: res.IsAbnormal,
		})
	}
	return SummarizePanelRisk(assessments)
}

func (s *Service) ListReportsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabReport, int, error) {
	if patientID == uuid.Nil {
		return nil, 0, fmt.Errorf("patient_id is required")
	}
	return s.reports.ListByPatient(ctx, patientID, limit, offset)
}

// UpdateReportStatus enforces the report lifecycle before persisting.
func (s *Service) UpdateReportStatus(ctx context.Context, id uuid.UUID, status ReportStatus) (*LabReport, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !report.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("invalid status transition from %s to %s", report.Status, status)
	}
	if err := s.reports.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	report.Status = status
	return report, nil
}

func (s *Service) DeleteReport(ctx context.Context, id uuid.UUID) error {
	return s.reports.Delete(ctx, id)
}
