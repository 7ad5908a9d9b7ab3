package labs

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc := newTestService()
	h := NewHandler(svc)
	e := echo.New()
	return h, e
}

func postJSON(e *echo.Echo, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodePanel(t *testing.T, rec *httptest.ResponseRecorder) PanelAssessment {
	t.Helper()
	var panel PanelAssessment
	if err := json.Unmarshal(rec.Body.Bytes(), &panel); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return panel
}

func TestHandler_InterpretPanel(t *testing.T) {
	h, e := newTestHandler()
	body := `{"sex":"female","rows":[
		{"raw_name":"Hemoglobin (Hgb)","value_text":"11.2","unit_text":"g/dL"},
		{"raw_name":"Sodium","value_text":"140","unit_text":"mmol/L"}
	]}`
	c, rec := postJSON(e, body)

	if err := h.InterpretPanel(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	panel := decodePanel(t, rec)
	if len(panel.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(panel.Items))
	}
	if panel.Items[0].Flag != FlagLow {
		t.Errorf("hemoglobin flag = %s", panel.Items[0].Flag)
	}
	if panel.Risk.DominantLevel != RiskRed {
		t.Errorf("dominant = %s", panel.Risk.DominantLevel)
	}
}

func TestHandler_InterpretPanel_UnknownRowsReportedBack(t *testing.T) {
	h, e := newTestHandler()
	body := `{"rows":[{"raw_name":"Unknown Test XYZ","value_text":"5"}]}`
	c, rec := postJSON(e, body)

	if err := h.InterpretPanel(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	panel := decodePanel(t, rec)
	if len(panel.Items) != 0 {
		t.Errorf("expected no items, got %d", len(panel.Items))
	}
	if len(panel.UnknownRows) != 1 || panel.UnknownRows[0].RawName != "Unknown Test XYZ" {
		t.Errorf("unknown rows = %+v", panel.UnknownRows)
	}
	if panel.Risk.DominantLevel != RiskUnknown {
		t.Errorf("dominant = %s", panel.Risk.DominantLevel)
	}
}

func TestHandler_InterpretPanel_InvalidSex(t *testing.T) {
	h, e := newTestHandler()
	c, _ := postJSON(e, `{"sex":"banana","rows":[]}`)
	if err := h.InterpretPanel(c); err == nil {
		t.Error("expected error for invalid sex")
	}
}

func TestHandler_InterpretText(t *testing.T) {
	h, e := newTestHandler()
	body := `{"sex":"female","text":"HGB 11.2 g/dL (12.0-15.5) L\nGlucose 105 mg/dL"}`
	c, rec := postJSON(e, body)

	if err := h.InterpretText(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	panel := decodePanel(t, rec)
	if len(panel.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(panel.Items))
	}
	if panel.Items[0].Code != "HGB" || panel.Items[1].Code != "GLUCOSE" {
		t.Errorf("codes = %s, %s", panel.Items[0].Code, panel.Items[1].Code)
	}
}

func TestHandler_ListRules(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListRules(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var rules []*LabRule
	if err := json.Unmarshal(rec.Body.Bytes(), &rules); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rules) != len(AllLabRules()) {
		t.Errorf("expected full registry, got %d rules", len(rules))
	}
}

func TestHandler_ListRules_CategoryFilter(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?category=CBC", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListRules(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var rules []*LabRule
	if err := json.Unmarshal(rec.Body.Bytes(), &rules); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rules) == 0 {
		t.Fatal("expected CBC rules")
	}
	for _, r := range rules {
		if r.Category != CategoryCBC {
			t.Errorf("rule %s has category %s", r.Code, r.Category)
		}
	}
}

func TestHandler_GetRule(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("code")
	c.SetParamValues("hgb")

	if err := h.GetRule(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var rule LabRule
	if err := json.Unmarshal(rec.Body.Bytes(), &rule); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rule.Code != "HGB" {
		t.Errorf("code = %s", rule.Code)
	}
}

func TestHandler_GetRule_NotFound(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("code")
	c.SetParamValues("NOTATEST")

	if err := h.GetRule(c); err == nil {
		t.Error("expected error for unknown rule")
	}
}

func TestHandler_CreateReport(t *testing.T) {
	h, e := newTestHandler()
	body := `{"patient_id":"` + uuid.New().String() + `","sex":"female","rows":[
		{"raw_name":"Hemoglobin","value_text":"11.2"}
	]}`
	c, rec := postJSON(e, body)

	if err := h.CreateReport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var detail ReportDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.Report.Status != StatusPending {
		t.Errorf("status = %s", detail.Report.Status)
	}
}

func TestHandler_CreateReport_MissingPatient(t *testing.T) {
	h, e := newTestHandler()
	c, _ := postJSON(e, `{"rows":[{"raw_name":"Hemoglobin","value_text":"14"}]}`)
	if err := h.CreateReport(c); err == nil {
		t.Error("expected error for missing patient_id")
	}
}

func TestHandler_GetReport(t *testing.T) {
	h, e := newTestHandler()
	created, err := h.svc.CreateReport(nil, uuid.New(), SexMale, []OCRLabRow{
		{RawName: "Glucose", ValueText: "85"},
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(created.Report.ID.String())

	if err := h.GetReport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetReport_NotFound(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if err := h.GetReport(c); err == nil {
		t.Error("expected error for not found")
	}
}

func TestHandler_GetReportRisk(t *testing.T) {
	h, e := newTestHandler()
	created, err := h.svc.CreateReport(nil, uuid.New(), SexUnknown, []OCRLabRow{
		{RawName: "Sodium", ValueText: "118"},
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(created.Report.ID.String())

	if err := h.GetReportRisk(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var risk LabPanelRiskSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &risk); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if risk.DominantLevel != RiskRed || !risk.AnyCritical {
		t.Errorf("rollup = %+v", risk)
	}
}

func TestHandler_UpdateReportStatus(t *testing.T) {
	h, e := newTestHandler()
	created, err := h.svc.CreateReport(nil, uuid.New(), SexMale, []OCRLabRow{
		{RawName: "Glucose", ValueText: "85"},
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	c, rec := postJSON(e, `{"status":"final"}`)
	c.SetParamNames("id")
	c.SetParamValues(created.Report.ID.String())

	if err := h.UpdateReportStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	// The report is final now; there is no way back to pending.
	c2, _ := postJSON(e, `{"status":"pending"}`)
	c2.SetParamNames("id")
	c2.SetParamValues(created.Report.ID.String())
	if err := h.UpdateReportStatus(c2); err == nil {
		t.Error("expected error for illegal transition")
	}
}

func TestHandler_DeleteReport(t *testing.T) {
	h, e := newTestHandler()
	created, err := h.svc.CreateReport(nil, uuid.New(), SexMale, []OCRLabRow{
		{RawName: "Glucose", ValueText: "85"},
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(created.Report.ID.String())

	if err := h.DeleteReport(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestHandler_ListReports(t *testing.T) {
	h, e := newTestHandler()
	patientID := uuid.New()
	if _, err := h.svc.CreateReport(nil, patientID, SexMale, []OCRLabRow{
		{RawName: "Glucose", ValueText: "85"},
	}, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/?patient_id="+patientID.String(), nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListReports(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("total = %d", resp.Total)
	}
}

func TestHandler_ListReports_InvalidPatientID(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?patient_id=nope", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListReports(c); err == nil {
		t.Error("expected error for malformed patient_id")
	}
}

// -- End-to-end interpretation scenarios --

func TestScenario_FemaleCBCWithLowHemoglobin(t *testing.T) {
	h, e := newTestHandler()
	body := `{"sex":"female","rows":[
		{"raw_name":"Hemoglobin (Hgb)","value_text":"11.2","unit_text":"g/dL","reference_range_text":"12.0-15.5"},
		{"raw_name":"Hematocrit","value_text":"35.1","unit_text":"%"},
		{"raw_name":"Unknown Test XYZ","value_text":"5"}
	]}`
	c, rec := postJSON(e, body)
	if err := h.InterpretPanel(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	panel := decodePanel(t, rec)

	if len(panel.Items) != 2 || len(panel.UnknownRows) != 1 {
		t.Fatalf("partition = %d items, %d unknown", len(panel.Items), len(panel.UnknownRows))
	}
	hgb := panel.Items[0]
	if hgb.Flag != FlagLow || !hgb.OutOfRange {
		t.Errorf("hemoglobin = %+v", hgb)
	}
	// 11.2 sits 0.8 below a 3.5-wide interval, which escalates to red.
	if panel.Risk.Items[0].Level != RiskRed {
		t.Errorf("hemoglobin level = %s", panel.Risk.Items[0].Level)
	}
	if panel.Risk.DominantLevel != RiskRed {
		t.Errorf("dominant = %s", panel.Risk.DominantLevel)
	}
}

func TestScenario_CriticalSodium(t *testing.T) {
	h, e := newTestHandler()
	body := `{"rows":[{"raw_name":"Sodium","value_text":"118","unit_text":"mmol/L"}]}`
	c, rec := postJSON(e, body)
	if err := h.InterpretPanel(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	panel := decodePanel(t, rec)

	if panel.Items[0].Flag != FlagCriticalLow {
		t.Errorf("flag = %s", panel.Items[0].Flag)
	}
	if !panel.Risk.AnyCritical || panel.Risk.DominantLevel != RiskRed {
		t.Errorf("rollup = %+v", panel.Risk)
	}
	if !strings.Contains(panel.Risk.Items[0].Summary, "urgent medical attention") {
		t.Errorf("summary = %q", panel.Risk.Items[0].Summary)
	}
}

func TestScenario_AllNormalPanel(t *testing.T) {
	h, e := newTestHandler()
	body := `{"sex":"male","rows":[
		{"raw_name":"Hemoglobin","value_text":"14.8"},
		{"raw_name":"Sodium","value_text":"140"},
		{"raw_name":"Glucose","value_text":"88"}
	]}`
	c, rec := postJSON(e, body)
	if err := h.InterpretPanel(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	panel := decodePanel(t, rec)

	if panel.Risk.DominantLevel != RiskGreen {
		t.Errorf("dominant = %s", panel.Risk.DominantLevel)
	}
	if panel.Risk.OutOfRangeCount != 0 || panel.Risk.AnyCritical {
		t.Errorf("rollup = %+v", panel.Risk)
	}
}

func TestScenario_MildlyHighGlucoseStaysYellow(t *testing.T) {
	h, e := newTestHandler()
	body := `{"rows":[{"raw_name":"Fasting Glucose","value_text":"103","unit_text":"mg/dL"}]}`
	c, rec := postJSON(e, body)
	if err := h.InterpretPanel(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	panel := decodePanel(t, rec)

	if panel.Items[0].Flag != FlagHigh {
		t.Errorf("flag = %s", panel.Items[0].Flag)
	}
	// 4 over a 29-wide interval is under the escalation fraction.
	if panel.Risk.Items[0].Level != RiskYellow {
		t.Errorf("level = %s", panel.Risk.Items[0].Level)
	}
	if panel.Risk.DominantLevel != RiskYellow {
		t.Errorf("dominant = %s", panel.Risk.DominantLevel)
	}
}
