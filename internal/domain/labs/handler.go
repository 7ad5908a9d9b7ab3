package labs

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/sloanesterlingco/myhealthvaultai-sub002/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/lab-panels/interpret", h.InterpretPanel)
	api.POST("/lab-panels/interpret-text", h.InterpretText)
	api.GET("/lab-rules", h.ListRules)
	api.GET("/lab-rules/:code", h.GetRule)
	api.POST("/lab-reports", h.CreateReport)
	api.GET("/lab-reports", h.ListReports)
	api.GET("/lab-reports/:id", h.GetReport)
	api.GET("/lab-reports/:id/risk", h.GetReportRisk)
	api.PUT("/lab-reports/:id/status", h.UpdateReportStatus)
	api.DELETE("/lab-reports/:id", h.DeleteReport)
}

type interpretPanelRequest struct {
	Sex  SexAtBirth  `json:"sex"`
	Rows []OCRLabRow `json:"rows"`
}

func (h *Handler) InterpretPanel(c echo.Context) error {
	var req interpretPanelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	panel, err := h.svc.InterpretPanel(req.Rows, req.Sex)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, panel)
}

type interpretTextRequest struct {
	Sex  SexAtBirth `json:"sex"`
	Text string     `json:"text"`
}

func (h *Handler) InterpretText(c echo.Context) error {
	var req interpretTextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	panel, err := h.svc.InterpretText(req.Text, req.Sex)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, panel)
}

func (h *Handler) ListRules(c echo.Context) error {
	rules := AllLabRules()
	if category := c.QueryParam("category"); category != "" {
		filtered := make([]*LabRule, 0, len(rules))
		for _, r := range rules {
			if string(r.Category) == category {
				filtered = append(filtered, r)
			}
		}
		rules = filtered
	}
	return c.JSON(http.StatusOK, rules)
}

func (h *Handler) GetRule(c echo.Context) error {
	rule, ok := FindLabRule(c.Param("code"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "lab rule not found")
	}
	return c.JSON(http.StatusOK, rule)
}

type createReportRequest struct {
	PatientID uuid.UUID   `json:"patient_id"`
	Sex       SexAtBirth  `json:"sex"`
	Rows      []OCRLabRow `json:"rows"`
	Note      *string     `json:"note"`
}

func (h *Handler) CreateReport(c echo.Context) error {
	var req createReportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	detail, err := h.svc.CreateReport(c.Request().Context(), req.PatientID, req.Sex, req.Rows, req.Note)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, detail)
}

func (h *Handler) ListReports(c echo.Context) error {
	pg := pagination.FromContext(c)
	patientID, err := uuid.Parse(c.QueryParam("patient_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
	}
	items, total, err := h.svc.ListReportsByPatient(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetReport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	detail, err := h.svc.GetReport(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "lab report not found")
	}
	return c.JSON(http.StatusOK, detail)
}

func (h *Handler) GetReportRisk(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	risk, err := h.svc.GetReportRisk(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "lab report not found")
	}
	return c.JSON(http.StatusOK, risk)
}

type updateStatusRequest struct {
	Status ReportStatus `json:"status"`
}

func (h *Handler) UpdateReportStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	report, err := h.svc.UpdateReportStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) DeleteReport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteReport(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
