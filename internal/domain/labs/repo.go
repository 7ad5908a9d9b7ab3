package labs

import (
	"context"

	"github.com/google/uuid"
)

type ReportRepository interface {
	Create(ctx context.Context, report *LabReport, results []*LabResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabReport, error)
	GetResults(ctx context.Context, reportID uuid.UUID) ([]*LabResult, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status ReportStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabReport, int, error)
}
