package labs

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sloanesterlingco/myhealthvaultai-sub002/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type reportRepoPG struct{ pool *pgxpool.Pool }

func NewReportRepoPG(pool *pgxpool.Pool) ReportRepository {
	return &reportRepoPG{pool: pool}
}

func (r *reportRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const reportCols = `id, patient_id, sex, status, dominant_level,
	any_critical, out_of_range_count, note, created_at, updated_at`

const resultCols = `id, report_id, code, name, category, value, unit,
	flag, risk_level, is_critical, is_abnormal,
	raw_name, raw_value, summary, created_at`

func (r *reportRepoPG) scanReport(row pgx.Row) (*LabReport, error) {
	var rep LabReport
	err := row.Scan(&rep.ID, &rep.PatientID, &rep.Sex, &rep.Status, &rep.DominantLevel,
		&rep.AnyCritical, &rep.OutOfRangeCount, &rep.Note, &rep.CreatedAt, &rep.UpdatedAt)
	return &rep, err
}

func (r *reportRepoPG) scanResult(row pgx.Row) (*LabResult, error) {
	var res LabResult
	err := row.Scan(&res.ID, &res.ReportID, &res.Code, &res.Name, &res.Category, &res.Value, &res.Unit,
		&res.Flag, &res.RiskLevel, &res.IsCritical, &res.IsAbnormal,
		&res.RawName, &res.RawValue, &res.Summary, &res.CreatedAt)
	return &res, err
}

// Create inserts a report and its results in one transaction so a report can
// never exist without the rows its rollup was computed from.
func (r *reportRepoPG) Create(ctx context.Context, report *LabReport, results []*LabResult) error {
	report.ID = uuid.New()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO lab_report (id, patient_id, sex, status, dominant_level,
			any_critical, out_of_range_count, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		report.ID, report.PatientID, report.Sex, report.Status, report.DominantLevel,
		report.AnyCritical, report.OutOfRangeCount, report.Note)
	if err != nil {
		return err
	}
	for _, res := range results {
		res.ID = uuid.New()
		res.ReportID = report.ID
		_, err = tx.Exec(ctx, `
			INSERT INTO lab_result (id, report_id, code, name, category, value, unit,
				flag, risk_level, is_critical, is_abnormal,
				raw_name, raw_value, summary)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			res.ID, res.ReportID, res.Code, res.Name, res.Category, res.Value, res.Unit,
			res.Flag, res.RiskLevel, res.IsCritical, res.IsAbnormal,
			res.RawName, res.RawValue, res.Summary)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *reportRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabReport, error) {
	return r.scanReport(r.conn(ctx).QueryRow(ctx, `SELECT `+reportCols+` FROM lab_report WHERE id = $1`, id))
}

func (r *reportRepoPG) GetResults(ctx context.Context, reportID uuid.UUID) ([]*LabResult, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+resultCols+` FROM lab_result WHERE report_id = $1 ORDER BY created_at, code`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*LabResult
	for rows.Next() {
		res, err := r.scanResult(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, res)
	}
	return items, rows.Err()
}

func (r *reportRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status ReportStatus) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE lab_report SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *reportRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM lab_report WHERE id = $1`, id)
	return err
}

func (r *reportRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*LabReport, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM lab_report WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+reportCols+` FROM lab_report WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*LabReport
	for rows.Next() {
		rep, err := r.scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rep)
	}
	return items, total, rows.Err()
}
