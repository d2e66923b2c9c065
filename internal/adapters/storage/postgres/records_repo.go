package postgres

import (
	"context"
	"database/sql"
	"strings"

	"medical-consent/internal/domain/records"
)

type RecordsRepo struct {
	db *sql.DB
}

func NewRecordsRepo(db *sql.DB) *RecordsRepo {
	return &RecordsRepo{db: db}
}

func (r *RecordsRepo) Create(ctx context.Context, rec records.Record) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO medical_records (
			id, patient_id,
			title, category, notes,
			status,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		rec.ID,
		rec.PatientID,
		rec.Title,
		string(rec.Category),
		rec.Notes,
		string(rec.Status),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

// GetByID no devuelve soft-deleted: para el resto del sistema no existen.
func (r *RecordsRepo) GetByID(ctx context.Context, id string) (records.Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return records.Record{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, patient_id,
			title, category, notes,
			status,
			created_at, updated_at
		FROM medical_records
		WHERE id = $1 AND status <> 'deleted'
	`, id)

	return scanRecord(row)
}

func (r *RecordsRepo) ListByPatient(ctx context.Context, patientID string) ([]records.Record, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			id, patient_id,
			title, category, notes,
			status,
			created_at, updated_at
		FROM medical_records
		WHERE patient_id = $1 AND status <> 'deleted'
		ORDER BY created_at ASC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]records.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *RecordsRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE medical_records
		SET status = 'deleted', updated_at = NOW()
		WHERE id = $1 AND status <> 'deleted'
	`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(row rowScanner) (records.Record, error) {
	var rec records.Record
	var category, status string

	if err := row.Scan(
		&rec.ID,
		&rec.PatientID,
		&rec.Title,
		&category,
		&rec.Notes,
		&status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return records.Record{}, ErrNotFound
		}
		return records.Record{}, err
	}

	rec.Category = records.Category(category)
	rec.Status = records.Status(status)
	return rec, nil
}
