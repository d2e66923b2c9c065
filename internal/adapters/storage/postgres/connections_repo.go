package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"medical-consent/internal/domain/connections"
)

type ConnectionsRepo struct {
	db *sql.DB
}

func NewConnectionsRepo(db *sql.DB) *ConnectionsRepo {
	return &ConnectionsRepo{db: db}
}

// Create confía en el unique (patient_id, doctor_id) de la tabla:
// si la pareja ya tiene fila, no inserta y devolvemos ErrDuplicatePair.
func (r *ConnectionsRepo) Create(ctx context.Context, c connections.Connection) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO connections (
			id, patient_id, doctor_id,
			status, share_mode,
			requested_at, responded_at,
			version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (patient_id, doctor_id) DO NOTHING
	`,
		c.ID,
		c.PatientID,
		c.DoctorID,
		string(c.Status),
		string(c.ShareMode),
		c.RequestedAt,
		toNullTime(c.RespondedAt),
		c.Version,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return connections.ErrDuplicatePair
	}
	return nil
}

// Update optimista: solo aplica si la fila sigue en prevVersion.
// 0 filas afectadas => o la fila no existe, o perdimos la carrera.
func (r *ConnectionsRepo) Update(ctx context.Context, c connections.Connection, prevVersion int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE connections
		SET
			status = $2,
			requested_at = $3,
			responded_at = $4,
			version = $5
		WHERE id = $1 AND version = $6
	`,
		c.ID,
		string(c.Status),
		c.RequestedAt,
		toNullTime(c.RespondedAt),
		c.Version,
		prevVersion,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := r.GetByID(ctx, c.ID); err != nil {
			return ErrNotFound
		}
		return connections.ErrConflict
	}
	return nil
}

func (r *ConnectionsRepo) GetByID(ctx context.Context, id string) (connections.Connection, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return connections.Connection{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, patient_id, doctor_id,
			status, share_mode,
			requested_at, responded_at,
			version
		FROM connections
		WHERE id = $1
	`, id)

	return scanConnection(row)
}

func (r *ConnectionsRepo) GetByPair(ctx context.Context, patientID, doctorID string) (connections.Connection, error) {
	patientID = strings.TrimSpace(patientID)
	doctorID = strings.TrimSpace(doctorID)
	if patientID == "" || doctorID == "" {
		return connections.Connection{}, ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, patient_id, doctor_id,
			status, share_mode,
			requested_at, responded_at,
			version
		FROM connections
		WHERE patient_id = $1 AND doctor_id = $2
	`, patientID, doctorID)

	return scanConnection(row)
}

func (r *ConnectionsRepo) ListByPatient(ctx context.Context, patientID string) ([]connections.Connection, error) {
	return r.list(ctx, `
		SELECT
			id, patient_id, doctor_id,
			status, share_mode,
			requested_at, responded_at,
			version
		FROM connections
		WHERE patient_id = $1
		ORDER BY requested_at DESC
	`, patientID)
}

func (r *ConnectionsRepo) ListByDoctor(ctx context.Context, doctorID string) ([]connections.Connection, error) {
	return r.list(ctx, `
		SELECT
			id, patient_id, doctor_id,
			status, share_mode,
			requested_at, responded_at,
			version
		FROM connections
		WHERE doctor_id = $1
		ORDER BY requested_at DESC
	`, doctorID)
}

func (r *ConnectionsRepo) SetShareMode(ctx context.Context, id string, mode connections.ShareMode) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE connections
		SET share_mode = $2
		WHERE id = $1
	`, id, string(mode))
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ConnectionsRepo) list(ctx context.Context, query, arg string) ([]connections.Connection, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]connections.Connection, 0)
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (connections.Connection, error) {
	var c connections.Connection
	var status, shareMode string
	var respondedAt sql.NullTime

	if err := row.Scan(
		&c.ID,
		&c.PatientID,
		&c.DoctorID,
		&status,
		&shareMode,
		&c.RequestedAt,
		&respondedAt,
		&c.Version,
	); err != nil {
		if err == sql.ErrNoRows {
			return connections.Connection{}, ErrNotFound
		}
		return connections.Connection{}, err
	}

	c.Status = connections.Status(status)
	c.ShareMode = connections.ShareMode(shareMode)
	if respondedAt.Valid {
		t := respondedAt.Time
		c.RespondedAt = &t
	}
	return c, nil
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
