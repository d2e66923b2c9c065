package postgres

import (
	"context"
	"database/sql"
	"strings"

	"medical-consent/internal/domain/sharing"
)

type SharesRepo struct {
	db *sql.DB
}

func NewSharesRepo(db *sql.DB) *SharesRepo {
	return &SharesRepo{db: db}
}

// InsertBatch corre dentro de una transacción: o entran todos o ninguno.
// El PK (connection_id, record_id) + ON CONFLICT hace idempotente el duplicado.
func (r *SharesRepo) InsertBatch(ctx context.Context, grants []sharing.Grant) error {
	if len(grants) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, g := range grants {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO shared_record_grants (connection_id, record_id, created_at)
			VALUES ($1,$2,$3)
			ON CONFLICT (connection_id, record_id) DO NOTHING
		`, g.ConnectionID, g.RecordID, g.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *SharesRepo) Delete(ctx context.Context, connectionID string, recordIDs []string) error {
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" || len(recordIDs) == 0 {
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		DELETE FROM shared_record_grants
		WHERE connection_id = $1 AND record_id = ANY($2)
	`, connectionID, recordIDs)
	return err
}

func (r *SharesRepo) DeleteAll(ctx context.Context, connectionID string) error {
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
		DELETE FROM shared_record_grants
		WHERE connection_id = $1
	`, connectionID)
	return err
}

func (r *SharesRepo) ListByConnection(ctx context.Context, connectionID string) ([]sharing.Grant, error) {
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT connection_id, record_id, created_at
		FROM shared_record_grants
		WHERE connection_id = $1
		ORDER BY created_at ASC
	`, connectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]sharing.Grant, 0)
	for rows.Next() {
		var g sharing.Grant
		if err := rows.Scan(&g.ConnectionID, &g.RecordID, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *SharesRepo) CountByConnection(ctx context.Context, connectionID string) (int, error) {
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return 0, nil
	}

	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM shared_record_grants
		WHERE connection_id = $1
	`, connectionID).Scan(&n)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}
