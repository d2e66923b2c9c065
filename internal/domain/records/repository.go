package records

import "context"

type Repository interface {
	Create(ctx context.Context, rec Record) error

	// GetByID y ListByPatient filtran soft-deleted: un record borrado
	// no existe para ningún caller.
	GetByID(ctx context.Context, id string) (Record, error)
	ListByPatient(ctx context.Context, patientID string) ([]Record, error)

	// Delete marca el record como deleted (soft).
	Delete(ctx context.Context, id string) error
}
