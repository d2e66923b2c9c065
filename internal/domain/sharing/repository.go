package sharing

import "context"

type Repository interface {
	// InsertBatch es atómico: o entran todos los grants o ninguno.
	// Pares (connection, record) ya existentes son no-op.
	InsertBatch(ctx context.Context, grants []Grant) error

	// Delete elimina los grants indicados; ids inexistentes se ignoran.
	Delete(ctx context.Context, connectionID string, recordIDs []string) error

	// DeleteAll limpia el allow-list completo de la conexión
	// (la vuelve al estado share-all).
	DeleteAll(ctx context.Context, connectionID string) error

	ListByConnection(ctx context.Context, connectionID string) ([]Grant, error)
	CountByConnection(ctx context.Context, connectionID string) (int, error)
}
