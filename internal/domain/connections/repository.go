package connections

import (
	"context"
	"errors"
)

var (
	// ErrConflict: la fila cambió debajo nuestro (version mismatch en Update).
	ErrConflict = errors.New("connection version conflict")

	// ErrDuplicatePair: ya existe una conexión para (patient, doctor).
	ErrDuplicatePair = errors.New("connection already exists for pair")
)

type Repository interface {
	// Create falla con ErrDuplicatePair si la pareja ya tiene fila.
	Create(ctx context.Context, c Connection) error

	// Update aplica c solo si la fila sigue en prevVersion;
	// si no, devuelve ErrConflict. Nunca escribe ShareMode: ese campo
	// es exclusivo de SetShareMode.
	Update(ctx context.Context, c Connection, prevVersion int) error

	GetByID(ctx context.Context, id string) (Connection, error)
	GetByPair(ctx context.Context, patientID, doctorID string) (Connection, error)
	ListByPatient(ctx context.Context, patientID string) ([]Connection, error)
	ListByDoctor(ctx context.Context, doctorID string) ([]Connection, error)

	// SetShareMode actualiza solo el share_mode (lo mantiene el módulo sharing).
	SetShareMode(ctx context.Context, id string, mode ShareMode) error
}
