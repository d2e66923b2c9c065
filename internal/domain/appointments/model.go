package appointments

import "time"

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
)

// Appointment es deliberadamente chico: la agenda real (slots, solapamientos)
// vive en otro subsistema. Acá solo importa que NO se pueda agendar sin una
// conexión aprobada entre las partes.
type Appointment struct {
	ID        string
	PatientID string
	DoctorID  string

	StartsAt time.Time
	Reason   string

	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
}
