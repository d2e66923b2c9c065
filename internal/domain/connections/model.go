package connections

import "time"

// Status del vínculo paciente↔doctor.
// Transiciones válidas: pending→approved|rejected, approved→revoked,
// rejected→pending y revoked→pending (re-solicitud, misma fila).
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusRevoked  Status = "revoked"
)

// ShareMode indica cómo se resuelve la visibilidad de records sobre la conexión.
// Antes esto era implícito ("¿hay grants o no?"); ahora queda guardado en la fila.
// El shim de compatibilidad se mantiene: cero grants siempre significa "todo visible".
type ShareMode string

const (
	ShareModeAll      ShareMode = "all"
	ShareModeExplicit ShareMode = "explicit"
)

// Role identifica de qué lado de la conexión actúa alguien.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Connection es la relación de consentimiento entre un paciente y un doctor.
// Existe a lo sumo UNA fila por pareja (patient_id, doctor_id); las
// re-solicitudes reutilizan la fila, nunca crean otra.
type Connection struct {
	ID        string
	PatientID string
	DoctorID  string

	Status    Status
	ShareMode ShareMode

	RequestedAt time.Time
	RespondedAt *time.Time

	// Version respalda el update optimista: dos escrituras concurrentes sobre
	// la misma fila no pueden pisarse en silencio (ver Repository.Update).
	Version int
}
