package profiles

import "context"

// PatientProfile es la vista mínima que necesita el core.
// El CRUD de perfiles vive en el servicio externo de perfiles.
type PatientProfile struct {
	ID       string
	FullName string
}

// DoctorProfile incluye el flag verified: solo doctores verificados
// pueden recibir solicitudes de conexión nuevas.
type DoctorProfile struct {
	ID        string
	FullName  string
	Specialty string
	Verified  bool
}

// Directory resuelve perfiles por id (patient o doctor).
// Implementaciones: adapter HTTP contra el registry externo, o in-memory para dev/tests.
type Directory interface {
	Patient(ctx context.Context, id string) (PatientProfile, error)
	Doctor(ctx context.Context, id string) (DoctorProfile, error)
}
