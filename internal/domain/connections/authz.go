package connections

// AuthorizeParty valida que (role, actorID) sea parte de la conexión.
// Es el ÚNICO punto de ownership-check: lo usan todas las operaciones de este
// módulo y también sharing. Tenerlo duplicado por operación ya nos costó
// checks inconsistentes en otros proyectos.
//
// Un mismatch sobre una conexión existente es ErrUnauthorized, no ErrNotFound.
func AuthorizeParty(c Connection, role Role, actorID string) error {
	if actorID == "" {
		return ErrUnauthorized
	}
	switch role {
	case RolePatient:
		if c.PatientID != actorID {
			return ErrUnauthorized
		}
	case RoleDoctor:
		if c.DoctorID != actorID {
			return ErrUnauthorized
		}
	default:
		return ErrUnauthorized
	}
	return nil
}
