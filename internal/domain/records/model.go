package records

import "time"

// Category clasifica el record médico.
// @Enum lab_result, prescription, imaging, clinical_note, other
type Category string

const (
	CategoryLabResult    Category = "lab_result"
	CategoryPrescription Category = "prescription"
	CategoryImaging      Category = "imaging"
	CategoryClinicalNote Category = "clinical_note"
	CategoryOther        Category = "other"
)

// Status define el ciclo de vida del record.
// Los records no se borran físicamente: deleted es soft-delete y
// los desaparece de toda búsqueda (GetByID incluido).
type Status string

const (
	StatusActive  Status = "active"
	StatusDeleted Status = "deleted"
)

// Record es un documento médico del paciente. El contenido/archivo vive en
// otro subsistema; acá solo importan identidad, dueño y metadata.
type Record struct {
	ID        string
	PatientID string

	Title    string
	Category Category
	Notes    string

	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
}
