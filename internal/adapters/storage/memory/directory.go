package memory

import (
	"context"
	"sync"

	"medical-consent/internal/ports/profiles"
)

// Directory es un profiles.Directory in-memory.
// Modo estricto (NewDirectory): solo existen los perfiles seedeados; es el
// que usan los tests. Modo open (NewOpenDirectory): cualquier id resuelve y
// los doctores salen verified — sirve para levantar el server en dev sin
// registry externo.
type Directory struct {
	mu       sync.RWMutex
	patients map[string]profiles.PatientProfile
	doctors  map[string]profiles.DoctorProfile
	open     bool
}

func NewDirectory() *Directory {
	return &Directory{
		patients: make(map[string]profiles.PatientProfile),
		doctors:  make(map[string]profiles.DoctorProfile),
	}
}

func NewOpenDirectory() *Directory {
	d := NewDirectory()
	d.open = true
	return d
}

func (d *Directory) SeedPatient(p profiles.PatientProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patients[p.ID] = p
}

func (d *Directory) SeedDoctor(doc profiles.DoctorProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doctors[doc.ID] = doc
}

func (d *Directory) Patient(ctx context.Context, id string) (profiles.PatientProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if p, ok := d.patients[id]; ok {
		return p, nil
	}
	if d.open {
		return profiles.PatientProfile{ID: id}, nil
	}
	return profiles.PatientProfile{}, ErrNotFound
}

func (d *Directory) Doctor(ctx context.Context, id string) (profiles.DoctorProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if doc, ok := d.doctors[id]; ok {
		return doc, nil
	}
	if d.open {
		return profiles.DoctorProfile{ID: id, Verified: true}, nil
	}
	return profiles.DoctorProfile{}, ErrNotFound
}
