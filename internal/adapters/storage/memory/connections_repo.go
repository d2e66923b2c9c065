package memory

import (
	"context"
	"errors"
	"sync"

	"medical-consent/internal/domain/connections"
)

var ErrNotFound = errors.New("not found")

type connectionRepo struct {
	mu     sync.RWMutex
	byID   map[string]connections.Connection
	byPair map[string]string // patientID|doctorID -> connection id (unicidad de pareja)
}

func NewConnectionsRepo() connections.Repository {
	return &connectionRepo{
		byID:   make(map[string]connections.Connection),
		byPair: make(map[string]string),
	}
}

func pairKey(patientID, doctorID string) string {
	return patientID + "|" + doctorID
}

func (r *connectionRepo) Create(ctx context.Context, c connections.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		return errors.New("connection id required")
	}
	key := pairKey(c.PatientID, c.DoctorID)
	if _, exists := r.byPair[key]; exists {
		return connections.ErrDuplicatePair
	}
	if _, exists := r.byID[c.ID]; exists {
		return errors.New("connection already exists")
	}

	r.byID[c.ID] = c
	r.byPair[key] = c.ID
	return nil
}

// Update con check optimista: si la versión guardada no es prevVersion,
// otro writer llegó primero y devolvemos ErrConflict.
func (r *connectionRepo) Update(ctx context.Context, c connections.Connection, prevVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		return errors.New("connection id required")
	}
	current, exists := r.byID[c.ID]
	if !exists {
		return ErrNotFound
	}
	if current.Version != prevVersion {
		return connections.ErrConflict
	}

	// Update no escribe share_mode (igual que el UPDATE de postgres):
	// lo mantiene SetShareMode y no compite con el check de versión.
	c.ShareMode = current.ShareMode
	r.byID[c.ID] = c
	return nil
}

func (r *connectionRepo) GetByID(ctx context.Context, id string) (connections.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byID[id]
	if !ok {
		return connections.Connection{}, ErrNotFound
	}
	return c, nil
}

func (r *connectionRepo) GetByPair(ctx context.Context, patientID, doctorID string) (connections.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPair[pairKey(patientID, doctorID)]
	if !ok {
		return connections.Connection{}, ErrNotFound
	}
	c, ok := r.byID[id]
	if !ok {
		return connections.Connection{}, ErrNotFound
	}
	return c, nil
}

func (r *connectionRepo) ListByPatient(ctx context.Context, patientID string) ([]connections.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]connections.Connection, 0)
	for _, c := range r.byID {
		if c.PatientID == patientID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *connectionRepo) ListByDoctor(ctx context.Context, doctorID string) ([]connections.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]connections.Connection, 0)
	for _, c := range r.byID {
		if c.DoctorID == doctorID {
			out = append(out, c)
		}
	}
	return out, nil
}

// SetShareMode no toca Version: el share_mode es un campo subordinado que
// mantiene sharing; los transitions de estado no compiten con él.
func (r *connectionRepo) SetShareMode(ctx context.Context, id string, mode connections.ShareMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	c.ShareMode = mode
	r.byID[id] = c
	return nil
}
