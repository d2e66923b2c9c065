package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"medical-consent/internal/domain/records"
)

type recordsRepo struct {
	mu   sync.RWMutex
	byID map[string]records.Record
	now  func() time.Time
}

func NewRecordsRepo() records.Repository {
	return &recordsRepo{
		byID: make(map[string]records.Record),
		now:  time.Now,
	}
}

func (r *recordsRepo) Create(ctx context.Context, rec records.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ID == "" {
		return errors.New("record id required")
	}
	if _, exists := r.byID[rec.ID]; exists {
		return errors.New("record already exists")
	}
	r.byID[rec.ID] = rec
	return nil
}

// GetByID filtra soft-deleted: un record borrado no existe para nadie.
func (r *recordsRepo) GetByID(ctx context.Context, id string) (records.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	if !ok || rec.Status == records.StatusDeleted {
		return records.Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *recordsRepo) ListByPatient(ctx context.Context, patientID string) ([]records.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]records.Record, 0)
	for _, rec := range r.byID {
		if rec.PatientID != patientID {
			continue
		}
		if rec.Status == records.StatusDeleted {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *recordsRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok || rec.Status == records.StatusDeleted {
		return ErrNotFound
	}
	rec.Status = records.StatusDeleted
	rec.UpdatedAt = r.now()
	r.byID[id] = rec
	return nil
}
