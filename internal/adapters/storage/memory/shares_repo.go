package memory

import (
	"context"
	"sort"
	"sync"

	"medical-consent/internal/domain/sharing"
)

type sharesRepo struct {
	mu     sync.RWMutex
	grants map[string]map[string]sharing.Grant // connectionID -> recordID -> grant
}

func NewSharesRepo() sharing.Repository {
	return &sharesRepo{
		grants: make(map[string]map[string]sharing.Grant),
	}
}

func (r *sharesRepo) InsertBatch(ctx context.Context, grants []sharing.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, g := range grants {
		byRecord, ok := r.grants[g.ConnectionID]
		if !ok {
			byRecord = make(map[string]sharing.Grant)
			r.grants[g.ConnectionID] = byRecord
		}
		// Duplicado => no-op (se preserva el CreatedAt original)
		if _, exists := byRecord[g.RecordID]; exists {
			continue
		}
		byRecord[g.RecordID] = g
	}
	return nil
}

func (r *sharesRepo) Delete(ctx context.Context, connectionID string, recordIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byRecord, ok := r.grants[connectionID]
	if !ok {
		return nil
	}
	for _, rid := range recordIDs {
		delete(byRecord, rid)
	}
	return nil
}

func (r *sharesRepo) DeleteAll(ctx context.Context, connectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.grants, connectionID)
	return nil
}

func (r *sharesRepo) ListByConnection(ctx context.Context, connectionID string) ([]sharing.Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byRecord := r.grants[connectionID]
	out := make([]sharing.Grant, 0, len(byRecord))
	for _, g := range byRecord {
		out = append(out, g)
	}
	// Orden estable por record id (los maps no lo garantizan)
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out, nil
}

func (r *sharesRepo) CountByConnection(ctx context.Context, connectionID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.grants[connectionID]), nil
}
