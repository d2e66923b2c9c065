package sharing

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"medical-consent/internal/domain/connections"
	"medical-consent/internal/domain/records"
	"medical-consent/internal/platform/logger"
)

// -------------------------
// Test doubles
// -------------------------

var errStubNotFound = errors.New("stub: not found")

type testGrantRepo struct {
	grants map[string]map[string]Grant // connectionID -> recordID -> grant
}

func newTestGrantRepo() *testGrantRepo {
	return &testGrantRepo{grants: map[string]map[string]Grant{}}
}

func (r *testGrantRepo) InsertBatch(ctx context.Context, grants []Grant) error {
	for _, g := range grants {
		byRecord, ok := r.grants[g.ConnectionID]
		if !ok {
			byRecord = map[string]Grant{}
			r.grants[g.ConnectionID] = byRecord
		}
		if _, exists := byRecord[g.RecordID]; exists {
			continue
		}
		byRecord[g.RecordID] = g
	}
	return nil
}

func (r *testGrantRepo) Delete(ctx context.Context, connectionID string, recordIDs []string) error {
	byRecord := r.grants[connectionID]
	for _, rid := range recordIDs {
		delete(byRecord, rid)
	}
	return nil
}

func (r *testGrantRepo) DeleteAll(ctx context.Context, connectionID string) error {
	delete(r.grants, connectionID)
	return nil
}

func (r *testGrantRepo) ListByConnection(ctx context.Context, connectionID string) ([]Grant, error) {
	byRecord := r.grants[connectionID]
	out := make([]Grant, 0, len(byRecord))
	for _, g := range byRecord {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out, nil
}

func (r *testGrantRepo) CountByConnection(ctx context.Context, connectionID string) (int, error) {
	return len(r.grants[connectionID]), nil
}

type testConnStore struct {
	conns        map[string]connections.Connection
	setModeCalls int
}

func (s *testConnStore) GetByID(ctx context.Context, id string) (connections.Connection, error) {
	c, ok := s.conns[id]
	if !ok {
		return connections.Connection{}, errStubNotFound
	}
	return c, nil
}

func (s *testConnStore) SetShareMode(ctx context.Context, id string, mode connections.ShareMode) error {
	s.setModeCalls++
	c, ok := s.conns[id]
	if !ok {
		return errStubNotFound
	}
	c.ShareMode = mode
	s.conns[id] = c
	return nil
}

type testCatalog struct {
	recs map[string]records.Record
}

func (c *testCatalog) GetByID(ctx context.Context, id string) (records.Record, error) {
	rec, ok := c.recs[id]
	if !ok || rec.Status == records.StatusDeleted {
		return records.Record{}, errStubNotFound
	}
	return rec, nil
}

func (c *testCatalog) ListByPatient(ctx context.Context, patientID string) ([]records.Record, error) {
	out := make([]records.Record, 0)
	for _, rec := range c.recs {
		if rec.PatientID == patientID && rec.Status != records.StatusDeleted {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Fixture: conexión aprobada c1 (patient-1, doctor-1) con records r1..r3
// del paciente y r-other de otro paciente.
func newTestSharingService() (*Service, *testGrantRepo, *testConnStore, *testCatalog) {
	repo := newTestGrantRepo()

	conns := &testConnStore{conns: map[string]connections.Connection{
		"c1": {
			ID:        "c1",
			PatientID: "patient-1",
			DoctorID:  "doctor-1",
			Status:    connections.StatusApproved,
			ShareMode: connections.ShareModeAll,
			Version:   2,
		},
		"c-pending": {
			ID:        "c-pending",
			PatientID: "patient-1",
			DoctorID:  "doctor-2",
			Status:    connections.StatusPending,
			ShareMode: connections.ShareModeAll,
			Version:   1,
		},
	}}

	catalog := &testCatalog{recs: map[string]records.Record{
		"r1":      {ID: "r1", PatientID: "patient-1", Title: "Hemograma", Status: records.StatusActive},
		"r2":      {ID: "r2", PatientID: "patient-1", Title: "Radiografía", Status: records.StatusActive},
		"r3":      {ID: "r3", PatientID: "patient-1", Title: "Receta", Status: records.StatusActive},
		"r-other": {ID: "r-other", PatientID: "patient-9", Title: "Ajeno", Status: records.StatusActive},
	}}

	log := logger.New(logger.Options{Level: logger.Error})
	svc := NewService(repo, conns, catalog, log)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 12, 8, 0, 0, 0, time.UTC)
	}
	return svc, repo, conns, catalog
}

func visibleIDs(set VisibleSet) []string {
	ids := make([]string, 0, len(set.Records))
	for _, r := range set.Records {
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// -------------------------
// Tests
// -------------------------

func TestService_VisibleRecords_DefaultShareAll(t *testing.T) {
	svc, _, _, _ := newTestSharingService()

	set, err := svc.VisibleRecords(context.Background(), "c1", connections.RoleDoctor, "doctor-1")
	if err != nil {
		t.Fatalf("VisibleRecords error: %v", err)
	}
	if set.Mode != connections.ShareModeAll {
		t.Fatalf("expected share-all mode, got %s", set.Mode)
	}
	if got := visibleIDs(set); !equalIDs(got, []string{"r1", "r2", "r3"}) {
		t.Fatalf("expected all patient records visible, got %v", got)
	}
}

func TestService_Share_SwitchesToExplicit(t *testing.T) {
	svc, _, conns, _ := newTestSharingService()

	if err := svc.Share(context.Background(), "c1", []string{"r1"}, "patient-1"); err != nil {
		t.Fatalf("Share error: %v", err)
	}
	if conns.conns["c1"].ShareMode != connections.ShareModeExplicit {
		t.Fatalf("expected stored mode explicit after first grant")
	}

	set, err := svc.VisibleRecords(context.Background(), "c1", connections.RoleDoctor, "doctor-1")
	if err != nil {
		t.Fatalf("VisibleRecords error: %v", err)
	}
	if set.Mode != connections.ShareModeExplicit {
		t.Fatalf("expected explicit mode, got %s", set.Mode)
	}
	if got := visibleIDs(set); !equalIDs(got, []string{"r1"}) {
		t.Fatalf("expected only r1 visible, got %v", got)
	}
}

func TestService_Share_NotApproved(t *testing.T) {
	svc, repo, _, _ := newTestSharingService()

	if err := svc.Share(context.Background(), "c-pending", []string{"r1"}, "patient-1"); err != ErrNotApproved {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
	if n, _ := repo.CountByConnection(context.Background(), "c-pending"); n != 0 {
		t.Fatalf("expected no grants on pending connection, got %d", n)
	}
}

func TestService_Share_ForeignRecord_Unauthorized(t *testing.T) {
	svc, _, _, _ := newTestSharingService()

	err := svc.Share(context.Background(), "c1", []string{"r-other"}, "patient-1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected wrapped ErrUnauthorized, got %v", err)
	}
}

func TestService_Share_MissingRecord_AtomicBatch(t *testing.T) {
	svc, repo, _, _ := newTestSharingService()

	// Batch mixto: r1 válido + ghost inexistente. No debe escribirse NADA.
	err := svc.Share(context.Background(), "c1", []string{"r1", "ghost"}, "patient-1")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected wrapped ErrRecordNotFound, got %v", err)
	}
	if n, _ := repo.CountByConnection(context.Background(), "c1"); n != 0 {
		t.Fatalf("partial write: expected 0 grants, got %d", n)
	}
}

func TestService_Share_NotOwner(t *testing.T) {
	svc, _, _, _ := newTestSharingService()

	if err := svc.Share(context.Background(), "c1", []string{"r1"}, "patient-9"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for stranger, got %v", err)
	}
}

func TestService_Share_DuplicateGrant_Idempotent(t *testing.T) {
	svc, repo, _, _ := newTestSharingService()

	if err := svc.Share(context.Background(), "c1", []string{"r1"}, "patient-1"); err != nil {
		t.Fatalf("first Share error: %v", err)
	}
	if err := svc.Share(context.Background(), "c1", []string{"r1", "r1"}, "patient-1"); err != nil {
		t.Fatalf("duplicate Share error: %v", err)
	}
	if n, _ := repo.CountByConnection(context.Background(), "c1"); n != 1 {
		t.Fatalf("expected 1 grant, got %d", n)
	}
}

func TestService_ShareAll_ClearsGrants(t *testing.T) {
	svc, repo, conns, _ := newTestSharingService()

	if err := svc.Share(context.Background(), "c1", []string{"r1", "r2"}, "patient-1"); err != nil {
		t.Fatalf("Share error: %v", err)
	}
	if err := svc.ShareAll(context.Background(), "c1", "patient-1"); err != nil {
		t.Fatalf("ShareAll error: %v", err)
	}

	if n, _ := repo.CountByConnection(context.Background(), "c1"); n != 0 {
		t.Fatalf("expected allow-list emptied, got %d grants", n)
	}
	if conns.conns["c1"].ShareMode != connections.ShareModeAll {
		t.Fatalf("expected stored mode all after ShareAll")
	}

	set, err := svc.VisibleRecords(context.Background(), "c1", connections.RoleDoctor, "doctor-1")
	if err != nil {
		t.Fatalf("VisibleRecords error: %v", err)
	}
	if set.Mode != connections.ShareModeAll {
		t.Fatalf("expected share-all after ShareAll, got %s", set.Mode)
	}
	if got := visibleIDs(set); !equalIDs(got, []string{"r1", "r2", "r3"}) {
		t.Fatalf("expected all records visible again, got %v", got)
	}
}

func TestService_Unshare_KeepsExplicitWhileGrantsRemain(t *testing.T) {
	svc, _, _, _ := newTestSharingService()

	if err := svc.Share(context.Background(), "c1", []string{"r1", "r2"}, "patient-1"); err != nil {
		t.Fatalf("Share error: %v", err)
	}

	mode, err := svc.Unshare(context.Background(), "c1", []string{"r1"}, "patient-1")
	if err != nil {
		t.Fatalf("Unshare error: %v", err)
	}
	if mode != connections.ShareModeExplicit {
		t.Fatalf("expected explicit mode with remaining grants, got %s", mode)
	}

	set, _ := svc.VisibleRecords(context.Background(), "c1", connections.RoleDoctor, "doctor-1")
	if got := visibleIDs(set); !equalIDs(got, []string{"r2"}) {
		t.Fatalf("expected only r2 visible, got %v", got)
	}
}

func TestService_Unshare_LastGrantRevertsToShareAll(t *testing.T) {
	svc, _, conns, _ := newTestSharingService()

	if err := svc.Share(context.Background(), "c1", []string{"r1"}, "patient-1"); err != nil {
		t.Fatalf("Share error: %v", err)
	}

	// Quitar el único grant NO deja la conexión sin acceso: vuelve a
	// share-all y el doctor ve TODO de nuevo. El modo devuelto lo delata.
	mode, err := svc.Unshare(context.Background(), "c1", []string{"r1"}, "patient-1")
	if err != nil {
		t.Fatalf("Unshare error: %v", err)
	}
	if mode != connections.ShareModeAll {
		t.Fatalf("expected reversion to share-all, got %s", mode)
	}
	if conns.conns["c1"].ShareMode != connections.ShareModeAll {
		t.Fatalf("expected stored mode reverted to all")
	}

	set, err := svc.VisibleRecords(context.Background(), "c1", connections.RoleDoctor, "doctor-1")
	if err != nil {
		t.Fatalf("VisibleRecords error: %v", err)
	}
	if got := visibleIDs(set); !equalIDs(got, []string{"r1", "r2", "r3"}) {
		t.Fatalf("expected everything visible after last unshare, got %v", got)
	}
}

func TestService_Unshare_NoGrants_NoOp(t *testing.T) {
	svc, _, conns, _ := newTestSharingService()

	// Sin grants no hay nada que borrar: el modo es all pero no se
	// re-persiste ni cuenta como reversión.
	mode, err := svc.Unshare(context.Background(), "c1", []string{"r1"}, "patient-1")
	if err != nil {
		t.Fatalf("Unshare error: %v", err)
	}
	if mode != connections.ShareModeAll {
		t.Fatalf("expected share-all, got %s", mode)
	}
	if conns.setModeCalls != 0 {
		t.Fatalf("expected no SetShareMode call on no-op unshare, got %d", conns.setModeCalls)
	}
}

func TestService_VisibleRecords_StrangerUnauthorized(t *testing.T) {
	svc, _, _, _ := newTestSharingService()

	if _, err := svc.VisibleRecords(context.Background(), "c1", connections.RoleDoctor, "doctor-9"); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for stranger doctor, got %v", err)
	}
	if _, err := svc.VisibleRecords(context.Background(), "c1", connections.RolePatient, "patient-9"); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized for stranger patient, got %v", err)
	}
}

func TestService_VisibleRecords_RevokedConnection(t *testing.T) {
	svc, _, conns, _ := newTestSharingService()

	c := conns.conns["c1"]
	c.Status = connections.StatusRevoked
	conns.conns["c1"] = c

	if _, err := svc.VisibleRecords(context.Background(), "c1", connections.RoleDoctor, "doctor-1"); err != ErrNotApproved {
		t.Fatalf("expected ErrNotApproved after revoke, got %v", err)
	}
}

func TestService_VisibleRecords_SkipsDeletedInExplicitMode(t *testing.T) {
	svc, _, _, catalog := newTestSharingService()

	if err := svc.Share(context.Background(), "c1", []string{"r1", "r2"}, "patient-1"); err != nil {
		t.Fatalf("Share error: %v", err)
	}

	rec := catalog.recs["r1"]
	rec.Status = records.StatusDeleted
	catalog.recs["r1"] = rec

	set, err := svc.VisibleRecords(context.Background(), "c1", connections.RoleDoctor, "doctor-1")
	if err != nil {
		t.Fatalf("VisibleRecords error: %v", err)
	}
	if set.Mode != connections.ShareModeExplicit {
		t.Fatalf("expected explicit mode (grants remain), got %s", set.Mode)
	}
	if got := visibleIDs(set); !equalIDs(got, []string{"r2"}) {
		t.Fatalf("expected deleted record skipped, got %v", got)
	}
}

func TestService_UnknownConnection(t *testing.T) {
	svc, _, _, _ := newTestSharingService()

	if err := svc.Share(context.Background(), "ghost", []string{"r1"}, "patient-1"); err != ErrNotFound {
		t.Fatalf("Share: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.VisibleRecords(context.Background(), "ghost", connections.RoleDoctor, "doctor-1"); err != ErrNotFound {
		t.Fatalf("VisibleRecords: expected ErrNotFound, got %v", err)
	}
}
