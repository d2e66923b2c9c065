package appointments

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errRepoNotFound = errors.New("repo: not found")

type testRepo struct {
	appts map[string]Appointment
}

func newTestRepo() *testRepo {
	return &testRepo{appts: map[string]Appointment{}}
}

func (r *testRepo) Create(ctx context.Context, a Appointment) error {
	r.appts[a.ID] = a
	return nil
}

func (r *testRepo) Update(ctx context.Context, a Appointment) error {
	if _, ok := r.appts[a.ID]; !ok {
		return errRepoNotFound
	}
	r.appts[a.ID] = a
	return nil
}

func (r *testRepo) GetByID(ctx context.Context, id string) (Appointment, error) {
	a, ok := r.appts[id]
	if !ok {
		return Appointment{}, errRepoNotFound
	}
	return a, nil
}

func (r *testRepo) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	out := make([]Appointment, 0)
	for _, a := range r.appts {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *testRepo) ListByDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	out := make([]Appointment, 0)
	for _, a := range r.appts {
		if a.DoctorID == doctorID {
			out = append(out, a)
		}
	}
	return out, nil
}

// testGate aprueba solo los pares seteados.
type testGate struct {
	approved map[string]bool
}

func (g *testGate) IsApproved(ctx context.Context, patientID, doctorID string) (bool, error) {
	return g.approved[patientID+"|"+doctorID], nil
}

func newTestApptService(approvedPairs ...string) (*Service, *testRepo) {
	repo := newTestRepo()
	gate := &testGate{approved: map[string]bool{}}
	for _, p := range approvedPairs {
		gate.approved[p] = true
	}
	svc := NewService(repo, gate)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	}
	return svc, repo
}

func TestService_Book_RequiresApprovedConnection(t *testing.T) {
	svc, repo := newTestApptService() // sin pares aprobados

	_, err := svc.Book(context.Background(), "patient-1", BookInput{
		DoctorID: "doctor-1",
		StartsAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != ErrNotApproved {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
	if len(repo.appts) != 0 {
		t.Fatalf("expected no appointment created, got %d", len(repo.appts))
	}
}

func TestService_Book_WithApprovedConnection(t *testing.T) {
	svc, _ := newTestApptService("patient-1|doctor-1")

	startsAt := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	a, err := svc.Book(context.Background(), "patient-1", BookInput{
		DoctorID: "doctor-1",
		StartsAt: startsAt,
		Reason:   "  control anual ",
	})
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}
	if a.Status != StatusScheduled {
		t.Fatalf("expected scheduled, got %s", a.Status)
	}
	if !a.StartsAt.Equal(startsAt) {
		t.Fatalf("expected StartsAt preserved")
	}
	if a.Reason != "control anual" {
		t.Fatalf("expected trimmed reason, got %q", a.Reason)
	}
}

func TestService_Book_InvalidInput(t *testing.T) {
	svc, _ := newTestApptService("patient-1|doctor-1")

	if _, err := svc.Book(context.Background(), "patient-1", BookInput{DoctorID: "doctor-1"}); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput for zero StartsAt, got %v", err)
	}
	if _, err := svc.Book(context.Background(), "", BookInput{DoctorID: "doctor-1", StartsAt: time.Now()}); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput for empty patient, got %v", err)
	}
}

func TestService_Cancel_ByEitherParty_Idempotent(t *testing.T) {
	svc, _ := newTestApptService("patient-1|doctor-1")

	a, err := svc.Book(context.Background(), "patient-1", BookInput{
		DoctorID: "doctor-1",
		StartsAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}

	got, err := svc.Cancel(context.Background(), a.ID, "doctor-1")
	if err != nil {
		t.Fatalf("Cancel by doctor error: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}

	// Segundo cancel (ahora del paciente): no-op, mismo resultado.
	again, err := svc.Cancel(context.Background(), a.ID, "patient-1")
	if err != nil {
		t.Fatalf("second Cancel error: %v", err)
	}
	if again.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", again.Status)
	}
}

func TestService_Cancel_Stranger(t *testing.T) {
	svc, _ := newTestApptService("patient-1|doctor-1")

	a, err := svc.Book(context.Background(), "patient-1", BookInput{
		DoctorID: "doctor-1",
		StartsAt: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Book error: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), a.ID, "doctor-9"); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestService_Cancel_Unknown(t *testing.T) {
	svc, _ := newTestApptService()

	if _, err := svc.Cancel(context.Background(), "ghost", "patient-1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
