package appointments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotApproved  = errors.New("connection not approved")
)

// ApprovalGate es el predicado que habilita CUALQUIER feature dependiente
// de la relación paciente↔doctor. Lo implementa connections.Service.
// Es lectura pura: nunca muta conexiones ni grants.
type ApprovalGate interface {
	IsApproved(ctx context.Context, patientID, doctorID string) (bool, error)
}

type Service struct {
	repo Repository
	gate ApprovalGate
	now  func() time.Time
}

func NewService(repo Repository, gate ApprovalGate) *Service {
	return &Service{
		repo: repo,
		gate: gate,
		now:  time.Now,
	}
}

type BookInput struct {
	DoctorID string
	StartsAt time.Time
	Reason   string
}

// Book agenda un turno. Pasa primero por el gate: sin conexión aprobada
// no hay turno, sin importar cualquier otra regla.
func (s *Service) Book(ctx context.Context, patientID string, in BookInput) (Appointment, error) {
	patientID = strings.TrimSpace(patientID)
	doctorID := strings.TrimSpace(in.DoctorID)

	if patientID == "" || doctorID == "" {
		return Appointment{}, ErrInvalidInput
	}
	if in.StartsAt.IsZero() {
		return Appointment{}, ErrInvalidInput
	}

	ok, err := s.gate.IsApproved(ctx, patientID, doctorID)
	if err != nil {
		return Appointment{}, err
	}
	if !ok {
		return Appointment{}, ErrNotApproved
	}

	now := s.now()
	a := Appointment{
		ID:        uuid.NewString(),
		PatientID: patientID,
		DoctorID:  doctorID,
		StartsAt:  in.StartsAt,
		Reason:    strings.TrimSpace(in.Reason),
		Status:    StatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return Appointment{}, err
	}
	return a, nil
}

// Cancel lo puede hacer cualquiera de las dos partes. Idempotente.
func (s *Service) Cancel(ctx context.Context, id, actorID string) (Appointment, error) {
	id = strings.TrimSpace(id)
	actorID = strings.TrimSpace(actorID)
	if id == "" || actorID == "" {
		return Appointment{}, ErrInvalidInput
	}

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Appointment{}, ErrNotFound
	}
	if a.PatientID != actorID && a.DoctorID != actorID {
		return Appointment{}, ErrUnauthorized
	}

	if a.Status == StatusCancelled {
		return a, nil
	}

	a.Status = StatusCancelled
	a.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, a); err != nil {
		return Appointment{}, err
	}
	return a, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByDoctor(ctx, doctorID)
}
