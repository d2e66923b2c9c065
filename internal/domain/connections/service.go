package connections

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"medical-consent/internal/ports/profiles"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrAlreadyPending    = errors.New("request already pending")
	ErrAlreadyApproved   = errors.New("connection already approved")
	ErrDoctorUnverified  = errors.New("doctor not verified")
)

type Service struct {
	repo      Repository
	directory profiles.Directory
	now       func() time.Time
}

func NewService(repo Repository, directory profiles.Directory) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		now:       time.Now,
	}
}

// Request crea (o re-abre) la solicitud del paciente hacia un doctor.
// Reglas:
//   - paciente y doctor deben existir; el doctor además debe estar verified
//   - sin fila previa => se crea en pending
//   - rejected/revoked => vuelve a pending sobre la MISMA fila
//   - pending => ErrAlreadyPending; approved => ErrAlreadyApproved
//
// No toca los grants: los de un período aprobado anterior quedan dormidos.
func (s *Service) Request(ctx context.Context, patientID, doctorID string) (Connection, error) {
	patientID = strings.TrimSpace(patientID)
	doctorID = strings.TrimSpace(doctorID)

	if patientID == "" || doctorID == "" {
		return Connection{}, ErrInvalidInput
	}

	if _, err := s.directory.Patient(ctx, patientID); err != nil {
		return Connection{}, ErrNotFound
	}
	doc, err := s.directory.Doctor(ctx, doctorID)
	if err != nil {
		return Connection{}, ErrNotFound
	}
	if !doc.Verified {
		return Connection{}, ErrDoctorUnverified
	}

	now := s.now()

	existing, err := s.repo.GetByPair(ctx, patientID, doctorID)
	if err == nil {
		switch existing.Status {
		case StatusPending:
			return Connection{}, ErrAlreadyPending
		case StatusApproved:
			return Connection{}, ErrAlreadyApproved
		case StatusRejected, StatusRevoked:
			prev := existing.Version
			existing.Status = StatusPending
			existing.RequestedAt = now
			existing.RespondedAt = nil
			existing.Version++

			if err := s.repo.Update(ctx, existing, prev); err != nil {
				if errors.Is(err, ErrConflict) {
					return Connection{}, ErrInvalidTransition
				}
				return Connection{}, err
			}
			return existing, nil
		default:
			return Connection{}, ErrInvalidTransition
		}
	}

	c := Connection{
		ID:          uuid.NewString(),
		PatientID:   patientID,
		DoctorID:    doctorID,
		Status:      StatusPending,
		ShareMode:   ShareModeAll,
		RequestedAt: now,
		Version:     1,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicatePair) {
			// Carrera entre dos requests de la misma pareja: para el caller
			// es indistinguible de "ya había una pendiente".
			return Connection{}, ErrAlreadyPending
		}
		return Connection{}, err
	}
	return c, nil
}

// Approve acepta una solicitud pendiente. Solo el doctor dueño de la fila.
func (s *Service) Approve(ctx context.Context, connectionID, doctorID string) (Connection, error) {
	return s.respond(ctx, connectionID, doctorID, StatusApproved)
}

// Reject rechaza una solicitud pendiente. Solo el doctor dueño de la fila.
func (s *Service) Reject(ctx context.Context, connectionID, doctorID string) (Connection, error) {
	return s.respond(ctx, connectionID, doctorID, StatusRejected)
}

func (s *Service) respond(ctx context.Context, connectionID, doctorID string, to Status) (Connection, error) {
	connectionID = strings.TrimSpace(connectionID)
	doctorID = strings.TrimSpace(doctorID)
	if connectionID == "" || doctorID == "" {
		return Connection{}, ErrInvalidInput
	}

	c, err := s.repo.GetByID(ctx, connectionID)
	if err != nil {
		return Connection{}, ErrNotFound
	}
	if err := AuthorizeParty(c, RoleDoctor, doctorID); err != nil {
		return Connection{}, err
	}
	if c.Status != StatusPending {
		return Connection{}, ErrInvalidTransition
	}

	now := s.now()
	prev := c.Version
	c.Status = to
	c.RespondedAt = &now
	c.Version++

	if err := s.repo.Update(ctx, c, prev); err != nil {
		if errors.Is(err, ErrConflict) {
			// Alguien respondió primero (p.ej. approve y reject simultáneos):
			// el perdedor se entera, nunca pisa.
			return Connection{}, ErrInvalidTransition
		}
		return Connection{}, err
	}
	return c, nil
}

// Revoke corta el acceso de una conexión aprobada. Solo el doctor.
// No borra la fila ni los grants: quedan dormidos hasta una re-aprobación.
func (s *Service) Revoke(ctx context.Context, connectionID, doctorID string) error {
	connectionID = strings.TrimSpace(connectionID)
	doctorID = strings.TrimSpace(doctorID)
	if connectionID == "" || doctorID == "" {
		return ErrInvalidInput
	}

	c, err := s.repo.GetByID(ctx, connectionID)
	if err != nil {
		return ErrNotFound
	}
	if err := AuthorizeParty(c, RoleDoctor, doctorID); err != nil {
		return err
	}
	if c.Status != StatusApproved {
		return ErrInvalidTransition
	}

	now := s.now()
	prev := c.Version
	c.Status = StatusRevoked
	c.RespondedAt = &now
	c.Version++

	if err := s.repo.Update(ctx, c, prev); err != nil {
		if errors.Is(err, ErrConflict) {
			return ErrInvalidTransition
		}
		return err
	}
	return nil
}

// IsApproved es el gate que consultan las features dependientes
// (turnos, recetas, ratings, mensajería) antes de actuar.
// Lectura pura: nunca muta nada. Sin fila => false, sin error.
func (s *Service) IsApproved(ctx context.Context, patientID, doctorID string) (bool, error) {
	patientID = strings.TrimSpace(patientID)
	doctorID = strings.TrimSpace(doctorID)
	if patientID == "" || doctorID == "" {
		return false, ErrInvalidInput
	}

	c, err := s.repo.GetByPair(ctx, patientID, doctorID)
	if err != nil {
		return false, nil
	}
	return c.Status == StatusApproved, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Connection, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Connection{}, ErrInvalidInput
	}
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Connection{}, ErrNotFound
	}
	return c, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Connection, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByPatient(ctx, patientID)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID string) ([]Connection, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByDoctor(ctx, doctorID)
}

// SetShareMode lo usa el módulo sharing cuando cambia el set de grants.
func (s *Service) SetShareMode(ctx context.Context, id string, mode ShareMode) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidInput
	}
	if mode != ShareModeAll && mode != ShareModeExplicit {
		return ErrInvalidInput
	}
	return s.repo.SetShareMode(ctx, id, mode)
}
