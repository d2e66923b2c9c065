package records

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
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

type CreateInput struct {
	Title    string
	Category Category
	Notes    string
}

func (s *Service) Create(ctx context.Context, patientID string, in CreateInput) (Record, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return Record{}, ErrInvalidInput
	}
	if strings.TrimSpace(in.Title) == "" {
		return Record{}, ErrInvalidInput
	}

	cat, err := normalizeCategory(in.Category)
	if err != nil {
		return Record{}, err
	}

	now := s.now()
	rec := Record{
		ID:        uuid.NewString(),
		PatientID: patientID,
		Title:     strings.TrimSpace(in.Title),
		Category:  cat,
		Notes:     strings.TrimSpace(in.Notes),
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, ErrInvalidInput
	}
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]Record, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByPatient(ctx, patientID)
}

// Delete (soft) solo lo puede hacer el paciente dueño.
func (s *Service) Delete(ctx context.Context, id, patientID string) error {
	id = strings.TrimSpace(id)
	patientID = strings.TrimSpace(patientID)
	if id == "" || patientID == "" {
		return ErrInvalidInput
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return ErrNotFound
	}
	if rec.PatientID != patientID {
		return ErrUnauthorized
	}

	return s.repo.Delete(ctx, id)
}

func normalizeCategory(in Category) (Category, error) {
	c := Category(strings.TrimSpace(string(in)))
	if c == "" {
		return CategoryOther, nil
	}
	switch c {
	case CategoryLabResult, CategoryPrescription, CategoryImaging, CategoryClinicalNote, CategoryOther:
		return c, nil
	default:
		return "", ErrInvalidInput
	}
}
