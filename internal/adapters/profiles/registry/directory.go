package registry

import (
	"context"

	"medical-consent/internal/ports/profiles"
)

// Directory implementa profiles.Directory contra el registry externo.
type Directory struct {
	client *Client
}

func NewDirectory(client *Client) *Directory {
	return &Directory{client: client}
}

func (d *Directory) Patient(ctx context.Context, id string) (profiles.PatientProfile, error) {
	if d == nil || d.client == nil {
		return profiles.PatientProfile{}, ErrRegistryNotConfigured
	}

	dto, err := d.client.GetPatient(ctx, id)
	if err != nil {
		return profiles.PatientProfile{}, err
	}
	return profiles.PatientProfile{
		ID:       dto.ID,
		FullName: dto.FullName,
	}, nil
}

func (d *Directory) Doctor(ctx context.Context, id string) (profiles.DoctorProfile, error) {
	if d == nil || d.client == nil {
		return profiles.DoctorProfile{}, ErrRegistryNotConfigured
	}

	dto, err := d.client.GetDoctor(ctx, id)
	if err != nil {
		return profiles.DoctorProfile{}, err
	}
	return profiles.DoctorProfile{
		ID:        dto.ID,
		FullName:  dto.FullName,
		Specialty: dto.Specialty,
		Verified:  dto.Verified,
	}, nil
}
