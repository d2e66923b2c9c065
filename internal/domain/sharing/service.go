package sharing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medical-consent/internal/domain/connections"
	"medical-consent/internal/domain/records"
	"medical-consent/internal/platform/logger"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotApproved    = errors.New("connection not approved")
	ErrRecordNotFound = errors.New("record not found")
)

// ConnectionStore evita acoplar sharing al service concreto de connections
// (rompe ciclos; mismo criterio que en el resto de módulos).
type ConnectionStore interface {
	GetByID(ctx context.Context, id string) (connections.Connection, error)
	SetShareMode(ctx context.Context, id string, mode connections.ShareMode) error
}

// RecordCatalog es el lookup de records del paciente.
// Ambos métodos filtran soft-deleted.
type RecordCatalog interface {
	GetByID(ctx context.Context, id string) (records.Record, error)
	ListByPatient(ctx context.Context, patientID string) ([]records.Record, error)
}

type Service struct {
	repo    Repository
	conns   ConnectionStore
	catalog RecordCatalog
	log     logger.Logger
	now     func() time.Time
}

func NewService(repo Repository, conns ConnectionStore, catalog RecordCatalog, log logger.Logger) *Service {
	return &Service{
		repo:    repo,
		conns:   conns,
		catalog: catalog,
		log:     log,
		now:     time.Now,
	}
}

// Share agrega records al allow-list explícito de la conexión.
// Solo el paciente dueño, solo con la conexión aprobada.
//
// La validación es todo-o-nada: si CUALQUIER id falla (no existe, o no es del
// paciente), no se escribe ningún grant. Los ids ofensores se agregan al error.
//
// Ojo: el primer grant apaga share-all para TODOS los records de la conexión,
// no solo para los futuros.
func (s *Service) Share(ctx context.Context, connectionID string, recordIDs []string, patientID string) error {
	connectionID = strings.TrimSpace(connectionID)
	patientID = strings.TrimSpace(patientID)
	ids := normalizeIDs(recordIDs)

	if connectionID == "" || patientID == "" || len(ids) == 0 {
		return ErrInvalidInput
	}

	c, err := s.conns.GetByID(ctx, connectionID)
	if err != nil {
		return ErrNotFound
	}
	if err := connections.AuthorizeParty(c, connections.RolePatient, patientID); err != nil {
		return ErrUnauthorized
	}
	if c.Status != connections.StatusApproved {
		return ErrNotApproved
	}

	var missing, foreign []string
	for _, rid := range ids {
		rec, err := s.catalog.GetByID(ctx, rid)
		if err != nil {
			missing = append(missing, rid)
			continue
		}
		if rec.PatientID != c.PatientID {
			foreign = append(foreign, rid)
		}
	}
	if len(foreign) > 0 {
		return fmt.Errorf("%w: records not owned by patient: %s", ErrUnauthorized, strings.Join(foreign, ","))
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, strings.Join(missing, ","))
	}

	now := s.now()
	grants := make([]Grant, 0, len(ids))
	for _, rid := range ids {
		grants = append(grants, Grant{
			ConnectionID: c.ID,
			RecordID:     rid,
			CreatedAt:    now,
		})
	}

	if err := s.repo.InsertBatch(ctx, grants); err != nil {
		return err
	}
	return s.conns.SetShareMode(ctx, c.ID, connections.ShareModeExplicit)
}

// Unshare quita grants del allow-list. Solo el paciente dueño.
// No exige conexión aprobada: limpiar grants dormidos es válido.
//
// Quitar el ÚLTIMO grant re-activa share-all en silencio. Devolvemos el modo
// resultante para que el caller pueda avisarle al paciente.
func (s *Service) Unshare(ctx context.Context, connectionID string, recordIDs []string, patientID string) (connections.ShareMode, error) {
	connectionID = strings.TrimSpace(connectionID)
	patientID = strings.TrimSpace(patientID)
	ids := normalizeIDs(recordIDs)

	if connectionID == "" || patientID == "" || len(ids) == 0 {
		return "", ErrInvalidInput
	}

	c, err := s.conns.GetByID(ctx, connectionID)
	if err != nil {
		return "", ErrNotFound
	}
	if err := connections.AuthorizeParty(c, connections.RolePatient, patientID); err != nil {
		return "", ErrUnauthorized
	}

	before, err := s.repo.CountByConnection(ctx, c.ID)
	if err != nil {
		return "", err
	}

	if err := s.repo.Delete(ctx, c.ID, ids); err != nil {
		return "", err
	}

	n, err := s.repo.CountByConnection(ctx, c.ID)
	if err != nil {
		return "", err
	}
	if n > 0 {
		return connections.ShareModeExplicit, nil
	}

	// Ya estaba vacío: no se borró nada, no hay modo que persistir ni
	// reversión que avisar.
	if before == 0 {
		return connections.ShareModeAll, nil
	}

	if err := s.conns.SetShareMode(ctx, c.ID, connections.ShareModeAll); err != nil {
		return "", err
	}
	s.log.Warn("unshare removed last grant; connection is back to share-all", map[string]any{
		"connection_id": c.ID,
	})
	return connections.ShareModeAll, nil
}

// ShareAll vacía el allow-list: la conexión vuelve al modo default
// donde el doctor ve todos los records del paciente.
func (s *Service) ShareAll(ctx context.Context, connectionID, patientID string) error {
	connectionID = strings.TrimSpace(connectionID)
	patientID = strings.TrimSpace(patientID)
	if connectionID == "" || patientID == "" {
		return ErrInvalidInput
	}

	c, err := s.conns.GetByID(ctx, connectionID)
	if err != nil {
		return ErrNotFound
	}
	if err := connections.AuthorizeParty(c, connections.RolePatient, patientID); err != nil {
		return ErrUnauthorized
	}
	if c.Status != connections.StatusApproved {
		return ErrNotApproved
	}

	if err := s.repo.DeleteAll(ctx, c.ID); err != nil {
		return err
	}
	return s.conns.SetShareMode(ctx, c.ID, connections.ShareModeAll)
}

// VisibleRecords computa el subconjunto visible para quien pregunta.
// El requester tiene que ser parte de la conexión (cualquiera de los dos
// lados) y la conexión tiene que estar aprobada.
func (s *Service) VisibleRecords(ctx context.Context, connectionID string, role connections.Role, requesterID string) (VisibleSet, error) {
	connectionID = strings.TrimSpace(connectionID)
	requesterID = strings.TrimSpace(requesterID)
	if connectionID == "" || requesterID == "" {
		return VisibleSet{}, ErrInvalidInput
	}

	c, err := s.conns.GetByID(ctx, connectionID)
	if err != nil {
		return VisibleSet{}, ErrNotFound
	}
	if err := connections.AuthorizeParty(c, role, requesterID); err != nil {
		return VisibleSet{}, ErrUnauthorized
	}
	if c.Status != connections.StatusApproved {
		return VisibleSet{}, ErrNotApproved
	}

	grants, err := s.repo.ListByConnection(ctx, c.ID)
	if err != nil {
		return VisibleSet{}, err
	}

	// Cero grants => share-all, sin importar lo que diga la fila
	// (shim de compatibilidad con el modelo implícito).
	if len(grants) == 0 {
		recs, err := s.catalog.ListByPatient(ctx, c.PatientID)
		if err != nil {
			return VisibleSet{}, err
		}
		return VisibleSet{Records: recs, Mode: connections.ShareModeAll}, nil
	}

	out := make([]records.Record, 0, len(grants))
	for _, g := range grants {
		rec, err := s.catalog.GetByID(ctx, g.RecordID)
		if err != nil {
			// Grants pueden apuntar a records ya borrados; se omiten.
			continue
		}
		out = append(out, rec)
	}
	return VisibleSet{Records: out, Mode: connections.ShareModeExplicit}, nil
}

func normalizeIDs(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, raw := range in {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
