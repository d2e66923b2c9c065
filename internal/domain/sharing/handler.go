package sharing

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"medical-consent/internal/domain/connections"
	"medical-consent/internal/middleware"
	"medical-consent/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	// Mismo nodo {connectionID} que usa el módulo connections:
	// el nombre del param tiene que coincidir para que chi los mergee.
	r.Route("/connections/{connectionID}", func(sr chi.Router) {
		sr.Post("/shares", shareRecordsHandler(svc))
		sr.Delete("/shares", unshareRecordsHandler(svc))
		sr.Post("/shares/all", shareAllHandler(svc))
		sr.Get("/records", visibleRecordsHandler(svc))
	})
}

type shareRequest struct {
	RecordIDs []string `json:"record_ids"`
}

type unshareResponse struct {
	Mode    connections.ShareMode `json:"mode"`
	Warning string                `json:"warning,omitempty"`
}

type visibleRecordResponse struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

type visibleRecordsResponse struct {
	Mode    connections.ShareMode   `json:"mode"`
	Records []visibleRecordResponse `json:"records"`
}

func shareRecordsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requirePatient(w, r)
		if !ok {
			return
		}

		var req shareRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		err := svc.Share(r.Context(), chi.URLParam(r, "connectionID"), req.RecordIDs, claims.UserID)
		if err != nil {
			writeSharingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func unshareRecordsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requirePatient(w, r)
		if !ok {
			return
		}

		var req shareRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		mode, err := svc.Unshare(r.Context(), chi.URLParam(r, "connectionID"), req.RecordIDs, claims.UserID)
		if err != nil {
			writeSharingError(w, err)
			return
		}

		resp := unshareResponse{Mode: mode}
		if mode == connections.ShareModeAll {
			// La UI tiene que mostrar esto: al quedar sin grants,
			// el doctor vuelve a ver TODO.
			resp.Warning = "no explicit grants remain; all records are visible again"
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func shareAllHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requirePatient(w, r)
		if !ok {
			return
		}

		err := svc.ShareAll(r.Context(), chi.URLParam(r, "connectionID"), claims.UserID)
		if err != nil {
			writeSharingError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func visibleRecordsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		role := connections.RolePatient
		if claims.Role == auth.RoleDoctor {
			role = connections.RoleDoctor
		}

		set, err := svc.VisibleRecords(r.Context(), chi.URLParam(r, "connectionID"), role, claims.UserID)
		if err != nil {
			writeSharingError(w, err)
			return
		}

		out := visibleRecordsResponse{
			Mode:    set.Mode,
			Records: make([]visibleRecordResponse, 0, len(set.Records)),
		}
		for _, rec := range set.Records {
			out.Records = append(out.Records, visibleRecordResponse{
				ID:        rec.ID,
				PatientID: rec.PatientID,
				Title:     rec.Title,
				Category:  string(rec.Category),
				Notes:     rec.Notes,
				CreatedAt: rec.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func requirePatient(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return auth.Claims{}, false
	}
	if claims.Role != auth.RolePatient {
		http.Error(w, "forbidden", http.StatusForbidden)
		return auth.Claims{}, false
	}
	return claims, true
}

// Los errores de Share vienen wrapeados con los ids ofensores,
// así que acá se usa errors.Is en vez de switch por igualdad.
func writeSharingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrUnauthorized):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, ErrRecordNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrNotApproved):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
