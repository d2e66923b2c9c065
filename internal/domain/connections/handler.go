package connections

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"medical-consent/internal/middleware"
	"medical-consent/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/connections", func(cr chi.Router) {
		// Paciente solicita vínculo con un doctor
		cr.Post("/", requestConnectionHandler(svc))

		// Lista las conexiones del usuario autenticado (según su rol)
		cr.Get("/", listConnectionsHandler(svc))

		// Gate de features dependientes: ¿la pareja está aprobada?
		cr.Get("/approved", isApprovedHandler(svc))

		// Decisiones del doctor sobre la fila
		cr.Post("/{connectionID}/approve", approveConnectionHandler(svc))
		cr.Post("/{connectionID}/reject", rejectConnectionHandler(svc))
		cr.Post("/{connectionID}/revoke", revokeConnectionHandler(svc))
	})
}

type requestConnectionRequest struct {
	DoctorID string `json:"doctor_id"`
}

type connectionResponse struct {
	ID          string     `json:"id"`
	PatientID   string     `json:"patient_id"`
	DoctorID    string     `json:"doctor_id"`
	Status      Status     `json:"status"`
	ShareMode   ShareMode  `json:"share_mode"`
	RequestedAt time.Time  `json:"requested_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

func requestConnectionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != auth.RolePatient {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		var req requestConnectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		c, err := svc.Request(r.Context(), claims.UserID, req.DoctorID)
		if err != nil {
			writeConnectionError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toConnectionResponse(c))
	}
}

func listConnectionsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var (
			items []Connection
			err   error
		)
		switch claims.Role {
		case auth.RoleDoctor:
			items, err = svc.ListByDoctor(r.Context(), claims.UserID)
		default:
			items, err = svc.ListByPatient(r.Context(), claims.UserID)
		}
		if err != nil {
			writeConnectionError(w, err)
			return
		}

		// status=pending,approved (CSV opcional)
		if allowed := parseStatusFilter(r.URL.Query().Get("status")); len(allowed) > 0 {
			filtered := make([]Connection, 0, len(items))
			for _, c := range items {
				if _, ok := allowed[c.Status]; ok {
					filtered = append(filtered, c)
				}
			}
			items = filtered
		}

		out := make([]connectionResponse, 0, len(items))
		for _, c := range items {
			out = append(out, toConnectionResponse(c))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func isApprovedHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		patientID := strings.TrimSpace(r.URL.Query().Get("patient_id"))
		doctorID := strings.TrimSpace(r.URL.Query().Get("doctor_id"))

		approved, err := svc.IsApproved(r.Context(), patientID, doctorID)
		if err != nil {
			writeConnectionError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"approved": approved})
	}
}

func approveConnectionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireDoctor(w, r)
		if !ok {
			return
		}

		c, err := svc.Approve(r.Context(), chi.URLParam(r, "connectionID"), claims.UserID)
		if err != nil {
			writeConnectionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toConnectionResponse(c))
	}
}

func rejectConnectionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireDoctor(w, r)
		if !ok {
			return
		}

		c, err := svc.Reject(r.Context(), chi.URLParam(r, "connectionID"), claims.UserID)
		if err != nil {
			writeConnectionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toConnectionResponse(c))
	}
}

func revokeConnectionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireDoctor(w, r)
		if !ok {
			return
		}

		if err := svc.Revoke(r.Context(), chi.URLParam(r, "connectionID"), claims.UserID); err != nil {
			writeConnectionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func requireDoctor(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return auth.Claims{}, false
	}
	if claims.Role != auth.RoleDoctor {
		http.Error(w, "forbidden", http.StatusForbidden)
		return auth.Claims{}, false
	}
	return claims, true
}

func writeConnectionError(w http.ResponseWriter, err error) {
	switch err {
	case ErrInvalidInput:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case ErrUnauthorized:
		http.Error(w, "forbidden", http.StatusForbidden)
	case ErrNotFound:
		http.Error(w, "not found", http.StatusNotFound)
	case ErrAlreadyPending, ErrAlreadyApproved, ErrInvalidTransition:
		http.Error(w, err.Error(), http.StatusConflict)
	case ErrDoctorUnverified:
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toConnectionResponse(c Connection) connectionResponse {
	return connectionResponse{
		ID:          c.ID,
		PatientID:   c.PatientID,
		DoctorID:    c.DoctorID,
		Status:      c.Status,
		ShareMode:   c.ShareMode,
		RequestedAt: c.RequestedAt,
		RespondedAt: c.RespondedAt,
	}
}

func parseStatusFilter(raw string) map[Status]struct{} {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := map[Status]struct{}{}
	for _, p := range strings.Split(raw, ",") {
		s := Status(strings.TrimSpace(p))
		if s == "" {
			continue
		}
		out[s] = struct{}{}
	}
	return out
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
