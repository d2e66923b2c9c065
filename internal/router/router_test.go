package router

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	mem "medical-consent/internal/adapters/storage/memory"
	"medical-consent/internal/platform/logger"
	"medical-consent/internal/ports/profiles"
)

// doReq arma un request al server de test inyectando identidad por los
// headers de modo dev (sin verifier).
func doReq(t *testing.T, ts *httptest.Server, method, path, userID, role string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		req.Header.Set("X-Debug-User-ID", userID)
		req.Header.Set("X-Debug-Role", role)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := mem.NewDirectory()
	dir.SeedPatient(profiles.PatientProfile{ID: "p1", FullName: "Ana Paciente"})
	dir.SeedDoctor(profiles.DoctorProfile{ID: "d1", FullName: "Dra. García", Specialty: "cardiología", Verified: true})
	dir.SeedDoctor(profiles.DoctorProfile{ID: "d2", FullName: "Dr. López", Specialty: "clínica", Verified: true})
	dir.SeedDoctor(profiles.DoctorProfile{ID: "d-unv", FullName: "Dr. Trucho", Verified: false})

	ts := httptest.NewServer(NewRouter(Options{
		Directory: dir,
		Log:       logger.New(logger.Options{Level: logger.Error}),
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRouter_ConsentLifecycle(t *testing.T) {
	ts := newTestServer(t)

	// Paciente carga dos records
	var r1, r2 struct {
		ID string `json:"id"`
	}
	resp, body := doReq(t, ts, http.MethodPost, "/records", "p1", "patient", map[string]any{
		"title": "Hemograma completo", "category": "lab_result",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create record: expected 201, got %d (%s)", resp.StatusCode, body)
	}
	_ = json.Unmarshal(body, &r1)

	resp, body = doReq(t, ts, http.MethodPost, "/records", "p1", "patient", map[string]any{
		"title": "Radiografía de tórax", "category": "imaging",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create record: expected 201, got %d (%s)", resp.StatusCode, body)
	}
	_ = json.Unmarshal(body, &r2)

	// Doctor no verificado => 422, sin fila
	resp, _ = doReq(t, ts, http.MethodPost, "/connections", "p1", "patient", map[string]string{"doctor_id": "d-unv"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unverified doctor: expected 422, got %d", resp.StatusCode)
	}

	// Solicitud válida => pending
	var conn struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		ShareMode string `json:"share_mode"`
	}
	resp, body = doReq(t, ts, http.MethodPost, "/connections", "p1", "patient", map[string]string{"doctor_id": "d1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("request connection: expected 201, got %d (%s)", resp.StatusCode, body)
	}
	_ = json.Unmarshal(body, &conn)
	if conn.Status != "pending" {
		t.Fatalf("expected pending, got %s", conn.Status)
	}

	// Antes de aprobar el doctor no ve nada: 409
	resp, _ = doReq(t, ts, http.MethodGet, "/connections/"+conn.ID+"/records", "d1", "doctor", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("records before approval: expected 409, got %d", resp.StatusCode)
	}

	// Otro doctor no puede decidir sobre la fila
	resp, _ = doReq(t, ts, http.MethodPost, "/connections/"+conn.ID+"/approve", "d2", "doctor", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("wrong doctor approve: expected 403, got %d", resp.StatusCode)
	}

	// Aprueba el doctor correcto
	resp, body = doReq(t, ts, http.MethodPost, "/connections/"+conn.ID+"/approve", "d1", "doctor", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d (%s)", resp.StatusCode, body)
	}

	// El gate refleja la aprobación
	var gate struct {
		Approved bool `json:"approved"`
	}
	resp, body = doReq(t, ts, http.MethodGet, "/connections/approved?patient_id=p1&doctor_id=d1", "d1", "doctor", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approved gate: expected 200, got %d", resp.StatusCode)
	}
	_ = json.Unmarshal(body, &gate)
	if !gate.Approved {
		t.Fatalf("expected approved=true")
	}

	// Default share-all: el doctor ve los dos records
	var visible struct {
		Mode    string `json:"mode"`
		Records []struct {
			ID string `json:"id"`
		} `json:"records"`
	}
	resp, body = doReq(t, ts, http.MethodGet, "/connections/"+conn.ID+"/records", "d1", "doctor", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("visible records: expected 200, got %d (%s)", resp.StatusCode, body)
	}
	_ = json.Unmarshal(body, &visible)
	if visible.Mode != "all" || len(visible.Records) != 2 {
		t.Fatalf("expected share-all with 2 records, got mode=%s n=%d", visible.Mode, len(visible.Records))
	}

	// Compartir explícitamente solo R1
	resp, _ = doReq(t, ts, http.MethodPost, "/connections/"+conn.ID+"/shares", "p1", "patient", map[string]any{
		"record_ids": []string{r1.ID},
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("share: expected 204, got %d", resp.StatusCode)
	}

	resp, body = doReq(t, ts, http.MethodGet, "/connections/"+conn.ID+"/records", "d1", "doctor", nil)
	_ = json.Unmarshal(body, &visible)
	if visible.Mode != "explicit" || len(visible.Records) != 1 || visible.Records[0].ID != r1.ID {
		t.Fatalf("expected only r1 visible, got mode=%s records=%v", visible.Mode, visible.Records)
	}

	// Quitar el único grant: vuelve a share-all y el response lo avisa
	var unshared struct {
		Mode    string `json:"mode"`
		Warning string `json:"warning"`
	}
	resp, body = doReq(t, ts, http.MethodDelete, "/connections/"+conn.ID+"/shares", "p1", "patient", map[string]any{
		"record_ids": []string{r1.ID},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unshare: expected 200, got %d (%s)", resp.StatusCode, body)
	}
	_ = json.Unmarshal(body, &unshared)
	if unshared.Mode != "all" || unshared.Warning == "" {
		t.Fatalf("expected reversion to all with warning, got %+v", unshared)
	}

	resp, body = doReq(t, ts, http.MethodGet, "/connections/"+conn.ID+"/records", "d1", "doctor", nil)
	_ = json.Unmarshal(body, &visible)
	if visible.Mode != "all" || len(visible.Records) != 2 {
		t.Fatalf("expected everything visible again, got mode=%s n=%d", visible.Mode, len(visible.Records))
	}

	// Con conexión aprobada se puede agendar turno
	resp, body = doReq(t, ts, http.MethodPost, "/appointments", "p1", "patient", map[string]string{
		"doctor_id": "d1",
		"starts_at": "2026-04-01T09:00:00Z",
		"reason":    "control",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("book appointment: expected 201, got %d (%s)", resp.StatusCode, body)
	}

	// Revocar corta el acceso
	resp, _ = doReq(t, ts, http.MethodPost, "/connections/"+conn.ID+"/revoke", "d1", "doctor", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("revoke: expected 204, got %d", resp.StatusCode)
	}

	resp, _ = doReq(t, ts, http.MethodGet, "/connections/"+conn.ID+"/records", "d1", "doctor", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("records after revoke: expected 409, got %d", resp.StatusCode)
	}

	resp, _ = doReq(t, ts, http.MethodPost, "/appointments", "p1", "patient", map[string]string{
		"doctor_id": "d1",
		"starts_at": "2026-05-01T09:00:00Z",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("book after revoke: expected 409, got %d", resp.StatusCode)
	}

	// Re-solicitud: misma fila, vuelve a pending
	var again struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	resp, body = doReq(t, ts, http.MethodPost, "/connections", "p1", "patient", map[string]string{"doctor_id": "d1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("re-request: expected 201, got %d (%s)", resp.StatusCode, body)
	}
	_ = json.Unmarshal(body, &again)
	if again.ID != conn.ID || again.Status != "pending" {
		t.Fatalf("expected same row re-pending, got id=%s status=%s", again.ID, again.Status)
	}
}

func TestRouter_RoleEnforcement(t *testing.T) {
	ts := newTestServer(t)

	// Sin identidad => 401
	resp, _ := doReq(t, ts, http.MethodGet, "/connections", "", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", resp.StatusCode)
	}

	// Un doctor no puede iniciar la solicitud
	resp, _ = doReq(t, ts, http.MethodPost, "/connections", "d1", "doctor", map[string]string{"doctor_id": "d2"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("doctor requesting: expected 403, got %d", resp.StatusCode)
	}

	// Un paciente no puede aprobar
	resp, _ = doReq(t, ts, http.MethodPost, "/connections/whatever/approve", "p1", "patient", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("patient approving: expected 403, got %d", resp.StatusCode)
	}

	// El catálogo de records es solo del paciente
	resp, _ = doReq(t, ts, http.MethodGet, "/records", "d1", "doctor", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("doctor listing records: expected 403, got %d", resp.StatusCode)
	}
}

func TestRouter_HealthIDVerifierFromEnv(t *testing.T) {
	// Fake HealthID: cualquier token resuelve al paciente p1.
	iam := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/tokens/verify" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"user_id":"p1","email":"ana@example.com","role":"patient"}`))
	}))
	t.Cleanup(iam.Close)

	// Con AUTH_BASE_URL seteada el router arma el verifier solo.
	t.Setenv("AUTH_BASE_URL", iam.URL)
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/connections", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer token-123")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bearer token: expected 200, got %d", resp.StatusCode)
	}

	// En modo verifier los headers de debug NO inyectan identidad.
	resp2, _ := doReq(t, ts, http.MethodGet, "/connections", "p1", "patient", nil)
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("debug headers with verifier: expected 401, got %d", resp2.StatusCode)
	}
}

func TestRouter_Health(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doReq(t, ts, http.MethodGet, "/health", "", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", resp.StatusCode)
	}
	if string(body) != "ok" {
		t.Fatalf("health: expected body ok, got %q", body)
	}
}
