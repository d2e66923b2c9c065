package router

import (
	"database/sql"
	"net/http"
	"os"
	"time"

	"medical-consent/internal/adapters/auth/healthid"
	"medical-consent/internal/adapters/profiles/registry"
	mem "medical-consent/internal/adapters/storage/memory"
	pg "medical-consent/internal/adapters/storage/postgres"
	"medical-consent/internal/domain/appointments"
	"medical-consent/internal/domain/connections"
	"medical-consent/internal/domain/records"
	"medical-consent/internal/domain/sharing"
	"medical-consent/internal/middleware"
	"medical-consent/internal/platform/logger"
	"medical-consent/internal/ports/auth"
	"medical-consent/internal/ports/profiles"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Options struct {
	// Opcional: si no viene, se arma por env (AUTH_BASE_URL => HealthID).
	// Sin verifier el middleware queda en modo dev (X-Debug headers).
	AuthVerifier auth.AuthVerifier

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// Opcional: resolver de perfiles. Si no viene, se arma por env
	// (PROFILES_BASE_URL) o cae al directory open in-memory (dev).
	Directory profiles.Directory

	Log logger.Logger
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	log := opts.Log
	if log == nil {
		log = logger.NewFromEnv()
	}

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	verifier := opts.AuthVerifier
	if verifier == nil {
		verifier = verifierFromEnv(log)
	}
	r.Use(middleware.AuthContext(verifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var (
		connRepo  connections.Repository
		shareRepo sharing.Repository
		recRepo   records.Repository
		apptRepo  appointments.Repository
	)

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			} else {
				log.Warn("postgres open failed; falling back to in-memory", map[string]any{"err": err.Error()})
			}
		}
	}

	if db != nil {
		connRepo = pg.NewConnectionsRepo(db)
		shareRepo = pg.NewSharesRepo(db)
		recRepo = pg.NewRecordsRepo(db)
		apptRepo = pg.NewAppointmentsRepo(db)
	} else {
		connRepo = mem.NewConnectionsRepo()
		shareRepo = mem.NewSharesRepo()
		recRepo = mem.NewRecordsRepo()
		apptRepo = mem.NewAppointmentsRepo()
	}

	directory := opts.Directory
	if directory == nil {
		directory = directoryFromEnv(log)
	}

	// Services por módulo
	connsSvc := connections.NewService(connRepo, directory)
	recsSvc := records.NewService(recRepo)
	sharingSvc := sharing.NewService(shareRepo, connsSvc, recsSvc, log)
	apptsSvc := appointments.NewService(apptRepo, connsSvc)

	// Rutas por módulo
	connections.RegisterRoutes(r, connsSvc)
	sharing.RegisterRoutes(r, sharingSvc)
	records.RegisterRoutes(r, recsSvc)
	appointments.RegisterRoutes(r, apptsSvc)

	return r
}

// verifierFromEnv arma el verifier de tokens: con AUTH_BASE_URL usa HealthID;
// sin él devuelve nil y el middleware queda en modo dev (X-Debug headers).
func verifierFromEnv(log logger.Logger) auth.AuthVerifier {
	baseURL := os.Getenv("AUTH_BASE_URL")
	if baseURL == "" {
		log.Warn("AUTH_BASE_URL not set; auth in dev mode (X-Debug headers)", nil)
		return nil
	}

	client, err := healthid.NewClient(healthid.Config{
		BaseURL: baseURL,
		APIKey:  os.Getenv("AUTH_API_KEY"),
		Timeout: 5 * time.Second,
	})
	if err != nil {
		log.Error("healthid misconfigured; auth in dev mode", map[string]any{"err": err.Error()})
		return nil
	}
	return healthid.NewVerifier(client)
}

// directoryFromEnv arma el resolver de perfiles:
// con PROFILES_BASE_URL usa el registry externo; sin él, directory open
// in-memory (todo id existe, doctores verified) para dev local.
func directoryFromEnv(log logger.Logger) profiles.Directory {
	baseURL := os.Getenv("PROFILES_BASE_URL")
	if baseURL == "" {
		log.Warn("PROFILES_BASE_URL not set; using open in-memory directory (dev only)", nil)
		return mem.NewOpenDirectory()
	}

	client, err := registry.NewClient(registry.Config{
		BaseURL: baseURL,
		APIKey:  os.Getenv("PROFILES_API_KEY"),
		Timeout: 5 * time.Second,
	})
	if err != nil {
		log.Error("profile registry misconfigured; using open in-memory directory", map[string]any{"err": err.Error()})
		return mem.NewOpenDirectory()
	}
	return registry.NewDirectory(client)
}
