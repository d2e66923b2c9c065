package main

import (
	"net/http"
	"os"
	"time"

	"medical-consent/internal/platform/logger"
	"medical-consent/internal/router"
)

func main() {
	log := logger.NewFromEnv()

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	// El verifier se resuelve por env dentro del router: con AUTH_BASE_URL
	// valida tokens contra HealthID, sin ella queda en modo dev.
	r := router.NewRouter(router.Options{
		Log: log,
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info("starting server", map[string]any{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", map[string]any{"err": err.Error()})
		os.Exit(1)
	}
}
