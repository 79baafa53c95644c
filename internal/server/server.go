package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"dynupd/internal/auth"
	"dynupd/internal/config"
	"dynupd/internal/handler"
	"dynupd/internal/metrics"
	"dynupd/internal/service"
)

// NewMux wires the full handler tree for the given configuration. Split from
// Start so tests can drive it with httptest.
func NewMux(cfg *config.Config) (*http.ServeMux, error) {
	var ldapClient *auth.LDAPClient
	if cfg.LDAP.Enabled {
		ldapClient = auth.NewLDAPClient(cfg.LDAP)
		log.Println("LDAP authentication enabled")
		log.Printf("LDAP server: %s", cfg.LDAP.URL)
	}

	verifier, err := auth.NewVerifier(cfg, ldapClient)
	if err != nil {
		return nil, fmt.Errorf("failed to init credential verifier: %w", err)
	}

	svc := service.NewUpdateService(cfg, verifier)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	updateH := handler.NewUpdateHandler(svc, collector)
	update := updateH.Update
	if !cfg.RateLimit.Disabled {
		rl := handler.NewRateLimiter(cfg.RateLimit)
		update = rl.Middleware(update)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /update", update)
	mux.Handle("GET /metrics", metrics.Handler(registry))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux, nil
}

func Start(cfg *config.Config, version string) error {
	mux, err := NewMux(cfg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("dynupd %s serving on %s", version, addr)
	return http.ListenAndServe(addr, mux)
}
