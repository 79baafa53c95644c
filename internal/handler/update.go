package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"time"

	"dynupd/internal/metrics"
	"dynupd/internal/model"
	"dynupd/internal/service"
	"dynupd/internal/util"
)

// Updater is the orchestrator the HTTP layer hands validated requests to.
type Updater interface {
	Handle(ctx context.Context, req model.UpdateRequest) (service.Result, error)
}

type UpdateHandler struct {
	svc     Updater
	metrics *metrics.Collector
}

func NewUpdateHandler(svc Updater, collector *metrics.Collector) *UpdateHandler {
	return &UpdateHandler{svc: svc, metrics: collector}
}

// Update handles GET /update. Query parameters: user, pass, ipv4, ipv6, plus
// domain, dualstack and ipv6lanprefix, which are validated but do not change
// what gets resolved.
func (h *UpdateHandler) Update(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := model.UpdateRequest{
		Username:  q.Get("user"),
		Password:  q.Get("pass"),
		Domain:    q.Get("domain"),
		DualStack: q.Get("dualstack"),
	}

	if s := q.Get("ipv4"); s != "" {
		addr, err := netip.ParseAddr(s)
		if err != nil || !addr.Is4() {
			h.badRequest(w, "invalid ipv4 address")
			return
		}
		req.IPv4 = addr
	}
	if s := q.Get("ipv6"); s != "" {
		addr, err := netip.ParseAddr(s)
		if err != nil || !addr.Is6() || addr.Is4In6() {
			h.badRequest(w, "invalid ipv6 address")
			return
		}
		req.IPv6 = addr
	}
	if s := q.Get("ipv6lanprefix"); s != "" {
		prefix, err := util.ParseLANPrefix(s)
		if err != nil {
			h.badRequest(w, "invalid ipv6lanprefix")
			return
		}
		req.LANPrefix = prefix
	}

	log.Printf("update request from %s: user=%q domain=%q ipv4=%v ipv6=%v dualstack=%q pass=<redacted>",
		util.GetClientIP(r), req.Username, req.Domain, req.IPv4, req.IPv6, req.DualStack)

	start := time.Now()
	result, err := h.svc.Handle(r.Context(), req)
	h.metrics.ObserveDuration(time.Since(start))

	switch result {
	case service.Success:
		h.metrics.RecordSuccess()
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	case service.Unauthorized:
		h.metrics.RecordUnauthorized()
		http.Error(w, "Not authorized", http.StatusForbidden)
	case service.BadRequest:
		h.metrics.RecordBadRequest()
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		// The diagnostic (stderr, exit code) is already in the server log;
		// the client gets a generic failure.
		h.metrics.RecordFailure(failureStage(err))
		http.Error(w, "update failed", http.StatusInternalServerError)
	}
}

func (h *UpdateHandler) badRequest(w http.ResponseWriter, msg string) {
	h.metrics.RecordBadRequest()
	http.Error(w, msg, http.StatusBadRequest)
}

func failureStage(err error) string {
	var perr *service.ProgramError
	if errors.As(err, &perr) {
		return perr.Kind.String()
	}
	return "unknown"
}
