package service

import (
	"context"
	"errors"
	"log"
	"time"

	"dynupd/internal/auth"
	"dynupd/internal/config"
	"dynupd/internal/model"
	"dynupd/internal/util"
)

// Result is the terminal outcome of handling one update request.
type Result int

const (
	Success Result = iota
	Unauthorized
	BadRequest
	UpdateFailed
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Unauthorized:
		return "unauthorized"
	case BadRequest:
		return "bad_request"
	case UpdateFailed:
		return "update_failed"
	default:
		return "unknown"
	}
}

// UpdateService turns one authenticated request into one update-program
// invocation. It holds no mutable state; concurrent requests share only the
// read-only configuration table.
type UpdateService struct {
	cfg      *config.Config
	verifier *auth.Verifier
	timeout  time.Duration
}

func NewUpdateService(cfg *config.Config, verifier *auth.Verifier) *UpdateService {
	return &UpdateService{
		cfg:      cfg,
		verifier: verifier,
		timeout:  time.Duration(cfg.UpdateProgram.TimeoutSeconds) * time.Second,
	}
}

// Handle runs the full sequence for one request: validate, authenticate,
// resolve domains, drive the update program. No subprocess is spawned for a
// rejected request, and a user with nothing to update is a no-op success.
func (s *UpdateService) Handle(ctx context.Context, req model.UpdateRequest) (Result, error) {
	if !req.IPv4.IsValid() && !req.IPv6.IsValid() {
		return BadRequest, errors.New("no address supplied")
	}

	user, ok := s.verifier.Verify(req.Username, req.Password)
	if !ok {
		return Unauthorized, errors.New("invalid credentials")
	}

	updates := resolve(user, req)
	if len(updates) == 0 {
		log.Printf("user %q: nothing to update", user.Username)
		return Success, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	inv := newInvocation(s.cfg.UpdateProgram)
	if err := inv.run(ctx, updates); err != nil {
		log.Printf("user %q: %v", user.Username, err)
		return UpdateFailed, err
	}

	log.Printf("user %q: updated %d zone(s)", user.Username, len(updates))
	return Success, nil
}

// resolve maps the authenticated user's domains, in declared order, to the
// addresses this request publishes. The order becomes the order of command
// blocks sent to the update program.
func resolve(user *model.User, req model.UpdateRequest) []model.ResolvedUpdate {
	var updates []model.ResolvedUpdate
	for _, d := range user.Domains {
		u := model.ResolvedUpdate{Domain: d.Name, TTL: d.TTL}
		if req.IPv4.IsValid() {
			u.IPv4 = req.IPv4
		}
		if req.IPv6.IsValid() {
			if d.IPv6PrefixLen == 0 {
				log.Printf("IPv6 prefix length for domain %s is zero, ignoring update to IPv6 address", d.Name)
			} else {
				u.IPv6 = util.SpliceIPv6(req.IPv6, d.IPv6Suffix, d.IPv6PrefixLen)
			}
		}
		if !u.IPv4.IsValid() && !u.IPv6.IsValid() {
			continue
		}
		updates = append(updates, u)
	}
	return updates
}
