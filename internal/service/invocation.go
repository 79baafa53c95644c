package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"dynupd/internal/config"
	"dynupd/internal/model"
)

// One invocation drives one child process through the scripted stdin
// sequence: spawn, optional initial stdin, one rendered block per zone each
// followed by the per-zone-update string, the final stdin string, close,
// wait. Any failure aborts the remaining steps; the stream is presumed
// broken after the first write error.

type invocationState int

const (
	stateStarting invocationState = iota
	stateInitial
	statePerZone
	stateFinishing
	stateClosed
	stateFailed
)

// ErrorKind classifies where an invocation failed.
type ErrorKind int

const (
	SpawnFailed ErrorKind = iota
	WriteFailed
	NonZeroExit
)

func (k ErrorKind) String() string {
	switch k {
	case SpawnFailed:
		return "spawn"
	case WriteFailed:
		return "write"
	case NonZeroExit:
		return "exit"
	default:
		return "unknown"
	}
}

// ProgramError is the terminal failure of one update-program invocation,
// carrying whatever diagnostic text the process produced.
type ProgramError struct {
	Kind   ErrorKind
	Stderr string
	Err    error
}

func (e *ProgramError) Error() string {
	msg := fmt.Sprintf("update program %s failure: %v", e.Kind, e.Err)
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

func (e *ProgramError) Unwrap() error { return e.Err }

type invocation struct {
	prog    config.UpdateProgramConfig
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  bytes.Buffer
	state   invocationState
	failure *ProgramError
}

func newInvocation(prog config.UpdateProgramConfig) *invocation {
	return &invocation{prog: prog, state: stateStarting}
}

// run drives the whole state machine for one batch of resolved updates and
// returns nil only if every write succeeded and the process exited zero.
func (inv *invocation) run(ctx context.Context, updates []model.ResolvedUpdate) error {
	if err := inv.start(ctx); err != nil {
		return err
	}
	inv.writeInitial()
	for _, u := range updates {
		inv.writeZone(u)
	}
	return inv.finish()
}

func (inv *invocation) start(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, inv.prog.Bin, inv.prog.Args...)
	cmd.Stderr = &inv.stderr // stdout is discarded; stderr is the diagnostic channel

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return inv.fail(SpawnFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return inv.fail(SpawnFailed, err)
	}

	inv.cmd = cmd
	inv.stdin = stdin
	inv.state = stateInitial
	return nil
}

func (inv *invocation) writeInitial() {
	if inv.state != stateInitial {
		return
	}
	if inv.prog.InitialStdin != "" {
		if inv.write(inv.prog.InitialStdin) != nil {
			return
		}
	}
	inv.state = statePerZone
}

// writeZone renders the per-family templates for one resolved update and
// sends them, followed by the per-zone-update string.
func (inv *invocation) writeZone(u model.ResolvedUpdate) {
	if inv.state != statePerZone {
		return
	}
	ttl := strconv.FormatUint(uint64(u.TTL), 10)
	if u.IPv4.IsValid() {
		if inv.write(renderTemplate(inv.prog.IPv4.Stdin, u.Domain, ttl, "{ipv4}", u.IPv4.String())) != nil {
			return
		}
	}
	if u.IPv6.IsValid() {
		if inv.write(renderTemplate(inv.prog.IPv6.Stdin, u.Domain, ttl, "{ipv6}", u.IPv6.String())) != nil {
			return
		}
	}
	if inv.prog.StdinPerZoneUpdate != "" {
		inv.write(inv.prog.StdinPerZoneUpdate)
	}
}

// finish writes the final stdin string, closes the stream to signal
// end-of-input, and waits for the process. The child is always reaped, even
// after an earlier failure.
func (inv *invocation) finish() error {
	if inv.state == statePerZone {
		inv.state = stateFinishing
		if inv.prog.FinalStdin != "" {
			inv.write(inv.prog.FinalStdin)
		}
	}

	if inv.stdin != nil {
		_ = inv.stdin.Close()
	}
	err := inv.cmd.Wait()

	if inv.failure != nil {
		// The process has exited now, so the stderr capture is complete.
		inv.failure.Stderr = inv.stderr.String()
		return inv.failure
	}
	if err != nil {
		inv.state = stateFailed
		inv.failure = &ProgramError{Kind: NonZeroExit, Stderr: inv.stderr.String(), Err: err}
		return inv.failure
	}

	inv.state = stateClosed
	return nil
}

func (inv *invocation) write(s string) error {
	if inv.state == stateFailed {
		return inv.failure
	}
	if _, err := io.WriteString(inv.stdin, s); err != nil {
		return inv.fail(WriteFailed, err)
	}
	return nil
}

func (inv *invocation) fail(kind ErrorKind, err error) error {
	inv.state = stateFailed
	// Stderr stays empty here: the capture buffer must not be read until
	// Wait has completed, because the copy goroutine may still be writing
	// to it. finish fills it in once the process has exited.
	inv.failure = &ProgramError{Kind: kind, Err: err}
	return inv.failure
}

// renderTemplate substitutes the three placeholders. Substitution is literal
// text replacement; the templates come from trusted configuration and the
// only request-influenced value is a structurally validated address.
func renderTemplate(tmpl, domain, ttl, addrPlaceholder, addr string) string {
	r := strings.NewReplacer("{domain}", domain, "{ttl}", ttl, addrPlaceholder, addr)
	return r.Replace(tmpl)
}
