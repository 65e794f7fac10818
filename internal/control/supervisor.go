package control

import (
	"context"
	"fmt"
	"time"
)

// DefaultArmingTokenTTL is how long an issued arming token stays valid
// before Start(live) refuses it (spec.md §4.1, default 30 s).
const DefaultArmingTokenTTL = 30 * time.Second

// StartMode selects whether Start requires an arming token.
type StartMode string

const (
	StartModeDryRun StartMode = "dry_run"
	StartModeLive   StartMode = "live"
)

// Supervisor enforces the operator-facing lifecycle protocol on top of a
// ControlPlane: Arm issues the one-time token and moves STOPPED -> ARMED,
// Start consumes it (live mode only) and moves to RUNNING, Pause/Resume
// toggle PAUSED_ENTRIES, Stop returns to STOPPED. The API layer calls
// these; the engine loop only ever reads GetBotState.
type Supervisor struct {
	plane    ControlPlane
	tokenTTL time.Duration
}

func NewSupervisor(plane ControlPlane) *Supervisor {
	return &Supervisor{plane: plane, tokenTTL: DefaultArmingTokenTTL}
}

// NewSupervisorWithTTL overrides the token TTL, for tests.
func NewSupervisorWithTTL(plane ControlPlane, ttl time.Duration) *Supervisor {
	return &Supervisor{plane: plane, tokenTTL: ttl}
}

// Arm transitions STOPPED -> ARMED and returns the freshly minted one-time
// token. The token is returned exactly once; it is never readable back out
// of the control plane.
func (s *Supervisor) Arm(ctx context.Context) (string, error) {
	state, err := s.plane.GetBotState(ctx)
	if err != nil {
		return "", err
	}
	if state != BotStateStopped {
		return "", fmt.Errorf("control: cannot arm from %s, bot must be STOPPED", state)
	}
	token, err := s.plane.GenerateArmingToken(ctx, s.tokenTTL)
	if err != nil {
		return "", err
	}
	if err := s.plane.SetBotState(ctx, BotStateArmed); err != nil {
		return "", err
	}
	return token, nil
}

// Start transitions the bot to RUNNING. In live mode the supplied token
// must atomically match-and-consume the outstanding arming token: a missing
// or mismatched token fails with ErrArmRequired, a second use of a consumed
// (or TTL-lapsed) token with ErrArmExpired. Dry-run starts need no token.
func (s *Supervisor) Start(ctx context.Context, mode StartMode, token string) error {
	if mode == StartModeLive {
		if token == "" {
			return ErrArmRequired
		}
		status, err := s.plane.ConsumeArmingToken(ctx, token)
		if err != nil {
			return err
		}
		switch status {
		case TokenMismatch:
			return ErrArmRequired
		case TokenAbsent:
			return ErrArmExpired
		}
	}
	return s.plane.SetBotState(ctx, BotStateRunning)
}

// Pause suspends entries while leaving exit management running.
func (s *Supervisor) Pause(ctx context.Context) error {
	return s.plane.SetBotState(ctx, BotStatePausedEntries)
}

// Resume returns a paused bot to RUNNING.
func (s *Supervisor) Resume(ctx context.Context) error {
	return s.plane.SetBotState(ctx, BotStateRunning)
}

// Stop halts the engine entirely; a later live start requires re-arming.
func (s *Supervisor) Stop(ctx context.Context) error {
	return s.plane.SetBotState(ctx, BotStateStopped)
}
