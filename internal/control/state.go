// Package control implements the Redis-backed control plane spec.md §5
// describes: the bot's run state, one-time arming tokens, and a shared
// negative-news flag other packages read through small local interfaces
// (internal/breakers.NewsCache). No pack repo carries a Redis client
// directly — control/state and the atomic arming-token protocol are
// original to this spec (see SPEC_FULL.md and DESIGN.md's Open Question
// #4), implemented with go-redis/v8 the way the pack's other infra-heavy
// repos reach for a managed client library rather than hand-rolling one.
package control

import (
	"context"
	"errors"
	"time"
)

// BotState is the engine's run state (spec.md §5).
type BotState string

const (
	BotStateStopped       BotState = "STOPPED"
	BotStateArmed         BotState = "ARMED"
	BotStateRunning       BotState = "RUNNING"
	BotStatePausedEntries BotState = "PAUSED_ENTRIES"
)

// EntriesAllowed is true only while RUNNING.
func (s BotState) EntriesAllowed() bool { return s == BotStateRunning }

// ExitsAllowed is true in RUNNING, PAUSED_ENTRIES, and ARMED — exits are
// never blocked while the bot still holds capital, even with safety
// measures active. Only STOPPED suspends exit management.
func (s BotState) ExitsAllowed() bool {
	return s == BotStateRunning || s == BotStatePausedEntries || s == BotStateArmed
}

// Arming-protocol failures, mapped 1:1 onto the ARM_REQUIRED/ARM_EXPIRED
// error codes the REST surface publishes.
var (
	// ErrArmRequired: live start attempted with no token, or a token that
	// does not match the outstanding one.
	ErrArmRequired = errors.New("control: arming token required (ARM_REQUIRED)")
	// ErrArmExpired: the outstanding token was already consumed or its TTL
	// lapsed. Tokens are strictly one-time.
	ErrArmExpired = errors.New("control: arming token expired or already used (ARM_EXPIRED)")
)

// TokenStatus is the outcome of an atomic check-and-delete on the single
// outstanding arming token.
type TokenStatus int

const (
	// TokenConsumed: the supplied token matched and was deleted; the caller
	// holds the one successful consumption.
	TokenConsumed TokenStatus = iota
	// TokenMismatch: an outstanding token exists but the supplied value
	// does not match it.
	TokenMismatch
	// TokenAbsent: no outstanding token — never issued, TTL lapsed, or
	// already consumed.
	TokenAbsent
)

// ControlPlane is the shared surface both the dashboard/API layer and the
// trading loop use to read/drive the bot's run state and arming protocol.
type ControlPlane interface {
	// GetBotState never fails upward: an absent value or an unreachable
	// store degrades to STOPPED, the safe default (spec.md §4.1).
	GetBotState(ctx context.Context) (BotState, error)
	SetBotState(ctx context.Context, state BotState) error

	// GenerateArmingToken mints the single outstanding one-time token with
	// the given TTL, replacing any previous one, and returns it exactly
	// once. ConsumeArmingToken atomically compares and deletes it, so a
	// token can transition the bot from ARMED to RUNNING at most once even
	// under concurrent consumers.
	GenerateArmingToken(ctx context.Context, ttl time.Duration) (token string, err error)
	ConsumeArmingToken(ctx context.Context, token string) (TokenStatus, error)

	// Heartbeat stamps the engine-liveness key. Callers ignore the error
	// beyond logging it; a missed heartbeat must never stall a tick.
	Heartbeat(ctx context.Context, at time.Time) error
}
