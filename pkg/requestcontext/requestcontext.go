// Package requestcontext carries per-request transaction metadata: the caller
// address supplied by the ledger boundary, the current epoch, and a clock that
// tests can pin for deterministic timestamps.
package requestcontext

import (
	"context"
	"time"
)

type contextKey string

const (
	callerKey contextKey = "caller"
	epochKey  contextKey = "epoch"
	nowKey    contextKey = "now"
	clientKey contextKey = "client"
)

// WithCaller attaches the ledger address of the transaction sender.
func WithCaller(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, callerKey, address)
}

// Caller returns the transaction sender address, or "" when absent.
func Caller(ctx context.Context) string {
	addr, _ := ctx.Value(callerKey).(string)
	return addr
}

// WithEpoch attaches the ledger epoch the request executes in.
func WithEpoch(ctx context.Context, epoch uint64) context.Context {
	return context.WithValue(ctx, epochKey, epoch)
}

// Epoch returns the ledger epoch, or zero when absent.
func Epoch(ctx context.Context) uint64 {
	epoch, _ := ctx.Value(epochKey).(uint64)
	return epoch
}

// WithNow pins the clock for the request. Tests use this for deterministic
// timestamps; production requests fall through to time.Now.
func WithNow(ctx context.Context, now time.Time) context.Context {
	return context.WithValue(ctx, nowKey, now)
}

// Now returns the pinned request time, falling back to time.Now.
func Now(ctx context.Context) time.Time {
	if now, ok := ctx.Value(nowKey).(time.Time); ok {
		return now
	}
	return time.Now()
}

// ClientMetadata describes the calling client, captured by transport
// middleware for audit events only. Never an access-control input.
type ClientMetadata struct {
	Platform string
	Browser  string
	Mobile   bool
}

// WithClient attaches client metadata parsed at the transport boundary.
func WithClient(ctx context.Context, meta ClientMetadata) context.Context {
	return context.WithValue(ctx, clientKey, meta)
}

// Client returns the client metadata, or the zero value when absent.
func Client(ctx context.Context) ClientMetadata {
	meta, _ := ctx.Value(clientKey).(ClientMetadata)
	return meta
}
