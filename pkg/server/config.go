package server

import (
	"context"
)

// ConnectionMode selects how the accept subsystem establishes a client's
// identity.
type ConnectionMode int

const (
	// ConnectionModeOffline admits clients without session verification.
	ConnectionModeOffline ConnectionMode = iota
	// ConnectionModeOnline verifies each client against the session
	// server using the shared HTTP client.
	ConnectionModeOnline
	// ConnectionModeProxy trusts identity information forwarded by a
	// proxy in front of the server.
	ConnectionModeProxy
)

func (m ConnectionMode) String() string {
	switch m {
	case ConnectionModeOffline:
		return "offline"
	case ConnectionModeOnline:
		return "online"
	case ConnectionModeProxy:
		return "proxy"
	default:
		return "unknown"
	}
}

// DefaultHandoffCapacity bounds pending, not-yet-simulated handoffs when
// Config.HandoffCapacity is left zero.
const DefaultHandoffCapacity = 64

// AcceptLoop is the accept subsystem's entry point. Run starts it in its
// own goroutine exactly once, after the first simulation pass completes.
// It must acquire an admission permit per connection and deliver exactly
// one handoff message per accepted client via SharedServer.SendClient.
type AcceptLoop func(ctx context.Context, shared *SharedServer)

// World is the simulation collaborator driven by the tick loop.
type World interface {
	// SpawnClient creates the simulation entity for a newly admitted
	// client. The entity takes ownership of the client's admission
	// permit; calling Destroy on the client is the only way the permit
	// is released.
	SpawnClient(c *Client)

	// Tick runs one simulation pass. It is called exactly once per tick
	// from the simulation thread.
	Tick(srv *Server)
}

// Config carries everything Run needs to bring the server up. Validated
// before the first tick; validation failures abort startup.
type Config struct {
	// Address the accept subsystem should bind to.
	Address string

	// TickRate is the number of simulation passes per second. Must be
	// positive.
	TickRate int

	ConnectionMode ConnectionMode

	// CompressionThreshold is the packet size in bytes above which
	// packets are compressed. Nil disables compression.
	CompressionThreshold *int

	// MaxConnections sizes the admission limiter. Must be positive.
	MaxConnections int

	// IncomingCapacity and OutgoingCapacity bound per-connection packet
	// buffering in the accept subsystem. Must be positive.
	IncomingCapacity int
	OutgoingCapacity int

	// HandoffCapacity bounds authenticated clients waiting to enter the
	// simulation. Zero selects DefaultHandoffCapacity.
	HandoffCapacity int

	Dimensions []Dimension
	Biomes     []Biome

	// BaseContext is the context the server's own context derives from.
	// Nil means context.Background(); in that case the server owns the
	// derived context for its whole lifetime.
	BaseContext context.Context

	// AcceptLoop may be nil, in which case the server simulates without
	// accepting connections.
	AcceptLoop AcceptLoop
}
