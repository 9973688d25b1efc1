package server

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"time"

	"github.com/lodestone-mc/lodestone/pkg/utils"

	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

// Server is the global server state owned by the simulation thread. The
// tick counter and last tick duration are mutated once per tick; the rest
// lives in the shared cell.
type Server struct {
	currentTick      int64
	lastTickDuration time.Duration
	shared           *SharedServer
}

// Shared returns the cross-thread portion of the server state.
func (s *Server) Shared() *SharedServer {
	return s.shared
}

// CurrentTick returns the number of ticks that have elapsed since the
// server began.
func (s *Server) CurrentTick() int64 {
	return s.currentTick
}

// LastTickDuration returns the time taken to execute the previous tick,
// not including the time spent sleeping.
func (s *Server) LastTickDuration() time.Duration {
	return s.lastTickDuration
}

// SharedServer is the subset of server state shared between the
// simulation thread and the accept subsystem's goroutines. One instance
// is allocated per server; every component holds the same pointer.
//
// Everything here is immutable after construction except the admission
// limiter, the shutdown slot and the handoff queue, each of which is safe
// for concurrent use.
type SharedServer struct {
	utils.Session

	address              string
	tickRate             int
	connectionMode       ConnectionMode
	compressionThreshold *int
	maxConnections       int
	incomingCapacity     int
	outgoingCapacity     int
	dimensions           []Dimension
	biomes               []Biome
	registry             *RegistryCodec
	rsaKey               *rsa.PrivateKey
	publicKeyDER         []byte
	httpClient           *http.Client

	limiter    *Limiter
	newClients chan NewClientMessage

	shutdownMu     deadlock.Mutex
	shutdownResult *shutdownResult
}

// The slot distinguishes "no decision yet" from "shut down successfully",
// so a written nil error still terminates the loop.
type shutdownResult struct {
	err error
}

// Address returns the address the server is configured to bind to.
func (s *SharedServer) Address() string {
	return s.address
}

// TickRate returns the configured number of ticks per second.
func (s *SharedServer) TickRate() int {
	return s.tickRate
}

func (s *SharedServer) ConnectionMode() ConnectionMode {
	return s.connectionMode
}

// CompressionThreshold returns the configured threshold, or nil when
// compression is disabled.
func (s *SharedServer) CompressionThreshold() *int {
	return s.compressionThreshold
}

// MaxConnections returns the hard ceiling on concurrently live
// connections.
func (s *SharedServer) MaxConnections() int {
	return s.maxConnections
}

func (s *SharedServer) IncomingCapacity() int {
	return s.incomingCapacity
}

func (s *SharedServer) OutgoingCapacity() int {
	return s.outgoingCapacity
}

// Dimension returns the dimension with the given ID. IDs not originating
// from this server's configuration return nil.
func (s *SharedServer) Dimension(id DimensionID) *Dimension {
	if int(id) >= len(s.dimensions) {
		return nil
	}
	return &s.dimensions[id]
}

// Dimensions returns all configured dimensions in ID order.
func (s *SharedServer) Dimensions() []Dimension {
	return s.dimensions
}

// Biome returns the biome with the given ID, or nil for an unknown ID.
func (s *SharedServer) Biome(id BiomeID) *Biome {
	if int(id) >= len(s.biomes) {
		return nil
	}
	return &s.biomes[id]
}

// Biomes returns all configured biomes in ID order.
func (s *SharedServer) Biomes() []Biome {
	return s.biomes
}

// RegistryCodec returns the registry snapshot sent to joining clients.
func (s *SharedServer) RegistryCodec() *RegistryCodec {
	return s.registry
}

// PrivateKey returns the RSA key pair used for session encryption.
func (s *SharedServer) PrivateKey() *rsa.PrivateKey {
	return s.rsaKey
}

// PublicKeyDER returns the DER encoding of the server's public key, sent
// to clients during authentication.
func (s *SharedServer) PublicKeyDER() []byte {
	return s.publicKeyDER
}

// HTTPClient returns the client used for session server requests.
func (s *SharedServer) HTTPClient() *http.Client {
	return s.httpClient
}

// Limiter returns the admission limiter. The accept subsystem must hold
// one of its permits for every connection past the accept stage.
func (s *SharedServer) Limiter() *Limiter {
	return s.limiter
}

// SendClient delivers an authenticated client to the simulation loop,
// transferring ownership of the message's admission permit. It blocks
// while the handoff queue is full, applying backpressure to the accept
// subsystem without ever blocking the simulation thread.
func (s *SharedServer) SendClient(ctx context.Context, msg NewClientMessage) error {
	select {
	case s.newClients <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.Ctx().Done():
		return s.Ctx().Err()
	}
}

// Shutdown stops new connections immediately and asks the simulation
// loop to terminate with the given result, which Run then returns. A nil
// error is a clean shutdown.
//
// The limiter closes before the result is written so that no client can
// be admitted once a shutdown decision is visible anywhere. If several
// goroutines race to shut down before the loop's next check, the last
// written result wins; earlier results are discarded.
func (s *SharedServer) Shutdown(err error) {
	s.limiter.Close()

	s.shutdownMu.Lock()
	s.shutdownResult = &shutdownResult{err: err}
	s.shutdownMu.Unlock()
}

// takeShutdownResult clears and returns the slot. Called only by the
// simulation loop, once per tick.
func (s *SharedServer) takeShutdownResult() (error, bool) {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()

	if s.shutdownResult == nil {
		return nil, false
	}

	res := s.shutdownResult
	s.shutdownResult = nil
	return res.err, true
}

// Run validates the configuration, constructs the shared state cell and
// drives the simulation loop on the calling goroutine. It blocks until
// Shutdown is called, returning the recorded result, or returns a
// validation error before the first tick.
//
// Each tick checks the shutdown slot, drains the handoff queue, runs one
// simulation pass and sleeps out the remainder of the tick period. The
// accept subsystem starts only after the first pass completes, so
// expensive first-tick initialization finishes before any client can
// connect.
func Run(cfg Config, world World) error {
	if cfg.TickRate <= 0 {
		return fmt.Errorf("tick rate must be positive, got %d", cfg.TickRate)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max connections must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.IncomingCapacity <= 0 {
		return fmt.Errorf("incoming capacity must be positive, got %d", cfg.IncomingCapacity)
	}
	if cfg.OutgoingCapacity <= 0 {
		return fmt.Errorf("outgoing capacity must be positive, got %d", cfg.OutgoingCapacity)
	}
	if cfg.HandoffCapacity < 0 {
		return fmt.Errorf("handoff capacity must not be negative, got %d", cfg.HandoffCapacity)
	}
	if world == nil {
		return fmt.Errorf("a World implementation is required")
	}

	handoffCapacity := cfg.HandoffCapacity
	if handoffCapacity == 0 {
		handoffCapacity = DefaultHandoffCapacity
	}

	rsaKey, publicKeyDER, err := generateKeys()
	if err != nil {
		return err
	}

	registry, err := BuildRegistryCodec(cfg.Dimensions, cfg.Biomes)
	if err != nil {
		return fmt.Errorf("could not build registry codec: %w", err)
	}

	base := cfg.BaseContext
	if base == nil {
		base = context.Background()
	}

	shared := &SharedServer{
		Session:              utils.NewSession(base),
		address:              cfg.Address,
		tickRate:             cfg.TickRate,
		connectionMode:       cfg.ConnectionMode,
		compressionThreshold: cfg.CompressionThreshold,
		maxConnections:       cfg.MaxConnections,
		incomingCapacity:     cfg.IncomingCapacity,
		outgoingCapacity:     cfg.OutgoingCapacity,
		dimensions:           cfg.Dimensions,
		biomes:               cfg.Biomes,
		registry:             registry,
		rsaKey:               rsaKey,
		publicKeyDER:         publicKeyDER,
		httpClient:           &http.Client{},
		limiter:              NewLimiter(cfg.MaxConnections),
		newClients:           make(chan NewClientMessage, handoffCapacity),
	}
	defer shared.Cancel()

	srv := &Server{shared: shared}

	tickPeriod := time.Second / time.Duration(cfg.TickRate)
	tickStart := time.Now()
	acceptStarted := false

	log.Info().
		Int("tickRate", cfg.TickRate).
		Int("maxConnections", cfg.MaxConnections).
		Str("mode", cfg.ConnectionMode.String()).
		Msg("simulation loop starting")

	for {
		// Phase 1: terminate if a shutdown decision landed since the
		// last check.
		if err, ok := shared.takeShutdownResult(); ok {
			log.Info().Err(err).Int64("tick", srv.currentTick).Msg("simulation loop stopping")
			return err
		}

		// Phase 2: admit the clients that were queued when this tick
		// began. Later arrivals wait for the next tick, bounding the
		// work a single tick can absorb.
		pending := len(shared.newClients)
	intake:
		for i := 0; i < pending; i++ {
			select {
			case msg := <-shared.newClients:
				log.Debug().
					Str("username", msg.Info.Username).
					Stringer("uuid", msg.Info.UUID).
					Msg("client entering simulation")
				world.SpawnClient(newClient(msg))
			default:
				break intake
			}
		}

		// Phase 3: one simulation pass.
		world.Tick(srv)

		// The accept subsystem starts only after the first pass, so
		// world initialization cannot race with joining players. The
		// flag is owned by this goroutine; the transition fires once.
		if !acceptStarted {
			acceptStarted = true
			if cfg.AcceptLoop != nil {
				go cfg.AcceptLoop(shared.Ctx(), shared)
			}
		}

		// Phase 4: sleep out the remainder of the tick period. A slow
		// tick shortens or eliminates the sleep; missed time is never
		// made up by running extra passes.
		srv.lastTickDuration = time.Since(tickStart)
		if d := tickPeriod - srv.lastTickDuration; d > 0 {
			time.Sleep(d)
		}
		srv.currentTick++
		tickStart = time.Now()
	}
}
