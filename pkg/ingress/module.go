package ingress

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/lodestone-mc/lodestone/pkg/server"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Authenticator performs the handshake for one accepted connection and
// establishes the client's identity. Online-mode implementations can use
// the shared cell's HTTP client for session verification.
type Authenticator interface {
	Authenticate(ctx context.Context, shared *server.SharedServer, conn net.Conn) (server.NewClientInfo, error)
}

// Accept throttle: a burst absorbs reconnect storms without letting a
// misbehaving client spin the accept loop.
const (
	acceptRate  rate.Limit = 128
	acceptBurst            = 256
)

// TCPIngress is the reference accept subsystem. It listens on the shared
// cell's configured address, acquires one admission permit per
// connection before any handshake work, runs the authenticator and hands
// the authenticated client off to the simulation loop.
//
// Connection-scoped failures (handshake errors, a full or closed
// limiter) reject that connection only; they never affect the simulation
// loop or other connections.
type TCPIngress struct {
	auth     Authenticator
	throttle *rate.Limiter

	// Ready receives the bound listener address once, after Listen
	// succeeds.
	Ready chan net.Addr

	clients atomic.Int64
}

func NewTCPIngress(auth Authenticator) *TCPIngress {
	return &TCPIngress{
		auth:     auth,
		throttle: rate.NewLimiter(acceptRate, acceptBurst),
		Ready:    make(chan net.Addr, 1),
	}
}

// Loop adapts the ingress to the server's deferred-start contract.
func (i *TCPIngress) Loop() server.AcceptLoop {
	return func(ctx context.Context, shared *server.SharedServer) {
		if err := i.run(ctx, shared); err != nil {
			// A dead listener means the server cannot be joined at
			// all; escalate through the shutdown protocol.
			shared.Shutdown(fmt.Errorf("ingress failed: %w", err))
		}
	}
}

func (i *TCPIngress) run(ctx context.Context, shared *server.SharedServer) error {
	listener, err := net.Listen("tcp", shared.Address())
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", shared.Address(), err)
	}

	log.Info().Stringer("address", listener.Addr()).Msg("accepting connections")
	select {
	case i.Ready <- listener.Addr():
	default:
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		if err := i.throttle.Wait(ctx); err != nil {
			return nil
		}

		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("accept failed")
			continue
		}

		go i.handle(ctx, shared, conn)
	}
}

func (i *TCPIngress) handle(ctx context.Context, shared *server.SharedServer, conn net.Conn) {
	// The permit comes first: a connection that cannot be admitted is
	// not worth a handshake. At capacity the attempt is aborted rather
	// than queued, so a full server turns connections away promptly.
	permit, err := shared.Limiter().TryAcquire()
	if err != nil {
		log.Debug().Err(err).Stringer("remote", conn.RemoteAddr()).Msg("connection rejected")
		conn.Close()
		return
	}

	info, err := i.auth.Authenticate(ctx, shared, conn)
	if err != nil {
		log.Debug().Err(err).Stringer("remote", conn.RemoteAddr()).Msg("authentication failed")
		permit.Release()
		conn.Close()
		return
	}

	sink, source := newConnEndpoints(conn, shared.IncomingCapacity(), shared.OutgoingCapacity())

	err = shared.SendClient(ctx, server.NewClientMessage{
		Info:   info,
		Sink:   sink,
		Source: source,
		Permit: permit,
	})
	if err != nil {
		permit.Release()
		conn.Close()
		return
	}

	i.clients.Add(1)
	log.Info().
		Str("username", info.Username).
		Stringer("remote", conn.RemoteAddr()).
		Msg("client authenticated")
}

// Handled returns the number of clients handed off so far.
func (i *TCPIngress) Handled() int64 {
	return i.clients.Load()
}

// OfflineAuthenticator admits every connection without a handshake,
// assigning a generated name and the stable offline-mode UUID derived
// from it. Suitable for ConnectionModeOffline only.
type OfflineAuthenticator struct {
	counter atomic.Int64
}

func (a *OfflineAuthenticator) Authenticate(
	ctx context.Context,
	shared *server.SharedServer,
	conn net.Conn,
) (server.NewClientInfo, error) {
	if shared.ConnectionMode() != server.ConnectionModeOffline {
		return server.NewClientInfo{}, errors.New("offline authenticator requires offline mode")
	}

	name := fmt.Sprintf("Player%d", a.counter.Add(1))

	var ip net.IP
	if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		ip = addr.IP
	}

	return server.NewClientInfo{
		Username: name,
		UUID:     OfflineUUID(name),
		IP:       ip,
	}, nil
}

// OfflineUUID derives the deterministic offline-mode UUID for a username.
func OfflineUUID(username string) uuid.UUID {
	return uuid.NewMD5(uuid.Nil, []byte("OfflinePlayer:"+username))
}
