package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lodestone-mc/lodestone/pkg/config"
	"github.com/lodestone-mc/lodestone/pkg/ingress"
	"github.com/lodestone-mc/lodestone/pkg/server"

	"github.com/rs/zerolog/log"
)

// How often the basic world probes client liveness, in ticks.
const keepaliveInterval = 20

// basicWorld is the simulation attached by the standalone binary: it
// tracks joined clients, sends them the registry snapshot, and turns an
// interrupt signal into a clean shutdown.
type basicWorld struct {
	clients []*server.Client
	sigs    chan os.Signal
	shared  *server.SharedServer
}

func newBasicWorld() *basicWorld {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	return &basicWorld{
		sigs: sigs,
	}
}

func (w *basicWorld) SpawnClient(c *server.Client) {
	log.Info().
		Str("username", c.Username()).
		Stringer("uuid", c.UUID()).
		Msg("client joined")

	// The first payload every client sees is the registry snapshot.
	if w.shared != nil {
		if err := c.Send(w.shared.RegistryCodec().Encoded()); err != nil {
			log.Info().Err(err).Msg("client dropped during join")
			c.Destroy()
			return
		}
	}

	w.clients = append(w.clients, c)
}

func (w *basicWorld) Tick(srv *server.Server) {
	w.shared = srv.Shared()

	select {
	case sig := <-w.sigs:
		log.Info().Msgf("received %v, shutting down", sig)
		for _, c := range w.clients {
			c.Destroy()
		}
		w.clients = nil
		srv.Shared().Shutdown(nil)
		return
	default:
	}

	if srv.CurrentTick() == 0 || srv.CurrentTick()%keepaliveInterval != 0 {
		return
	}

	alive := w.clients[:0]
	for _, c := range w.clients {
		if err := c.Send(nil); err != nil {
			log.Info().
				Str("username", c.Username()).
				Err(err).
				Msg("client dropped")
			c.Destroy()
			continue
		}
		alive = append(alive, c)
	}
	w.clients = alive
}

func serveCommand(configs []string) error {
	conf, err := config.Process(configs)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}

	serverConfig, err := conf.ServerConfig()
	if err != nil {
		return err
	}

	if serverConfig.ConnectionMode != server.ConnectionModeOffline {
		return fmt.Errorf(
			"the standalone server only ships an offline-mode authenticator; %s mode needs a custom ingress",
			serverConfig.ConnectionMode,
		)
	}

	tcp := ingress.NewTCPIngress(&ingress.OfflineAuthenticator{})
	serverConfig.AcceptLoop = tcp.Loop()

	log.Info().
		Str("address", serverConfig.Address).
		Msg("starting server")

	return server.Run(serverConfig, newBasicWorld())
}
