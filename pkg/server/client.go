package server

import (
	"net"
	"sync"

	"github.com/google/uuid"
)

// PacketSink is the outbound endpoint bound to one client's connection.
// Implementations are provided by the accept subsystem; packets are
// opaque to the simulation core.
type PacketSink interface {
	SendPacket(p []byte) error
	Close() error
}

// PacketSource is the inbound endpoint bound to one client's connection.
type PacketSource interface {
	// ReceivePacket blocks until a packet arrives or the connection
	// fails.
	ReceivePacket() ([]byte, error)
}

// SignedPlayerTextures is the client's signed appearance data, verified
// by the accept subsystem during authentication.
type SignedPlayerTextures struct {
	Payload   []byte
	Signature []byte
}

// NewClientInfo identifies a client that completed authentication.
type NewClientInfo struct {
	Username string
	UUID     uuid.UUID
	IP       net.IP
	// Textures is nil when the client has no skin or cape.
	Textures *SignedPlayerTextures
}

// NewClientMessage is the unit of work handed from the accept subsystem
// to the simulation loop: one authenticated, ready-to-simulate client.
// Each message is produced once per accepted connection and consumed
// exactly once, carrying ownership of the connection's admission permit.
type NewClientMessage struct {
	Info   NewClientInfo
	Sink   PacketSink
	Source PacketSource
	Permit *Permit
}

// Client is the simulation-side handle for one connection. It owns the
// connection's admission permit and its packet endpoints; Destroy is the
// only path that releases the permit.
type Client struct {
	info   NewClientInfo
	sink   PacketSink
	source PacketSource
	permit *Permit
	once   sync.Once
}

func newClient(msg NewClientMessage) *Client {
	return &Client{
		info:   msg.Info,
		sink:   msg.Sink,
		source: msg.Source,
		permit: msg.Permit,
	}
}

func (c *Client) Username() string {
	return c.info.Username
}

func (c *Client) UUID() uuid.UUID {
	return c.info.UUID
}

func (c *Client) IP() net.IP {
	return c.info.IP
}

func (c *Client) Textures() *SignedPlayerTextures {
	return c.info.Textures
}

// Send writes one packet to the client's connection.
func (c *Client) Send(p []byte) error {
	return c.sink.SendPacket(p)
}

// Receive blocks until the client's connection yields a packet.
func (c *Client) Receive() ([]byte, error) {
	return c.source.ReceivePacket()
}

// Destroy tears down the client: the outbound endpoint is closed and the
// admission permit is released, freeing one slot for a new connection.
// Safe to call more than once; only the first call has any effect.
func (c *Client) Destroy() {
	c.once.Do(func() {
		if c.sink != nil {
			_ = c.sink.Close()
		}
		c.permit.Release()
	})
}
