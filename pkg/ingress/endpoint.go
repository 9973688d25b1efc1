package ingress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// Packets cross the wire as length-prefixed opaque frames. The cap keeps
// a hostile peer from forcing a huge allocation with one prefix.
const maxFrameSize = 1 << 21

var errSinkClosed = errors.New("packet sink is closed")

// newConnEndpoints wraps a connection in the capacity-bounded sink and
// source endpoints carried by a handoff message. The reader goroutine
// stops pulling from the socket while the incoming queue is full, and
// SendPacket fails fast once the outgoing queue is full, so one slow
// client can never buffer unboundedly.
func newConnEndpoints(conn net.Conn, incoming, outgoing int) (*connSink, *connSource) {
	sink := &connSink{
		conn:   conn,
		out:    make(chan []byte, outgoing),
		closed: make(chan struct{}),
	}
	source := &connSource{
		conn: conn,
		in:   make(chan []byte, incoming),
		errc: make(chan error, 1),
	}

	go sink.writeLoop()
	go source.readLoop()

	return sink, source
}

type connSink struct {
	conn   net.Conn
	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func (s *connSink) SendPacket(p []byte) error {
	select {
	case <-s.closed:
		return errSinkClosed
	default:
	}

	select {
	case s.out <- p:
		return nil
	case <-s.closed:
		return errSinkClosed
	default:
		return fmt.Errorf("outgoing queue full, dropping %d byte packet", len(p))
	}
}

func (s *connSink) Close() error {
	s.once.Do(func() {
		close(s.closed)
	})
	return s.conn.Close()
}

func (s *connSink) writeLoop() {
	var prefix [4]byte

	for {
		select {
		case p := <-s.out:
			binary.BigEndian.PutUint32(prefix[:], uint32(len(p)))
			if _, err := s.conn.Write(prefix[:]); err != nil {
				return
			}
			if _, err := s.conn.Write(p); err != nil {
				return
			}
		case <-s.closed:
			return
		}
	}
}

type connSource struct {
	conn net.Conn
	in   chan []byte
	errc chan error
}

func (s *connSource) ReceivePacket() ([]byte, error) {
	// Packets buffered before the connection failed are still
	// delivered, in order.
	select {
	case p := <-s.in:
		return p, nil
	default:
	}

	select {
	case p := <-s.in:
		return p, nil
	case err := <-s.errc:
		// Put it back so later calls keep failing with the same error.
		s.errc <- err
		return nil, err
	}
}

func (s *connSource) readLoop() {
	var prefix [4]byte

	for {
		if _, err := io.ReadFull(s.conn, prefix[:]); err != nil {
			s.errc <- err
			return
		}

		size := binary.BigEndian.Uint32(prefix[:])
		if size > maxFrameSize {
			s.errc <- fmt.Errorf("frame of %d bytes exceeds limit", size)
			return
		}

		p := make([]byte, size)
		if _, err := io.ReadFull(s.conn, p); err != nil {
			s.errc <- err
			return
		}

		// Blocks while the incoming queue is full, which in turn stops
		// socket reads. That is the backpressure, not an error.
		s.in <- p
	}
}
