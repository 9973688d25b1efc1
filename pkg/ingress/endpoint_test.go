package ingress

import (
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnEndpoints(t *testing.T) {
	client, srv := net.Pipe()
	defer client.Close()

	sink, source := newConnEndpoints(srv, 16, 16)
	defer sink.Close()

	// Outbound: packets arrive framed, in order.
	require.NoError(t, sink.SendPacket([]byte("hello")))
	require.NoError(t, sink.SendPacket([]byte("world")))

	for _, want := range []string{"hello", "world"} {
		var prefix [4]byte
		_, err := io.ReadFull(client, prefix[:])
		require.NoError(t, err)
		require.Equal(t, uint32(len(want)), binary.BigEndian.Uint32(prefix[:]))

		payload := make([]byte, len(want))
		_, err = io.ReadFull(client, payload)
		require.NoError(t, err)
		require.Equal(t, want, string(payload))
	}

	// Inbound: frames written by the peer come out of the source.
	writeFrame := func(p []byte) {
		var prefix [4]byte
		binary.BigEndian.PutUint32(prefix[:], uint32(len(p)))
		_, err := client.Write(prefix[:])
		require.NoError(t, err)
		_, err = client.Write(p)
		require.NoError(t, err)
	}

	go func() {
		writeFrame([]byte("one"))
		writeFrame([]byte("two"))
	}()

	p, err := source.ReceivePacket()
	require.NoError(t, err)
	require.Equal(t, "one", string(p))

	p, err = source.ReceivePacket()
	require.NoError(t, err)
	require.Equal(t, "two", string(p))
}

func TestConnSourceFailure(t *testing.T) {
	client, srv := net.Pipe()

	_, source := newConnEndpoints(srv, 16, 16)

	go func() {
		time.Sleep(10 * time.Millisecond)
		client.Close()
	}()

	_, err := source.ReceivePacket()
	require.Error(t, err)

	// The failure is sticky.
	_, err = source.ReceivePacket()
	require.Error(t, err)
}

func TestConnSinkClosed(t *testing.T) {
	_, srv := net.Pipe()

	sink, _ := newConnEndpoints(srv, 4, 4)
	require.NoError(t, sink.Close())

	err := sink.SendPacket([]byte("late"))
	require.ErrorIs(t, err, errSinkClosed)
}

func TestOfflineUUID(t *testing.T) {
	a := OfflineUUID("Notch")
	b := OfflineUUID("Notch")
	c := OfflineUUID("Steve")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
