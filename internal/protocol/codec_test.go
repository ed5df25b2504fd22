package protocol

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRecvBlobRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 127, 128, 129, 1000, 70000}
	for _, size := range sizes {
		clientConn, serverConn := net.Pipe()
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i % 251)
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- SendBlob(clientConn, payload)
		}()

		got, err := RecvBlob(serverConn)
		require.NoError(t, err)
		require.NoError(t, <-errCh)
		assert.Equal(t, payload, got)

		clientConn.Close()
		serverConn.Close()
	}
}

func TestRecvBlobRejectsBadWidth(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	go func() {
		SendStatus(clientConn, Status(0))
	}()

	_, err := RecvBlob(serverConn)
	assert.ErrorIs(t, err, ErrBadWidth)
}

func TestWidthForBoundaries(t *testing.T) {
	assert.Equal(t, uint8(1), widthFor(0))
	assert.Equal(t, uint8(1), widthFor(255))
	assert.Equal(t, uint8(2), widthFor(256))
	assert.Equal(t, uint8(6), widthFor(1<<40))
}

func TestHandshakeStringStableAndDistinct(t *testing.T) {
	a := HandshakeString(DefaultConstants)
	b := HandshakeString(DefaultConstants)
	assert.Equal(t, a, b)

	modified := DefaultConstants
	modified.MaxChunk = 64
	c := HandshakeString(modified)
	assert.NotEqual(t, a, c)
}
