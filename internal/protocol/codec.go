// Package protocol implements the length-prefixed binary wire codec and the
// broker/worker session state machines built on top of it.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxChunk is the largest number of payload bytes transferred in a single
// write during a blob transfer.
const MaxChunk = 128

// widthFor returns the smallest width, in bytes, able to hold length n.
func widthFor(n int) uint8 {
	for w := uint8(1); w <= 8; w++ {
		if uint64(n) < uint64(1)<<(8*w) {
			return w
		}
	}
	return 8
}

// SendStatus writes a single status byte and returns ErrConnectionLost on
// I/O failure.
func SendStatus(w io.Writer, s Status) error {
	if _, err := w.Write([]byte{byte(s)}); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return nil
}

// RecvStatus reads a single status byte.
func RecvStatus(r io.Reader) (Status, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	return Status(buf[0]), nil
}

// expectStatus reads a status byte and fails with ErrProtocol unless it
// equals want.
func expectStatus(r io.Reader, want Status) error {
	got, err := RecvStatus(r)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: expected %s, got %s", ErrProtocol, want, got)
	}
	return nil
}

// SendBlob transmits b using the self-describing length-width framing:
// a width byte, acked by the peer, then the big-endian length, acked by the
// peer, then the payload in chunks of at most MaxChunk bytes, acked once at
// the end.
func SendBlob(rw io.ReadWriter, b []byte) error {
	w := widthFor(len(b))
	if err := SendStatus(rw, Status(w)); err != nil {
		return err
	}
	if err := expectStatus(rw, Success); err != nil {
		return err
	}

	lenBuf := make([]byte, 8)
	binary.BigEndian.PutUint64(lenBuf, uint64(len(b)))
	if _, err := rw.Write(lenBuf[8-w:]); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	if err := expectStatus(rw, Success); err != nil {
		return err
	}

	for off := 0; off < len(b); off += MaxChunk {
		end := off + MaxChunk
		if end > len(b) {
			end = len(b)
		}
		if _, err := rw.Write(b[off:end]); err != nil {
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
	}
	return expectStatus(rw, Success)
}

// RecvBlob receives a blob sent by SendBlob, acknowledging each step with a
// SUCCESS status frame.
func RecvBlob(rw io.ReadWriter) ([]byte, error) {
	wStatus, err := RecvStatus(rw)
	if err != nil {
		return nil, err
	}
	w := uint8(wStatus)
	if w < 1 || w > 8 {
		return nil, fmt.Errorf("%w: width %d", ErrBadWidth, w)
	}
	if err := SendStatus(rw, Success); err != nil {
		return nil, err
	}

	lenBuf := make([]byte, 8)
	if _, err := io.ReadFull(rw, lenBuf[8-w:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	length := binary.BigEndian.Uint64(lenBuf)
	if err := SendStatus(rw, Success); err != nil {
		return nil, err
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(rw, payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
	}
	if err := SendStatus(rw, Success); err != nil {
		return nil, err
	}
	return payload, nil
}
