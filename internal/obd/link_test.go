package obd

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPort returns queued chunks one per Read call, simulating partial
// deliveries from a serial adapter.
type scriptedPort struct {
	mu      sync.Mutex
	chunks  [][]byte
	written []byte
	readErr error
	closed  bool
}

func (p *scriptedPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.chunks) == 0 {
		// Behave like a serial read timeout: no data, no error.
		return 0, nil
	}
	n := copy(buf, p.chunks[0])
	if n == len(p.chunks[0]) {
		p.chunks = p.chunks[1:]
	} else {
		p.chunks[0] = p.chunks[0][n:]
	}
	return n, nil
}

func (p *scriptedPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, data...)
	return len(data), nil
}

func (p *scriptedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func TestSendAndAwaitBuffersUntilPrompt(t *testing.T) {
	port := &scriptedPort{chunks: [][]byte{
		[]byte("41 0C "),
		[]byte("1A"),
		[]byte("F2\r\r>"),
	}}
	tr := NewSerialTransport(port, time.Second)

	resp, err := tr.SendAndAwait(context.Background(), "010C")
	require.NoError(t, err)
	assert.Equal(t, "41 0C 1AF2\r\r", resp)
	assert.Equal(t, "010C\r", string(port.written), "command must be CR-terminated")
}

func TestSendAndAwaitTimesOut(t *testing.T) {
	port := &scriptedPort{} // never delivers a prompt
	tr := NewSerialTransport(port, 30*time.Millisecond)

	_, err := tr.SendAndAwait(context.Background(), "010D")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSendAndAwaitContextCancel(t *testing.T) {
	port := &scriptedPort{}
	tr := NewSerialTransport(port, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tr.SendAndAwait(ctx, "010D")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendAndAwaitReadError(t *testing.T) {
	port := &scriptedPort{readErr: io.ErrClosedPipe}
	tr := NewSerialTransport(port, time.Second)

	_, err := tr.SendAndAwait(context.Background(), "010C")
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestInitializeSendsBatch(t *testing.T) {
	mock := NewMockTransport(map[string]string{
		"ATZ":  "ELM327 v1.5",
		"ATE0": "OK",
	})

	require.NoError(t, Initialize(context.Background(), mock))
	assert.Equal(t, InitCommands, mock.RequestLog())
}

func TestInitializeStopsOnFailure(t *testing.T) {
	mock := NewMockTransport(nil)
	mock.Err = errors.New("adapter unplugged")

	err := Initialize(context.Background(), mock)
	assert.Error(t, err)
	assert.Len(t, mock.RequestLog(), 1, "must stop at the first failed command")
}
