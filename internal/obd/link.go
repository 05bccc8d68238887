package obd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/driveline-data/speedfusion/internal/monitoring"
)

// ErrTimeout is returned when the adapter does not deliver a prompt within
// the request timeout.
var ErrTimeout = errors.New("obd: request timed out")

// promptByte terminates every adapter response. Responses may arrive in
// arbitrary partial reads and must be buffered until the prompt is seen.
const promptByte = '>'

// Transport is the half-duplex request/response primitive the poller runs
// over. Implementations must not allow two requests in flight at once.
type Transport interface {
	// SendAndAwait writes a command and blocks until the full response
	// (terminated by the adapter prompt) arrives or the context/timeout
	// expires.
	SendAndAwait(ctx context.Context, command string) (string, error)
	Close() error
}

// Port is the minimal serial interface the link needs; go.bug.st/serial
// ports satisfy it, and tests substitute scripted implementations.
type Port interface {
	io.ReadWriteCloser
}

// SerialTransport drives a real adapter over a serial port. A mutex
// serializes requests, modeling the single half-duplex link.
type SerialTransport struct {
	mu      sync.Mutex
	port    Port
	timeout time.Duration
}

// OpenSerialTransport opens the serial port at path with the given baud rate
// (8N1) and wraps it in a SerialTransport.
func OpenSerialTransport(path string, baud int, timeout time.Duration) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	// Short read timeout so the response loop can poll for the prompt while
	// honouring the overall request deadline.
	if err := port.SetReadTimeout(20 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	return NewSerialTransport(port, timeout), nil
}

// NewSerialTransport wraps an already-open port.
func NewSerialTransport(port Port, timeout time.Duration) *SerialTransport {
	return &SerialTransport{port: port, timeout: timeout}
}

// SendAndAwait writes the command terminated by a carriage return and buffers
// reads until the prompt character arrives. Partial deliveries are expected;
// the response accumulates across reads.
func (t *SerialTransport) SendAndAwait(ctx context.Context, command string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !strings.HasSuffix(command, "\r") {
		command += "\r"
	}
	if _, err := t.port.Write([]byte(command)); err != nil {
		return "", fmt.Errorf("failed to write command %q: %w", command, err)
	}

	deadline := time.Now().Add(t.timeout)
	var response strings.Builder
	buf := make([]byte, 64)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		if time.Now().After(deadline) {
			return "", ErrTimeout
		}

		n, err := t.port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("failed to read response: %w", err)
		}
		for i := 0; i < n; i++ {
			if buf[i] == promptByte {
				return response.String(), nil
			}
			response.WriteByte(buf[i])
		}
	}
}

// Close releases the serial port.
func (t *SerialTransport) Close() error {
	return t.port.Close()
}

// Initialize sends the adapter configuration batch (reset, echo off, and so
// on). Individual command failures are fatal: an unconfigured adapter would
// poison every later decode.
func Initialize(ctx context.Context, t Transport) error {
	for _, cmd := range InitCommands {
		resp, err := t.SendAndAwait(ctx, cmd)
		if err != nil {
			return fmt.Errorf("failed to send init command %q: %w", cmd, err)
		}
		monitoring.Logf("obd: init %s -> %q", cmd, strings.TrimSpace(resp))
		if cmd == "ATZ" {
			// The reset command needs settle time before the adapter accepts
			// further configuration.
			time.Sleep(100 * time.Millisecond)
		}
	}
	return nil
}

// MockTransport is a scripted Transport for tests and bench mode. Responses
// are looked up by command; unknown commands return a NO DATA response.
type MockTransport struct {
	mu        sync.Mutex
	Responses map[string]string
	// Err, when set, is returned by every SendAndAwait call.
	Err error
	// Requests records every command sent, in order.
	Requests []string
}

// NewMockTransport creates a MockTransport with the given canned responses.
func NewMockTransport(responses map[string]string) *MockTransport {
	if responses == nil {
		responses = make(map[string]string)
	}
	return &MockTransport{Responses: responses}
}

// SendAndAwait records the request and returns the canned response.
func (m *MockTransport) SendAndAwait(_ context.Context, command string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	command = strings.TrimSuffix(command, "\r")
	m.Requests = append(m.Requests, command)
	if m.Err != nil {
		return "", m.Err
	}
	if resp, ok := m.Responses[command]; ok {
		return resp, nil
	}
	return "NO DATA", nil
}

// Close is a no-op.
func (m *MockTransport) Close() error { return nil }

// RequestLog returns a copy of all recorded requests.
func (m *MockTransport) RequestLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Requests))
	copy(out, m.Requests)
	return out
}
