package driver

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"
)

// Responder produces the instrument's answer to one command line.
// An empty answer means the instrument stays silent.
type Responder func(command string) string

// MockPort simulates an instrument on a serial line
type MockPort struct {
	readBuf   *bytes.Buffer
	pending   []byte
	responder Responder
	mu        sync.Mutex
	closed    bool
	commands  []string
	simDelay  time.Duration // simulated answer latency

	// ReadErr and WriteErr, when set, are returned by every Read/Write.
	ReadErr  error
	WriteErr error
}

var _ Port = (*MockPort)(nil)

func NewMockPort(responder Responder) *MockPort {
	return &MockPort{
		readBuf:   new(bytes.Buffer),
		responder: responder,
	}
}

// SetDelay sets how long each Read takes before returning data
func (m *MockPort) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.simDelay = d
}

func (m *MockPort) Read(p []byte) (n int, err error) {
	m.mu.Lock()
	delay := m.simDelay
	m.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, io.EOF
	}
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}

	// Nothing buffered behaves like an expired read timeout
	if m.readBuf.Len() == 0 {
		return 0, nil
	}
	return m.readBuf.Read(p)
}

func (m *MockPort) Write(p []byte) (n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, io.ErrClosedPipe
	}
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}

	m.pending = append(m.pending, p...)
	for {
		idx := bytes.IndexByte(m.pending, '\n')
		if idx < 0 {
			break
		}
		line := string(m.pending[:idx])
		m.pending = m.pending[idx+1:]

		m.commands = append(m.commands, line)
		if m.responder == nil {
			continue
		}
		if resp := m.responder(line); resp != "" {
			m.readBuf.WriteString(resp)
			m.readBuf.WriteString("\r\n")
		}
	}

	return len(p), nil
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readBuf.Reset()
	return nil
}

// Commands returns every command line received so far
func (m *MockPort) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

// IsClosed reports whether Close was called
func (m *MockPort) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockInstrument answers the send command with a fixed reading and ignores everything else
func MockInstrument(send, reading string) Responder {
	return func(command string) string {
		if command == send {
			return reading
		}
		return ""
	}
}

// SimulatedInstrument answers the send command with a slowly varying value,
// used by the -mock bench mode.
func SimulatedInstrument(send string) Responder {
	var mu sync.Mutex
	n := 0
	return func(command string) string {
		if strings.TrimSpace(command) != send {
			return ""
		}
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%.3f", 20+2*math.Sin(float64(n)/10))
	}
}

// MockOpener returns an OpenFunc that hands out fresh mock ports
func MockOpener(responder Responder) OpenFunc {
	return func(name string) (Port, error) {
		return NewMockPort(responder), nil
	}
}
