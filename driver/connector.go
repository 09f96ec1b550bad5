package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"datalogger/logger"
	"datalogger/protocol"
)

// Discovery retry policy
const (
	DefaultAttempts   = 7
	DefaultRetryDelay = 2 * time.Second
)

var (
	errNoPorts  = errors.New("no serial ports available")
	errNoAnswer = errors.New("no port answered the probe")
)

// Connector finds the port the instrument is attached to by probing every
// available port with the setup and probe commands.
type Connector struct {
	SetupCommand string
	ProbeCommand string

	Attempts   int
	RetryDelay time.Duration

	List  ListFunc
	Open  OpenFunc
	State *StateMachine

	sleep func(ctx context.Context, d time.Duration) error
}

// NewConnector returns a Connector for the host's serial ports at 9600 baud
// with a 0.5 s read timeout, 7 attempts and a 2 s delay between attempts.
func NewConnector(setup, probe string) *Connector {
	return &Connector{
		SetupCommand: setup,
		ProbeCommand: probe,
		Attempts:     DefaultAttempts,
		RetryDelay:   DefaultRetryDelay,
		List:         ListSerialPorts,
		Open:         SerialOpener(DefaultBaudRate, DefaultReadTimeout),
		sleep:        sleepContext,
	}
}

// Connect runs discovery passes until a port answers or the attempts are
// used up. The returned port is open and owned by the caller.
func (c *Connector) Connect(ctx context.Context) (Port, error) {
	c.State.TransitionTo(StateConnecting)
	logger.Info("Connecting to device")

	attempts := c.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := c.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, c.interrupted(err)
		}

		port, name, err := c.scanAndConnect()
		if err == nil {
			c.State.SetPort(name)
			logger.Info("Device found on %s (attempt %d)", name, attempt)
			return port, nil
		}
		lastErr = err
		logger.Warn("No connection to device (attempt %d/%d): %v", attempt, attempts, err)

		if attempt < attempts {
			if err := sleep(ctx, c.RetryDelay); err != nil {
				return nil, c.interrupted(err)
			}
		}
	}

	err := fmt.Errorf("%w after %d attempts: %v", ErrConnect, attempts, lastErr)
	c.State.TransitionToError(err)
	return nil, err
}

func (c *Connector) interrupted(cause error) error {
	c.State.TransitionTo(StateInterrupted)
	return fmt.Errorf("%w: %w", ErrConnect, cause)
}

// scanAndConnect is one discovery pass over every enumerated port
func (c *Connector) scanAndConnect() (Port, string, error) {
	ports, err := c.List()
	if err != nil {
		return nil, "", fmt.Errorf("failed to list serial ports: %w", err)
	}
	if len(ports) == 0 {
		return nil, "", errNoPorts
	}

	logger.Debug("Found %d candidate ports: %v", len(ports), ports)

	for _, portName := range ports {
		if port, ok := c.probePort(portName); ok {
			return port, portName, nil
		}
	}

	return nil, "", errNoAnswer
}

// probePort writes the setup and probe commands and waits for any answer.
// Ports that stay silent are closed before returning.
func (c *Connector) probePort(portName string) (Port, bool) {
	port, err := c.Open(portName)
	if err != nil {
		logger.Debug("Failed to open %s: %v", portName, err)
		return nil, false
	}

	if err := port.ResetInputBuffer(); err != nil {
		logger.Debug("Failed to reset input buffer on %s: %v", portName, err)
	}

	logger.Info("Inputting device settings to: %s", portName)
	logger.Debug("Setup settings: %s", c.SetupCommand)
	for _, frame := range protocol.BuildProbe(c.SetupCommand, c.ProbeCommand) {
		if _, err := port.Write(frame); err != nil {
			logger.Debug("Write failed on %s: %v", portName, err)
			port.Close()
			return nil, false
		}
		logger.Protocol("TX", portName, frame)
	}

	raw, err := protocol.ReadResponse(port, protocol.MaxResponseLen)
	if err != nil {
		logger.Debug("Read failed on %s: %v", portName, err)
		port.Close()
		return nil, false
	}
	logger.Protocol("RX", portName, raw)

	if protocol.ParseResponse(raw) == "" {
		logger.Debug("No response from %s", portName)
		port.Close()
		return nil, false
	}

	return port, true
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
