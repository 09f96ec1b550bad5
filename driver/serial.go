package driver

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Serial line defaults used when probing for the instrument
const (
	DefaultBaudRate    = 9600
	DefaultReadTimeout = 500 * time.Millisecond
)

// SerialPort wraps go.bug.st/serial for instrument communication
type SerialPort struct {
	serial.Port
	portName string
}

var _ Port = (*SerialPort)(nil)

// OpenSerial opens a physical serial port at 8N1 with the given read timeout.
// A read that times out returns (0, nil).
func OpenSerial(portName string, baudRate int, readTimeout time.Duration) (*SerialPort, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	return &SerialPort{Port: port, portName: portName}, nil
}

// SerialOpener returns an OpenFunc bound to one baud rate and read timeout
func SerialOpener(baudRate int, readTimeout time.Duration) OpenFunc {
	return func(name string) (Port, error) {
		p, err := OpenSerial(name, baudRate, readTimeout)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// ListSerialPorts enumerates the host's serial ports in platform order
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

func (p *SerialPort) GetPortName() string {
	return p.portName
}
