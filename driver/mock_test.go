package driver

import (
	"io"
	"strconv"
	"testing"
)

func TestMockPort(t *testing.T) {
	t.Run("answers complete lines only", func(t *testing.T) {
		port := NewMockPort(MockInstrument("T3", "5"))
		port.Write([]byte("T"))
		buf := make([]byte, 16)
		if n, _ := port.Read(buf); n != 0 {
			t.Errorf("answered a partial command: %q", buf[:n])
		}

		port.Write([]byte("3\n"))
		n, err := port.Read(buf)
		if err != nil || string(buf[:n]) != "5\r\n" {
			t.Errorf("got %q, %v", buf[:n], err)
		}
	})

	t.Run("ignores other commands", func(t *testing.T) {
		port := NewMockPort(MockInstrument("T3", "5"))
		port.Write([]byte("F1RAN5\n"))
		if n, _ := port.Read(make([]byte, 16)); n != 0 {
			t.Error("setup command should not be answered")
		}
		if cmds := port.Commands(); len(cmds) != 1 || cmds[0] != "F1RAN5" {
			t.Errorf("unexpected commands %v", cmds)
		}
	})

	t.Run("reset drops pending answer", func(t *testing.T) {
		port := NewMockPort(MockInstrument("T3", "5"))
		port.Write([]byte("T3\n"))
		port.ResetInputBuffer()
		if n, _ := port.Read(make([]byte, 16)); n != 0 {
			t.Error("buffer not reset")
		}
	})

	t.Run("closed port", func(t *testing.T) {
		port := NewMockPort(nil)
		port.Close()
		if _, err := port.Read(make([]byte, 1)); err != io.EOF {
			t.Errorf("expected EOF, got %v", err)
		}
		if _, err := port.Write([]byte("T3\n")); err != io.ErrClosedPipe {
			t.Errorf("expected ErrClosedPipe, got %v", err)
		}
	})
}

func TestSimulatedInstrument(t *testing.T) {
	respond := SimulatedInstrument("T3")
	if respond("F1RAN5") != "" {
		t.Error("setup command should not be answered")
	}
	for i := 0; i < 5; i++ {
		v, err := strconv.ParseFloat(respond("T3"), 64)
		if err != nil {
			t.Fatalf("reading is not numeric: %v", err)
		}
		if v < 18 || v > 22 {
			t.Errorf("reading %v out of range", v)
		}
	}
}
