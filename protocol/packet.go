package protocol

// Line protocol constants
const (
	// Terminator ends every command written to the instrument.
	Terminator byte = '\n'

	// MaxResponseLen is the most bytes read for a single answer.
	MaxResponseLen = 256
)

// BuildCommand frames a command for the wire: the text verbatim plus the terminator.
func BuildCommand(cmd string) []byte {
	frame := make([]byte, 0, len(cmd)+1)
	frame = append(frame, cmd...)
	return append(frame, Terminator)
}

// BuildProbe frames the setup and probe commands written during discovery.
// Each command is terminated separately, setup first.
func BuildProbe(setup, probe string) [][]byte {
	return [][]byte{BuildCommand(setup), BuildCommand(probe)}
}
