package protocol

import (
	"io"
	"strings"
	"unicode"
)

// ReadResponse reads one answer of at most limit bytes from r.
//
// The port is expected to return (0, nil) once its read timeout expires, so
// reading stops on the first empty read, on a full buffer, or as soon as the
// received data ends with the terminator. Whatever arrived before an error is
// returned together with it.
func ReadResponse(r io.Reader, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = MaxResponseLen
	}
	buf := make([]byte, limit)
	total := 0

	for total < limit {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if err == io.EOF && total > 0 {
				break
			}
			return buf[:total], err
		}
		if n == 0 {
			break
		}
		if buf[total-1] == Terminator {
			break
		}
	}

	return buf[:total], nil
}

// ParseResponse trims trailing whitespace from a raw answer.
// An empty result means the instrument did not answer.
func ParseResponse(raw []byte) string {
	return strings.TrimRightFunc(string(raw), unicode.IsSpace)
}
