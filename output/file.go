// Package output persists collected samples to a delimited text file.
package output

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"datalogger/driver"
	"datalogger/logger"
)

// TimestampLayout is the local time stamp embedded in output file names
const TimestampLayout = "2006-01-02 15_04_05"

// Options names the output file
type Options struct {
	Dir  string
	Name string
	Ext  string // with or without the leading dot
}

// FileName returns "<Name> <timestamp><Ext>" for the given moment
func (o Options) FileName(now time.Time) string {
	ext := o.Ext
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s %s%s", o.Name, now.Format(TimestampLayout), ext)
}

// WriteFile appends one "elapsed,reading" line per sample, in order, to the
// file named by opts and now. It returns the absolute path written.
func WriteFile(samples []driver.Sample, opts Options, now time.Time) (string, error) {
	path, err := filepath.Abs(filepath.Join(opts.Dir, opts.FileName(now)))
	if err != nil {
		return "", err
	}
	logger.Info("Saving as: %s", path)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open output file: %w", err)
	}

	w := bufio.NewWriter(file)
	for _, s := range samples {
		if _, err := fmt.Fprintf(w, "%s,%s\n", FormatElapsed(s.Elapsed), s.Reading); err != nil {
			file.Close()
			return "", fmt.Errorf("failed to write sample: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to write samples: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", err
	}

	logger.Info("Saved %d samples", len(samples))
	return path, nil
}

// FormatElapsed renders seconds as the shortest decimal that parses back to
// the same value, always with a fractional part ("0.0", "0.5", "12.25").
func FormatElapsed(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// ReadFile parses a file written by WriteFile back into samples.
// Only the first comma separates the time from the reading.
func ReadFile(path string) ([]driver.Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var samples []driver.Sample
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		elapsed, reading, ok := strings.Cut(text, ",")
		if !ok {
			return nil, fmt.Errorf("%s:%d: missing separator", path, line)
		}
		v, err := strconv.ParseFloat(elapsed, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad elapsed time: %w", path, line, err)
		}
		samples = append(samples, driver.Sample{Elapsed: v, Reading: reading})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}
