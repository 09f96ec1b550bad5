package output

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"datalogger/driver"
)

var fixedTime = time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)

func TestFileName(t *testing.T) {
	tests := []struct {
		opts     Options
		expected string
	}{
		{Options{Name: "Data", Ext: ".csv"}, "Data 2024-03-09 14_05_07.csv"},
		{Options{Name: "Data", Ext: "csv"}, "Data 2024-03-09 14_05_07.csv"},
		{Options{Name: "Run", Ext: ""}, "Run 2024-03-09 14_05_07"},
	}

	for _, tc := range tests {
		got := tc.opts.FileName(fixedTime)
		if got != tc.expected {
			t.Errorf("FileName(%+v) = %q, want %q", tc.opts, got, tc.expected)
		}
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		v        float64
		expected string
	}{
		{0, "0.0"},
		{0.5, "0.5"},
		{1, "1.0"},
		{12.25, "12.25"},
		{0.1 + 0.2, "0.30000000000000004"},
	}

	for _, tc := range tests {
		if got := FormatElapsed(tc.v); got != tc.expected {
			t.Errorf("FormatElapsed(%v) = %q, want %q", tc.v, got, tc.expected)
		}
	}
}

func TestWriteFile(t *testing.T) {
	t.Run("two samples", func(t *testing.T) {
		dir := t.TempDir()
		samples := []driver.Sample{{Elapsed: 0.0, Reading: "1"}, {Elapsed: 0.5, Reading: "2"}}

		path, err := WriteFile(samples, Options{Dir: dir, Name: "Data", Ext: ".csv"}, fixedTime)
		if err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if filepath.Base(path) != "Data 2024-03-09 14_05_07.csv" {
			t.Errorf("unexpected file name %q", filepath.Base(path))
		}
		if !filepath.IsAbs(path) {
			t.Errorf("expected absolute path, got %q", path)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read output: %v", err)
		}
		if string(content) != "0.0,1\n0.5,2\n" {
			t.Errorf("unexpected content %q", content)
		}
	})

	t.Run("appends to existing file", func(t *testing.T) {
		dir := t.TempDir()
		opts := Options{Dir: dir, Name: "Data", Ext: ".csv"}
		existing := filepath.Join(dir, opts.FileName(fixedTime))
		if err := os.WriteFile(existing, []byte("existing content\n"), 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := WriteFile([]driver.Sample{{Elapsed: 1.5, Reading: "9"}}, opts, fixedTime); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		content, _ := os.ReadFile(existing)
		if string(content) != "existing content\n1.5,9\n" {
			t.Errorf("existing content not preserved: %q", content)
		}
	})

	t.Run("no samples still creates file", func(t *testing.T) {
		path, err := WriteFile(nil, Options{Dir: t.TempDir(), Name: "Empty", Ext: ".csv"}, fixedTime)
		if err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("file not created: %v", err)
		}
		if info.Size() != 0 {
			t.Errorf("expected empty file, got %d bytes", info.Size())
		}
	})

	t.Run("returns error for invalid dir", func(t *testing.T) {
		_, err := WriteFile(nil, Options{Dir: "/nonexistent/directory", Name: "Data", Ext: ".csv"}, fixedTime)
		if err == nil {
			t.Error("expected error for invalid directory")
		}
	})
}

func TestRoundTrip(t *testing.T) {
	samples := make([]driver.Sample, 0, 50)
	for i := 0; i < 50; i++ {
		samples = append(samples, driver.Sample{
			Elapsed: float64(i)*0.5 + float64(i%7)*1e-4,
			Reading: strings.Repeat("7", i%4+1) + ", V",
		})
	}

	path, err := WriteFile(samples, Options{Dir: t.TempDir(), Name: "Data", Ext: ".csv"}, fixedTime)
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if math.Abs(got[i].Elapsed-samples[i].Elapsed) > 1e-9 {
			t.Errorf("sample %d: elapsed %v, want %v", i, got[i].Elapsed, samples[i].Elapsed)
		}
		if got[i].Reading != samples[i].Reading {
			t.Errorf("sample %d: reading %q, want %q", i, got[i].Reading, samples[i].Reading)
		}
	}
}

func TestReadFile_Malformed(t *testing.T) {
	dir := t.TempDir()

	noSep := filepath.Join(dir, "nosep.csv")
	os.WriteFile(noSep, []byte("0.0\n"), 0644)
	if _, err := ReadFile(noSep); err == nil {
		t.Error("expected error for missing separator")
	}

	badTime := filepath.Join(dir, "badtime.csv")
	os.WriteFile(badTime, []byte("abc,5\n"), 0644)
	if _, err := ReadFile(badTime); err == nil {
		t.Error("expected error for bad elapsed time")
	}
}
