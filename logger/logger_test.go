package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readLog(t *testing.T, dir string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	return string(content)
}

func TestInit(t *testing.T) {
	t.Run("creates directory and file", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "logs")
		if err := Init(dir); err != nil {
			t.Fatalf("Init failed: %v", err)
		}
		defer Close()

		if _, err := os.Stat(filepath.Join(dir, LogFileName)); os.IsNotExist(err) {
			t.Error("log file was not created")
		}
	})

	t.Run("returns error for invalid path", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "plain")
		if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
		if err := Init(filepath.Join(file, "logs")); err == nil {
			Close()
			t.Error("expected error when log dir is below a regular file")
		}
	})
}

func TestLevels(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer Close()
	defer SetDebug(false)

	SetDebug(false)
	Info("connected to %s", "/dev/ttyUSB0")
	Warn("attempt %d failed", 2)
	Error("transport fault")
	Critical("Unable to connect to device")
	Debug("hidden debug line")
	Protocol("TX", "/dev/ttyUSB0", []byte("T3\n"))
	Sample(0.5, "5")

	SetDebug(true)
	Debug("visible debug line")
	Protocol("RX", "/dev/ttyUSB0", []byte("5\r\n"))

	str := readLog(t, dir)
	for _, want := range []string{
		"[INFO] connected to /dev/ttyUSB0",
		"[WARN] attempt 2 failed",
		"[ERROR] transport fault",
		"[CRITICAL] Unable to connect to device",
		`[SAMPLE] t=0.500 reading="5"`,
		"[DEBUG] visible debug line",
		`[PROTO] RX /dev/ttyUSB0 data="5\r\n"`,
	} {
		if !strings.Contains(str, want) {
			t.Errorf("expected %q in log, got:\n%s", want, str)
		}
	}
	if strings.Contains(str, "hidden debug line") {
		t.Error("debug line written while debug disabled")
	}
	if strings.Contains(str, "PROTO] TX") {
		t.Error("protocol line written while debug disabled")
	}
}

func TestClose(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	Close()
	// Second close should be safe
	Close()

	Info("should not appear")
	if strings.Contains(readLog(t, dir), "should not appear") {
		t.Error("logged to file after close")
	}
}

func TestRotateOldLogs(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer Close()

	archive := filepath.Join(dir, "datalogger.old.log")
	f, err := os.Create(archive)
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	f.Close()
	if err := os.Truncate(archive, MaxLogDirSize+1); err != nil {
		t.Fatalf("failed to grow archive: %v", err)
	}

	checkAndRotate()

	if _, err := os.Stat(archive); !os.IsNotExist(err) {
		t.Error("old log was not removed")
	}
	if _, err := os.Stat(filepath.Join(dir, LogFileName)); err != nil {
		t.Errorf("current log should remain: %v", err)
	}
}

func TestRotateKeepsOtherFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer Close()

	data := filepath.Join(dir, "Data 2024-01-02 03_04_05.csv")
	if err := os.WriteFile(data, []byte("0.0,5\n"), 0644); err != nil {
		t.Fatal(err)
	}
	big := filepath.Join(dir, "capture.bin")
	f, err := os.Create(big)
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	if err := os.Truncate(big, MaxLogDirSize+1); err != nil {
		t.Fatalf("failed to grow file: %v", err)
	}
	Info("keep me")

	checkAndRotate()

	for _, path := range []string{data, big} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s should survive rotation: %v", filepath.Base(path), err)
		}
	}
	if !strings.Contains(readLog(t, dir), "keep me") {
		t.Error("current log was truncated because of non-log files")
	}
}

func TestLogFilesSize(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "datalogger.log"), make([]byte, 100), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "datalogger.1.log"), make([]byte, 50), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Data.csv"), make([]byte, 70), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "datalogger.d.log"), 0755); err != nil {
		t.Fatal(err)
	}

	size, err := logFilesSize(dir)
	if err != nil {
		t.Fatalf("logFilesSize failed: %v", err)
	}
	if size != 150 {
		t.Errorf("expected 150 bytes, got %d", size)
	}
}
