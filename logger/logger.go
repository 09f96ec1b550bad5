package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	MaxLogDirSize = 10 * 1024 * 1024 // 10MB
	LogFileName   = "datalogger.log"
)

var (
	logFile     *os.File
	logDir      string
	mu          sync.Mutex
	initialized bool
	stopCheck   chan struct{}
	debug       atomic.Bool
)

// Init initializes the logger with a log directory
func Init(dir string) error {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return nil
	}

	logDir = dir

	// Create log directory if it doesn't exist
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	// Open log file
	logPath := filepath.Join(logDir, LogFileName)
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logFile = file

	// Set log output to file
	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	initialized = true
	stopCheck = make(chan struct{})

	// Check log directory size on startup
	go checkAndRotate()

	// Start periodic size check
	go periodicSizeCheck(stopCheck)

	log.Printf("[INFO] Logger initialized")
	return nil
}

// Close closes the log file and returns output to stderr
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if stopCheck != nil {
		close(stopCheck)
		stopCheck = nil
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	log.SetOutput(os.Stderr)
	initialized = false
}

// SetDebug enables or disables DEBUG and PROTO lines
func SetDebug(enabled bool) {
	debug.Store(enabled)
}

// DebugEnabled reports whether DEBUG lines are written
func DebugEnabled() bool {
	return debug.Load()
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[INFO] %s", msg)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[WARN] %s", msg)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[ERROR] %s", msg)
}

// Critical logs a condition that ends the run
func Critical(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("[CRITICAL] %s", msg)
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	if !debug.Load() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	log.Printf("[DEBUG] %s", msg)
}

// Sample logs one collected reading
func Sample(elapsed float64, reading string) {
	log.Printf("[SAMPLE] t=%.3f reading=%q", elapsed, reading)
}

// Protocol logs raw line traffic on a port
func Protocol(direction, port string, data []byte) {
	if !debug.Load() {
		return
	}
	if len(data) > 100 {
		log.Printf("[PROTO] %s %s data_len=%d first_100=%q...", direction, port, len(data), data[:100])
	} else {
		log.Printf("[PROTO] %s %s data=%q", direction, port, data)
	}
}

// checkAndRotate checks directory size and rotates if necessary
func checkAndRotate() {
	mu.Lock()
	defer mu.Unlock()

	if !initialized {
		return
	}

	size, err := logFilesSize(logDir)
	if err != nil {
		log.Printf("[LOGGER] Error checking directory size: %v", err)
		return
	}

	if size > MaxLogDirSize {
		rotateOldLogs()
	}
}

// isLogFile matches the current log and its archives (datalogger*.log).
// The log directory may be shared with data files, which are never touched.
func isLogFile(entry os.DirEntry) bool {
	name := entry.Name()
	return !entry.IsDir() && strings.HasPrefix(name, "datalogger") && strings.HasSuffix(name, ".log")
}

// logFilesSize calculates total size of the log files in directory
func logFilesSize(dir string) (int64, error) {
	var size int64
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	for _, entry := range entries {
		if !isLogFile(entry) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		size += info.Size()
	}
	return size, nil
}

// rotateOldLogs removes archived logs when they exceed the size limit
func rotateOldLogs() {
	currentLogPath := filepath.Join(logDir, LogFileName)

	entries, err := os.ReadDir(logDir)
	if err != nil {
		log.Printf("[LOGGER] Error reading log directory: %v", err)
		return
	}

	// Remove old archived logs first (keep current log)
	for _, entry := range entries {
		if entry.Name() != LogFileName && isLogFile(entry) {
			filePath := filepath.Join(logDir, entry.Name())
			if err := os.Remove(filePath); err != nil {
				log.Printf("[LOGGER] Error removing old log %s: %v", entry.Name(), err)
			} else {
				log.Printf("[LOGGER] Removed old log: %s", entry.Name())
			}
		}
	}

	// Check size again
	size, _ := logFilesSize(logDir)
	if size > MaxLogDirSize {
		// Current log is still too big, start over with an empty file
		if logFile != nil {
			logFile.Close()
		}

		file, err := os.OpenFile(currentLogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			log.SetOutput(os.Stderr)
			logFile = nil
			log.Printf("[LOGGER] Error creating new log file: %v", err)
			return
		}
		logFile = file
		log.SetOutput(file)

		log.Printf("[LOGGER] Log rotated and cleaned at %s", time.Now().Format(time.RFC3339))
	}
}

// periodicSizeCheck checks log size every hour
func periodicSizeCheck(stop <-chan struct{}) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			checkAndRotate()
		}
	}
}
