// Datalogger - serial instrument data logger
//
// Finds the instrument on the host's serial ports, polls it at a fixed
// period and writes the timestamped answers to a delimited file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"datalogger/api"
	"datalogger/config"
	"datalogger/driver"
	"datalogger/logger"
	"datalogger/output"
)

// Version is set at build time via -ldflags
var Version = "dev"

// Process exit codes
const (
	exitOK      = 0
	exitNoData  = 1 // failed before any data was usable
	exitPartial = 2 // failed after partial data was collected
)

// Command line flags
var (
	configPath  = flag.String("config", config.DefaultPath(), "Path to configuration file")
	showVersion = flag.Bool("version", false, "Show version and exit")
	writeConfig = flag.Bool("write-config", false, "Write the effective configuration to -config and exit")
	savePath    = flag.String("save-path", "", "Output directory (overrides config)")
	saveName    = flag.String("name", "", "Output file base name (overrides config)")
	saveExt     = flag.String("ext", "", "Output file extension (overrides config)")
	setupCmd    = flag.String("setup", "", "Device setup command (overrides config)")
	sendCmd     = flag.String("send", "", "Device send command (overrides config)")
	sampleTime  = flag.Float64("sample", 0, "Sample period in seconds (overrides config)")
	runSeconds  = flag.Float64("runtime", 0, "Total runtime in seconds, -1 to run until interrupted (overrides config)")
	logDir      = flag.String("log-dir", "", "Directory for datalogger.log (default stderr)")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	wsAddr      = flag.String("ws", "", "Live monitor listen address, e.g. :8989 (overrides config)")
	mock        = flag.Bool("mock", false, "Use a simulated instrument instead of serial ports")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("datalogger %s\n", Version)
		os.Exit(exitOK)
	}

	os.Exit(run())
}

func run() int {
	startTotal := time.Now()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return exitNoData
	}
	applyFlags(cfg)

	if *writeConfig {
		if err := cfg.Write(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
			return exitNoData
		}
		fmt.Printf("Configuration written to %s\n", *configPath)
		return exitOK
	}

	if cfg.Log.Dir != "" {
		if err := logger.Init(cfg.Log.Dir); err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log: %v\n", err)
			return exitNoData
		}
		defer logger.Close()
	}
	logger.SetDebug(cfg.Log.Debug)

	if err := cfg.Validate(); err != nil {
		logger.Critical("%v. Fix in configuration file.", err)
		fmt.Fprintln(os.Stderr, "Error in configuration file:", err)
		return exitNoData
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sm := driver.NewStateMachine()
	var hub *api.Hub
	if cfg.Monitor.Addr != "" {
		hub = api.NewHub()
		sm.SetCallback(hub.PublishStatus)
		srv := &http.Server{Addr: cfg.Monitor.Addr, Handler: hub.Router()}
		go func() {
			logger.Info("Monitor listening on %s", cfg.Monitor.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Monitor server: %v", err)
			}
		}()
		defer func() {
			hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	connector := newConnector(cfg)
	connector.State = sm

	port, err := connector.Connect(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("Interrupted while connecting")
			return exitOK
		}
		logger.Critical("Unable to connect to device: %v", err)
		return exitNoData
	}
	defer port.Close()

	sampler := driver.NewSampler(port, cfg.Commands.Send, driver.NewRunPlan(cfg.Times.SampleTime, cfg.Times.TotalRuntime))
	sampler.PortName = sm.GetStatusInfo().Port
	sampler.State = sm
	sampler.OnSample = func(s driver.Sample) {
		fmt.Println(s.Reading)
		if hub != nil {
			hub.PublishSample(s)
		}
	}

	readStart := time.Now()
	samples, runErr := sampler.Collect(ctx)
	readTotal := time.Since(readStart)

	if runErr != nil {
		if errors.Is(runErr, driver.ErrReturn) {
			logger.Critical("No response from system: %v", runErr)
		} else {
			logger.Critical("%v", runErr)
		}
		if !cfg.Save.OnError || len(samples) == 0 {
			logger.Critical("Exiting program without saving")
			return exitNoData
		}
	}

	path, err := writeSamples(cfg, samples)
	if err != nil {
		logger.Critical("Failed to save samples: %v", err)
		return exitNoData
	}
	fmt.Printf("Saved %d samples to %s\n", len(samples), path)
	fmt.Printf("Total time sampled: %s\n", readTotal.Round(time.Millisecond))
	fmt.Printf("Total time: %s\n", time.Since(startTotal).Round(time.Millisecond))

	if runErr != nil {
		return exitPartial
	}
	return exitOK
}

// applyFlags overrides config values with explicitly set flags
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "save-path":
			cfg.Save.Path = *savePath
		case "name":
			cfg.Save.Name = *saveName
		case "ext":
			cfg.Save.Extension = *saveExt
		case "setup":
			cfg.Commands.Setup = *setupCmd
		case "send":
			cfg.Commands.Send = *sendCmd
		case "sample":
			cfg.Times.SampleTime = *sampleTime
		case "runtime":
			cfg.Times.TotalRuntime = *runSeconds
		case "log-dir":
			cfg.Log.Dir = *logDir
		case "debug":
			cfg.Log.Debug = *debug
		case "ws":
			cfg.Monitor.Addr = *wsAddr
		}
	})
}

func newConnector(cfg *config.Config) *driver.Connector {
	c := driver.NewConnector(cfg.Commands.Setup, cfg.Commands.Send)
	c.Attempts = cfg.Connect.Attempts
	c.RetryDelay = cfg.Connect.RetryDelay
	c.Open = driver.SerialOpener(cfg.Serial.BaudRate, cfg.Serial.ReadTimeout)

	if *mock {
		logger.Info("Starting in MOCK MODE (simulated instrument on mock0)")
		c.List = func() ([]string, error) { return []string{"mock0"}, nil }
		c.Open = driver.MockOpener(driver.SimulatedInstrument(cfg.Commands.Send))
	}
	return c
}

func writeSamples(cfg *config.Config, samples []driver.Sample) (string, error) {
	dir, err := cfg.SaveDir()
	if err != nil {
		return "", err
	}
	logger.Info("Saving values to file")
	return output.WriteFile(samples, output.Options{
		Dir:  dir,
		Name: cfg.Save.Name,
		Ext:  cfg.Save.Extension,
	}, time.Now())
}
