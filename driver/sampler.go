package driver

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"datalogger/logger"
	"datalogger/protocol"
)

// Unbounded is the loop count of a run that lasts until interrupted
const Unbounded = -1

// Sample is one reading and the seconds elapsed since acquisition start
type Sample struct {
	Elapsed float64 `json:"elapsed"`
	Reading string  `json:"reading"`
}

// RunPlan governs the sampling cadence and when acquisition stops
type RunPlan struct {
	Period time.Duration
	Loops  int // Unbounded or a positive count
}

// NewRunPlan builds a plan from a sample period and a total runtime, both in seconds.
// A negative runtime means run until interrupted.
func NewRunPlan(sampleTime, totalRuntime float64) RunPlan {
	return RunPlan{
		Period: time.Duration(sampleTime * float64(time.Second)),
		Loops:  LoopCount(totalRuntime, sampleTime),
	}
}

// LoopCount returns round(totalRuntime / sampleTime), or Unbounded when the
// runtime is negative or the rounded count is not positive.
func LoopCount(totalRuntime, sampleTime float64) int {
	if totalRuntime < 0 || sampleTime <= 0 {
		return Unbounded
	}
	loops := math.Round(totalRuntime / sampleTime)
	if loops <= 0 || loops >= math.MaxInt || math.IsNaN(loops) {
		return Unbounded
	}
	return int(loops)
}

// Bounded reports whether the plan stops on its own
func (p RunPlan) Bounded() bool {
	return p.Loops > 0
}

// Sampler repeatedly sends one command to a bound port and timestamps the answers
type Sampler struct {
	Port     Port
	PortName string
	Command  string
	Plan     RunPlan

	OnSample func(Sample)
	State    *StateMachine

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewSampler(port Port, command string, plan RunPlan) *Sampler {
	return &Sampler{
		Port:    port,
		Command: command,
		Plan:    plan,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Collect runs the sample loop until the plan is satisfied, the device goes
// silent, the port faults, or ctx is cancelled.
//
// Samples gathered before a failure are returned alongside the error.
// Cancellation is not an error: the partial samples come back with a nil error.
func (s *Sampler) Collect(ctx context.Context) ([]Sample, error) {
	if s.Plan.Period <= 0 {
		return nil, fmt.Errorf("sample period must be positive, got %v", s.Plan.Period)
	}
	now := s.now
	if now == nil {
		now = time.Now
	}
	sleep := s.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	s.State.TransitionTo(StateAcquiring)
	logger.Debug("Send command: %s", s.Command)
	logger.Debug("Sample time: %v", s.Plan.Period)

	var out []Sample
	if s.Plan.Bounded() {
		out = make([]Sample, 0, s.Plan.Loops)
	}
	frame := protocol.BuildCommand(s.Command)

	// Drop handshake answers still queued on the port
	if err := s.Port.ResetInputBuffer(); err != nil {
		return s.abort(out, &TransportError{Op: "reset", Port: s.PortName, Err: err})
	}

	logger.Info("Beginning data logging")
	start := now()

	for i := 0; !s.Plan.Bounded() || i < s.Plan.Loops; i++ {
		if ctx.Err() != nil {
			return s.interrupted(out)
		}
		logger.Debug("Run count: %d", i)
		iterationStart := now()

		if _, err := s.Port.Write(frame); err != nil {
			return s.abort(out, &TransportError{Op: "write", Port: s.PortName, Err: err})
		}
		logger.Protocol("TX", s.PortName, frame)

		raw, err := protocol.ReadResponse(s.Port, protocol.MaxResponseLen)
		if err != nil {
			return s.abort(out, &TransportError{Op: "read", Port: s.PortName, Err: err})
		}
		logger.Protocol("RX", s.PortName, raw)

		reading := protocol.ParseResponse(raw)
		if reading == "" {
			if ctx.Err() != nil {
				return s.interrupted(out)
			}
			return s.abort(out, fmt.Errorf("%w after %d samples", ErrReturn, len(out)))
		}

		sample := Sample{Elapsed: now().Sub(start).Seconds(), Reading: reading}
		out = append(out, sample)
		s.State.RecordSample()
		logger.Sample(sample.Elapsed, sample.Reading)
		if s.OnSample != nil {
			s.OnSample(sample)
		}

		// No catch-up across cycles: a slow exchange just starts the next one late
		offset := now().Sub(iterationStart)
		logger.Debug("Offset: %v", offset)
		if remaining := s.Plan.Period - offset; remaining > 0 {
			if err := sleep(ctx, remaining); err != nil {
				return s.interrupted(out)
			}
		}
	}

	s.State.TransitionTo(StateCompleted)
	logger.Info("Done logging")
	return out, nil
}

func (s *Sampler) interrupted(out []Sample) ([]Sample, error) {
	s.State.TransitionTo(StateInterrupted)
	logger.Info("Done logging (interrupted after %d samples)", len(out))
	return out, nil
}

func (s *Sampler) abort(out []Sample, err error) ([]Sample, error) {
	s.State.TransitionToError(err)
	if errors.Is(err, ErrReturn) {
		logger.Error("No response from system")
	} else {
		logger.Error("Transport fault: %v", err)
	}
	return out, err
}
