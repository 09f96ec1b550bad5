package driver

import (
	"sync"
	"time"
)

// AcquisitionState represents where a run is in its lifecycle
type AcquisitionState int

const (
	StateIdle AcquisitionState = iota
	StateConnecting
	StateAcquiring
	StateCompleted
	StateAborted
	StateInterrupted
)

// String returns the string representation of the state
func (s AcquisitionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateAcquiring:
		return "ACQUIRING"
	case StateCompleted:
		return "COMPLETED"
	case StateAborted:
		return "ABORTED"
	case StateInterrupted:
		return "INTERRUPTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are allowed
func (s AcquisitionState) Terminal() bool {
	return s == StateCompleted || s == StateAborted || s == StateInterrupted
}

// allowed lists the legal successors of each non-terminal state
var allowed = map[AcquisitionState][]AcquisitionState{
	StateIdle:       {StateConnecting},
	StateConnecting: {StateAcquiring, StateAborted, StateInterrupted},
	StateAcquiring:  {StateCompleted, StateAborted, StateInterrupted},
}

// StatusInfo contains detailed status information for broadcasting
type StatusInfo struct {
	State       string    `json:"state"`
	Message     string    `json:"message"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	LastError   string    `json:"last_error,omitempty"`
	Port        string    `json:"port,omitempty"`
	Samples     int       `json:"samples"`
	IsConnected bool      `json:"is_connected"`
}

// StateChangeCallback is called when state changes
type StateChangeCallback func(info StatusInfo)

// StateMachine tracks one acquisition run. A nil *StateMachine is valid and ignores all calls.
type StateMachine struct {
	mu sync.RWMutex

	currentState AcquisitionState
	stateStarted time.Time
	lastError    string
	port         string
	samples      int

	onStateChange StateChangeCallback
}

// NewStateMachine creates a new state machine
func NewStateMachine() *StateMachine {
	return &StateMachine{
		currentState: StateIdle,
		stateStarted: time.Now(),
	}
}

// SetCallback sets the state change callback
func (sm *StateMachine) SetCallback(cb StateChangeCallback) {
	if sm == nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onStateChange = cb
}

// GetState returns the current state
func (sm *StateMachine) GetState() AcquisitionState {
	if sm == nil {
		return StateIdle
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.currentState
}

// GetStatusInfo returns the current status information
func (sm *StateMachine) GetStatusInfo() StatusInfo {
	if sm == nil {
		return StatusInfo{State: StateIdle.String()}
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.getStatusInfoLocked()
}

func (sm *StateMachine) getStatusInfoLocked() StatusInfo {
	info := StatusInfo{
		State:       sm.currentState.String(),
		StartedAt:   sm.stateStarted,
		ElapsedMs:   time.Since(sm.stateStarted).Milliseconds(),
		LastError:   sm.lastError,
		Port:        sm.port,
		Samples:     sm.samples,
		IsConnected: sm.currentState == StateAcquiring,
	}

	switch sm.currentState {
	case StateIdle:
		info.Message = "Waiting to start"
	case StateConnecting:
		info.Message = "Searching serial ports for the instrument..."
	case StateAcquiring:
		info.Message = "Logging data from " + sm.port
	case StateCompleted:
		info.Message = "Done logging"
	case StateAborted:
		info.Message = "Run aborted: " + sm.lastError
	case StateInterrupted:
		info.Message = "Run interrupted"
	}

	return info
}

// TransitionTo changes to a new state. It returns false, leaving the state
// untouched, when the move is not legal from the current state.
func (sm *StateMachine) TransitionTo(newState AcquisitionState) bool {
	if sm == nil {
		return false
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.canMoveLocked(newState) {
		return false
	}

	sm.currentState = newState
	sm.stateStarted = time.Now()

	if sm.onStateChange != nil {
		sm.onStateChange(sm.getStatusInfoLocked())
	}
	return true
}

// TransitionToError moves to StateAborted recording err
func (sm *StateMachine) TransitionToError(err error) bool {
	if sm == nil {
		return false
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.canMoveLocked(StateAborted) {
		return false
	}

	sm.currentState = StateAborted
	sm.stateStarted = time.Now()
	if err != nil {
		sm.lastError = err.Error()
	}

	if sm.onStateChange != nil {
		sm.onStateChange(sm.getStatusInfoLocked())
	}
	return true
}

// SetPort records the port bound for acquisition
func (sm *StateMachine) SetPort(name string) {
	if sm == nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.port = name
}

// RecordSample counts one collected sample
func (sm *StateMachine) RecordSample() {
	if sm == nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.samples++
}

func (sm *StateMachine) canMoveLocked(next AcquisitionState) bool {
	for _, s := range allowed[sm.currentState] {
		if s == next {
			return true
		}
	}
	return false
}
