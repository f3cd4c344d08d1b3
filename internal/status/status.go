// Package status tracks the single process-wide indexing status used by
// the CLI and any long-running service wrapping the indexer.
package status

import "sync"

// Phase tags the current state of the tracker.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseIndexing  Phase = "indexing"
	PhaseDone      Phase = "done"
	PhaseError     Phase = "error"
)

// State is the tagged variant described in spec §9: exactly one of idle,
// indexing{repo_path}, done{summary}, error{message} is meaningful at a
// time, selected by Phase.
type State struct {
	Phase    Phase
	RepoPath string
	Summary  any
	Message  string
}

// Tracker guards a State behind a mutex. Use New to obtain a Tracker in
// PhaseIdle; a zero-value Tracker reports an empty Phase until its first
// transition.
type Tracker struct {
	mu    sync.Mutex
	state State
}

// New returns a Tracker in the idle state.
func New() *Tracker {
	return &Tracker{state: State{Phase: PhaseIdle}}
}

// Get returns a snapshot of the current state.
func (t *Tracker) Get() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// StartIndexing transitions to PhaseIndexing for repoPath.
func (t *Tracker) StartIndexing(repoPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{Phase: PhaseIndexing, RepoPath: repoPath}
}

// Done transitions to the terminal PhaseDone state with summary.
func (t *Tracker) Done(summary any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{Phase: PhaseDone, Summary: summary}
}

// Error transitions to the terminal PhaseError state with message.
func (t *Tracker) Error(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{Phase: PhaseError, Message: message}
}

// Reset transitions back to PhaseIdle.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = State{Phase: PhaseIdle}
}
