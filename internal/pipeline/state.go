package pipeline

import "sync"

// Status messages surfaced to observers.
const (
	StatusIdle       = "idle"
	StatusScanning   = "scanning"
	StatusProcessing = "processing"
	StatusNoNewItems = "no new items"
	StatusComplete   = "complete"
	StatusStopped    = "stopped"
)

// Snapshot is one observer-visible view of the loop.
type Snapshot struct {
	IsRunning       bool     `json:"is_running"`
	StatusMessage   string   `json:"status_message"`
	CurrentEntry    string   `json:"current_entry,omitempty"`
	ProgressPercent int      `json:"progress_percent"`
	TotalCount      int      `json:"total_count"`
	ProcessedList   []string `json:"processed_list"`
	UnprocessedList []string `json:"unprocessed_list"`
}

// State is the observable loop state shared with the API and the monitor.
// The loop is the only writer; any goroutine may read.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewState returns an idle state.
func NewState() *State {
	return &State{snap: Snapshot{StatusMessage: StatusIdle}}
}

// Snapshot returns a deep copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	out.ProcessedList = append([]string(nil), s.snap.ProcessedList...)
	out.UnprocessedList = append([]string(nil), s.snap.UnprocessedList...)
	return out
}

// SetRunning marks whether a worker currently owns the loop. Called by the
// scheduler on start and on worker exit; a stopped loop reads as "stopped"
// with no current entry.
func (s *State) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.IsRunning = running
	if !running {
		s.snap.StatusMessage = StatusStopped
		s.snap.CurrentEntry = ""
	}
}

func (s *State) setStatus(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.StatusMessage = msg
}

// beginCycle publishes the backlog before any work starts, so observers see
// total_count and unprocessed_list immediately after reconciliation.
func (s *State) beginCycle(unprocessed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.StatusMessage = StatusProcessing
	s.snap.TotalCount = len(unprocessed)
	s.snap.UnprocessedList = append([]string(nil), unprocessed...)
	s.snap.ProcessedList = nil
	s.snap.ProgressPercent = 0
	s.snap.CurrentEntry = ""
}

func (s *State) startEntry(name string, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.CurrentEntry = name
	if s.snap.TotalCount > 0 {
		s.snap.ProgressPercent = index * 100 / s.snap.TotalCount
	}
}

func (s *State) markProcessed(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.ProcessedList = append(s.snap.ProcessedList, name)
	for i, n := range s.snap.UnprocessedList {
		if n == name {
			s.snap.UnprocessedList = append(s.snap.UnprocessedList[:i], s.snap.UnprocessedList[i+1:]...)
			break
		}
	}
}

func (s *State) endCycle(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.StatusMessage = status
	s.snap.ProgressPercent = 100
	s.snap.CurrentEntry = ""
}
