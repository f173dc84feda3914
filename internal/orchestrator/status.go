package orchestrator

import (
	"sync"
	"time"
)

// Status is the mutex-protected healing-loop progress the HTTP facade's
// GET /status endpoint reads.
type Status struct {
	mu sync.Mutex

	running      bool
	loopAlive    bool
	passStarted  time.Time
	total        int
	completed    int
	lastPassEnd  time.Time
	lastOutcomes map[Outcome]int
}

func NewStatus() *Status {
	return &Status{lastOutcomes: map[Outcome]int{}}
}

func (s *Status) beginPass(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.passStarted = time.Now().UTC()
	s.total = total
	s.completed = 0
	s.lastOutcomes = map[Outcome]int{}
}

func (s *Status) recordResult(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed++
	s.lastOutcomes[r.Outcome]++
}

func (s *Status) endPass() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.lastPassEnd = time.Now().UTC()
}

// loopStarted/loopStopped track whether the background healing goroutine
// itself is alive, distinct from whether a pass is currently executing.
func (s *Status) loopStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loopAlive = true
}

func (s *Status) loopStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loopAlive = false
}

// AgentStatus reports the liveness probe's agent_status value.
func (s *Status) AgentStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loopAlive {
		return "running"
	}
	return "stopped"
}

// Snapshot is a point-in-time copy safe to serialize.
type Snapshot struct {
	Running      bool            `json:"running"`
	PassStarted  *time.Time      `json:"pass_started,omitempty"`
	Total        int             `json:"total"`
	Completed    int             `json:"completed"`
	LastPassEnd  *time.Time      `json:"last_pass_end,omitempty"`
	LastOutcomes map[Outcome]int `json:"last_outcomes"`
}

func (s *Status) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Running:      s.running,
		Total:        s.total,
		Completed:    s.completed,
		LastOutcomes: make(map[Outcome]int, len(s.lastOutcomes)),
	}
	for k, v := range s.lastOutcomes {
		snap.LastOutcomes[k] = v
	}
	if !s.passStarted.IsZero() {
		t := s.passStarted
		snap.PassStarted = &t
	}
	if !s.lastPassEnd.IsZero() {
		t := s.lastPassEnd
		snap.LastPassEnd = &t
	}
	return snap
}
