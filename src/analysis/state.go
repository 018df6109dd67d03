package analysis

import "time"

const (
	LabelStart = "Start Analysis"
	LabelStop  = "Stop Analysis"

	StatusStarted = "Started taking screenshots and analyzing..."
	StatusStopped = "Stopped taking screenshots and analyzing."
	statusFault   = "Analysis stopped: "
)

// Label returns the toggle caption for the given running state.
func Label(running bool) string {
	if running {
		return LabelStop
	}
	return LabelStart
}

// State is the per-process session state. Only the loop goroutine touches it.
type State struct {
	Running       bool
	Results       string
	FirstRun      bool
	Status        string
	LastError     string
	ActivationID  string
	Cycles        int
	LastCaptureAt time.Time
	NextCaptureAt time.Time
}

// Snapshot is a read-only copy of State handed to observers and callers.
type Snapshot struct {
	Running       bool      `json:"running"`
	Label         string    `json:"label"`
	Results       string    `json:"results"`
	FirstRun      bool      `json:"first_run"`
	Status        string    `json:"status"`
	LastError     string    `json:"last_error,omitempty"`
	ActivationID  string    `json:"activation_id,omitempty"`
	Cycles        int       `json:"cycles"`
	LastCaptureAt time.Time `json:"last_capture_at,omitempty"`
	NextCaptureAt time.Time `json:"next_capture_at,omitempty"`
}

func (s State) snapshot() Snapshot {
	return Snapshot{
		Running:       s.Running,
		Label:         Label(s.Running),
		Results:       s.Results,
		FirstRun:      s.FirstRun,
		Status:        s.Status,
		LastError:     s.LastError,
		ActivationID:  s.ActivationID,
		Cycles:        s.Cycles,
		LastCaptureAt: s.LastCaptureAt,
		NextCaptureAt: s.NextCaptureAt,
	}
}
