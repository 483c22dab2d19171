package pipeline

import "sync/atomic"

type StageState int32

const (
	StageRunning StageState = iota
	StageDraining
	StageStopped
)

func (s StageState) String() string {
	switch s {
	case StageRunning:
		return "running"
	case StageDraining:
		return "draining"
	case StageStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// stage tracks one pipeline goroutine through running -> draining -> stopped.
type stage struct {
	name  string
	state atomic.Int32
}

func newStage(name string) *stage {
	return &stage{name: name}
}

func (s *stage) set(state StageState) {
	s.state.Store(int32(state))
}

func (s *stage) get() StageState {
	return StageState(s.state.Load())
}
