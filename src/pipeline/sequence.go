package pipeline

import "sync/atomic"

// Sequencer issues strictly monotonic sequence ids. It is owned by the
// ingestion stage; the rest of the system sees its output only through the
// ids stamped on ticks.
type Sequencer struct {
	next atomic.Uint64
}

func NewSequencer(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

// Next returns the next sequence id.
func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// Current returns the last issued sequence id.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}
