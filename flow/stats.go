package flow

import "maps"

// Stats are the diagnostic counters of an Engine.
type Stats struct {
	Ticks         uint64
	TasksExecuted uint64

	// BudgetOverruns counts ticks that stopped early because the tick
	// budget elapsed.
	BudgetOverruns uint64

	FatalErrors uint64

	MaxQueueDepth     int
	FlowStatesCreated uint64
	FlowStatesAlive   int

	// Executions counts component executions by component type.
	Executions map[uint16]uint64
}

func newStats() Stats {
	return Stats{Executions: make(map[uint16]uint64)}
}

func (s *Stats) flowStateCreated() {
	s.FlowStatesCreated++
	s.FlowStatesAlive++
}

func (s *Stats) flowStateFreed() {
	s.FlowStatesAlive--
}

func (s *Stats) queueDepth(n int) {
	if n > s.MaxQueueDepth {
		s.MaxQueueDepth = n
	}
}

func (s *Stats) componentExecuted(t uint16) {
	s.TasksExecuted++
	s.Executions[t]++
}

// Stats returns a snapshot of the diagnostic counters.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Executions = maps.Clone(e.stats.Executions)
	return s
}
