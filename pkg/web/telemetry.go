package web

import (
	"github.com/teslashibe/go-quadruped/pkg/loop"
	"github.com/teslashibe/go-quadruped/pkg/protocol"
)

// ObserveCycle records an applied cycle and streams it to viewers.
// It runs on the control loop goroutine and never blocks.
func (s *Server) ObserveCycle(c loop.Cycle) {
	data := cycleData(c)

	s.snapMu.Lock()
	s.snap.RunID = c.RunID
	s.snap.Cycles = c.Index + 1
	s.snap.Last = &data
	s.snapMu.Unlock()

	if s.cycleHub.ClientCount() == 0 {
		return
	}
	msg, err := protocol.NewCycleMessage(data)
	if err != nil {
		s.logger.Debug("encode cycle", "error", err)
		return
	}
	if err := s.cycleHub.BroadcastMessage(msg); err != nil {
		s.logger.Debug("broadcast cycle", "error", err)
	}
}

// ObserveState records a driver state transition and streams it to viewers.
func (s *Server) ObserveState(runID string, st loop.State, cycles int) {
	s.snapMu.Lock()
	s.snap.RunID = runID
	s.snap.State = st.String()
	s.snap.Cycles = cycles
	s.stateNum = int(st)
	s.snapMu.Unlock()

	msg, err := protocol.NewStateMessage(runID, st.String(), cycles)
	if err != nil {
		return
	}
	if err := s.cycleHub.BroadcastMessage(msg); err != nil {
		s.logger.Debug("broadcast state", "error", err)
	}
	s.logger.Info("🦿 loop state", "run_id", runID, "state", st, "cycles", cycles)
}

func cycleData(c loop.Cycle) protocol.CycleData {
	d := c.Diagnostics
	data := protocol.CycleData{
		RunID: c.RunID,
		Cycle: c.Index,
		Time:  c.Time.Seconds(),
		Command: protocol.CommandData{
			Linear:  c.Command.Linear,
			YawRate: c.Command.YawRate,
		},
		LegStates: make([]string, len(d.LegStates)),
		Phases:    append([]float64(nil), d.Phases...),
		Sources:   make([]string, len(d.Sources)),
		Velocity:  d.Velocity,
	}
	for i, ls := range d.LegStates {
		data.LegStates[i] = ls.String()
	}
	for i, src := range d.Sources {
		data.Sources[i] = src.String()
	}
	for i, f := range d.ContactForces {
		data.ContactForces[i] = f
	}
	return data
}
