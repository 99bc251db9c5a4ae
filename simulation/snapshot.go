package simulation

import (
	"git.fiblab.net/sim/epidemic/agent"
	"git.fiblab.net/sim/epidemic/report"
	"github.com/samber/lo"
)

// Position is the rendering view of one agent.
type Position struct {
	ID      int     `json:"id"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Status  string  `json:"status"`
	Symptom string  `json:"symptom"`
	Moving  bool    `json:"moving"`
}

// Snapshot is an immutable view of the kernel after a step, safe to read from
// other goroutines.
type Snapshot struct {
	RunID     string           `json:"runId"`
	Now       report.Timestamp `json:"now"`
	Positions []Position       `json:"positions"`
	History   []report.Summary `json:"history"`
	Stats     Stats            `json:"stats"`
}

// Latest returns the summary of the last step, false before the first step.
func (s *Snapshot) Latest() (report.Summary, bool) {
	if len(s.History) == 0 {
		return report.Summary{}, false
	}
	return s.History[len(s.History)-1], true
}

func (k *Kernel) publish(now report.Timestamp) {
	k.snapshot.Store(&Snapshot{
		RunID: k.RunID,
		Now:   now,
		Positions: lo.Map(k.agents, func(a *agent.Agent, _ int) Position {
			return Position{
				ID:      a.ID,
				Lat:     a.Position.Lat,
				Lon:     a.Position.Lon,
				Status:  a.Status.String(),
				Symptom: a.Symptom.String(),
				Moving:  a.Moving(),
			}
		}),
		// history elements are never modified once appended
		History: k.history[:len(k.history):len(k.history)],
		Stats:   k.Stats(),
	})
}

// Snapshot returns the view published after the last step.
func (k *Kernel) Snapshot() *Snapshot {
	return k.snapshot.Load()
}
