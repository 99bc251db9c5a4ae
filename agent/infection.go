package agent

import (
	"math/rand"

	"git.fiblab.net/sim/epidemic/mapdata"
	"git.fiblab.net/sim/epidemic/report"
)

const (
	DEFAULT_DORMANT  = 2 * report.SecondsPerDay
	DEFAULT_RECOVERY = 3 * report.SecondsPerDay

	// never reached
	NO_STEP = -1
)

// SymptomParams are the daily base rates of the symptom upgrades, scaled by
// the agent risk.
type SymptomParams struct {
	SymptomaticRate float64
	SevereRate      float64
}

func DefaultSymptomParams() SymptomParams {
	return SymptomParams{SymptomaticRate: 0.2, SevereRate: 0.05}
}

// Infection is one exposure of Target. Only the symptom steps change after
// creation.
type Infection struct {
	// nil for the initially infected agents
	Origin *Agent
	Target *Agent
	// simulated second of exposure
	Step     int64
	Dormant  int64
	Recovery int64

	Location   string
	Coordinate mapdata.Coordinate
	NodeID     int64

	SymptomaticStep int64
	SevereStep      int64
}

// NewInfection records the exposure of target at step and attaches it to target.
func NewInfection(origin, target *Agent, step, dormant, recovery int64) *Infection {
	inf := &Infection{
		Origin:          origin,
		Target:          target,
		Step:            step,
		Dormant:         dormant,
		Recovery:        recovery,
		Location:        target.Location(),
		Coordinate:      target.Position,
		NodeID:          -1,
		SymptomaticStep: NO_STEP,
		SevereStep:      NO_STEP,
	}
	if origin == nil {
		inf.Location = LOCATION_SEED
	}
	if target.Node != nil {
		inf.NodeID = target.Node.ID
	}
	target.Infection = inf
	target.Status = inf.StatusAt(step)
	return inf
}

// StatusAt is the status of the target at step.
func (i *Infection) StatusAt(step int64) InfectionStatus {
	elapsed := step - i.Step
	switch {
	case elapsed < i.Dormant:
		return Exposed
	case elapsed < i.Dormant+i.Recovery:
		return Infectious
	default:
		return Recovered
	}
}

// Active reports whether the infection still changes the target.
func (i *Infection) Active() bool {
	return i.Target.Status != Recovered
}

// Finalize sets the target status for step. While infectious the symptom
// state may upgrade one level per call; the per-step probability is the
// daily rate divided by the steps per day.
func (i *Infection) Finalize(step int64, stepLength float64, rng *rand.Rand, params SymptomParams) {
	t := i.Target
	t.Status = i.StatusAt(step)
	switch t.Status {
	case Infectious:
		stepsPerDay := report.SecondsPerDay / stepLength
		switch t.Symptom {
		case Normal:
			if rng.Float64() < params.SymptomaticRate*t.Risk/stepsPerDay {
				t.Symptom = Symptomatic
				i.SymptomaticStep = step
			}
		case Symptomatic:
			if rng.Float64() < params.SevereRate*t.Risk/stepsPerDay {
				t.Symptom = Severe
				i.SevereStep = step
			}
		}
	case Recovered:
		t.Symptom = Normal
	}
}

// Summarize extracts the report record of the infection.
func (i *Infection) Summarize() report.InfectionRecord {
	r := report.InfectionRecord{
		Location:           i.Location,
		Lat:                i.Coordinate.Lat,
		Lon:                i.Coordinate.Lon,
		NodeID:             i.NodeID,
		TargetID:           i.Target.ID,
		TargetProfession:   i.Target.Job.Name(),
		OriginID:           -1,
		Exposed:            report.NewTimestamp(i.Step),
		Infectious:         report.NewTimestamp(i.Step + i.Dormant),
		Recovered:          report.NewTimestamp(i.Step + i.Dormant + i.Recovery),
		IncubationDuration: i.Dormant,
		RecoveryDuration:   i.Recovery,
	}
	if i.Origin != nil {
		r.OriginID = i.Origin.ID
		r.OriginProfession = i.Origin.Job.Name()
	}
	if i.SymptomaticStep != NO_STEP {
		ts := report.NewTimestamp(i.SymptomaticStep)
		r.Symptomatic = &ts
	}
	if i.SevereStep != NO_STEP {
		ts := report.NewTimestamp(i.SevereStep)
		r.Severe = &ts
	}
	return r
}
