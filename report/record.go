package report

import "github.com/google/uuid"

const (
	SecondsPerMinute = 60
	SecondsPerHour   = 3600
	SecondsPerDay    = 24 * SecondsPerHour
)

// Timestamp is a simulated second count decomposed into day, hour and minute.
type Timestamp struct {
	Step   int64 `json:"step" bson:"step"`
	Day    int   `json:"day" bson:"day"`
	Hour   int   `json:"hour" bson:"hour"`
	Minute int   `json:"minute" bson:"minute"`
}

func NewTimestamp(step int64) Timestamp {
	return Timestamp{
		Step:   step,
		Day:    int(step / SecondsPerDay),
		Hour:   int(step/SecondsPerHour) % 24,
		Minute: int(step/SecondsPerMinute) % 60,
	}
}

// Weekday is the index into a job's workday mask.
func (t Timestamp) Weekday() int {
	return t.Day % 7
}

func NewRunID() string {
	return uuid.NewString()
}

// Summary is the population count of one step.
type Summary struct {
	RunID     string `json:"runId,omitempty" bson:"run_id,omitempty"`
	Timestamp `bson:",inline"`

	Susceptible int `json:"susceptible" bson:"susceptible"`
	Exposed     int `json:"exposed" bson:"exposed"`
	Infectious  int `json:"infectious" bson:"infectious"`
	Recovered   int `json:"recovered" bson:"recovered"`
}

func (s Summary) Total() int {
	return s.Susceptible + s.Exposed + s.Infectious + s.Recovered
}

// InfectionRecord describes one exposure event. Symptomatic and Severe are
// nil when the target never reached that state.
type InfectionRecord struct {
	RunID      string  `json:"runId,omitempty" bson:"run_id,omitempty"`
	Location   string  `json:"location" bson:"location"`
	Lat        float64 `json:"lat" bson:"lat"`
	Lon        float64 `json:"lon" bson:"lon"`
	NodeID     int64   `json:"nodeId" bson:"node_id"`

	TargetID         int    `json:"infectedAgentId" bson:"infected_agent_id"`
	TargetProfession string `json:"infectedAgentProfession" bson:"infected_agent_profession"`
	// -1 for the initially infected agents
	OriginID         int    `json:"originAgentId" bson:"origin_agent_id"`
	OriginProfession string `json:"originAgentProfession" bson:"origin_agent_profession"`

	Exposed     Timestamp  `json:"exposed" bson:"exposed"`
	Infectious  Timestamp  `json:"infectious" bson:"infectious"`
	Recovered   Timestamp  `json:"recovered" bson:"recovered"`
	Symptomatic *Timestamp `json:"symptomatic,omitempty" bson:"symptomatic,omitempty"`
	Severe      *Timestamp `json:"severe,omitempty" bson:"severe,omitempty"`

	IncubationDuration int64 `json:"incubationDuration" bson:"incubation_duration"`
	RecoveryDuration   int64 `json:"recoveryDuration" bson:"recovery_duration"`
}

// AgentRecord is the final state of one agent.
type AgentRecord struct {
	RunID        string  `json:"runId,omitempty" bson:"run_id,omitempty"`
	ID           int     `json:"id" bson:"id"`
	Age          int     `json:"age" bson:"age"`
	Risk         float64 `json:"risk" bson:"risk"`
	Profession   string  `json:"profession" bson:"profession"`
	HomeID       int     `json:"homeId" bson:"home_id"`
	HomeBuilding int64   `json:"homeBuilding" bson:"home_building"`
	WorkBuilding int64   `json:"workBuilding" bson:"work_building"`
	Vaccinated   bool    `json:"vaccinated" bson:"vaccinated"`
	Status       string  `json:"status" bson:"status"`
	Symptom      string  `json:"symptom" bson:"symptom"`
	Lat          float64 `json:"lat" bson:"lat"`
	Lon          float64 `json:"lon" bson:"lon"`
	Infected     bool    `json:"infected" bson:"infected"`
}
