package agent

type InfectionStatus int

const (
	Susceptible InfectionStatus = iota
	Exposed
	Infectious
	Recovered
)

var infectionStatusNames = [...]string{"Susceptible", "Exposed", "Infectious", "Recovered"}

func (s InfectionStatus) String() string {
	if s < 0 || int(s) >= len(infectionStatusNames) {
		return "Unknown"
	}
	return infectionStatusNames[s]
}

type SymptomStatus int

const (
	Normal SymptomStatus = iota
	Symptomatic
	Severe
)

var symptomStatusNames = [...]string{"Normal", "Symptomatic", "Severe"}

func (s SymptomStatus) String() string {
	if s < 0 || int(s) >= len(symptomStatusNames) {
		return "Unknown"
	}
	return symptomStatusNames[s]
}

// Location tags of an exposure.
const (
	LOCATION_HOME    = "home"
	LOCATION_WORK    = "work"
	LOCATION_TRANSIT = "transit"
	LOCATION_OTHER   = "other"
	LOCATION_SEED    = "seed"
)
