package runner

// State is a stage of a provisioning run. A run moves forward through the
// stages in declaration order; any failure jumps to Failed.
type State int

const (
	Connecting State = iota
	EnsuringCollections
	EnsuringIndexes
	BootstrappingAdmin
	Reporting
	Done
	Failed
)

var stateNames = [...]string{
	Connecting:          "Connecting",
	EnsuringCollections: "EnsuringCollections",
	EnsuringIndexes:     "EnsuringIndexes",
	BootstrappingAdmin:  "BootstrappingAdmin",
	Reporting:           "Reporting",
	Done:                "Done",
	Failed:              "Failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// next is the only forward transition out of s.
func (s State) next() State {
	if s.Terminal() {
		return s
	}
	return s + 1
}
