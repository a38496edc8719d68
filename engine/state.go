package engine

// State is a step of the request state machine.
type State int

const (
	StateSelectNic State = iota
	StateAcquireAddress
	StateSend
	StateInterpret
	StateRedirect
	StateRetrySameNic
	StateNextNic
	StateDone
)

var stateNames = [...]string{
	StateSelectNic:      "SelectNic",
	StateAcquireAddress: "AcquireAddress",
	StateSend:           "Send",
	StateInterpret:      "Interpret",
	StateRedirect:       "Redirect",
	StateRetrySameNic:   "RetrySameNic",
	StateNextNic:        "NextNic",
	StateDone:           "Done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}
