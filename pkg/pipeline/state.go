package pipeline

import "fmt"

// State is the lifecycle position of a Session.
type State int

const (
	Idle State = iota
	Fetching
	Parsing
	Normalizing
	Ready
	Cancelled
	Failed
)

var stateNames = [...]string{"idle", "fetching", "parsing", "normalizing", "ready", "cancelled", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Ready || s == Cancelled || s == Failed
}

// next lists the legal transitions out of each non-terminal state.
var next = map[State][]State{
	Idle:        {Fetching},
	Fetching:    {Parsing, Cancelled, Failed},
	Parsing:     {Normalizing, Cancelled, Failed},
	Normalizing: {Ready, Cancelled, Failed},
}

// canMove reports whether from -> to is a legal transition.
func canMove(from, to State) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}
