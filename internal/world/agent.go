package world

// AgentState is a snapshot of the controlled character as the movement code
// needs it. Location and Facing are where the agent will be once every step
// already sent to the server has been applied.
type AgentState struct {
	Location Location
	Facing   Direction

	Dead       bool
	Ghost      bool // dead agents that already walk as a ghost
	GameMaster bool
	Flying     bool
	SeaMount   bool
	Paralyzed  bool

	IgnoreCharacters bool
	Stamina          int
	StaminaMax       int
	MapIndex         int

	// Confine restricts movement to a rectangle, as while customizing a house.
	Confine *Rect
}

// Ambulatory reports whether the agent can be ordered to walk at all.
func (a AgentState) Ambulatory() bool {
	if a.Paralyzed {
		return false
	}
	if a.Dead && !a.Ghost {
		return false
	}
	return true
}
