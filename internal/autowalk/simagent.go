package autowalk

import (
	"time"

	"github.com/sirupsen/logrus"

	"tilewalker/internal/config"
	"tilewalker/internal/logging"
	"tilewalker/internal/pathfinding"
	"tilewalker/internal/world"
)

// SimAgent stands in for a connected client character. It predicts its own
// position as steps are sent, enforces per-gait step delays and acknowledges
// steps after a fixed latency. Moves are checked against the map when sent,
// so a world that changed under a planned path refuses the step.
type SimAgent struct {
	validator *pathfinding.Validator
	log       logrus.FieldLogger
	now       func() time.Time

	state   world.AgentState
	mounted bool

	walkDelay time.Duration
	runDelay  time.Duration
	latency   time.Duration

	readyAt time.Time
	pending []time.Time
	moves   int
	turns   int
}

func NewSimAgent(tiles pathfinding.TileSource, state world.AgentState, cfg *config.Config, log logrus.FieldLogger) *SimAgent {
	return &SimAgent{
		validator: pathfinding.NewValidator(tiles, cfg.Movement),
		log:       logging.Component(log, "sim-agent"),
		now:       time.Now,
		state:     state,
		walkDelay: cfg.Simulation.WalkDelay.Duration(),
		runDelay:  cfg.Simulation.RunDelay.Duration(),
		latency:   cfg.Simulation.StepLatency.Duration(),
	}
}

// SetClock replaces the time source.
func (s *SimAgent) SetClock(now func() time.Time) {
	s.now = now
}

// SetMounted halves step delays while riding.
func (s *SimAgent) SetMounted(mounted bool) {
	s.mounted = mounted
}

func (s *SimAgent) AgentState() world.AgentState {
	return s.state
}

// Update lets callers change the agent, e.g. to paralyze it or teleport it.
func (s *SimAgent) Update(fn func(state *world.AgentState)) {
	fn(&s.state)
}

func (s *SimAgent) StepsInFlight() int {
	return len(s.pending)
}

func (s *SimAgent) ReadyAt() time.Time {
	return s.readyAt
}

// Walk sends one step. Facing a new direction turns in place.
func (s *SimAgent) Walk(dir world.Direction, run bool) bool {
	if !s.state.Ambulatory() {
		return false
	}
	now := s.now()
	delay := s.walkDelay
	if run {
		delay = s.runDelay
	}
	if s.mounted {
		delay /= 2
	}

	if s.state.Facing != dir {
		s.state.Facing = dir
		s.turns++
		s.send(now, delay)
		return true
	}

	s.validator.Reset(s.state)
	loc, realized, ok := s.validator.TryStep(s.state.Location, dir)
	if !ok || realized != dir {
		s.log.WithFields(logrus.Fields{
			"from":      s.state.Location.String(),
			"direction": dir.String(),
		}).Debug("step refused")
		return false
	}
	s.state.Location = loc
	s.moves++
	s.send(now, delay)
	return true
}

func (s *SimAgent) send(now time.Time, delay time.Duration) {
	s.readyAt = now.Add(delay)
	s.pending = append(s.pending, now.Add(s.latency))
}

// Advance acknowledges every step whose latency has elapsed by now.
func (s *SimAgent) Advance(now time.Time) {
	acked := 0
	for _, at := range s.pending {
		if at.After(now) {
			break
		}
		acked++
	}
	if acked > 0 {
		s.pending = append(s.pending[:0], s.pending[acked:]...)
	}
}

// Moves counts accepted position changes.
func (s *SimAgent) Moves() int {
	return s.moves
}

// Turns counts steps that only changed facing.
func (s *SimAgent) Turns() int {
	return s.turns
}
