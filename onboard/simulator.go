package onboard

import "sync"

// SimulatedRover tracks output state without any hardware attached.
type SimulatedRover struct {
	hasMotor bool

	lock  sync.Mutex
	state OutputState
}

func NewSimulatedRover(config RoverConfig) (rover *SimulatedRover) {
	rover = new(SimulatedRover)
	rover.hasMotor = config.HasMotor()
	return
}

func (r *SimulatedRover) HasMotor() bool {
	return r.hasMotor
}

func (r *SimulatedRover) Apply(action Action) (err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.state = transition(r.state, action, r.hasMotor)
	return
}

func (r *SimulatedRover) State() (state OutputState) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.state
}
