package onboard

import (
	"fmt"
	"sync"

	"github.com/gesturelink/rover/gpio"
)

// OutputState is the set of output levels currently asserted.
type OutputState struct {
	MotorA   bool `json:"motor_a"`
	MotorB   bool `json:"motor_b"`
	DirLeft  bool `json:"direction_left"`
	DirRight bool `json:"direction_right"`
	LED      bool `json:"led"`
}

type Rover interface {
	Apply(action Action) (err error)
	State() (state OutputState)
	HasMotor() bool
}

// transition computes the next output state for an action.
//
//	000 stop         motor off  dir off  led off
//	001 accelerate   motor a    dir off  led on
//	101 steer-left            dir left   led on
//	110 steer-right           dir right  led on
//	111 go-straight           dir off    led on
//
// Steering codes never touch the motor levels. Without the motor capability
// the motor fields stay false.
func transition(cur OutputState, action Action, hasMotor bool) (next OutputState) {
	next = cur

	switch action {
	case Stop:
		if hasMotor {
			next.MotorA = false
			next.MotorB = false
		}
		next.DirLeft = false
		next.DirRight = false
		next.LED = false

	case Accelerate:
		if hasMotor {
			next.MotorA = true
			next.MotorB = false
		}
		next.DirLeft = false
		next.DirRight = false
		next.LED = true

	case SteerLeft:
		next.DirLeft = true
		next.DirRight = false
		next.LED = true

	case SteerRight:
		next.DirLeft = false
		next.DirRight = true
		next.LED = true

	case GoStraight:
		next.DirLeft = false
		next.DirRight = false
		next.LED = true
	}

	return
}

// PinRover realizes actions on physical output pins.
type PinRover struct {
	led, dirLeft, dirRight gpio.Pin
	motorA, motorB         gpio.Pin // nil when the motor capability is absent

	lock  sync.Mutex
	state OutputState
}

func NewPinRover(config RoverConfig, chip gpio.Chip) (r *PinRover, err error) {
	r = new(PinRover)

	r.led, err = chip.OpenPin(config.Pins.LED)
	if err != nil {
		return nil, fmt.Errorf("claim led pin: %w", err)
	}
	r.dirLeft, err = chip.OpenPin(config.Pins.DirectionLeft)
	if err != nil {
		return nil, fmt.Errorf("claim direction_left pin: %w", err)
	}
	r.dirRight, err = chip.OpenPin(config.Pins.DirectionRight)
	if err != nil {
		return nil, fmt.Errorf("claim direction_right pin: %w", err)
	}

	if config.HasMotor() {
		r.motorA, err = chip.OpenPin(config.Pins.MotorA)
		if err != nil {
			return nil, fmt.Errorf("claim motor_a pin: %w", err)
		}
		r.motorB, err = chip.OpenPin(config.Pins.MotorB)
		if err != nil {
			return nil, fmt.Errorf("claim motor_b pin: %w", err)
		}
	}

	return
}

func (r *PinRover) HasMotor() bool {
	return r.motorA != nil && r.motorB != nil
}

func (r *PinRover) Apply(action Action) (err error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	next := transition(r.state, action, r.HasMotor())

	writes := []struct {
		pin  gpio.Pin
		high bool
	}{
		{r.motorA, next.MotorA},
		{r.motorB, next.MotorB},
		{r.dirLeft, next.DirLeft},
		{r.dirRight, next.DirRight},
		{r.led, next.LED},
	}
	for _, w := range writes {
		if w.pin == nil {
			continue
		}
		if err = w.pin.Set(w.high); err != nil {
			return
		}
	}

	r.state = next
	return
}

func (r *PinRover) State() (state OutputState) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.state
}
