package client

import (
	"sync"

	"github.com/gesturelink/rover/gesture"
	"github.com/gesturelink/rover/onboard"
)

// Role distinguishes the two command streams: the left hand drives the
// throttle, the right hand the steering.
type Role int

const (
	Throttle Role = iota
	Steering
)

// ActionSender is the transmit side the handler talks to.
type ActionSender interface {
	Send(action onboard.Action) error
	Connected() bool
}

// CarHandler maps detected hands to actions and sends only changes per role.
type CarHandler struct {
	sender ActionSender

	lock sync.Mutex
	last map[Role]onboard.Action
}

func NewCarHandler(sender ActionSender) *CarHandler {
	return &CarHandler{
		sender: sender,
		last:   make(map[Role]onboard.Action),
	}
}

// ActionFor returns the action a single hand encodes.
func ActionFor(hand gesture.Hand) onboard.Action {
	switch hand.EffectiveType() {
	case gesture.Left:
		if hand.IsOpen(gesture.OpenThreshold) {
			return onboard.Accelerate
		}
		return onboard.Stop

	case gesture.Right:
		switch hand.IndexOrientation(gesture.OrientationThreshold) {
		case gesture.IndexLeft:
			return onboard.SteerLeft
		case gesture.IndexRight:
			return onboard.SteerRight
		default:
			return onboard.GoStraight
		}
	}

	return onboard.Stop
}

// ProcessHands evaluates one frame worth of hands. A missing left hand means
// stop; a missing right hand means straight.
func (h *CarHandler) ProcessHands(hands []gesture.Hand) {
	detected := make(map[gesture.HandType]gesture.Hand)
	for _, hand := range hands {
		if t := hand.EffectiveType(); t != gesture.Unknown {
			detected[t] = hand
		}
	}

	throttle := onboard.Stop
	if hand, ok := detected[gesture.Left]; ok {
		throttle = ActionFor(hand)
	}
	h.send(Throttle, throttle)

	steering := onboard.GoStraight
	if hand, ok := detected[gesture.Right]; ok {
		steering = ActionFor(hand)
	}
	h.send(Steering, steering)
}

// LastAction reports the most recently transmitted action for a role.
func (h *CarHandler) LastAction(role Role) (action onboard.Action, ok bool) {
	h.lock.Lock()
	defer h.lock.Unlock()
	action, ok = h.last[role]
	return
}

func (h *CarHandler) send(role Role, action onboard.Action) {
	h.lock.Lock()
	defer h.lock.Unlock()

	if last, ok := h.last[role]; ok && last == action {
		return
	}
	if !h.sender.Connected() {
		return
	}
	if err := h.sender.Send(action); err != nil {
		return
	}
	h.last[role] = action
}
