package onboard

import (
	deverrors "github.com/gesturelink/rover/onboard/errors"
)

// Action is a decoded command from the hand controller.
type Action int

const (
	Stop Action = iota
	Accelerate
	SteerLeft
	SteerRight
	GoStraight
)

// Wire codes as sent by the controller. The set is closed; anything else is
// rejected at the boundary, never defaulted.
const (
	CodeStop       = "000"
	CodeAccelerate = "001"
	CodeSteerLeft  = "101"
	CodeSteerRight = "110"
	CodeGoStraight = "111"
)

var codeActions = map[string]Action{
	CodeStop:       Stop,
	CodeAccelerate: Accelerate,
	CodeSteerLeft:  SteerLeft,
	CodeSteerRight: SteerRight,
	CodeGoStraight: GoStraight,
}

var actionCodes = map[Action]string{
	Stop:       CodeStop,
	Accelerate: CodeAccelerate,
	SteerLeft:  CodeSteerLeft,
	SteerRight: CodeSteerRight,
	GoStraight: CodeGoStraight,
}

// ParseActionCode decodes a 3-digit wire code into an Action.
func ParseActionCode(code string) (a Action, err error) {
	a, ok := codeActions[code]
	if !ok {
		err = deverrors.InvalidCodeError{Code: code}
	}
	return
}

// Code returns the wire representation of the action.
func (a Action) Code() string {
	return actionCodes[a]
}

func (a Action) String() string {
	switch a {
	case Stop:
		return "stop"
	case Accelerate:
		return "accelerate"
	case SteerLeft:
		return "steer-left"
	case SteerRight:
		return "steer-right"
	case GoStraight:
		return "go-straight"
	}
	return "unknown"
}
