package comms

import (
	"time"

	"github.com/gesturelink/rover/onboard"
)

// StatePayload is pushed to subscribers whenever an action is applied.
type StatePayload struct {
	Code   string              `json:"code"`
	Action string              `json:"action"`
	Remote string              `json:"remote,omitempty"`
	State  onboard.OutputState `json:"state"`
	At     time.Time           `json:"at"`
}
