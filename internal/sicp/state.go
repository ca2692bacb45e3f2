package sicp

import (
	"fmt"
	"time"
)

// LedStatus is the LED accent strip state as reported by a panel.
type LedStatus struct {
	On    bool  `json:"on"`
	Red   uint8 `json:"red"`
	Green uint8 `json:"green"`
	Blue  uint8 `json:"blue"`
}

// Hex returns the colour as "#RRGGBB".
func (l LedStatus) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", l.Red, l.Green, l.Blue)
}

// PowerStatus is the panel power state. On is nil when the panel does not
// support or declines to answer a power query; unknown is a representable,
// testable state rather than an implicit false.
type PowerStatus struct {
	On *bool `json:"on"`
}

// DeviceState is the confirmed state of one panel. It is owned exclusively
// by that panel's Controller; all mutation happens inside the controller's
// exclusive section, and external readers only ever receive snapshots.
type DeviceState struct {
	Led         LedStatus   `json:"led"`
	Power       PowerStatus `json:"power"`
	Available   bool        `json:"available"`
	LastError   string      `json:"last_error,omitempty"`
	LastUpdated time.Time   `json:"last_updated"`
}

// Clone returns an independent copy. The power pointer is duplicated so a
// snapshot can never alias live controller state.
func (s DeviceState) Clone() DeviceState {
	cpy := s
	if s.Power.On != nil {
		on := *s.Power.On
		cpy.Power.On = &on
	}
	return cpy
}

// StateListener receives a panel identifier and a state snapshot after
// every state mutation. Listeners are invoked asynchronously and must not
// assume any delivery ordering across panels.
type StateListener func(deviceID string, state DeviceState)
