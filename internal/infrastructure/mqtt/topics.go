package mqtt

import "fmt"

// DefaultTopicBase is the topic prefix used when none is configured.
const DefaultTopicBase = "sicp"

// Topics builds the service's MQTT topic names under a common base.
// Using these helpers keeps topic naming consistent across publishers
// and subscribers.
//
//	topics := mqtt.Topics{Base: "sicp"}
//	topics.PanelState("lobby") // "sicp/state/lobby"
type Topics struct {
	// Base is the topic prefix. Empty means DefaultTopicBase.
	Base string
}

func (t Topics) base() string {
	if t.Base == "" {
		return DefaultTopicBase
	}
	return t.Base
}

// ServiceStatus returns the retained service online/offline topic.
// This is also the LWT topic.
//
// Example: sicp/status
func (t Topics) ServiceStatus() string {
	return fmt.Sprintf("%s/status", t.base())
}

// PanelState returns the retained per-panel state topic.
//
// Example: sicp/state/lobby
func (t Topics) PanelState(panelID string) string {
	return fmt.Sprintf("%s/state/%s", t.base(), panelID)
}

// PanelAvailability returns the retained per-panel availability topic.
//
// Example: sicp/availability/lobby
func (t Topics) PanelAvailability(panelID string) string {
	return fmt.Sprintf("%s/availability/%s", t.base(), panelID)
}

// PanelLedCommand returns the per-panel LED command topic.
//
// Example: sicp/command/lobby/led
func (t Topics) PanelLedCommand(panelID string) string {
	return fmt.Sprintf("%s/command/%s/led", t.base(), panelID)
}

// PanelPowerCommand returns the per-panel power command topic.
//
// Example: sicp/command/lobby/power
func (t Topics) PanelPowerCommand(panelID string) string {
	return fmt.Sprintf("%s/command/%s/power", t.base(), panelID)
}

// AllPanelCommands returns a pattern matching every panel command topic.
//
// Pattern: sicp/command/+/+
func (t Topics) AllPanelCommands() string {
	return fmt.Sprintf("%s/command/+/+", t.base())
}

// AllPanelStates returns a pattern matching every panel state topic.
//
// Pattern: sicp/state/+
func (t Topics) AllPanelStates() string {
	return fmt.Sprintf("%s/state/+", t.base())
}
