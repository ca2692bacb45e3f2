package statepub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panelworks/sicp-core/internal/infrastructure/mqtt"
	"github.com/panelworks/sicp-core/internal/sicp"
)

// Availability payload values.
const (
	AvailabilityOnline  = "online"
	AvailabilityOffline = "offline"
)

// commandTimeout bounds a panel exchange triggered from an MQTT command.
// Commands arrive without a caller context, and a panel that has fallen off
// the network must not pin the subscription handler forever.
const commandTimeout = 30 * time.Second

// Broker is the subset of the MQTT client the publisher needs.
// This allows mocking in tests and flexibility in implementation.
type Broker interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Commander is the subset of the device manager the publisher drives.
// It is satisfied by *sicp.Manager.
type Commander interface {
	SetLed(ctx context.Context, deviceID string, on bool, red, green, blue int) (sicp.DeviceState, error)
	SetPower(ctx context.Context, deviceID string, on bool) (sicp.DeviceState, error)
	GetState(deviceID string) (sicp.DeviceState, error)
	AllStates() map[string]sicp.DeviceState
}

// Logger is the minimal logging interface the publisher needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Publisher publishes panel state to MQTT and feeds inbound commands to the
// device manager.
type Publisher struct {
	broker  Broker
	topics  mqtt.Topics
	manager Commander
	qos     byte

	loggerMu sync.RWMutex
	logger   Logger
}

// New creates a publisher. qos applies to every publish and the command
// subscription.
func New(broker Broker, topics mqtt.Topics, manager Commander, qos byte) *Publisher {
	return &Publisher{
		broker:  broker,
		topics:  topics,
		manager: manager,
		qos:     qos,
	}
}

// SetLogger installs a logger. Without one, dropped commands and publish
// failures are silent.
func (p *Publisher) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	p.logger = logger
	p.loggerMu.Unlock()
}

// Listener adapts the publisher to the device manager's listener signature.
func (p *Publisher) Listener() sicp.StateListener {
	return func(deviceID string, state sicp.DeviceState) {
		p.publishState(deviceID, state)
	}
}

// PublishAll publishes the current state of every panel. Called once after
// startup so retained topics reflect reality before the first change.
func (p *Publisher) PublishAll() {
	for deviceID, state := range p.manager.AllStates() {
		p.publishState(deviceID, state)
	}
}

// SubscribeCommands subscribes to the command topic tree for all panels.
func (p *Publisher) SubscribeCommands() error {
	if err := p.broker.Subscribe(p.topics.AllPanelCommands(), p.qos, p.handleCommand); err != nil {
		return fmt.Errorf("subscribing to panel commands: %w", err)
	}
	return nil
}

func (p *Publisher) publishState(deviceID string, state sicp.DeviceState) {
	payload, err := json.Marshal(state)
	if err != nil {
		p.logError("marshalling panel state", "panel_id", deviceID, "error", err)
		return
	}

	if err := p.broker.Publish(p.topics.PanelState(deviceID), payload, p.qos, true); err != nil {
		p.logError("publishing panel state", "panel_id", deviceID, "error", err)
	}

	availability := AvailabilityOffline
	if state.Available {
		availability = AvailabilityOnline
	}
	if err := p.broker.Publish(p.topics.PanelAvailability(deviceID), []byte(availability), p.qos, true); err != nil {
		p.logError("publishing panel availability", "panel_id", deviceID, "error", err)
	}
}

// handleCommand routes one inbound command message. The topic layout is
// {base}/command/{panel}/{action}; the base may itself contain slashes, so
// routing keys off the trailing three segments.
func (p *Publisher) handleCommand(topic string, payload []byte) error {
	segments := strings.Split(topic, "/")
	if len(segments) < 3 || segments[len(segments)-3] != "command" {
		p.logWarn("command on unexpected topic", "topic", topic)
		return nil
	}
	panelID := segments[len(segments)-2]
	action := segments[len(segments)-1]

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch action {
	case "led":
		return p.handleLedCommand(ctx, panelID, payload)
	case "power":
		return p.handlePowerCommand(ctx, panelID, payload)
	default:
		p.logWarn("unknown command action", "topic", topic, "action", action)
		return nil
	}
}

// ledCommand is the inbound LED command payload. Colour is optional: absent
// colour on an "on" command keeps the panel's last known colour.
type ledCommand struct {
	On    *bool  `json:"on"`
	Color string `json:"color,omitempty"`
	Red   *int   `json:"red,omitempty"`
	Green *int   `json:"green,omitempty"`
	Blue  *int   `json:"blue,omitempty"`
}

func (p *Publisher) handleLedCommand(ctx context.Context, panelID string, payload []byte) error {
	var cmd ledCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		p.logWarn("malformed led command", "panel_id", panelID, "error", err)
		return nil
	}
	if cmd.On == nil {
		p.logWarn("led command missing on field", "panel_id", panelID)
		return nil
	}

	red, green, blue, err := p.resolveColor(panelID, cmd)
	if err != nil {
		p.logWarn("led command colour rejected", "panel_id", panelID, "error", err)
		return nil
	}

	if _, err := p.manager.SetLed(ctx, panelID, *cmd.On, red, green, blue); err != nil {
		p.logError("applying led command", "panel_id", panelID, "error", err)
		return err
	}
	p.logDebug("applied led command", "panel_id", panelID, "on", *cmd.On)
	return nil
}

// resolveColor picks the command colour: explicit hex wins, then discrete
// channels, then the panel's last known colour.
func (p *Publisher) resolveColor(panelID string, cmd ledCommand) (red, green, blue int, err error) {
	if cmd.Color != "" {
		return sicp.ParseHexColor(cmd.Color)
	}
	if cmd.Red != nil || cmd.Green != nil || cmd.Blue != nil {
		return intOrZero(cmd.Red), intOrZero(cmd.Green), intOrZero(cmd.Blue), nil
	}

	state, err := p.manager.GetState(panelID)
	if err != nil {
		return 0, 0, 0, err
	}
	return int(state.Led.Red), int(state.Led.Green), int(state.Led.Blue), nil
}

type powerCommand struct {
	On *bool `json:"on"`
}

func (p *Publisher) handlePowerCommand(ctx context.Context, panelID string, payload []byte) error {
	var cmd powerCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		p.logWarn("malformed power command", "panel_id", panelID, "error", err)
		return nil
	}
	if cmd.On == nil {
		p.logWarn("power command missing on field", "panel_id", panelID)
		return nil
	}

	if _, err := p.manager.SetPower(ctx, panelID, *cmd.On); err != nil {
		p.logError("applying power command", "panel_id", panelID, "error", err)
		return err
	}
	p.logDebug("applied power command", "panel_id", panelID, "on", *cmd.On)
	return nil
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func (p *Publisher) getLogger() Logger {
	p.loggerMu.RLock()
	defer p.loggerMu.RUnlock()
	return p.logger
}

func (p *Publisher) logDebug(msg string, keysAndValues ...any) {
	if logger := p.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (p *Publisher) logWarn(msg string, keysAndValues ...any) {
	if logger := p.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (p *Publisher) logError(msg string, keysAndValues ...any) {
	if logger := p.getLogger(); logger != nil {
		logger.Error(msg, keysAndValues...)
	}
}
