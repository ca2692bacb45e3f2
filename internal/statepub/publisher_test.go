package statepub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/panelworks/sicp-core/internal/infrastructure/mqtt"
	"github.com/panelworks/sicp-core/internal/sicp"
)

type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakeBroker struct {
	mu        sync.Mutex
	published []publishedMessage
	handlers  map[string]mqtt.MessageHandler
	subErr    error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string]mqtt.MessageHandler)}
}

func (b *fakeBroker) Publish(topic string, payload []byte, qos byte, retained bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, publishedMessage{topic, payload, qos, retained})
	return nil
}

func (b *fakeBroker) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	if b.subErr != nil {
		return b.subErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return nil
}

func (b *fakeBroker) messages() []publishedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]publishedMessage, len(b.published))
	copy(out, b.published)
	return out
}

func (b *fakeBroker) find(topic string) (publishedMessage, bool) {
	for _, msg := range b.messages() {
		if msg.topic == topic {
			return msg, true
		}
	}
	return publishedMessage{}, false
}

type ledCall struct {
	deviceID         string
	on               bool
	red, green, blue int
}

type powerCall struct {
	deviceID string
	on       bool
}

type fakeManager struct {
	mu         sync.Mutex
	states     map[string]sicp.DeviceState
	ledCalls   []ledCall
	powerCalls []powerCall
	setErr     error
}

func newFakeManager(states map[string]sicp.DeviceState) *fakeManager {
	if states == nil {
		states = make(map[string]sicp.DeviceState)
	}
	return &fakeManager{states: states}
}

func (m *fakeManager) SetLed(_ context.Context, deviceID string, on bool, red, green, blue int) (sicp.DeviceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return sicp.DeviceState{}, m.setErr
	}
	m.ledCalls = append(m.ledCalls, ledCall{deviceID, on, red, green, blue})
	return m.states[deviceID], nil
}

func (m *fakeManager) SetPower(_ context.Context, deviceID string, on bool) (sicp.DeviceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return sicp.DeviceState{}, m.setErr
	}
	m.powerCalls = append(m.powerCalls, powerCall{deviceID, on})
	return m.states[deviceID], nil
}

func (m *fakeManager) GetState(deviceID string) (sicp.DeviceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[deviceID]
	if !ok {
		return sicp.DeviceState{}, sicp.ErrDeviceNotFound
	}
	return state, nil
}

func (m *fakeManager) AllStates() map[string]sicp.DeviceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]sicp.DeviceState, len(m.states))
	for id, state := range m.states {
		out[id] = state
	}
	return out
}

func testPublisher(states map[string]sicp.DeviceState) (*Publisher, *fakeBroker, *fakeManager) {
	broker := newFakeBroker()
	manager := newFakeManager(states)
	pub := New(broker, mqtt.Topics{}, manager, 1)
	return pub, broker, manager
}

func availableState(on bool) sicp.DeviceState {
	return sicp.DeviceState{
		Led:       sicp.LedStatus{On: on, Red: 0x10, Green: 0x20, Blue: 0x30},
		Available: true,
	}
}

func TestListenerPublishesStateAndAvailability(t *testing.T) {
	pub, broker, _ := testPublisher(nil)

	pub.Listener()("lobby", availableState(true))

	stateMsg, ok := broker.find("sicp/state/lobby")
	if !ok {
		t.Fatal("no state message published")
	}
	if !stateMsg.retained {
		t.Error("state message should be retained")
	}

	var state sicp.DeviceState
	if err := json.Unmarshal(stateMsg.payload, &state); err != nil {
		t.Fatalf("state payload is not valid JSON: %v", err)
	}
	if !state.Led.On || state.Led.Red != 0x10 {
		t.Errorf("unexpected state payload: %+v", state)
	}

	availMsg, ok := broker.find("sicp/availability/lobby")
	if !ok {
		t.Fatal("no availability message published")
	}
	if string(availMsg.payload) != AvailabilityOnline {
		t.Errorf("availability = %q, want %q", availMsg.payload, AvailabilityOnline)
	}
}

func TestListenerPublishesOffline(t *testing.T) {
	pub, broker, _ := testPublisher(nil)

	pub.Listener()("lobby", sicp.DeviceState{Available: false})

	availMsg, ok := broker.find("sicp/availability/lobby")
	if !ok {
		t.Fatal("no availability message published")
	}
	if string(availMsg.payload) != AvailabilityOffline {
		t.Errorf("availability = %q, want %q", availMsg.payload, AvailabilityOffline)
	}
}

func TestPublishAll(t *testing.T) {
	pub, broker, _ := testPublisher(map[string]sicp.DeviceState{
		"lobby":  availableState(true),
		"atrium": availableState(false),
	})

	pub.PublishAll()

	for _, topic := range []string{"sicp/state/lobby", "sicp/state/atrium"} {
		if _, ok := broker.find(topic); !ok {
			t.Errorf("missing publish on %s", topic)
		}
	}
}

func TestSubscribeCommands(t *testing.T) {
	pub, broker, _ := testPublisher(nil)

	if err := pub.SubscribeCommands(); err != nil {
		t.Fatalf("SubscribeCommands() error = %v", err)
	}
	if _, ok := broker.handlers["sicp/command/+/+"]; !ok {
		t.Error("handler not registered on command wildcard")
	}
}

func TestLedCommandWithHexColor(t *testing.T) {
	pub, broker, manager := testPublisher(nil)
	if err := pub.SubscribeCommands(); err != nil {
		t.Fatalf("SubscribeCommands() error = %v", err)
	}
	handler := broker.handlers["sicp/command/+/+"]

	err := handler("sicp/command/lobby/led", []byte(`{"on": true, "color": "#FF2000"}`))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	if len(manager.ledCalls) != 1 {
		t.Fatalf("SetLed called %d times, want 1", len(manager.ledCalls))
	}
	call := manager.ledCalls[0]
	want := ledCall{deviceID: "lobby", on: true, red: 0xFF, green: 0x20, blue: 0x00}
	if call != want {
		t.Errorf("SetLed call = %+v, want %+v", call, want)
	}
}

func TestLedCommandWithChannels(t *testing.T) {
	pub, broker, manager := testPublisher(nil)
	if err := pub.SubscribeCommands(); err != nil {
		t.Fatalf("SubscribeCommands() error = %v", err)
	}
	handler := broker.handlers["sicp/command/+/+"]

	err := handler("sicp/command/lobby/led", []byte(`{"on": true, "red": 1, "green": 2, "blue": 3}`))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	if len(manager.ledCalls) != 1 {
		t.Fatalf("SetLed called %d times, want 1", len(manager.ledCalls))
	}
	if got := manager.ledCalls[0]; got.red != 1 || got.green != 2 || got.blue != 3 {
		t.Errorf("SetLed colour = %+v", got)
	}
}

func TestLedCommandKeepsLastColor(t *testing.T) {
	pub, broker, manager := testPublisher(map[string]sicp.DeviceState{
		"lobby": availableState(false),
	})
	if err := pub.SubscribeCommands(); err != nil {
		t.Fatalf("SubscribeCommands() error = %v", err)
	}
	handler := broker.handlers["sicp/command/+/+"]

	err := handler("sicp/command/lobby/led", []byte(`{"on": true}`))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	if len(manager.ledCalls) != 1 {
		t.Fatalf("SetLed called %d times, want 1", len(manager.ledCalls))
	}
	if got := manager.ledCalls[0]; got.red != 0x10 || got.green != 0x20 || got.blue != 0x30 {
		t.Errorf("expected last known colour, got %+v", got)
	}
}

func TestPowerCommand(t *testing.T) {
	pub, broker, manager := testPublisher(nil)
	if err := pub.SubscribeCommands(); err != nil {
		t.Fatalf("SubscribeCommands() error = %v", err)
	}
	handler := broker.handlers["sicp/command/+/+"]

	err := handler("sicp/command/lobby/power", []byte(`{"on": false}`))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	if len(manager.powerCalls) != 1 {
		t.Fatalf("SetPower called %d times, want 1", len(manager.powerCalls))
	}
	if got := manager.powerCalls[0]; got.deviceID != "lobby" || got.on {
		t.Errorf("SetPower call = %+v", got)
	}
}

func TestMalformedCommandsDropped(t *testing.T) {
	pub, broker, manager := testPublisher(nil)
	if err := pub.SubscribeCommands(); err != nil {
		t.Fatalf("SubscribeCommands() error = %v", err)
	}
	handler := broker.handlers["sicp/command/+/+"]

	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"invalid json", "sicp/command/lobby/led", "{nope"},
		{"missing on field led", "sicp/command/lobby/led", "{}"},
		{"missing on field power", "sicp/command/lobby/power", "{}"},
		{"bad colour", "sicp/command/lobby/led", `{"on": true, "color": "red"}`},
		{"unknown action", "sicp/command/lobby/reboot", `{"on": true}`},
		{"not a command topic", "sicp/state/lobby", `{"on": true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := handler(tt.topic, []byte(tt.payload)); err != nil {
				t.Errorf("handler error = %v, want dropped silently", err)
			}
		})
	}

	if len(manager.ledCalls)+len(manager.powerCalls) != 0 {
		t.Errorf("manager was called for malformed commands: led=%d power=%d",
			len(manager.ledCalls), len(manager.powerCalls))
	}
}

func TestCommandErrorPropagates(t *testing.T) {
	pub, broker, manager := testPublisher(nil)
	manager.setErr = sicp.ErrDeviceNotFound
	if err := pub.SubscribeCommands(); err != nil {
		t.Fatalf("SubscribeCommands() error = %v", err)
	}
	handler := broker.handlers["sicp/command/+/+"]

	err := handler("sicp/command/ghost/power", []byte(`{"on": true}`))
	if err == nil {
		t.Error("expected error for failed command")
	}
}

func TestCustomTopicBase(t *testing.T) {
	broker := newFakeBroker()
	manager := newFakeManager(nil)
	pub := New(broker, mqtt.Topics{Base: "building/7/panels"}, manager, 1)
	if err := pub.SubscribeCommands(); err != nil {
		t.Fatalf("SubscribeCommands() error = %v", err)
	}
	handler := broker.handlers["building/7/panels/command/+/+"]
	if handler == nil {
		t.Fatal("handler not registered under custom base")
	}

	err := handler("building/7/panels/command/lobby/power", []byte(`{"on": true}`))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if len(manager.powerCalls) != 1 {
		t.Errorf("SetPower called %d times, want 1", len(manager.powerCalls))
	}
}
