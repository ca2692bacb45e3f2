package sicp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Manager owns the panel roster. It runs one independent polling loop per
// panel at that panel's configured interval, fans state-change
// notifications out to registered listeners, and coordinates start/stop.
//
// Thread Safety: all methods are safe for concurrent use. Operations on
// different panels proceed fully in parallel; operations on the same
// panel serialise through its controller.
type Manager struct {
	cfg         ManagerConfig
	controllers map[string]*Controller

	// listeners is keyed by registration id so callers can unsubscribe.
	listeners  map[string]StateListener
	listenerMu sync.RWMutex

	// Shutdown coordination (stopOnce prevents double-close panics).
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewManager validates every device config and builds the roster. Nothing
// is sent until Start.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	return NewManagerWithTransports(cfg, nil)
}

// NewManagerWithTransports is NewManager with per-device transport
// overrides, for tests. A device without an override gets the TCP
// transport.
func NewManagerWithTransports(cfg ManagerConfig, transports map[string]Sender) (*Manager, error) {
	m := &Manager{
		cfg:         cfg,
		controllers: make(map[string]*Controller, len(cfg.Devices)),
		listeners:   make(map[string]StateListener),
		done:        make(chan struct{}),
	}

	for _, dc := range cfg.Devices {
		controller, err := NewController(ControllerOptions{
			Config:    dc,
			Transport: transports[dc.ID],
			Notify:    m.dispatch,
		})
		if err != nil {
			return nil, err
		}
		if _, exists := m.controllers[controller.ID()]; exists {
			return nil, fmt.Errorf("%w: duplicate device id %q", ErrInvalidConfig, controller.ID())
		}
		m.controllers[controller.ID()] = controller
	}

	return m, nil
}

// SetLogger sets the logger for the manager and all controllers.
func (m *Manager) SetLogger(logger Logger) {
	m.loggerMu.Lock()
	m.logger = logger
	m.loggerMu.Unlock()

	for _, c := range m.controllers {
		c.SetLogger(logger)
	}
}

// AddListener registers a listener for (deviceID, snapshot) notifications
// and returns a registration id for RemoveListener.
//
// Listeners are invoked asynchronously after every state mutation. A
// failing or panicking listener is logged and isolated: it never aborts
// the operation that triggered it and never affects other listeners.
func (m *Manager) AddListener(listener StateListener) string {
	id := uuid.NewString()
	m.listenerMu.Lock()
	m.listeners[id] = listener
	m.listenerMu.Unlock()
	return id
}

// RemoveListener unsubscribes a previously registered listener.
func (m *Manager) RemoveListener(id string) {
	m.listenerMu.Lock()
	delete(m.listeners, id)
	m.listenerMu.Unlock()
}

// dispatch fans a state snapshot out to all listeners without blocking
// the mutating controller operation.
func (m *Manager) dispatch(deviceID string, state DeviceState) {
	m.listenerMu.RLock()
	listeners := make([]StateListener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.listenerMu.RUnlock()

	if len(listeners) == 0 {
		return
	}

	go func() {
		for _, listener := range listeners {
			m.invoke(listener, deviceID, state.Clone())
		}
	}()
}

// invoke runs one listener with panic isolation.
func (m *Manager) invoke(listener StateListener, deviceID string, state DeviceState) {
	defer func() {
		if r := recover(); r != nil {
			m.logError("state listener panic", fmt.Errorf("%v", r), "device_id", deviceID)
		}
	}()
	listener(deviceID, state)
}

// Start launches one polling goroutine per panel.
//
// When PollOnStartup is set, one synchronous refresh round runs for all
// panels (in parallel) before Start returns, so first readers see real
// state rather than unknown. Refresh never returns an error — failures
// land in each panel's recorded state — so the round always completes.
func (m *Manager) Start(ctx context.Context) {
	m.logInfo("starting device manager", "devices", len(m.controllers))

	if m.cfg.PollOnStartup {
		var g errgroup.Group
		for _, controller := range m.controllers {
			controller := controller
			g.Go(func() error {
				controller.Refresh(ctx)
				return nil
			})
		}
		g.Wait() //nolint:errcheck // refresh records its own failures
	}

	for _, controller := range m.controllers {
		m.wg.Add(1)
		go m.pollLoop(ctx, controller)
	}
}

// pollLoop refreshes one panel at its configured interval until the
// context is cancelled or Stop is called. The stop signal is observed at
// the sleep point; an in-flight exchange finishes on its own timeout
// rather than being aborted mid-socket-operation.
func (m *Manager) pollLoop(ctx context.Context, controller *Controller) {
	defer m.wg.Done()

	interval := controller.Config().PollInterval
	for {
		// Refresh catches its own errors; a panic here would mean a bug,
		// and the loop backs off one interval instead of dying silently.
		m.refreshGuarded(ctx, controller)

		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-time.After(interval):
		}
	}
}

// refreshGuarded runs one refresh with panic recovery.
func (m *Manager) refreshGuarded(ctx context.Context, controller *Controller) {
	defer func() {
		if r := recover(); r != nil {
			m.logError("panic during poll", fmt.Errorf("%v", r), "device_id", controller.ID())
		}
	}()
	controller.Refresh(ctx)
}

// Stop signals all polling loops to exit and waits for them. Safe to call
// multiple times. In-flight exchanges complete or fail on their own
// timeouts; no panel is ever left mid-frame.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.logInfo("stopping device manager")
		close(m.done)
		m.wg.Wait()
	})
}

// Refresh polls one panel immediately. Communication failures are
// recorded in the returned state, not returned as errors; only an unknown
// identifier fails.
func (m *Manager) Refresh(ctx context.Context, deviceID string) (DeviceState, error) {
	controller, err := m.controller(deviceID)
	if err != nil {
		return DeviceState{}, err
	}
	return controller.Refresh(ctx), nil
}

// SetLed sets a panel's LED accent state, confirming against the panel.
func (m *Manager) SetLed(ctx context.Context, deviceID string, on bool, red, green, blue int) (DeviceState, error) {
	controller, err := m.controller(deviceID)
	if err != nil {
		return DeviceState{}, err
	}
	return controller.SetLed(ctx, on, red, green, blue)
}

// SetPower sets a panel's power state.
func (m *Manager) SetPower(ctx context.Context, deviceID string, on bool) (DeviceState, error) {
	controller, err := m.controller(deviceID)
	if err != nil {
		return DeviceState{}, err
	}
	return controller.SetPower(ctx, on)
}

// GetState returns a snapshot of one panel's confirmed state.
func (m *Manager) GetState(deviceID string) (DeviceState, error) {
	controller, err := m.controller(deviceID)
	if err != nil {
		return DeviceState{}, err
	}
	return controller.State(), nil
}

// AllStates returns snapshots for every configured panel.
func (m *Manager) AllStates() map[string]DeviceState {
	states := make(map[string]DeviceState, len(m.controllers))
	for id, controller := range m.controllers {
		states[id] = controller.State()
	}
	return states
}

// DeviceIDs returns the configured panel identifiers.
func (m *Manager) DeviceIDs() []string {
	ids := make([]string, 0, len(m.controllers))
	for id := range m.controllers {
		ids = append(ids, id)
	}
	return ids
}

// controller looks a panel up by identifier.
func (m *Manager) controller(deviceID string) (*Controller, error) {
	controller, ok := m.controllers[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, deviceID)
	}
	return controller, nil
}

func (m *Manager) getLogger() Logger {
	m.loggerMu.RLock()
	defer m.loggerMu.RUnlock()
	return m.logger
}

func (m *Manager) logInfo(msg string, keysAndValues ...any) {
	if l := m.getLogger(); l != nil {
		l.Info(msg, keysAndValues...)
	}
}

func (m *Manager) logError(msg string, err error, keysAndValues ...any) {
	if l := m.getLogger(); l != nil {
		l.Error(msg, append([]any{"error", err}, keysAndValues...)...)
	}
}
