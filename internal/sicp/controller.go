package sicp

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger is the optional structured logging interface used throughout the
// package. It is satisfied by *slog.Logger and by the logging package's
// wrapper without importing either.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Controller is the single source of truth for one panel's confirmed
// state. Every public operation acquires the panel's exclusive section
// before touching the network, so at most one exchange is ever in flight
// per panel and a poll-driven refresh can never interleave with a
// user-driven command.
//
// Conceptually a panel moves Unknown → Available ⇄ Unavailable: it starts
// unknown (available=false, empty state), any successful exchange makes it
// available, any failed one makes it unavailable with the error recorded,
// and the next successful exchange brings it back. There is no terminal
// state and no manual reset.
type Controller struct {
	cfg       DeviceConfig
	transport Sender
	retry     RetryExecutor

	// opMu is the exclusive section: held across the full network
	// exchange of every public operation.
	opMu sync.Mutex

	// stateMu guards state so snapshots never block on in-flight I/O.
	stateMu sync.RWMutex
	state   DeviceState

	// notify receives a snapshot after every state mutation. Set by the
	// manager; never nil.
	notify func(deviceID string, state DeviceState)

	logger   Logger
	loggerMu sync.RWMutex
}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	// Config describes the panel. Required.
	Config DeviceConfig

	// Transport overrides the TCP transport, for tests. Optional.
	Transport Sender

	// Notify receives state snapshots after every mutation. Optional.
	Notify func(deviceID string, state DeviceState)
}

// NewController validates the config and builds a controller. The panel
// starts in the unknown state; nothing is sent until the first operation.
func NewController(opts ControllerOptions) (*Controller, error) {
	cfg := opts.Config.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := opts.Transport
	if transport == nil {
		transport = NewTransport(cfg.Host, cfg.Port, cfg.Timeout)
	}

	notify := opts.Notify
	if notify == nil {
		notify = func(string, DeviceState) {}
	}

	return &Controller{
		cfg:       cfg,
		transport: transport,
		retry:     RetryExecutor{Retries: cfg.Retries, Delay: cfg.RetryDelay},
		notify:    notify,
	}, nil
}

// ID returns the panel identifier.
func (c *Controller) ID() string {
	return c.cfg.ID
}

// Config returns the panel configuration.
func (c *Controller) Config() DeviceConfig {
	return c.cfg
}

// State returns an independent snapshot of the confirmed state. It never
// blocks on an in-flight exchange.
func (c *Controller) State() DeviceState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state.Clone()
}

// SetLogger sets the logger for this controller.
func (c *Controller) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// SetLed sends an LED SET command and confirms it with an immediate GET.
//
// The command succeeds only if the panel's confirmed on-flag matches the
// request and, when switching on, the confirmed RGB matches the requested
// RGB (when switching off both sides are forced to zero). On a mismatch a
// *ProtocolError is returned — but the confirmed state is still recorded
// with available=true and the error cleared, because the panel is
// reachable and visibility of its true state outranks strict failure
// semantics.
//
// Connection and protocol errors are recorded into the state and
// returned; commands fail loudly.
func (c *Controller) SetLed(ctx context.Context, on bool, red, green, blue int) (DeviceState, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	setFrame, err := BuildSetFrame(on, red, green, blue)
	if err != nil {
		return c.State(), err
	}

	c.logInfo("setting LED",
		"on", on,
		"color", fmt.Sprintf("#%02X%02X%02X", byte(red), byte(green), byte(blue)),
	)

	// The panel acknowledges SET frames, so a reply is expected even
	// though its content is not authoritative.
	if _, err := c.retry.Send(ctx, c.transport, setFrame, true); err != nil {
		return c.fail(err)
	}

	confirmed, err := c.queryLed(ctx)
	if err != nil {
		return c.fail(err)
	}

	// Record whatever the panel reports before judging the command.
	snapshot := c.updateLed(confirmed)

	wantRed, wantGreen, wantBlue := byte(red), byte(green), byte(blue)
	if !on {
		wantRed, wantGreen, wantBlue = 0, 0, 0
	}
	mismatch := confirmed.On != on ||
		(on && (confirmed.Red != wantRed || confirmed.Green != wantGreen || confirmed.Blue != wantBlue))
	if mismatch {
		return snapshot, &ProtocolError{
			Reason: fmt.Sprintf("LED confirmation mismatch: requested on=%t #%02X%02X%02X, confirmed on=%t %s",
				on, wantRed, wantGreen, wantBlue, confirmed.On, confirmed.Hex()),
		}
	}
	return snapshot, nil
}

// SetPower sends a power command and queries the state back.
//
// Power replies are a firmware best-effort hint, so unlike SetLed a
// confirmation mismatch is logged as a warning, not raised: the command
// counts as succeeded once the frame is acknowledged. When the query-back
// cannot produce a value, the requested state is recorded as the hint.
func (c *Controller) SetPower(ctx context.Context, on bool) (DeviceState, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.logInfo("setting power", "on", on)

	if _, err := c.retry.Send(ctx, c.transport, BuildPowerFrame(on), true); err != nil {
		return c.fail(err)
	}

	power := c.queryPower(ctx)
	if power.On == nil {
		// Acknowledged but unverifiable; record the intent as the hint.
		hinted := on
		power = PowerStatus{On: &hinted}
	} else if *power.On != on {
		c.logWarn("power confirmation mismatch",
			"requested", on,
			"confirmed", *power.On,
		)
	}

	return c.updatePower(power), nil
}

// Refresh queries the panel's LED state and, best-effort, its power
// state. Failures are swallowed into the recorded state rather than
// returned: polling degrades silently and retries on the next tick. A
// failed power query alone never fails the refresh — LED state is
// authoritative, power is supplementary.
func (c *Controller) Refresh(ctx context.Context) DeviceState {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.logDebug("refreshing state")

	led, err := c.queryLed(ctx)
	if err != nil {
		snapshot, _ := c.fail(err)
		return snapshot
	}

	power := c.queryPower(ctx)

	c.stateMu.Lock()
	c.state.Led = led
	c.state.Power = power
	c.state.Available = true
	c.state.LastError = ""
	c.state.LastUpdated = time.Now().UTC()
	snapshot := c.state.Clone()
	c.stateMu.Unlock()

	c.notify(c.cfg.ID, snapshot)
	return snapshot
}

// queryLed sends a GET frame and parses the reply.
func (c *Controller) queryLed(ctx context.Context) (LedStatus, error) {
	reply, err := c.retry.Send(ctx, c.transport, BuildGetFrame(), true)
	if err != nil {
		return LedStatus{}, err
	}
	return ParseLedReply(reply)
}

// queryPower sends a power query and parses the reply. Any failure —
// connection, short reply, unknown payload — yields the unknown state;
// power is never worth failing an operation over.
func (c *Controller) queryPower(ctx context.Context) PowerStatus {
	reply, err := c.retry.Send(ctx, c.transport, BuildPowerQueryFrame(), true)
	if err != nil {
		c.logDebug("power query failed", "error", err)
		return PowerStatus{}
	}
	power, err := ParsePowerReply(reply)
	if err != nil {
		c.logDebug("power reply unparseable", "error", err)
		return PowerStatus{}
	}
	return power
}

// updateLed records a confirmed LED state from a reachable panel.
func (c *Controller) updateLed(led LedStatus) DeviceState {
	c.stateMu.Lock()
	c.state.Led = led
	c.state.Available = true
	c.state.LastError = ""
	c.state.LastUpdated = time.Now().UTC()
	snapshot := c.state.Clone()
	c.stateMu.Unlock()

	c.notify(c.cfg.ID, snapshot)
	return snapshot
}

// updatePower records a confirmed power state from a reachable panel.
func (c *Controller) updatePower(power PowerStatus) DeviceState {
	c.stateMu.Lock()
	c.state.Power = power
	c.state.Available = true
	c.state.LastError = ""
	c.state.LastUpdated = time.Now().UTC()
	snapshot := c.state.Clone()
	c.stateMu.Unlock()

	c.notify(c.cfg.ID, snapshot)
	return snapshot
}

// fail marks the panel unavailable, records the error, notifies, and
// hands the error back for the caller to return or swallow.
func (c *Controller) fail(err error) (DeviceState, error) {
	c.logWarn("communication failure", "error", err)

	c.stateMu.Lock()
	c.state.Available = false
	c.state.LastError = err.Error()
	c.state.LastUpdated = time.Now().UTC()
	snapshot := c.state.Clone()
	c.stateMu.Unlock()

	c.notify(c.cfg.ID, snapshot)
	return snapshot, err
}

func (c *Controller) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Controller) logDebug(msg string, keysAndValues ...any) {
	if l := c.getLogger(); l != nil {
		l.Debug(msg, append([]any{"device_id", c.cfg.ID}, keysAndValues...)...)
	}
}

func (c *Controller) logInfo(msg string, keysAndValues ...any) {
	if l := c.getLogger(); l != nil {
		l.Info(msg, append([]any{"device_id", c.cfg.ID}, keysAndValues...)...)
	}
}

func (c *Controller) logWarn(msg string, keysAndValues ...any) {
	if l := c.getLogger(); l != nil {
		l.Warn(msg, append([]any{"device_id", c.cfg.ID}, keysAndValues...)...)
	}
}
