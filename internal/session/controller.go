package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rbright/dictate/internal/audio"
	"github.com/rbright/dictate/internal/fsm"
	"github.com/rbright/dictate/internal/ipc"
	"github.com/rbright/dictate/internal/metrics"
)

// DefaultOptions captures from the backend default device at 16 kHz.
func DefaultOptions() Options {
	return Options{Device: audio.DefaultDevice}.normalize()
}

// ControllerConfig wires the long-lived collaborators shared by every session.
type ControllerConfig struct {
	Backend  audio.Backend
	Handoff  Handoff
	Observer Observer
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	// Defaults apply to sessions started over IPC.
	Defaults Options
}

// Controller enforces one active session at a time and serves IPC commands.
type Controller struct {
	cfg ControllerConfig

	mu     sync.RWMutex
	active *Session
}

// NewController constructs a controller with safe default fallbacks.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	if cfg.Defaults == (Options{}) {
		cfg.Defaults = DefaultOptions()
	}
	return &Controller{cfg: cfg}
}

// Start opens a new session. It fails with ErrSessionBusy while another
// session is active and leaves that session untouched. Device failures are
// returned and also reported to the observer as Failed then LifecycleEnd.
func (c *Controller) Start(ctx context.Context, opts Options) (*Session, error) {
	c.mu.Lock()
	if c.active != nil {
		state := c.active.State()
		c.mu.Unlock()
		return nil, fmt.Errorf("%w (state %s)", ErrSessionBusy, state)
	}

	sess := New(Config{
		Backend:  c.cfg.Backend,
		Handoff:  c.cfg.Handoff,
		Observer: c.cfg.Observer,
		Logger:   c.cfg.Logger,
		Metrics:  c.cfg.Metrics,
	}, opts)
	sess.release = c.releaseSlot
	c.active = sess
	c.mu.Unlock()

	if err := sess.Start(ctx); err != nil {
		c.releaseSlot(sess)
		c.cfg.Logger.Error("session start failed", "session_id", sess.ID(), "device", opts.Device, "error", err.Error())
		notify(c.cfg.Logger, "failed", func() { c.cfg.Observer.Failed(err) })
		notify(c.cfg.Logger, "lifecycle_end", c.cfg.Observer.LifecycleEnd)
		return nil, err
	}
	return sess, nil
}

func (c *Controller) releaseSlot(sess *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == sess {
		c.active = nil
	}
}

// Active returns the session holding the slot, if any.
func (c *Controller) Active() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// State reports the active session state, or idle.
func (c *Controller) State() fsm.State {
	if sess := c.Active(); sess != nil {
		return sess.State()
	}
	return fsm.StateIdle
}

// Stop requests the active session to stop and transcribe.
func (c *Controller) Stop() error {
	sess := c.Active()
	if sess == nil {
		return ErrNoActiveSession
	}
	if !sess.Stop() {
		return fmt.Errorf("cannot stop from state %s", sess.State())
	}
	return nil
}

// Cancel requests the active session to stop and discard its audio.
func (c *Controller) Cancel() error {
	sess := c.Active()
	if sess == nil {
		return ErrNoActiveSession
	}
	if !sess.Cancel() {
		return fmt.Errorf("cannot cancel from state %s", sess.State())
	}
	return nil
}

// Handle serves IPC commands for the owner process.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Response{OK: true, State: string(c.State()), Message: "status"}
	case ipc.CommandStart:
		return c.requestStart(ctx, req)
	case ipc.CommandToggle:
		if c.State() == fsm.StateIdle {
			return c.requestStart(ctx, req)
		}
		return c.requestStop("toggle")
	case ipc.CommandStop:
		return c.requestStop("stop")
	case ipc.CommandCancel:
		return c.requestCancel()
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (c *Controller) requestStart(ctx context.Context, req ipc.Request) ipc.Response {
	opts := c.cfg.Defaults
	if req.Device != nil {
		opts.Device = *req.Device
	}
	if req.SampleRate > 0 {
		opts.SampleRate = req.SampleRate
	}

	sess, err := c.Start(ctx, opts)
	if err != nil {
		return ipc.Response{OK: false, State: string(c.State()), Error: err.Error()}
	}
	return ipc.Response{OK: true, State: string(sess.State()), Message: "recording started", Session: sess.ID()}
}

// requestStop asks the active session to stop when state permits it.
func (c *Controller) requestStop(source string) ipc.Response {
	sess := c.Active()
	if sess == nil {
		return ipc.Response{OK: false, State: string(fsm.StateIdle), Error: fmt.Sprintf("cannot %s from state idle", source)}
	}

	state := sess.State()
	switch state {
	case fsm.StateTranscribing:
		return ipc.Response{OK: false, State: string(state), Error: "already transcribing"}
	case fsm.StateDraining:
		return ipc.Response{OK: true, State: string(state), Message: "stop already requested", Session: sess.ID()}
	case fsm.StateRecording:
		if sess.Stop() {
			return ipc.Response{OK: true, State: string(sess.State()), Message: "stop requested", Session: sess.ID()}
		}
		return ipc.Response{OK: true, State: string(sess.State()), Message: "stop already requested", Session: sess.ID()}
	default:
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot %s from state %s", source, state)}
	}
}

// requestCancel asks the active session to discard its audio when state permits it.
func (c *Controller) requestCancel() ipc.Response {
	sess := c.Active()
	if sess == nil {
		return ipc.Response{OK: false, State: string(fsm.StateIdle), Error: "cannot cancel from state idle"}
	}

	state := sess.State()
	if state == fsm.StateTranscribing {
		return ipc.Response{OK: false, State: string(state), Error: "cannot cancel while transcribing"}
	}
	if sess.Cancel() {
		return ipc.Response{OK: true, State: string(sess.State()), Message: "cancel requested", Session: sess.ID()}
	}
	if state == fsm.StateDraining {
		return ipc.Response{OK: true, State: string(state), Message: "cancel already requested", Session: sess.ID()}
	}
	return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot cancel from state %s", state)}
}

// IsBusy reports whether err is a rejected concurrent start.
func IsBusy(err error) bool {
	return errors.Is(err, ErrSessionBusy)
}
