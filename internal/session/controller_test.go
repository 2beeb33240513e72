package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/dictate/internal/audio"
	"github.com/rbright/dictate/internal/fsm"
	"github.com/rbright/dictate/internal/ipc"
)

func newTestController(backend *fakeBackend, handoff *fakeHandoff, observer Observer) *Controller {
	return NewController(ControllerConfig{
		Backend:  backend,
		Handoff:  handoff,
		Observer: observer,
		Defaults: testOptions(),
	})
}

func TestControllerStartWhileActiveIsBusy(t *testing.T) {
	backend := &fakeBackend{}
	handoff := &fakeHandoff{text: "primera"}
	observer := &fakeObserver{}
	ctrl := newTestController(backend, handoff, observer)

	first, err := ctrl.Start(context.Background(), testOptions())
	require.NoError(t, err)
	backend.lastStream(t).emit(constant(0.1, 100))

	second, err := ctrl.Start(context.Background(), testOptions())
	require.ErrorIs(t, err, ErrSessionBusy)
	require.True(t, IsBusy(err))
	require.Nil(t, second)
	require.Len(t, backend.streams, 1, "busy start must not open the device")

	require.Equal(t, fsm.StateRecording, first.State())
	require.Zero(t, observer.failed.Load())

	require.NoError(t, ctrl.Stop())
	res, err := waitResult(t, first)
	require.NoError(t, err)
	require.Equal(t, "primera", res.Transcript)
	require.Equal(t, 100, res.Samples)
}

func TestControllerReleasesSlotBeforeLifecycleEnd(t *testing.T) {
	backend := &fakeBackend{}
	observer := &fakeObserver{}
	ctrl := newTestController(backend, &fakeHandoff{text: "ok"}, observer)

	stateAtEnd := make(chan fsm.State, 1)
	observer.onEnd = func() { stateAtEnd <- ctrl.State() }

	sess, err := ctrl.Start(context.Background(), testOptions())
	require.NoError(t, err)
	backend.lastStream(t).emit(constant(0.1, 10))
	require.NoError(t, ctrl.Stop())

	_, err = waitResult(t, sess)
	require.NoError(t, err)
	require.Equal(t, fsm.StateIdle, <-stateAtEnd)
	require.Nil(t, ctrl.Active())

	next, err := ctrl.Start(context.Background(), testOptions())
	require.NoError(t, err)
	require.NoError(t, ctrl.Cancel())
	_, _ = waitResult(t, next)
}

func TestControllerDeviceErrorNotifiesObserver(t *testing.T) {
	backend := &fakeBackend{openErr: errors.New("invalid device index")}
	observer := &fakeObserver{}
	ctrl := newTestController(backend, &fakeHandoff{}, observer)

	_, err := ctrl.Start(context.Background(), Options{Device: 99})
	require.ErrorIs(t, err, audio.ErrDevice)
	require.Equal(t, fsm.StateIdle, ctrl.State())
	require.Nil(t, ctrl.Active())
	require.Equal(t, []string{"failed", "lifecycle_end"}, observer.eventLog())
	require.ErrorIs(t, observer.lastErr(), audio.ErrDevice)
}

func TestControllerStopAndCancelWithoutSession(t *testing.T) {
	ctrl := newTestController(&fakeBackend{}, &fakeHandoff{}, nil)
	require.ErrorIs(t, ctrl.Stop(), ErrNoActiveSession)
	require.ErrorIs(t, ctrl.Cancel(), ErrNoActiveSession)
	require.Equal(t, fsm.StateIdle, ctrl.State())
}

func TestHandleStatusAndUnknownCommand(t *testing.T) {
	ctrl := newTestController(&fakeBackend{}, &fakeHandoff{}, nil)

	status := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.True(t, status.OK)
	require.Equal(t, string(fsm.StateIdle), status.State)

	unknown := ctrl.Handle(context.Background(), ipc.Request{Command: "definitely-unknown"})
	require.False(t, unknown.OK)
	require.Contains(t, unknown.Error, "unknown command")
}

func TestHandleStopAndCancelFromIdle(t *testing.T) {
	ctrl := newTestController(&fakeBackend{}, &fakeHandoff{}, nil)

	stop := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.False(t, stop.OK)
	require.Contains(t, stop.Error, "cannot stop from state idle")

	cancel := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandCancel})
	require.False(t, cancel.OK)
	require.Contains(t, cancel.Error, "cannot cancel from state idle")
}

func TestHandleStartBusyAndToggleStops(t *testing.T) {
	backend := &fakeBackend{}
	handoff := &fakeHandoff{text: "listo"}
	ctrl := newTestController(backend, handoff, nil)

	device := 0
	started := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStart, Device: &device, SampleRate: 8000})
	require.True(t, started.OK, started.Error)
	require.Equal(t, string(fsm.StateRecording), started.State)
	require.NotEmpty(t, started.Session)
	require.Equal(t, 8000, backend.configs[0].SampleRate)

	busy := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStart})
	require.False(t, busy.OK)
	require.Contains(t, busy.Error, ErrSessionBusy.Error())

	sess := ctrl.Active()
	require.NotNil(t, sess)
	backend.lastStream(t).emit(constant(0.1, 10))

	toggled := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandToggle})
	require.True(t, toggled.OK)
	require.Equal(t, "stop requested", toggled.Message)

	res, err := waitResult(t, sess)
	require.NoError(t, err)
	require.Equal(t, "listo", res.Transcript)
	require.Equal(t, []int{8000}, handoff.rates)
}

func TestHandleToggleStartsWhenIdle(t *testing.T) {
	ctrl := newTestController(&fakeBackend{}, &fakeHandoff{}, nil)

	resp := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandToggle})
	require.True(t, resp.OK)
	require.Equal(t, "recording started", resp.Message)

	sess := ctrl.Active()
	require.NotNil(t, sess)
	cancel := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandCancel})
	require.True(t, cancel.OK)
	_, err := waitResult(t, sess)
	require.ErrorIs(t, err, ErrEmptyRecording)
}

func TestHandleGuardsWhileTranscribing(t *testing.T) {
	backend := &fakeBackend{}
	handoff := &fakeHandoff{text: "ok", block: make(chan struct{})}
	ctrl := newTestController(backend, handoff, nil)

	sess, err := ctrl.Start(context.Background(), testOptions())
	require.NoError(t, err)
	backend.lastStream(t).emit(constant(0.1, 10))
	require.NoError(t, ctrl.Stop())
	waitForState(t, sess, fsm.StateTranscribing)

	stop := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandStop})
	require.False(t, stop.OK)
	require.Contains(t, stop.Error, "already transcribing")

	cancel := ctrl.Handle(context.Background(), ipc.Request{Command: ipc.CommandCancel})
	require.False(t, cancel.OK)
	require.Contains(t, cancel.Error, "cannot cancel while transcribing")

	close(handoff.block)
	_, err = waitResult(t, sess)
	require.NoError(t, err)
}

func TestObserversFanOutSkipsNil(t *testing.T) {
	first := &fakeObserver{}
	second := &fakeObserver{}
	o := Observers(first, nil, second)

	o.Progress(10)
	o.Completed("x")
	o.Failed(errors.New("y"))
	o.LifecycleEnd()

	for _, obs := range []*fakeObserver{first, second} {
		require.Equal(t, int32(1), obs.progress.Load())
		require.Equal(t, int32(1), obs.completed.Load())
		require.Equal(t, int32(1), obs.failed.Load())
		require.Equal(t, int32(1), obs.lifecycleEnds.Load())
	}

	require.Equal(t, noopObserver{}, Observers(nil))
}
