package session

import "log/slog"

// Observer receives session events. Progress runs on the audio callback and
// must return quickly without blocking. LifecycleEnd is delivered exactly once
// per session after Completed or Failed.
type Observer interface {
	Progress(level int)
	Completed(text string)
	Failed(err error)
	LifecycleEnd()
}

// ObserverFuncs adapts optional callbacks to Observer.
type ObserverFuncs struct {
	OnProgress     func(level int)
	OnCompleted    func(text string)
	OnFailed       func(err error)
	OnLifecycleEnd func()
}

func (o ObserverFuncs) Progress(level int) {
	if o.OnProgress != nil {
		o.OnProgress(level)
	}
}

func (o ObserverFuncs) Completed(text string) {
	if o.OnCompleted != nil {
		o.OnCompleted(text)
	}
}

func (o ObserverFuncs) Failed(err error) {
	if o.OnFailed != nil {
		o.OnFailed(err)
	}
}

func (o ObserverFuncs) LifecycleEnd() {
	if o.OnLifecycleEnd != nil {
		o.OnLifecycleEnd()
	}
}

// noopObserver preserves session flow when no observer is wired.
type noopObserver struct{}

func (noopObserver) Progress(int)     {}
func (noopObserver) Completed(string) {}
func (noopObserver) Failed(error)     {}
func (noopObserver) LifecycleEnd()    {}

type multiObserver []Observer

// Observers fans events out to every non-nil observer in order.
func Observers(observers ...Observer) Observer {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return noopObserver{}
	}
	return out
}

func (m multiObserver) Progress(level int) {
	for _, o := range m {
		o.Progress(level)
	}
}

func (m multiObserver) Completed(text string) {
	for _, o := range m {
		o.Completed(text)
	}
}

func (m multiObserver) Failed(err error) {
	for _, o := range m {
		o.Failed(err)
	}
}

func (m multiObserver) LifecycleEnd() {
	for _, o := range m {
		o.LifecycleEnd()
	}
}

// notify runs one observer call and contains panics so terminal events still fire.
func notify(logger *slog.Logger, event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("observer panic", "event", event, "panic", r)
		}
	}()
	fn()
}
