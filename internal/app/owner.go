package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/dictate/internal/cli"
	"github.com/rbright/dictate/internal/config"
	"github.com/rbright/dictate/internal/ipc"
	"github.com/rbright/dictate/internal/session"
)

// commandCapture forwards start/toggle to a running owner, or becomes the owner.
func (r Runner) commandCapture(ctx context.Context, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	req := ipc.Request{Command: string(parsed.Command), Device: parsed.Device, SampleRate: parsed.SampleRate}
	resp, handled, err := tryForward(ctx, socketPath, req)
	if handled {
		return r.printForwarded(resp, err)
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			resp, _, forwardErr := tryForward(ctx, socketPath, req)
			return r.printForwarded(resp, forwardErr)
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	return r.runOwner(ctx, listener, parsed, cfg, logger)
}

// runOwner records one session while serving IPC and metrics, then prints the transcript.
func (r Runner) runOwner(ctx context.Context, listener net.Listener, parsed cli.Parsed, cfg config.Config, logger *slog.Logger) int {
	rt, err := r.buildRuntime(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = rt.Close() }()

	defaults, err := sessionOptions(cfg, cli.Parsed{})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	opts, err := sessionOptions(cfg, parsed)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	var metricsListener net.Listener
	if addr := strings.TrimSpace(cfg.Metrics.Listen); addr != "" {
		metricsListener, err = net.Listen("tcp", addr)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: metrics listener: %v\n", err)
			return 1
		}
		defer metricsListener.Close()
	}

	controller := session.NewController(session.ControllerConfig{
		Backend:  rt.backend,
		Handoff:  rt.handoff,
		Observer: rt.observer,
		Logger:   logger,
		Metrics:  rt.metrics,
		Defaults: defaults,
	})

	sess, err := controller.Start(ctx, opts)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if r.Stdin != nil {
		fmt.Fprintln(r.Stderr, "recording; press Enter to stop, Ctrl+C to cancel")
		go watchStdin(r.Stdin, controller, logger)
	}

	// Interrupts cancel the session, not the servers: stop/cancel/status stay
	// reachable until the session has ended.
	serveCtx, stopServing := context.WithCancel(context.WithoutCancel(ctx))
	defer stopServing()

	g, gctx := errgroup.WithContext(serveCtx)
	g.Go(func() error {
		return ipc.Serve(gctx, listener, controller)
	})
	if metricsListener != nil {
		g.Go(func() error {
			return serveMetrics(gctx, metricsListener, rt.metrics.Handler())
		})
	}
	g.Go(func() error {
		defer stopServing()
		select {
		case <-sess.Done():
		case <-gctx.Done():
			sess.Cancel()
			<-sess.Done()
		}
		return nil
	})

	groupErr := g.Wait()
	result, _ := sess.Wait(context.Background())
	code := r.printResult(result)
	if groupErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", groupErr)
		return 1
	}
	return code
}

func (r Runner) printResult(result session.Result) int {
	if result.Cancelled {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	if text := strings.TrimSpace(result.Transcript); text != "" {
		fmt.Fprintln(r.Stdout, text)
	}
	return 0
}

// watchStdin stops the active recording when a line arrives. EOF is ignored so
// a closed stdin never ends a recording by itself.
func watchStdin(in io.Reader, controller *session.Controller, logger *slog.Logger) {
	if _, err := bufio.NewReader(in).ReadString('\n'); err != nil {
		return
	}
	if err := controller.Stop(); err != nil && !errors.Is(err, session.ErrNoActiveSession) {
		logger.Debug("stdin stop ignored", "error", err.Error())
	}
}

func serveMetrics(ctx context.Context, listener net.Listener, handler http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
