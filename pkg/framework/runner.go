package framework

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Wait when a second stop signal arrives
// before all Runnables returned.
var ErrForcedExit = errors.New("forced exit")

// Runner runs Runnables concurrently and collects their errors.
// The first Runnable failing with anything but cancellation stops the others.
type Runner struct {
	Context context.Context

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lock    sync.Mutex
	errs    AggregatedError
	started int
	forceCh chan struct{}
}

// NewRunner creates a runner with a background context.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner derived from ctx.
func NewRunnerWith(ctx context.Context) *Runner {
	r := &Runner{forceCh: make(chan struct{})}
	r.Context, r.cancel = context.WithCancel(ctx)
	return r
}

// HandleSignals stops the runner on SIGINT or SIGTERM.
// A second signal makes Wait return without waiting.
func (r *Runner) HandleSignals() *Runner {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		glog.Infof("%v received, stopping", sig)
		r.cancel()
		<-sigCh
		glog.Error("stop requested again, not waiting")
		close(r.forceCh)
	}()
	return r
}

// Go starts Runnables with the runner context.
func (r *Runner) Go(runnables ...Runnable) *Runner {
	for _, runnable := range runnables {
		name := strconv.Itoa(r.started)
		if named, ok := runnable.(Named); ok {
			name = named.Name()
		}
		r.started++
		r.wg.Add(1)
		go r.run(runnable, name)
	}
	return r
}

func (r *Runner) run(runnable Runnable, name string) {
	defer r.wg.Done()
	glog.V(4).Infof("Runner[%s] started", name)
	err := runnable.Run(r.Context)
	glog.V(4).Infof("Runner[%s] stopped", name)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	glog.Errorf("Runner[%s] failed: %v", name, err)
	r.lock.Lock()
	r.errs.Add(err)
	r.lock.Unlock()
	r.cancel()
}

// Wait waits for all Runnables and returns their aggregated failures.
func (r *Runner) Wait() error {
	doneCh := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(doneCh)
	}()
	select {
	case <-doneCh:
	case <-r.forceCh:
		return ErrForcedExit
	}
	r.cancel()
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.errs.Aggregate()
}

// RunWithContextCloser runs fn which blocks on a resource owned by closer,
// e.g. a serial port read. closer is closed when fn returns or ctx is done,
// whichever comes first; in the latter case the result is context.Canceled.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case err := <-errCh:
		closer.Close()
		return err
	case <-ctx.Done():
		closer.Close()
		<-errCh
		return context.Canceled
	}
}
