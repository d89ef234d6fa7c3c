package autowalk

import (
	"context"
	"errors"
	"sync"
	"time"

	"tilewalker/internal/config"
)

// ErrDriverStopped is returned by Do once the driver loop has exited.
var ErrDriverStopped = errors.New("driver stopped")

type tickerFactory func(time.Duration) (<-chan time.Time, func())

type timeSource func() time.Time

// Driver owns a Walker and runs it on a single goroutine: ticks come from a
// ticker, and every other access is queued through Do.
type Driver struct {
	walker    *Walker
	tick      time.Duration
	waitCap   time.Duration
	calls     chan func(*Walker)
	stopped   chan struct{}
	onTick    []func(time.Time)
	wg        sync.WaitGroup
	start     sync.Once
	newTicker tickerFactory
	now       timeSource
}

func defaultTickerFactory() tickerFactory {
	return func(d time.Duration) (<-chan time.Time, func()) {
		ticker := time.NewTicker(d)
		return ticker.C, ticker.Stop
	}
}

func NewDriver(walker *Walker, cfg config.WalkerConfig) *Driver {
	tick := cfg.TickRate.Duration()
	if tick <= 0 {
		tick = config.Default().Walker.TickRate.Duration()
	}
	return &Driver{
		walker:    walker,
		tick:      tick,
		waitCap:   cfg.WaitTimeoutCap.Duration(),
		calls:     make(chan func(*Walker)),
		stopped:   make(chan struct{}),
		newTicker: defaultTickerFactory(),
		now:       time.Now,
	}
}

// OnTick registers fn to run on the loop goroutine before the walker ticks.
// It must be called before Start.
func (d *Driver) OnTick(fn func(now time.Time)) {
	d.onTick = append(d.onTick, fn)
}

func (d *Driver) Start(ctx context.Context) {
	if d == nil || d.walker == nil {
		return
	}
	d.start.Do(func() {
		d.wg.Add(1)
		go d.run(ctx)
	})
}

func (d *Driver) run(ctx context.Context) {
	defer d.wg.Done()
	defer close(d.stopped)
	if d.newTicker == nil {
		d.newTicker = defaultTickerFactory()
	}
	if d.now == nil {
		d.now = time.Now
	}
	d.walker.now = d.now

	tickerC, stop := d.newTicker(d.tick)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			d.walker.Cancel()
			return
		case call := <-d.calls:
			call(d.walker)
		case now := <-tickerC:
			for _, fn := range d.onTick {
				fn(now)
			}
			d.walker.Tick(now)
		}
	}
}

// Do runs fn on the loop goroutine and waits for it to return.
func (d *Driver) Do(ctx context.Context, fn func(w *Walker)) error {
	done := make(chan struct{})
	call := func(w *Walker) {
		defer close(done)
		fn(w)
	}
	select {
	case d.calls <- call:
	case <-d.stopped:
		return ErrDriverStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

// WaitIdle blocks until the current walk ends, the timeout elapses or ctx is
// done. The timeout is capped by the configured limit; a walk still running
// when it elapses is cancelled. It reports whether the walker went idle.
func (d *Driver) WaitIdle(ctx context.Context, timeout time.Duration) (bool, error) {
	if d.waitCap > 0 && (timeout <= 0 || timeout > d.waitCap) {
		timeout = d.waitCap
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(d.tick)
	defer poll.Stop()

	for {
		var walking bool
		if err := d.Do(ctx, func(w *Walker) { walking = w.IsWalking() }); err != nil {
			return false, err
		}
		if !walking {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			if err := d.Do(ctx, func(w *Walker) { w.Cancel() }); err != nil {
				return false, err
			}
			return false, nil
		case <-poll.C:
		}
	}
}

func (d *Driver) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
