// Package scripting exposes the auto-walk controls to JavaScript macros.
package scripting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"

	"tilewalker/internal/autowalk"
	"tilewalker/internal/logging"
	"tilewalker/internal/world"
)

const (
	defaultDistance = 1
	defaultTimeout  = 10 * time.Second
)

// GroundSource resolves the land elevation of a column. *world.MemoryMap
// satisfies it.
type GroundSource interface {
	LandZ(x, y int) (int8, bool)
}

// Host runs macros against a driven walker. Every binding reaches the walker
// through the driver's loop. A Host runs one script at a time.
type Host struct {
	vm     *goja.Runtime
	driver *autowalk.Driver
	ground GroundSource
	log    logrus.FieldLogger
	ctx    context.Context
}

func NewHost(driver *autowalk.Driver, ground GroundSource, log logrus.FieldLogger) *Host {
	h := &Host{
		vm:     goja.New(),
		driver: driver,
		ground: ground,
		log:    logging.Component(log, "scripting"),
		ctx:    context.Background(),
	}
	h.vm.Set("pathfind", h.pathfind)
	h.vm.Set("getPath", h.getPath)
	h.vm.Set("pathfinding", h.pathfinding)
	h.vm.Set("cancelPathfinding", h.cancelPathfinding)
	h.vm.Set("walk", func(call goja.FunctionCall) goja.Value { return h.step(call, false) })
	h.vm.Set("run", func(call goja.FunctionCall) goja.Value { return h.step(call, true) })
	h.vm.Set("log", h.print)
	return h
}

// Run evaluates src. Cancelling ctx interrupts the script and any wait it is
// blocked in.
func (h *Host) Run(ctx context.Context, name, src string) (goja.Value, error) {
	h.ctx = ctx
	stop := context.AfterFunc(ctx, func() { h.vm.Interrupt(ctx.Err()) })
	defer func() {
		stop()
		h.vm.ClearInterrupt()
		h.ctx = context.Background()
	}()

	h.log.WithField("script", name).Debug("running script")
	value, err := h.vm.RunScript(name, src)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	return value, nil
}

// target reads (x, y, z?, distance?) starting at argument 0.
func (h *Host) target(call goja.FunctionCall) autowalk.Target {
	if len(call.Arguments) < 2 {
		panic(h.vm.NewTypeError("expected at least x and y"))
	}
	t := autowalk.Target{
		X:        int(call.Argument(0).ToInteger()),
		Y:        int(call.Argument(1).ToInteger()),
		Distance: defaultDistance,
	}
	if z := call.Argument(2); present(z) {
		t.Z = int(z.ToInteger())
	} else {
		t.Z = h.groundZ(t.X, t.Y)
	}
	if d := call.Argument(3); present(d) {
		t.Distance = int(d.ToInteger())
	}
	return t
}

// groundZ falls back to the agent's own elevation when the column is unknown.
func (h *Host) groundZ(x, y int) int {
	if h.ground != nil {
		if z, ok := h.ground.LandZ(x, y); ok {
			return int(z)
		}
	}
	var z int8
	h.do(func(w *autowalk.Walker) { z = w.AgentState().Location.Z })
	return int(z)
}

// pathfind(x, y, z?, distance = 1, wait = false, timeout = 10)
func (h *Host) pathfind(call goja.FunctionCall) goja.Value {
	t := h.target(call)
	var started bool
	h.do(func(w *autowalk.Walker) { started = w.RequestPath(h.ctx, t.X, t.Y, t.Z, t.Distance) })
	if !call.Argument(4).ToBoolean() {
		return h.vm.ToValue(started)
	}

	timeout := defaultTimeout
	if v := call.Argument(5); present(v) {
		timeout = time.Duration(v.ToFloat() * float64(time.Second))
	}
	if started {
		idle, err := h.driver.WaitIdle(h.ctx, timeout)
		if err != nil {
			panic(h.vm.NewGoError(err))
		}
		if !idle {
			return h.vm.ToValue(false)
		}
	}

	var arrived bool
	h.do(func(w *autowalk.Walker) {
		at := w.AgentState().Location.Point()
		arrived = world.Chebyshev(at, world.Point{X: t.X, Y: t.Y}) <= t.Distance
	})
	return h.vm.ToValue(arrived)
}

// getPath(x, y, z?, distance = 1) returns [[x, y, z], ...] or null.
func (h *Host) getPath(call goja.FunctionCall) goja.Value {
	t := h.target(call)
	var (
		path []world.Location
		err  error
	)
	h.do(func(w *autowalk.Walker) { path, err = w.GetPath(h.ctx, t) })
	if err != nil {
		h.log.WithError(err).Debug("getPath found nothing")
		return goja.Null()
	}
	items := make([]interface{}, len(path))
	for i, loc := range path {
		items[i] = h.vm.NewArray(loc.X, loc.Y, int(loc.Z))
	}
	return h.vm.NewArray(items...)
}

func (h *Host) pathfinding(goja.FunctionCall) goja.Value {
	var walking bool
	h.do(func(w *autowalk.Walker) { walking = w.IsWalking() })
	return h.vm.ToValue(walking)
}

func (h *Host) cancelPathfinding(goja.FunctionCall) goja.Value {
	h.do(func(w *autowalk.Walker) { w.Cancel() })
	return goja.Undefined()
}

func (h *Host) step(call goja.FunctionCall, run bool) goja.Value {
	dir, err := world.ParseDirection(call.Argument(0).String())
	if err != nil {
		panic(h.vm.NewTypeError(err.Error()))
	}
	var ok bool
	h.do(func(w *autowalk.Walker) { ok = w.Step(dir, run) })
	return h.vm.ToValue(ok)
}

func (h *Host) print(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, arg := range call.Arguments {
		parts[i] = arg.String()
	}
	h.log.Info(strings.Join(parts, " "))
	return goja.Undefined()
}

// do runs fn on the driver loop and turns a stopped driver into a script error.
func (h *Host) do(fn func(w *autowalk.Walker)) {
	if err := h.driver.Do(h.ctx, fn); err != nil {
		panic(h.vm.NewGoError(err))
	}
}

func present(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}
