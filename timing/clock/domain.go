// Package clock provides the single clock domain that every harness task
// runs in.
//
// A Domain is an akita ticking component that ticks on both halves of the
// system clock. On each rising edge it evaluates the device under test with
// the current inputs; after every edge it resumes the tasks whose wait is
// satisfied. Tasks are goroutines, but exactly one of them runs at a time and
// only between edges, so they interleave cooperatively at their wait calls.
package clock

import (
	"errors"
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/qvcheck/dut"
)

// ErrCycleLimit is returned when a run exceeds its cycle budget.
var ErrCycleLimit = errors.New("cycle limit reached")

// HookPosEdge marks a clock edge. The hook item is an EdgeEvent.
var HookPosEdge = &sim.HookPos{Name: "Clock Edge"}

// Edge tells the two halves of the system clock apart.
type Edge uint8

// Clock edges.
const (
	Rising Edge = iota
	Falling
)

func (e Edge) String() string {
	if e == Rising {
		return "rising"
	}
	return "falling"
}

// EdgeEvent is passed to hooks after every edge.
type EdgeEvent struct {
	Cycle   uint64
	Edge    Edge
	TimeNs  float64
	Inputs  dut.Inputs
	Outputs dut.Outputs
}

// Domain owns the device, its pins and the cooperative task scheduler.
type Domain struct {
	*sim.TickingComponent

	engine    sim.Engine
	device    dut.Device
	periodNs  float64
	maxCycles uint64

	halfTicks uint64
	in        dut.Inputs
	out       dut.Outputs

	tasks []*Task
	main  *Task
	err   error
}

// PeriodNs returns the system clock period.
func (d *Domain) PeriodNs() float64 {
	return d.periodNs
}

// Cycle returns the number of rising edges seen so far.
func (d *Domain) Cycle() uint64 {
	return (d.halfTicks + 1) / 2
}

// NowNs returns the simulated time of the latest edge.
func (d *Domain) NowNs() float64 {
	if d.halfTicks == 0 {
		return 0
	}
	return float64(d.halfTicks-1) * d.periodNs / 2
}

// Tick advances the clock by half a period.
func (d *Domain) Tick() bool {
	if d.finished() {
		return false
	}

	d.halfTicks++

	edge := Falling
	if d.halfTicks%2 == 1 {
		edge = Rising
		d.out = d.device.Clock(d.in)
	}

	d.InvokeHook(sim.HookCtx{
		Domain: d,
		Pos:    HookPosEdge,
		Item: EdgeEvent{
			Cycle:   d.Cycle(),
			Edge:    edge,
			TimeNs:  d.NowNs(),
			Inputs:  d.in,
			Outputs: d.out,
		},
	})

	d.wake(edge)
	d.schedule()

	if !d.finished() && d.maxCycles > 0 && d.Cycle() >= d.maxCycles {
		d.fail(fmt.Errorf("%w: %d cycles", ErrCycleLimit, d.maxCycles))
	}

	return !d.finished()
}

// Run starts fn as the main task and runs the clock until it returns, fails,
// or any other task fails. Tasks still alive at that point are stopped.
func (d *Domain) Run(name string, fn TaskFunc) error {
	if d.main != nil {
		return errors.New("clock domain already ran")
	}

	d.main = d.newTask(name, fn)
	d.schedule()

	if !d.finished() {
		d.TickNow()
		if err := d.engine.Run(); err != nil {
			d.fail(err)
		}
	}

	d.shutdown()

	if d.err != nil {
		return d.err
	}

	return d.main.err
}

func (d *Domain) finished() bool {
	return d.err != nil || d.main == nil || d.main.done
}

func (d *Domain) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Domain) wake(edge Edge) {
	for _, t := range d.tasks {
		switch t.wait {
		case waitRising:
			if edge == Rising {
				t.remaining--
			}
		case waitFalling:
			if edge == Falling {
				t.remaining--
			}
		}
	}
}

// schedule resumes ready tasks, in creation order, until none is ready.
func (d *Domain) schedule() {
	for !d.finished() {
		progressed := false

		for i := 0; i < len(d.tasks); i++ {
			t := d.tasks[i]
			if t.done || !t.ready() {
				continue
			}

			t.run()
			progressed = true

			if t.err != nil {
				d.fail(fmt.Errorf("task %s: %w", t.name, t.err))
			}

			if d.finished() {
				break
			}
		}

		d.reap()

		if !progressed {
			return
		}
	}
}

func (d *Domain) reap() {
	live := d.tasks[:0]
	for _, t := range d.tasks {
		if !t.done {
			live = append(live, t)
		}
	}
	d.tasks = live
}

// shutdown stops every task that is still waiting.
func (d *Domain) shutdown() {
	for _, t := range d.tasks {
		if !t.done {
			t.kill()
		}
	}
	d.tasks = nil
}
