package clock

import (
	"fmt"
	"math"
	"runtime"

	"github.com/sarchlab/qvcheck/dut"
)

// TaskFunc is the body of a task.
type TaskFunc func(t *Task) error

type waitKind uint8

const (
	waitNone waitKind = iota
	waitRising
	waitFalling
	waitTimer
	waitJoin
)

// Task is a cooperative thread of control inside a Domain. All of its methods
// must be called from the task's own goroutine.
type Task struct {
	name   string
	domain *Domain

	resume chan struct{}
	yield  chan struct{}

	wait      waitKind
	remaining int
	until     uint64
	joinOn    *Task

	killed bool
	done   bool
	err    error
}

func (d *Domain) newTask(name string, fn TaskFunc) *Task {
	t := &Task{
		name:   name,
		domain: d,
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
	}

	d.tasks = append(d.tasks, t)

	go t.body(fn)

	return t
}

func (t *Task) body(fn TaskFunc) {
	<-t.resume

	defer func() {
		if r := recover(); r != nil {
			t.err = fmt.Errorf("panic: %v", r)
		}
		t.done = true
		t.wait = waitNone
		t.yield <- struct{}{}
	}()

	if t.killed {
		return
	}

	t.err = fn(t)
}

func (t *Task) ready() bool {
	switch t.wait {
	case waitNone:
		return true
	case waitRising, waitFalling:
		return t.remaining <= 0
	case waitTimer:
		return t.domain.halfTicks >= t.until
	case waitJoin:
		return t.joinOn.done
	}
	return false
}

// run hands control to the task and blocks until it waits again or ends.
func (t *Task) run() {
	t.wait = waitNone
	t.resume <- struct{}{}
	<-t.yield
}

func (t *Task) kill() {
	t.killed = true
	t.resume <- struct{}{}
	<-t.yield
}

// suspend hands control back to the scheduler.
func (t *Task) suspend() {
	t.yield <- struct{}{}
	<-t.resume

	if t.killed {
		runtime.Goexit()
	}
}

// Name returns the task name.
func (t *Task) Name() string {
	return t.name
}

// Done reports whether the task has returned.
func (t *Task) Done() bool {
	return t.done
}

// RisingEdges waits for n rising edges of the system clock.
func (t *Task) RisingEdges(n int) {
	if n <= 0 {
		return
	}
	t.wait = waitRising
	t.remaining = n
	t.suspend()
}

// FallingEdges waits for n falling edges of the system clock.
func (t *Task) FallingEdges(n int) {
	if n <= 0 {
		return
	}
	t.wait = waitFalling
	t.remaining = n
	t.suspend()
}

// Timer waits at least ns nanoseconds, resolved to the next clock edge.
func (t *Task) Timer(ns float64) {
	if ns <= 0 {
		return
	}

	half := t.domain.periodNs / 2
	target := uint64(math.Ceil((t.domain.NowNs()+ns)/half-1e-9)) + 1
	if target <= t.domain.halfTicks {
		target = t.domain.halfTicks + 1
	}

	t.wait = waitTimer
	t.until = target
	t.suspend()
}

// Spawn starts fn as a new task. It first runs once the current task waits.
func (t *Task) Spawn(name string, fn TaskFunc) *Task {
	return t.domain.newTask(name, fn)
}

// Join waits for other to return and passes on its error.
func (t *Task) Join(other *Task) error {
	if !other.done {
		t.wait = waitJoin
		t.joinOn = other
		t.suspend()
	}
	return other.err
}

// NowNs returns the simulated time in nanoseconds.
func (t *Task) NowNs() float64 {
	return t.domain.NowNs()
}

// Cycle returns the number of rising edges seen so far.
func (t *Task) Cycle() uint64 {
	return t.domain.Cycle()
}

// PeriodNs returns the system clock period.
func (t *Task) PeriodNs() float64 {
	return t.domain.periodNs
}

// Outputs returns the device outputs after the latest rising edge.
func (t *Task) Outputs() dut.Outputs {
	return t.domain.out
}

// Inputs returns the device inputs. Changes take effect on the next rising
// edge.
func (t *Task) Inputs() *dut.Inputs {
	return &t.domain.in
}
