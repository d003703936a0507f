package scenario

import (
	"errors"

	"github.com/sarchlab/qvcheck/insts"
	"github.com/sarchlab/qvcheck/timing/clock"
)

// Filler keeps the device fetching no-ops while the main sequence waits,
// for example on a slow peripheral. It runs as its own task and owns the
// bus until stopped.
type Filler struct {
	driver *Driver
	task   *clock.Task

	stop    chan struct{}
	ack     chan int
	stopped bool
}

// StartFiller spawns the filler task. The main sequence must not issue
// instructions until the filler is stopped.
func (d *Driver) StartFiller(t *clock.Task) (*Filler, error) {
	if d.filler != nil {
		return nil, ErrFillerRunning
	}

	f := &Filler{
		driver: d,
		stop:   make(chan struct{}, 1),
		ack:    make(chan int, 1),
	}

	f.task = t.Spawn("filler", f.loop)
	d.filler = f

	return f, nil
}

// loop issues one no-op per iteration. A stop request is only seen at the
// top of the loop, so the instruction in flight always completes.
func (f *Filler) loop(t *clock.Task) error {
	nop := insts.NOP()
	issued := 0

	for {
		select {
		case <-f.stop:
			f.ack <- issued
			return nil
		default:
		}

		if err := f.driver.Issue(t, nop); err != nil {
			return err
		}

		issued++
		f.driver.stats.FillerNOPs++
	}
}

// Stop asks the filler to finish, waits for its current instruction and
// returns the bus to the main sequence. It returns the number of no-ops the
// filler issued.
func (f *Filler) Stop(t *clock.Task) (int, error) {
	if f.stopped {
		return 0, errors.New("filler already stopped")
	}
	f.stopped = true

	f.stop <- struct{}{}

	err := t.Join(f.task)
	f.driver.filler = nil

	if err != nil {
		return 0, err
	}

	return <-f.ack, nil
}
