package scenario

import (
	"errors"

	"github.com/sarchlab/qvcheck/insts"
	"github.com/sarchlab/qvcheck/timing/clock"
)

// ScratchAddress returns the RAM address register reg is stored to during
// verification.
func (d *Driver) ScratchAddress(reg uint8) uint32 {
	return uint32(d.model.Reg(insts.RegGP) + d.cfg.ScratchOffset + 4*int32(reg))
}

// Verify stores every register, x0 and the pointers included, to the
// scratch area and compares the 32 bits seen on the bus with the golden
// model. All registers are checked; the error joins every mismatch.
func (d *Driver) Verify(t *clock.Task) error {
	store := OperationDescriptor{Kind: KindStore}
	d.checks = d.checks[:0]

	var errs []error

	for r := uint8(0); r < d.model.RegFile().Count(); r++ {
		inst := insts.SW(insts.RegGP, r, d.cfg.ScratchOffset+4*int32(r))
		want := uint32(d.model.Reg(r))

		out, err := d.issue(t, store, inst)

		var mismatch *MismatchError
		switch {
		case errors.As(err, &mismatch):
			errs = append(errs, err)
		case err != nil:
			return err
		}

		d.checks = append(d.checks, RegisterCheck{Reg: r, Want: want, Got: out.Data})
	}

	return errors.Join(errs...)
}
