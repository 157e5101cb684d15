package vapor

import (
	"fmt"
	"math"
)

// Compound is one reference record: the empirically known boiling point of a
// substance at a reference pressure, plus its enthalpy of vaporization. The
// (RefPressure, RefBoilingPoint) pair anchors every prediction for the
// compound.
type Compound struct {
	Name            string
	VaporEnthalpy   float64 // kJ/mol
	RefBoilingPoint float64 // °C, measured at RefPressure
	RefPressure     float64 // torr
}

func (c Compound) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: empty compound name", ErrInvalidRecord)
	}
	for _, f := range []struct {
		column string
		value  float64
	}{
		{ColumnVaporEnthalpy, c.VaporEnthalpy},
		{ColumnBoilingPoint, c.RefBoilingPoint},
		{ColumnPressure, c.RefPressure},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %q: column %q is not finite", ErrInvalidRecord, c.Name, f.column)
		}
	}
	if c.VaporEnthalpy <= 0 {
		return fmt.Errorf("%w: %q: vapor enthalpy must be positive, got %g kJ/mol", ErrInvalidRecord, c.Name, c.VaporEnthalpy)
	}
	if c.RefPressure <= 0 {
		return fmt.Errorf("%w: %q: reference pressure must be positive, got %g torr", ErrInvalidRecord, c.Name, c.RefPressure)
	}
	// The equation anchors on 1/T2 in kelvin; a reference state at or below
	// absolute zero cannot anchor anything.
	if c.RefBoilingPoint <= -KelvinOffset {
		return fmt.Errorf("%w: %q: reference boiling point %g °C is at or below absolute zero", ErrInvalidRecord, c.Name, c.RefBoilingPoint)
	}
	return nil
}
