package vapor

import (
	"fmt"
	"math"
)

const (
	// GasConstant is the ideal gas constant in kJ/(mol·K), matching the
	// kJ/mol unit of vapor enthalpies.
	GasConstant = 8.314e-3

	// KelvinOffset converts between °C and K.
	KelvinOffset = 273.15

	// MinPressure is the floor, in torr, applied to queried pressures so the
	// logarithm term never evaluates at or below zero. Queries at or below
	// zero pressure degrade to the floor's prediction instead of failing.
	MinPressure = 1e-9
)

// PredictBoilingPoint maps a pressure to the boiling temperature predicted by
// the integrated Clausius–Clapeyron relation, anchored on one known reference
// state:
//
//	1/T1 = 1/T2 − (R/Hvap)·ln(P1/P2)
//
// pressure and refPressure are in torr, refBoilingPoint in °C, vaporEnthalpy
// in kJ/mol. The enthalpy is treated as constant over the range, so accuracy
// degrades far from the reference pressure.
//
// refPressure and vaporEnthalpy must be positive (records from a loaded
// catalog always are). pressure may be any real value; anything below
// MinPressure is clamped up to it. ErrNoPhysicalSolution is returned when the
// relation has no finite solution above absolute zero at the requested
// pressure, which happens only far above the reference pressure where the
// bracketed term crosses zero.
func PredictBoilingPoint(pressure, refPressure, refBoilingPoint, vaporEnthalpy float64) (float64, error) {
	refKelvin := refBoilingPoint + KelvinOffset
	p := math.Max(pressure, MinPressure)

	inv := 1/refKelvin - GasConstant/vaporEnthalpy*math.Log(p/refPressure)
	if math.IsNaN(inv) || inv <= 0 {
		return 0, fmt.Errorf("%w: %g torr", ErrNoPhysicalSolution, pressure)
	}
	return 1/inv - KelvinOffset, nil
}

// BoilingPointAt predicts the compound's boiling point in °C at the given
// pressure in torr.
func (c Compound) BoilingPointAt(pressure float64) (float64, error) {
	return PredictBoilingPoint(pressure, c.RefPressure, c.RefBoilingPoint, c.VaporEnthalpy)
}
