package vapor

import "fmt"

// Point is one sampled (pressure, temperature) pair of a boiling-point curve.
type Point struct {
	Pressure    float64 // torr
	Temperature float64 // °C
}

// Curve is a boiling-point curve sampled at increasing pressures. It is never
// mutated after generation; a new pressure range yields a new Curve.
type Curve []Point

// Pressures returns the pressure column of the curve.
func (cv Curve) Pressures() []float64 {
	out := make([]float64, len(cv))
	for i, p := range cv {
		out[i] = p.Pressure
	}
	return out
}

// Temperatures returns the temperature column of the curve.
func (cv Curve) Temperatures() []float64 {
	out := make([]float64, len(cv))
	for i, p := range cv {
		out[i] = p.Temperature
	}
	return out
}

// GenerateCurve samples the compound's predicted boiling point at samples
// evenly spaced pressures from minPressure to maxPressure inclusive, both in
// torr. At least two samples are required and minPressure must not exceed
// maxPressure; zero or negative pressures are fine because the prediction
// clamps them. Pressures come out strictly increasing whenever the interval
// is non-degenerate, and identical inputs always produce an identical curve.
func GenerateCurve(c Compound, minPressure, maxPressure float64, samples int) (Curve, error) {
	if samples < 2 {
		return nil, fmt.Errorf("%w: need at least 2 samples, got %d", ErrInvalidRange, samples)
	}
	if minPressure > maxPressure {
		return nil, fmt.Errorf("%w: min pressure %g torr above max %g torr", ErrInvalidRange, minPressure, maxPressure)
	}

	step := (maxPressure - minPressure) / float64(samples-1)
	curve := make(Curve, samples)
	for i := range curve {
		p := minPressure + float64(i)*step
		// Land the final sample exactly on the requested maximum instead of
		// on the accumulated float approximation of it.
		if i == samples-1 {
			p = maxPressure
		}
		t, err := PredictBoilingPoint(p, c.RefPressure, c.RefBoilingPoint, c.VaporEnthalpy)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		curve[i] = Point{Pressure: p, Temperature: t}
	}
	return curve, nil
}
