package testutil

import (
	"fmt"

	"github.com/kelvinlab/vaporcurve/internal/vapor"
)

// FakeCurveService is a reusable fake implementing ports.CurveService.
// Put ONLY what multiple test packages need here.
type FakeCurveService struct {
	Compounds []vapor.Compound

	LookupCalled bool
	LookupArg    string

	CurveCalled  bool
	CurveName    string
	CurveMin     float64
	CurveMax     float64
	CurveSamples int
	CurveErr     error

	BoilingPointCalled   bool
	BoilingPointName     string
	BoilingPointPressure float64
	BoilingPointErr      error
}

func NewFakeCurveService() *FakeCurveService {
	return &FakeCurveService{
		Compounds: []vapor.Compound{
			{Name: "Water", VaporEnthalpy: 40.65, RefBoilingPoint: 100.0, RefPressure: 760.0},
			{Name: "Ethanol", VaporEnthalpy: 38.56, RefBoilingPoint: 78.37, RefPressure: 760.0},
		},
	}
}

func (f *FakeCurveService) Names() []string {
	names := make([]string, len(f.Compounds))
	for i, c := range f.Compounds {
		names[i] = c.Name
	}
	return names
}

func (f *FakeCurveService) Lookup(name string) (vapor.Compound, error) {
	f.LookupCalled = true
	f.LookupArg = name
	return f.find(name)
}

func (f *FakeCurveService) Curve(name string, minPressure, maxPressure float64, samples int) (vapor.Curve, error) {
	f.CurveCalled = true
	f.CurveName, f.CurveMin, f.CurveMax, f.CurveSamples = name, minPressure, maxPressure, samples
	if f.CurveErr != nil {
		return nil, f.CurveErr
	}
	c, err := f.find(name)
	if err != nil {
		return nil, err
	}
	return vapor.GenerateCurve(c, minPressure, maxPressure, samples)
}

func (f *FakeCurveService) BoilingPointAt(name string, pressure float64) (float64, error) {
	f.BoilingPointCalled = true
	f.BoilingPointName, f.BoilingPointPressure = name, pressure
	if f.BoilingPointErr != nil {
		return 0, f.BoilingPointErr
	}
	c, err := f.find(name)
	if err != nil {
		return 0, err
	}
	return c.BoilingPointAt(pressure)
}

func (f *FakeCurveService) find(name string) (vapor.Compound, error) {
	for _, c := range f.Compounds {
		if c.Name == name {
			return c, nil
		}
	}
	return vapor.Compound{}, fmt.Errorf("%w: %q", vapor.ErrNotFound, name)
}
