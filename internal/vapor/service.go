package vapor

import "fmt"

// DefaultMaxSamples bounds curve requests arriving from the serving surfaces
// when no explicit limit is configured.
const DefaultMaxSamples = 100000

// Service bundles a loaded Catalog with request limits and exposes the query
// operations the serving surfaces need.
type Service struct {
	catalog    *Catalog
	maxSamples int
}

func NewService(catalog *Catalog, maxSamples int) *Service {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Service{catalog: catalog, maxSamples: maxSamples}
}

func (s *Service) Names() []string {
	return s.catalog.Names()
}

func (s *Service) Lookup(name string) (Compound, error) {
	return s.catalog.Lookup(name)
}

// Curve resolves the compound by name and samples its boiling-point curve
// over [minPressure, maxPressure] torr.
func (s *Service) Curve(name string, minPressure, maxPressure float64, samples int) (Curve, error) {
	if samples > s.maxSamples {
		return nil, fmt.Errorf("%w: %d samples above limit %d", ErrInvalidRange, samples, s.maxSamples)
	}
	c, err := s.catalog.Lookup(name)
	if err != nil {
		return nil, err
	}
	return GenerateCurve(c, minPressure, maxPressure, samples)
}

// BoilingPointAt resolves the compound by name and predicts its boiling point
// in °C at one pressure in torr.
func (s *Service) BoilingPointAt(name string, pressure float64) (float64, error) {
	c, err := s.catalog.Lookup(name)
	if err != nil {
		return 0, err
	}
	return c.BoilingPointAt(pressure)
}
