package ports

import "github.com/kelvinlab/vaporcurve/internal/vapor"

// CurveService is the query port used by controllers (HTTP/MQTT/etc).
type CurveService interface {
	Names() []string
	Lookup(name string) (vapor.Compound, error)
	Curve(name string, minPressure, maxPressure float64, samples int) (vapor.Curve, error)
	BoilingPointAt(name string, pressure float64) (float64, error)
}
