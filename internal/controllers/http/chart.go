package httpctrl

import (
	"bytes"
	"fmt"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/kelvinlab/vaporcurve/internal/vapor"
)

const (
	chartWidth  = 900
	chartHeight = 480
)

// renderCurvePNG draws the sampled boiling-point curve as a PNG line chart.
func renderCurvePNG(compound string, curve vapor.Curve) ([]byte, error) {
	ch := chart.Chart{
		Title:  fmt.Sprintf("%s pressure-temperature curve", compound),
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 16, Left: 16, Right: 16, Bottom: 24},
		},
		XAxis: chart.XAxis{Name: "Pressure (torr)"},
		YAxis: chart.YAxis{Name: "Temperature (°C)"},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    compound,
				XValues: curve.Pressures(),
				YValues: curve.Temperatures(),
				Style:   chart.Style{StrokeWidth: 2},
			},
		},
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("rendering %s curve: %w", compound, err)
	}
	return buf.Bytes(), nil
}
