package weather

import (
	"bytes"
	"errors"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"gatebot/internal/state"
)

// renderTempChart draws the last 24 hours of temperature samples with the
// configured range boundaries as dashed lines.
func renderTempChart(samples []state.WeatherSample, now time.Time, minC, maxC float64, loc *time.Location, city string) ([]byte, error) {
	cutoff := now.Add(-24 * time.Hour)
	var xs []time.Time
	var ys []float64
	for _, sm := range samples {
		if sm.At.IsZero() || sm.At.Before(cutoff) {
			continue
		}
		xs = append(xs, sm.At.In(loc))
		ys = append(ys, sm.TempC)
	}
	if len(xs) == 0 {
		return nil, errors.New("no samples in the last 24h")
	}
	if len(xs) == 1 {
		// A one-point series has a degenerate x range; pad it.
		xs = append(xs, xs[0].Add(time.Minute))
		ys = append(ys, ys[0])
	}

	span := []float64{chart.TimeToFloat64(xs[0]), chart.TimeToFloat64(xs[len(xs)-1])}
	bound := chart.Style{StrokeColor: chart.ColorAlternateGray, StrokeDashArray: []float64{5, 5}}

	graph := chart.Chart{
		Title:  "Temperature over 24h - " + city,
		Width:  800,
		Height: 300,
		XAxis:  chart.XAxis{ValueFormatter: chart.TimeHourValueFormatter},
		Series: []chart.Series{
			chart.TimeSeries{Name: "temp", XValues: xs, YValues: ys},
			chart.ContinuousSeries{XValues: span, YValues: []float64{minC, minC}, Style: bound},
			chart.ContinuousSeries{XValues: span, YValues: []float64{maxC, maxC}, Style: bound},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
