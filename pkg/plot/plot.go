// Package plot renders the pipeline's curves to PNG files: measured-vs-fitted
// overlays for both stages and the decomposition of the leakage correction.
package plot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/Chih-Hsein/Leakage-correction/pkg/timeseries"
)

// Curve is one named line in a rendered chart.
type Curve struct {
	// Name labels the curve in the legend.
	Name string

	// Times holds the x coordinates in seconds.
	Times []float64

	// Values holds the y coordinates.
	Values []float64
}

// palette assigns stroke colors to curves by position, cycling when a chart
// carries more curves than colors.
var palette = []drawing.Color{
	chart.ColorBlue,
	chart.ColorRed,
	chart.ColorGreen,
	{R: 255, G: 165, B: 0, A: 255}, // orange
}

// Save renders the curves into a single PNG chart at path, creating parent
// directories as needed. Every curve must satisfy the usual shape rules;
// curves of different lengths may share one chart as long as each is
// internally consistent.
func Save(path, title, yLabel string, curves ...Curve) error {
	if len(curves) == 0 {
		return fmt.Errorf("%w: no curves to plot", timeseries.ErrEmpty)
	}

	series := make([]chart.Series, 0, len(curves))
	for i, c := range curves {
		if err := timeseries.Validate(c.Times, c.Values); err != nil {
			return fmt.Errorf("curve %q: %w", c.Name, err)
		}
		series = append(series, chart.ContinuousSeries{
			Name:    c.Name,
			XValues: c.Times,
			YValues: c.Values,
			Style: chart.Style{
				StrokeColor: palette[i%len(palette)],
				StrokeWidth: 2.0,
			},
		})
	}

	graph := chart.Chart{
		Title:  title,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name:  "Time (s)",
			Style: chart.Style{FontSize: 10.0},
		},
		YAxis: chart.YAxis{
			Name:  yLabel,
			Style: chart.Style{FontSize: 10.0},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create plot directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create plot file: %w", err)
	}
	defer f.Close()

	if err := graph.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("failed to render %s: %w", filepath.Base(path), err)
	}
	return nil
}
