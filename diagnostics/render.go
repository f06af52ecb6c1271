package diagnostics

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	chart "github.com/wcharczuk/go-chart"
)

// ErrNoData is returned when a plot has nothing to draw
var ErrNoData = errors.New("plot has no data")

// RenderPNG draws the plot as a PNG image. A plot made of a single bar
// series is drawn as a bar chart, anything else as lines and dots.
func RenderPNG(pd PlotData, w io.Writer) error {
	if len(pd.Series) == 1 && pd.Series[0].Type == "bar" {
		return renderBars(pd, w)
	}

	var series []chart.Series
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for i, s := range pd.Series {
		if len(s.Data) == 0 {
			continue
		}
		xs := make([]float64, len(s.Data))
		ys := make([]float64, len(s.Data))
		for j, p := range s.Data {
			xs[j], ys[j] = p.X, p.Y
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}

		style := chart.Style{
			Show:        true,
			StrokeColor: chart.GetAlternateColor(i),
		}
		if s.Type == "scatter" {
			style.StrokeWidth = chart.Disabled
			style.DotWidth = 3
			style.DotColor = chart.GetAlternateColor(i)
		}
		series = append(series, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: ys,
			Style:   style,
		})
	}
	if len(series) == 0 {
		return ErrNoData
	}

	graph := chart.Chart{
		Title:      pd.Title,
		TitleStyle: chart.StyleShow(),
		Width:      pd.Config.Width,
		Height:     pd.Config.Height,
		XAxis: chart.XAxis{
			Name:      pd.Config.XAxisLabel,
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
			Range:     paddedRange(minX, maxX),
		},
		YAxis: chart.YAxis{
			Name:      pd.Config.YAxisLabel,
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
			Range:     paddedRange(minY, maxY),
		},
		Series: series,
	}
	if pd.Config.ShowLegend {
		graph.Elements = []chart.Renderable{
			chart.Legend(&graph),
		}
	}

	return graph.Render(chart.PNG, w)
}

func renderBars(pd PlotData, w io.Writer) error {
	s := pd.Series[0]
	if len(s.Data) == 0 {
		return ErrNoData
	}

	bars := make([]chart.Value, len(s.Data))
	maxY := 0.0
	for i, p := range s.Data {
		label := p.Label
		if label == "" {
			label = fmt.Sprint(p.X)
		}
		bars[i] = chart.Value{Value: p.Y, Label: label}
		maxY = math.Max(maxY, p.Y)
	}

	graph := chart.BarChart{
		Title:      pd.Title,
		TitleStyle: chart.StyleShow(),
		Width:      pd.Config.Width,
		Height:     pd.Config.Height,
		BarWidth:   barWidth(pd.Config.Width, len(bars)),
		XAxis:      chart.StyleShow(),
		YAxis: chart.YAxis{
			Name:      pd.Config.YAxisLabel,
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
			Range:     &chart.ContinuousRange{Min: 0, Max: math.Max(maxY, 1)},
		},
		Bars: bars,
	}
	return graph.Render(chart.PNG, w)
}

// paddedRange returns nil, letting the chart pick its range, unless the
// data spans a single value, which the chart cannot scale
func paddedRange(lo, hi float64) chart.Range {
	if hi > lo {
		return nil
	}
	return &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
}

func barWidth(width, n int) int {
	if width <= 0 {
		width = 800
	}
	w := width / (2 * n)
	if w < 2 {
		return 2
	}
	if w > 50 {
		return 50
	}
	return w
}

// SavePNG renders the plot to dir/<plot type>.png and returns the path
func SavePNG(pd PlotData, dir string) (string, error) {
	path := filepath.Join(dir, string(pd.PlotType)+".png")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create plot file: %v", err)
	}

	if err := RenderPNG(pd, f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close plot file: %v", err)
	}
	return path, nil
}

// SaveJSON writes the plot data to dir/<plot type>.json and returns the path
func SaveJSON(pd PlotData, dir string) (string, error) {
	data, err := pd.ToJSON()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, string(pd.PlotType)+".json")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		return "", fmt.Errorf("failed to write plot data: %v", err)
	}
	return path, nil
}
