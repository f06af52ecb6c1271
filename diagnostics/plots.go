// Package diagnostics turns what a sampler learnt about its samples into
// plot data, PNG charts, CSV exports and summary statistics.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/tsawler/go-datasource/sampler"
	"github.com/tsawler/go-datasource/training"
)

// PlotType represents different types of plots that can be generated
type PlotType string

const (
	// Picking plots
	PickCountHistogram PlotType = "pick_count_histogram"
	ClassPickings      PlotType = "class_pickings"

	// Energy and probability plots
	SortedEnergies      PlotType = "sorted_energies"
	SortedProbabilities PlotType = "sorted_probabilities"
	ProbasByEnergy      PlotType = "probas_by_energy"
	WrongProbasByEnergy PlotType = "wrong_probas_by_energy"

	// Training plots
	TrainingCurves PlotType = "training_curves"
)

// PlotData is a chart description that can be written as JSON or rendered
type PlotData struct {
	PlotType    PlotType  `json:"plot_type"`
	Title       string    `json:"title"`
	Timestamp   time.Time `json:"timestamp"`
	SamplerName string    `json:"sampler_name"`

	Series []SeriesData `json:"series"`
	Config PlotConfig   `json:"config"`

	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// SeriesData represents a single data series in a plot
type SeriesData struct {
	Name string      `json:"name"`
	Type string      `json:"type"` // "line", "scatter", "bar"
	Data []DataPoint `json:"data"`
}

// DataPoint represents a single data point
type DataPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label,omitempty"` // For categorical data
}

// PlotConfig contains plot-specific configuration
type PlotConfig struct {
	XAxisLabel string `json:"x_axis_label"`
	YAxisLabel string `json:"y_axis_label"`
	ShowLegend bool   `json:"show_legend"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

func defaultConfig(x, y string) PlotConfig {
	return PlotConfig{
		XAxisLabel: x,
		YAxisLabel: y,
		ShowLegend: true,
		Width:      800,
		Height:     600,
	}
}

// Collector builds plots from a sampler report and the trainer's epochs
type Collector struct {
	report *sampler.Report
	epochs []training.EpochMetrics
}

// NewCollector creates a collector over a sampler report
func NewCollector(report *sampler.Report) *Collector {
	return &Collector{report: report}
}

// SetReport replaces the sampler report, typically after another epoch
func (c *Collector) SetReport(report *sampler.Report) {
	c.report = report
}

// RecordEpoch adds one epoch to the training curves
func (c *Collector) RecordEpoch(m training.EpochMetrics) {
	c.epochs = append(c.epochs, m)
}

func (c *Collector) plot(t PlotType, title string, config PlotConfig, series ...SeriesData) PlotData {
	return PlotData{
		PlotType:    t,
		Title:       fmt.Sprintf("%s - %s", title, c.report.Name),
		Timestamp:   time.Now(),
		SamplerName: c.report.Name,
		Series:      series,
		Config:      config,
	}
}

// GeneratePickCountHistogram counts how many samples were picked 0, 1, 2...
// times
func (c *Collector) GeneratePickCountHistogram() PlotData {
	maxCount := 0
	for _, n := range c.report.PickCounts {
		if n > maxCount {
			maxCount = n
		}
	}
	hist := make([]int, maxCount+1)
	for _, n := range c.report.PickCounts {
		hist[n]++
	}

	series := SeriesData{Name: "Samples", Type: "bar"}
	for count, samples := range hist {
		series.Data = append(series.Data, DataPoint{
			X:     float64(count),
			Y:     float64(samples),
			Label: fmt.Sprint(count),
		})
	}

	pd := c.plot(PickCountHistogram, "Pick Count Histogram", defaultConfig("Times picked", "Samples"), series)
	pd.Metrics = map[string]float64{"picked_fraction": c.report.PickedFraction()}
	return pd
}

// GenerateClassPickingsPlot sums pickings per class. It is empty for
// samplers without labels.
func (c *Collector) GenerateClassPickingsPlot() PlotData {
	series := SeriesData{Name: "Pickings", Type: "bar"}
	for k, n := range c.report.ClassPickCounts() {
		label := fmt.Sprint(k)
		if k < len(c.report.ClassNames) {
			label = c.report.ClassNames[k]
		}
		series.Data = append(series.Data, DataPoint{X: float64(k), Y: float64(n), Label: label})
	}
	return c.plot(ClassPickings, "Pickings per Class", defaultConfig("Class", "Pickings"), series)
}

// GenerateSortedEnergiesPlot plots the observed energies in increasing order
func (c *Collector) GenerateSortedEnergiesPlot() PlotData {
	var energies []float64
	for i, e := range c.report.Energies {
		if c.report.Observed[i] {
			energies = append(energies, e)
		}
	}
	sort.Float64s(energies)

	series := SeriesData{Name: "Energy", Type: "line", Data: make([]DataPoint, len(energies))}
	for i, e := range energies {
		series.Data[i] = DataPoint{X: float64(i), Y: e}
	}
	return c.plot(SortedEnergies, "Sorted Energies", defaultConfig("Rank", "Energy"), series)
}

// GenerateSortedProbabilitiesPlot plots the picking probabilities in
// increasing order
func (c *Collector) GenerateSortedProbabilitiesPlot() PlotData {
	probas := append([]float64(nil), c.report.Probas...)
	sort.Float64s(probas)

	series := SeriesData{Name: "Probability", Type: "line", Data: make([]DataPoint, len(probas))}
	for i, p := range probas {
		series.Data[i] = DataPoint{X: float64(i), Y: p}
	}
	return c.plot(SortedProbabilities, "Sorted Probabilities", defaultConfig("Rank", "Probability"), series)
}

// GenerateProbasByEnergyPlot plots the picking probability of every observed
// sample against its energy rank, with a correctness series. With wrongOnly
// only misclassified samples are plotted.
func (c *Collector) GenerateProbasByEnergyPlot(wrongOnly bool) PlotData {
	var idx []int
	for i := range c.report.Energies {
		if !c.report.Observed[i] || (wrongOnly && c.report.Correct[i]) {
			continue
		}
		idx = append(idx, i)
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return c.report.Energies[idx[a]] < c.report.Energies[idx[b]]
	})

	probas := SeriesData{Name: "Probability", Type: "scatter", Data: make([]DataPoint, len(idx))}
	for rank, i := range idx {
		probas.Data[rank] = DataPoint{X: float64(rank), Y: c.report.Probas[i], Label: fmt.Sprint(i)}
	}

	if wrongOnly {
		return c.plot(WrongProbasByEnergy, "Probabilities of Misclassified Samples by Energy",
			defaultConfig("Energy rank", "Probability"), probas)
	}

	correct := SeriesData{Name: "Correct", Type: "scatter", Data: make([]DataPoint, len(idx))}
	for rank, i := range idx {
		y := 0.0
		if c.report.Correct[i] {
			y = 1
		}
		correct.Data[rank] = DataPoint{X: float64(rank), Y: y}
	}
	return c.plot(ProbasByEnergy, "Probabilities by Energy",
		defaultConfig("Energy rank", "Probability / Correct"), probas, correct)
}

// GenerateTrainingCurvesPlot plots accuracies and mean energy per epoch
func (c *Collector) GenerateTrainingCurvesPlot() PlotData {
	series := []SeriesData{
		{Name: "Mean Energy", Type: "line"},
		{Name: "Training Accuracy", Type: "line"},
		{Name: "Test Accuracy", Type: "line"},
	}
	for _, m := range c.epochs {
		x := float64(m.Epoch)
		series[0].Data = append(series[0].Data, DataPoint{X: x, Y: m.MeanEnergy})
		series[1].Data = append(series[1].Data, DataPoint{X: x, Y: m.TrainAccuracy})
		series[2].Data = append(series[2].Data, DataPoint{X: x, Y: m.TestAccuracy})
	}
	return c.plot(TrainingCurves, "Training Curves", defaultConfig("Epoch", "Energy / Accuracy"), series...)
}

// GenerateAll returns every plot the collected data supports
func (c *Collector) GenerateAll() []PlotData {
	plots := []PlotData{
		c.GeneratePickCountHistogram(),
		c.GenerateSortedEnergiesPlot(),
		c.GenerateSortedProbabilitiesPlot(),
		c.GenerateProbasByEnergyPlot(false),
		c.GenerateProbasByEnergyPlot(true),
	}
	if c.report.NClasses > 0 {
		plots = append(plots, c.GenerateClassPickingsPlot())
	}
	if len(c.epochs) > 0 {
		plots = append(plots, c.GenerateTrainingCurvesPlot())
	}
	return plots
}

// ToJSON converts plot data to JSON string
func (pd PlotData) ToJSON() (string, error) {
	jsonData, err := json.MarshalIndent(pd, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plot data to JSON: %w", err)
	}
	return string(jsonData), nil
}
