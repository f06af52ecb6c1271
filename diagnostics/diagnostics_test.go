package diagnostics

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsawler/go-datasource/dataset"
	"github.com/tsawler/go-datasource/sampler"
	"github.com/tsawler/go-datasource/training"
)

func testReport() *sampler.Report {
	return &sampler.Report{
		Name:       "test",
		PickCounts: []int{0, 1, 1, 3, 2},
		Energies:   []float64{-1, 0.5, 0.1, 2, 1},
		Correct:    []bool{false, true, true, false, false},
		Observed:   []bool{false, true, true, true, true},
		Probas:     []float64{1, 0.2, 0.1, 1, 0.5},
		Labels:     []int{0, 0, 1, 1, 1},
		NClasses:   2,
		ClassNames: []string{"cat", "dog"},
	}
}

func TestPickCountHistogram(t *testing.T) {
	pd := NewCollector(testReport()).GeneratePickCountHistogram()

	require.Len(t, pd.Series, 1)
	var ys []float64
	for _, p := range pd.Series[0].Data {
		ys = append(ys, p.Y)
	}
	// one sample never picked, two once, one twice, one three times
	assert.Equal(t, []float64{1, 2, 1, 1}, ys)
	assert.Equal(t, 0.8, pd.Metrics["picked_fraction"])
	assert.Equal(t, "test", pd.SamplerName)
}

func TestClassPickingsPlot(t *testing.T) {
	pd := NewCollector(testReport()).GenerateClassPickingsPlot()

	require.Len(t, pd.Series[0].Data, 2)
	assert.Equal(t, DataPoint{X: 0, Y: 1, Label: "cat"}, pd.Series[0].Data[0])
	assert.Equal(t, DataPoint{X: 1, Y: 6, Label: "dog"}, pd.Series[0].Data[1])
}

func TestSortedPlots(t *testing.T) {
	c := NewCollector(testReport())

	energies := c.GenerateSortedEnergiesPlot()
	var ys []float64
	for _, p := range energies.Series[0].Data {
		ys = append(ys, p.Y)
	}
	assert.Equal(t, []float64{0.1, 0.5, 1, 2}, ys, "unobserved samples are left out")

	probas := c.GenerateSortedProbabilitiesPlot()
	ys = nil
	for _, p := range probas.Series[0].Data {
		ys = append(ys, p.Y)
	}
	assert.Equal(t, []float64{0.1, 0.2, 0.5, 1, 1}, ys)
}

func TestProbasByEnergyPlot(t *testing.T) {
	c := NewCollector(testReport())

	t.Run("all", func(t *testing.T) {
		pd := c.GenerateProbasByEnergyPlot(false)
		assert.Equal(t, ProbasByEnergy, pd.PlotType)
		require.Len(t, pd.Series, 2)

		var labels []string
		var correct []float64
		for i, p := range pd.Series[0].Data {
			labels = append(labels, p.Label)
			correct = append(correct, pd.Series[1].Data[i].Y)
		}
		assert.Equal(t, []string{"2", "1", "4", "3"}, labels)
		assert.Equal(t, []float64{1, 1, 0, 0}, correct)
	})

	t.Run("wrong only", func(t *testing.T) {
		pd := c.GenerateProbasByEnergyPlot(true)
		assert.Equal(t, WrongProbasByEnergy, pd.PlotType)
		require.Len(t, pd.Series, 1)
		require.Len(t, pd.Series[0].Data, 2)
		assert.Equal(t, 0.5, pd.Series[0].Data[0].Y)
		assert.Equal(t, 1.0, pd.Series[0].Data[1].Y)
	})
}

func TestGenerateAll(t *testing.T) {
	c := NewCollector(testReport())
	assert.Len(t, c.GenerateAll(), 6)

	c.RecordEpoch(training.EpochMetrics{Epoch: 1, MeanEnergy: 0.7, TrainAccuracy: 0.5, TestAccuracy: 0.4})
	c.RecordEpoch(training.EpochMetrics{Epoch: 2, MeanEnergy: 0.4, TrainAccuracy: 0.7, TestAccuracy: 0.6})
	plots := c.GenerateAll()
	require.Len(t, plots, 7)
	curves := plots[6]
	assert.Equal(t, TrainingCurves, curves.PlotType)
	assert.Equal(t, 0.6, curves.Series[2].Data[1].Y)

	unlabeled := testReport()
	unlabeled.NClasses = 0
	assert.Len(t, NewCollector(unlabeled).GenerateAll(), 5)
}

func TestPlotDataJSON(t *testing.T) {
	pd := NewCollector(testReport()).GenerateSortedEnergiesPlot()
	out, err := pd.ToJSON()
	require.NoError(t, err)

	var decoded PlotData
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, pd.Series, decoded.Series)
	assert.Equal(t, "Energy", decoded.Config.YAxisLabel)
}

var pngMagic = []byte("\x89PNG")

func TestRenderPNG(t *testing.T) {
	c := NewCollector(testReport())
	c.RecordEpoch(training.EpochMetrics{Epoch: 1, MeanEnergy: 1})
	for _, pd := range c.GenerateAll() {
		t.Run(string(pd.PlotType), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, RenderPNG(pd, &buf))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
		})
	}

	t.Run("empty", func(t *testing.T) {
		empty := PlotData{Series: []SeriesData{{Name: "none", Type: "line"}}}
		assert.Equal(t, ErrNoData, RenderPNG(empty, &bytes.Buffer{}))
		empty.Series[0].Type = "bar"
		assert.Equal(t, ErrNoData, RenderPNG(empty, &bytes.Buffer{}))
	})
}

func TestAnswersCSV(t *testing.T) {
	answers := []sampler.Answer{
		{Index: 1, Raw: []float32{0.2, 0.8}, Prediction: []float32{0, 1}, Target: []float32{0}},
		{Index: 3, Raw: []float32{0.9, -0.5}, Prediction: []float32{1, 0}, Target: []float32{1}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAnswersCSV(&buf, answers, testReport()))
	assert.Contains(t, buf.String(), "index,energy,correct,predicted,prediction,target,raw")

	rows, err := ReadAnswersCSV(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 1, rows[0].Index)
	assert.Equal(t, 0.5, rows[0].Energy)
	assert.True(t, rows[0].Correct)
	assert.Equal(t, 1, rows[0].Predicted)
	assert.Equal(t, 0, rows[1].Predicted)
	assert.False(t, rows[1].Correct)

	raw, err := ParseFloats(rows[1].Raw)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.9, -0.5}, raw)

	_, err = ParseFloats("1 x")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	s := Summarize(testReport())

	assert.Equal(t, 5, s.Samples)
	assert.Equal(t, 4, s.Observed)
	assert.Equal(t, 2, s.Incorrect)
	assert.InDelta(t, 0.9, s.MeanEnergy, 1e-9)
	assert.InDelta(t, 0.75, s.MedianEnergy, 1e-9)
	assert.Equal(t, 2.0, s.MaxEnergy)
	assert.Equal(t, 0.1, s.MinProba)
	assert.Equal(t, 3, s.MaxPickCount)
	assert.InDelta(t, 1.4, s.MeanPickCount, 1e-9)
	assert.Len(t, s.Fields(), 12)

	empty := Summarize(&sampler.Report{})
	assert.Equal(t, Summary{}, empty)
}

func TestExport(t *testing.T) {
	labels, err := dataset.NewInt32Labels([]int32{0, 1, 0, 1})
	require.NoError(t, err)
	store, err := dataset.NewDenseStore(4, []int{1}, []float32{0, 1, 2, 3})
	require.NoError(t, err)

	opts := sampler.DefaultOptions()
	opts.EpochShow = 0
	opts.KeepOutputs = true
	s, err := sampler.NewClass(store, labels, opts)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, s.SelectSample(i))
		require.NoError(t, s.ReportResult(sampler.Result{
			Energy:     float64(i),
			Correct:    i%2 == 0,
			Prediction: []float32{1, 0},
			Target:     []float32{float32(i % 2)},
		}))
	}

	dir := filepath.Join(t.TempDir(), "diag")
	paths, err := Export(dir, NewCollector(s.Report()), s, ExportOptions{PNG: true, Answers: true})
	require.NoError(t, err)

	// six plots as JSON and PNG, plus the answers
	assert.Len(t, paths, 13)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.NotZero(t, info.Size(), p)
	}
	assert.FileExists(t, filepath.Join(dir, "answers.csv"))
	assert.FileExists(t, filepath.Join(dir, "class_pickings.png"))
}
