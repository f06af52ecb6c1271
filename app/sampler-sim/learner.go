package main

import (
	"fmt"
	"math"

	"github.com/tsawler/go-datasource/checkpoints"
	"github.com/tsawler/go-datasource/sampler"
	"github.com/tsawler/go-datasource/training"
)

// centroidLearner is a nearest-centroid classifier trained online. Its
// energy is the distance to the true class centroid relative to the
// distance to the closest other centroid.
type centroidLearner struct {
	nclasses  int
	dim       int
	centroids [][]float64
	counts    []float64
}

func newCentroidLearner(nclasses, dim int) *centroidLearner {
	l := &centroidLearner{
		nclasses:  nclasses,
		dim:       dim,
		centroids: make([][]float64, nclasses),
		counts:    make([]float64, nclasses),
	}
	for k := range l.centroids {
		l.centroids[k] = make([]float64, dim)
	}
	return l
}

// Step scores the example and, when train is set, moves the centroid of its
// class toward it
func (l *centroidLearner) Step(ex training.Example, train bool) (sampler.Result, error) {
	if len(ex.Sample) == 0 || len(ex.Sample[0].Data) != l.dim {
		return sampler.Result{}, fmt.Errorf("sample %d: expected %d features", ex.Index, l.dim)
	}
	if ex.Class < 0 || ex.Class >= l.nclasses {
		return sampler.Result{}, fmt.Errorf("sample %d: class %d out of range", ex.Index, ex.Class)
	}
	x := ex.Sample[0].Data

	raw := make([]float32, l.nclasses)
	dists := make([]float64, l.nclasses)
	for k := range l.centroids {
		if l.counts[k] == 0 {
			dists[k] = math.Inf(1)
			raw[k] = -math.MaxFloat32
			continue
		}
		dists[k] = l.distance(k, x)
		raw[k] = float32(-dists[k])
	}

	pred := training.Argmax(raw)
	prediction := make([]float32, l.nclasses)
	prediction[pred] = 1

	r := sampler.Result{
		Energy:     l.energy(ex.Class, dists),
		Correct:    pred == ex.Class && l.counts[ex.Class] > 0,
		Raw:        raw,
		Prediction: prediction,
		Target:     ex.Target,
	}

	if train {
		l.counts[ex.Class]++
		c := l.centroids[ex.Class]
		for j, v := range x {
			c[j] += (float64(v) - c[j]) / l.counts[ex.Class]
		}
	}
	return r, nil
}

// energy is in [0, 1], 1 when the true class has no centroid yet
func (l *centroidLearner) energy(class int, dists []float64) float64 {
	own := dists[class]
	if math.IsInf(own, 1) {
		return 1
	}
	other := math.Inf(1)
	for k, d := range dists {
		if k != class && d < other {
			other = d
		}
	}
	if math.IsInf(other, 1) {
		return 0
	}
	if own+other == 0 {
		return 0.5
	}
	return own / (own + other)
}

func (l *centroidLearner) distance(k int, x []float32) float64 {
	sum := 0.0
	for j, v := range x {
		d := float64(v) - l.centroids[k][j]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Weights returns the centroids and their sample counts
func (l *centroidLearner) Weights() []checkpoints.WeightTensor {
	centroids := make([]float32, 0, l.nclasses*l.dim)
	for _, c := range l.centroids {
		for _, v := range c {
			centroids = append(centroids, float32(v))
		}
	}
	counts := make([]float32, l.nclasses)
	for k, n := range l.counts {
		counts[k] = float32(n)
	}
	return []checkpoints.WeightTensor{
		{Name: "centroids", Shape: []int{l.nclasses, l.dim}, Data: centroids},
		{Name: "counts", Shape: []int{l.nclasses}, Data: counts},
	}
}

// LoadWeights restores weights saved by Weights
func (l *centroidLearner) LoadWeights(w []checkpoints.WeightTensor) error {
	byName := make(map[string]checkpoints.WeightTensor, len(w))
	for _, t := range w {
		byName[t.Name] = t
	}
	centroids, ok := byName["centroids"]
	if !ok || len(centroids.Data) != l.nclasses*l.dim {
		return fmt.Errorf("expected %dx%d centroids", l.nclasses, l.dim)
	}
	counts, ok := byName["counts"]
	if !ok || len(counts.Data) != l.nclasses {
		return fmt.Errorf("expected %d centroid counts", l.nclasses)
	}

	for k := range l.centroids {
		for j := range l.centroids[k] {
			l.centroids[k][j] = float64(centroids.Data[k*l.dim+j])
		}
		l.counts[k] = float64(counts.Data[k])
	}
	return nil
}
