package main

import (
	"math"
	"math/rand/v2"

	"github.com/tsawler/go-datasource/dataset"
)

// blobs is a synthetic dataset of Gaussian clusters, one per class, whose
// centers sit on a circle in the first two dimensions
type blobs struct {
	store  *dataset.CachedStore
	labels *dataset.Int32Labels
	dim    int
}

// newBlobs creates sizes[k] samples of class k. Samples are generated on
// demand from (seed, index), so evicted samples come back identical.
func newBlobs(sizes []int, dim int, spread float64, seed uint64, cacheSize int) (*blobs, error) {
	var labels []int32
	for k, n := range sizes {
		for i := 0; i < n; i++ {
			labels = append(labels, int32(k))
		}
	}
	lbl, err := dataset.NewInt32Labels(labels)
	if err != nil {
		return nil, err
	}

	centers := blobCenters(len(sizes), dim)
	load := func(idx int) (dataset.Sample, error) {
		r := rand.New(rand.NewPCG(seed, uint64(idx)))
		center := centers[labels[idx]]
		data := make([]float32, dim)
		for j := range data {
			data[j] = float32(center[j] + r.NormFloat64()*spread)
		}
		t, err := dataset.NewTensor([]int{dim}, data)
		if err != nil {
			return nil, err
		}
		return dataset.Sample{t}, nil
	}

	store, err := dataset.NewCachedStore(len(labels), cacheSize, load)
	if err != nil {
		return nil, err
	}
	return &blobs{store: store, labels: lbl, dim: dim}, nil
}

// blobCenters spreads n centers evenly on a circle of radius 3
func blobCenters(n, dim int) [][]float64 {
	centers := make([][]float64, n)
	for k := range centers {
		c := make([]float64, dim)
		angle := 2 * math.Pi * float64(k) / float64(n)
		c[0] = 3 * math.Cos(angle)
		if dim > 1 {
			c[1] = 3 * math.Sin(angle)
		}
		centers[k] = c
	}
	return centers
}

// testSizes scales class sizes by fraction, keeping at least one sample of
// every non-empty class
func testSizes(sizes []int, fraction float64) []int {
	out := make([]int, len(sizes))
	for k, n := range sizes {
		if n == 0 || fraction <= 0 {
			continue
		}
		out[k] = int(math.Round(float64(n) * fraction))
		if out[k] == 0 {
			out[k] = 1
		}
	}
	return out
}
