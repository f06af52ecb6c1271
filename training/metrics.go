package training

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// MetricType represents different evaluation metrics
type MetricType int

const (
	Accuracy MetricType = iota
	// BalancedAccuracy is the mean of per class recalls, the metric class
	// balancing is meant to improve
	BalancedAccuracy
	MacroPrecision
	MacroRecall
	MacroF1
	MicroF1
)

func (mt MetricType) String() string {
	switch mt {
	case Accuracy:
		return "Accuracy"
	case BalancedAccuracy:
		return "BalancedAccuracy"
	case MacroPrecision:
		return "MacroPrecision"
	case MacroRecall:
		return "MacroRecall"
	case MacroF1:
		return "MacroF1"
	case MicroF1:
		return "MicroF1"
	default:
		return fmt.Sprintf("Unknown(%d)", int(mt))
	}
}

// ConfusionMatrix represents a confusion matrix for classification tasks
type ConfusionMatrix struct {
	NumClasses   int
	Matrix       [][]int // [true_class][predicted_class]
	TotalSamples int

	// Cached metrics to avoid recomputation
	cachedMetrics map[MetricType]float64
	metricsValid  bool
}

// NewConfusionMatrix creates a new confusion matrix
func NewConfusionMatrix(numClasses int) *ConfusionMatrix {
	matrix := make([][]int, numClasses)
	for i := range matrix {
		matrix[i] = make([]int, numClasses)
	}

	return &ConfusionMatrix{
		NumClasses:    numClasses,
		Matrix:        matrix,
		cachedMetrics: make(map[MetricType]float64),
	}
}

// Reset clears the confusion matrix
func (cm *ConfusionMatrix) Reset() {
	for i := range cm.Matrix {
		for j := range cm.Matrix[i] {
			cm.Matrix[i][j] = 0
		}
	}
	cm.TotalSamples = 0
	cm.metricsValid = false
	cm.cachedMetrics = make(map[MetricType]float64)
}

// Update records one classification. Out of range classes are skipped.
func (cm *ConfusionMatrix) Update(trueClass, predClass int) {
	if trueClass < 0 || trueClass >= cm.NumClasses || predClass < 0 || predClass >= cm.NumClasses {
		return
	}
	cm.Matrix[trueClass][predClass]++
	cm.TotalSamples++
	cm.metricsValid = false
}

// UpdateFromPrediction records one classification from a score vector, the
// predicted class being its argmax
func (cm *ConfusionMatrix) UpdateFromPrediction(scores []float32, trueClass int) error {
	if len(scores) != cm.NumClasses {
		return fmt.Errorf("predictions length mismatch: expected %d, got %d", cm.NumClasses, len(scores))
	}
	cm.Update(trueClass, Argmax(scores))
	return nil
}

// Argmax returns the index of the largest score, -1 for no scores
func Argmax(scores []float32) int {
	if len(scores) == 0 {
		return -1
	}
	maxIdx := 0
	for j := 1; j < len(scores); j++ {
		if scores[j] > scores[maxIdx] {
			maxIdx = j
		}
	}
	return maxIdx
}

// GetMetric calculates and caches evaluation metrics
func (cm *ConfusionMatrix) GetMetric(metric MetricType) float64 {
	if !cm.metricsValid {
		cm.cachedMetrics = make(map[MetricType]float64)
		cm.metricsValid = true
	}
	if value, exists := cm.cachedMetrics[metric]; exists {
		return value
	}

	var result float64
	switch metric {
	case Accuracy:
		result = cm.GetAccuracy()
	case BalancedAccuracy, MacroRecall:
		result = mean(cm.ClassRecalls())
	case MacroPrecision:
		result = mean(cm.classPrecisions())
	case MacroF1:
		result = f1(cm.GetMetric(MacroPrecision), cm.GetMetric(MacroRecall))
	case MicroF1:
		// every sample is a true positive for one class and a false
		// positive for another, micro averages reduce to accuracy
		result = cm.GetAccuracy()
	default:
		return 0.0
	}

	cm.cachedMetrics[metric] = result
	return result
}

// GetAccuracy returns overall classification accuracy
func (cm *ConfusionMatrix) GetAccuracy() float64 {
	if cm.TotalSamples == 0 {
		return 0.0
	}

	correct := 0
	for i := 0; i < cm.NumClasses; i++ {
		correct += cm.Matrix[i][i]
	}

	return float64(correct) / float64(cm.TotalSamples)
}

// ClassRecalls returns the recall of every class with samples, in class
// order
func (cm *ConfusionMatrix) ClassRecalls() []float64 {
	var out []float64
	for class := 0; class < cm.NumClasses; class++ {
		total := 0
		for _, n := range cm.Matrix[class] {
			total += n
		}
		if total > 0 {
			out = append(out, float64(cm.Matrix[class][class])/float64(total))
		}
	}
	return out
}

// ClassRecall returns the recall of one class, 0 when it has no samples
func (cm *ConfusionMatrix) ClassRecall(class int) float64 {
	if class < 0 || class >= cm.NumClasses {
		return 0.0
	}
	total := 0
	for _, n := range cm.Matrix[class] {
		total += n
	}
	if total == 0 {
		return 0.0
	}
	return float64(cm.Matrix[class][class]) / float64(total)
}

func (cm *ConfusionMatrix) classPrecisions() []float64 {
	var out []float64
	for class := 0; class < cm.NumClasses; class++ {
		predicted := 0
		for trueClass := 0; trueClass < cm.NumClasses; trueClass++ {
			predicted += cm.Matrix[trueClass][class]
		}
		if predicted > 0 {
			out = append(out, float64(cm.Matrix[class][class])/float64(predicted))
		}
	}
	return out
}

func mean(values []float64) float64 {
	m, err := stats.Mean(values)
	if err != nil {
		return 0.0 // empty input
	}
	return m
}

func f1(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0.0
	}
	return 2 * (precision * recall) / (precision + recall)
}
