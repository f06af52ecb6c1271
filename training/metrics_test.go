package training

import (
	"math"
	"testing"
)

// TestMetricTypeString tests the string representation of MetricType
func TestMetricTypeString(t *testing.T) {
	tests := []struct {
		metric   MetricType
		expected string
	}{
		{Accuracy, "Accuracy"},
		{BalancedAccuracy, "BalancedAccuracy"},
		{MacroPrecision, "MacroPrecision"},
		{MacroRecall, "MacroRecall"},
		{MacroF1, "MacroF1"},
		{MicroF1, "MicroF1"},
		{MetricType(999), "Unknown(999)"},
	}

	for _, test := range tests {
		result := test.metric.String()
		if result != test.expected {
			t.Errorf("MetricType(%d).String() = %s, expected %s", test.metric, result, test.expected)
		}
	}
}

// TestNewConfusionMatrix tests confusion matrix creation
func TestNewConfusionMatrix(t *testing.T) {
	cm := NewConfusionMatrix(3)

	if cm.NumClasses != 3 {
		t.Errorf("Expected 3 classes, got %d", cm.NumClasses)
	}
	if len(cm.Matrix) != 3 {
		t.Errorf("Expected matrix with 3 rows, got %d", len(cm.Matrix))
	}
	for i, row := range cm.Matrix {
		if len(row) != 3 {
			t.Errorf("Row %d: expected 3 columns, got %d", i, len(row))
		}
	}
	if cm.GetAccuracy() != 0 {
		t.Errorf("Expected 0 accuracy on an empty matrix, got %f", cm.GetAccuracy())
	}
}

// skewedMatrix has a majority class predicted well and two minority
// classes predicted badly
func skewedMatrix() *ConfusionMatrix {
	cm := NewConfusionMatrix(3)
	for i := 0; i < 8; i++ {
		cm.Update(0, 0)
	}
	cm.Update(1, 1)
	cm.Update(1, 0)
	cm.Update(2, 0)
	cm.Update(2, 0)
	return cm
}

func TestConfusionMatrixMetrics(t *testing.T) {
	cm := skewedMatrix()

	tests := []struct {
		metric   MetricType
		expected float64
	}{
		{Accuracy, 9.0 / 12.0},
		{BalancedAccuracy, (1.0 + 0.5 + 0.0) / 3.0},
		{MacroRecall, (1.0 + 0.5 + 0.0) / 3.0},
		// class 2 is never predicted and has no precision
		{MacroPrecision, (8.0/11.0 + 1.0) / 2.0},
		{MicroF1, 9.0 / 12.0},
	}

	for _, tt := range tests {
		got := cm.GetMetric(tt.metric)
		if math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("%s: expected %f, got %f", tt.metric, tt.expected, got)
		}
	}

	p, r := cm.GetMetric(MacroPrecision), cm.GetMetric(MacroRecall)
	if math.Abs(cm.GetMetric(MacroF1)-2*p*r/(p+r)) > 1e-9 {
		t.Errorf("MacroF1 is not the harmonic mean of macro precision and recall")
	}
}

func TestConfusionMatrixCacheInvalidation(t *testing.T) {
	cm := NewConfusionMatrix(2)
	cm.Update(0, 0)
	if cm.GetMetric(Accuracy) != 1 {
		t.Fatalf("Expected accuracy 1, got %f", cm.GetMetric(Accuracy))
	}

	cm.Update(1, 0)
	if cm.GetMetric(Accuracy) != 0.5 {
		t.Errorf("Expected accuracy 0.5 after update, got %f", cm.GetMetric(Accuracy))
	}

	cm.Reset()
	if cm.TotalSamples != 0 || cm.GetMetric(Accuracy) != 0 {
		t.Errorf("Expected an empty matrix after Reset")
	}
}

func TestConfusionMatrixUpdateSkipsInvalid(t *testing.T) {
	cm := NewConfusionMatrix(2)
	cm.Update(-1, 0)
	cm.Update(0, 2)
	if cm.TotalSamples != 0 {
		t.Errorf("Expected out of range classes to be skipped, got %d samples", cm.TotalSamples)
	}
}

func TestUpdateFromPrediction(t *testing.T) {
	cm := NewConfusionMatrix(3)

	if err := cm.UpdateFromPrediction([]float32{0.1, 0.7, 0.2}, 1); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cm.Matrix[1][1] != 1 {
		t.Errorf("Expected a correct prediction for class 1")
	}

	if err := cm.UpdateFromPrediction([]float32{0.1, 0.9}, 1); err == nil {
		t.Errorf("Expected error for mismatched prediction length")
	}
}

func TestClassRecall(t *testing.T) {
	cm := skewedMatrix()

	tests := []struct {
		class    int
		expected float64
	}{
		{0, 1.0},
		{1, 0.5},
		{2, 0.0},
		{5, 0.0},
	}
	for _, tt := range tests {
		if got := cm.ClassRecall(tt.class); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("class %d: expected recall %f, got %f", tt.class, tt.expected, got)
		}
	}
}

func TestArgmax(t *testing.T) {
	tests := []struct {
		scores   []float32
		expected int
	}{
		{nil, -1},
		{[]float32{3}, 0},
		{[]float32{0.2, 0.5, 0.3}, 1},
		{[]float32{-1, -2, -0.5}, 2},
		{[]float32{1, 1}, 0}, // ties go to the lowest index
	}
	for _, tt := range tests {
		if got := Argmax(tt.scores); got != tt.expected {
			t.Errorf("Argmax(%v) = %d, expected %d", tt.scores, got, tt.expected)
		}
	}
}
