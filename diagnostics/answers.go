package diagnostics

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/tsawler/go-datasource/sampler"
	"github.com/tsawler/go-datasource/training"
)

// AnswerRow is one line of the answers CSV. Vectors are space separated.
type AnswerRow struct {
	Index      int     `csv:"index"`
	Energy     float64 `csv:"energy"`
	Correct    bool    `csv:"correct"`
	Predicted  int     `csv:"predicted"`
	Prediction string  `csv:"prediction"`
	Target     string  `csv:"target"`
	Raw        string  `csv:"raw"`
}

// AnswerRows converts kept outputs to CSV rows. report, when not nil,
// supplies energies and correctness.
func AnswerRows(answers []sampler.Answer, report *sampler.Report) []*AnswerRow {
	rows := make([]*AnswerRow, len(answers))
	for i, a := range answers {
		row := &AnswerRow{
			Index:      a.Index,
			Predicted:  training.Argmax(a.Prediction),
			Prediction: joinFloats(a.Prediction),
			Target:     joinFloats(a.Target),
			Raw:        joinFloats(a.Raw),
		}
		if report != nil && a.Index < len(report.Energies) {
			row.Energy = report.Energies[a.Index]
			row.Correct = report.Correct[a.Index]
		}
		rows[i] = row
	}
	return rows
}

// WriteAnswersCSV writes kept outputs as CSV with a header line
func WriteAnswersCSV(w io.Writer, answers []sampler.Answer, report *sampler.Report) error {
	rows := AnswerRows(answers, report)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write answers: %v", err)
	}
	return nil
}

// SaveAnswersCSV writes kept outputs to path
func SaveAnswersCSV(path string, answers []sampler.Answer, report *sampler.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create answers file: %v", err)
	}
	defer f.Close()
	return WriteAnswersCSV(f, answers, report)
}

// ReadAnswersCSV reads rows written by WriteAnswersCSV
func ReadAnswersCSV(r io.Reader) ([]*AnswerRow, error) {
	var rows []*AnswerRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to read answers: %v", err)
	}
	return rows, nil
}

// ParseFloats splits a vector column back into values
func ParseFloats(s string) ([]float32, error) {
	fields := strings.Fields(s)
	out := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %v", f, err)
		}
		out[i] = float32(v)
	}
	return out, nil
}

func joinFloats(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'g', -1, 32)
	}
	return strings.Join(parts, " ")
}
