package taxonomy

import (
	"os"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

// LoadParentsCSV reads a parent table from a CSV file with a "child,parent"
// header. Roots use a parent of -1.
func LoadParentsCSV(path string) ([]Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open parent table")
	}
	defer f.Close()

	var pairs []Pair
	if err := gocsv.UnmarshalFile(f, &pairs); err != nil {
		return nil, errors.Wrapf(err, "failed to parse parent table %s", path)
	}
	return pairs, nil
}

// WriteParentsCSV writes a parent table readable by LoadParentsCSV
func WriteParentsCSV(path string, pairs []Pair) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create parent table")
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&pairs, f); err != nil {
		return errors.Wrapf(err, "failed to write parent table %s", path)
	}
	return nil
}

// Flat returns a parent table making every one of n classes a root
func Flat(n int) []Pair {
	pairs := make([]Pair, n)
	for i := range pairs {
		pairs[i] = Pair{Child: i, Parent: NoParent}
	}
	return pairs
}
