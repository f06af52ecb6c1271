package dataset

import (
	"encoding/json"
	"fmt"
	"os"
)

// subsetFile is the on-disk layout written by WriteSubset
type subsetFile struct {
	Name    string      `json:"name"`
	Samples []Sample    `json:"samples"`
	Labels  [][]float32 `json:"labels,omitempty"`
	Origin  []int       `json:"origin"`
}

// Subset is a selection of samples read back from disk
type Subset struct {
	Name    string
	Samples []Sample
	Labels  [][]float32
	// Origin holds the index each sample had in the store it was taken from
	Origin []int
}

// WriteSubset writes the samples of store at indices, and their labels when
// labels is not nil, to path as indented JSON.
func WriteSubset(path, name string, store Store, labels LabelData, indices []int) error {
	out := subsetFile{
		Name:    name,
		Samples: make([]Sample, 0, len(indices)),
		Origin:  make([]int, 0, len(indices)),
	}

	for _, idx := range indices {
		s, err := store.Get(idx)
		if err != nil {
			return fmt.Errorf("failed to read sample %d: %v", idx, err)
		}
		out.Samples = append(out.Samples, s)
		out.Origin = append(out.Origin, idx)
		if labels != nil {
			if idx >= labels.Len() {
				return fmt.Errorf("no label for sample %d (%d labels)", idx, labels.Len())
			}
			row := labels.Row(idx)
			cp := make([]float32, len(row))
			copy(cp, row)
			out.Labels = append(out.Labels, cp)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create subset file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&out); err != nil {
		return fmt.Errorf("failed to encode subset: %v", err)
	}

	return nil
}

// ReadSubset loads a subset written by WriteSubset
func ReadSubset(path string) (*Subset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subset file: %v", err)
	}
	defer file.Close()

	var in subsetFile
	if err := json.NewDecoder(file).Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to decode subset: %v", err)
	}
	if in.Labels != nil && len(in.Labels) != len(in.Samples) {
		return nil, fmt.Errorf("subset has %d samples but %d labels", len(in.Samples), len(in.Labels))
	}

	return &Subset{
		Name:    in.Name,
		Samples: in.Samples,
		Labels:  in.Labels,
		Origin:  in.Origin,
	}, nil
}

// Store returns the subset samples as an in-memory store
func (s *Subset) Store() (*MemoryStore, error) {
	return NewMemoryStore(s.Samples)
}
