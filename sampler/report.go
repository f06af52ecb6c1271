package sampler

// Report is a copy of what a sampler learnt about its samples, in sample
// order. Labels and class fields are set by class samplers only.
type Report struct {
	Name       string
	PickCounts []int
	Energies   []float64
	Correct    []bool
	Observed   []bool
	Probas     []float64

	Labels     []int
	NClasses   int
	ClassNames []string
}

// Report returns the per sample statistics
func (b *Base) Report() *Report {
	return &Report{
		Name:       b.name,
		PickCounts: append([]int(nil), b.pickCount...),
		Energies:   append([]float64(nil), b.energies...),
		Correct:    append([]bool(nil), b.correct...),
		Observed:   append([]bool(nil), b.observed...),
		Probas:     append([]float64(nil), b.probas...),
	}
}

// Report returns the per sample statistics with live labels
func (c *Class) Report() *Report {
	r := c.Base.Report()
	r.Labels = append([]int(nil), c.derived...)
	r.NClasses = c.NClasses()
	r.ClassNames = append([]string(nil), c.ClassNames()...)
	return r
}

// Report returns the per sample statistics with labels at the current depth
func (h *Hierarchy) Report() *Report {
	r := h.Base.Report()
	r.Labels = h.DepthLabels()
	r.NClasses = h.NClasses()
	r.ClassNames = append([]string(nil), h.ClassNames()...)
	return r
}

// PickedFraction returns the fraction of samples picked at least once
func (r *Report) PickedFraction() float64 {
	if len(r.PickCounts) == 0 {
		return 0
	}
	n := 0
	for _, c := range r.PickCounts {
		if c > 0 {
			n++
		}
	}
	return float64(n) / float64(len(r.PickCounts))
}

// ClassPickCounts sums pick counts per class
func (r *Report) ClassPickCounts() []int {
	if r.NClasses == 0 {
		return nil
	}
	out := make([]int, r.NClasses)
	for i, l := range r.Labels {
		if l >= 0 && l < r.NClasses {
			out[l] += r.PickCounts[i]
		}
	}
	return out
}
