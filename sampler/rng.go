package sampler

import (
	"math/rand/v2"

	"github.com/pkg/errors"
)

// rng is the generator driving shuffles, class draws and picking decisions.
// It is created once per sampler stack and never reseeded implicitly.
type rng struct {
	src *rand.PCG
	r   *rand.Rand
}

func newRNG(o *Options) *rng {
	src := o.Source
	if src == nil {
		src = rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15)
	}
	return &rng{src: src, r: rand.New(src)}
}

func (g *rng) float64() float64 {
	return g.r.Float64()
}

func (g *rng) shuffle(ints []int) {
	g.r.Shuffle(len(ints), func(i, j int) {
		ints[i], ints[j] = ints[j], ints[i]
	})
}

func (g *rng) shuffleBools(b []bool) {
	g.r.Shuffle(len(b), func(i, j int) {
		b[i], b[j] = b[j], b[i]
	})
}

func (g *rng) marshal() []byte {
	b, err := g.src.MarshalBinary()
	if err != nil {
		return nil
	}
	return b
}

func (g *rng) unmarshal(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if err := g.src.UnmarshalBinary(b); err != nil {
		return errors.Wrap(err, "failed to restore random generator")
	}
	return nil
}
