package sampler

import (
	"github.com/pkg/errors"
	"github.com/tsawler/go-datasource/dataset"
	"github.com/tsawler/go-datasource/taxonomy"
	"go.uber.org/zap"
)

// Hierarchy is a class sampler whose classes form a taxonomy. Labels can be
// read at any depth of the tree, and training can balance samples across the
// nodes of the current depth rather than across flat classes.
type Hierarchy struct {
	*Class

	tree          *taxonomy.Tree
	depthBalanced bool
	depth         int
	depthIt       []int // round-robin cursor per depth
	depthLabels   []int // label of each sample at the current depth

	savedDepth *depthCursors
}

// NewHierarchy creates a hierarchy sampler. Without opts.Parents every class
// is a root.
func NewHierarchy(store dataset.Store, labels *dataset.Int32Labels, opts Options) (*Hierarchy, error) {
	g := newRNG(&opts)
	c, err := newClass(store, labels, &opts, g, true)
	if err != nil {
		return nil, err
	}

	parents := opts.Parents
	if parents == nil {
		c.logger.Warn("no parents hierarchy specified, initializing with a flat hierarchy")
		parents = taxonomy.Flat(c.nclasses)
	}
	sampleLabels := make([]int, c.n)
	for i := range sampleLabels {
		sampleLabels[i] = labels.Class(i)
	}
	tree, err := taxonomy.Build(c.names, sampleLabels, parents)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: failed to build class hierarchy", c.name)
	}

	h := &Hierarchy{
		Class:       c,
		tree:        tree,
		depthIt:     make([]int, tree.NumDepths()),
		depthLabels: make([]int, c.n),
	}
	if err := h.configure(&opts); err != nil {
		return nil, err
	}
	if err := h.syncExclusion(); err != nil {
		return nil, err
	}
	if err := h.SetCurrentDepth(opts.Depth); err != nil {
		return nil, err
	}
	h.SetDepthBalanced(opts.DepthBalanced)
	h.InitEpoch()
	h.Pretty()
	return h, nil
}

// Tree returns the class taxonomy
func (h *Hierarchy) Tree() *taxonomy.Tree {
	return h.tree
}

// NClasses returns the number of classes. Labels keep their taxonomy ids in
// a hierarchy, excluded classes included.
func (h *Hierarchy) NClasses() int {
	return h.nclasses
}

// ClassNames returns every class name by id
func (h *Hierarchy) ClassNames() []string {
	return h.names
}

// SetDepthBalanced toggles balancing across the nodes of the current depth
func (h *Hierarchy) SetDepthBalanced(balanced bool) {
	h.depthBalanced = balanced
	if balanced {
		h.logger.Info("Setting training as depth-balanced")
	} else {
		h.logger.Info("Setting training as depth-unbalanced")
	}
}

// DepthBalanced reports whether depth balancing is active
func (h *Hierarchy) DepthBalanced() bool {
	return h.depthBalanced
}

// SetCurrentDepth selects the taxonomy depth labels are read at
func (h *Hierarchy) SetCurrentDepth(depth int) error {
	if depth < 0 || depth >= h.tree.NumDepths() {
		return errors.Wrapf(ErrDepthOutOfRange, "cannot set current depth to %d because maximum depth is %d",
			depth, h.tree.NumDepths()-1)
	}
	h.setDepth(depth)
	return nil
}

func (h *Hierarchy) setDepth(depth int) {
	h.depth = depth
	for i := range h.depthLabels {
		h.depthLabels[i] = h.tree.Label(h.classLabels.Class(i), depth)
	}
}

// CurrentDepth returns the depth labels are read at
func (h *Hierarchy) CurrentDepth() int {
	return h.depth
}

// MaxDepth returns the deepest depth of the taxonomy
func (h *Hierarchy) MaxDepth() int {
	return h.tree.NumDepths() - 1
}

// IncrCurrentDepth moves one level deeper, staying put at the maximum depth
func (h *Hierarchy) IncrCurrentDepth() {
	if h.depth+1 >= h.tree.NumDepths() {
		h.logger.Warn("cannot increment current depth beyond maximum", zap.Int("max_depth", h.MaxDepth()))
		return
	}
	h.setDepth(h.depth + 1)
}

// LimitClasses restricts training to n classes as Class.LimitClasses does.
// Excluded classes also stop serving their own samples in depth-balanced
// training, while their descendants keep being served.
func (h *Hierarchy) LimitClasses(n, offset int, random bool) error {
	if err := h.Class.LimitClasses(n, offset, random); err != nil {
		return err
	}
	return h.syncExclusion()
}

func (h *Hierarchy) syncExclusion() error {
	var excluded []bool
	if h.exclusion {
		excluded = h.excluded
	}
	if err := h.tree.Exclude(excluded); err != nil {
		return errors.Wrapf(err, "%s: failed to exclude classes from hierarchy", h.name)
	}
	for d := range h.depthIt {
		h.depthIt[d] = 0
	}
	return nil
}

// DepthLabels returns the label of every sample at the current depth
func (h *Hierarchy) DepthLabels() []int {
	out := make([]int, len(h.depthLabels))
	copy(out, h.depthLabels)
	return out
}

// LabelAt returns the label of sample idx at depth d
func (h *Hierarchy) LabelAt(idx, d int) (int, error) {
	if idx < 0 || idx >= h.n {
		return 0, errors.Wrapf(ErrIndexOutOfRange, "sample %d", idx)
	}
	return h.tree.Label(h.classLabels.Class(idx), d), nil
}

// CurrentClass returns the label of the current sample at the current depth
func (h *Hierarchy) CurrentClass() int {
	return h.depthLabels[h.it]
}

// CurrentLabel returns the current depth label, biased and scaled
func (h *Hierarchy) CurrentLabel() []float32 {
	return []float32{h.affine(float32(h.depthLabels[h.it]))}
}

// IsParentOf reports whether class l1 is l2 or one of its ancestors
func (h *Hierarchy) IsParentOf(l1, l2 int) (bool, error) {
	if l2 < 0 || l2 >= h.tree.Len() {
		return false, errors.Wrapf(taxonomy.ErrDanglingParent, "node %d not found", l2)
	}
	return h.tree.IsAncestor(l1, l2), nil
}

// Path formats the ancestry of class l, leaf first
func (h *Hierarchy) Path(l int) string {
	return h.tree.PathString(l)
}

// NextTrain serves the next sample. When depth-balanced, the nodes of the
// current depth, plus shallower nodes holding samples, are served in turn
// and every sample served is picked.
func (h *Hierarchy) NextTrain() (bool, error) {
	if h.testOnly {
		return false, errors.Wrapf(ErrTestOnly, "%s: NextTrain", h.name)
	}
	if !h.depthBalanced {
		return h.Class.NextTrain()
	}

	nodes := h.tree.CompleteDepth(h.depth)
	for tries := 0; ; tries++ {
		if tries >= len(nodes) {
			return false, errors.Wrapf(ErrNoSamples, "%s: no node at depth %d holds samples", h.name, h.depth)
		}
		node := nodes[h.depthIt[h.depth]]
		h.depthIt[h.depth]++
		if h.depthIt[h.depth] >= len(nodes) {
			h.depthIt[h.depth] = 0
		}
		if h.tree.Node(node).Empty() {
			continue
		}

		idx, err := h.tree.Next(node)
		if err != nil {
			return false, err
		}
		h.it = idx
		break
	}

	if h.balanced {
		h.remaining[h.derived[h.it]]--
	}
	h.epochCnt++
	h.recordPick()
	return true, nil
}

// InitEpoch resets epoch counters. Depth-balanced epochs run until every
// class has been served as many times as it has samples.
func (h *Hierarchy) InitEpoch() {
	h.Class.InitEpoch()
}
