// Package taxonomy arranges classes into a tree and draws samples from it so
// that every node is served as often as each of its siblings, at any depth.
package taxonomy

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// NoParent is the parent id of a root class
const NoParent = -1

// Pair links a child class to its parent. Parent is NoParent for roots.
type Pair struct {
	Child  int `csv:"child"`
	Parent int `csv:"parent"`
}

// Node is one class of the taxonomy. Nodes live in the arena of their Tree
// and refer to each other by label.
type Node struct {
	Label  int
	Name   string
	Parent int
	Depth  int

	children []int
	samples  []int
	nonEmpty bool // this node or a descendant holds drawable samples
	internal bool // this node holds drawable samples itself
	excluded bool

	childIt  int
	sampleIt int
}

// Children returns the labels of the node's children, in insertion order
func (n *Node) Children() []int {
	return n.children
}

// Samples returns the indices of samples labelled exactly with this node
func (n *Node) Samples() []int {
	return n.samples
}

// NumSamples returns the number of internal samples
func (n *Node) NumSamples() int {
	return len(n.samples)
}

// Empty reports whether no drawable sample exists in the node's subtree
func (n *Node) Empty() bool {
	return !n.nonEmpty
}

// InternallyEmpty reports whether the node itself holds no drawable sample
func (n *Node) InternallyEmpty() bool {
	return !n.internal
}

// Excluded reports whether the node's own samples are withheld from Next
func (n *Node) Excluded() bool {
	return n.excluded
}

// Cursor is the iteration position of a node
type Cursor struct {
	Child  int `json:"child"`
	Sample int `json:"sample"`
}

// Tree is an arena of nodes indexed by class label
type Tree struct {
	nodes    []Node
	depths   [][]int
	complete [][]int
	byDepth  []int
}

// Build creates a tree with one node per name, assigns every sample index i
// to the node labels[i], and links nodes following parents. A nil parents
// table yields a flat tree of roots.
func Build(names []string, labels []int, parents []Pair) (*Tree, error) {
	t := &Tree{nodes: make([]Node, len(names))}
	for l, name := range names {
		if name == "" {
			name = strconv.Itoa(l)
		}
		t.nodes[l] = Node{Label: l, Name: name, Parent: NoParent}
	}

	for i, l := range labels {
		if l < 0 || l >= len(t.nodes) {
			return nil, errors.Wrapf(ErrLabelOutOfRange, "sample %d has label %d, expected [0, %d)", i, l, len(t.nodes))
		}
		t.addSample(l, i)
	}

	for _, p := range parents {
		if p.Child < 0 || p.Child >= len(t.nodes) {
			return nil, errors.Wrapf(ErrDanglingParent, "no node with id %d", p.Child)
		}
		if p.Parent == NoParent {
			continue
		}
		if p.Parent < 0 || p.Parent >= len(t.nodes) {
			return nil, errors.Wrapf(ErrDanglingParent, "parent id %d of node %d exceeds number of classes %d", p.Parent, p.Child, len(t.nodes))
		}
		if err := t.addChild(p.Parent, p.Child); err != nil {
			return nil, err
		}
	}

	t.assignDepths()
	return t, nil
}

func (t *Tree) addSample(l, idx int) {
	n := &t.nodes[l]
	n.samples = append(n.samples, idx)
	n.internal = true
	t.setNonEmpty(l)
}

func (t *Tree) setNonEmpty(l int) {
	for ; l != NoParent; l = t.nodes[l].Parent {
		if t.nodes[l].nonEmpty {
			// ancestors were flagged when this node was
			return
		}
		t.nodes[l].nonEmpty = true
	}
}

func (t *Tree) addChild(parent, child int) error {
	c := &t.nodes[child]
	if c.Parent == parent {
		return errors.Wrapf(ErrDuplicateChild, "node %s already child of %s", c.Name, t.nodes[parent].Name)
	}
	if c.Parent != NoParent {
		return errors.Wrapf(ErrDuplicateChild, "node %s already has parent %s, cannot add it to %s",
			c.Name, t.nodes[c.Parent].Name, t.nodes[parent].Name)
	}
	if t.IsAncestor(child, parent) {
		return errors.Wrapf(ErrCycle, "node %s is an ancestor of %s", c.Name, t.nodes[parent].Name)
	}

	p := &t.nodes[parent]
	p.children = append(p.children, child)
	c.Parent = parent
	if c.nonEmpty {
		t.setNonEmpty(parent)
	}
	return nil
}

func (t *Tree) assignDepths() {
	maxDepth := 0
	for l := range t.nodes {
		if t.nodes[l].Parent == NoParent {
			if d := t.setDepth(l, 0); d > maxDepth {
				maxDepth = d
			}
		}
	}

	t.depths = make([][]int, maxDepth+1)
	for l := range t.nodes {
		n := &t.nodes[l]
		t.depths[n.Depth] = append(t.depths[n.Depth], l)
	}
	t.byDepth = t.byDepth[:0]
	for _, d := range t.depths {
		t.byDepth = append(t.byDepth, d...)
	}
	t.fillComplete()
}

func (t *Tree) fillComplete() {
	maxDepth := len(t.depths) - 1
	t.complete = make([][]int, maxDepth+1)
	for l := range t.nodes {
		n := &t.nodes[l]
		t.complete[n.Depth] = append(t.complete[n.Depth], l)
		if n.internal {
			for d := n.Depth + 1; d <= maxDepth; d++ {
				t.complete[d] = append(t.complete[d], l)
			}
		}
	}
}

// Exclude withholds the own samples of every node l with excluded[l] set.
// Excluded nodes still serve their children. A nil slice clears exclusion.
func (t *Tree) Exclude(excluded []bool) error {
	if excluded != nil && len(excluded) != len(t.nodes) {
		return errors.Errorf("expected %d exclusion flags, got %d", len(t.nodes), len(excluded))
	}
	for l := range t.nodes {
		n := &t.nodes[l]
		n.excluded = excluded != nil && excluded[l]
		n.internal = len(n.samples) > 0 && !n.excluded
		n.nonEmpty = false
	}
	for l := range t.nodes {
		if t.nodes[l].internal {
			t.setNonEmpty(l)
		}
	}
	t.fillComplete()
	return nil
}

func (t *Tree) setDepth(l, d int) int {
	t.nodes[l].Depth = d
	max := d
	for _, c := range t.nodes[l].children {
		if cd := t.setDepth(c, d+1); cd > max {
			max = cd
		}
	}
	return max
}

// Len returns the number of nodes
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Node returns the node of class l
func (t *Tree) Node(l int) *Node {
	return &t.nodes[l]
}

// NumDepths returns the number of depth levels, i.e. max depth + 1
func (t *Tree) NumDepths() int {
	return len(t.depths)
}

// Depth returns the labels of the nodes at exactly depth d
func (t *Tree) Depth(d int) []int {
	return t.depths[d]
}

// CompleteDepth returns the labels of the nodes at depth d plus all
// shallower nodes that hold samples themselves.
func (t *Tree) CompleteDepth(d int) []int {
	return t.complete[d]
}

// NodesByDepth returns all labels ordered by increasing depth
func (t *Tree) NodesByDepth() []int {
	return t.byDepth
}

// Next returns the next sample index of the subtree rooted at l. Each call
// serves, in turn, each non-empty child and then the node's own samples.
func (t *Tree) Next(l int) (int, error) {
	n := &t.nodes[l]
	if !n.nonEmpty {
		return -1, errors.Wrapf(ErrEmptyNode, "cannot draw from node %s", n.Name)
	}

	for {
		if n.childIt >= len(n.children) {
			n.childIt = 0
			if n.internal {
				if n.sampleIt >= len(n.samples) {
					n.sampleIt = 0
				}
				id := n.samples[n.sampleIt]
				n.sampleIt++
				if n.sampleIt == len(n.samples) {
					n.sampleIt = 0
				}
				return id, nil
			}
		}

		c := n.children[n.childIt]
		n.childIt++
		if t.nodes[c].nonEmpty {
			return t.Next(c)
		}
	}
}

// Label returns the label of the ancestor of l (or l itself) that lies at
// depth d or shallower.
func (t *Tree) Label(l, d int) int {
	for {
		n := &t.nodes[l]
		if n.Depth <= d || n.Parent == NoParent {
			return l
		}
		l = n.Parent
	}
}

// IsAncestor reports whether anc is l or one of l's ancestors
func (t *Tree) IsAncestor(anc, l int) bool {
	for ; l != NoParent; l = t.nodes[l].Parent {
		if l == anc {
			return true
		}
	}
	return false
}

// Path returns the names from l up to its root
func (t *Tree) Path(l int) []string {
	var path []string
	for ; l != NoParent; l = t.nodes[l].Parent {
		path = append(path, t.nodes[l].Name)
	}
	return path
}

// PathString formats Path as "leaf <- parent <- root"
func (t *Tree) PathString(l int) string {
	return strings.Join(t.Path(l), " <- ")
}

// Cursors returns the iteration position of every node
func (t *Tree) Cursors() []Cursor {
	out := make([]Cursor, len(t.nodes))
	for l := range t.nodes {
		out[l] = Cursor{Child: t.nodes[l].childIt, Sample: t.nodes[l].sampleIt}
	}
	return out
}

// SetCursors restores positions returned by Cursors
func (t *Tree) SetCursors(c []Cursor) error {
	if len(c) != len(t.nodes) {
		return errors.Errorf("expected %d node cursors, got %d", len(t.nodes), len(c))
	}
	for l := range t.nodes {
		t.nodes[l].childIt = c[l].Child
		t.nodes[l].sampleIt = c[l].Sample
	}
	return nil
}

// Reset rewinds every node cursor
func (t *Tree) Reset() {
	for l := range t.nodes {
		t.nodes[l].childIt = 0
		t.nodes[l].sampleIt = 0
	}
}
