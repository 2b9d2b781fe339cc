package tree

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"archcheck/internal/graph"
)

// Node is one element of the display tree: a package segment or a class.
type Node struct {
	Name     string      // last name segment
	FullName string      // dotted name from the root
	Class    *graph.Node // set when a class has this full name

	parent   *Node
	children []*Node
	folded   bool
	visible  bool
}

// IsLeaf reports whether the node has no original children.
func (n *Node) IsLeaf() bool {
	return len(n.children) == 0
}

// Children returns the original children, ignoring filter and fold.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

func (n *Node) Parent() *Node {
	return n.parent
}

// CurrentChildren is the original children minus those hidden by the active
// filter, or nothing while the node is folded.
func (n *Node) CurrentChildren() []*Node {
	if n.folded {
		return nil
	}
	out := make([]*Node, 0, len(n.children))
	for _, c := range n.children {
		if c.visible {
			out = append(out, c)
		}
	}
	return out
}

func (n *Node) Visible() bool {
	return n.visible
}

func (n *Node) Folded() bool {
	return n.folded
}

// Fold collapses the node. Leaves cannot be folded.
func (n *Node) Fold() {
	if !n.IsLeaf() {
		n.folded = true
	}
}

func (n *Node) Unfold() {
	n.folded = false
}

// ToggleFold flips the collapsed state of non-leaf nodes.
func (n *Node) ToggleFold() {
	if !n.IsLeaf() {
		n.folded = !n.folded
	}
}

// Tree projects the classes of a graph onto their package hierarchy.
type Tree struct {
	Root   *Node
	filter NameFilter
	index  map[string]*Node
	order  []*Node // breadth-first, root first
}

// Build creates the display tree of g's imported classes. Stubs are left out.
func Build(g *graph.Graph) *Tree {
	t := &Tree{
		Root:  &Node{},
		index: make(map[string]*Node),
	}
	for _, cls := range g.Classes() {
		t.insert(cls)
	}

	queue := []*Node{t.Root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		sort.Slice(n.children, func(i, j int) bool { return n.children[i].Name < n.children[j].Name })
		t.order = append(t.order, n)
		queue = append(queue, n.children...)
	}
	t.refresh()
	return t
}

func (t *Tree) insert(cls *graph.Node) {
	cur := t.Root
	for _, seg := range strings.Split(cls.Name, ".") {
		full := seg
		if cur.FullName != "" {
			full = cur.FullName + "." + seg
		}
		next, ok := t.index[full]
		if !ok {
			next = &Node{Name: seg, FullName: full, parent: cur}
			cur.children = append(cur.children, next)
			t.index[full] = next
		}
		cur = next
	}
	cur.Class = cls
}

// Find returns the node with the given full name.
func (t *Tree) Find(fullName string) (*Node, bool) {
	n, ok := t.index[fullName]
	return n, ok
}

func (t *Tree) Filter() NameFilter {
	return t.filter
}

// SetFilter applies f and recomputes visibility. Fold state is kept.
func (t *Tree) SetFilter(f NameFilter) {
	t.filter = f
	t.refresh()
}

// refresh computes visibility bottom-up: a class is visible when the filter
// matches its full name, any other node when a descendant is visible.
func (t *Tree) refresh() {
	match := t.filter.Matcher()
	for i := len(t.order) - 1; i >= 0; i-- {
		n := t.order[i]
		n.visible = n.Class != nil && match(n.FullName)
		for _, c := range n.children {
			if c.visible {
				n.visible = true
				break
			}
		}
	}
}

// Render writes the visible tree, one node per line, indented by depth.
// Folded nodes are marked with "+".
func (t *Tree) Render(w io.Writer) error {
	type frame struct {
		node  *Node
		depth int
	}
	var stack []frame
	push := func(children []*Node, depth int) {
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{children[i], depth})
		}
	}
	push(t.Root.CurrentChildren(), 0)

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		marker := ""
		if f.node.folded {
			marker = " +"
		}
		if _, err := fmt.Fprintf(w, "%s%s%s\n", strings.Repeat("  ", f.depth), f.node.Name, marker); err != nil {
			return err
		}
		push(f.node.CurrentChildren(), f.depth+1)
	}
	return nil
}
