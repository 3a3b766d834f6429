package paramgrid

import (
	"slices"
	"sort"
)

// Tree is a layered index over one parameter's records. Each level of the
// trie branches on one label, in grid order; records that omit a level's
// label hang off that level's wildcard branch. The record list it holds is
// the merge result returned by Update, so a Tree doubles as the store for a
// Parameter. A Tree is not safe for concurrent use.
type Tree struct {
	grid    *Grid
	levels  []string
	root    *node
	nextID  int
	records map[int]ValueObject
	order   []int
	bySig   map[string][]int
}

type node struct {
	children map[LabelValue]*node
	wildcard *node
	ids      map[int]struct{}
}

func newNode() *node {
	return &node{children: map[LabelValue]*node{}}
}

func (n *node) empty() bool {
	return len(n.children) == 0 && n.wildcard == nil && len(n.ids) == 0
}

// BuildTree indexes records. grid only decides the branching order; a nil
// grid orders levels by label name.
func BuildTree(records []ValueObject, grid *Grid) *Tree {
	t := &Tree{
		grid:    grid,
		records: make(map[int]ValueObject, len(records)),
		order:   make([]int, 0, len(records)),
		bySig:   make(map[string][]int, len(records)),
	}
	for _, vo := range records {
		t.add(vo)
	}
	t.levels = levelsFor(grid, records)
	t.reindex()
	return t
}

// levelsFor orders the labels used by records: grid labels first, in grid
// order, then labels the grid does not declare, sorted.
func levelsFor(grid *Grid, records []ValueObject) []string {
	used := map[string]struct{}{}
	for _, vo := range records {
		for name := range vo.Labels {
			used[name] = struct{}{}
		}
	}
	levels := make([]string, 0, len(used))
	for _, name := range grid.Labels() {
		if _, ok := used[name]; ok {
			levels = append(levels, name)
			delete(used, name)
		}
	}
	return append(levels, sortedKeys(used)...)
}

func (t *Tree) add(vo ValueObject) int {
	id := t.nextID
	t.nextID++
	t.records[id] = vo
	t.order = append(t.order, id)
	sig := vo.Signature()
	t.bySig[sig] = append(t.bySig[sig], id)
	return id
}

func (t *Tree) reindex() {
	t.root = newNode()
	for _, id := range t.order {
		t.insertPath(id, t.records[id])
	}
}

func (t *Tree) insertPath(id int, vo ValueObject) {
	n := t.root
	for _, level := range t.levels {
		v, ok := vo.Labels[level]
		if !ok {
			if n.wildcard == nil {
				n.wildcard = newNode()
			}
			n = n.wildcard
			continue
		}
		child, ok := n.children[v]
		if !ok {
			child = newNode()
			n.children[v] = child
		}
		n = child
	}
	if n.ids == nil {
		n.ids = map[int]struct{}{}
	}
	n.ids[id] = struct{}{}
}

func (t *Tree) removePath(n *node, depth int, id int, vo ValueObject) {
	if n == nil {
		return
	}
	if depth == len(t.levels) {
		delete(n.ids, id)
		return
	}
	level := t.levels[depth]
	v, ok := vo.Labels[level]
	if !ok {
		t.removePath(n.wildcard, depth+1, id, vo)
		if n.wildcard != nil && n.wildcard.empty() {
			n.wildcard = nil
		}
		return
	}
	child := n.children[v]
	t.removePath(child, depth+1, id, vo)
	if child != nil && child.empty() {
		delete(n.children, v)
	}
}

func (t *Tree) remove(id int) {
	vo, ok := t.records[id]
	if !ok {
		return
	}
	t.removePath(t.root, 0, id, vo)
	delete(t.records, id)
	ix := sort.SearchInts(t.order, id)
	if ix < len(t.order) && t.order[ix] == id {
		t.order = append(t.order[:ix], t.order[ix+1:]...)
	}
}

func (t *Tree) knowsLabels(vo ValueObject) bool {
	for name := range vo.Labels {
		if !slices.Contains(t.levels, name) {
			return false
		}
	}
	return true
}

// Len reports the number of indexed records.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// Levels returns the branching order of the index.
func (t *Tree) Levels() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.levels...)
}

// Records returns the indexed records in merge order.
func (t *Tree) Records() []ValueObject {
	if t == nil {
		return nil
	}
	out := make([]ValueObject, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.records[id])
	}
	return out
}

// Select resolves an equality query against the index. Semantics match
// SelectEq.
func (t *Tree) Select(filter Filter, exact bool) []ValueObject {
	if len(filter) == 0 {
		return t.Records()
	}
	return t.selectWith(filter, exact, nil)
}

// SelectGt resolves a greater-than query against the index using grid order.
// Semantics match SelectGt.
func (t *Tree) SelectGt(filter Filter, exact bool, grid *Grid) ([]ValueObject, error) {
	if len(filter) == 0 {
		return t.Records(), nil
	}
	if err := checkFilterAgainstGrid(filter, grid); err != nil {
		return nil, err
	}
	return t.selectWith(filter, exact, grid), nil
}

// selectWith runs an equality query when grid is nil and a greater-than
// query otherwise.
func (t *Tree) selectWith(filter Filter, exact bool, grid *Grid) []ValueObject {
	for label := range filter {
		if !slices.Contains(t.levels, label) && exact {
			// No record carries label, so none can match it exactly.
			return []ValueObject{}
		}
	}
	q := treeQuery{filter: filter, exact: exact, hits: map[int]struct{}{}}
	if grid != nil {
		q.gt = gtComparator(grid)
	}
	t.collect(t.root, 0, &q)

	ids := make([]int, 0, len(q.hits))
	for id := range q.hits {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]ValueObject, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.records[id])
	}
	return out
}

type treeQuery struct {
	filter Filter
	exact  bool
	gt     comparator
	hits   map[int]struct{}
}

func (t *Tree) collect(n *node, depth int, q *treeQuery) {
	if n == nil {
		return
	}
	if depth == len(t.levels) {
		for id := range n.ids {
			q.hits[id] = struct{}{}
		}
		return
	}
	label := t.levels[depth]
	want, filtered := q.filter[label]
	switch {
	case !filtered && q.exact:
		t.collect(n.wildcard, depth+1, q)
	case !filtered:
		for _, child := range n.children {
			t.collect(child, depth+1, q)
		}
		t.collect(n.wildcard, depth+1, q)
	case q.gt != nil:
		for key, child := range n.children {
			if q.gt(label, key, want) {
				t.collect(child, depth+1, q)
			}
		}
		if !q.exact {
			t.collect(n.wildcard, depth+1, q)
		}
	default:
		for _, w := range want {
			t.collect(n.children[w], depth+1, q)
		}
		if !q.exact {
			t.collect(n.wildcard, depth+1, q)
		}
	}
}

// Update merges records into the index in input order and returns the
// merged record list.
//
// A record whose label signature matches indexed records replaces them
// (duplicates collapse to one); a record with a nil Value deletes them and
// inserts nothing; any other record is appended. Later records win over
// earlier ones. The trie is maintained in place and only rebuilt when a
// record brings a label the index has not seen.
func (t *Tree) Update(records []ValueObject) []ValueObject {
	rebuild := false
	for _, vo := range records {
		sig := vo.Signature()
		ids := t.bySig[sig]
		if vo.IsDeletion() {
			for _, id := range ids {
				t.remove(id)
			}
			delete(t.bySig, sig)
			continue
		}
		if len(ids) > 0 {
			keep := ids[0]
			for _, id := range ids[1:] {
				t.remove(id)
			}
			t.records[keep] = vo.Clone()
			t.bySig[sig] = []int{keep}
			continue
		}
		stored := vo.Clone()
		id := t.add(stored)
		if rebuild || !t.knowsLabels(stored) {
			rebuild = true
			continue
		}
		t.insertPath(id, stored)
	}
	if rebuild {
		t.levels = levelsFor(t.grid, t.Records())
		t.reindex()
	}
	return t.Records()
}

// Merge applies records to tree and returns the merged list together with
// the updated index. A nil tree starts empty.
func Merge(tree *Tree, records []ValueObject) ([]ValueObject, *Tree) {
	if tree == nil {
		tree = BuildTree(nil, nil)
	}
	return tree.Update(records), tree
}
