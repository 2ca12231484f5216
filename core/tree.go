package core

// tree.go implements the arena-style sparse Merkle tree shape called for in
// spec §9's re-architecture guidance: rather than a pointer-linked node
// graph, each level is a flat map from level-major position to the node's
// folded hash, with the empty-subtree hash at every level precomputed once.
// A batch of updates is applied through a treeOverlay, which stages writes
// in a side map and is discarded wholesale on any precondition failure —
// the copy-on-write behaviour spec §4.1 requires without copying the tree
// itself.

type nodePos struct {
	level uint8
	index uint64
}

// sparseTree is a fixed-depth binary Merkle tree over a 2^depth leaf space,
// storing only touched positions; every other position reads back the
// precomputed empty-subtree hash for its level.
type sparseTree struct {
	depth  int
	empty  []Fr // empty[0] = empty leaf value, empty[depth] = empty root
	nodes  map[nodePos]Fr
	hasher Hasher
}

func computeEmptyHashes(depth int, leafEmpty Fr, hasher Hasher) []Fr {
	empty := make([]Fr, depth+1)
	empty[0] = leafEmpty
	for i := 1; i <= depth; i++ {
		empty[i] = hasher.Hash(empty[i-1], empty[i-1])
	}
	return empty
}

func newSparseTree(depth int, leafEmpty Fr, hasher Hasher) *sparseTree {
	return &sparseTree{
		depth:  depth,
		empty:  computeEmptyHashes(depth, leafEmpty, hasher),
		nodes:  make(map[nodePos]Fr),
		hasher: hasher,
	}
}

func (t *sparseTree) nodeAt(level uint8, index uint64) Fr {
	if v, ok := t.nodes[nodePos{level, index}]; ok {
		return v
	}
	return t.empty[level]
}

func (t *sparseTree) root() Fr { return t.nodeAt(uint8(t.depth), 0) }

// auditPath returns the sibling hash at each level from leaf to root,
// walking a never-written position returns the cached empty-subtree hash.
func (t *sparseTree) auditPath(index uint64) []Fr {
	path := make([]Fr, t.depth)
	idx := index
	for lvl := 0; lvl < t.depth; lvl++ {
		path[lvl] = t.nodeAt(uint8(lvl), idx^1)
		idx >>= 1
	}
	return path
}

// setLeaf writes a leaf and recomputes every ancestor directly, without an
// overlay. Used outside batch application (e.g. tree construction from a
// trusted snapshot).
func (t *sparseTree) setLeaf(index uint64, leaf Fr) {
	ov := t.beginBatch()
	ov.setLeaf(index, leaf)
	ov.commit()
}

func (t *sparseTree) beginBatch() *treeOverlay {
	return &treeOverlay{base: t, overlay: make(map[nodePos]Fr)}
}

// treeOverlay stages writes for one atomic batch of updates. Reads fall
// through to the overlay first, then the underlying committed tree.
type treeOverlay struct {
	base    *sparseTree
	overlay map[nodePos]Fr
}

func (o *treeOverlay) nodeAt(level uint8, index uint64) Fr {
	if v, ok := o.overlay[nodePos{level, index}]; ok {
		return v
	}
	return o.base.nodeAt(level, index)
}

func (o *treeOverlay) leafAt(index uint64) Fr { return o.nodeAt(0, index) }

func (o *treeOverlay) setLeaf(index uint64, leaf Fr) {
	idx := index
	o.overlay[nodePos{0, idx}] = leaf
	for lvl := uint8(0); int(lvl) < o.base.depth; lvl++ {
		parentIdx := idx >> 1
		siblingIdx := idx ^ 1
		var left, right Fr
		if idx%2 == 0 {
			left, right = o.nodeAt(lvl, idx), o.nodeAt(lvl, siblingIdx)
		} else {
			left, right = o.nodeAt(lvl, siblingIdx), o.nodeAt(lvl, idx)
		}
		parent := o.base.hasher.Hash(left, right)
		o.overlay[nodePos{lvl + 1, parentIdx}] = parent
		idx = parentIdx
	}
}

func (o *treeOverlay) root() Fr { return o.nodeAt(uint8(o.base.depth), 0) }

// auditPath mirrors sparseTree.auditPath but reads through the overlay,
// used by callers that need a witness against the not-yet-committed state
// of an in-flight batch.
func (o *treeOverlay) auditPath(index uint64) []Fr {
	path := make([]Fr, o.base.depth)
	idx := index
	for lvl := 0; lvl < o.base.depth; lvl++ {
		path[lvl] = o.nodeAt(uint8(lvl), idx^1)
		idx >>= 1
	}
	return path
}

// commit merges every staged write into the base tree. Discarding an
// overlay instead (simply letting it go out of scope) leaves the base tree
// byte-for-byte as it was before the batch began.
func (o *treeOverlay) commit() {
	for k, v := range o.overlay {
		o.base.nodes[k] = v
	}
}
