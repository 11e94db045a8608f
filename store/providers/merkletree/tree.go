package merkletree

import (
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
	"sync"
)

// DenseTree is an append-only binary merkle tree held in memory. Leaves are
// hex-encoded hashes; an odd node at any level is paired with itself. The
// zero tree has no root.
type DenseTree struct {
	mutex  sync.Mutex
	hash   hash.Hash
	levels [][]string // levels[0] = leaves, levels[len-1] = root level
}

// NewDenseTree initializes an empty dense merkle tree using the given hash
func NewDenseTree(h hash.Hash) *DenseTree {
	return &DenseTree{
		hash:   h,
		levels: [][]string{{}},
	}
}

func (t *DenseTree) digest(data []byte) string {
	t.hash.Reset()
	t.hash.Write(data)
	sum := t.hash.Sum(nil)
	t.hash.Reset()
	return hex.EncodeToString(sum)
}

// Add hashes the given data and appends it as a leaf, returning the leaf
// index and its hex hash
func (t *DenseTree) Add(data []byte) (int, string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	leaf := t.digest(data)
	return t.insert(leaf), leaf
}

// InsertHash appends an already-hashed hex leaf, returning its index
func (t *DenseTree) InsertHash(leaf string) int {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.insert(leaf)
}

func (t *DenseTree) insert(leaf string) int {
	t.levels[0] = append(t.levels[0], leaf)
	t.recalculate()
	return len(t.levels[0]) - 1
}

func (t *DenseTree) recalculate() {
	level := 0
	for len(t.levels[level]) > 1 {
		nodes := t.levels[level]
		if level+1 >= len(t.levels) {
			t.levels = append(t.levels, []string{})
		}

		parents := make([]string, 0, (len(nodes)+1)/2)
		for i := 0; i < len(nodes); i += 2 {
			left := nodes[i]
			right := left
			if i+1 < len(nodes) {
				right = nodes[i+1]
			}
			parents = append(parents, t.digest([]byte(left+right)))
		}

		t.levels[level+1] = parents
		level++
	}

	// drop stale upper levels after the root level
	t.levels = t.levels[:level+1]
}

// Length returns the number of leaves
func (t *DenseTree) Length() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.levels[0])
}

// Height returns the number of levels in the tree
func (t *DenseTree) Height() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.levels)
}

// Root returns the current root hash
func (t *DenseTree) Root() (*string, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	top := t.levels[len(t.levels)-1]
	if len(top) == 0 {
		return nil, fmt.Errorf("tree does not contain a valid root")
	}

	root := top[0]
	return &root, nil
}

// HashAt returns the leaf hash at the given index
func (t *DenseTree) HashAt(index int) (string, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if index < 0 || index >= len(t.levels[0]) {
		return "", fmt.Errorf("leaf index %d out of range; tree has %d leaves", index, len(t.levels[0]))
	}

	return t.levels[0][index], nil
}

// ContainsHash reports whether the given hex leaf hash exists in the tree
func (t *DenseTree) ContainsHash(leaf string) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	for _, l := range t.levels[0] {
		if strings.EqualFold(l, leaf) {
			return true
		}
	}
	return false
}

// ProofPath returns the sibling hashes from the leaf at the given index up
// to the root, ordered leaf-level first
func (t *DenseTree) ProofPath(index int) ([]string, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if index < 0 || index >= len(t.levels[0]) {
		return nil, fmt.Errorf("leaf index %d out of range", index)
	}

	path := make([]string, 0, len(t.levels)-1)
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		sibling := index ^ 1
		if sibling >= len(nodes) {
			sibling = index // odd node pairs with itself
		}
		path = append(path, nodes[sibling])
		index /= 2
	}

	return path, nil
}

// VerifyPath recomputes the root from the given data, leaf index and sibling
// path, and compares it to the current root
func (t *DenseTree) VerifyPath(data []byte, index int, path []string) bool {
	root, err := t.Root()
	if err != nil {
		return false
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	node := t.digest(data)
	for _, sibling := range path {
		if index%2 == 0 {
			node = t.digest([]byte(node + sibling))
		} else {
			node = t.digest([]byte(sibling + node))
		}
		index /= 2
	}

	return strings.EqualFold(node, *root)
}
