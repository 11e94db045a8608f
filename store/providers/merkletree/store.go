package merkletree

import (
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/jinzhu/gorm"
	uuid "github.com/kthomas/go.uuid"

	"github.com/argus-intel/privacy/common"
)

// DurableDenseTree persists every appended leaf hash to the hashes table so
// the in-memory tree can be rebuilt on load
type DurableDenseTree struct {
	*DenseTree

	db *gorm.DB
	id uuid.UUID
}

// LoadDenseTree rebuilds the durable tree for the given store id from the
// hashes table, in insertion order
func LoadDenseTree(db *gorm.DB, id uuid.UUID, h hash.Hash) (*DurableDenseTree, error) {
	tree := NewDenseTree(h)

	rows, err := db.Raw("SELECT hash FROM hashes WHERE store_id = ? ORDER BY id", id).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve merkle tree from store: %s; %s", id, err.Error())
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var leaf string
		if err := rows.Scan(&leaf); err != nil {
			return nil, fmt.Errorf("failed to scan stored hash for store %s; %s", id, err.Error())
		}
		tree.InsertHash(leaf)
		count++
	}

	if count > 0 {
		common.Log.Debugf("imported dense merkle tree for store %s with %d leaves", id, count)
	}

	return &DurableDenseTree{
		DenseTree: tree,
		db:        db,
		id:        id,
	}, nil
}

func (t *DurableDenseTree) persist(leaf string) error {
	result := t.db.Exec("INSERT INTO hashes (store_id, hash) VALUES (?, ?)", t.id, leaf)
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to persist hash within merkle tree: %s", t.id)
	}
	return nil
}

// Add hashes and appends the given data, persisting the leaf
func (t *DurableDenseTree) Add(data []byte) (int, string) {
	index, leaf := t.DenseTree.Add(data)
	if err := t.persist(leaf); err != nil {
		common.Log.Warning(err.Error())
	}
	return index, leaf
}

// Insert appends the given value and returns the new root
func (t *DurableDenseTree) Insert(val string) ([]byte, error) {
	t.Add([]byte(val))

	root, err := t.Root()
	if err != nil {
		return nil, err
	}
	return []byte(*root), nil
}

// Contains reports whether the given value has been appended to the tree
func (t *DurableDenseTree) Contains(val string) bool {
	t.mutex.Lock()
	leaf := t.digest([]byte(val))
	t.mutex.Unlock()
	return t.ContainsHash(leaf)
}

// Get returns the leaf hash at the big-endian uint64 index carried in key
func (t *DurableDenseTree) Get(key []byte) ([]byte, error) {
	if len(key) != 8 {
		return nil, fmt.Errorf("invalid dense merkle tree key; expected 8-byte index, got %d bytes", len(key))
	}

	leaf, err := t.HashAt(int(binary.BigEndian.Uint64(key)))
	if err != nil {
		return nil, err
	}
	return []byte(leaf), nil
}
