package smt

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"sync"

	"github.com/jinzhu/gorm"
	uuid "github.com/kthomas/go.uuid"
	"github.com/providenetwork/smt"

	"github.com/argus-intel/privacy/common"
)

// SMT wraps a sparse merkle tree with durable snapshots; used for proof
// nullifier commitments where non-membership matters
type SMT struct {
	db    *gorm.DB
	hash  hash.Hash
	id    *uuid.UUID
	mutex *sync.Mutex
	tree  *smt.SparseMerkleTree
}

// InitSMT loads the latest persisted tree snapshot for the given store id,
// or initializes an empty tree
func InitSMT(db *gorm.DB, id uuid.UUID, hash hash.Hash) *SMT {
	tree, err := loadTree(db, id, hash)
	if err != nil {
		common.Log.Warning(err.Error())
		return nil
	}

	if tree == nil {
		tree = smt.NewSparseMerkleTree(smt.NewSimpleMap(), smt.NewSimpleMap(), hash)
	}

	return &SMT{
		db:    db,
		hash:  hash,
		id:    &id,
		mutex: &sync.Mutex{},
		tree:  tree,
	}
}

func loadTree(db *gorm.DB, id uuid.UUID, hash hash.Hash) (*smt.SparseMerkleTree, error) {
	var tree *smt.SparseMerkleTree

	rows, err := db.Raw(`SELECT nodes, "values", root FROM trees WHERE store_id = ? ORDER BY id`, id).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sparse merkle tree from store: %s; %s", id, err.Error())
	}
	defer rows.Close()

	for rows.Next() {
		var nodesRaw json.RawMessage
		var valuesRaw json.RawMessage
		var root string

		err = rows.Scan(&nodesRaw, &valuesRaw, &root)
		if err != nil {
			return nil, fmt.Errorf("failed to scan the store for sparse merkle tree; %s", err.Error())
		}

		var nodes *smt.SimpleMap
		var values *smt.SimpleMap

		json.Unmarshal(nodesRaw, &nodes)
		json.Unmarshal(valuesRaw, &values)
		rootBytes, _ := hex.DecodeString(root)

		tree = smt.ImportSparseMerkleTree(nodes, values, hash, rootBytes)
	}

	if tree != nil {
		common.Log.Debugf("imported sparse merkle tree for store %s; root: %s", id, hex.EncodeToString(tree.Root()))
	}

	return tree, nil
}

// commit snapshots the current tree state to the trees table
func (s *SMT) commit() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	nodes, _ := json.Marshal(s.tree.Nodes())
	values, _ := json.Marshal(s.tree.Values())
	root := s.tree.Root()

	result := s.db.Exec(`INSERT INTO trees (store_id, nodes, "values", root) VALUES (?, ?, ?, ?)`, s.id, nodes, values, hex.EncodeToString(root))
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to persist sparse merkle tree snapshot for store %s", s.id)
	}

	return nil
}

func (s *SMT) digest(val []byte) []byte {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.hash.Reset()
	s.hash.Write(val)
	sum := s.hash.Sum(nil)
	s.hash.Reset()
	return sum
}

// Contains reports whether the given value exists in the tree, verifying the
// membership proof against the current root
func (s *SMT) Contains(val string) bool {
	_val := []byte(val)
	key := s.digest(_val)

	proof, err := s.tree.Prove(key)
	if err != nil {
		common.Log.Warningf("failed to generate merkle proof; %s", err.Error())
		return false
	}

	return smt.VerifyProof(proof, s.tree.Root(), key, _val, s.hash)
}

// Get returns the value stored at the given key
func (s *SMT) Get(key []byte) ([]byte, error) {
	return s.tree.Get(key)
}

// Height returns the height of the tree
func (s *SMT) Height() int {
	return s.tree.Height()
}

// Insert adds the given value keyed on its digest and returns the new root
func (s *SMT) Insert(val string) ([]byte, error) {
	_val := []byte(val)
	key := s.digest(_val)

	root, err := s.tree.Update(key, _val)
	if err != nil {
		return nil, err
	}

	if err := s.commit(); err != nil {
		common.Log.Warning(err.Error())
	}

	return root, nil
}

// Root returns the current root of the tree
func (s *SMT) Root() (*string, error) {
	root := s.tree.Root()
	if len(root) == 0 {
		return nil, errors.New("tree does not contain a valid root")
	}
	return common.StringOrNil(hex.EncodeToString(root)), nil
}
