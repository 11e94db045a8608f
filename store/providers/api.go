package providers

import (
	"crypto/sha256"
	"hash"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	gnarkhash "github.com/consensys/gnark-crypto/hash"
	"github.com/jinzhu/gorm"
	uuid "github.com/kthomas/go.uuid"

	"github.com/argus-intel/privacy/common"
	"github.com/argus-intel/privacy/store/providers/merkletree"
	"github.com/argus-intel/privacy/store/providers/smt"
)

// StoreProviderMerkleTree dense merkle tree storage provider; used for
// append-only audit commitments
const StoreProviderMerkleTree = "merkletree"

// StoreProviderSparseMerkleTree sparse merkle tree storage provider; used
// for nullifier sets where non-membership matters
const StoreProviderSparseMerkleTree = "smt"

// StoreProvider provides a common interface to interact with proof and audit
// storage facilities
type StoreProvider interface {
	Contains(val string) bool
	Get(key []byte) (val []byte, err error)
	Height() int
	Insert(val string) (root []byte, err error)
	Root() (root *string, err error)
}

// InitMerkleTreeStoreProvider initializes a durable dense merkle tree; the
// concrete pointer is checked before conversion so a load failure yields a
// nil interface rather than a typed nil
func InitMerkleTreeStoreProvider(db *gorm.DB, id uuid.UUID, curve *string) StoreProvider {
	tree, err := merkletree.LoadDenseTree(db, id, hashFactory(curve))
	if err != nil {
		common.Log.Warning(err.Error())
		return nil
	}
	return tree
}

// InitSparseMerkleTreeStoreProvider initializes a sparse merkle tree
func InitSparseMerkleTreeStoreProvider(db *gorm.DB, id uuid.UUID, curve *string) StoreProvider {
	tree := smt.InitSMT(db, id, hashFactory(curve))
	if tree == nil {
		return nil
	}
	return tree
}

// hashFactory returns a MiMC hash over the named curve, or SHA-256 when no
// curve is given
func hashFactory(curve *string) hash.Hash {
	if curve == nil {
		return sha256.New()
	}

	switch strings.ToLower(*curve) {
	case ecc.BLS12_377.String():
		return gnarkhash.MIMC_BLS12_377.New("seed")
	case ecc.BLS12_381.String():
		return gnarkhash.MIMC_BLS12_381.New("seed")
	case ecc.BN254.String():
		return gnarkhash.MIMC_BN254.New("seed")
	case ecc.BW6_761.String():
		return gnarkhash.MIMC_BW6_761.New("seed")
	default:
		common.Log.Warningf("unknown curve %s; defaulting to sha256 store hashing", *curve)
	}

	return sha256.New()
}
