package store

import (
	"fmt"

	dbconf "github.com/kthomas/go-db-config"
	uuid "github.com/kthomas/go.uuid"

	"github.com/argus-intel/privacy/common"
	"github.com/argus-intel/privacy/store/providers"
	provide "github.com/provideplatform/provide-go/api"
)

// Store is a durable merkle storage facility; each store is owned by exactly
// one consumer (an escrow account's audit trail or a prover's nullifier set)
type Store struct {
	provide.Model

	OwnerID *uuid.UUID `sql:"not null;type:uuid" json:"owner_id"`

	Name        *string `json:"name"`
	Description *string `json:"description"`
	Provider    *string `json:"provider"`
	Curve       *string `json:"curve"`
}

// Find loads a store by id
func Find(storeID uuid.UUID) *Store {
	db := dbconf.DatabaseConnection()
	store := &Store{}
	db.Where("stores.id = ?", storeID).Find(&store)
	if store.ID == uuid.Nil {
		return nil
	}
	return store
}

// FindByName loads a store by its unique name
func FindByName(name string) *Store {
	db := dbconf.DatabaseConnection()
	store := &Store{}
	db.Where("stores.name = ?", name).Find(&store)
	if store.ID == uuid.Nil {
		return nil
	}
	return store
}

func (s *Store) storeProviderFactory() providers.StoreProvider {
	if s.Provider == nil {
		common.Log.Warning("failed to initialize store provider; no provider defined")
		return nil
	}

	switch *s.Provider {
	case providers.StoreProviderMerkleTree:
		return providers.InitMerkleTreeStoreProvider(dbconf.DatabaseConnection(), s.ID, s.Curve)
	case providers.StoreProviderSparseMerkleTree:
		return providers.InitSparseMerkleTreeStoreProvider(dbconf.DatabaseConnection(), s.ID, s.Curve)
	default:
		common.Log.Warningf("failed to initialize store provider; unknown provider: %s", *s.Provider)
	}

	return nil
}

// Create a store
func (s *Store) Create() bool {
	if !s.validate() {
		return false
	}

	db := dbconf.DatabaseConnection()

	if db.NewRecord(s) {
		result := db.Create(&s)
		rowsAffected := result.RowsAffected
		errors := result.GetErrors()
		if len(errors) > 0 {
			for _, err := range errors {
				s.Errors = append(s.Errors, &provide.Error{
					Message: common.StringOrNil(err.Error()),
				})
			}
		}
		if !db.NewRecord(s) {
			success := rowsAffected > 0
			if success {
				common.Log.Debugf("initialized %s store: %s", *s.Provider, s.ID)
			}

			return success
		}
	}

	return false
}

// validate the store params
func (s *Store) validate() bool {
	s.Errors = make([]*provide.Error, 0)

	if s.Provider == nil {
		s.Errors = append(s.Errors, &provide.Error{
			Message: common.StringOrNil("store provider required"),
		})
	}

	if s.OwnerID == nil || *s.OwnerID == uuid.Nil {
		s.Errors = append(s.Errors, &provide.Error{
			Message: common.StringOrNil("store owner required"),
		})
	}

	return len(s.Errors) == 0
}

// Contains reports whether the given value exists in the underlying provider
func (s *Store) Contains(val string) bool {
	provider := s.storeProviderFactory()
	if provider == nil {
		return false
	}
	return provider.Contains(val)
}

// Insert a value into the underlying provider, returning the new root
func (s *Store) Insert(val string) ([]byte, error) {
	provider := s.storeProviderFactory()
	if provider == nil {
		return nil, fmt.Errorf("failed to resolve provider for store %s", s.ID)
	}
	return provider.Insert(val)
}

// Get the value at the given key from the underlying provider
func (s *Store) Get(key []byte) ([]byte, error) {
	provider := s.storeProviderFactory()
	if provider == nil {
		return nil, fmt.Errorf("failed to resolve provider for store %s", s.ID)
	}
	return provider.Get(key)
}

// Height returns the height of the underlying tree
func (s *Store) Height() int {
	provider := s.storeProviderFactory()
	if provider == nil {
		return 0
	}
	return provider.Height()
}

// Root returns the current root of the underlying tree
func (s *Store) Root() (*string, error) {
	provider := s.storeProviderFactory()
	if provider == nil {
		return nil, fmt.Errorf("failed to resolve provider for store %s", s.ID)
	}
	return provider.Root()
}
