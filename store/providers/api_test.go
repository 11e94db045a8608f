package providers

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	uuid "github.com/kthomas/go.uuid"
	"github.com/stretchr/testify/require"
)

func mockStoreDatabase(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	db, err := gorm.Open("postgres", sqlDB)
	require.NoError(t, err)
	db.LogMode(false)

	return db, mock
}

func TestInitMerkleTreeStoreProviderFailsToNilInterface(t *testing.T) {
	db, mock := mockStoreDatabase(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT hash FROM hashes`).
		WillReturnError(errors.New("connection reset by peer"))

	id, _ := uuid.NewV4()
	provider := InitMerkleTreeStoreProvider(db, id, nil)

	// a typed nil pointer converted to the interface would compare non-nil
	// here and panic on first use
	if provider != nil {
		t.Fatal("expected nil provider interface when the tree cannot be loaded")
	}
}

func TestInitSparseMerkleTreeStoreProviderFailsToNilInterface(t *testing.T) {
	db, mock := mockStoreDatabase(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT nodes, "values", root FROM trees`).
		WillReturnError(errors.New("connection reset by peer"))

	id, _ := uuid.NewV4()
	provider := InitSparseMerkleTreeStoreProvider(db, id, nil)

	if provider != nil {
		t.Fatal("expected nil provider interface when the tree cannot be loaded")
	}
}

func TestInitMerkleTreeStoreProviderEmptyStore(t *testing.T) {
	db, mock := mockStoreDatabase(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT hash FROM hashes`).
		WillReturnRows(sqlmock.NewRows([]string{"hash"}))

	id, _ := uuid.NewV4()
	provider := InitMerkleTreeStoreProvider(db, id, nil)
	require.NotNil(t, provider)
	require.False(t, provider.Contains("missing"))
}
