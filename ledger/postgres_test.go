/*
 * Copyright 2024-2026 Argus Intelligence Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ledger

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	uuid "github.com/kthomas/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockDatabaseConnection(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	db, err := gorm.Open("postgres", sqlDB)
	require.NoError(t, err)
	db.LogMode(false)

	return db, mock
}

func escrowAccountRows(accountID, sourceID uuid.UUID, balance, earned, withdrawn int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "created_at", "source_id", "balance", "total_earned", "total_withdrawn", "audit_store_id"}).
		AddRow(accountID.String(), time.Now(), sourceID.String(), balance, earned, withdrawn, nil)
}

func TestDebitFailsClosedOnInsufficientBalance(t *testing.T) {
	db, mock := mockDatabaseConnection(t)
	defer db.Close()

	sourceID, _ := uuid.NewV4()
	accountID, _ := uuid.NewV4()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "escrow_accounts".*FOR UPDATE`).
		WillReturnRows(escrowAccountRows(accountID, sourceID, 500, 500, 0))
	mock.ExpectRollback()

	entry, err := Debit(db, sourceID, 1000, "withdrawal")
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Nil(t, entry)

	// the transaction rolled back with no entry written
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitRejectsNonPositiveAmount(t *testing.T) {
	db, mock := mockDatabaseConnection(t)
	defer db.Close()

	sourceID, _ := uuid.NewV4()

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := Debit(db, sourceID, 0, "withdrawal")
	assert.Error(t, err)

	_, err = Debit(db, sourceID, -100, "withdrawal")
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDebitTxJoinsCallerTransaction(t *testing.T) {
	db, mock := mockDatabaseConnection(t)
	defer db.Close()

	sourceID, _ := uuid.NewV4()
	accountID, _ := uuid.NewV4()
	entryID, _ := uuid.NewV4()
	reference := "withdrawal:" + entryID.String()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "escrow_accounts".*FOR UPDATE`).
		WillReturnRows(escrowAccountRows(accountID, sourceID, 100000, 100000, 0))
	mock.ExpectQuery(`INSERT INTO "ledger_entries"`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), EntryTypeDebit, int64(30000), reference, int64(70000)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(entryID.String()))
	mock.ExpectExec(`UPDATE "escrow_accounts" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx := db.Begin()
	entry, err := DebitTx(tx, sourceID, 30000, reference)
	require.NoError(t, err)
	tx.Commit()

	assert.Equal(t, int64(70000), entry.BalanceAfter)
	require.NotNil(t, entry.ReferenceType)
	assert.Equal(t, reference, *entry.ReferenceType)

	// exactly one begin/commit pair: the debit rode the caller's transaction
	// rather than committing one of its own
	assert.NoError(t, mock.ExpectationsWereMet())
}
