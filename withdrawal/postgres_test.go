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

package withdrawal

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	uuid "github.com/kthomas/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-intel/privacy/common"
	"github.com/argus-intel/privacy/ledger"
)

type fakeRail struct {
	submissions [][]int64
}

func (r *fakeRail) Submit(sourceID uuid.UUID, denominations []int64) error {
	r.submissions = append(r.submissions, denominations)
	return nil
}

func mockDatabaseConnection(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	db, err := gorm.Open("postgres", sqlDB)
	require.NoError(t, err)
	db.LogMode(false)

	return db, mock
}

func escrowAccountRows(accountID, sourceID uuid.UUID, balance int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "created_at", "source_id", "balance", "total_earned", "total_withdrawn", "audit_store_id"}).
		AddRow(accountID.String(), time.Now(), sourceID.String(), balance, balance, 0, nil)
}

func pendingWithdrawalRows(w *PendingWithdrawal) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "created_at", "source_id", "amount", "scheduled_for", "status", "released_at"}).
		AddRow(w.ID.String(), time.Now(), w.SourceID.String(), w.Amount, *w.ScheduledFor, *w.Status, nil)
}

func duePendingWithdrawal(sourceID uuid.UUID, amount int64) *PendingWithdrawal {
	withdrawalID, _ := uuid.NewV4()
	scheduledFor := time.Now().Add(-time.Minute)

	w := &PendingWithdrawal{
		SourceID:     sourceID,
		Amount:       amount,
		ScheduledFor: &scheduledFor,
		Status:       common.StringOrNil(WithdrawalStatusPending),
	}
	w.ID = withdrawalID
	return w
}

func TestRequestRejectsSecondPendingWithdrawal(t *testing.T) {
	db, mock := mockDatabaseConnection(t)
	defer db.Close()

	sourceID, _ := uuid.NewV4()
	accountID, _ := uuid.NewV4()
	existing := duePendingWithdrawal(sourceID, 20000)

	mock.ExpectQuery(`SELECT \* FROM "escrow_accounts"`).
		WillReturnRows(escrowAccountRows(accountID, sourceID, 1000000))
	mock.ExpectQuery(`SELECT \* FROM "pending_withdrawals"`).
		WillReturnRows(pendingWithdrawalRows(existing))

	withdrawal, err := Request(db, sourceID, 50000)
	assert.ErrorIs(t, err, ErrWithdrawalPending)
	assert.Nil(t, withdrawal)

	// the second request was rejected without touching the table
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestFailsClosedOnInsufficientBalance(t *testing.T) {
	db, mock := mockDatabaseConnection(t)
	defer db.Close()

	sourceID, _ := uuid.NewV4()
	accountID, _ := uuid.NewV4()

	mock.ExpectQuery(`SELECT \* FROM "escrow_accounts"`).
		WillReturnRows(escrowAccountRows(accountID, sourceID, 20000))

	withdrawal, err := Request(db, sourceID, 50000)
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	assert.Nil(t, withdrawal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseDebitsAndTransitionsInOneTransaction(t *testing.T) {
	db, mock := mockDatabaseConnection(t)
	defer db.Close()

	sourceID, _ := uuid.NewV4()
	accountID, _ := uuid.NewV4()
	entryID, _ := uuid.NewV4()
	w := duePendingWithdrawal(sourceID, 30000)

	mock.ExpectQuery(`SELECT \* FROM "pending_withdrawals"`).
		WillReturnRows(pendingWithdrawalRows(w))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "pending_withdrawals" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "escrow_accounts".*FOR UPDATE`).
		WillReturnRows(escrowAccountRows(accountID, sourceID, 100000))
	mock.ExpectQuery(`INSERT INTO "ledger_entries"`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), ledger.EntryTypeDebit, int64(30000), "withdrawal:"+w.ID.String(), int64(70000)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(entryID.String()))
	mock.ExpectExec(`UPDATE "escrow_accounts" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	// the audit commitment resolves the account again after the commit; an
	// empty result only downgrades the commitment to a warning
	mock.ExpectQuery(`SELECT \* FROM "escrow_accounts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rail := &fakeRail{}
	err := w.release(db, rail)
	require.NoError(t, err)

	require.Len(t, rail.submissions, 1)
	var sum int64
	for _, d := range rail.submissions[0] {
		sum += d
	}
	assert.Equal(t, int64(30000), sum)

	// the status transition and the debit shared a single begin/commit pair,
	// so a crash between them cannot leave a debited row pending
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseSkipsWhenCancellationWinsRace(t *testing.T) {
	db, mock := mockDatabaseConnection(t)
	defer db.Close()

	sourceID, _ := uuid.NewV4()
	w := duePendingWithdrawal(sourceID, 30000)

	mock.ExpectQuery(`SELECT \* FROM "pending_withdrawals"`).
		WillReturnRows(pendingWithdrawalRows(w))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "pending_withdrawals" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	rail := &fakeRail{}
	err := w.release(db, rail)
	require.NoError(t, err)

	// the compare-and-swap lost; no debit, no rail submission
	assert.Empty(t, rail.submissions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseCancelsWhenBalanceShrankAfterScheduling(t *testing.T) {
	db, mock := mockDatabaseConnection(t)
	defer db.Close()

	sourceID, _ := uuid.NewV4()
	accountID, _ := uuid.NewV4()
	w := duePendingWithdrawal(sourceID, 30000)

	mock.ExpectQuery(`SELECT \* FROM "pending_withdrawals"`).
		WillReturnRows(pendingWithdrawalRows(w))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "pending_withdrawals" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM "escrow_accounts".*FOR UPDATE`).
		WillReturnRows(escrowAccountRows(accountID, sourceID, 10000))
	mock.ExpectRollback()
	mock.ExpectExec(`UPDATE "pending_withdrawals" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rail := &fakeRail{}
	err := w.release(db, rail)
	require.NoError(t, err)

	// the release rolled back entirely and the row was cancelled instead
	assert.Empty(t, rail.submissions)
	assert.NoError(t, mock.ExpectationsWereMet())
}
