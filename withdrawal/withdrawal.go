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
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jinzhu/gorm"
	dbconf "github.com/kthomas/go-db-config"
	uuid "github.com/kthomas/go.uuid"

	"github.com/argus-intel/privacy/common"
	"github.com/argus-intel/privacy/ledger"
	provide "github.com/provideplatform/provide-go/api"
)

// ErrWithdrawalPending is returned when a source requests a withdrawal while
// another one is still pending; the request is rejected without mutating
// any state
var ErrWithdrawalPending = errors.New("withdrawal already pending for source")

// ErrBelowMinimum is returned when the requested amount is below the
// configured withdrawal minimum
var ErrBelowMinimum = errors.New("withdrawal amount below configured minimum")

// WithdrawalStatusPending withdrawal scheduled, awaiting release
const WithdrawalStatusPending = "pending"

// WithdrawalStatusReleased withdrawal debited and submitted to the rail
const WithdrawalStatusReleased = "released"

// WithdrawalStatusCancelled withdrawal cancelled before release; no ledger effect
const WithdrawalStatusCancelled = "cancelled"

// WithdrawalStatusReleasedUnconfirmed the ledger debit was appended but the
// payment rail submission failed; requires manual reconciliation and must
// never be retried with a fresh debit
const WithdrawalStatusReleasedUnconfirmed = "released_unconfirmed"

// PendingWithdrawal is a durable scheduled payout. The randomized release
// delay decorrelates on-platform earning events from off-platform payout
// transactions; the row survives process restarts, unlike an in-memory timer.
type PendingWithdrawal struct {
	provide.Model

	SourceID     uuid.UUID  `sql:"not null;type:uuid" json:"source_id"`
	Amount       int64      `sql:"not null" json:"amount"`
	ScheduledFor *time.Time `sql:"not null" json:"scheduled_for"`
	Status       *string    `sql:"not null;default:'pending'" json:"status"`
	ReleasedAt   *time.Time `json:"released_at,omitempty"`
}

// TableName returns the gorm table name for pending withdrawals
func (w *PendingWithdrawal) TableName() string {
	return "pending_withdrawals"
}

// Find resolves a pending withdrawal by id
func Find(db *gorm.DB, withdrawalID uuid.UUID) *PendingWithdrawal {
	withdrawal := &PendingWithdrawal{}
	db.Where("pending_withdrawals.id = ?", withdrawalID).Find(&withdrawal)
	if withdrawal.ID == uuid.Nil {
		return nil
	}
	return withdrawal
}

// FindPending resolves the pending withdrawal for a source, if any
func FindPending(db *gorm.DB, sourceID uuid.UUID) *PendingWithdrawal {
	withdrawal := &PendingWithdrawal{}
	db.Where("pending_withdrawals.source_id = ? AND pending_withdrawals.status = ?", sourceID, WithdrawalStatusPending).Find(&withdrawal)
	if withdrawal.ID == uuid.Nil {
		return nil
	}
	return withdrawal
}

// randomDelay draws a uniform delay within the configured window using a
// cryptographic source; the jitter itself must not be predictable
func randomDelay(min, max time.Duration) (time.Duration, error) {
	window := big.NewInt(int64(max - min))
	jitter, err := rand.Int(rand.Reader, window)
	if err != nil {
		return 0, err
	}
	return min + time.Duration(jitter.Int64()), nil
}

// Request schedules a withdrawal for the given source. The amount must meet
// the configured minimum and fit within the current escrow balance; at most
// one withdrawal may be pending per source at a time. No ledger entry is
// written until release.
func Request(db *gorm.DB, sourceID uuid.UUID, amount int64) (*PendingWithdrawal, error) {
	if amount < common.WithdrawalMinAmount {
		return nil, fmt.Errorf("%w; %d < %d", ErrBelowMinimum, amount, common.WithdrawalMinAmount)
	}

	account := ledger.FindAccount(db, sourceID)
	if account == nil || amount > account.Balance {
		return nil, ledger.ErrInsufficientBalance
	}

	if FindPending(db, sourceID) != nil {
		return nil, ErrWithdrawalPending
	}

	delay, err := randomDelay(common.WithdrawalDelayMin, common.WithdrawalDelayMax)
	if err != nil {
		return nil, err
	}
	scheduledFor := time.Now().Add(delay)

	withdrawal := &PendingWithdrawal{
		SourceID:     sourceID,
		Amount:       amount,
		ScheduledFor: &scheduledFor,
		Status:       common.StringOrNil(WithdrawalStatusPending),
	}

	// the partial unique index on (source_id) WHERE status = 'pending'
	// closes the race between concurrent requests for the same source
	result := db.Create(&withdrawal)
	if len(result.GetErrors()) > 0 {
		return nil, ErrWithdrawalPending
	}

	common.Log.Debugf("scheduled withdrawal of %d zatoshis for source %s; release at %s", amount, sourceID, scheduledFor.Format(time.RFC3339))
	return withdrawal, nil
}

// Cancel transitions a withdrawal from pending to cancelled; the transition
// is a compare-and-swap against the pending status so a cancellation racing
// a release never both succeed
func (w *PendingWithdrawal) Cancel(db *gorm.DB) error {
	result := db.Model(&PendingWithdrawal{}).
		Where("id = ? AND status = ?", w.ID, WithdrawalStatusPending).
		Update("status", WithdrawalStatusCancelled)
	if len(result.GetErrors()) > 0 {
		return result.GetErrors()[0]
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("withdrawal %s is not pending; cannot cancel", w.ID)
	}

	w.Status = common.StringOrNil(WithdrawalStatusCancelled)
	common.Log.Debugf("cancelled withdrawal %s for source %s; no ledger effect", w.ID, w.SourceID)
	return nil
}

// Release debits the escrow ledger and submits the denominated amounts to
// the payment rail. The release is serialized per withdrawal under a
// distributed lock and re-checks the pending status inside the critical
// section, so a cancellation that won the race is honored. A rail failure
// after the debit leaves the row released_unconfirmed for manual
// reconciliation; it is never retried with a fresh debit.
func (w *PendingWithdrawal) Release(rail Rail) error {
	lockKey := fmt.Sprintf("privacy.withdrawal.release.%s", w.ID)

	return common.WithLock(lockKey, func() error {
		return w.release(dbconf.DatabaseConnection(), rail)
	})
}

// release transitions pending -> released and appends the ledger debit in a
// single transaction; a crash between the two can therefore never leave a
// debited withdrawal pending for the next sweep to release again
func (w *PendingWithdrawal) release(db *gorm.DB, rail Rail) error {
	current := Find(db, w.ID)
	if current == nil {
		return fmt.Errorf("withdrawal %s not found", w.ID)
	}
	if current.Status == nil || *current.Status != WithdrawalStatusPending {
		common.Log.Debugf("withdrawal %s no longer pending; skipping release", w.ID)
		return nil
	}
	if current.ScheduledFor != nil && current.ScheduledFor.After(time.Now()) {
		return fmt.Errorf("withdrawal %s not yet due; scheduled for %s", w.ID, current.ScheduledFor.Format(time.RFC3339))
	}

	denominations, err := SplitDenominations(current.Amount)
	if err != nil {
		return err
	}

	now := time.Now()
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	result := tx.Model(&PendingWithdrawal{}).
		Where("id = ? AND status = ?", current.ID, WithdrawalStatusPending).
		Updates(map[string]interface{}{"status": WithdrawalStatusReleased, "released_at": now})
	if len(result.GetErrors()) > 0 {
		return result.GetErrors()[0]
	}
	if result.RowsAffected == 0 {
		common.Log.Debugf("withdrawal %s no longer pending; skipping release", w.ID)
		return nil
	}

	entry, err := ledger.DebitTx(tx, current.SourceID, current.Amount, fmt.Sprintf("withdrawal:%s", current.ID))
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			// the balance shrank after scheduling; cancel rather than redeliver
			tx.Rollback()
			common.Log.Warningf("withdrawal %s exceeds current balance at release; cancelling", current.ID)
			return current.Cancel(db)
		}
		return err
	}

	tx.Commit()

	if err := ledger.AppendAuditCommitment(db, entry); err != nil {
		common.Log.Warningf("failed to append audit commitment for ledger entry %s; %s", entry.ID, err.Error())
	}

	if err := rail.Submit(current.SourceID, denominations); err != nil {
		common.Log.Warningf("payment rail submission failed for withdrawal %s after debit; flagging for manual reconciliation; %s", current.ID, err.Error())
		db.Model(&PendingWithdrawal{}).
			Where("id = ?", current.ID).
			Update("status", WithdrawalStatusReleasedUnconfirmed)
		return nil
	}

	common.Log.Debugf("released withdrawal %s; %d zatoshis in %d denominations", current.ID, current.Amount, len(denominations))
	return nil
}
