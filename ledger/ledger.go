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
	"errors"
	"fmt"

	"github.com/jinzhu/gorm"
	uuid "github.com/kthomas/go.uuid"

	"github.com/argus-intel/privacy/common"
	provide "github.com/provideplatform/provide-go/api"
)

// ErrInsufficientBalance is returned when a debit exceeds the account
// balance; no entry is written
var ErrInsufficientBalance = errors.New("insufficient balance; debit rejected")

// EntryTypeCredit credit ledger entry
const EntryTypeCredit = "credit"

// EntryTypeDebit debit ledger entry
const EntryTypeDebit = "debit"

// EscrowAccount is the cached balance projection for a source. Amounts are
// int64 zatoshis; the ledger entries are the source of truth and the
// projection is reproducible from them at any time.
type EscrowAccount struct {
	provide.Model

	SourceID       uuid.UUID `sql:"not null;type:uuid" json:"source_id"`
	Balance        int64     `sql:"not null;default:0" json:"balance"`
	TotalEarned    int64     `sql:"not null;default:0" json:"total_earned"`
	TotalWithdrawn int64     `sql:"not null;default:0" json:"total_withdrawn"`

	AuditStoreID *uuid.UUID `sql:"type:uuid" json:"audit_store_id,omitempty"`
}

// Entry is an immutable, append-only ledger entry
type Entry struct {
	provide.Model

	SourceID      uuid.UUID `sql:"not null;type:uuid" json:"source_id"`
	Type          *string   `sql:"not null" json:"type"`
	Amount        int64     `sql:"not null" json:"amount"`
	ReferenceType *string   `json:"reference_type"`
	BalanceAfter  int64     `sql:"not null" json:"balance_after"`
}

// TableName returns the gorm table name for ledger entries
func (e *Entry) TableName() string {
	return "ledger_entries"
}

// FindAccount resolves the escrow account for the given source
func FindAccount(db *gorm.DB, sourceID uuid.UUID) *EscrowAccount {
	account := &EscrowAccount{}
	db.Where("escrow_accounts.source_id = ?", sourceID).Find(&account)
	if account.ID == uuid.Nil {
		return nil
	}
	return account
}

// resolveAccountForUpdate locks the account row for the duration of the
// enclosing transaction, creating the account on first use; mutations for
// the same source serialize on this lock
func resolveAccountForUpdate(tx *gorm.DB, sourceID uuid.UUID) (*EscrowAccount, error) {
	account := &EscrowAccount{}
	tx.Set("gorm:query_option", "FOR UPDATE").Where("escrow_accounts.source_id = ?", sourceID).Find(&account)
	if account.ID != uuid.Nil {
		return account, nil
	}

	account = &EscrowAccount{SourceID: sourceID}
	result := tx.Create(&account)
	if len(result.GetErrors()) > 0 {
		return nil, result.GetErrors()[0]
	}

	common.Log.Debugf("initialized escrow account for source %s", sourceID)
	return account, nil
}

// Credit appends a credit entry and updates the cached projection in a
// single transaction
func Credit(db *gorm.DB, sourceID uuid.UUID, amount int64, referenceType string) (*Entry, error) {
	return mutate(db, sourceID, EntryTypeCredit, amount, referenceType)
}

// Debit appends a debit entry and updates the cached projection in a single
// transaction; a debit exceeding the balance fails closed with no entry
func Debit(db *gorm.DB, sourceID uuid.UUID, amount int64, referenceType string) (*Entry, error) {
	return mutate(db, sourceID, EntryTypeDebit, amount, referenceType)
}

// DebitTx appends a debit entry within the caller's transaction so the debit
// commits or rolls back atomically with the caller's own writes. The caller
// owns the commit and appends the audit commitment once it lands.
func DebitTx(tx *gorm.DB, sourceID uuid.UUID, amount int64, referenceType string) (*Entry, error) {
	entry, _, err := mutateTx(tx, sourceID, EntryTypeDebit, amount, referenceType)
	return entry, err
}

func mutate(db *gorm.DB, sourceID uuid.UUID, entryType string, amount int64, referenceType string) (*Entry, error) {
	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	entry, account, err := mutateTx(tx, sourceID, entryType, amount, referenceType)
	if err != nil {
		return nil, err
	}

	tx.Commit()

	if err := appendAuditCommitment(account, entry); err != nil {
		common.Log.Warningf("failed to append audit commitment for ledger entry %s; %s", entry.ID, err.Error())
	}

	return entry, nil
}

func mutateTx(tx *gorm.DB, sourceID uuid.UUID, entryType string, amount int64, referenceType string) (*Entry, *EscrowAccount, error) {
	if amount <= 0 {
		return nil, nil, fmt.Errorf("ledger %s amount must be positive; got %d", entryType, amount)
	}

	account, err := resolveAccountForUpdate(tx, sourceID)
	if err != nil {
		return nil, nil, err
	}

	switch entryType {
	case EntryTypeCredit:
		account.Balance += amount
		account.TotalEarned += amount
	case EntryTypeDebit:
		if amount > account.Balance {
			return nil, nil, ErrInsufficientBalance
		}
		account.Balance -= amount
		account.TotalWithdrawn += amount
	default:
		return nil, nil, fmt.Errorf("invalid ledger entry type: %s", entryType)
	}

	entry := &Entry{
		SourceID:      sourceID,
		Type:          common.StringOrNil(entryType),
		Amount:        amount,
		ReferenceType: common.StringOrNil(referenceType),
		BalanceAfter:  account.Balance,
	}

	result := tx.Create(&entry)
	if len(result.GetErrors()) > 0 {
		return nil, nil, result.GetErrors()[0]
	}

	result = tx.Save(&account)
	if len(result.GetErrors()) > 0 {
		return nil, nil, result.GetErrors()[0]
	}

	common.Log.Debugf("appended %s of %d zatoshis for source %s; balance: %d", entryType, amount, sourceID, entry.BalanceAfter)
	return entry, account, nil
}

// ReplayResult reports the outcome of replaying a source's ledger
type ReplayResult struct {
	SourceID       uuid.UUID `json:"source_id"`
	Entries        int       `json:"entries"`
	Balance        int64     `json:"balance"`
	TotalEarned    int64     `json:"total_earned"`
	TotalWithdrawn int64     `json:"total_withdrawn"`
	Consistent     bool      `json:"consistent"`
}

// Replay recomputes the account projection from the entries in createdAt
// order and reports whether the cached projection diverges; the ledger is
// the source of truth
func Replay(db *gorm.DB, sourceID uuid.UUID) (*ReplayResult, error) {
	var entries []*Entry
	db.Where("ledger_entries.source_id = ?", sourceID).Order("ledger_entries.created_at ASC").Find(&entries)

	balance, earned, withdrawn, err := replayEntries(entries)
	if err != nil {
		return nil, err
	}

	result := &ReplayResult{
		SourceID:       sourceID,
		Entries:        len(entries),
		Balance:        balance,
		TotalEarned:    earned,
		TotalWithdrawn: withdrawn,
	}

	account := FindAccount(db, sourceID)
	if account == nil {
		result.Consistent = len(entries) == 0
		return result, nil
	}

	result.Consistent = account.Balance == balance &&
		account.TotalEarned == earned &&
		account.TotalWithdrawn == withdrawn &&
		account.Balance == account.TotalEarned-account.TotalWithdrawn

	if !result.Consistent {
		common.Log.Warningf("ledger replay diverged for source %s; cached balance %d, replayed %d", sourceID, account.Balance, balance)
	}

	return result, nil
}

func replayEntries(entries []*Entry) (balance, earned, withdrawn int64, err error) {
	for i, entry := range entries {
		if entry.Type == nil {
			return 0, 0, 0, fmt.Errorf("ledger entry %d is untyped", i)
		}

		switch *entry.Type {
		case EntryTypeCredit:
			balance += entry.Amount
			earned += entry.Amount
		case EntryTypeDebit:
			balance -= entry.Amount
			withdrawn += entry.Amount
		default:
			return 0, 0, 0, fmt.Errorf("ledger entry %d has invalid type %s", i, *entry.Type)
		}

		if balance < 0 {
			return 0, 0, 0, fmt.Errorf("ledger entry %d drives balance negative; ledger is corrupt", i)
		}

		if entry.BalanceAfter != balance {
			return 0, 0, 0, fmt.Errorf("ledger entry %d balance_after %d does not match replayed balance %d", i, entry.BalanceAfter, balance)
		}
	}

	return balance, earned, withdrawn, nil
}
