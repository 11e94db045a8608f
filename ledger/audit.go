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
	"fmt"

	"github.com/jinzhu/gorm"
	dbconf "github.com/kthomas/go-db-config"

	"github.com/argus-intel/privacy/common"
	storage "github.com/argus-intel/privacy/store"
	storeprovider "github.com/argus-intel/privacy/store/providers"
)

// entryCommitment is the canonical string committed to the audit tree for a
// ledger entry; it pins the entry id, type, amount and resulting balance
func entryCommitment(entry *Entry) string {
	return common.SHA256(fmt.Sprintf("%s|%s|%s|%d|%d", entry.ID, entry.SourceID, *entry.Type, entry.Amount, entry.BalanceAfter))
}

// appendAuditCommitment appends the entry commitment to the account's dense
// merkle audit tree, initializing the tree on first use. The commitment
// makes the ledger tamper-evident; failures here never roll back the entry.
func appendAuditCommitment(account *EscrowAccount, entry *Entry) error {
	auditStore, err := resolveAuditStore(account)
	if err != nil {
		return err
	}

	root, err := auditStore.Insert(entryCommitment(entry))
	if err != nil {
		return err
	}

	common.Log.Debugf("committed ledger entry %s to audit tree; root: %s", entry.ID, string(root))
	return nil
}

// AppendAuditCommitment resolves the account for an entry written via DebitTx
// and appends its commitment; callers invoke it once their transaction has
// committed. Failures here never unwind the entry.
func AppendAuditCommitment(db *gorm.DB, entry *Entry) error {
	account := FindAccount(db, entry.SourceID)
	if account == nil {
		return fmt.Errorf("failed to resolve escrow account for source %s", entry.SourceID)
	}
	return appendAuditCommitment(account, entry)
}

func resolveAuditStore(account *EscrowAccount) (*storage.Store, error) {
	if account.AuditStoreID != nil {
		auditStore := storage.Find(*account.AuditStoreID)
		if auditStore == nil {
			return nil, fmt.Errorf("failed to resolve audit store %s for source %s", account.AuditStoreID, account.SourceID)
		}
		return auditStore, nil
	}

	auditStore := &storage.Store{
		OwnerID:  &account.ID,
		Name:     common.StringOrNil(fmt.Sprintf("ledger audit tree for source %s", account.SourceID)),
		Provider: common.StringOrNil(storeprovider.StoreProviderMerkleTree),
		Curve:    nil, // sha256
	}

	if !auditStore.Create() {
		return nil, fmt.Errorf("failed to initialize audit store for source %s", account.SourceID)
	}

	db := dbconf.DatabaseConnection()
	account.AuditStoreID = &auditStore.ID
	result := db.Save(&account)
	if len(result.GetErrors()) > 0 {
		return nil, result.GetErrors()[0]
	}

	return auditStore, nil
}

// AuditRoot returns the current root of the account's audit tree
func AuditRoot(account *EscrowAccount) (*string, error) {
	if account.AuditStoreID == nil {
		return nil, fmt.Errorf("no audit trail exists for source %s", account.SourceID)
	}

	auditStore := storage.Find(*account.AuditStoreID)
	if auditStore == nil {
		return nil, fmt.Errorf("failed to resolve audit store %s", account.AuditStoreID)
	}

	return auditStore.Root()
}

// VerifyAuditedEntry reports whether the given entry's commitment is present
// in the account's audit tree
func VerifyAuditedEntry(account *EscrowAccount, entry *Entry) bool {
	if account.AuditStoreID == nil {
		return false
	}

	auditStore := storage.Find(*account.AuditStoreID)
	if auditStore == nil {
		return false
	}

	return auditStore.Contains(entryCommitment(entry))
}
