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

package epoch

import (
	"fmt"
	"time"

	"github.com/jinzhu/gorm"
	dbconf "github.com/kthomas/go-db-config"
	uuid "github.com/kthomas/go.uuid"

	"github.com/argus-intel/privacy/common"
	provide "github.com/provideplatform/provide-go/api"
)

const epochBacklinkInfo = "tier-epoch-backlink"

// TierEpoch records one epoch in a tier's rotation history. Raw key material
// is never persisted: each row carries only the epoch counter, a fingerprint
// of the epoch key, and the previous epoch key wrapped under the current one.
// Holding the epoch-N key therefore yields every epoch <= N and nothing newer.
type TierEpoch struct {
	provide.Model

	SourceID uuid.UUID `sql:"not null;type:uuid" json:"source_id"`
	TierID   uuid.UUID `sql:"not null;type:uuid" json:"tier_id"`
	Epoch    uint64    `sql:"not null" json:"epoch"`

	KeyFingerprint *string `sql:"not null" json:"key_fingerprint"`
	PrevKeyWrapped []byte  `json:"-"` // nil for epoch 1

	// fresh key material; set by Rotate, returned exactly once, never stored
	EpochKey []byte `sql:"-" json:"epoch_key,omitempty"`
}

// Subscription is the reader entitlement consumed from the identity subsystem
type Subscription struct {
	TierLevel uint64 `json:"tier_level"`
	Epoch     uint64 `json:"epoch"`
	ExpiresAt int64  `json:"expires_at"` // unix seconds; 0 = lifetime
}

func keyFingerprint(key []byte) string {
	return common.SHA256(string(key))
}

// CurrentEpoch returns the latest epoch row for the given tier
func CurrentEpoch(db *gorm.DB, tierID uuid.UUID) (*TierEpoch, error) {
	epoch := &TierEpoch{}
	db.Where("tier_epochs.tier_id = ?", tierID).Order("tier_epochs.epoch DESC").First(&epoch)
	if epoch.ID == uuid.Nil {
		return nil, fmt.Errorf("no epoch history for tier %s", tierID)
	}
	return epoch, nil
}

// Rotate advances the tier to a new epoch. The caller must supply the current
// epoch key; rotation mints fresh key material, persists the previous key
// wrapped under the new one and returns the new key exactly once. Rotations
// for the same tier serialize on a distributed lock; the unique
// (tier_id, epoch) index rejects any concurrent rotation that slips past it.
func Rotate(sourceID, tierID uuid.UUID, currentKey []byte) (*TierEpoch, error) {
	var rotated *TierEpoch

	lockKey := fmt.Sprintf("privacy.epoch.rotate.%s", tierID)
	err := common.WithLock(lockKey, func() error {
		db := dbconf.DatabaseConnection()

		current, err := CurrentEpoch(db, tierID)
		if err != nil {
			return err
		}

		if current.KeyFingerprint == nil || *current.KeyFingerprint != keyFingerprint(currentKey) {
			return fmt.Errorf("rotation rejected; supplied key does not match epoch %d fingerprint", current.Epoch)
		}

		newKey, err := common.RandomBytes(common.SymmetricKeySize)
		if err != nil {
			return err
		}

		backlink, err := wrapBacklink(newKey, currentKey)
		if err != nil {
			return err
		}

		next := &TierEpoch{
			SourceID:       sourceID,
			TierID:         tierID,
			Epoch:          current.Epoch + 1,
			KeyFingerprint: common.StringOrNil(keyFingerprint(newKey)),
			PrevKeyWrapped: backlink,
		}

		tx := db.Begin()
		defer tx.RollbackUnlessCommitted()

		result := tx.Create(&next)
		if len(result.GetErrors()) > 0 {
			return result.GetErrors()[0]
		}
		tx.Commit()

		next.EpochKey = newKey
		rotated = next

		common.Log.Debugf("rotated tier %s to epoch %d", tierID, next.Epoch)
		return nil
	})

	if err != nil {
		return nil, err
	}

	return rotated, nil
}

func wrapBacklink(newKey, prevKey []byte) ([]byte, error) {
	wrapKey, err := common.DeriveKey(newKey, epochBacklinkInfo)
	if err != nil {
		return nil, err
	}
	return common.AESGCMSeal(wrapKey, prevKey)
}

func unwrapBacklink(heldKey, backlink []byte) ([]byte, error) {
	wrapKey, err := common.DeriveKey(heldKey, epochBacklinkInfo)
	if err != nil {
		return nil, err
	}
	return common.AESGCMOpen(wrapKey, backlink)
}

// DeriveEpochKey walks the back-link chain from the held epoch down to the
// target epoch. It can only move backward; key material for any epoch newer
// than the held one is unreachable by construction.
func DeriveEpochKey(db *gorm.DB, tierID uuid.UUID, heldEpoch uint64, heldKey []byte, targetEpoch uint64) ([]byte, error) {
	if targetEpoch == 0 || targetEpoch > heldEpoch {
		return nil, fmt.Errorf("epoch %d is not derivable from epoch %d", targetEpoch, heldEpoch)
	}

	var rows []*TierEpoch
	db.Where("tier_epochs.tier_id = ? AND tier_epochs.epoch <= ? AND tier_epochs.epoch >= ?", tierID, heldEpoch, targetEpoch).Order("tier_epochs.epoch DESC").Find(&rows)
	if uint64(len(rows)) != heldEpoch-targetEpoch+1 {
		return nil, fmt.Errorf("incomplete epoch history for tier %s", tierID)
	}

	if rows[0].KeyFingerprint == nil || *rows[0].KeyFingerprint != keyFingerprint(heldKey) {
		return nil, fmt.Errorf("supplied key does not match epoch %d fingerprint", heldEpoch)
	}

	links := make([][]byte, 0, len(rows)-1)
	for _, row := range rows[:len(rows)-1] {
		links = append(links, row.PrevKeyWrapped)
	}

	key, err := deriveChain(heldKey, links)
	if err != nil {
		return nil, err
	}

	target := rows[len(rows)-1]
	if target.KeyFingerprint == nil || *target.KeyFingerprint != keyFingerprint(key) {
		return nil, fmt.Errorf("derived key does not match epoch %d fingerprint", targetEpoch)
	}

	return key, nil
}

// deriveChain unwraps each back-link in order, starting from the held key;
// links must be ordered newest first
func deriveChain(heldKey []byte, links [][]byte) ([]byte, error) {
	key := heldKey
	for i, link := range links {
		prev, err := unwrapBacklink(key, link)
		if err != nil {
			return nil, fmt.Errorf("failed to unwrap epoch back-link %d; %s", i, err.Error())
		}
		key = prev
	}
	return key, nil
}

// IsValidForReader reports whether a subscription entitles its holder to
// decrypt a post stamped with the given tier level and epoch. New subscribers
// get the tier's entire back catalog; a subscription frozen at epoch N never
// reaches anything stamped later.
func IsValidForReader(postTierLevel, postEpoch uint64, sub *Subscription) bool {
	if sub == nil {
		return false
	}

	if sub.ExpiresAt != 0 && time.Now().Unix() > sub.ExpiresAt {
		return false
	}

	if sub.TierLevel < postTierLevel {
		return false
	}

	return sub.Epoch >= postEpoch
}
