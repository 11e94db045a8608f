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
	"errors"
	"fmt"

	"github.com/jinzhu/gorm"
	dbconf "github.com/kthomas/go-db-config"
	uuid "github.com/kthomas/go.uuid"

	"github.com/argus-intel/privacy/common"
	provide "github.com/provideplatform/provide-go/api"
)

// ErrInvalidTier is returned when a referenced tier does not exist for the
// source, or when a new tier's level breaks the sequential ordering
var ErrInvalidTier = errors.New("tier does not exist for source or breaks level ordering")

// Tier is a named access level defined by a source; level ordering determines
// back-catalog inclusion (a level-2 subscriber can decrypt level 0..2 content)
type Tier struct {
	provide.Model

	SourceID uuid.UUID `sql:"not null;type:uuid" json:"source_id"`
	Name     *string   `sql:"not null" json:"name"`
	Level    uint64    `json:"level"`
	Price    int64     `json:"price"` // zatoshis

	// initial epoch key material; minted at creation, returned exactly once
	// and never persisted
	EpochKey []byte `sql:"-" json:"epoch_key,omitempty"`
}

func (t *Tier) validate(db *gorm.DB) bool {
	t.Errors = make([]*provide.Error, 0)

	if t.SourceID == uuid.Nil {
		t.Errors = append(t.Errors, &provide.Error{
			Message: common.StringOrNil("source id required"),
		})
	}

	if t.Name == nil || *t.Name == "" {
		t.Errors = append(t.Errors, &provide.Error{
			Message: common.StringOrNil("tier name required"),
		})
	}

	if t.Price < 0 {
		t.Errors = append(t.Errors, &provide.Error{
			Message: common.StringOrNil("tier price cannot be negative"),
		})
	}

	// levels are sequential per source, starting at 0
	var count uint64
	db.Model(&Tier{}).Where("tiers.source_id = ?", t.SourceID).Count(&count)
	if t.Level != count {
		t.Errors = append(t.Errors, &provide.Error{
			Message: common.StringOrNil(fmt.Sprintf("tier level must be %d; %s", count, ErrInvalidTier.Error())),
		})
	}

	return len(t.Errors) == 0
}

// Create a tier and mint its initial epoch; the epoch 1 key material is
// returned on the ephemeral EpochKey field
func (t *Tier) Create() bool {
	db := dbconf.DatabaseConnection()

	if !t.validate(db) {
		return false
	}

	tx := db.Begin()
	defer tx.RollbackUnlessCommitted()

	result := tx.Create(&t)
	errors := result.GetErrors()
	if len(errors) > 0 {
		for _, err := range errors {
			t.Errors = append(t.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
		return false
	}

	key, err := common.RandomBytes(common.SymmetricKeySize)
	if err != nil {
		t.Errors = append(t.Errors, &provide.Error{
			Message: common.StringOrNil(err.Error()),
		})
		return false
	}

	genesis := &TierEpoch{
		SourceID:       t.SourceID,
		TierID:         t.ID,
		Epoch:          1,
		KeyFingerprint: common.StringOrNil(keyFingerprint(key)),
	}

	result = tx.Create(&genesis)
	if len(result.GetErrors()) > 0 {
		for _, err := range result.GetErrors() {
			t.Errors = append(t.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
		return false
	}

	tx.Commit()

	t.EpochKey = key
	common.Log.Debugf("created tier %s (level %d) for source %s; minted epoch 1", *t.Name, t.Level, t.SourceID)
	return true
}

// FindTier resolves a tier by source and name
func FindTier(db *gorm.DB, sourceID uuid.UUID, name string) *Tier {
	tier := &Tier{}
	db.Where("tiers.source_id = ? AND tiers.name = ?", sourceID, name).Find(&tier)
	if tier.ID == uuid.Nil {
		return nil
	}
	return tier
}

// FindTierByID resolves a tier by id
func FindTierByID(db *gorm.DB, tierID uuid.UUID) *Tier {
	tier := &Tier{}
	db.Where("tiers.id = ?", tierID).Find(&tier)
	if tier.ID == uuid.Nil {
		return nil
	}
	return tier
}
