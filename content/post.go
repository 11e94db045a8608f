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

package content

import (
	"encoding/json"

	"github.com/jinzhu/gorm"
	dbconf "github.com/kthomas/go-db-config"
	uuid "github.com/kthomas/go.uuid"

	"github.com/argus-intel/privacy/common"
	"github.com/argus-intel/privacy/epoch"
	provide "github.com/provideplatform/provide-go/api"
)

// Post is an immutable encrypted post record. The core never interprets the
// ciphertext; it stores the opaque payload, the tier/epoch stamp and the
// clear content hash used for tamper detection on decrypt.
type Post struct {
	provide.Model

	SourceID uuid.UUID `sql:"not null;type:uuid" json:"source_id"`
	TierID   uuid.UUID `sql:"not null;type:uuid" json:"tier_id"`
	Epoch    uint64    `sql:"not null" json:"epoch"`

	EncryptedContent  []byte  `json:"encrypted_content"`
	ContentHash       *string `sql:"not null" json:"content_hash"`
	ContentKeyWrapped []byte  `sql:"not null" json:"content_key_wrapped"`
	SourceKeyWrapped  []byte  `json:"source_key_wrapped,omitempty"`

	// references to separately encrypted media blobs
	MediaCIDs []byte `sql:"type:jsonb" json:"-"`

	// reader pubkeys denied unlock regardless of tier entitlement
	Exclusions []byte `sql:"type:jsonb" json:"-"`
}

func (p *Post) validate(db *gorm.DB) bool {
	p.Errors = make([]*provide.Error, 0)

	if p.SourceID == uuid.Nil {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil("source id required"),
		})
		return false
	}

	tier := epoch.FindTierByID(db, p.TierID)
	if tier == nil || tier.SourceID != p.SourceID {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil(epoch.ErrInvalidTier.Error()),
		})
		return false
	}

	if len(p.EncryptedContent) == 0 && len(p.ParseMediaCIDs()) == 0 {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil(ErrEmptyContent.Error()),
		})
	}

	if p.ContentHash == nil || *p.ContentHash == "" {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil("content hash required"),
		})
	}

	if len(p.ContentKeyWrapped) == 0 {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil("wrapped content key required"),
		})
	}

	current, err := epoch.CurrentEpoch(db, p.TierID)
	if err != nil {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil(err.Error()),
		})
	} else if p.Epoch == 0 || p.Epoch > current.Epoch {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil("post epoch must be stamped within the tier's rotation history"),
		})
	}

	return len(p.Errors) == 0
}

// Create persists the post; the record is immutable once created
func (p *Post) Create() bool {
	db := dbconf.DatabaseConnection()

	if !p.validate(db) {
		return false
	}

	result := db.Create(&p)
	if len(result.GetErrors()) > 0 {
		for _, err := range result.GetErrors() {
			p.Errors = append(p.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
		return false
	}

	common.Log.Debugf("stored encrypted post %s for source %s at epoch %d", p.ID, p.SourceID, p.Epoch)
	return true
}

// ParseMediaCIDs returns the post's media references
func (p *Post) ParseMediaCIDs() []string {
	if p.MediaCIDs == nil {
		return []string{}
	}
	var cids []string
	if err := json.Unmarshal(p.MediaCIDs, &cids); err != nil {
		common.Log.Warningf("failed to parse media cids for post %s; %s", p.ID, err.Error())
		return []string{}
	}
	return cids
}

// SetMediaCIDs sets the post's media references
func (p *Post) SetMediaCIDs(cids []string) {
	p.MediaCIDs, _ = json.Marshal(cids)
}

// ParseExclusions returns the post's excluded reader pubkeys
func (p *Post) ParseExclusions() []string {
	if p.Exclusions == nil {
		return []string{}
	}
	var excluded []string
	if err := json.Unmarshal(p.Exclusions, &excluded); err != nil {
		common.Log.Warningf("failed to parse exclusions for post %s; %s", p.ID, err.Error())
		return []string{}
	}
	return excluded
}

// SetExclusions sets the post's excluded reader pubkeys
func (p *Post) SetExclusions(excluded []string) {
	p.Exclusions, _ = json.Marshal(excluded)
}

// IsExcluded reports whether the given reader pubkey is denied unlock on
// this post regardless of tier entitlement
func (p *Post) IsExcluded(pubKey string) bool {
	for _, excluded := range p.ParseExclusions() {
		if excluded == pubKey {
			return true
		}
	}
	return false
}

// Find resolves a post by id
func Find(db *gorm.DB, postID uuid.UUID) *Post {
	post := &Post{}
	db.Where("posts.id = ?", postID).Find(&post)
	if post.ID == uuid.Nil {
		return nil
	}
	return post
}
