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

package proof

import (
	"github.com/jinzhu/gorm"
	dbconf "github.com/kthomas/go-db-config"
	uuid "github.com/kthomas/go.uuid"

	"github.com/argus-intel/privacy/common"
	provide "github.com/provideplatform/provide-go/api"
)

// attestation confidence threshold at or above which a supported artifact
// is promoted to verified
const verificationConfidenceThreshold = 70

// Attestation is a third-party endorsement or refutation of a proof
// artifact, with a confidence weight of 1-100
type Attestation struct {
	provide.Model

	ArtifactID uuid.UUID `sql:"not null;type:uuid" json:"artifact_id"`
	AttestorID uuid.UUID `sql:"not null;type:uuid" json:"attestor_id"`

	Confidence int     `sql:"not null" json:"confidence"`
	Refutation bool    `sql:"not null;default:false" json:"refutation"`
	Comment    *string `json:"comment,omitempty"`
}

func (att *Attestation) validate(db *gorm.DB) (*Artifact, bool) {
	att.Errors = make([]*provide.Error, 0)

	if att.AttestorID == uuid.Nil {
		att.Errors = append(att.Errors, &provide.Error{
			Message: common.StringOrNil("attestor id required"),
		})
		return nil, false
	}

	if att.Confidence < 1 || att.Confidence > 100 {
		att.Errors = append(att.Errors, &provide.Error{
			Message: common.StringOrNil("confidence must be between 1 and 100"),
		})
		return nil, false
	}

	artifact := FindArtifact(db, att.ArtifactID)
	if artifact == nil {
		att.Errors = append(att.Errors, &provide.Error{
			Message: common.StringOrNil("proof artifact not found"),
		})
		return nil, false
	}

	if artifact.SourceID == att.AttestorID {
		att.Errors = append(att.Errors, &provide.Error{
			Message: common.StringOrNil("sources cannot attest their own proofs"),
		})
		return nil, false
	}

	var count uint64
	db.Model(&Attestation{}).Where("attestations.artifact_id = ? AND attestations.attestor_id = ?", att.ArtifactID, att.AttestorID).Count(&count)
	if count > 0 {
		att.Errors = append(att.Errors, &provide.Error{
			Message: common.StringOrNil("attestor has already weighed in on this proof"),
		})
		return nil, false
	}

	return artifact, true
}

// Create persists the attestation and recomputes the artifact's status
func (att *Attestation) Create() bool {
	db := dbconf.DatabaseConnection()

	artifact, valid := att.validate(db)
	if !valid {
		return false
	}

	result := db.Create(&att)
	if len(result.GetErrors()) > 0 {
		for _, err := range result.GetErrors() {
			att.Errors = append(att.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
		return false
	}

	refreshArtifactStatus(db, artifact)
	return true
}

// refreshArtifactStatus recomputes the artifact's verification status from
// its attestations. Simulated artifacts never leave pending regardless of
// how they are attested.
func refreshArtifactStatus(db *gorm.DB, artifact *Artifact) {
	if artifact.Mock {
		return
	}

	var attestations []*Attestation
	db.Where("attestations.artifact_id = ?", artifact.ID).Find(&attestations)

	status := artifactStatusFor(attestations)
	if artifact.Status != nil && *artifact.Status == status {
		return
	}

	artifact.Status = common.StringOrNil(status)
	db.Save(&artifact)
	common.Log.Debugf("proof artifact %s transitioned to %s after %d attestations", artifact.ID, status, len(attestations))
}

func artifactStatusFor(attestations []*Attestation) string {
	supports := 0
	refutes := 0
	confidence := 0

	for _, att := range attestations {
		if att.Refutation {
			refutes++
		} else {
			supports++
			confidence += att.Confidence
		}
	}

	if refutes > supports {
		return ArtifactStatusRefuted
	}

	if refutes > 0 {
		return ArtifactStatusContested
	}

	if supports > 0 && confidence/supports >= verificationConfidenceThreshold {
		return ArtifactStatusVerified
	}

	return ArtifactStatusPending
}
