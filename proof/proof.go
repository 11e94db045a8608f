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
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/jinzhu/gorm"
	dbconf "github.com/kthomas/go-db-config"
	uuid "github.com/kthomas/go.uuid"

	"github.com/argus-intel/privacy/common"
	storage "github.com/argus-intel/privacy/store"
	storeprovider "github.com/argus-intel/privacy/store/providers"
	zkp "github.com/argus-intel/privacy/zkp/providers"
	provide "github.com/provideplatform/provide-go/api"
)

// ArtifactStatusPending proof awaiting attestations
const ArtifactStatusPending = "pending"

// ArtifactStatusVerified proof corroborated by attestations
const ArtifactStatusVerified = "verified"

// ArtifactStatusContested proof with at least one refutation
const ArtifactStatusContested = "contested"

// ArtifactStatusRefuted proof with refutations outweighing support
const ArtifactStatusRefuted = "refuted"

// Artifact is an immutable proof artifact. It carries the proof and its
// public signals only; the private witness never leaves the generator.
// Artifacts emitted by the simulated prover are tagged mock and must never
// be treated as cryptographically binding.
type Artifact struct {
	provide.Model

	SourceID uuid.UUID  `sql:"not null;type:uuid" json:"source_id"`
	PostID   *uuid.UUID `sql:"type:uuid" json:"post_id,omitempty"`

	Type          *string `sql:"not null" json:"type"`
	Proof         *string `sql:"not null" json:"proof"`
	PublicSignals []byte  `sql:"type:jsonb" json:"-"`
	Claim         *string `json:"claim"`
	Mock          bool    `sql:"not null;default:false" json:"mock"`

	Status *string `sql:"not null;default:'pending'" json:"status"`
}

// TableName returns the gorm table name for proof artifacts
func (a *Artifact) TableName() string {
	return "proof_artifacts"
}

// VerificationResult is the deterministic outcome of verifying an artifact.
// An unverified proof is an expected outcome, not an error.
type VerificationResult struct {
	Verified bool    `json:"verified"`
	Reason   *string `json:"reason,omitempty"`
	Mock     bool    `json:"mock"`
}

// FindArtifact resolves a proof artifact by id
func FindArtifact(db *gorm.DB, artifactID uuid.UUID) *Artifact {
	artifact := &Artifact{}
	db.Where("proof_artifacts.id = ?", artifactID).Find(&artifact)
	if artifact.ID == uuid.Nil {
		return nil
	}
	return artifact
}

// ParsePublicSignals returns the artifact's public signals
func (a *Artifact) ParsePublicSignals() map[string]interface{} {
	signals := map[string]interface{}{}
	if a.PublicSignals != nil {
		if err := json.Unmarshal(a.PublicSignals, &signals); err != nil {
			common.Log.Warningf("failed to parse public signals for artifact %s; %s", a.ID, err.Error())
		}
	}
	return signals
}

// GenerateLocationProof proves proximity to the target without revealing the
// witness coordinates
func GenerateLocationProof(sourceID uuid.UUID, postID *uuid.UUID, witness *LocationWitness) (*Artifact, error) {
	if err := witness.validate(); err != nil {
		return nil, err
	}
	return generate(sourceID, postID, ProofTypeLocation, witness.inputs(), witness.claim())
}

// GenerateReputationProof proves the source's score meets the threshold
// without revealing the score
func GenerateReputationProof(sourceID uuid.UUID, postID *uuid.UUID, witness *ReputationWitness) (*Artifact, error) {
	if err := witness.validate(); err != nil {
		return nil, err
	}
	return generate(sourceID, postID, ProofTypeReputation, witness.inputs(), witness.claim())
}

func generate(sourceID uuid.UUID, postID *uuid.UUID, proofType string, inputs map[string]interface{}, claim string) (*Artifact, error) {
	identifier, err := circuitIdentifier(proofType)
	if err != nil {
		return nil, err
	}

	prover, err := resolveProver(identifier)
	if err != nil {
		return nil, err
	}

	witness, err := prover.provider.WitnessFactory(identifier, common.DefaultZKPCurve, inputs, false)
	if err != nil {
		return nil, err
	}

	proof, err := prover.provider.Prove(prover.r1cs, prover.provingKey, witness)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s proof; %s", proofType, err.Error())
	}

	raw, err := serializeArtifact(proof)
	if err != nil {
		return nil, err
	}

	signals := map[string]interface{}{}
	for _, name := range zkp.PublicSignalsFactory(identifier) {
		signals[name] = inputs[name]
	}
	signalsRaw, _ := json.Marshal(signals)

	artifact := &Artifact{
		SourceID:      sourceID,
		PostID:        postID,
		Type:          common.StringOrNil(proofType),
		Proof:         common.StringOrNil(hex.EncodeToString(raw)),
		PublicSignals: signalsRaw,
		Claim:         common.StringOrNil(claim),
		Mock:          prover.mock,
		Status:        common.StringOrNil(ArtifactStatusPending),
	}

	if !artifact.Create() {
		msgs := make([]string, 0, len(artifact.Errors))
		for _, e := range artifact.Errors {
			if e.Message != nil {
				msgs = append(msgs, *e.Message)
			}
		}
		return nil, fmt.Errorf("failed to persist %s proof artifact; %v", proofType, msgs)
	}

	return artifact, nil
}

func (a *Artifact) validate() bool {
	a.Errors = make([]*provide.Error, 0)

	if a.SourceID == uuid.Nil {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil("source id required"),
		})
	}

	if a.Type == nil || (*a.Type != ProofTypeLocation && *a.Type != ProofTypeReputation) {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil("valid proof type required"),
		})
	}

	if a.Proof == nil || *a.Proof == "" {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil("proof required"),
		})
	}

	return len(a.Errors) == 0
}

// Create persists the artifact after inserting its nullifier commitment;
// an artifact whose commitment already exists is a duplicate and is rejected
func (a *Artifact) Create() bool {
	if !a.validate() {
		return false
	}

	nullifier := a.nullifierCommitment()
	nullifierStore, err := resolveNullifierStore(*a.Type)
	if err != nil {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil(err.Error()),
		})
		return false
	}

	if nullifierStore.Contains(nullifier) {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil("duplicate proof artifact; nullifier commitment already exists"),
		})
		return false
	}

	db := dbconf.DatabaseConnection()
	result := db.Create(&a)
	if len(result.GetErrors()) > 0 {
		for _, err := range result.GetErrors() {
			a.Errors = append(a.Errors, &provide.Error{
				Message: common.StringOrNil(err.Error()),
			})
		}
		return false
	}

	if _, err := nullifierStore.Insert(nullifier); err != nil {
		common.Log.Warningf("failed to insert nullifier commitment for artifact %s; %s", a.ID, err.Error())
	}

	common.Log.Debugf("generated %s proof artifact %s for source %s; mock: %t", *a.Type, a.ID, a.SourceID, a.Mock)
	return true
}

// nullifierCommitment binds the proof bytes, public signals and source into
// a single dedup commitment
func (a *Artifact) nullifierCommitment() string {
	return common.SHA256(fmt.Sprintf("%s|%s|%s", *a.Proof, string(a.PublicSignals), a.SourceID))
}

func resolveNullifierStore(proofType string) (*storage.Store, error) {
	name := fmt.Sprintf("proof.nullifiers.%s", proofType)

	nullifierStore := storage.FindByName(name)
	if nullifierStore != nil {
		return nullifierStore, nil
	}

	ownerID, _ := uuid.NewV4()
	nullifierStore = &storage.Store{
		OwnerID:  &ownerID,
		Name:     common.StringOrNil(name),
		Provider: common.StringOrNil(storeprovider.StoreProviderSparseMerkleTree),
		Curve:    common.StringOrNil(common.DefaultZKPCurve),
	}

	if !nullifierStore.Create() {
		return nil, fmt.Errorf("failed to initialize nullifier store for %s proofs", proofType)
	}

	return nullifierStore, nil
}

// Verify checks the artifact's proof against its public signals. The result
// is deterministic; a failed verification is a value, not an error. Mock
// artifacts verify through the simulated provider and stay tagged.
func (a *Artifact) Verify() *VerificationResult {
	identifier, err := circuitIdentifier(*a.Type)
	if err != nil {
		return &VerificationResult{Verified: false, Reason: common.StringOrNil(err.Error()), Mock: a.Mock}
	}

	prover, err := resolveProver(identifier)
	if err != nil {
		return &VerificationResult{Verified: false, Reason: common.StringOrNil(err.Error()), Mock: a.Mock}
	}

	if prover.mock != a.Mock {
		return &VerificationResult{
			Verified: false,
			Reason:   common.StringOrNil("prover provenance mismatch; artifact and registry disagree on simulation"),
			Mock:     a.Mock,
		}
	}

	witness, err := prover.provider.WitnessFactory(identifier, common.DefaultZKPCurve, a.ParsePublicSignals(), true)
	if err != nil {
		return &VerificationResult{Verified: false, Reason: common.StringOrNil(err.Error()), Mock: a.Mock}
	}

	raw, err := hex.DecodeString(*a.Proof)
	if err != nil {
		return &VerificationResult{Verified: false, Reason: common.StringOrNil("malformed proof encoding"), Mock: a.Mock}
	}

	err = prover.provider.Verify(raw, prover.verifyingKey, witness)
	if err != nil {
		return &VerificationResult{
			Verified: false,
			Reason:   common.StringOrNil(fmt.Sprintf("proof did not verify against public signals; %s", err.Error())),
			Mock:     a.Mock,
		}
	}

	result := &VerificationResult{Verified: true, Mock: a.Mock}
	if a.Mock {
		result.Reason = common.StringOrNil("simulated proof; not cryptographically binding")
	}
	return result
}
