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
	uuid "github.com/kthomas/go.uuid"
)

// SourceStats aggregates a source's proof track record
type SourceStats struct {
	SourceID       uuid.UUID `json:"source_id"`
	TotalProofs    int       `json:"total_proofs"`
	VerifiedProofs int       `json:"verified_proofs"`
	RefutedProofs  int       `json:"refuted_proofs"`
	AvgConfidence  float64   `json:"avg_confidence"`
}

// ComputeStats aggregates the source's artifacts and attestations
func ComputeStats(db *gorm.DB, sourceID uuid.UUID) *SourceStats {
	stats := &SourceStats{SourceID: sourceID}

	var artifacts []*Artifact
	db.Where("proof_artifacts.source_id = ?", sourceID).Find(&artifacts)

	confidence := 0
	supports := 0

	for _, artifact := range artifacts {
		stats.TotalProofs++

		if artifact.Status != nil {
			switch *artifact.Status {
			case ArtifactStatusVerified:
				stats.VerifiedProofs++
			case ArtifactStatusRefuted:
				stats.RefutedProofs++
			}
		}

		var attestations []*Attestation
		db.Where("attestations.artifact_id = ? AND attestations.refutation = false", artifact.ID).Find(&attestations)
		for _, att := range attestations {
			supports++
			confidence += att.Confidence
		}
	}

	if supports > 0 {
		stats.AvgConfidence = float64(confidence) / float64(supports)
	}

	return stats
}

// ReputationScore folds the source's proof track record into a 0-100 score
// suitable as the private witness of a reputation threshold proof.
// Verified ratio carries up to 50 points, average attestation confidence up
// to 30, proof volume up to 10; refutations subtract up to 30.
func ReputationScore(stats *SourceStats) int64 {
	if stats == nil || stats.TotalProofs == 0 {
		return 0
	}

	total := float64(stats.TotalProofs)
	score := float64(stats.VerifiedProofs) / total * 50

	if stats.AvgConfidence > 30 {
		score += 30
	} else {
		score += stats.AvgConfidence
	}

	if total > 10 {
		score += 10
	} else {
		score += total
	}

	score -= float64(stats.RefutedProofs) / total * 30

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return int64(score)
}
