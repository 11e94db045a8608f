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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocationWitnessValidation(t *testing.T) {
	valid := &LocationWitness{Lat: 48.86, Lon: 2.35, TargetLat: 48.85, TargetLon: 2.34, MaxDistanceKm: 5}
	assert.NoError(t, valid.validate())

	outOfRangeLat := &LocationWitness{Lat: 91, Lon: 0, TargetLat: 0, TargetLon: 0, MaxDistanceKm: 5}
	assert.ErrorIs(t, outOfRangeLat.validate(), ErrInvalidWitness)

	outOfRangeLon := &LocationWitness{Lat: 0, Lon: -181, TargetLat: 0, TargetLon: 0, MaxDistanceKm: 5}
	assert.ErrorIs(t, outOfRangeLon.validate(), ErrInvalidWitness)

	// non-positive distance bound is a parameter error, caught before the
	// witness is inspected
	zeroBound := &LocationWitness{Lat: 91, Lon: 0, TargetLat: 0, TargetLon: 0, MaxDistanceKm: 0}
	assert.ErrorIs(t, zeroBound.validate(), ErrInvalidProofParameters)

	negativeBound := &LocationWitness{Lat: 0, Lon: 0, TargetLat: 0, TargetLon: 0, MaxDistanceKm: -10}
	assert.ErrorIs(t, negativeBound.validate(), ErrInvalidProofParameters)
}

func TestReputationWitnessValidation(t *testing.T) {
	valid := &ReputationWitness{Score: 85, Threshold: 70}
	assert.NoError(t, valid.validate())

	assert.ErrorIs(t, (&ReputationWitness{Score: 101, Threshold: 70}).validate(), ErrInvalidWitness)
	assert.ErrorIs(t, (&ReputationWitness{Score: -1, Threshold: 70}).validate(), ErrInvalidWitness)
	assert.ErrorIs(t, (&ReputationWitness{Score: 85, Threshold: 101}).validate(), ErrInvalidProofParameters)
	assert.ErrorIs(t, (&ReputationWitness{Score: 85, Threshold: -5}).validate(), ErrInvalidProofParameters)
}

func TestLocationWitnessGridScaling(t *testing.T) {
	// exact match quantizes to zero distance for any positive bound
	exact := &LocationWitness{Lat: 50.45, Lon: 30.52, TargetLat: 50.45, TargetLon: 30.52, MaxDistanceKm: 0.001}
	inputs := exact.inputs()
	assert.Equal(t, inputs["Lat"], inputs["TargetLat"])
	assert.Equal(t, inputs["Lon"], inputs["TargetLon"])
	assert.GreaterOrEqual(t, inputs["MaxDistSq"].(uint64), uint64(0))

	// roughly 1000km of latitude separation against a 50km bound
	far := &LocationWitness{Lat: 41.0, Lon: 30.52, TargetLat: 50.0, TargetLon: 30.52, MaxDistanceKm: 50}
	inputs = far.inputs()
	dLat := int64(inputs["Lat"].(uint64)) - int64(inputs["TargetLat"].(uint64))
	dLon := int64(inputs["Lon"].(uint64)) - int64(inputs["TargetLon"].(uint64))
	assert.Greater(t, dLat*dLat+dLon*dLon, int64(inputs["MaxDistSq"].(uint64)))

	// 50km of latitude separation within a 60km bound
	near := &LocationWitness{Lat: 50.45, Lon: 30.52, TargetLat: 50.0, TargetLon: 30.52, MaxDistanceKm: 60}
	inputs = near.inputs()
	dLat = int64(inputs["Lat"].(uint64)) - int64(inputs["TargetLat"].(uint64))
	dLon = int64(inputs["Lon"].(uint64)) - int64(inputs["TargetLon"].(uint64))
	assert.LessOrEqual(t, dLat*dLat+dLon*dLon, int64(inputs["MaxDistSq"].(uint64)))
}

func TestLocationWitnessLongitudeCorrection(t *testing.T) {
	// one degree of longitude at 60N is about 55.6km; a 60km bound admits
	// it, a 50km bound does not
	within := &LocationWitness{Lat: 60.0, Lon: 11.0, TargetLat: 60.0, TargetLon: 10.0, MaxDistanceKm: 60}
	inputs := within.inputs()
	dLon := int64(inputs["Lon"].(uint64)) - int64(inputs["TargetLon"].(uint64))
	assert.LessOrEqual(t, dLon*dLon, int64(inputs["MaxDistSq"].(uint64)))

	outside := &LocationWitness{Lat: 60.0, Lon: 11.0, TargetLat: 60.0, TargetLon: 10.0, MaxDistanceKm: 50}
	inputs = outside.inputs()
	dLon = int64(inputs["Lon"].(uint64)) - int64(inputs["TargetLon"].(uint64))
	assert.Greater(t, dLon*dLon, int64(inputs["MaxDistSq"].(uint64)))
}

func TestWitnessClaims(t *testing.T) {
	location := &LocationWitness{Lat: 48.86, Lon: 2.35, TargetLat: 48.85, TargetLon: 2.34, MaxDistanceKm: 5}
	assert.Equal(t, "within 5km of (48.85,2.34)", location.claim())

	reputation := &ReputationWitness{Score: 85, Threshold: 70}
	assert.Equal(t, "reputation score >= 70", reputation.claim())
}

func TestReputationScoreFormula(t *testing.T) {
	assert.Equal(t, int64(0), ReputationScore(nil))
	assert.Equal(t, int64(0), ReputationScore(&SourceStats{}))

	// flawless record: 50 (verified ratio) + 30 (confidence cap) + volume
	strong := &SourceStats{TotalProofs: 12, VerifiedProofs: 12, AvgConfidence: 90}
	assert.Equal(t, int64(90), ReputationScore(strong))

	// single unattested proof earns volume credit only
	fresh := &SourceStats{TotalProofs: 1}
	assert.Equal(t, int64(1), ReputationScore(fresh))

	// refutations drag the score down
	refuted := &SourceStats{TotalProofs: 4, VerifiedProofs: 1, RefutedProofs: 3, AvgConfidence: 20}
	score := ReputationScore(refuted)
	assert.GreaterOrEqual(t, score, int64(0))
	assert.Less(t, score, int64(30))

	// never exceeds 100 or drops below 0
	maximal := &SourceStats{TotalProofs: 100, VerifiedProofs: 100, AvgConfidence: 100}
	assert.LessOrEqual(t, ReputationScore(maximal), int64(100))

	hopeless := &SourceStats{TotalProofs: 10, RefutedProofs: 10}
	assert.GreaterOrEqual(t, ReputationScore(hopeless), int64(0))
}

func TestArtifactStatusTransitions(t *testing.T) {
	support := func(confidence int) *Attestation {
		return &Attestation{Confidence: confidence}
	}
	refute := func() *Attestation {
		return &Attestation{Refutation: true, Confidence: 100}
	}

	assert.Equal(t, ArtifactStatusPending, artifactStatusFor(nil))
	assert.Equal(t, ArtifactStatusPending, artifactStatusFor([]*Attestation{support(50)}))
	assert.Equal(t, ArtifactStatusVerified, artifactStatusFor([]*Attestation{support(80), support(75)}))
	assert.Equal(t, ArtifactStatusVerified, artifactStatusFor([]*Attestation{support(70)}))
	assert.Equal(t, ArtifactStatusContested, artifactStatusFor([]*Attestation{support(90), refute()}))
	assert.Equal(t, ArtifactStatusRefuted, artifactStatusFor([]*Attestation{support(90), refute(), refute()}))
	assert.Equal(t, ArtifactStatusRefuted, artifactStatusFor([]*Attestation{refute()}))
}
