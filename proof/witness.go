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
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWitness is returned when a private witness is out of range;
// detected before any proving work is attempted
var ErrInvalidWitness = errors.New("invalid witness")

// ErrInvalidProofParameters is returned when the public proof parameters are
// malformed, e.g. a non-positive distance bound
var ErrInvalidProofParameters = errors.New("invalid proof parameters")

// ProofTypeLocation location proximity proof
const ProofTypeLocation = "location"

// ProofTypeReputation reputation threshold proof
const ProofTypeReputation = "reputation"

// Coordinates are quantized onto a grid of 1e-4 degree units (roughly 11m of
// latitude) and offset to be non-negative before entering the circuit. The
// longitude axis is pre-scaled by cos(targetLat) so a unit step costs the
// same distance on both axes; the circuit then compares squared planar
// distance against a squared bound. This local equirectangular approximation
// holds for the proximity ranges the proofs are used at.
const gridUnitDegrees = 1e-4
const kmPerLatDegree = 111.195

// LocationWitness carries the private coordinates and public proximity
// parameters for a location proof
type LocationWitness struct {
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	TargetLat     float64 `json:"target_lat"`
	TargetLon     float64 `json:"target_lon"`
	MaxDistanceKm float64 `json:"max_distance_km"`
}

func (w *LocationWitness) validate() error {
	if w.MaxDistanceKm <= 0 {
		return fmt.Errorf("%w; distance bound must be positive, got %g km", ErrInvalidProofParameters, w.MaxDistanceKm)
	}

	for _, lat := range []float64{w.Lat, w.TargetLat} {
		if lat < -90 || lat > 90 {
			return fmt.Errorf("%w; latitude %g out of range", ErrInvalidWitness, lat)
		}
	}

	for _, lon := range []float64{w.Lon, w.TargetLon} {
		if lon < -180 || lon > 180 {
			return fmt.Errorf("%w; longitude %g out of range", ErrInvalidWitness, lon)
		}
	}

	return nil
}

// inputs quantizes the witness onto the circuit's grid
func (w *LocationWitness) inputs() map[string]interface{} {
	cosLat := math.Cos(w.TargetLat * math.Pi / 180)

	latUnits := func(lat float64) uint64 {
		return uint64(math.Round((lat + 90) / gridUnitDegrees))
	}
	lonUnits := func(lon float64) uint64 {
		return uint64(math.Round((lon + 180) * cosLat / gridUnitDegrees))
	}

	kmPerUnit := kmPerLatDegree * gridUnitDegrees
	maxUnits := w.MaxDistanceKm / kmPerUnit

	return map[string]interface{}{
		"Lat":       latUnits(w.Lat),
		"Lon":       lonUnits(w.Lon),
		"TargetLat": latUnits(w.TargetLat),
		"TargetLon": lonUnits(w.TargetLon),
		"MaxDistSq": uint64(math.Ceil(maxUnits * maxUnits)),
	}
}

func (w *LocationWitness) claim() string {
	return fmt.Sprintf("within %gkm of (%g,%g)", w.MaxDistanceKm, w.TargetLat, w.TargetLon)
}

// ReputationWitness carries the private score and public threshold for a
// reputation proof
type ReputationWitness struct {
	Score     int64 `json:"score"`
	Threshold int64 `json:"threshold"`
}

func (w *ReputationWitness) validate() error {
	if w.Threshold < 0 || w.Threshold > 100 {
		return fmt.Errorf("%w; threshold %d out of range", ErrInvalidProofParameters, w.Threshold)
	}

	if w.Score < 0 || w.Score > 100 {
		return fmt.Errorf("%w; reputation score %d out of range", ErrInvalidWitness, w.Score)
	}

	return nil
}

func (w *ReputationWitness) inputs() map[string]interface{} {
	return map[string]interface{}{
		"Score":     uint64(w.Score),
		"Threshold": uint64(w.Threshold),
	}
}

func (w *ReputationWitness) claim() string {
	return fmt.Sprintf("reputation score >= %d", w.Threshold)
}
