package gnark

import (
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
)

// LocationProximityCircuit proves that a secret coordinate lies within a
// public distance bound of a public target coordinate without revealing the
// secret coordinate. Coordinates are non-negative scaled grid units and the
// bound is a squared distance in the same units; the caller is responsible
// for projecting degrees (and the km radius) into grid units before proving.
type LocationProximityCircuit struct {
	Lat frontend.Variable
	Lon frontend.Variable

	TargetLat frontend.Variable `gnark:",public"`
	TargetLon frontend.Variable `gnark:",public"`
	MaxDistSq frontend.Variable `gnark:",public"`
}

// Define declares the circuit constraints
// (Lat-TargetLat)^2 + (Lon-TargetLon)^2 <= MaxDistSq
func (circuit *LocationProximityCircuit) Define(curveID ecc.ID, cs frontend.API) error {
	dLat := cs.Sub(circuit.Lat, circuit.TargetLat)
	dLon := cs.Sub(circuit.Lon, circuit.TargetLon)

	// a negative delta wraps in the field but squares back to the magnitude
	distSq := cs.Add(cs.Mul(dLat, dLat), cs.Mul(dLon, dLon))
	cs.AssertIsLessOrEqual(distSq, circuit.MaxDistSq)

	return nil
}
