package gnark

import (
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
)

// ReputationThresholdCircuit proves that a secret reputation score meets a
// public threshold without revealing the exact score.
// Threshold <= Score <= 100
type ReputationThresholdCircuit struct {
	Score frontend.Variable

	Threshold frontend.Variable `gnark:",public"`
}

// Define declares the circuit constraints
func (circuit *ReputationThresholdCircuit) Define(curveID ecc.ID, cs frontend.API) error {
	cs.AssertIsLessOrEqual(circuit.Threshold, circuit.Score)

	// scores are bounded at 100; prevents satisfying the threshold with a
	// wrapped field element
	cs.AssertIsLessOrEqual(circuit.Score, 100)

	return nil
}
