package providers

// GnarkCircuitIdentifierLocationProximity gnark location proximity circuit
const GnarkCircuitIdentifierLocationProximity = "location_proximity"

// GnarkCircuitIdentifierReputationThreshold gnark reputation threshold circuit
const GnarkCircuitIdentifierReputationThreshold = "reputation_threshold"

// ZKSnarkProverProviderGnark gnark zksnark prover provider
const ZKSnarkProverProviderGnark = "gnark"

// ZKSnarkProverProviderMock mock prover provider; emits simulated proofs which
// are NOT cryptographically binding and must never be accepted as such
const ZKSnarkProverProviderMock = "mock"

// ZKSnarkProverProvider provides a common interface to generate and verify
// zksnark proofs for the circuits in the library
type ZKSnarkProverProvider interface {
	ProverFactory(identifier string) interface{}
	WitnessFactory(identifier string, curve string, inputs interface{}, isPublic bool) (interface{}, error)
	Compile(argv ...interface{}) (interface{}, error)
	Setup(circuit interface{}) (interface{}, interface{}, error)
	Prove(circuit, provingKey []byte, witness interface{}) (interface{}, error)
	Verify(proof, verifyingKey []byte, witness interface{}) error
}

// PublicSignalsFactory returns the ordered public input names for the given
// circuit identifier, or nil if the identifier is not in the library
func PublicSignalsFactory(identifier string) []string {
	switch identifier {
	case GnarkCircuitIdentifierLocationProximity:
		return []string{"TargetLat", "TargetLon", "MaxDistSq"}
	case GnarkCircuitIdentifierReputationThreshold:
		return []string{"Threshold"}
	}

	return nil
}
