package providers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/argus-intel/privacy/common"
)

// MockProverProvider simulates the prover provider interface without any
// underlying circuit artifacts. Its proofs are plaintext commitments over the
// public signals; they carry no soundness whatsoever and exist so the rest of
// the pipeline can run where compiled circuits are unavailable. Consumers are
// required to treat any artifact emitted by this provider as non-binding.
type MockProverProvider struct{}

// InitMockProverProvider initializes a new MockProverProvider instance
func InitMockProverProvider() *MockProverProvider {
	return &MockProverProvider{}
}

// MockProof is the simulated proof payload; Satisfied records whether the
// full witness actually satisfied the circuit statement at proving time, so
// simulated verification remains honest about unsatisfiable witnesses
type MockProof struct {
	Identifier    string                 `json:"identifier"`
	PublicSignals map[string]interface{} `json:"public_signals"`
	Digest        string                 `json:"digest"`
	Satisfied     bool                   `json:"satisfied"`
	Mock          bool                   `json:"mock"`
}

// WriteTo implements io.WriterTo so mock proofs marshal like gnark proofs
func (m *MockProof) WriteTo(w io.Writer) (int64, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(raw)
	return int64(n), err
}

type mockWitness struct {
	identifier string
	inputs     map[string]interface{}
}

// ProverFactory resolves the identifier against the circuit library
func (p *MockProverProvider) ProverFactory(identifier string) interface{} {
	if PublicSignalsFactory(strings.ToLower(identifier)) == nil {
		return nil
	}
	return strings.ToLower(identifier)
}

// WitnessFactory retains the named inputs for the given circuit identifier;
// when isPublic is set, private inputs are discarded
func (p *MockProverProvider) WitnessFactory(identifier string, curve string, inputs interface{}, isPublic bool) (interface{}, error) {
	public := PublicSignalsFactory(strings.ToLower(identifier))
	if public == nil {
		return nil, fmt.Errorf("failed to serialize witness; %s circuit not resolved", identifier)
	}

	witmap, witmapOk := inputs.(map[string]interface{})
	if !witmapOk {
		return nil, fmt.Errorf("failed to serialize witness for %s circuit", identifier)
	}

	retained := map[string]interface{}{}
	for k, v := range witmap {
		if isPublic && !isPublicSignal(public, k) {
			continue
		}
		retained[k] = v
	}

	return &mockWitness{
		identifier: strings.ToLower(identifier),
		inputs:     retained,
	}, nil
}

// Compile returns the circuit identifier as the compiled artifact
func (p *MockProverProvider) Compile(argv ...interface{}) (interface{}, error) {
	identifier, identifierOk := argv[0].(string)
	if !identifierOk {
		return nil, fmt.Errorf("failed to compile mock circuit; expected identifier")
	}
	return &MockProof{Identifier: identifier}, nil
}

// Setup mints opaque mock key material
func (p *MockProverProvider) Setup(circuit interface{}) (interface{}, interface{}, error) {
	pk, err := common.RandomBytes(32)
	if err != nil {
		return nil, nil, err
	}
	vk, err := common.RandomBytes(32)
	if err != nil {
		return nil, nil, err
	}
	return &MockProof{Digest: hex.EncodeToString(pk)}, &MockProof{Digest: hex.EncodeToString(vk)}, nil
}

// Prove emits a simulated proof over the witness public signals
func (p *MockProverProvider) Prove(circuit, provingKey []byte, witness interface{}) (interface{}, error) {
	wit, witOk := witness.(*mockWitness)
	if !witOk {
		return nil, fmt.Errorf("failed to generate mock proof; invalid witness type %T", witness)
	}

	public := PublicSignalsFactory(wit.identifier)
	signals := map[string]interface{}{}
	for _, name := range public {
		val, valOk := wit.inputs[name]
		if !valOk {
			return nil, fmt.Errorf("failed to generate mock proof; missing public signal %s", name)
		}
		signals[name] = val
	}

	raw, _ := json.Marshal(wit.inputs)
	digest := sha256.Sum256(raw)

	common.Log.Debugf("generated simulated %s proof; this artifact is not cryptographically binding", wit.identifier)

	return &MockProof{
		Identifier:    wit.identifier,
		PublicSignals: signals,
		Digest:        hex.EncodeToString(digest[:]),
		Satisfied:     evaluateStatement(wit.identifier, wit.inputs),
		Mock:          true,
	}, nil
}

// evaluateStatement evaluates the circuit statement in the clear over the
// full witness; this is what makes simulated proofs behave soundly even
// though they prove nothing
func evaluateStatement(identifier string, inputs map[string]interface{}) bool {
	switch identifier {
	case GnarkCircuitIdentifierLocationProximity:
		dLat := witnessInt(inputs["Lat"]) - witnessInt(inputs["TargetLat"])
		dLon := witnessInt(inputs["Lon"]) - witnessInt(inputs["TargetLon"])
		return dLat*dLat+dLon*dLon <= witnessInt(inputs["MaxDistSq"])
	case GnarkCircuitIdentifierReputationThreshold:
		score := witnessInt(inputs["Score"])
		return witnessInt(inputs["Threshold"]) <= score && score <= 100
	}
	return false
}

func witnessInt(val interface{}) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Verify checks the simulated proof against the public witness; deterministic
// and repeatable, but in no sense sound
func (p *MockProverProvider) Verify(proof, verifyingKey []byte, witness interface{}) error {
	var prf MockProof
	err := json.Unmarshal(proof, &prf)
	if err != nil {
		return fmt.Errorf("unable to decode mock proof; %s", err.Error())
	}

	if !prf.Mock {
		return fmt.Errorf("mock provider cannot verify non-mock proof artifacts")
	}

	wit, witOk := witness.(*mockWitness)
	if !witOk {
		return fmt.Errorf("failed to verify mock proof; invalid witness type %T", witness)
	}

	if prf.Identifier != wit.identifier {
		return fmt.Errorf("mock proof circuit mismatch; expected %s, got %s", wit.identifier, prf.Identifier)
	}

	for _, name := range PublicSignalsFactory(wit.identifier) {
		expected, expectedOk := wit.inputs[name]
		if !expectedOk {
			return fmt.Errorf("mock proof verification requires public signal %s", name)
		}
		if witnessInt(prf.PublicSignals[name]) != witnessInt(expected) {
			return fmt.Errorf("mock proof public signal mismatch for %s", name)
		}
	}

	if !prf.Satisfied {
		return fmt.Errorf("statement not satisfied by witness")
	}

	return nil
}
