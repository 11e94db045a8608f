package providers

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"github.com/argus-intel/privacy/common"
	libgnark "github.com/argus-intel/privacy/zkp/lib/circuits/gnark"
)

// GnarkProverProvider interacts with the go-native gnark package
type GnarkProverProvider struct {
	curveID         ecc.ID
	provingSchemeID backend.ID
	circuitLibrary  map[string]func() frontend.Circuit
}

// InitGnarkProverProvider initializes and configures a new GnarkProverProvider instance
func InitGnarkProverProvider(curveID *string, provingScheme *string) *GnarkProverProvider {
	return &GnarkProverProvider{
		curveID:         common.GnarkCurveIDFactory(curveID),
		provingSchemeID: common.GnarkProvingSchemeFactory(provingScheme),
		circuitLibrary: map[string]func() frontend.Circuit{
			GnarkCircuitIdentifierLocationProximity:   func() frontend.Circuit { return &libgnark.LocationProximityCircuit{} },
			GnarkCircuitIdentifierReputationThreshold: func() frontend.Circuit { return &libgnark.ReputationThresholdCircuit{} },
		},
	}
}

// ProverFactory returns a fresh library circuit by name
func (p *GnarkProverProvider) ProverFactory(identifier string) interface{} {
	id := strings.ToLower(identifier)
	factory, factoryOk := p.circuitLibrary[id]
	if factoryOk {
		return factory()
	}

	return nil
}

// WitnessFactory generates a valid witness for the given circuit identifier,
// curve and named inputs; when isPublic is set, only public inputs are assigned
func (p *GnarkProverProvider) WitnessFactory(identifier string, curve string, inputs interface{}, isPublic bool) (interface{}, error) {
	w := p.ProverFactory(identifier)
	if w == nil {
		return nil, fmt.Errorf("failed to serialize witness; %s circuit not resolved", identifier)
	}

	witmap, witmapOk := inputs.(map[string]interface{})
	if !witmapOk {
		return nil, fmt.Errorf("failed to serialize witness for %s circuit", identifier)
	}

	public := PublicSignalsFactory(strings.ToLower(identifier))

	witval := reflect.Indirect(reflect.ValueOf(w))
	for k := range witmap {
		if isPublic && !isPublicSignal(public, k) {
			continue
		}

		field := witval.FieldByName(k)
		if !field.CanSet() {
			return nil, fmt.Errorf("failed to serialize witness; field %s does not exist on %s circuit", k, identifier)
		}

		v := frontend.Variable{}
		v.Assign(normalizeWitnessValue(witmap[k]))
		field.Set(reflect.ValueOf(v))
	}

	return w, nil
}

// normalizeWitnessValue coerces JSON-decoded numerics into types the
// underlying field element parser accepts
func normalizeWitnessValue(val interface{}) interface{} {
	if f, fOk := val.(float64); fOk {
		return uint64(f)
	}
	return val
}

func isPublicSignal(public []string, name string) bool {
	for _, p := range public {
		if p == name {
			return true
		}
	}
	return false
}

func (p *GnarkProverProvider) decodeR1CS(encodedR1CS []byte) (frontend.CompiledConstraintSystem, error) {
	if p.provingSchemeID != backend.GROTH16 {
		return nil, fmt.Errorf("invalid proving scheme in decodeR1CS")
	}

	decodedR1CS := groth16.NewCS(p.curveID)
	_, err := decodedR1CS.ReadFrom(bytes.NewReader(encodedR1CS))
	if err != nil {
		common.Log.Warningf("unable to decode R1CS; %s", err.Error())
		return nil, err
	}

	return decodedR1CS, nil
}

func (p *GnarkProverProvider) decodeProvingKey(pk []byte) (groth16.ProvingKey, error) {
	provingKey := groth16.NewProvingKey(p.curveID)
	n, err := provingKey.ReadFrom(bytes.NewReader(pk))
	if err != nil {
		return nil, fmt.Errorf("unable to decode proving key; %s", err.Error())
	}

	common.Log.Debugf("read %d bytes during attempted proving key deserialization", n)
	return provingKey, nil
}

func (p *GnarkProverProvider) decodeVerifyingKey(vk []byte) (groth16.VerifyingKey, error) {
	verifyingKey := groth16.NewVerifyingKey(p.curveID)
	n, err := verifyingKey.ReadFrom(bytes.NewReader(vk))
	if err != nil {
		return nil, fmt.Errorf("unable to decode verifying key; %s", err.Error())
	}

	common.Log.Debugf("read %d bytes during attempted verifying key deserialization", n)
	return verifyingKey, nil
}

func (p *GnarkProverProvider) decodeProof(proof []byte) (groth16.Proof, error) {
	prf := groth16.NewProof(p.curveID)
	_, err := prf.ReadFrom(bytes.NewReader(proof))
	if err != nil {
		common.Log.Warningf("unable to decode proof; %s", err.Error())
		return nil, err
	}

	return prf, nil
}

// Compile the given circuit to r1cs
func (p *GnarkProverProvider) Compile(argv ...interface{}) (interface{}, error) {
	circuit := argv[0].(frontend.Circuit)

	r1cs, err := frontend.Compile(p.curveID, p.provingSchemeID, circuit)
	if err != nil {
		common.Log.Warningf("failed to compile circuit to r1cs using gnark; %s", err.Error())
		return nil, err
	}

	return r1cs, err
}

// Setup runs the groth16 setup for the compiled circuit
func (p *GnarkProverProvider) Setup(circuit interface{}) (interface{}, interface{}, error) {
	r1cs, err := p.decodeR1CS(circuit.([]byte))
	if err != nil {
		return nil, nil, err
	}

	if p.provingSchemeID != backend.GROTH16 {
		return nil, nil, fmt.Errorf("invalid proving scheme for Setup")
	}

	return groth16.Setup(r1cs)
}

// Prove generates a proof for the given full witness
func (p *GnarkProverProvider) Prove(circuit, provingKey []byte, witness interface{}) (interface{}, error) {
	r1cs, err := p.decodeR1CS(circuit)
	if err != nil {
		return nil, err
	}

	pk, err := p.decodeProvingKey(provingKey)
	if err != nil {
		return nil, err
	}

	if p.provingSchemeID != backend.GROTH16 {
		return nil, fmt.Errorf("invalid proving scheme for Prove")
	}

	return groth16.Prove(r1cs, pk, witness.(frontend.Circuit))
}

// Verify the given proof against the public witness
func (p *GnarkProverProvider) Verify(proof, verifyingKey []byte, witness interface{}) error {
	prf, err := p.decodeProof(proof)
	if err != nil {
		return err
	}

	vk, err := p.decodeVerifyingKey(verifyingKey)
	if err != nil {
		return err
	}

	if p.provingSchemeID != backend.GROTH16 {
		return fmt.Errorf("invalid proving scheme for Verify")
	}

	return groth16.Verify(prf, vk, witness.(frontend.Circuit))
}
