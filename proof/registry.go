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
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/argus-intel/privacy/common"
	zkp "github.com/argus-intel/privacy/zkp/providers"
)

// proverArtifacts holds the compiled circuit and key material for one
// circuit identifier; compiled once per process and reused for every proof
type proverArtifacts struct {
	provider     zkp.ZKSnarkProverProvider
	identifier   string
	r1cs         []byte
	provingKey   []byte
	verifyingKey []byte
	mock         bool
}

var registryMutex sync.Mutex
var registry = map[string]*proverArtifacts{}

func serializeArtifact(artifact interface{}) ([]byte, error) {
	writer, writerOk := artifact.(io.WriterTo)
	if !writerOk {
		return nil, fmt.Errorf("artifact of type %T is not serializable", artifact)
	}

	buf := new(bytes.Buffer)
	_, err := writer.WriteTo(buf)
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// resolveProver returns the cached prover artifacts for the given circuit
// identifier, compiling and running setup on first use. When compilation or
// setup fails and the mock prover is allowed, the mock provider takes over;
// everything it emits is tagged and never treated as binding.
func resolveProver(identifier string) (*proverArtifacts, error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if artifacts, artifactsOk := registry[identifier]; artifactsOk {
		return artifacts, nil
	}

	artifacts, err := compileAndSetup(identifier)
	if err != nil {
		if !common.ZKPAllowMockProver {
			return nil, err
		}

		common.Log.Warningf("falling back to simulated prover for %s circuit; %s", identifier, err.Error())
		artifacts, err = mockProverArtifacts(identifier)
		if err != nil {
			return nil, err
		}
	}

	registry[identifier] = artifacts
	return artifacts, nil
}

func compileAndSetup(identifier string) (*proverArtifacts, error) {
	provider := zkp.InitGnarkProverProvider(&common.DefaultZKPCurve, &common.DefaultZKPProvingScheme)

	circuit := provider.ProverFactory(identifier)
	if circuit == nil {
		return nil, fmt.Errorf("failed to resolve %s circuit", identifier)
	}

	compiled, err := provider.Compile(circuit)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s circuit; %s", identifier, err.Error())
	}

	r1cs, err := serializeArtifact(compiled)
	if err != nil {
		return nil, err
	}

	pk, vk, err := provider.Setup(r1cs)
	if err != nil {
		return nil, fmt.Errorf("failed to run setup for %s circuit; %s", identifier, err.Error())
	}

	provingKey, err := serializeArtifact(pk)
	if err != nil {
		return nil, err
	}

	verifyingKey, err := serializeArtifact(vk)
	if err != nil {
		return nil, err
	}

	common.Log.Debugf("compiled %s circuit; r1cs: %d bytes, pk: %d bytes, vk: %d bytes", identifier, len(r1cs), len(provingKey), len(verifyingKey))

	return &proverArtifacts{
		provider:     provider,
		identifier:   identifier,
		r1cs:         r1cs,
		provingKey:   provingKey,
		verifyingKey: verifyingKey,
	}, nil
}

func mockProverArtifacts(identifier string) (*proverArtifacts, error) {
	provider := zkp.InitMockProverProvider()

	if provider.ProverFactory(identifier) == nil {
		return nil, fmt.Errorf("failed to resolve %s circuit", identifier)
	}

	compiled, err := provider.Compile(identifier)
	if err != nil {
		return nil, err
	}

	r1cs, err := serializeArtifact(compiled)
	if err != nil {
		return nil, err
	}

	pk, vk, err := provider.Setup(r1cs)
	if err != nil {
		return nil, err
	}

	provingKey, err := serializeArtifact(pk)
	if err != nil {
		return nil, err
	}

	verifyingKey, err := serializeArtifact(vk)
	if err != nil {
		return nil, err
	}

	return &proverArtifacts{
		provider:     provider,
		identifier:   identifier,
		r1cs:         r1cs,
		provingKey:   provingKey,
		verifyingKey: verifyingKey,
		mock:         true,
	}, nil
}

func circuitIdentifier(proofType string) (string, error) {
	switch proofType {
	case ProofTypeLocation:
		return zkp.GnarkCircuitIdentifierLocationProximity, nil
	case ProofTypeReputation:
		return zkp.GnarkCircuitIdentifierReputationThreshold, nil
	}
	return "", fmt.Errorf("unknown proof type: %s", proofType)
}
