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
	"encoding/json"
	"fmt"
	"sync"
	"time"

	natsutil "github.com/kthomas/go-natsutil"
	uuid "github.com/kthomas/go.uuid"
	"github.com/nats-io/nats.go"

	"github.com/argus-intel/privacy/common"
)

const defaultNatsStream = "privacy"

const natsProofGenerationSubject = "privacy.proof.generation.pending"
const natsProofGenerationCompleteSubject = "privacy.proof.generation.complete"
const natsProofGenerationFailedSubject = "privacy.proof.generation.failed"

const natsProofGenerationMaxInFlight = 32
const proofGenerationAckWait = time.Minute * 5
const proofGenerationMaxDeliveries = 3

func init() {
	if !common.ConsumeNATSStreamingSubscriptions {
		common.Log.Debug("proof package consumer configured to skip NATS streaming subscription setup")
		return
	}

	natsutil.EstablishSharedNatsConnection(nil)
	natsutil.NatsCreateStream(defaultNatsStream, []string{
		fmt.Sprintf("%s.>", defaultNatsStream),
	})

	var waitGroup sync.WaitGroup

	createNatsProofGenerationSubscriptions(&waitGroup)
}

func createNatsProofGenerationSubscriptions(wg *sync.WaitGroup) {
	for i := uint64(0); i < natsutil.GetNatsConsumerConcurrency(); i++ {
		natsutil.RequireNatsJetstreamSubscription(wg,
			proofGenerationAckWait,
			natsProofGenerationSubject,
			natsProofGenerationSubject,
			natsProofGenerationSubject,
			consumeProofGenerationMsg,
			proofGenerationAckWait,
			natsProofGenerationMaxInFlight,
			proofGenerationMaxDeliveries,
			nil,
		)
	}
}

// RequestAsyncGeneration queues proof generation on the worker pool; the
// witness travels only over the internal stream and is dropped after proving
func RequestAsyncGeneration(proofType string, sourceID uuid.UUID, postID *uuid.UUID, witness interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{
		"type":      proofType,
		"source_id": sourceID.String(),
		"post_id":   postID,
		"witness":   witness,
	})
	if err != nil {
		return err
	}

	_, err = natsutil.NatsJetstreamPublish(natsProofGenerationSubject, payload)
	return err
}

func consumeProofGenerationMsg(msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			common.Log.Warningf("recovered during async proof generation; %s", r)
			msg.Nak()
		}
	}()

	common.Log.Debugf("consuming %d-byte NATS proof generation message on subject: %s", len(msg.Data), msg.Subject)

	params := map[string]interface{}{}
	err := json.Unmarshal(msg.Data, &params)
	if err != nil {
		common.Log.Warningf("failed to unmarshal proof generation message; %s", err.Error())
		msg.Nak()
		return
	}

	proofType, proofTypeOk := params["type"].(string)
	rawSourceID, sourceIDOk := params["source_id"].(string)
	if !proofTypeOk || !sourceIDOk {
		common.Log.Warning("failed to resolve type and source_id during proof generation message handler")
		msg.Nak()
		return
	}

	sourceID, err := uuid.FromString(rawSourceID)
	if err != nil {
		common.Log.Warningf("failed to parse source_id during proof generation message handler; %s", err.Error())
		msg.Nak()
		return
	}

	var postID *uuid.UUID
	if rawPostID, postIDOk := params["post_id"].(string); postIDOk {
		id, err := uuid.FromString(rawPostID)
		if err == nil {
			postID = &id
		}
	}

	witnessRaw, _ := json.Marshal(params["witness"])

	artifact, err := generateFromParams(proofType, sourceID, postID, witnessRaw)
	if err != nil {
		common.Log.Warningf("async %s proof generation failed for source %s; %s", proofType, sourceID, err.Error())
		payload, _ := json.Marshal(map[string]interface{}{
			"type":      proofType,
			"source_id": sourceID.String(),
			"error":     err.Error(),
		})
		natsutil.NatsJetstreamPublish(natsProofGenerationFailedSubject, payload)
		msg.Nak()
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"artifact_id": artifact.ID.String(),
		"type":        proofType,
		"source_id":   sourceID.String(),
		"mock":        artifact.Mock,
	})
	natsutil.NatsJetstreamPublish(natsProofGenerationCompleteSubject, payload)
	msg.Ack()
}

func generateFromParams(proofType string, sourceID uuid.UUID, postID *uuid.UUID, witnessRaw []byte) (*Artifact, error) {
	switch proofType {
	case ProofTypeLocation:
		witness := &LocationWitness{}
		if err := json.Unmarshal(witnessRaw, witness); err != nil {
			return nil, fmt.Errorf("%w; %s", ErrInvalidWitness, err.Error())
		}
		return GenerateLocationProof(sourceID, postID, witness)
	case ProofTypeReputation:
		witness := &ReputationWitness{}
		if err := json.Unmarshal(witnessRaw, witness); err != nil {
			return nil, fmt.Errorf("%w; %s", ErrInvalidWitness, err.Error())
		}
		return GenerateReputationProof(sourceID, postID, witness)
	}

	return nil, fmt.Errorf("unknown proof type: %s", proofType)
}
