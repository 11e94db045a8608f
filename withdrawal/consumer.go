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

package withdrawal

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	dbconf "github.com/kthomas/go-db-config"
	natsutil "github.com/kthomas/go-natsutil"
	uuid "github.com/kthomas/go.uuid"
	"github.com/nats-io/nats.go"

	"github.com/argus-intel/privacy/common"
)

const defaultNatsStream = "privacy"

const natsWithdrawalReleaseSubject = "privacy.withdrawal.release.pending"

const natsWithdrawalReleaseMaxInFlight = 16
const withdrawalReleaseAckWait = time.Minute * 1
const withdrawalReleaseMaxDeliveries = 5

func init() {
	if !common.ConsumeNATSStreamingSubscriptions {
		common.Log.Debug("withdrawal package consumer configured to skip NATS streaming subscription setup")
		return
	}

	natsutil.EstablishSharedNatsConnection(nil)
	natsutil.NatsCreateStream(defaultNatsStream, []string{
		fmt.Sprintf("%s.>", defaultNatsStream),
	})

	var waitGroup sync.WaitGroup

	createNatsWithdrawalReleaseSubscriptions(&waitGroup)
}

func createNatsWithdrawalReleaseSubscriptions(wg *sync.WaitGroup) {
	for i := uint64(0); i < natsutil.GetNatsConsumerConcurrency(); i++ {
		natsutil.RequireNatsJetstreamSubscription(wg,
			withdrawalReleaseAckWait,
			natsWithdrawalReleaseSubject,
			natsWithdrawalReleaseSubject,
			natsWithdrawalReleaseSubject,
			consumeWithdrawalReleaseMsg,
			withdrawalReleaseAckWait,
			natsWithdrawalReleaseMaxInFlight,
			withdrawalReleaseMaxDeliveries,
			nil,
		)
	}
}

func consumeWithdrawalReleaseMsg(msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			common.Log.Warningf("recovered during withdrawal release; %s", r)
			msg.Nak()
		}
	}()

	common.Log.Debugf("consuming %d-byte NATS withdrawal release message on subject: %s", len(msg.Data), msg.Subject)

	params := map[string]interface{}{}
	err := json.Unmarshal(msg.Data, &params)
	if err != nil {
		common.Log.Warningf("failed to unmarshal withdrawal release message; %s", err.Error())
		msg.Nak()
		return
	}

	rawWithdrawalID, withdrawalIDOk := params["withdrawal_id"].(string)
	if !withdrawalIDOk {
		common.Log.Warning("failed to resolve withdrawal_id during withdrawal release message handler")
		msg.Nak()
		return
	}

	withdrawalID, err := uuid.FromString(rawWithdrawalID)
	if err != nil {
		common.Log.Warningf("failed to parse withdrawal_id during withdrawal release message handler; %s", err.Error())
		msg.Nak()
		return
	}

	db := dbconf.DatabaseConnection()
	withdrawal := Find(db, withdrawalID)
	if withdrawal == nil {
		common.Log.Warningf("withdrawal %s not found during release message handler", withdrawalID)
		msg.Nak()
		return
	}

	err = withdrawal.Release(&NatsRail{})
	if err != nil {
		common.Log.Warningf("failed to release withdrawal %s; %s", withdrawalID, err.Error())
		msg.Nak()
		return
	}

	msg.Ack()
}
