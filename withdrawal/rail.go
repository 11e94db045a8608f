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

	natsutil "github.com/kthomas/go-natsutil"
	uuid "github.com/kthomas/go.uuid"
)

const natsRailSubmissionSubject = "privacy.withdrawal.rail.submit"

// Rail abstracts the privacy-preserving payment rail; the escrow core only
// hands it a set of denominated amounts and never learns the payout address
type Rail interface {
	Submit(sourceID uuid.UUID, denominations []int64) error
}

// NatsRail submits denominated payouts to the rail integration over the
// internal stream; the rail worker consuming the subject owns settlement
type NatsRail struct{}

// Submit publishes one rail submission covering all denominations
func (r *NatsRail) Submit(sourceID uuid.UUID, denominations []int64) error {
	payload, err := json.Marshal(map[string]interface{}{
		"source_id":     sourceID.String(),
		"denominations": denominations,
	})
	if err != nil {
		return err
	}

	_, err = natsutil.NatsJetstreamPublish(natsRailSubmissionSubject, payload)
	return err
}
