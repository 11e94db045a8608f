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
	"time"

	dbconf "github.com/kthomas/go-db-config"
	natsutil "github.com/kthomas/go-natsutil"
	"github.com/robfig/cron"

	"github.com/argus-intel/privacy/common"
)

const withdrawalSweepSchedule = "@every 1m"
const withdrawalSweepBatchSize = 100

// RunScheduler starts the periodic sweep that publishes due withdrawals to
// the release subject; returns the scheduler so callers can stop it during
// shutdown. The sweep only enqueues work; releases happen on the consumer
// under the per-withdrawal lock, so overlapping sweeps are harmless.
func RunScheduler() *cron.Cron {
	scheduler := cron.New()
	scheduler.AddFunc(withdrawalSweepSchedule, sweepDueWithdrawals)
	scheduler.Start()

	common.Log.Debugf("started withdrawal release scheduler; sweeping %s", withdrawalSweepSchedule)
	return scheduler
}

func sweepDueWithdrawals() {
	db := dbconf.DatabaseConnection()

	var due []*PendingWithdrawal
	db.Where("pending_withdrawals.status = ? AND pending_withdrawals.scheduled_for <= ?", WithdrawalStatusPending, time.Now()).
		Limit(withdrawalSweepBatchSize).
		Find(&due)

	for _, withdrawal := range due {
		payload, _ := json.Marshal(map[string]interface{}{
			"withdrawal_id": withdrawal.ID.String(),
		})

		_, err := natsutil.NatsJetstreamPublish(natsWithdrawalReleaseSubject, payload)
		if err != nil {
			common.Log.Warningf("failed to publish release for due withdrawal %s; %s", withdrawal.ID, err.Error())
			continue
		}
	}

	if len(due) > 0 {
		common.Log.Debugf("published %d due withdrawal(s) for release", len(due))
	}
}
