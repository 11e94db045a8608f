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

package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLockRunsDirectlyWithoutRedis(t *testing.T) {
	require.False(t, RedisEnabled, "test environment must not configure REDIS_HOSTS")

	invoked := false
	err := WithLock("privacy.test.lock", func() error {
		invoked = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, invoked)
}

func TestWithLockPropagatesError(t *testing.T) {
	err := WithLock("privacy.test.lock", func() error {
		return errors.New("rotation rejected")
	})
	require.EqualError(t, err, "rotation rejected")
}
