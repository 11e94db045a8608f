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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomDelayBounds(t *testing.T) {
	min := time.Hour * 1
	max := time.Hour * 48

	for i := 0; i < 100; i++ {
		delay, err := randomDelay(min, max)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, delay, min)
		assert.Less(t, delay, max)
	}
}

func TestRandomDelayJitter(t *testing.T) {
	min := time.Hour * 1
	max := time.Hour * 48

	seen := map[time.Duration]bool{}
	for i := 0; i < 25; i++ {
		delay, err := randomDelay(min, max)
		require.NoError(t, err)
		seen[delay] = true
	}

	// a 47-hour nanosecond-granular window virtually never repeats
	assert.Greater(t, len(seen), 1, "release delays must not be predictable")
}

func TestSplitDenominations(t *testing.T) {
	denominations, err := SplitDenominations(30000)
	require.NoError(t, err)

	var sum int64
	for i, d := range denominations {
		assert.Equal(t, int64(0), d&(d-1), "denomination %d is not a power of two", d)
		if i > 0 {
			assert.Less(t, d, denominations[i-1], "denominations are emitted largest first")
		}
		sum += d
	}
	assert.Equal(t, int64(30000), sum)
}

func TestSplitDenominationsExactPowers(t *testing.T) {
	denominations, err := SplitDenominations(65536)
	require.NoError(t, err)
	assert.Equal(t, []int64{65536}, denominations)

	denominations, err = SplitDenominations(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, denominations)
}

func TestSplitDenominationsBoundedCount(t *testing.T) {
	// worst case is one denomination per set bit
	denominations, err := SplitDenominations((1 << 62) - 1)
	require.NoError(t, err)
	assert.Len(t, denominations, 62)

	var sum int64
	for _, d := range denominations {
		sum += d
	}
	assert.Equal(t, int64((1<<62)-1), sum)
}

func TestSplitDenominationsRejectsNonPositive(t *testing.T) {
	_, err := SplitDenominations(0)
	assert.Error(t, err)

	_, err = SplitDenominations(-5)
	assert.Error(t, err)
}
