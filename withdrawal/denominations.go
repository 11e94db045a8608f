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

import "fmt"

// SplitDenominations decomposes an amount into standard power-of-two
// denominations, largest first. Standardized payout sizes reduce amount-based
// correlation between the escrow debit and the rail transactions.
func SplitDenominations(amount int64) ([]int64, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("cannot denominate non-positive amount %d", amount)
	}

	denominations := make([]int64, 0)
	for bit := 62; bit >= 0; bit-- {
		denomination := int64(1) << uint(bit)
		if amount&denomination != 0 {
			denominations = append(denominations, denomination)
		}
	}

	return denominations, nil
}
