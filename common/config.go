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
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	logger "github.com/kthomas/go-logger"
	redisutil "github.com/kthomas/go-redisutil"
)

const defaultWithdrawalMinAmount = int64(10000) // 0.0001 ZEC
const defaultWithdrawalDelayMin = time.Hour * 1
const defaultWithdrawalDelayMax = time.Hour * 48

const defaultZKPCurve = "bn254"
const defaultZKPProvingScheme = "groth16"

var (
	// Log is the configured logger
	Log *logger.Logger

	// RedisEnabled indicates whether a redis connection was configured;
	// distributed locks degrade to direct execution without one
	RedisEnabled bool

	// ConsumeNATSStreamingSubscriptions toggles the package-level NATS consumers
	ConsumeNATSStreamingSubscriptions bool

	// DefaultZKPCurve is the elliptic curve used by the proof subsystem
	DefaultZKPCurve string

	// DefaultZKPProvingScheme is the proving scheme used by the proof subsystem
	DefaultZKPProvingScheme string

	// ZKPAllowMockProver allows the mock prover provider to stand in when
	// circuit compilation is unavailable; mock proofs are never binding
	ZKPAllowMockProver bool

	// WithdrawalMinAmount is the minimum withdrawal amount in zatoshis
	WithdrawalMinAmount int64

	// WithdrawalDelayMin is the lower bound of the randomized release delay
	WithdrawalDelayMin time.Duration

	// WithdrawalDelayMax is the upper bound of the randomized release delay
	WithdrawalDelayMax time.Duration
)

func init() {
	godotenv.Load()

	requireLogger()
	requireZKPConfiguration()
	requireWithdrawalConfiguration()

	if os.Getenv("REDIS_HOSTS") != "" {
		redisutil.RequireRedis()
		RedisEnabled = true
	}

	ConsumeNATSStreamingSubscriptions = os.Getenv("CONSUME_NATS_STREAMING_SUBSCRIPTIONS") == "true"
}

func requireLogger() {
	lvl := os.Getenv("LOG_LEVEL")
	if lvl == "" {
		lvl = "INFO"
	}

	var endpoint *string
	if os.Getenv("SYSLOG_ENDPOINT") != "" {
		endpt := os.Getenv("SYSLOG_ENDPOINT")
		endpoint = &endpt
	}

	Log = logger.NewLogger("privacy", lvl, endpoint)
}

func requireZKPConfiguration() {
	DefaultZKPCurve = os.Getenv("ZKP_CURVE")
	if DefaultZKPCurve == "" {
		DefaultZKPCurve = defaultZKPCurve
	}

	DefaultZKPProvingScheme = os.Getenv("ZKP_PROVING_SCHEME")
	if DefaultZKPProvingScheme == "" {
		DefaultZKPProvingScheme = defaultZKPProvingScheme
	}

	ZKPAllowMockProver = os.Getenv("ZKP_ALLOW_MOCK_PROVER") == "true"
}

func requireWithdrawalConfiguration() {
	WithdrawalMinAmount = defaultWithdrawalMinAmount
	if os.Getenv("WITHDRAWAL_MIN_AMOUNT") != "" {
		min, err := strconv.ParseInt(os.Getenv("WITHDRAWAL_MIN_AMOUNT"), 10, 64)
		if err != nil {
			Log.Panicf("failed to parse WITHDRAWAL_MIN_AMOUNT; %s", err.Error())
		}
		WithdrawalMinAmount = min
	}

	WithdrawalDelayMin = defaultWithdrawalDelayMin
	if os.Getenv("WITHDRAWAL_DELAY_MIN") != "" {
		delay, err := time.ParseDuration(os.Getenv("WITHDRAWAL_DELAY_MIN"))
		if err != nil {
			Log.Panicf("failed to parse WITHDRAWAL_DELAY_MIN; %s", err.Error())
		}
		WithdrawalDelayMin = delay
	}

	WithdrawalDelayMax = defaultWithdrawalDelayMax
	if os.Getenv("WITHDRAWAL_DELAY_MAX") != "" {
		delay, err := time.ParseDuration(os.Getenv("WITHDRAWAL_DELAY_MAX"))
		if err != nil {
			Log.Panicf("failed to parse WITHDRAWAL_DELAY_MAX; %s", err.Error())
		}
		WithdrawalDelayMax = delay
	}

	if WithdrawalDelayMax <= WithdrawalDelayMin {
		Log.Panicf("invalid withdrawal delay window; WITHDRAWAL_DELAY_MAX must exceed WITHDRAWAL_DELAY_MIN")
	}
}

// WithLock executes the given function under a distributed redis lock on the
// given key. Single-instance deployments without REDIS_HOSTS run the function
// directly; the database constraints alone serialize those
func WithLock(key string, fn func() error) error {
	if !RedisEnabled {
		return fn()
	}
	return redisutil.WithRedlock(key, fn)
}
