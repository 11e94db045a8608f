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

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron"

	"github.com/argus-intel/privacy/common"
	"github.com/argus-intel/privacy/content"
	"github.com/argus-intel/privacy/epoch"
	"github.com/argus-intel/privacy/ledger"
	"github.com/argus-intel/privacy/proof"
	"github.com/argus-intel/privacy/withdrawal"
)

const runloopSleepInterval = 250 * time.Millisecond
const runloopTickInterval = 5000 * time.Millisecond

var (
	cancelF     context.CancelFunc
	closing     uint32
	shutdownCtx context.Context
	sigs        chan os.Signal

	srv                 *http.Server
	withdrawalScheduler *cron.Cron
)

func main() {
	common.Log.Debugf("starting privacy API...")
	installSignalHandlers()

	serveAPI()

	if common.ConsumeNATSStreamingSubscriptions {
		withdrawalScheduler = withdrawal.RunScheduler()
	}

	timer := time.NewTicker(runloopTickInterval)
	defer timer.Stop()

	for !shuttingDown() {
		select {
		case <-timer.C:
			// no-op
		case sig := <-sigs:
			common.Log.Debugf("received signal: %s", sig)
			shutdown()
		case <-shutdownCtx.Done():
			close(sigs)
		default:
			time.Sleep(runloopSleepInterval)
		}
	}

	common.Log.Debug("exiting privacy API")
	cancelF()
}

func installSignalHandlers() {
	common.Log.Debug("installing signal handlers for privacy API")
	sigs = make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	shutdownCtx, cancelF = context.WithCancel(context.Background())
}

func shutdown() {
	if atomic.AddUint32(&closing, 1) == 1 {
		common.Log.Debug("shutting down privacy API")

		if withdrawalScheduler != nil {
			withdrawalScheduler.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		srv.Shutdown(ctx)

		cancelF()
	}
}

func shuttingDown() bool {
	return (atomic.LoadUint32(&closing) > 0)
}

func serveAPI() {
	r := gin.New()
	r.Use(gin.Recovery())

	content.InstallPostsAPI(r)
	epoch.InstallTiersAPI(r)
	proof.InstallProofsAPI(r)
	ledger.InstallAccountsAPI(r)
	withdrawal.InstallWithdrawalsAPI(r)

	r.GET("/status", statusHandler)

	listenAddr := os.Getenv("LISTEN_ADDR")
	if listenAddr == "" {
		listenPort := os.Getenv("PORT")
		if listenPort == "" {
			listenPort = "8080"
		}
		listenAddr = fmt.Sprintf("0.0.0.0:%s", listenPort)
	}

	srv = &http.Server{
		Addr:    listenAddr,
		Handler: r,
	}

	go func() {
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			common.Log.Panicf("failed to serve privacy API; %s", err.Error())
		}
	}()

	common.Log.Debugf("privacy API listening on %s", listenAddr)
}

func statusHandler(c *gin.Context) {
	c.JSON(200, map[string]interface{}{"status": "ok"})
}
