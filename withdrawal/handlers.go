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
	"errors"

	"github.com/gin-gonic/gin"
	dbconf "github.com/kthomas/go-db-config"
	uuid "github.com/kthomas/go.uuid"

	"github.com/argus-intel/privacy/ledger"
	provide "github.com/provideplatform/provide-go/common"
	"github.com/provideplatform/provide-go/common/util"
)

// InstallWithdrawalsAPI registers the withdrawal API handlers with gin
func InstallWithdrawalsAPI(r *gin.Engine) {
	r.GET("/api/v1/withdrawals", listWithdrawalsHandler)
	r.POST("/api/v1/withdrawals", requestWithdrawalHandler)
	r.GET("/api/v1/withdrawals/:id", withdrawalDetailsHandler)
	r.POST("/api/v1/withdrawals/:id/cancel", cancelWithdrawalHandler)
}

func listWithdrawalsHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	sourceID, err := uuid.FromString(c.Query("source_id"))
	if err != nil {
		provide.RenderError("source_id required", 400, c)
		return
	}

	db := dbconf.DatabaseConnection()
	query := db.Where("pending_withdrawals.source_id = ?", sourceID).Order("pending_withdrawals.created_at DESC")

	var withdrawals []*PendingWithdrawal
	provide.Paginate(c, query, &PendingWithdrawal{}).Find(&withdrawals)
	provide.Render(withdrawals, 200, c)
}

func requestWithdrawalHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	params := map[string]interface{}{}
	err = json.Unmarshal(buf, &params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	rawSourceID, sourceIDOk := params["source_id"].(string)
	if !sourceIDOk {
		provide.RenderError("source_id required", 422, c)
		return
	}

	sourceID, err := uuid.FromString(rawSourceID)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	amount, amountOk := params["amount"].(float64)
	if !amountOk || amount <= 0 || amount != float64(int64(amount)) {
		provide.RenderError("amount must be a positive integral number of zatoshis", 422, c)
		return
	}

	withdrawal, err := Request(dbconf.DatabaseConnection(), sourceID, int64(amount))
	if err != nil {
		if errors.Is(err, ErrWithdrawalPending) {
			provide.RenderError(err.Error(), 409, c)
			return
		}
		if errors.Is(err, ErrBelowMinimum) || errors.Is(err, ledger.ErrInsufficientBalance) {
			provide.RenderError(err.Error(), 422, c)
			return
		}
		provide.RenderError(err.Error(), 500, c)
		return
	}

	provide.Render(withdrawal, 201, c)
}

func withdrawalDetailsHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	withdrawalID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	db := dbconf.DatabaseConnection()
	withdrawal := Find(db, withdrawalID)
	if withdrawal == nil {
		provide.RenderError("withdrawal not found", 404, c)
		return
	}

	provide.Render(withdrawal, 200, c)
}

func cancelWithdrawalHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	withdrawalID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	db := dbconf.DatabaseConnection()
	withdrawal := Find(db, withdrawalID)
	if withdrawal == nil {
		provide.RenderError("withdrawal not found", 404, c)
		return
	}

	err = withdrawal.Cancel(db)
	if err != nil {
		provide.RenderError(err.Error(), 409, c)
		return
	}

	provide.Render(withdrawal, 200, c)
}
