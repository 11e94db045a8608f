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

package ledger

import (
	"encoding/json"
	"errors"

	"github.com/gin-gonic/gin"
	dbconf "github.com/kthomas/go-db-config"
	uuid "github.com/kthomas/go.uuid"

	"github.com/argus-intel/privacy/common"
	provide "github.com/provideplatform/provide-go/common"
	"github.com/provideplatform/provide-go/common/util"
)

// InstallAccountsAPI registers the escrow ledger API handlers with gin
func InstallAccountsAPI(r *gin.Engine) {
	r.GET("/api/v1/accounts/:sourceId", accountDetailsHandler)
	r.GET("/api/v1/accounts/:sourceId/entries", listEntriesHandler)
	r.GET("/api/v1/accounts/:sourceId/replay", replayHandler)
	r.GET("/api/v1/accounts/:sourceId/audit", auditRootHandler)
	r.POST("/api/v1/accounts/:sourceId/credit", creditHandler)
}

func accountDetailsHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	sourceID, err := uuid.FromString(c.Param("sourceId"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	db := dbconf.DatabaseConnection()
	account := FindAccount(db, sourceID)
	if account == nil {
		provide.RenderError("escrow account not found", 404, c)
		return
	}

	provide.Render(account, 200, c)
}

func listEntriesHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	sourceID, err := uuid.FromString(c.Param("sourceId"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	db := dbconf.DatabaseConnection()
	query := db.Where("ledger_entries.source_id = ?", sourceID).Order("ledger_entries.created_at ASC")

	var entries []*Entry
	provide.Paginate(c, query, &Entry{}).Find(&entries)
	provide.Render(entries, 200, c)
}

// replay the source's ledger and report projection consistency
func replayHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	sourceID, err := uuid.FromString(c.Param("sourceId"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	db := dbconf.DatabaseConnection()
	result, err := Replay(db, sourceID)
	if err != nil {
		provide.RenderError(err.Error(), 500, c)
		return
	}

	provide.Render(result, 200, c)
}

func auditRootHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	sourceID, err := uuid.FromString(c.Param("sourceId"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	db := dbconf.DatabaseConnection()
	account := FindAccount(db, sourceID)
	if account == nil {
		provide.RenderError("escrow account not found", 404, c)
		return
	}

	root, err := AuditRoot(account)
	if err != nil {
		provide.RenderError(err.Error(), 404, c)
		return
	}

	provide.Render(map[string]interface{}{
		"source_id": sourceID,
		"root":      root,
	}, 200, c)
}

// credit the source's escrow account for a revenue event
func creditHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	if appID == nil && orgID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	sourceID, err := uuid.FromString(c.Param("sourceId"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
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

	amount, amountOk := params["amount"].(float64)
	if !amountOk || amount <= 0 || amount != float64(int64(amount)) {
		provide.RenderError("integral positive amount required", 422, c)
		return
	}

	referenceType, _ := params["reference_type"].(string)
	if referenceType == "" {
		referenceType = "revenue"
	}

	entry, err := Credit(dbconf.DatabaseConnection(), sourceID, int64(amount), referenceType)
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			provide.RenderError(err.Error(), 422, c)
			return
		}
		common.Log.Warningf("failed to credit escrow account for source %s; %s", sourceID, err.Error())
		provide.RenderError(err.Error(), 500, c)
		return
	}

	provide.Render(entry, 201, c)
}
