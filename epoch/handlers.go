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

package epoch

import (
	"encoding/hex"
	"encoding/json"

	"github.com/gin-gonic/gin"
	dbconf "github.com/kthomas/go-db-config"
	uuid "github.com/kthomas/go.uuid"

	"github.com/argus-intel/privacy/common"
	provide "github.com/provideplatform/provide-go/common"
	"github.com/provideplatform/provide-go/common/util"
)

// InstallTiersAPI registers the tier and epoch API handlers with gin
func InstallTiersAPI(r *gin.Engine) {
	r.GET("/api/v1/tiers", listTiersHandler)
	r.POST("/api/v1/tiers", createTierHandler)
	r.GET("/api/v1/tiers/:id/epoch", tierEpochHandler)
	r.POST("/api/v1/tiers/:id/rotate", rotateTierHandler)
}

func listTiersHandler(c *gin.Context) {
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
	query := db.Where("tiers.source_id = ?", sourceID).Order("tiers.level ASC")

	var tiers []*Tier
	provide.Paginate(c, query, &Tier{}).Find(&tiers)
	provide.Render(tiers, 200, c)
}

func createTierHandler(c *gin.Context) {
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

	tier := &Tier{}
	err = json.Unmarshal(buf, tier)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	if tier.Create() {
		provide.Render(tier, 201, c)
	} else {
		obj := map[string]interface{}{}
		obj["errors"] = tier.Errors
		provide.Render(obj, 422, c)
	}
}

func tierEpochHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	tierID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	db := dbconf.DatabaseConnection()
	epoch, err := CurrentEpoch(db, tierID)
	if err != nil {
		provide.RenderError("tier not found", 404, c)
		return
	}

	provide.Render(epoch, 200, c)
}

// rotate a tier to a new epoch; the current epoch key must be supplied and
// the fresh key material is returned exactly once
func rotateTierHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	tierID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	var params map[string]interface{}
	err = json.Unmarshal(buf, &params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	encodedKey, keyOk := params["key"].(string)
	if !keyOk {
		provide.RenderError("current epoch key required for rotation", 422, c)
		return
	}

	currentKey, err := hex.DecodeString(encodedKey)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	db := dbconf.DatabaseConnection()
	tier := FindTierByID(db, tierID)
	if tier == nil {
		provide.RenderError("tier not found", 404, c)
		return
	}

	rotated, err := Rotate(tier.SourceID, tierID, currentKey)
	if err != nil {
		common.Log.Warningf("failed to rotate tier %s; %s", tierID, err.Error())
		provide.RenderError(err.Error(), 422, c)
		return
	}

	provide.Render(rotated, 201, c)
}
