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

package content

import (
	"encoding/base64"
	"encoding/json"

	"github.com/gin-gonic/gin"
	dbconf "github.com/kthomas/go-db-config"
	uuid "github.com/kthomas/go.uuid"

	"github.com/argus-intel/privacy/common"
	"github.com/argus-intel/privacy/epoch"
	provide "github.com/provideplatform/provide-go/common"
	"github.com/provideplatform/provide-go/common/util"
)

// InstallPostsAPI registers the encrypted post API handlers with gin
func InstallPostsAPI(r *gin.Engine) {
	r.GET("/api/v1/posts", listPostsHandler)
	r.POST("/api/v1/posts", createPostHandler)
	r.GET("/api/v1/posts/:id", postDetailsHandler)
	r.POST("/api/v1/posts/:id/unlock", unlockPostHandler)
}

func listPostsHandler(c *gin.Context) {
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
	query := db.Where("posts.source_id = ?", sourceID).Order("posts.created_at DESC")

	var posts []*Post
	provide.Paginate(c, query, &Post{}).Find(&posts)
	provide.Render(posts, 200, c)
}

// store an encrypted post; the payload arrives already encrypted and is
// persisted verbatim
func createPostHandler(c *gin.Context) {
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

	var params map[string]interface{}
	err = json.Unmarshal(buf, &params)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	post := &Post{}
	err = json.Unmarshal(buf, post)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	if cids, cidsOk := params["media_cids"].([]interface{}); cidsOk {
		strs := make([]string, 0, len(cids))
		for _, cid := range cids {
			if str, strOk := cid.(string); strOk {
				strs = append(strs, str)
			}
		}
		post.SetMediaCIDs(strs)
	}

	if excluded, excludedOk := params["exclusions"].([]interface{}); excludedOk {
		strs := make([]string, 0, len(excluded))
		for _, pubkey := range excluded {
			if str, strOk := pubkey.(string); strOk {
				strs = append(strs, str)
			}
		}
		post.SetExclusions(strs)
	}

	if post.Create() {
		provide.Render(post, 201, c)
	} else {
		obj := map[string]interface{}{}
		obj["errors"] = post.Errors
		provide.Render(obj, 422, c)
	}
}

func postDetailsHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	postID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	db := dbconf.DatabaseConnection()
	post := Find(db, postID)
	if post == nil {
		provide.RenderError("post not found", 404, c)
		return
	}

	provide.Render(post, 200, c)
}

// resolve the wrapped key for an entitled reader; an epoch or tier mismatch
// is "not currently entitled" rather than a hard failure
func unlockPostHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	postID, err := uuid.FromString(c.Param("id"))
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

	db := dbconf.DatabaseConnection()
	post := Find(db, postID)
	if post == nil {
		provide.RenderError("post not found", 404, c)
		return
	}

	readerPubKey, _ := params["public_key"].(string)
	if post.IsExcluded(readerPubKey) {
		provide.RenderError("not currently entitled", 403, c)
		return
	}

	subRaw, subOk := params["subscription"].(map[string]interface{})
	if !subOk {
		provide.RenderError("subscription required to unlock post", 422, c)
		return
	}

	subBuf, _ := json.Marshal(subRaw)
	sub := &epoch.Subscription{}
	err = json.Unmarshal(subBuf, sub)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}

	tier := epoch.FindTierByID(db, post.TierID)
	if tier == nil {
		provide.RenderError("post tier not found", 404, c)
		return
	}

	if !epoch.IsValidForReader(tier.Level, post.Epoch, sub) {
		common.Log.Debugf("reader not entitled to unlock post %s at epoch %d", post.ID, post.Epoch)
		provide.RenderError("not currently entitled", 403, c)
		return
	}

	provide.Render(map[string]interface{}{
		"post_id":             post.ID,
		"epoch":               post.Epoch,
		"content_hash":        post.ContentHash,
		"content_key_wrapped": base64.StdEncoding.EncodeToString(post.ContentKeyWrapped),
		"encrypted_content":   base64.StdEncoding.EncodeToString(post.EncryptedContent),
		"media_cids":          post.ParseMediaCIDs(),
	}, 200, c)
}
