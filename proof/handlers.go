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

package proof

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

// InstallProofsAPI registers the proof API handlers with gin
func InstallProofsAPI(r *gin.Engine) {
	r.GET("/api/v1/proofs", listProofsHandler)
	r.POST("/api/v1/proofs", generateProofHandler)
	r.GET("/api/v1/proofs/:id", proofDetailsHandler)
	r.POST("/api/v1/proofs/:id/verify", verifyProofHandler)

	r.GET("/api/v1/proofs/:id/attestations", listAttestationsHandler)
	r.POST("/api/v1/proofs/:id/attestations", createAttestationHandler)

	r.GET("/api/v1/reputation/:sourceId", reputationHandler)
}

func listProofsHandler(c *gin.Context) {
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
	query := db.Where("proof_artifacts.source_id = ?", sourceID).Order("proof_artifacts.created_at DESC")

	var artifacts []*Artifact
	provide.Paginate(c, query, &Artifact{}).Find(&artifacts)
	provide.Render(artifacts, 200, c)
}

// generate a proof; the private witness is consumed here and never persisted
func generateProofHandler(c *gin.Context) {
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

	proofType, proofTypeOk := params["type"].(string)
	if !proofTypeOk {
		provide.RenderError("proof type required", 422, c)
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

	var postID *uuid.UUID
	if rawPostID, postIDOk := params["post_id"].(string); postIDOk {
		id, err := uuid.FromString(rawPostID)
		if err != nil {
			provide.RenderError(err.Error(), 422, c)
			return
		}
		postID = &id
	}

	witness, witnessOk := params["witness"].(map[string]interface{})
	if !witnessOk {
		provide.RenderError("witness required for proof generation", 422, c)
		return
	}

	if async, asyncOk := params["async"].(bool); asyncOk && async {
		err = RequestAsyncGeneration(proofType, sourceID, postID, witness)
		if err != nil {
			provide.RenderError(err.Error(), 500, c)
			return
		}
		provide.Render(map[string]interface{}{
			"type":      proofType,
			"source_id": sourceID,
		}, 202, c)
		return
	}

	witnessRaw, _ := json.Marshal(witness)
	artifact, err := generateFromParams(proofType, sourceID, postID, witnessRaw)
	if err != nil {
		if errors.Is(err, ErrInvalidWitness) || errors.Is(err, ErrInvalidProofParameters) {
			provide.RenderError(err.Error(), 422, c)
			return
		}
		common.Log.Warningf("failed to generate %s proof; %s", proofType, err.Error())
		provide.RenderError(err.Error(), 500, c)
		return
	}

	provide.Render(artifact, 201, c)
}

func proofDetailsHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	artifactID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	db := dbconf.DatabaseConnection()
	artifact := FindArtifact(db, artifactID)
	if artifact == nil {
		provide.RenderError("proof artifact not found", 404, c)
		return
	}

	obj := map[string]interface{}{
		"id":             artifact.ID,
		"source_id":      artifact.SourceID,
		"post_id":        artifact.PostID,
		"type":           artifact.Type,
		"proof":          artifact.Proof,
		"public_signals": artifact.ParsePublicSignals(),
		"claim":          artifact.Claim,
		"mock":           artifact.Mock,
		"status":         artifact.Status,
	}
	provide.Render(obj, 200, c)
}

// verify a proof; an unverified proof renders a result, never an error
func verifyProofHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	artifactID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	db := dbconf.DatabaseConnection()
	artifact := FindArtifact(db, artifactID)
	if artifact == nil {
		provide.RenderError("proof artifact not found", 404, c)
		return
	}

	provide.Render(artifact.Verify(), 200, c)
}

func listAttestationsHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	artifactID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	db := dbconf.DatabaseConnection()
	query := db.Where("attestations.artifact_id = ?", artifactID).Order("attestations.created_at ASC")

	var attestations []*Attestation
	provide.Paginate(c, query, &Attestation{}).Find(&attestations)
	provide.Render(attestations, 200, c)
}

func createAttestationHandler(c *gin.Context) {
	appID := util.AuthorizedSubjectID(c, "application")
	orgID := util.AuthorizedSubjectID(c, "organization")
	userID := util.AuthorizedSubjectID(c, "user")
	if appID == nil && orgID == nil && userID == nil {
		provide.RenderError("unauthorized", 401, c)
		return
	}

	artifactID, err := uuid.FromString(c.Param("id"))
	if err != nil {
		provide.RenderError("bad request", 400, c)
		return
	}

	buf, err := c.GetRawData()
	if err != nil {
		provide.RenderError(err.Error(), 400, c)
		return
	}

	attestation := &Attestation{}
	err = json.Unmarshal(buf, attestation)
	if err != nil {
		provide.RenderError(err.Error(), 422, c)
		return
	}
	attestation.ArtifactID = artifactID

	if attestation.Create() {
		provide.Render(attestation, 201, c)
	} else {
		obj := map[string]interface{}{}
		obj["errors"] = attestation.Errors
		provide.Render(obj, 422, c)
	}
}

func reputationHandler(c *gin.Context) {
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
	stats := ComputeStats(db, sourceID)

	provide.Render(map[string]interface{}{
		"source_id": sourceID,
		"stats":     stats,
		"score":     ReputationScore(stats),
	}, 200, c)
}
