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
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/argus-intel/privacy/common"
)

// ErrEmptyContent is returned when a post carries neither body nor media
var ErrEmptyContent = errors.New("post requires a non-empty body or at least one media blob")

// ErrIntegrityViolation is returned when recovered plaintext does not match
// the content hash stamped at encryption time; content must not be rendered
var ErrIntegrityViolation = errors.New("content hash mismatch; refusing to render content")

const contentKeyWrapInfo = "content-key-wrap"

// EncryptedPayload is the opaque result of encrypting a post. The raw content
// key never leaves EncryptPost; only wrapped forms are returned.
type EncryptedPayload struct {
	EncryptedContent  []byte            `json:"encrypted_content"`
	ContentHash       string            `json:"content_hash"`
	ContentKeyWrapped []byte            `json:"content_key_wrapped"`
	SourceKeyWrapped  []byte            `json:"source_key_wrapped,omitempty"`
	EncryptedMedia    map[string][]byte `json:"encrypted_media,omitempty"`
}

// EncryptPost encrypts the given plaintext body and media blobs under a fresh
// content key, wraps that key under the caller-supplied tier epoch key and,
// when provided, the source's own key. Each payload is sealed independently
// with its own nonce. The content hash covers the plaintext body only and is
// stored in the clear for tamper detection.
func EncryptPost(plaintext []byte, media map[string][]byte, tierEpochKey, sourceKey []byte) (*EncryptedPayload, error) {
	if len(plaintext) == 0 && len(media) == 0 {
		return nil, ErrEmptyContent
	}

	contentKey, err := common.RandomBytes(common.SymmetricKeySize)
	if err != nil {
		return nil, err
	}

	payload := &EncryptedPayload{
		ContentHash: hex.EncodeToString(digest(plaintext)),
	}

	payload.EncryptedContent, err = common.AESGCMSeal(contentKey, plaintext)
	if err != nil {
		return nil, err
	}

	if len(media) > 0 {
		payload.EncryptedMedia = make(map[string][]byte, len(media))
		for cid, blob := range media {
			payload.EncryptedMedia[cid], err = common.AESGCMSeal(contentKey, blob)
			if err != nil {
				return nil, err
			}
		}
	}

	wrapKey, err := common.DeriveKey(tierEpochKey, contentKeyWrapInfo)
	if err != nil {
		return nil, err
	}

	payload.ContentKeyWrapped, err = common.AESGCMSeal(wrapKey, contentKey)
	if err != nil {
		return nil, err
	}

	if sourceKey != nil {
		srcWrapKey, err := common.DeriveKey(sourceKey, contentKeyWrapInfo)
		if err != nil {
			return nil, err
		}

		payload.SourceKeyWrapped, err = common.AESGCMSeal(srcWrapKey, contentKey)
		if err != nil {
			return nil, err
		}
	}

	return payload, nil
}

// OpenPost unwraps the content key using the given wrapped key and unwrapping
// key material, decrypts the body and verifies it against the content hash.
// Any authentication or hash failure fails closed with ErrIntegrityViolation.
func OpenPost(payload *EncryptedPayload, wrappedKey, unwrappingKey []byte) ([]byte, error) {
	wrapKey, err := common.DeriveKey(unwrappingKey, contentKeyWrapInfo)
	if err != nil {
		return nil, err
	}

	contentKey, err := common.AESGCMOpen(wrapKey, wrappedKey)
	if err != nil {
		common.Log.Warningf("failed to unwrap content key; %s", err.Error())
		return nil, ErrIntegrityViolation
	}

	plaintext, err := common.AESGCMOpen(contentKey, payload.EncryptedContent)
	if err != nil {
		common.Log.Warningf("failed to authenticate encrypted content; %s", err.Error())
		return nil, ErrIntegrityViolation
	}

	if hex.EncodeToString(digest(plaintext)) != payload.ContentHash {
		common.Log.Warningf("recovered plaintext failed content hash verification")
		return nil, ErrIntegrityViolation
	}

	return plaintext, nil
}

// UnwrapContentKey recovers the raw content key from its wrapped form using
// the given tier epoch or source key material
func UnwrapContentKey(wrappedKey, unwrappingKey []byte) ([]byte, error) {
	wrapKey, err := common.DeriveKey(unwrappingKey, contentKeyWrapInfo)
	if err != nil {
		return nil, err
	}

	contentKey, err := common.AESGCMOpen(wrapKey, wrappedKey)
	if err != nil {
		return nil, ErrIntegrityViolation
	}

	return contentKey, nil
}

// OpenMedia decrypts a single media blob using an already-unwrapped content
// key; media blobs are not covered by the content hash and rely on the
// authenticated cipher alone
func OpenMedia(payload *EncryptedPayload, cid string, contentKey []byte) ([]byte, error) {
	blob, blobOk := payload.EncryptedMedia[cid]
	if !blobOk {
		return nil, errors.New("media blob not found in payload")
	}

	plaintext, err := common.AESGCMOpen(contentKey, blob)
	if err != nil {
		return nil, ErrIntegrityViolation
	}

	return plaintext, nil
}

func digest(buf []byte) []byte {
	sum := sha256.Sum256(buf)
	return sum[:]
}
