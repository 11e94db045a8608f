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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-intel/privacy/common"
)

func TestEncryptPostRoundTrip(t *testing.T) {
	tierKey, err := common.RandomBytes(common.SymmetricKeySize)
	require.NoError(t, err)

	plaintext := []byte("convoy of six vehicles observed at the northern checkpoint")
	payload, err := EncryptPost(plaintext, nil, tierKey, nil)
	require.NoError(t, err)
	require.NotNil(t, payload)

	assert.NotContains(t, string(payload.EncryptedContent), "checkpoint")
	assert.Empty(t, payload.SourceKeyWrapped)

	recovered, err := OpenPost(payload, payload.ContentKeyWrapped, tierKey)
	require.NoError(t, err)
	assert.Equal(t, plaintext, recovered)
}

func TestEncryptPostSourceKeyReadback(t *testing.T) {
	tierKey, err := common.RandomBytes(common.SymmetricKeySize)
	require.NoError(t, err)
	sourceKey, err := common.RandomBytes(common.SymmetricKeySize)
	require.NoError(t, err)

	plaintext := []byte("field report")
	payload, err := EncryptPost(plaintext, nil, tierKey, sourceKey)
	require.NoError(t, err)
	require.NotEmpty(t, payload.SourceKeyWrapped)

	// the source can always re-read their own post
	recovered, err := OpenPost(payload, payload.SourceKeyWrapped, sourceKey)
	require.NoError(t, err)
	assert.Equal(t, plaintext, recovered)

	// and the wrapped forms are not interchangeable
	_, err = OpenPost(payload, payload.SourceKeyWrapped, tierKey)
	assert.ErrorIs(t, err, ErrIntegrityViolation)
}

func TestEncryptPostMediaBlobs(t *testing.T) {
	tierKey, err := common.RandomBytes(common.SymmetricKeySize)
	require.NoError(t, err)

	media := map[string][]byte{
		"bafy-photo-1": []byte("jpeg bytes"),
		"bafy-audio-1": []byte("opus bytes"),
	}

	payload, err := EncryptPost([]byte("report body"), media, tierKey, nil)
	require.NoError(t, err)
	require.Len(t, payload.EncryptedMedia, 2)

	// each blob is sealed under its own nonce
	assert.NotEqual(t, payload.EncryptedMedia["bafy-photo-1"][:12], payload.EncryptedMedia["bafy-audio-1"][:12])

	contentKey, err := UnwrapContentKey(payload.ContentKeyWrapped, tierKey)
	require.NoError(t, err)

	photo, err := OpenMedia(payload, "bafy-photo-1", contentKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), photo)

	_, err = OpenMedia(payload, "bafy-missing", contentKey)
	assert.Error(t, err)
}

func TestEncryptPostEmptyContent(t *testing.T) {
	tierKey, err := common.RandomBytes(common.SymmetricKeySize)
	require.NoError(t, err)

	_, err = EncryptPost(nil, nil, tierKey, nil)
	assert.ErrorIs(t, err, ErrEmptyContent)

	// media-only posts are allowed
	payload, err := EncryptPost(nil, map[string][]byte{"bafy-1": []byte("blob")}, tierKey, nil)
	require.NoError(t, err)
	assert.NotNil(t, payload)
}

func TestOpenPostFailsClosedOnTamper(t *testing.T) {
	tierKey, err := common.RandomBytes(common.SymmetricKeySize)
	require.NoError(t, err)

	payload, err := EncryptPost([]byte("original"), nil, tierKey, nil)
	require.NoError(t, err)

	// flip a ciphertext byte; GCM authentication rejects it
	payload.EncryptedContent[len(payload.EncryptedContent)-1] ^= 0x01
	plaintext, err := OpenPost(payload, payload.ContentKeyWrapped, tierKey)
	assert.ErrorIs(t, err, ErrIntegrityViolation)
	assert.Nil(t, plaintext)
}

func TestOpenPostFailsClosedOnHashMismatch(t *testing.T) {
	tierKey, err := common.RandomBytes(common.SymmetricKeySize)
	require.NoError(t, err)

	payload, err := EncryptPost([]byte("original"), nil, tierKey, nil)
	require.NoError(t, err)

	// swap in the hash of different content; decryption succeeds but the
	// stamped hash no longer matches
	other, err := EncryptPost([]byte("substituted"), nil, tierKey, nil)
	require.NoError(t, err)
	payload.ContentHash = other.ContentHash

	plaintext, err := OpenPost(payload, payload.ContentKeyWrapped, tierKey)
	assert.ErrorIs(t, err, ErrIntegrityViolation)
	assert.Nil(t, plaintext)
}

func TestOpenPostWrongEpochKey(t *testing.T) {
	tierKey, err := common.RandomBytes(common.SymmetricKeySize)
	require.NoError(t, err)
	otherKey, err := common.RandomBytes(common.SymmetricKeySize)
	require.NoError(t, err)

	payload, err := EncryptPost([]byte("original"), nil, tierKey, nil)
	require.NoError(t, err)

	_, err = OpenPost(payload, payload.ContentKeyWrapped, otherKey)
	assert.ErrorIs(t, err, ErrIntegrityViolation)
}

func TestEncryptPostFreshKeysPerCall(t *testing.T) {
	tierKey, err := common.RandomBytes(common.SymmetricKeySize)
	require.NoError(t, err)

	a, err := EncryptPost([]byte("same plaintext"), nil, tierKey, nil)
	require.NoError(t, err)
	b, err := EncryptPost([]byte("same plaintext"), nil, tierKey, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.EncryptedContent, b.EncryptedContent)
	assert.NotEqual(t, a.ContentKeyWrapped, b.ContentKeyWrapped)
	assert.Equal(t, a.ContentHash, b.ContentHash)
}
