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
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// SymmetricKeySize is the size in bytes of all symmetric keys minted here
const SymmetricKeySize = 32

const gcmNonceSize = 12

// DeriveKey derives a purpose-bound subkey from the given secret using
// HKDF-SHA256; info binds the derived key to its use so the same secret can
// safely wrap distinct payloads
func DeriveKey(secret []byte, info string) ([]byte, error) {
	derived := make([]byte, SymmetricKeySize)
	_, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), derived)
	if err != nil {
		return nil, fmt.Errorf("failed to derive %s key; %s", info, err.Error())
	}
	return derived, nil
}

// AESGCMSeal encrypts the given plaintext under the given 32-byte key using
// AES-256-GCM with a fresh random nonce; the returned payload is
// nonce || ciphertext
func AESGCMSeal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce, err := RandomBytes(gcmNonceSize)
	if err != nil {
		return nil, err
	}

	return append(nonce, aead.Seal(nil, nonce, plaintext, nil)...), nil
}

// AESGCMOpen decrypts a nonce || ciphertext payload produced by AESGCMSeal;
// authentication failure returns an error and no plaintext
func AESGCMOpen(key, payload []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(payload) < gcmNonceSize {
		return nil, fmt.Errorf("invalid payload; expected at least %d bytes, got %d", gcmNonceSize, len(payload))
	}

	return aead.Open(nil, payload[:gcmNonceSize], payload[gcmNonceSize:], nil)
}
