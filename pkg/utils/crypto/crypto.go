// Package crypto seals OAuth tokens before they are written to storage.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

// sealedPrefix marks values produced by Encrypt so that plaintext written before a key was configured still reads back.
const sealedPrefix = "sb1:"

const nonceSize = 24

var ErrInvalidKey = errors.New("encryption key must be 32 bytes, base64 encoded")

// ParseKey decodes a base64 key. An empty string yields a nil key, which disables encryption.
func ParseKey(encoded string) (*[32]byte, error) {
	if encoded == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) != 32 {
		return nil, ErrInvalidKey
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

// Encrypt seals plaintext with key. A nil key or empty plaintext is returned unchanged.
func Encrypt(plaintext string, key *[32]byte) (string, error) {
	if key == nil || plaintext == "" {
		return plaintext, nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, key)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Values without the sealed prefix are returned as is.
func Decrypt(value string, key *[32]byte) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	if key == nil {
		return "", errors.New("token is encrypted but no encryption key is configured")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("decode sealed token: %w", err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", errors.New("sealed token too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, key)
	if !ok {
		return "", errors.New("unable to decrypt token")
	}
	return string(plain), nil
}
