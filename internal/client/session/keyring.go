// Package session persists the CLI sign-in session in the system keyring.
package session

import (
	"errors"
	"fmt"

	"lighthouse/internal/client"

	"github.com/99designs/keyring"
	"github.com/goccy/go-json"
)

const (
	serviceName = "lighthouse"
	sessionKey  = "session"
)

// OpenKeyring opens the platform keyring, falling back to an encrypted file under fileDir.
func OpenKeyring(fileDir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("lighthouse-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// KeyringStore keeps the session as one JSON item
type KeyringStore struct {
	ring keyring.Keyring
}

func NewKeyringStore(ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{ring: ring}
}

func (s *KeyringStore) Load() (*client.Session, error) {
	item, err := s.ring.Get(sessionKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	var sess client.Session
	if err := json.Unmarshal(item.Data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &sess, nil
}

func (s *KeyringStore) Save(sess *client.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	err = s.ring.Set(keyring.Item{
		Key:         sessionKey,
		Data:        data,
		Label:       "Lighthouse session",
		Description: "Firebase identity for the lighthouse CLI",
	})
	if err != nil {
		return fmt.Errorf("setting session: %w", err)
	}
	return nil
}

// Clear removes the session. Clearing an empty store is not an error.
func (s *KeyringStore) Clear() error {
	err := s.ring.Remove(sessionKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
