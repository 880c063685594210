package token

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// DefaultService is the keychain service name entries are filed under
const DefaultService = "storectl"

// KeyringPersister stores values in the OS keychain/credential manager
type KeyringPersister struct {
	service string
}

var _ Persister = (*KeyringPersister)(nil)

// NewKeyringPersister returns a persister scoped to the given keychain service
func NewKeyringPersister(service string) *KeyringPersister {
	if service == "" {
		service = DefaultService
	}
	return &KeyringPersister{service: service}
}

func (k *KeyringPersister) Get(key string) (string, error) {
	value, err := keyring.Get(k.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read keyring entry: %w", err)
	}
	return value, nil
}

func (k *KeyringPersister) Set(key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("failed to write keyring entry: %w", err)
	}
	return nil
}

func (k *KeyringPersister) Remove(key string) error {
	if err := keyring.Delete(k.service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete keyring entry: %w", err)
	}
	return nil
}
