package store

import (
	"context"
	"errors"

	"github.com/zalando/go-keyring"
)

// keyringUser is the account name of the keyring entry.
const keyringUser = "state"

// KeyringStore keeps the state document in the OS keyring
// (macOS Keychain, Secret Service, Windows Credential Manager).
type KeyringStore struct {
	documentStore
}

// NewKeyringStore returns a store using the keyring entry service/state.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = "linkmark"
	}
	return &KeyringStore{documentStore{name: "keyring", backend: keyringBackend{service: service}}}
}

type keyringBackend struct {
	service string
}

func (b keyringBackend) read(context.Context) ([]byte, error) {
	secret, err := keyring.Get(b.service, keyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(secret), nil
}

func (b keyringBackend) write(_ context.Context, doc []byte) error {
	return keyring.Set(b.service, keyringUser, string(doc))
}

func (b keyringBackend) remove(context.Context) error {
	if err := keyring.Delete(b.service, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

func (keyringBackend) close() error { return nil }
