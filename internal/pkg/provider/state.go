package provider

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	stateKeyPrefix = "oauth_state:"
	StateTTL       = 10 * time.Minute
)

type statePayload struct {
	Owner    OwnerRef `json:"owner"`
	Provider string   `json:"provider"`
}

// StateStore maps one-time OAuth state nonces to the owner that started the flow.
type StateStore struct {
	storage fiber.Storage
	ttl     time.Duration
}

func NewStateStore(storage fiber.Storage) *StateStore {
	return &StateStore{storage: storage, ttl: StateTTL}
}

// Issue returns a fresh nonce bound to owner and provider code.
func (s *StateStore) Issue(owner OwnerRef, providerCode string) (string, error) {
	nonce := uuid.NewString()
	raw, err := json.Marshal(statePayload{Owner: owner, Provider: providerCode})
	if err != nil {
		return "", err
	}
	if err := s.storage.Set(stateKeyPrefix+nonce, raw, s.ttl); err != nil {
		return "", err
	}
	return nonce, nil
}

// Consume resolves and deletes a nonce, returning the owner and the provider
// code the flow was started for. Unknown or expired nonces fail.
func (s *StateStore) Consume(nonce string) (OwnerRef, string, error) {
	if nonce == "" {
		return OwnerRef{}, "", NewError(CodeExternalAuthorization, "missing state", nil)
	}
	key := stateKeyPrefix + nonce
	raw, err := s.storage.Get(key)
	if err != nil {
		return OwnerRef{}, "", err
	}
	if len(raw) == 0 {
		return OwnerRef{}, "", NewError(CodeExternalAuthorization, "unknown or expired state", nil)
	}
	_ = s.storage.Delete(key)

	var p statePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return OwnerRef{}, "", fmt.Errorf("decode oauth state: %w", err)
	}
	return p.Owner, p.Provider, nil
}
