package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// tokenPayload is the JSON shape every provider secret is stored in.
type tokenPayload struct {
	Token string `json:"token"`
}

// Secret is a provider credential stored as {"token": "..."} under one
// parameter name. The first successful read is cached for the lifetime of
// the process; failed reads are retried on the next call.
type Secret struct {
	getter Getter
	name   string

	mu    sync.Mutex
	value string
}

// NewSecret returns a Secret read from prefix + "/" + key.
func NewSecret(getter Getter, prefix, key string) (*Secret, error) {
	if getter == nil {
		return nil, errors.New("paramstore: getter must not be nil")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	key = strings.Trim(strings.TrimSpace(key), "/")
	if prefix == "" || key == "" {
		return nil, errors.New("paramstore: secret prefix and key must not be empty")
	}
	return &Secret{getter: getter, name: prefix + "/" + key}, nil
}

// Name is the full parameter name.
func (s *Secret) Name() string { return s.name }

// Value returns the secret token.
func (s *Secret) Value(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value != "" {
		return s.value, nil
	}

	raw, err := s.getter.GetParameter(ctx, s.name)
	if err != nil {
		return "", fmt.Errorf("paramstore: fetch secret: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("paramstore: unmarshal secret %q as JSON: %w", s.name, err)
	}
	if strings.TrimSpace(tp.Token) == "" {
		return "", fmt.Errorf("paramstore: secret %q token is empty", s.name)
	}
	s.value = tp.Token
	return s.value, nil
}
