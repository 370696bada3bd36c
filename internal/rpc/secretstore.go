package rpc

import (
	"context"
	"fmt"

	"github.com/openllm-dev/openllm/internal/secrets"
)

// SecretStore proxies every secret operation to a remote host over the wire
// client. It satisfies secrets.Store so it can slot into a resolver chain
// next to local backends.
type SecretStore struct {
	name   string
	client *Client
}

var _ secrets.Store = (*SecretStore)(nil)

// NewSecretStore creates a store backed by a registered endpoint. The store
// name is "rpc:<endpoint name>".
func NewSecretStore(e Endpoint) *SecretStore {
	return &SecretStore{
		name:   "rpc:" + e.Name,
		client: NewClientForEndpoint(e),
	}
}

// NewSecretStoreFromParts creates a store from raw connection details.
func NewSecretStoreFromParts(name, socketPath, authToken string) *SecretStore {
	return &SecretStore{
		name:   "rpc:" + name,
		client: NewClient(socketPath, authToken),
	}
}

// Client exposes the underlying wire client.
func (s *SecretStore) Client() *Client { return s.client }

// Name returns the store name in the form "rpc:<endpoint>".
func (s *SecretStore) Name() string { return s.name }

// Available reports whether the remote host answers a ping.
func (s *SecretStore) Available(ctx context.Context) bool {
	return s.client.Ping(ctx) == nil
}

type secretKeyParams struct {
	Key string `json:"key"`
}

type secretGetResult struct {
	Value *string `json:"value"`
}

type secretWriteResult struct {
	Success bool `json:"success"`
}

type secretListResult struct {
	Keys []string `json:"keys"`
}

// Get fetches the secret via secrets/get. Any failure reads as a miss; the
// resolver falls through to the next source.
func (s *SecretStore) Get(ctx context.Context, key string) (string, bool) {
	var res secretGetResult
	if err := s.client.Call(ctx, "secrets/get", secretKeyParams{Key: key}, &res); err != nil {
		return "", false
	}
	if res.Value == nil {
		return "", false
	}
	return *res.Value, true
}

// Set stores the secret via secrets/store.
func (s *SecretStore) Set(ctx context.Context, key, value string) error {
	var res secretWriteResult
	params := struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}{Key: key, Value: value}
	if err := s.client.Call(ctx, "secrets/store", params, &res); err != nil {
		return fmt.Errorf("storing %s on %s: %w", key, s.name, err)
	}
	if !res.Success {
		return fmt.Errorf("storing %s on %s: host rejected write", key, s.name)
	}
	return nil
}

// Delete removes the secret via secrets/delete.
func (s *SecretStore) Delete(ctx context.Context, key string) error {
	var res secretWriteResult
	if err := s.client.Call(ctx, "secrets/delete", secretKeyParams{Key: key}, &res); err != nil {
		return fmt.Errorf("deleting %s on %s: %w", key, s.name, err)
	}
	if !res.Success {
		return fmt.Errorf("deleting %s on %s: host rejected delete", key, s.name)
	}
	return nil
}

// Has reports whether the remote host holds the key.
func (s *SecretStore) Has(ctx context.Context, key string) bool {
	_, ok := s.Get(ctx, key)
	return ok
}

// Info describes where the key would come from.
func (s *SecretStore) Info(ctx context.Context, key string) secrets.Info {
	if s.Has(ctx, key) {
		return secrets.NewInfo(true, s.name)
	}
	return secrets.NotFound()
}

// List returns all secret keys held by the remote host.
func (s *SecretStore) List(ctx context.Context) ([]string, error) {
	var res secretListResult
	if err := s.client.Call(ctx, "secrets/list", struct{}{}, &res); err != nil {
		return nil, fmt.Errorf("listing secrets on %s: %w", s.name, err)
	}
	return res.Keys, nil
}
