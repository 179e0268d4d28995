package hashicorp

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/hashicorp/vault/api"

	"github.com/hengadev/miscutils"
)

// DefaultPasswordField is the field of the secret holding the password.
const DefaultPasswordField = "password"

const valueField = "value"

// kvDataPath returns the KV v2 API path for a secret. The "/data/" segment
// is required for KV v2 reads and writes.
//
//	kvDataPath("secret", "miscutils/password") == "secret/data/miscutils/password"
func kvDataPath(mount, path string) string {
	return strings.Trim(mount, "/") + "/data/" + strings.Trim(path, "/")
}

// readKV returns the inner data map of a KV v2 secret, or nil when the
// secret does not exist.
func readKV(ctx context.Context, client *api.Client, path string) (map[string]interface{}, error) {
	secret, err := client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s from Vault KV: %w", miscutils.ErrStorageUnavailable, path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}
	// KV v2 wraps the actual data in a "data" key; deleted versions carry
	// a nil one.
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	return data, nil
}

func writeKV(ctx context.Context, client *api.Client, path string, data map[string]interface{}) error {
	_, err := client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"data": data,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to write %s to Vault KV: %w", miscutils.ErrStorageUnavailable, path, err)
	}
	return nil
}

// KVPasswordSource reads the Secrets password from a field of a KV v2
// secret.
type KVPasswordSource struct {
	client *api.Client
	path   string
	field  string
}

// NewKVPasswordSource reads the "password" field of the secret at path in
// the KV v2 engine mounted at mount.
func NewKVPasswordSource(client *api.Client, mount, path string) *KVPasswordSource {
	return &KVPasswordSource{
		client: client,
		path:   kvDataPath(mount, path),
		field:  DefaultPasswordField,
	}
}

// WithField reads field instead of "password".
func (k *KVPasswordSource) WithField(field string) *KVPasswordSource {
	k.field = field
	return k
}

// Path returns the API path of the secret.
func (k *KVPasswordSource) Path() string { return k.path }

func (k *KVPasswordSource) Password(ctx context.Context) ([]byte, error) {
	data, err := readKV(ctx, k.client, k.path)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: secret %s not found", miscutils.ErrMissingPassword, k.path)
	}
	password, ok := data[k.field].(string)
	if !ok || password == "" {
		return nil, fmt.Errorf("%w: field %q not found or empty in %s", miscutils.ErrMissingPassword, k.field, k.path)
	}
	return []byte(password), nil
}

// StorePassword writes password to the secret, creating a new version.
func (k *KVPasswordSource) StorePassword(ctx context.Context, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password cannot be empty", miscutils.ErrMissingPassword)
	}
	return writeKV(ctx, k.client, k.path, map[string]interface{}{k.field: password})
}

// KVStore is a miscutils.Store on a KV v2 secret. The bytes are kept
// base64-encoded in the secret's "value" field; every write is a new
// version.
type KVStore struct {
	client *api.Client
	path   string
}

// NewKVStore returns a store on the secret at path in the KV v2 engine
// mounted at mount.
func NewKVStore(client *api.Client, mount, path string) *KVStore {
	return &KVStore{client: client, path: kvDataPath(mount, path)}
}

// Path returns the API path of the secret.
func (k *KVStore) Path() string { return k.path }

func (k *KVStore) ReadBytes(ctx context.Context) ([]byte, error) {
	data, err := readKV(ctx, k.client, k.path)
	if err != nil || data == nil {
		return nil, err
	}
	encoded, ok := data[valueField].(string)
	if !ok {
		return nil, fmt.Errorf("%w: value not found or invalid format in %s", miscutils.ErrStorageUnavailable, k.path)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s: %w", miscutils.ErrStorageUnavailable, k.path, err)
	}
	return raw, nil
}

func (k *KVStore) WriteBytes(ctx context.Context, data []byte) error {
	return writeKV(ctx, k.client, k.path, map[string]interface{}{
		valueField: base64.StdEncoding.EncodeToString(data),
	})
}
