package hashicorp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/vault/api"

	"github.com/hengadev/miscutils"
)

// ErrTransitFailed is returned when the Transit engine refuses an operation.
var ErrTransitFailed = errors.New("vault transit operation failed")

// TransitTransform seals serialized bytes with a Transit key. The stored
// ciphertext is Vault's "vault:vN:..." string.
type TransitTransform struct {
	client *api.Client
	mount  string
	key    string
}

// NewTransitTransform uses key of the Transit engine mounted at mount.
func NewTransitTransform(client *api.Client, mount, key string) *TransitTransform {
	return &TransitTransform{client: client, mount: strings.Trim(mount, "/"), key: key}
}

// CreateKey creates the Transit key as aes256-gcm96. Creating an existing
// key is a no-op on the Vault side.
func (t *TransitTransform) CreateKey(ctx context.Context) error {
	if t.key == "" {
		return fmt.Errorf("%w: key name cannot be empty", miscutils.ErrInvalidConfiguration)
	}
	_, err := t.client.Logical().WriteWithContext(ctx, fmt.Sprintf("%s/keys/%s", t.mount, t.key), map[string]interface{}{
		"type": "aes256-gcm96",
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create transit key '%s': %w", ErrTransitFailed, t.key, err)
	}
	return nil
}

func (t *TransitTransform) Seal(plaintext []byte) ([]byte, error) {
	resp, err := t.client.Logical().Write(fmt.Sprintf("%s/encrypt/%s", t.mount, t.key), map[string]interface{}{
		"plaintext": base64.StdEncoding.EncodeToString(plaintext),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encrypt with key '%s': %w", ErrTransitFailed, t.key, err)
	}
	if resp == nil || resp.Data == nil {
		return nil, fmt.Errorf("%w: no response from Vault Transit encrypt", ErrTransitFailed)
	}
	ciphertext, ok := resp.Data["ciphertext"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: ciphertext not found in response", ErrTransitFailed)
	}
	return []byte(ciphertext), nil
}

func (t *TransitTransform) Open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("%w: ciphertext cannot be empty", ErrTransitFailed)
	}
	resp, err := t.client.Logical().Write(fmt.Sprintf("%s/decrypt/%s", t.mount, t.key), map[string]interface{}{
		"ciphertext": string(ciphertext),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decrypt with key '%s': %w", ErrTransitFailed, t.key, err)
	}
	if resp == nil || resp.Data == nil {
		return nil, fmt.Errorf("%w: no response from Vault Transit decrypt", ErrTransitFailed)
	}
	encoded, ok := resp.Data["plaintext"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: plaintext not found in response", ErrTransitFailed)
	}
	plaintext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode plaintext: %w", ErrTransitFailed, err)
	}
	return plaintext, nil
}
