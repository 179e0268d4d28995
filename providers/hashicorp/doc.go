// Package hashicorp connects miscutils to HashiCorp Vault.
//
// Three pieces are provided:
//   - KVPasswordSource: a miscutils.PasswordSource reading the Secrets
//     password from a KV v2 secret
//   - KVStore: a miscutils.Store keeping serialized bytes in a KV v2 secret
//   - TransitTransform: a miscutils.Transform sealing serialized bytes with
//     the Transit engine, so the key never leaves Vault
//
// # Setup
//
//	# KV v2 (usually enabled by default)
//	vault secrets enable -path=secret kv-v2
//
//	# Transit
//	vault secrets enable transit
//	vault write -f transit/keys/miscutils type=aes256-gcm96
//
// # Vault Policies Required
//
//	path "secret/data/miscutils/*" {
//	  capabilities = ["create", "read", "update"]
//	}
//	path "transit/encrypt/miscutils" {
//	  capabilities = ["update"]
//	}
//	path "transit/decrypt/miscutils" {
//	  capabilities = ["update"]
//	}
//
// # Environment Variables
//
// NewClientFromEnvironment reads:
//
//   - VAULT_ADDR: Vault server address (required)
//   - VAULT_NAMESPACE: Vault namespace for HCP Vault (optional)
//   - VAULT_TOKEN: Direct Vault token (option 1 for auth)
//   - VAULT_ROLE_ID and VAULT_SECRET_ID: AppRole credentials (option 2 for auth)
//
// # Usage Example
//
//	client, err := hashicorp.NewClientFromEnvironment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	secrets, err := miscutils.NewSecrets(ctx, miscutils.NewFileStore("vault.pkl"),
//	    miscutils.WithPasswordSource(hashicorp.NewKVPasswordSource(client, "secret", "miscutils/password")))
//
//	store := hashicorp.NewKVStore(client, "secret", "miscutils/state")
//	s, err := miscutils.NewSerializer(store,
//	    miscutils.WithTransform(hashicorp.NewTransitTransform(client, "transit", "miscutils")))
//
// # Error Handling
//
//   - miscutils.ErrStorageUnavailable: Vault could not be reached or refused a KV operation
//   - miscutils.ErrMissingPassword: the password secret or field does not exist
//   - miscutils.ErrInvalidConfiguration: missing address or credentials
//   - ErrAuthenticationFailed: the AppRole login failed
//   - ErrTransitFailed: the Transit engine refused to encrypt or decrypt
//
// For more information, see:
//   - Vault KV v2 Engine: https://developer.hashicorp.com/vault/docs/secrets/kv/kv-v2
//   - Vault Transit Engine: https://developer.hashicorp.com/vault/docs/secrets/transit
package hashicorp
