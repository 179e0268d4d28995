package miscutils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hengadev/miscutils/internal/crypto"
)

// DefaultPasswordFileName is the file under the home directory Secrets reads
// its password from when nothing else is configured.
const DefaultPasswordFileName = "secrets.txt"

// PasswordSource supplies the password Secrets derives its key from.
type PasswordSource interface {
	Password(ctx context.Context) ([]byte, error)
}

// PasswordFunc adapts a function to PasswordSource.
type PasswordFunc func(ctx context.Context) ([]byte, error)

func (f PasswordFunc) Password(ctx context.Context) ([]byte, error) { return f(ctx) }

// PasswordFile reads the password from a file. Trailing newlines are
// ignored.
type PasswordFile string

// DefaultPasswordFile returns $HOME/secrets.txt.
func DefaultPasswordFile() (PasswordFile, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", newConfigurationError("locate home directory: %v", err)
	}
	return PasswordFile(filepath.Join(home, DefaultPasswordFileName)), nil
}

func (p PasswordFile) Password(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(string(p))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: password file %s does not exist", ErrMissingPassword, string(p))
	}
	if err != nil {
		return nil, newStorageError("read password file", err)
	}
	data = bytes.TrimRight(data, "\r\n")
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: password file %s is empty", ErrMissingPassword, string(p))
	}
	return data, nil
}

// Store writes password to the file with mode 0600.
func (p PasswordFile) Store(password string) error {
	if err := os.MkdirAll(filepath.Dir(string(p)), 0o700); err != nil {
		return newStorageError("create password directory", err)
	}
	if err := os.WriteFile(string(p), []byte(password), 0o600); err != nil {
		return newStorageError("write password file", err)
	}
	return nil
}

// Secrets serializes values and encrypts the bytes with AES-256-GCM under a
// key derived from a password with PBKDF2-HMAC-SHA256.
type Secrets struct {
	store      Store
	source     PasswordSource
	file       PasswordFile
	salt       []byte
	serializer *Serializer

	serializerOpts []Option
}

// SecretsOption configures Secrets.
type SecretsOption func(*Secrets) error

// WithPassword uses a fixed password.
func WithPassword(password string) SecretsOption {
	return func(s *Secrets) error {
		if password == "" {
			return fmt.Errorf("%w: password cannot be empty", ErrMissingPassword)
		}
		pw := []byte(password)
		s.source = PasswordFunc(func(context.Context) ([]byte, error) { return pw, nil })
		return nil
	}
}

// WithPasswordFile reads the password from path.
func WithPasswordFile(path string) SecretsOption {
	return func(s *Secrets) error {
		if path == "" {
			return newConfigurationError("password file path cannot be empty")
		}
		s.file = PasswordFile(path)
		s.source = s.file
		return nil
	}
}

// WithPasswordSource reads the password from src, e.g. a Vault secret.
func WithPasswordSource(src PasswordSource) SecretsOption {
	return func(s *Secrets) error {
		if src == nil {
			return newConfigurationError("password source cannot be nil")
		}
		s.source = src
		return nil
	}
}

// WithSalt sets the key derivation salt. Without it a fixed salt is used.
func WithSalt(salt []byte) SecretsOption {
	return func(s *Secrets) error {
		s.salt = bytes.Clone(salt)
		return nil
	}
}

// WithSecretsSerializerOptions passes opts to the underlying Serializer.
func WithSecretsSerializerOptions(opts ...Option) SecretsOption {
	return func(s *Secrets) error {
		s.serializerOpts = append(s.serializerOpts, opts...)
		return nil
	}
}

// NewSecrets returns Secrets over store. Without a password option the
// password is read from DefaultPasswordFile. The password is read once,
// here.
func NewSecrets(ctx context.Context, store Store, opts ...SecretsOption) (*Secrets, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	s := &Secrets{store: store}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.source == nil {
		file, err := DefaultPasswordFile()
		if err != nil {
			return nil, err
		}
		s.file = file
		s.source = file
	}

	if err := s.init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Secrets) init(ctx context.Context) error {
	password, err := s.source.Password(ctx)
	if err != nil {
		return err
	}
	sealer, err := crypto.NewPasswordSealer(password, s.saltOrDefault())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	opts := append(append([]Option(nil), s.serializerOpts...), WithTransform(sealer))
	serializer, err := NewSerializer(s.store, opts...)
	if err != nil {
		return err
	}
	s.serializer = serializer
	return nil
}

// saltOrDefault substitutes a fixed salt for an empty one, which PBKDF2
// would otherwise reject.
func (s *Secrets) saltOrDefault() []byte {
	if len(s.salt) == 0 {
		return []byte("miscutils")
	}
	return s.salt
}

// Encrypt serializes obj, encrypts the bytes and writes them to the store.
func (s *Secrets) Encrypt(ctx context.Context, obj any) (*Report, error) {
	return s.serializer.Serialize(ctx, obj)
}

// Decrypt reads, decrypts and decodes the store. An empty store yields
// (nil, nil); a wrong password yields ErrDecryptionFailed.
func (s *Secrets) Decrypt(ctx context.Context) (any, error) {
	return s.serializer.Deserialize(ctx)
}

// ProvideNewPassword writes password to the password file and rederives the
// key. Data already in the store stays encrypted under the old key.
func (s *Secrets) ProvideNewPassword(ctx context.Context, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password cannot be empty", ErrMissingPassword)
	}
	if s.file == "" {
		return newConfigurationError("secrets do not read their password from a file")
	}
	if err := s.file.Store(password); err != nil {
		return err
	}
	return s.init(ctx)
}
