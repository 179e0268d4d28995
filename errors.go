package miscutils

import (
	"errors"
	"fmt"

	"github.com/hengadev/miscutils/internal/crypto"
	"github.com/hengadev/miscutils/internal/pickle"
	"github.com/hengadev/miscutils/internal/repair"
)

var (
	// Storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNilStore           = errors.New("store cannot be nil")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingPassword      = errors.New("missing password")

	// Content errors, absorbed by the repair path when serializing
	ErrUnsupportedType  = pickle.ErrUnsupportedType
	ErrUnregisteredType = pickle.ErrUnregisteredType

	// Systemic errors
	ErrDepthExceeded    = repair.ErrDepthExceeded
	ErrDecodeFailed     = errors.New("decode failed")
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
)

func newStorageError(op string, err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}

func newConfigurationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}

func newDecodeError(codec string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDecodeFailed, codec, err)
}

func newDepthError(err error) error {
	if errors.Is(err, ErrDepthExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrDepthExceeded, err)
}

// IsStorageError reports whether err came from the backing store.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrNilStore)
}

// IsConfigurationError reports whether err is a configuration problem.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingPassword) ||
		errors.Is(err, crypto.ErrEmptyPassword)
}

// IsContentError reports whether err is about a value the codec cannot
// carry. Serialize never returns these; Check and the codecs do.
func IsContentError(err error) bool {
	return errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrUnregisteredType)
}

// IsSystemicError reports whether err stopped an operation outright:
// storage, depth, decoding or encryption failures.
func IsSystemicError(err error) bool {
	return IsStorageError(err) ||
		errors.Is(err, ErrDepthExceeded) ||
		errors.Is(err, pickle.ErrDepthExceeded) ||
		errors.Is(err, ErrDecodeFailed) ||
		errors.Is(err, ErrEncryptionFailed) ||
		errors.Is(err, ErrDecryptionFailed)
}
