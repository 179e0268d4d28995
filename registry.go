package miscutils

import (
	"github.com/hengadev/miscutils/internal/pickle"
)

// Registry binds names to the types allowed behind interfaces.
type Registry = pickle.Registry

// NewRegistry returns a registry holding only the built-in types.
func NewRegistry() *Registry {
	reg := pickle.NewRegistry()
	mustRegisterBuiltins(reg)
	return reg
}

var defaultRegistry = NewRegistry()

// DefaultRegistry is the registry serializers use unless WithRegistry is
// given.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register records value's type in the default registry under its
// package-qualified name.
func Register(value any) error {
	return defaultRegistry.Register(value)
}

// RegisterName records value's type in the default registry under name.
func RegisterName(name string, value any) error {
	return defaultRegistry.RegisterName(name, value)
}

func mustRegisterBuiltins(reg *Registry) {
	if err := registerBuiltins(reg); err != nil {
		panic(err)
	}
}

func registerBuiltins(reg *Registry) error {
	return reg.RegisterName(cacheContentsName, CacheContents{})
}
