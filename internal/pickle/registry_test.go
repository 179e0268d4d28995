package pickle

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct{ ID int }

type gadget struct{ ID int }

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(&widget{}))
	name, ok := reg.NameOf(reflect.TypeOf(widget{}))
	require.True(t, ok)
	assert.Equal(t, "github.com/hengadev/miscutils/internal/pickle.widget", name)

	// registering again is a no-op
	assert.NoError(t, reg.Register(widget{}))

	typ, ok := reg.Lookup(name)
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(widget{}), typ)
}

func TestRegistry_RegisterNameConflicts(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterName("app.Widget", widget{}))

	tests := []struct {
		name  string
		alias string
		value any
	}{
		{"name bound to another type", "app.Widget", gadget{}},
		{"type bound to another name", "app.Other", widget{}},
		{"predeclared name", "string", gadget{}},
		{"builtin name", "miscutils.Lost", gadget{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.RegisterName(tt.alias, tt.value)
			assert.ErrorIs(t, err, ErrDuplicateName)
		})
	}

	assert.Error(t, reg.RegisterName("bad name", gadget{}))
	assert.Error(t, reg.RegisterName("", gadget{}))
	assert.ErrorIs(t, reg.Register(nil), ErrUnsupportedType)
	assert.ErrorIs(t, reg.Register([]int{}), ErrUnsupportedType)
}

func TestRegistry_DescribeParse(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterName("app.Widget", widget{}))

	tests := []struct {
		typ  reflect.Type
		desc string
	}{
		{reflect.TypeOf(0), "int"},
		{reflect.TypeOf(""), "string"},
		{reflect.TypeOf([]byte(nil)), "[]uint8"},
		{reflect.TypeOf([]any(nil)), "[]any"},
		{reflect.TypeOf([3]string{}), "[3]string"},
		{reflect.TypeOf((*int)(nil)), "*int"},
		{reflect.TypeOf(map[string][]any(nil)), "map[string][]any"},
		{reflect.TypeOf(map[[2]int]bool(nil)), "map[[2]int]bool"},
		{reflect.TypeOf(map[string]struct{}(nil)), "map[string]struct{}"},
		{reflect.TypeOf(map[string]map[int]*widget(nil)), "map[string]map[int]*app.Widget"},
		{reflect.TypeOf([]error(nil)), "[]error"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			desc, err := reg.describe(tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.desc, desc)

			typ, err := reg.parse(desc)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, typ)
		})
	}
}

func TestRegistry_DescribeFailures(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.describe(reflect.TypeOf(gadget{}))
	assert.ErrorIs(t, err, ErrUnregisteredType)

	_, err = reg.describe(reflect.TypeOf(struct{ A int }{}))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = reg.describe(reflect.TypeOf(make(chan int)))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = reg.parse("app.Missing")
	assert.ErrorIs(t, err, ErrUnregisteredType)

	_, err = reg.parse("map[string")
	assert.Error(t, err)

	_, err = reg.parse("[x]int")
	assert.ErrorIs(t, err, ErrMalformedStream)
}
