package miscutils

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewTestSerializer demonstrates the basic usage of the test helpers
func TestNewTestSerializer(t *testing.T) {
	ctx := context.Background()

	s, store, err := NewTestSerializer()
	require.NoError(t, err)
	assert.Equal(t, 0, store.Writes())

	_, err = s.Serialize(ctx, map[string]any{"answer": 42})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Writes())
	assert.NotEmpty(t, store.Bytes())

	// A second serializer sharing the bytes reads the same graph.
	other, err := NewSerializer(NewMemoryStore(store.Bytes()))
	require.NoError(t, err)
	v, err := other.Deserialize(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"answer": 42}, v)
}

// TestMemoryStore_FailureInjection shows how to simulate an unavailable store
func TestMemoryStore_FailureInjection(t *testing.T) {
	ctx := context.Background()
	s, store, err := NewTestSerializer()
	require.NoError(t, err)

	store.WriteErr = errors.New("quota exceeded")
	_, err = s.Serialize(ctx, "hello")
	require.Error(t, err)
	assert.True(t, IsStorageError(err))
	assert.Equal(t, 0, store.Writes())

	store.WriteErr = nil
	_, err = s.Serialize(ctx, "hello")
	require.NoError(t, err)

	store.ReadErr = errors.New("timeout")
	_, err = s.Deserialize(ctx)
	assert.True(t, IsStorageError(err))
}

func TestMemoryStore_CopiesBytes(t *testing.T) {
	ctx := context.Background()
	src := []byte{1, 2, 3}
	store := NewMemoryStore(src)
	src[0] = 9

	got, err := store.ReadBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	got[1] = 9
	assert.Equal(t, []byte{1, 2, 3}, store.Bytes())
}

func ExampleSerializer_Serialize() {
	ctx := context.Background()
	s, _, err := NewTestSerializer()
	if err != nil {
		panic(err)
	}

	report, err := s.Serialize(ctx, map[string]any{
		"name":   "worker",
		"notify": func() {},
	})
	if err != nil {
		panic(err)
	}
	fmt.Println("placeholders:", report.Placeholders)

	v, err := s.Deserialize(ctx)
	if err != nil {
		panic(err)
	}
	m := v.(map[string]any)
	fmt.Println(m["name"], IsPlaceholder(m["notify"]))
	// Output:
	// placeholders: 1
	// worker true
}
