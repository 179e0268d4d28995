package placeholder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLost_Protocol(t *testing.T) {
	l := New("<socket fd=3>")

	assert.Equal(t, "Lost(<socket fd=3>)", l.String())
	assert.Equal(t, 0, l.Len())

	count := 0
	for range l.All() {
		count++
	}
	assert.Zero(t, count)

	v, ok := l.Next()
	assert.Nil(t, v)
	assert.False(t, ok)
}

func TestLost_Attr(t *testing.T) {
	l := New("conn")

	tests := []struct {
		name    string
		attr    string
		wantErr bool
	}{
		{name: "exported name", attr: "Addr"},
		{name: "another exported name", attr: "RemoteAddr"},
		{name: "unexported name", attr: "fd", wantErr: true},
		{name: "empty name", attr: "", wantErr: true},
		{name: "underscore name", attr: "_x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Attr(tt.attr)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrReservedAttr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Same(t, Void, got)
		})
	}
}

func TestAbsent_Absorbs(t *testing.T) {
	a, err := New("x").Attr("Foo")
	require.NoError(t, err)

	b, err := a.Attr("Bar")
	require.NoError(t, err)
	c, err := b.Attr("Baz")
	require.NoError(t, err)

	assert.Same(t, Void, c)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, "Void", c.String())

	_, err = c.Attr("hidden")
	assert.ErrorIs(t, err, ErrReservedAttr)
}

func TestLost_NilReceiver(t *testing.T) {
	var l *Lost
	assert.Equal(t, "Lost()", l.String())
	assert.Equal(t, 0, l.Len())
}

func TestIsPlaceholder(t *testing.T) {
	assert.True(t, IsPlaceholder(New("x")))
	assert.True(t, IsPlaceholder(Void))
	assert.False(t, IsPlaceholder("x"))
	assert.False(t, IsPlaceholder(nil))
}
