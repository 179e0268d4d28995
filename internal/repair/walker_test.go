package repair

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	ogorek "github.com/kisielk/og-rek"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/miscutils/internal/pickle"
	"github.com/hengadev/miscutils/internal/placeholder"
)

type socket struct {
	fd int
}

func (s *socket) String() string { return "<socket fd=3, family=AF_INET>" }

type conn struct {
	Addr string
	Sock any
}

type treeNode struct {
	Name   string
	Child  *treeNode
	Parent *treeNode
	Handle any
}

type typed struct {
	Name string
	Ch   chan int
	Sock *socket
}

type guarded struct {
	mu    sync.Mutex
	Value any
}

type stubborn struct {
	Name string
}

func newCodec(t *testing.T) *pickle.Codec {
	t.Helper()
	reg := pickle.NewRegistry()
	for _, v := range []any{socket{}, conn{}, treeNode{}, typed{}, &guarded{}, stubborn{}} {
		require.NoError(t, reg.Register(v))
	}
	return pickle.New(reg)
}

func lostOf(t *testing.T, v any) *placeholder.Lost {
	t.Helper()
	l, ok := v.(*placeholder.Lost)
	require.True(t, ok, "want *placeholder.Lost, got %T", v)
	return l
}

func TestRepair_CleanGraphIsUntouched(t *testing.T) {
	codec := newCodec(t)
	w := New(codec)

	root := map[string]any{"a": 1, "b": []any{"x", 2.5}, "c": &conn{Addr: "localhost"}}

	got, report, err := w.Repair(root)
	require.NoError(t, err)
	assert.True(t, report.Lossless())
	assert.Equal(t, reflect.ValueOf(root).Pointer(), reflect.ValueOf(got).Pointer())

	want, err := codec.Marshal(root)
	require.NoError(t, err)
	have, err := codec.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, want, have)
}

func TestRepair_EndpointBecomesPlaceholder(t *testing.T) {
	w := New(newCodec(t))
	sock := &socket{fd: 3}

	got, report, err := w.Repair(map[string]any{"ok": 1, "sock": sock})
	require.NoError(t, err)

	m := got.(map[string]any)
	assert.Equal(t, 1, m["ok"])
	lost := lostOf(t, m["sock"])
	assert.Equal(t, sock.String(), lost.Repr)

	require.Len(t, report.Losses, 1)
	assert.Equal(t, "$[\"sock\"]", report.Losses[0].Path)
	assert.Equal(t, 1, report.Placeholders)
}

func TestRepair_InputIsNotMutated(t *testing.T) {
	w := New(newCodec(t))
	ch := make(chan int)
	inner := []any{"keep", ch}
	root := map[string]any{"inner": inner}

	_, _, err := w.Repair(root)
	require.NoError(t, err)

	assert.Equal(t, ch, inner[1])
	assert.Equal(t, reflect.ValueOf(inner).Pointer(), reflect.ValueOf(root["inner"]).Pointer())
}

func TestRepair_SharedReferencesStayShared(t *testing.T) {
	w := New(newCodec(t))

	t.Run("shared copy", func(t *testing.T) {
		shared := &conn{Addr: "db", Sock: make(chan int)}

		got, _, err := w.Repair([]any{shared, []any{shared}})
		require.NoError(t, err)

		list := got.([]any)
		first, ok := list[0].(*conn)
		require.True(t, ok)
		assert.NotSame(t, shared, first)
		assert.Same(t, first, list[1].([]any)[0])
		assert.Equal(t, "db", first.Addr)
		lostOf(t, first.Sock)
	})

	t.Run("shared placeholder", func(t *testing.T) {
		ch := make(chan int)

		got, report, err := w.Repair([]any{ch, ch})
		require.NoError(t, err)

		list := got.([]any)
		assert.Same(t, lostOf(t, list[0]), lostOf(t, list[1]))
		assert.Equal(t, 1, report.Placeholders)
	})
}

func TestRepair_CyclesTerminateAndSurvive(t *testing.T) {
	w := New(newCodec(t))

	a := &treeNode{Name: "a"}
	b := &treeNode{Name: "b", Handle: make(chan struct{})}
	a.Child = b
	b.Parent = a

	got, _, err := w.Repair(a)
	require.NoError(t, err)

	ra := got.(*treeNode)
	assert.NotSame(t, a, ra)
	require.NotNil(t, ra.Child)
	assert.Same(t, ra, ra.Child.Parent)
	lostOf(t, ra.Child.Handle)

	// the original keeps its handle
	assert.IsType(t, make(chan struct{}), b.Handle)
}

func TestRepair_SelfReferencingMap(t *testing.T) {
	w := New(newCodec(t))
	m := map[string]any{"fn": func() {}}
	m["self"] = m

	got, _, err := w.Repair(m)
	require.NoError(t, err)

	rm := got.(map[string]any)
	self := rm["self"].(map[string]any)
	assert.Equal(t, reflect.ValueOf(rm).Pointer(), reflect.ValueOf(self).Pointer())
	lostOf(t, rm["fn"])
}

type rejecting struct {
	*pickle.Codec
	reject reflect.Type
}

func (r rejecting) Check(v reflect.Value) error {
	for v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	if v.IsValid() && v.Type() == r.reject {
		return errors.New("rejected")
	}
	return r.Codec.Check(v)
}

func TestRepair_NoProgressYieldsPlaceholder(t *testing.T) {
	p := rejecting{Codec: newCodec(t), reject: reflect.TypeOf(&stubborn{})}
	w := New(p)

	got, report, err := w.Repair(&stubborn{Name: "fine"})
	require.NoError(t, err)

	lost := lostOf(t, got)
	assert.Contains(t, lost.Repr, "stubborn")
	require.Len(t, report.Losses, 1)
	assert.Equal(t, "no member could be repaired", report.Losses[0].Reason)
	assert.Equal(t, 1, report.Copies)
}

func TestRepair_TypedSlotsAreZeroed(t *testing.T) {
	w := New(newCodec(t))
	v := &typed{Name: "n", Ch: make(chan int), Sock: &socket{fd: 1}}

	got, report, err := w.Repair(v)
	require.NoError(t, err)

	r := got.(*typed)
	assert.Equal(t, "n", r.Name)
	assert.Nil(t, r.Ch)
	assert.Nil(t, r.Sock)
	assert.NotNil(t, v.Ch)

	reasons := map[string]int{}
	for _, l := range report.Losses {
		reasons[l.Reason]++
	}
	assert.Equal(t, 2, reasons["replacement does not fit the slot; zero value stored"])
	assert.Equal(t, 2, report.Placeholders)
}

func TestRepair_LockBearingValuesAreNotCopied(t *testing.T) {
	w := New(newCodec(t))
	g := &guarded{Value: make(chan int)}

	got, report, err := w.Repair([]any{g})
	require.NoError(t, err)

	lostOf(t, got.([]any)[0])
	require.NotEmpty(t, report.Losses)
	assert.Equal(t, "cannot be copied", report.Losses[0].Reason)
}

func TestRepair_MapKeys(t *testing.T) {
	w := New(newCodec(t))

	t.Run("interface keys take placeholders", func(t *testing.T) {
		ch := make(chan int)
		set := map[any]struct{}{ch: {}, "plain": {}}

		got, _, err := w.Repair(set)
		require.NoError(t, err)

		rs := got.(map[any]struct{})
		assert.Len(t, rs, 2)
		assert.Contains(t, rs, "plain")
		found := false
		for k := range rs {
			if _, ok := k.(*placeholder.Lost); ok {
				found = true
			}
		}
		assert.True(t, found)
	})

	t.Run("concrete keys drop the entry", func(t *testing.T) {
		m := map[*socket]int{{fd: 1}: 1}

		got, report, err := w.Repair(map[string]any{"m": m, "keep": true})
		require.NoError(t, err)

		rm := got.(map[string]any)
		assert.Equal(t, true, rm["keep"])
		assert.Empty(t, rm["m"].(map[*socket]int))
		assert.Len(t, m, 1)

		dropped := false
		for _, l := range report.Losses {
			if l.Reason == "key replacement does not fit the key type; entry dropped" {
				dropped = true
			}
		}
		assert.True(t, dropped)
	})
}

func TestRepair_TupleIsRebuilt(t *testing.T) {
	w := New(newCodec(t))
	tup := ogorek.Tuple{int64(1), make(chan int)}

	got, _, err := w.Repair(tup)
	require.NoError(t, err)

	rt, ok := got.(ogorek.Tuple)
	require.True(t, ok)
	require.Len(t, rt, 2)
	assert.Equal(t, int64(1), rt[0])
	lostOf(t, rt[1])
	assert.NotEqual(t, reflect.ValueOf(tup).Pointer(), reflect.ValueOf(rt).Pointer())
}

func TestRepair_UnregisteredInterfaceValue(t *testing.T) {
	w := New(newCodec(t))
	type local struct{ A int }

	got, report, err := w.Repair([]any{local{A: 1}, "ok"})
	require.NoError(t, err)

	list := got.([]any)
	lostOf(t, list[0])
	assert.Equal(t, "ok", list[1])
	assert.Equal(t, "type cannot travel in an interface", report.Losses[0].Reason)
}

func TestRepair_DepthLimit(t *testing.T) {
	w := New(newCodec(t), WithMaxDepth(4))

	var v any = make(chan int)
	for i := 0; i < 10; i++ {
		v = []any{v}
	}

	_, _, err := w.Repair(v)
	assert.ErrorIs(t, err, ErrDepthExceeded)
}

func TestRepair_ResultAlwaysEncodes(t *testing.T) {
	codec := newCodec(t)
	w := New(codec)

	shared := &conn{Addr: "x", Sock: &socket{}}
	inputs := []any{
		nil,
		make(chan int),
		[]any{func() {}, shared, shared},
		map[string]any{"a": map[string]any{"b": []any{make(chan bool)}}},
		&typed{Ch: make(chan int)},
	}

	for i, in := range inputs {
		got, _, err := w.Repair(in)
		require.NoError(t, err, "input %d", i)
		_, err = codec.Marshal(got)
		assert.NoError(t, err, "input %d", i)
	}
}
