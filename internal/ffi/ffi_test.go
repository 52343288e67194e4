package ffi

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"unsafe"

	"github.com/roguepikachu/nibb/internal/domain"
	"github.com/roguepikachu/nibb/internal/repository/memory"
	"github.com/roguepikachu/nibb/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// goAlloc hands out Go-owned NUL-terminated buffers and records frees.
type goAlloc struct {
	mu    sync.Mutex
	bufs  map[unsafe.Pointer][]byte
	freed map[unsafe.Pointer]int
	fail  bool
}

func newGoAlloc() *goAlloc {
	return &goAlloc{bufs: map[unsafe.Pointer][]byte{}, freed: map[unsafe.Pointer]int{}}
}

func (a *goAlloc) Alloc(data []byte) (unsafe.Pointer, error) {
	if a.fail {
		return nil, errors.New("out of memory")
	}
	buf := append(append(make([]byte, 0, len(data)+1), data...), 0)
	p := unsafe.Pointer(&buf[0])
	a.mu.Lock()
	a.bufs[p] = buf
	a.mu.Unlock()
	return p, nil
}

func (a *goAlloc) Free(p unsafe.Pointer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.freed[p]++
}

func (a *goAlloc) read(t *testing.T, p unsafe.Pointer) string {
	t.Helper()
	require.NotNil(t, p)
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.bufs[p]
	require.True(t, ok, "unknown handle")
	require.Zero(t, a.freed[p], "read after free")
	return string(buf[:len(buf)-1])
}

func newBridge(store Store) (*Bridge, *goAlloc) {
	alloc := newGoAlloc()
	return NewBridge(store, NewTable(alloc)), alloc
}

func newMemoryBridge() (*Bridge, *goAlloc) {
	return newBridge(service.NewService(memory.NewSnippetRepository()))
}

func errorKind(t *testing.T, js string) domain.ErrorKind {
	t.Helper()
	var body struct {
		Kind    domain.ErrorKind `json:"kind"`
		Message string           `json:"message"`
	}
	require.NoError(t, json.Unmarshal([]byte(js), &body), js)
	require.NotEmpty(t, body.Message)
	return body.Kind
}

func TestBridge_GreetScenario(t *testing.T) {
	b, alloc := newMemoryBridge()

	require.True(t, b.Save(String(`{"name":"greet","content":"hi"}`)))

	h := b.Load(String("greet"))
	assert.Equal(t, `{"name":"greet","content":"hi"}`, alloc.read(t, h))
	b.Release(h)

	require.True(t, b.Delete(String("greet")))

	h = b.Load(String("greet"))
	assert.Equal(t, domain.KindNotFound, errorKind(t, alloc.read(t, h)))
	b.Release(h)

	assert.Zero(t, b.Table().Live())
}

func TestBridge_SaveInvalidJSONLeavesStoreUnchanged(t *testing.T) {
	b, alloc := newMemoryBridge()
	require.True(t, b.Save(String(`{"name":"keep","content":"x"}`)))

	assert.False(t, b.Save(String("not valid json")))
	assert.False(t, b.Save(String(`{"content":"no name"}`)))
	assert.False(t, b.Save(Bytes([]byte{'{', 0xff, '}'})))
	assert.False(t, b.Save(Null()))

	h := b.LoadAll()
	assert.JSONEq(t, `[{"name":"keep","content":"x"}]`, alloc.read(t, h))
	b.Release(h)
}

func TestBridge_LoadErrors(t *testing.T) {
	b, alloc := newMemoryBridge()
	cases := []struct {
		name string
		arg  Arg
		want domain.ErrorKind
	}{
		{"null", Null(), domain.KindValidation},
		{"bad utf8", Bytes([]byte{0xc3, 0x28}), domain.KindInvalidEncoding},
		{"missing", String("nope"), domain.KindNotFound},
		{"empty", String(""), domain.KindNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := b.Load(tc.arg)
			assert.Equal(t, tc.want, errorKind(t, alloc.read(t, h)))
			b.Release(h)
		})
	}
	assert.Zero(t, b.Table().Live())
}

func TestBridge_DeleteFailures(t *testing.T) {
	b, _ := newMemoryBridge()
	assert.False(t, b.Delete(String("missing")))
	assert.False(t, b.Delete(Null()))
	assert.False(t, b.Delete(Bytes([]byte{0xff})))
}

func TestBridge_SaveAllRoundTrip(t *testing.T) {
	b, alloc := newMemoryBridge()
	batch := `[{"name":"b","content":"2","tags":["x"]},{"name":"a","content":"1"}]`
	require.True(t, b.SaveAll(String(batch)))

	first := b.LoadAll()
	second := b.LoadAll()
	want := `[{"name":"a","content":"1"},{"name":"b","content":"2","tags":["x"]}]`
	assert.Equal(t, want, alloc.read(t, first))
	assert.Equal(t, want, alloc.read(t, second))
	assert.NotEqual(t, first, second, "each call returns its own buffer")
	b.Release(first)
	b.Release(second)
}

func TestBridge_SaveAllIsAllOrNothing(t *testing.T) {
	b, alloc := newMemoryBridge()
	require.True(t, b.SaveAll(String(`[{"name":"a","content":"1"}]`)))

	for _, in := range []string{
		`[{"name":"x"},{"name":"x"}]`,
		`[{"name":"x"},{"name":""}]`,
		`[{"name":"x"},{"content":"no name"}]`,
		`null`,
		`{"name":"x"}`,
		`[{"name":"x"}] trailing`,
	} {
		assert.False(t, b.SaveAll(String(in)), in)
	}
	assert.False(t, b.SaveAll(Null()))

	h := b.LoadAll()
	assert.Equal(t, `[{"name":"a","content":"1"}]`, alloc.read(t, h))
	b.Release(h)
}

func TestBridge_LoadAllEmpty(t *testing.T) {
	b, alloc := newMemoryBridge()
	h := b.LoadAll()
	assert.Equal(t, `[]`, alloc.read(t, h))
	b.Release(h)
}

func TestBridge_ReleaseDiscipline(t *testing.T) {
	b, alloc := newMemoryBridge()

	b.Release(nil)
	b.Release(nil)

	h := b.LoadAll()
	st, ok := b.Table().State(h)
	require.True(t, ok)
	assert.Equal(t, HandedOff, st)

	b.Release(h)
	b.Release(h)
	assert.Equal(t, 1, alloc.freed[h], "second release must not free again")
	st, ok = b.Table().State(h)
	assert.False(t, ok)
	assert.Equal(t, Released, st)

	var local byte
	stranger := unsafe.Pointer(&local)
	b.Release(stranger)
	assert.Zero(t, alloc.freed[stranger], "unknown handles are never freed")
}

func TestBridge_AllocationFailureReturnsNil(t *testing.T) {
	b, alloc := newMemoryBridge()
	alloc.fail = true
	assert.Nil(t, b.LoadAll())
	assert.Nil(t, b.Load(String("x")))
	assert.Zero(t, b.Table().Live())
}

func TestBridge_UnavailableStore(t *testing.T) {
	b, alloc := newBridge(Unavailable{Err: errors.New("disk missing")})
	assert.False(t, b.Save(String(`{"name":"a"}`)))
	assert.False(t, b.Delete(String("a")))
	assert.False(t, b.SaveAll(String(`[]`)))

	h := b.LoadAll()
	assert.Equal(t, domain.KindStorage, errorKind(t, alloc.read(t, h)))
	b.Release(h)
	h = b.Load(String("a"))
	assert.Equal(t, domain.KindStorage, errorKind(t, alloc.read(t, h)))
	b.Release(h)
}

type panickingStore struct{ Unavailable }

func (panickingStore) List(context.Context) ([]domain.Snippet, error) { panic("boom") }

func TestBridge_PanicBecomesInternal(t *testing.T) {
	b, alloc := newBridge(panickingStore{})
	h := b.LoadAll()
	assert.Equal(t, domain.KindInternal, errorKind(t, alloc.read(t, h)))
	b.Release(h)
}

func TestTable_StateMachine(t *testing.T) {
	ctx := context.Background()
	alloc := newGoAlloc()
	tbl := NewTable(alloc)

	p, err := tbl.Produce([]byte("x"))
	require.NoError(t, err)
	st, _ := tbl.State(p)
	assert.Equal(t, Produced, st)

	assert.False(t, tbl.Release(ctx, p), "caller cannot release before hand off")
	assert.Zero(t, alloc.freed[p])

	_, err = tbl.HandOff(p)
	require.NoError(t, err)
	_, err = tbl.HandOff(p)
	assert.Error(t, err, "hand off happens once")

	assert.True(t, tbl.Release(ctx, p))
	assert.False(t, tbl.Release(ctx, p))
	assert.Equal(t, 1, alloc.freed[p])

	q, err := tbl.Produce([]byte("y"))
	require.NoError(t, err)
	tbl.Discard(q)
	tbl.Discard(q)
	assert.Equal(t, 1, alloc.freed[q])
	assert.Zero(t, tbl.Live())
	assert.Equal(t, "HandedOff", HandedOff.String())
}

func TestBridge_ConcurrentCalls(t *testing.T) {
	b, _ := newMemoryBridge()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := string(rune('a' + i))
			for j := 0; j < 25; j++ {
				b.Save(String(`{"name":"` + name + `","content":"x"}`))
				b.Release(b.Load(String(name)))
				b.Release(b.LoadAll())
			}
		}(i)
	}
	wg.Wait()
	assert.Zero(t, b.Table().Live())
}

func TestFromPointer(t *testing.T) {
	assert.Equal(t, Null(), FromPointer(nil))

	buf := []byte("greet\x00trailing")
	a := FromPointer(unsafe.Pointer(&buf[0]))
	buf[0] = 'X'
	got, err := a.Text("load")
	require.NoError(t, err)
	assert.Equal(t, "greet", got, "argument must be a copy up to the first NUL")

	empty := []byte{0}
	got, err = FromPointer(unsafe.Pointer(&empty[0])).Text("load")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	big := make([]byte, 1<<20+1)
	for i := range big[:len(big)-1] {
		big[i] = 'a'
	}
	raw, err := FromPointer(unsafe.Pointer(&big[0])).Raw("save")
	require.NoError(t, err)
	assert.Len(t, raw, 1<<20)
}
