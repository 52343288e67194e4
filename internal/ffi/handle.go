package ffi

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"github.com/roguepikachu/nibb/pkg/logger"
)

// Allocator hands out NUL-terminated copies in memory the foreign caller can read.
type Allocator interface {
	Alloc(data []byte) (unsafe.Pointer, error)
	Free(p unsafe.Pointer)
}

// State is where a handle is in its life: Produced, then HandedOff, then Released.
type State int

const (
	Produced State = iota + 1
	HandedOff
	Released
)

func (s State) String() string {
	switch s {
	case Produced:
		return "Produced"
	case HandedOff:
		return "HandedOff"
	case Released:
		return "Released"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Table tracks every live handle so each one is freed exactly once.
// Released handles are dropped from the table; an address the table does not
// know is never passed to Free.
type Table struct {
	mu    sync.Mutex
	alloc Allocator
	live  map[unsafe.Pointer]State
}

// NewTable creates a handle table backed by alloc.
func NewTable(alloc Allocator) *Table {
	return &Table{alloc: alloc, live: make(map[unsafe.Pointer]State)}
}

// Produce allocates a copy of data. The handle belongs to the producer until HandOff.
func (t *Table) Produce(data []byte) (unsafe.Pointer, error) {
	p, err := t.alloc.Alloc(data)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("allocator returned nil")
	}
	t.mu.Lock()
	t.live[p] = Produced
	t.mu.Unlock()
	return p, nil
}

// HandOff passes ownership of p to the caller and returns it.
func (t *Table) HandOff(p unsafe.Pointer) (unsafe.Pointer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.live[p]; !ok || st != Produced {
		return nil, fmt.Errorf("hand off %p: handle is not in state Produced", p)
	}
	t.live[p] = HandedOff
	return p, nil
}

// Discard frees a handle the producer still owns, for failure paths before HandOff.
func (t *Table) Discard(p unsafe.Pointer) {
	t.mu.Lock()
	st, ok := t.live[p]
	if ok && st == Produced {
		delete(t.live, p)
	}
	t.mu.Unlock()
	if ok && st == Produced {
		t.alloc.Free(p)
	}
}

// Release frees a handle owned by the caller. Null is a no-op.
// Unknown, already released or not yet handed off addresses are logged and left alone.
func (t *Table) Release(ctx context.Context, p unsafe.Pointer) bool {
	if p == nil {
		return true
	}
	t.mu.Lock()
	st, ok := t.live[p]
	if ok && st == HandedOff {
		delete(t.live, p)
	}
	t.mu.Unlock()

	switch {
	case !ok:
		logger.Warn(ctx, "release of unknown or already released handle %p ignored", p)
		return false
	case st != HandedOff:
		logger.Error(ctx, "release of handle %p in state %s ignored", p, st)
		return false
	}
	t.alloc.Free(p)
	return true
}

// State returns the state of p. Handles the table no longer tracks report
// Released with ok false; that includes addresses it never produced.
func (t *Table) State(p unsafe.Pointer) (st State, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok = t.live[p]; !ok {
		return Released, false
	}
	return st, true
}

// Live is the number of handles not yet released.
func (t *Table) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}
