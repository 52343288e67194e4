// Package ffi converts foreign calls into store calls and store results into
// foreign-owned buffers. It holds no cgo code, so it is testable with a Go allocator.
package ffi

import (
	"context"
	"runtime/debug"
	"unsafe"

	"github.com/google/uuid"
	"github.com/roguepikachu/nibb/internal/domain"
	"github.com/roguepikachu/nibb/internal/envelope"
	"github.com/roguepikachu/nibb/pkg/ctxutil"
	"github.com/roguepikachu/nibb/pkg/logger"
)

// Store is the snippet store the bridge drives; *service.Service implements it.
type Store interface {
	Get(ctx context.Context, name string) (domain.Snippet, error)
	Put(ctx context.Context, s domain.Snippet) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]domain.Snippet, error)
	ReplaceAll(ctx context.Context, items []domain.Snippet) error
}

// Bridge implements the six foreign entry points on top of a Store and a handle Table.
type Bridge struct {
	store Store
	table *Table
}

// NewBridge creates a bridge.
func NewBridge(store Store, table *Table) *Bridge {
	return &Bridge{store: store, table: table}
}

// Table returns the bridge's handle table.
func (b *Bridge) Table() *Table { return b.table }

func newCall(op string) context.Context {
	ctx := ctxutil.WithCallID(context.Background(), uuid.NewString())
	return ctxutil.WithOperation(ctx, op)
}

// guard runs fn and turns a panic into an Internal error.
func guard(ctx context.Context, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.With(ctx, map[string]any{"panic": r, "stack": string(debug.Stack())}).Error("panic recovered")
			err = domain.Errorf(domain.KindInternal, op, "panic: %v", r)
		}
	}()
	return fn()
}

// output hands data to the caller. A nil result means the buffer could not be allocated.
func (b *Bridge) output(ctx context.Context, data []byte) unsafe.Pointer {
	p, err := b.table.Produce(data)
	if err != nil {
		logger.Error(ctx, "allocate result: %v", err)
		return nil
	}
	out, err := b.table.HandOff(p)
	if err != nil {
		b.table.Discard(p)
		logger.Error(ctx, "hand off result: %v", err)
		return nil
	}
	return out
}

// Load returns the snippet as JSON, or an error object.
func (b *Bridge) Load(name Arg) unsafe.Pointer {
	const op = "load"
	ctx := newCall(op)
	var snip domain.Snippet
	err := guard(ctx, op, func() error {
		n, err := name.Text(op)
		if err != nil {
			return err
		}
		snip, err = b.store.Get(ctx, n)
		return err
	})
	return b.output(ctx, envelope.From(snip, err).JSON(ctx, domain.EncodeSnippet))
}

// Save decodes one snippet and stores it.
func (b *Bridge) Save(snippetJSON Arg) bool {
	const op = "save"
	ctx := newCall(op)
	err := guard(ctx, op, func() error {
		raw, err := snippetJSON.Raw(op)
		if err != nil {
			return err
		}
		s, err := domain.DecodeSnippet(raw)
		if err != nil {
			return err
		}
		return b.store.Put(ctx, s)
	})
	return envelope.From(struct{}{}, err).Bool(ctx)
}

// Delete removes the named snippet.
func (b *Bridge) Delete(name Arg) bool {
	const op = "delete"
	ctx := newCall(op)
	err := guard(ctx, op, func() error {
		n, err := name.Text(op)
		if err != nil {
			return err
		}
		return b.store.Delete(ctx, n)
	})
	return envelope.From(struct{}{}, err).Bool(ctx)
}

// LoadAll returns every snippet as a JSON array sorted by name, or an error object.
func (b *Bridge) LoadAll() unsafe.Pointer {
	const op = "load all"
	ctx := newCall(op)
	var items []domain.Snippet
	err := guard(ctx, op, func() error {
		var err error
		items, err = b.store.List(ctx)
		return err
	})
	encode := func(items []domain.Snippet) ([]byte, error) { return domain.EncodeSnippets(items, false) }
	return b.output(ctx, envelope.From(items, err).JSON(ctx, encode))
}

// SaveAll replaces the whole collection with the decoded array, or changes nothing.
func (b *Bridge) SaveAll(snippetsJSON Arg) bool {
	const op = "save all"
	ctx := newCall(op)
	err := guard(ctx, op, func() error {
		raw, err := snippetsJSON.Raw(op)
		if err != nil {
			return err
		}
		items, err := domain.DecodeSnippets(raw)
		if err != nil {
			return err
		}
		return b.store.ReplaceAll(ctx, items)
	})
	return envelope.From(struct{}{}, err).Bool(ctx)
}

// Release frees a handle returned by Load or LoadAll. Null is a no-op.
func (b *Bridge) Release(p unsafe.Pointer) {
	b.table.Release(newCall("release"), p)
}
