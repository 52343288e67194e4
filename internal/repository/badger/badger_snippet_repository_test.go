package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v3"
	"github.com/roguepikachu/nibb/internal/data"
	"github.com/roguepikachu/nibb/internal/domain"
	"github.com/roguepikachu/nibb/internal/repository"
	"github.com/roguepikachu/nibb/internal/repository/repotest"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := data.OpenBadger("")
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBadgerRepository_Contract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repository.SnippetRepository {
		return NewSnippetRepository(openDB(t))
	})
}

func TestBadgerRepository_IgnoresForeignKeys(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	repo := NewSnippetRepository(db)

	if err := db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("other/key"), []byte("not a snippet"))
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.Put(ctx, domain.Snippet{Name: "a", Content: "1"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := repo.ReplaceAll(ctx, []domain.Snippet{{Name: "b", Content: "2"}}); err != nil {
		t.Fatalf("replace all: %v", err)
	}
	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].Name != "b" {
		t.Fatalf("unexpected list: %+v", all)
	}
	if err := db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("other/key"))
		return err
	}); err != nil {
		t.Fatalf("replace all must leave foreign keys alone: %v", err)
	}
}

func TestBadgerRepository_CorruptValue(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	repo := NewSnippetRepository(db)
	if err := db.Update(func(txn *badger.Txn) error {
		return txn.Set(key("bad"), []byte("{"))
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.Get(ctx, "bad"); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := repo.List(ctx); err == nil {
		t.Fatalf("expected decode error from list")
	}
}

func TestBadgerRepository_OversizedReplaceAllLeavesStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	repo := NewSnippetRepository(openDB(t))
	if err := repo.Put(ctx, repotest.Sample("kept")); err != nil {
		t.Fatalf("put: %v", err)
	}

	// roughly 12 MiB, past the ~10 MiB batch limit of the default 64 MiB memtable
	body := strings.Repeat("x", 64<<10)
	batch := make([]domain.Snippet, 200)
	for i := range batch {
		batch[i] = domain.Snippet{Name: fmt.Sprintf("big-%03d", i), Content: body}
	}
	err := repo.ReplaceAll(ctx, batch)
	if !errors.Is(err, badger.ErrTxnTooBig) {
		t.Fatalf("expected ErrTxnTooBig, got %v", err)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || !repotest.Sample("kept").Equal(all[0]) {
		t.Fatalf("store changed by failed replace all: %d items", len(all))
	}
}
