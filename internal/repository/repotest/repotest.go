// Package repotest holds the behaviour checks shared by every snippet backend.
package repotest

import (
	"context"
	"errors"
	"testing"

	"github.com/roguepikachu/nibb/internal/domain"
	"github.com/roguepikachu/nibb/internal/repository"
)

// Factory returns an empty repository for one subtest.
type Factory func(t *testing.T) repository.SnippetRepository

// Run exercises the repository contract against repositories built by newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Helper()
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newRepo(t)) })
	t.Run("PutGet", func(t *testing.T) { testPutGet(t, newRepo(t)) })
	t.Run("PutOverwrites", func(t *testing.T) { testPutOverwrites(t, newRepo(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newRepo(t)) })
	t.Run("ListSorted", func(t *testing.T) { testListSorted(t, newRepo(t)) })
	t.Run("ReplaceAll", func(t *testing.T) { testReplaceAll(t, newRepo(t)) })
	t.Run("ReplaceAllEmpty", func(t *testing.T) { testReplaceAllEmpty(t, newRepo(t)) })
}

// Sample returns a snippet using every field.
func Sample(name string) domain.Snippet {
	return domain.Snippet{
		Name:        name,
		Content:     "package main\n\nfunc main() { println(\"" + name + "\") }\n",
		Description: "sample " + name,
		Tags:        []string{"go", "sample"},
		Language:    domain.FileTypeGo,
		Visibility:  domain.VisibilityPrivate,
	}
}

func testGetMissing(t *testing.T, r repository.SnippetRepository) {
	ctx := context.Background()
	if _, err := r.Get(ctx, "nope"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.Delete(ctx, "nope"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}
}

func testPutGet(t *testing.T, r repository.SnippetRepository) {
	ctx := context.Background()
	for _, s := range []domain.Snippet{Sample("full"), {Name: "bare", Content: "hi"}} {
		if err := r.Put(ctx, s); err != nil {
			t.Fatalf("put %s: %v", s.Name, err)
		}
		got, err := r.Get(ctx, s.Name)
		if err != nil {
			t.Fatalf("get %s: %v", s.Name, err)
		}
		if !s.Equal(got) {
			t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", s, got)
		}
	}
}

func testPutOverwrites(t *testing.T, r repository.SnippetRepository) {
	ctx := context.Background()
	first := Sample("same")
	if err := r.Put(ctx, first); err != nil {
		t.Fatalf("put: %v", err)
	}
	second := domain.Snippet{Name: "same", Content: "print('x')", Language: domain.FileTypePython}
	if err := r.Put(ctx, second); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := r.Get(ctx, "same")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !second.Equal(got) {
		t.Fatalf("overwrite must replace wholesale:\nwant %+v\ngot  %+v", second, got)
	}
	all, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("want 1 snippet after overwrite, got %d", len(all))
	}
}

func testDelete(t *testing.T, r repository.SnippetRepository) {
	ctx := context.Background()
	if err := r.Put(ctx, Sample("gone")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := r.Delete(ctx, "gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.Get(ctx, "gone"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := r.Delete(ctx, "gone"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func testListSorted(t *testing.T, r repository.SnippetRepository) {
	ctx := context.Background()
	for _, n := range []string{"charlie", "alpha", "bravo"} {
		if err := r.Put(ctx, Sample(n)); err != nil {
			t.Fatalf("put %s: %v", n, err)
		}
	}
	first, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	second, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list again: %v", err)
	}
	want := []string{"alpha", "bravo", "charlie"}
	if len(first) != len(want) {
		t.Fatalf("want %d items, got %d", len(want), len(first))
	}
	for i, s := range first {
		if s.Name != want[i] || second[i].Name != want[i] {
			t.Fatalf("position %d: want %s, got %s / %s", i, want[i], s.Name, second[i].Name)
		}
	}
}

func testReplaceAll(t *testing.T, r repository.SnippetRepository) {
	ctx := context.Background()
	if err := r.Put(ctx, Sample("old")); err != nil {
		t.Fatalf("put: %v", err)
	}
	batch := []domain.Snippet{Sample("b"), {Name: "a", Content: "first"}}
	if err := r.ReplaceAll(ctx, batch); err != nil {
		t.Fatalf("replace all: %v", err)
	}
	if _, err := r.Get(ctx, "old"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("old snippet should be gone, got %v", err)
	}
	all, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].Name != "a" || all[1].Name != "b" {
		t.Fatalf("unexpected contents: %+v", all)
	}
	if !batch[0].Equal(all[1]) || !batch[1].Equal(all[0]) {
		t.Fatalf("contents changed on the way through: %+v", all)
	}
}

func testReplaceAllEmpty(t *testing.T, r repository.SnippetRepository) {
	ctx := context.Background()
	if err := r.Put(ctx, Sample("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := r.ReplaceAll(ctx, nil); err != nil {
		t.Fatalf("replace all: %v", err)
	}
	all, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("want empty store, got %d", len(all))
	}
}
