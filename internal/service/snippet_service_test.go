package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/roguepikachu/nibb/internal/domain"
	"github.com/roguepikachu/nibb/internal/repository"
	"github.com/roguepikachu/nibb/internal/repository/memory"
)

// failingRepo fails every call with err.
type failingRepo struct{ err error }

func (f failingRepo) Get(context.Context, string) (domain.Snippet, error) {
	return domain.Snippet{}, f.err
}
func (f failingRepo) Put(context.Context, domain.Snippet) error          { return f.err }
func (f failingRepo) Delete(context.Context, string) error               { return f.err }
func (f failingRepo) List(context.Context) ([]domain.Snippet, error)     { return nil, f.err }
func (f failingRepo) ReplaceAll(context.Context, []domain.Snippet) error { return f.err }

// unsortedRepo returns its items in the order given.
type unsortedRepo struct {
	memory.SnippetRepository
	items []domain.Snippet
}

func (u *unsortedRepo) List(context.Context) ([]domain.Snippet, error) { return u.items, nil }

func names(items []domain.Snippet) string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = s.Name
	}
	return strings.Join(out, ",")
}

func TestService_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewSnippetRepository())
	greet := domain.Snippet{Name: "greet", Content: "hi"}

	if err := svc.Put(ctx, greet); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := svc.Get(ctx, "greet")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !greet.Equal(got) {
		t.Fatalf("want %+v, got %+v", greet, got)
	}
	if err := svc.Delete(ctx, "greet"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, "greet"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if err := svc.Delete(ctx, "greet"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected NotFound on second delete, got %v", err)
	}
}

func TestService_EmptyNames(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewSnippetRepository())
	if _, err := svc.Get(ctx, ""); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("get empty: %v", err)
	}
	if err := svc.Delete(ctx, ""); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("delete empty: %v", err)
	}
	if err := svc.Put(ctx, domain.Snippet{Content: "orphan"}); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("put empty: %v", err)
	}
}

func TestService_ReplaceAllIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewSnippetRepository(memory.WithItems(
		domain.Snippet{Name: "keep", Content: "1"},
		domain.Snippet{Name: "also", Content: "2"},
	))
	svc := NewService(repo)
	before, _ := svc.List(ctx)

	bad := [][]domain.Snippet{
		{{Name: "a", Content: "x"}, {Name: "a", Content: "y"}},
		{{Name: "a", Content: "x"}, {Name: "", Content: "y"}},
		{{Name: "a", Tags: []string{"ok", ""}}},
	}
	for i, batch := range bad {
		if err := svc.ReplaceAll(ctx, batch); !domain.IsKind(err, domain.KindValidation) {
			t.Fatalf("batch %d: expected ValidationError, got %v", i, err)
		}
		after, err := svc.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if names(after) != names(before) {
			t.Fatalf("batch %d changed the store: %s", i, names(after))
		}
	}
}

func TestService_ReplaceAllThenList(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewSnippetRepository())
	a := domain.Snippet{Name: "a", Content: "1"}
	b := domain.Snippet{Name: "b", Content: "2", Tags: []string{"t"}}
	if err := svc.ReplaceAll(ctx, []domain.Snippet{b, a}); err != nil {
		t.Fatalf("replace all: %v", err)
	}
	first, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	second, _ := svc.List(ctx)
	if names(first) != "a,b" || names(second) != "a,b" {
		t.Fatalf("unexpected order: %s / %s", names(first), names(second))
	}
	if !first[0].Equal(a) || !first[1].Equal(b) {
		t.Fatalf("contents changed: %+v", first)
	}
}

func TestService_ListSortsWhateverTheBackendReturns(t *testing.T) {
	repo := &unsortedRepo{items: []domain.Snippet{{Name: "b"}, {Name: "B"}, {Name: "ab"}, {Name: "a"}}}
	svc := NewService(repo)
	got, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if names(got) != "B,a,ab,b" {
		t.Fatalf("unexpected order %s", names(got))
	}
	if names(repo.items) != "b,B,ab,a" {
		t.Fatalf("list must not reorder the backend's slice")
	}
}

func TestService_ListEmptyIsNotNil(t *testing.T) {
	got, err := NewService(memory.NewSnippetRepository()).List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got == nil {
		t.Fatalf("want empty slice, got nil")
	}
}

func TestService_BackendFailuresAreStorageErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")
	svc := NewService(failingRepo{err: boom})
	s := domain.Snippet{Name: "x"}

	checks := map[string]error{
		"get":         func() error { _, err := svc.Get(ctx, "x"); return err }(),
		"put":         svc.Put(ctx, s),
		"delete":      svc.Delete(ctx, "x"),
		"list":        func() error { _, err := svc.List(ctx); return err }(),
		"replace all": svc.ReplaceAll(ctx, []domain.Snippet{s}),
	}
	for op, err := range checks {
		if !domain.IsKind(err, domain.KindStorage) {
			t.Fatalf("%s: expected StorageError, got %v", op, err)
		}
		if !errors.Is(err, boom) {
			t.Fatalf("%s: cause lost: %v", op, err)
		}
	}

	svc = NewService(failingRepo{err: repository.ErrNotFound})
	if _, err := svc.Get(ctx, "x"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestService_NoAliasing(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewSnippetRepository())
	s := domain.Snippet{Name: "a", Tags: []string{"x"}}
	if err := svc.Put(ctx, s); err != nil {
		t.Fatalf("put: %v", err)
	}
	s.Tags[0] = "changed"
	got, _ := svc.Get(ctx, "a")
	if got.Tags[0] != "x" {
		t.Fatalf("caller mutation leaked into the store")
	}
	all, _ := svc.List(ctx)
	all[0].Tags[0] = "changed"
	got, _ = svc.Get(ctx, "a")
	if got.Tags[0] != "x" {
		t.Fatalf("list result aliases the store")
	}
}

func TestService_ExportImport(t *testing.T) {
	ctx := context.Background()
	src := NewService(memory.NewSnippetRepository(memory.WithItems(
		domain.Snippet{Name: "b", Content: "<b>&</b>", Language: domain.FileTypeHTML},
		domain.Snippet{Name: "a", Content: "1", Description: "first"},
	)))
	var buf bytes.Buffer
	n, err := src.Export(ctx, &buf, true)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 exported, got %d", n)
	}
	if !strings.Contains(buf.String(), "<b>&</b>") {
		t.Fatalf("html should not be escaped: %s", buf.String())
	}

	dst := NewService(memory.NewSnippetRepository(memory.WithItems(domain.Snippet{Name: "old"})))
	n, err = dst.Import(ctx, &buf)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 imported, got %d", n)
	}
	all, _ := dst.List(ctx)
	if names(all) != "a,b" {
		t.Fatalf("unexpected contents after import: %s", names(all))
	}
}

func TestService_ImportRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewSnippetRepository(memory.WithItems(domain.Snippet{Name: "keep"})))
	cases := map[string]domain.ErrorKind{
		"not json":                                 domain.KindDecodeError,
		"null":                                     domain.KindDecodeError,
		`[{"name":"a"},{"name":"a"}]`:              domain.KindValidation,
		"[{\"name\":\"\xff\"}]":                    domain.KindInvalidEncoding,
		`{"name":"single object is not an array"}`: domain.KindDecodeError,
	}
	for in, kind := range cases {
		if _, err := svc.Import(ctx, strings.NewReader(in)); !domain.IsKind(err, kind) {
			t.Fatalf("%q: expected %s, got %v", in, kind, err)
		}
	}
	all, _ := svc.List(ctx)
	if names(all) != "keep" {
		t.Fatalf("failed imports changed the store: %s", names(all))
	}
}

func TestService_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewSnippetRepository())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := string(rune('a' + i))
			for j := 0; j < 50; j++ {
				_ = svc.Put(ctx, domain.Snippet{Name: name, Content: "x"})
				_, _ = svc.Get(ctx, name)
				_, _ = svc.List(ctx)
				if j%10 == 0 {
					_ = svc.ReplaceAll(ctx, []domain.Snippet{{Name: name}})
				}
			}
		}(i)
	}
	wg.Wait()
	if _, err := svc.List(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
}

// stuckDeleteRepo refuses to delete one name.
type stuckDeleteRepo struct {
	*memory.SnippetRepository
	stuck string
}

func (r stuckDeleteRepo) Delete(ctx context.Context, name string) error {
	if name == r.stuck {
		return errors.New("device busy")
	}
	return r.SnippetRepository.Delete(ctx, name)
}

func TestService_Rename(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewSnippetRepository(memory.WithItems(
		domain.Snippet{Name: "old", Content: "body", Tags: []string{"t"}},
		domain.Snippet{Name: "taken", Content: "other"},
	)))

	if err := svc.Rename(ctx, "old", "new"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := svc.Get(ctx, "old"); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("old name should be gone, got %v", err)
	}
	got, err := svc.Get(ctx, "new")
	if err != nil {
		t.Fatalf("get new: %v", err)
	}
	want := domain.Snippet{Name: "new", Content: "body", Tags: []string{"t"}}
	if !want.Equal(got) {
		t.Fatalf("want %+v, got %+v", want, got)
	}
	if err := svc.Rename(ctx, "new", "new"); err != nil {
		t.Fatalf("rename onto itself: %v", err)
	}

	tests := []struct {
		name     string
		from, to string
		kind     domain.ErrorKind
	}{
		{"missing source", "nope", "x", domain.KindNotFound},
		{"empty source", "", "x", domain.KindNotFound},
		{"empty target", "new", "", domain.KindValidation},
		{"target taken", "new", "taken", domain.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Rename(ctx, tt.from, tt.to); !domain.IsKind(err, tt.kind) {
				t.Fatalf("want %s, got %v", tt.kind, err)
			}
		})
	}
	all, _ := svc.List(ctx)
	if names(all) != "new,taken" {
		t.Fatalf("failed renames changed the store: %s", names(all))
	}
	taken, _ := svc.Get(ctx, "taken")
	if taken.Content != "other" {
		t.Fatalf("existing target was overwritten: %+v", taken)
	}
}

func TestService_RenameUndoesWhenOldEntryStays(t *testing.T) {
	ctx := context.Background()
	repo := stuckDeleteRepo{
		SnippetRepository: memory.NewSnippetRepository(memory.WithItems(domain.Snippet{Name: "stuck", Content: "x"})),
		stuck:             "stuck",
	}
	svc := NewService(repo)
	if err := svc.Rename(ctx, "stuck", "free"); !domain.IsKind(err, domain.KindStorage) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	all, _ := svc.List(ctx)
	if names(all) != "stuck" {
		t.Fatalf("want only the original entry, got %s", names(all))
	}
}

func TestService_Tag(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewSnippetRepository(memory.WithItems(
		domain.Snippet{Name: "a", Tags: []string{"go", "cli"}},
	)))

	got, err := svc.Tag(ctx, "a", []string{"web", "go"}, []string{"cli", "absent"})
	if err != nil {
		t.Fatalf("tag: %v", err)
	}
	if strings.Join(got.Tags, ",") != "go,web" {
		t.Fatalf("unexpected tags %v", got.Tags)
	}
	stored, _ := svc.Get(ctx, "a")
	if !stored.Equal(got) {
		t.Fatalf("returned %+v, stored %+v", got, stored)
	}

	got, err = svc.Tag(ctx, "a", nil, []string{"go", "web"})
	if err != nil {
		t.Fatalf("untag: %v", err)
	}
	if got.Tags != nil {
		t.Fatalf("want no tags, got %v", got.Tags)
	}
	if _, err := svc.Tag(ctx, "a", []string{""}, nil); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("empty tag: %v", err)
	}
	if _, err := svc.Tag(ctx, "missing", []string{"x"}, nil); !domain.IsKind(err, domain.KindNotFound) {
		t.Fatalf("missing snippet: %v", err)
	}
}

func TestService_Search(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.NewSnippetRepository(memory.WithItems(
		domain.Snippet{Name: "http-server", Description: "tiny server", Content: "http.ListenAndServe"},
		domain.Snippet{Name: "hello", Content: "fmt.Println"},
		domain.Snippet{Name: "retry", Tags: []string{"http"}, Content: "for i := 0; i < 3; i++ {}"},
	)))

	got, err := svc.Search(ctx, "HTTP")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 matches, got %s", names(got))
	}
	for _, s := range got {
		if s.Name == "hello" {
			t.Fatalf("hello should not match: %s", names(got))
		}
	}

	got, _ = svc.Search(ctx, "no such thing anywhere")
	if len(got) != 0 {
		t.Fatalf("want no matches, got %s", names(got))
	}
	got, _ = svc.Search(ctx, "")
	if names(got) != "hello,http-server,retry" {
		t.Fatalf("empty query should list everything, got %s", names(got))
	}
}
