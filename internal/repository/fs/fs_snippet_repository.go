// Package fs stores each snippet as a directory holding meta.toml and its content file.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gosimple/slug"
	"github.com/roguepikachu/nibb/internal/domain"
	"github.com/roguepikachu/nibb/internal/repository"
	"github.com/roguepikachu/nibb/pkg"
	"github.com/roguepikachu/nibb/pkg/logger"
)

const (
	metaFile      = "meta.toml"
	contentPrefix = "content."
	dirPerm       = 0o755
	filePerm      = 0o644
)

// rename is swapped out in tests to fail individual moves.
var rename = os.Rename

// SnippetRepository lays snippets out under <dir>/snippets/<slug>/.
// Directories starting with a dot are scratch space and never listed.
type SnippetRepository struct {
	root string
}

// NewSnippetRepository creates <dir>/snippets if needed.
func NewSnippetRepository(dir string) (*SnippetRepository, error) {
	root := filepath.Join(dir, pkg.SnippetsDirName)
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("create snippets dir: %w", err)
	}
	return &SnippetRepository{root: root}, nil
}

// Root returns the directory holding the snippet directories.
func (r *SnippetRepository) Root() string { return r.root }

// dirName maps a snippet name to a readable, collision-free directory name.
func dirName(name string) string {
	sum := sha256.Sum256([]byte(name))
	suffix := hex.EncodeToString(sum[:8])
	s := slug.Make(name)
	if s == "" {
		return "snippet-" + suffix
	}
	if len(s) > 64 {
		s = strings.TrimRight(s[:64], "-")
	}
	return s + "-" + suffix
}

func (r *SnippetRepository) Get(_ context.Context, name string) (domain.Snippet, error) {
	s, err := readSnippet(filepath.Join(r.root, dirName(name)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Snippet{}, repository.ErrNotFound
		}
		return domain.Snippet{}, err
	}
	if s.Name != name {
		return domain.Snippet{}, fmt.Errorf("snippet dir for %q holds %q", name, s.Name)
	}
	return s, nil
}

// Put writes the snippet into a scratch directory and renames it into place.
func (r *SnippetRepository) Put(ctx context.Context, s domain.Snippet) error {
	tmp, err := os.MkdirTemp(r.root, ".put-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := writeSnippet(tmp, s); err != nil {
		return err
	}
	target := filepath.Join(r.root, dirName(s.Name))
	if cur, err := readSnippet(target); err == nil && cur.Name != s.Name {
		return fmt.Errorf("snippet dir %s already holds %q", filepath.Base(target), cur.Name)
	}
	if _, err := os.Stat(target); err == nil {
		trash := tmp + ".old"
		if err := os.Rename(target, trash); err != nil {
			return fmt.Errorf("move old snippet aside: %w", err)
		}
		if err := os.Rename(tmp, target); err != nil {
			if rbErr := os.Rename(trash, target); rbErr != nil {
				logger.Error(ctx, "restore %s after failed put: %v", target, rbErr)
			}
			return fmt.Errorf("install snippet: %w", err)
		}
		return os.RemoveAll(trash)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("install snippet: %w", err)
	}
	return nil
}

func (r *SnippetRepository) Delete(_ context.Context, name string) error {
	target := filepath.Join(r.root, dirName(name))
	if _, err := os.Stat(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return repository.ErrNotFound
		}
		return err
	}
	// rename first so a half-removed directory is never visible
	trash, err := os.MkdirTemp(r.root, ".del-")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	victim := filepath.Join(trash, "snippet")
	if err := os.Rename(target, victim); err != nil {
		_ = os.RemoveAll(trash)
		return fmt.Errorf("remove snippet: %w", err)
	}
	return os.RemoveAll(trash)
}

func (r *SnippetRepository) List(ctx context.Context) ([]domain.Snippet, error) {
	return listDir(ctx, r.root)
}

// ReplaceAll builds the new collection in a sibling staging directory and swaps
// it with the live one. The old directory is restored if the swap fails.
func (r *SnippetRepository) ReplaceAll(ctx context.Context, items []domain.Snippet) error {
	parent := filepath.Dir(r.root)
	staging, err := os.MkdirTemp(parent, "."+pkg.SnippetsDirName+"-staging-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	for _, s := range items {
		dir := filepath.Join(staging, dirName(s.Name))
		if err := os.Mkdir(dir, dirPerm); err != nil {
			return fmt.Errorf("stage %q: %w", s.Name, err)
		}
		if err := writeSnippet(dir, s); err != nil {
			return err
		}
	}

	old := staging + ".old"
	if err := rename(r.root, old); err != nil {
		return fmt.Errorf("move live snippets aside: %w", err)
	}
	if err := rename(staging, r.root); err != nil {
		if rbErr := rename(old, r.root); rbErr != nil {
			logger.Error(ctx, "restore %s after failed swap: %v", r.root, rbErr)
		}
		return fmt.Errorf("install staged snippets: %w", err)
	}
	if err := os.RemoveAll(old); err != nil {
		logger.Warn(ctx, "remove replaced snippets at %s: %v", old, err)
	}
	return nil
}

func listDir(ctx context.Context, root string) ([]domain.Snippet, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read snippets dir: %w", err)
	}
	items := make([]domain.Snippet, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		s, err := readSnippet(filepath.Join(root, e.Name()))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Warn(ctx, "skipping incomplete snippet dir %s", e.Name())
				continue
			}
			return nil, err
		}
		items = append(items, s)
	}
	domain.SortByName(items)
	return items, nil
}

func writeSnippet(dir string, s domain.Snippet) error {
	f, err := os.OpenFile(filepath.Join(dir, metaFile), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePerm)
	if err != nil {
		return fmt.Errorf("create meta: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(s); err != nil {
		f.Close()
		return fmt.Errorf("encode meta for %q: %w", s.Name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close meta: %w", err)
	}
	content := filepath.Join(dir, contentPrefix+s.Language.Extension())
	if err := os.WriteFile(content, []byte(s.Content), filePerm); err != nil {
		return fmt.Errorf("write content for %q: %w", s.Name, err)
	}
	return nil
}

func readSnippet(dir string) (domain.Snippet, error) {
	var s domain.Snippet
	if _, err := toml.DecodeFile(filepath.Join(dir, metaFile), &s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Snippet{}, err
		}
		return domain.Snippet{}, fmt.Errorf("decode %s: %w", filepath.Join(dir, metaFile), err)
	}
	content, err := os.ReadFile(filepath.Join(dir, contentPrefix+s.Language.Extension()))
	if err != nil {
		return domain.Snippet{}, fmt.Errorf("read content for %q: %w", s.Name, err)
	}
	s.Content = string(content)
	return s, nil
}

var _ repository.SnippetRepository = (*SnippetRepository)(nil)
