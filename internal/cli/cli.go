// Package cli provides the nibb operator commands.
//
// It uses urfave/cli/v2; every command runs against the same store the C
// library opens, selected by the NIBB_* environment.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/roguepikachu/nibb/internal/app"
	"github.com/roguepikachu/nibb/internal/config"
	"github.com/roguepikachu/nibb/internal/domain"
	"github.com/roguepikachu/nibb/internal/service"
	"github.com/roguepikachu/nibb/pkg"
	"github.com/roguepikachu/nibb/pkg/logger"
	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

const envKey = "env"

// Env is what commands need from the outside world.
type Env struct {
	Store      *service.Service
	BackupsDir string
	Close      func() error
}

// Opener prepares the Env before a command runs.
type Opener func(ctx context.Context) (*Env, error)

// OpenFromConfig loads configuration from the environment and opens the configured store.
func OpenFromConfig(ctx context.Context) (*Env, error) {
	conf, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.InitLogging(conf.LogLevel, conf.LogFormat)
	svc, closeFn, err := app.Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Env{Store: svc, BackupsDir: conf.BackupsDir(), Close: closeFn}, nil
}

// App creates the CLI application.
func App(open Opener) *cli.App {
	return &cli.App{
		Name:     "nibb",
		Usage:    "manage the snippet store shared with libnibb",
		Version:  fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Metadata: map[string]any{},
		Commands: []*cli.Command{
			listCommand(),
			getCommand(),
			saveCommand(),
			removeCommand(),
			moveCommand(),
			tagCommand(),
			searchCommand(),
			exportCommand(),
			importCommand(),
		},
		Before: func(c *cli.Context) error {
			env, err := open(c.Context)
			if err != nil {
				return cli.Exit(fmt.Sprintf("open store: %v", err), 1)
			}
			c.App.Metadata[envKey] = env
			return nil
		},
		After: func(c *cli.Context) error {
			if env, ok := c.App.Metadata[envKey].(*Env); ok && env.Close != nil {
				return env.Close()
			}
			return nil
		},
	}
}

func envOf(c *cli.Context) *Env {
	return c.App.Metadata[envKey].(*Env)
}

// exit maps a typed error onto a message and exit code: 2 for NotFound, 1 otherwise.
func exit(err error) error {
	if err == nil {
		return nil
	}
	code := 1
	if domain.IsKind(err, domain.KindNotFound) {
		code = 2
	}
	return cli.Exit(fmt.Sprintf("%s: %s", domain.KindOf(err), domain.Message(err)), code)
}

func nameArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit(fmt.Sprintf("usage: nibb %s NAME", c.Command.Name), 1)
	}
	return c.Args().First(), nil
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:    "ls",
		Aliases: []string{"list"},
		Usage:   "List snippets",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the full collection as JSON"},
			&cli.StringFlag{Name: "tag", Aliases: []string{"t"}, Usage: "only snippets carrying this tag"},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "only snippets whose name or description contains `TEXT` (case-insensitive)"},
		},
		Action: func(c *cli.Context) error {
			items, err := envOf(c).Store.List(c.Context)
			if err != nil {
				return exit(err)
			}
			if tag := c.String("tag"); tag != "" {
				kept := items[:0]
				for _, s := range items {
					if hasTag(s, tag) {
						kept = append(kept, s)
					}
				}
				items = kept
			}
			if q := strings.ToLower(c.String("query")); q != "" {
				kept := items[:0]
				for _, s := range items {
					if strings.Contains(strings.ToLower(s.Name), q) || strings.Contains(strings.ToLower(s.Description), q) {
						kept = append(kept, s)
					}
				}
				items = kept
			}
			return printSnippets(c, items)
		},
	}
}

func printSnippets(c *cli.Context, items []domain.Snippet) error {
	if c.Bool("json") {
		data, err := domain.EncodeSnippets(items, true)
		if err != nil {
			return exit(err)
		}
		_, err = fmt.Fprintln(c.App.Writer, string(data))
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tLANGUAGE\tTAGS\tDESCRIPTION")
	for _, s := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, s.Language, strings.Join(s.Tags, ","), s.Description)
	}
	return w.Flush()
}

func hasTag(s domain.Snippet, tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print a snippet's content",
		ArgsUsage: "NAME",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the snippet as JSON"},
		},
		Action: func(c *cli.Context) error {
			name, err := nameArg(c)
			if err != nil {
				return err
			}
			s, err := envOf(c).Store.Get(c.Context, name)
			if err != nil {
				return exit(err)
			}
			if c.Bool("json") {
				data, err := domain.EncodeSnippet(s)
				if err != nil {
					return exit(err)
				}
				_, err = fmt.Fprintln(c.App.Writer, string(data))
				return err
			}
			_, err = io.WriteString(c.App.Writer, s.Content)
			return err
		},
	}
}

func saveCommand() *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "Create or replace a snippet; content comes from --file or stdin",
		ArgsUsage: "NAME",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "read content from `PATH`"},
			&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Usage: "language; guessed from --file when empty"},
			&cli.StringFlag{Name: "description", Aliases: []string{"d"}},
			&cli.StringSliceFlag{Name: "tag", Aliases: []string{"t"}, Usage: "tag, repeatable"},
			&cli.StringFlag{Name: "visibility", Value: domain.VisibilityPrivate, Usage: "public or private"},
		},
		Action: func(c *cli.Context) error {
			name, err := nameArg(c)
			if err != nil {
				return err
			}
			var content []byte
			path := c.String("file")
			if path != "" {
				content, err = os.ReadFile(path)
			} else {
				content, err = io.ReadAll(c.App.Reader)
			}
			if err != nil {
				return cli.Exit(fmt.Sprintf("read content: %v", err), 1)
			}
			lang := domain.FileType(strings.ToLower(c.String("lang")))
			if lang == "" && path != "" {
				lang = domain.FileTypeFromExtension(filepath.Ext(path))
			}
			s := domain.Snippet{
				Name:        name,
				Content:     string(content),
				Description: c.String("description"),
				Tags:        c.StringSlice("tag"),
				Language:    lang,
				Visibility:  c.String("visibility"),
			}
			if err := envOf(c).Store.Put(c.Context, s); err != nil {
				return exit(err)
			}
			_, err = fmt.Fprintf(c.App.Writer, "saved %q\n", name)
			return err
		},
	}
}

func removeCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Aliases:   []string{"delete"},
		Usage:     "Delete a snippet",
		ArgsUsage: "NAME",
		Action: func(c *cli.Context) error {
			name, err := nameArg(c)
			if err != nil {
				return err
			}
			if err := envOf(c).Store.Delete(c.Context, name); err != nil {
				return exit(err)
			}
			_, err = fmt.Fprintf(c.App.Writer, "deleted %q\n", name)
			return err
		},
	}
}

func moveCommand() *cli.Command {
	return &cli.Command{
		Name:      "mv",
		Aliases:   []string{"rename"},
		Usage:     "Rename a snippet",
		ArgsUsage: "OLD NEW",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("usage: nibb mv OLD NEW", 1)
			}
			from, to := c.Args().Get(0), c.Args().Get(1)
			if err := envOf(c).Store.Rename(c.Context, from, to); err != nil {
				return exit(err)
			}
			_, err := fmt.Fprintf(c.App.Writer, "renamed %q to %q\n", from, to)
			return err
		},
	}
}

func tagCommand() *cli.Command {
	retag := func(add bool) cli.ActionFunc {
		return func(c *cli.Context) error {
			if c.NArg() < 2 {
				return cli.Exit(fmt.Sprintf("usage: nibb tag %s NAME TAG...", c.Command.Name), 1)
			}
			name, tags := c.Args().First(), c.Args().Tail()
			var err error
			var s domain.Snippet
			if add {
				s, err = envOf(c).Store.Tag(c.Context, name, tags, nil)
			} else {
				s, err = envOf(c).Store.Tag(c.Context, name, nil, tags)
			}
			if err != nil {
				return exit(err)
			}
			_, err = fmt.Fprintf(c.App.Writer, "%s: %s\n", s.Name, strings.Join(s.Tags, ","))
			return err
		}
	}
	return &cli.Command{
		Name:  "tag",
		Usage: "Add or remove tags",
		Subcommands: []*cli.Command{
			{Name: "add", Usage: "Add tags to a snippet", ArgsUsage: "NAME TAG...", Action: retag(true)},
			{Name: "rm", Usage: "Remove tags from a snippet", ArgsUsage: "NAME TAG...", Action: retag(false)},
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Aliases:   []string{"find"},
		Usage:     "Fuzzy search names, descriptions, tags and content; best match first",
		ArgsUsage: "QUERY",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the matches as JSON"},
		},
		Action: func(c *cli.Context) error {
			query := strings.Join(c.Args().Slice(), " ")
			if query == "" {
				return cli.Exit("usage: nibb search QUERY", 1)
			}
			items, err := envOf(c).Store.Search(c.Context, query)
			if err != nil {
				return exit(err)
			}
			return printSnippets(c, items)
		},
	}
}

func backupPath(c *cli.Context, flag string) string {
	if p := c.String(flag); p != "" {
		return p
	}
	return filepath.Join(envOf(c).BackupsDir, pkg.DefaultBackupName)
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write every snippet to a JSON backup",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "backup `PATH`, - for stdout (default: <dir>/backups/snippets.json)"},
			&cli.BoolFlag{Name: "pretty", Usage: "indent the JSON"},
		},
		Action: func(c *cli.Context) error {
			env := envOf(c)
			path := backupPath(c, "out")
			if path == "-" {
				_, err := env.Store.Export(c.Context, c.App.Writer, c.Bool("pretty"))
				return exit(err)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return cli.Exit(fmt.Sprintf("create backup dir: %v", err), 1)
			}
			n, err := writeBackup(c.Context, env.Store, path, c.Bool("pretty"))
			if err != nil {
				return exit(err)
			}
			_, err = fmt.Fprintf(c.App.Writer, "exported %d snippets to %s\n", n, path)
			return err
		},
	}
}

// writeBackup exports into a temp file next to path and renames it over path,
// so a failed export leaves the previous backup untouched.
func writeBackup(ctx context.Context, store *service.Service, path string, pretty bool) (int, error) {
	const op = "export"
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return 0, domain.Wrap(domain.KindStorage, op, "", err)
	}
	defer os.Remove(tmp.Name())

	n, err := store.Export(ctx, tmp, pretty)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = domain.Wrap(domain.KindStorage, op, "", cerr)
	}
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, domain.Wrap(domain.KindStorage, op, "", err)
	}
	return n, nil
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Replace the whole collection with a JSON backup",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "in", Aliases: []string{"i"}, Usage: "backup `PATH`, - for stdin (default: <dir>/backups/snippets.json)"},
		},
		Action: func(c *cli.Context) error {
			env := envOf(c)
			path := backupPath(c, "in")
			var r io.Reader = c.App.Reader
			if path != "-" {
				f, err := os.Open(path)
				if err != nil {
					if errors.Is(err, os.ErrNotExist) {
						return cli.Exit(fmt.Sprintf("no backup at %s", path), 1)
					}
					return cli.Exit(fmt.Sprintf("open backup: %v", err), 1)
				}
				defer f.Close()
				r = f
			}
			n, err := env.Store.Import(c.Context, r)
			if err != nil {
				return exit(err)
			}
			_, err = fmt.Fprintf(c.App.Writer, "imported %d snippets\n", n)
			return err
		},
	}
}
