package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"

	"github.com/pyrite-lang/pyrite/pkg/ast"
	"github.com/pyrite-lang/pyrite/pkg/build"
	"github.com/pyrite-lang/pyrite/pkg/check"
	"github.com/pyrite-lang/pyrite/pkg/config"
)

// moduleSuffix is what the front end emits: one JSON document per
// source module.
const moduleSuffix = ".ast.json"

func runCheck(ctx context.Context, dir string, flags *cliFlags) error {
	shutdown, err := initTracing(ctx, flags.TraceEndpoint)
	if err != nil {
		return err
	}
	defer shutdown()

	cfg, err := config.Find(dir)
	if err != nil {
		return err
	}
	slog.Debug("project root resolved", "dir", cfg.Dir)

	store, err := openStore(cfg, flags)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := runBuild(ctx, cfg, store)
	if err != nil {
		return err
	}
	printDiagnostics(res, cfg)

	if res.HasErrors() {
		return errors.Errorf("%d modules checked, errors found", len(res.Checked))
	}
	slog.Info("check passed", "checked", len(res.Checked), "cached", len(res.Cached))
	return nil
}

func runBuild(ctx context.Context, cfg *config.Config, store build.Store) (*build.Result, error) {
	sources, err := discoverSources(cfg)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, errors.Errorf("no %s files under %s", moduleSuffix, cfg.Dir)
	}

	o := build.NewOrchestrator(store, parseSource, build.Options{
		Check: check.Options{
			MissingImportsAreAny: cfg.Strict.MissingImportsAreAny,
			MaxLoopPasses:        cfg.Limits.MaxLoopPasses,
		},
		MaxCyclePasses: cfg.Limits.MaxCyclePasses,
		Parallelism:    cfg.Limits.Parallelism,
	})
	return o.Run(ctx, sources)
}

func parseSource(_ context.Context, src build.Source) (*ast.Module, error) {
	return ast.DecodeModule(src.Text)
}

// discoverSources walks the configured paths collecting front-end
// module documents, honoring the exclude patterns.
func discoverSources(cfg *config.Config) ([]build.Source, error) {
	var sources []build.Source
	seen := make(map[string]string)

	for _, root := range cfg.Paths {
		if !filepath.IsAbs(root) {
			root = filepath.Join(cfg.Dir, root)
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == ".git" || d.Name() == ".pyrite" {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(d.Name(), moduleSuffix) {
				return nil
			}
			rel, err := filepath.Rel(cfg.Dir, path)
			if err != nil {
				rel = path
			}
			if cfg.Excluded(rel) {
				slog.Debug("excluded by config", "path", rel)
				return nil
			}

			text, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			name, err := moduleName(text)
			if err != nil {
				return errors.Wrapf(err, "reading %s", rel)
			}
			if prev, dup := seen[name]; dup {
				return errors.Errorf("module %q defined by both %s and %s", name, prev, rel)
			}
			seen[name] = rel

			sources = append(sources, build.Source{Module: name, Path: path, Text: text})
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "scanning %s", root)
		}
	}
	return sources, nil
}

// moduleName peeks at a document's header without decoding the body.
func moduleName(text []byte) (string, error) {
	var header struct {
		Module string `json:"module"`
	}
	if err := json.Unmarshal(text, &header); err != nil {
		return "", errors.Wrap(err, "decode module document")
	}
	if header.Module == "" {
		return "", errors.New("module document has no module name")
	}
	return header.Module, nil
}

func openStore(cfg *config.Config, flags *cliFlags) (build.Store, error) {
	path := cfg.CachePath()
	if flags.NoCache || path == "" {
		return build.NewMemoryStore(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create cache directory")
	}
	store, err := build.OpenSQLiteStore(path)
	if err != nil {
		// A corrupt or unreadable cache degrades to a full rebuild.
		slog.Warn("cache unavailable, rebuilding from scratch", "path", path, "error", err)
		return build.NewMemoryStore(), nil
	}
	return store, nil
}

func printDiagnostics(res *build.Result, cfg *config.Config) {
	fancy := isatty.IsTerminal(os.Stderr.Fd())
	sourceCache := make(map[string]string)

	for _, d := range res.Diagnostics() {
		if fancy && d.Severity == check.Error {
			if src, ok := sourceText(sourceCache, cfg.Dir, d.File); ok {
				fmt.Fprintln(os.Stderr, check.Excerpt(d, src))
				continue
			}
		}
		fmt.Fprintln(os.Stderr, d.String())
	}
}

// sourceText loads the original source named by a diagnostic, for
// excerpt rendering. The front end records paths relative to the
// project root.
func sourceText(cache map[string]string, rootDir, file string) (string, bool) {
	if src, ok := cache[file]; ok {
		return src, src != ""
	}
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(rootDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		cache[file] = ""
		return "", false
	}
	cache[file] = string(data)
	return string(data), true
}
