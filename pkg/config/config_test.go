package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"."}, cfg.Paths)
	assert.Equal(t, 5, cfg.Limits.MaxLoopPasses)
	assert.Equal(t, 5, cfg.Limits.MaxCyclePasses)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce.Duration)
	assert.Equal(t, dir, cfg.Dir)
	assert.Equal(t, filepath.Join(dir, ".pyrite", "cache.db"), cfg.CachePath())
}

func TestLoadFull(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
paths = ["src", "lib"]

[exclude]
files = ["**/generated/*.py", "vendor/**"]

[strict]
missing_imports_are_any = true

[limits]
max_loop_passes = 8
max_cycle_passes = 3
parallelism = 4

[cache]
dir = "build/cache"

[watch]
debounce = "250ms"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"src", "lib"}, cfg.Paths)
	assert.True(t, cfg.Strict.MissingImportsAreAny)
	assert.Equal(t, 8, cfg.Limits.MaxLoopPasses)
	assert.Equal(t, 3, cfg.Limits.MaxCyclePasses)
	assert.Equal(t, 4, cfg.Limits.Parallelism)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce.Duration)

	assert.True(t, cfg.Excluded("pkg/generated/models.py"))
	assert.True(t, cfg.Excluded("vendor/lib/thing.py"))
	assert.False(t, cfg.Excluded("src/app.py"))
}

func TestLoadBadPattern(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[exclude]
files = ["["]
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, `paths = ["src"]`)
	nested := filepath.Join(root, "src", "app", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, err := Find(nested)
	require.NoError(t, err)
	assert.Equal(t, []string{"src"}, cfg.Paths)
	assert.Equal(t, root, cfg.Dir)
}

func TestFindStopsAtGitBoundary(t *testing.T) {
	// A config above a .git directory belongs to a different project
	// and must not be picked up.
	outer := t.TempDir()
	writeConfig(t, outer, `paths = ["elsewhere"]`)

	repo := filepath.Join(outer, "repo")
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git"), 0o755))

	cfg, err := Find(repo)
	require.NoError(t, err)
	assert.Equal(t, []string{"."}, cfg.Paths, "should fall back to defaults")
	assert.Equal(t, repo, cfg.Dir)
}

func TestFindNoConfigReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Find(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"."}, cfg.Paths)
}

func TestCachePathDisabled(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[cache]
disabled = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.CachePath())
}
