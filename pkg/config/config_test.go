package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "vireo.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadConfig(t *testing.T) {
	dir := writeConfig(t, `
[input]
image = "build/app.vim"
lib-index = "lib/core.idx"

[output]
image = "build/app.opt.vim"

[optimizer]
closure-calls = true
global-inline = true
verbose = true
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Input.Image != "build/app.vim" {
		t.Errorf("input image = %q, want build/app.vim", cfg.Input.Image)
	}
	if cfg.Input.LibIndex != "lib/core.idx" {
		t.Errorf("lib index = %q, want lib/core.idx", cfg.Input.LibIndex)
	}
	if cfg.Output.Image != "build/app.opt.vim" {
		t.Errorf("output image = %q, want build/app.opt.vim", cfg.Output.Image)
	}
	if !cfg.Optimizer.ClosureCalls || !cfg.Optimizer.GlobalInline || !cfg.Optimizer.Verbose {
		t.Errorf("optimizer settings = %+v, want all enabled", cfg.Optimizer)
	}

	// Relative paths resolve against the config directory.
	if !filepath.IsAbs(cfg.InputImagePath()) {
		t.Errorf("input path %q not absolute", cfg.InputImagePath())
	}
	if !strings.HasPrefix(cfg.LibIndexPath(), cfg.Dir) {
		t.Errorf("lib index path %q not under %q", cfg.LibIndexPath(), cfg.Dir)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := writeConfig(t, `
[input]
image = "a.vim"

[output]
image = "b.vim"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Optimizer.ClosureCalls {
		t.Error("closure-calls should default to enabled")
	}
	if cfg.Optimizer.GlobalInline {
		t.Error("global-inline should default to disabled")
	}
	if cfg.LibIndexPath() != "" {
		t.Errorf("lib index path = %q, want empty", cfg.LibIndexPath())
	}
}

func TestLoadConfigMissingOutput(t *testing.T) {
	dir := writeConfig(t, `
[input]
image = "a.vim"
`)
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "output.image") {
		t.Errorf("Load() error = %v, want missing output.image", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load() of empty directory should fail")
	}
}
