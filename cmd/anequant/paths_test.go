package main

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocateModelFirstCandidateWins(t *testing.T) {
	dir := t.TempDir()
	compiled := filepath.Join(dir, "all-MiniLM-L6-v2.mbc")
	if err := os.MkdirAll(compiled, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	raw := filepath.Join(dir, "all-MiniLM-L6-v2")
	if err := os.MkdirAll(raw, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	var probed []string
	orig := osStat
	osStat = func(path string) (fs.FileInfo, error) {
		probed = append(probed, path)
		return os.Stat(path)
	}
	defer func() { osStat = orig }()

	got, err := locateModel(dir, "all-MiniLM-L6-v2")
	if err != nil {
		t.Fatalf("locateModel: %v", err)
	}
	if got != compiled {
		t.Fatalf("expected compiled bundle to win: got %q want %q", got, compiled)
	}
	if len(probed) != 1 {
		t.Fatalf("later candidates must not be probed, stats: %v", probed)
	}
}

func TestLocateModelFallsThroughCandidates(t *testing.T) {
	t.Run("raw model directory", func(t *testing.T) {
		dir := t.TempDir()
		raw := filepath.Join(dir, "all-MiniLM-L6-v2")
		if err := os.MkdirAll(raw, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}

		got, err := locateModel(dir, "all-MiniLM-L6-v2")
		if err != nil {
			t.Fatalf("locateModel: %v", err)
		}
		if got != raw {
			t.Fatalf("unexpected path: got %q want %q", got, raw)
		}
	})

	t.Run("bare safetensors file", func(t *testing.T) {
		dir := t.TempDir()
		st := filepath.Join(dir, "model.safetensors")
		if err := os.WriteFile(st, []byte{0}, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}

		got, err := locateModel(dir, "all-MiniLM-L6-v2")
		if err != nil {
			t.Fatalf("locateModel: %v", err)
		}
		if got != st {
			t.Fatalf("unexpected path: got %q want %q", got, st)
		}
	})
}

func TestLocateModelNotFoundListsDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "other-model.mbc"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := locateModel(dir, "all-MiniLM-L6-v2")
	if err == nil {
		t.Fatalf("expected not-found error")
	}
	msg := err.Error()
	if !strings.Contains(msg, filepath.Join(dir, "all-MiniLM-L6-v2.mbc")) {
		t.Fatalf("error should name the primary candidate: %s", msg)
	}
	if !strings.Contains(msg, "other-model.mbc") || !strings.Contains(msg, "notes.txt") {
		t.Fatalf("error should list the directory contents: %s", msg)
	}
}

func TestLocateModelEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := locateModel(dir, "missing")
	if err == nil {
		t.Fatalf("expected not-found error")
	}
	if !strings.Contains(err.Error(), "is empty") {
		t.Fatalf("error should say the directory is empty: %s", err)
	}
}

func TestLocateModelRejectsEmptyName(t *testing.T) {
	if _, err := locateModel(t.TempDir(), "  "); err == nil {
		t.Fatalf("expected error for empty model name")
	}
}

func TestResolveModelsDir(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(envModelsDir, "/env/models")
		got := resolveModelsDir("/flag/models", Config{ModelsDir: "/cfg/models"}, true)
		if got != filepath.Clean("/flag/models") {
			t.Fatalf("unexpected dir: %q", got)
		}
	})

	t.Run("config beats env", func(t *testing.T) {
		t.Setenv(envModelsDir, "/env/models")
		got := resolveModelsDir("", Config{ModelsDir: "/cfg/models"}, false)
		if got != filepath.Clean("/cfg/models") {
			t.Fatalf("unexpected dir: %q", got)
		}
	})

	t.Run("env beats default", func(t *testing.T) {
		t.Setenv(envModelsDir, "/env/models")
		got := resolveModelsDir("", Config{}, false)
		if got != filepath.Clean("/env/models") {
			t.Fatalf("unexpected dir: %q", got)
		}
	})

	t.Run("default", func(t *testing.T) {
		t.Setenv(envModelsDir, "")
		got := resolveModelsDir("", Config{}, false)
		if got != defaultModelsDir {
			t.Fatalf("unexpected dir: %q", got)
		}
	})
}

func TestResolveOutputPath(t *testing.T) {
	if got := resolveOutputPath("", "/m", "all-MiniLM-L6-v2"); got != filepath.Join("/m", "all-MiniLM-L6-v2-w8a8.mbc") {
		t.Fatalf("unexpected default output: %q", got)
	}
	if got := resolveOutputPath("/tmp/out.mbc", "/m", "x"); got != filepath.Clean("/tmp/out.mbc") {
		t.Fatalf("explicit output should win: %q", got)
	}
}
