package version

import (
	"strings"
	"testing"
)

func TestResolveDefaultsVersion(t *testing.T) {
	info := Resolve()
	if info.Version == "" {
		t.Fatal("Resolve must always produce a non-empty version")
	}
}

func TestStringShortensCommit(t *testing.T) {
	origVersion, origCommit := Version, Commit
	defer func() { Version, Commit = origVersion, origCommit }()

	Version = "1.2.3"
	Commit = "0123456789abcdef0123456789abcdef"

	got := String()
	if !strings.HasPrefix(got, "1.2.3 (") {
		t.Fatalf("unexpected version string: %q", got)
	}
	if strings.Contains(got, Commit) {
		t.Fatalf("commit should be shortened: %q", got)
	}
	if !strings.Contains(got, Commit[:12]) {
		t.Fatalf("short commit missing: %q", got)
	}
}
