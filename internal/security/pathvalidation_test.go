package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	safeDir := filepath.Join(tmpDir, "safe")
	outside := filepath.Join(tmpDir, "outside")
	for _, d := range []string{safeDir, outside} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", d, err)
		}
	}
	link := filepath.Join(safeDir, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name      string
		filePath  string
		wantError bool
	}{
		{"file in root", filepath.Join(safeDir, "clusters.asc"), false},
		{"nested file", filepath.Join(safeDir, "run", "c1.asc"), false},
		{"root itself", safeDir, false},
		{"dot-dot escape", filepath.Join(safeDir, "..", "clusters.asc"), true},
		{"sibling directory", filepath.Join(outside, "clusters.asc"), true},
		{"symlink to outside", filepath.Join(link, "clusters.asc"), true},
		{"symlink nested new dir", filepath.Join(link, "new", "clusters.asc"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.filePath, safeDir)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinDirectory(%q) error = %v, wantError %v", tt.filePath, err, tt.wantError)
			}
		})
	}
}

func TestResolveExportPath(t *testing.T) {
	root := t.TempDir()

	got, err := ResolveExportPath(root, "../../etc/cluster_0001.asc")
	if err != nil {
		t.Fatalf("ResolveExportPath: %v", err)
	}
	if got != filepath.Join(root, "cluster_0001.asc") {
		t.Errorf("got %q, want file directly under root", got)
	}

	for _, name := range []string{"", ".", ".."} {
		if _, err := ResolveExportPath(root, name); err == nil {
			t.Errorf("ResolveExportPath(%q) should fail", name)
		}
	}
	if _, err := ResolveExportPath("", "a.asc"); err == nil {
		t.Error("empty root should fail")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "unknown"},
		{"000123.bin", "000123.bin"},
		{"scan 12/rear", "scan_12_rear"},
		{"..hidden..", "hidden"},
		{"a  &&  b", "a_b"},
		{"___", "unknown"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := SanitizeFilename(strings.Repeat("x", 500))
	if len(long) > 128 {
		t.Errorf("expected length <= 128, got %d", len(long))
	}
}
