package l2frames

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExportPointsToASC(t *testing.T) {
	dir := t.TempDir()
	points := []PointASC{
		{X: 1.0, Y: 2.0, Z: 3.0, Intensity: 100},
		{X: 4.0, Y: 5.0, Z: 6.0, Intensity: 200, Extra: []interface{}{7, 0.5, "car"}},
	}

	path, err := ExportPointsToASC(points, dir, "scan.asc", " ClusterID Score Tag")
	if err != nil {
		t.Fatalf("ExportPointsToASC failed: %v", err)
	}
	if path != filepath.Join(dir, "scan.asc") {
		t.Errorf("unexpected path %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read exported file: %v", err)
	}
	s := string(content)
	for _, want := range []string{
		"# Format: X Y Z Intensity ClusterID Score Tag",
		"1.000000 2.000000 3.000000 100\n",
		"4.000000 5.000000 6.000000 200 7 0.500000 car\n",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("exported file missing %q:\n%s", want, s)
		}
	}
}

func TestExportPointsToASC_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := ExportPointsToASC(nil, dir, "empty.asc", ""); err == nil {
		t.Error("expected error for empty points")
	}
	if _, err := ExportPointsToASC([]PointASC{{}}, dir, "..", ""); err == nil {
		t.Error("expected error for invalid filename")
	}
}

func TestExportPointsToASC_StripsDirectories(t *testing.T) {
	dir := t.TempDir()
	path, err := ExportPointsToASC([]PointASC{{X: 1}}, dir, "../../escape.asc", "")
	if err != nil {
		t.Fatalf("ExportPointsToASC failed: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("expected file inside %s, got %s", dir, path)
	}
}
