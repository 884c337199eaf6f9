package l2frames

import (
	"bufio"
	"fmt"
	"os"

	"github.com/banshee-data/rangeseg/internal/security"
)

// PointASC is a cartesian point with optional extra columns for export
// (X, Y, Z, Intensity, ...extra).
type PointASC struct {
	X, Y, Z   float64
	Intensity int
	Extra     []interface{}
}

// ExportPointsToASC writes points to a CloudCompare-compatible .asc file named
// name inside dir and returns the path written. Only the last component of
// name is used; the final path must stay within dir. extraHeader describes
// any Extra columns (e.g. " ClusterID").
func ExportPointsToASC(points []PointASC, dir, name, extraHeader string) (string, error) {
	if len(points) == 0 {
		return "", fmt.Errorf("no points to export")
	}
	path, err := security.ResolveExportPath(dir, name)
	if err != nil {
		opsf("export: rejected %q under %q: %v", name, dir, err)
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "# Exported points\n")
	fmt.Fprintf(w, "# Format: X Y Z Intensity%s\n", extraHeader)
	for _, p := range points {
		fmt.Fprintf(w, "%.6f %.6f %.6f %d", p.X, p.Y, p.Z, p.Intensity)
		for _, col := range p.Extra {
			switch v := col.(type) {
			case int:
				fmt.Fprintf(w, " %d", v)
			case float64:
				fmt.Fprintf(w, " %.6f", v)
			case string:
				fmt.Fprintf(w, " %s", v)
			default:
				fmt.Fprintf(w, " %v", v)
			}
		}
		fmt.Fprintln(w)
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	diagf("export: wrote %d points to %s", len(points), path)
	return path, nil
}
