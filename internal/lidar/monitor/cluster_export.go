package monitor

import (
	"fmt"

	"github.com/banshee-data/rangeseg/internal/lidar/l2frames"
	"github.com/banshee-data/rangeseg/internal/lidar/l4perception"
)

// ExportClustersASC writes every clustered point to an .asc file named name
// under dir, tagged with its cluster ID. Returns the path written.
func ExportClustersASC(clusters []l4perception.Cluster, dir, name string) (string, error) {
	n := 0
	for _, c := range clusters {
		n += len(c.Points)
	}
	if n == 0 {
		return "", fmt.Errorf("no clustered points to export")
	}

	points := make([]l2frames.PointASC, 0, n)
	for _, c := range clusters {
		for _, p := range c.Points {
			points = append(points, l2frames.PointASC{
				X:     p.X,
				Y:     p.Y,
				Z:     p.Z,
				Extra: []interface{}{c.ID},
			})
		}
	}
	return l2frames.ExportPointsToASC(points, dir, name, " ClusterID")
}
