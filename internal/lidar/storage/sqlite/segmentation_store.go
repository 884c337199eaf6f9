package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/rangeseg/internal/lidar/l4perception"
	"github.com/banshee-data/rangeseg/internal/timeutil"
)

// ErrRunNotFound is returned when a run ID has no stored record.
var ErrRunNotFound = errors.New("segmentation run not found")

// SegmentationRun is one persisted invocation of the segmenter.
type SegmentationRun struct {
	RunID      string          `json:"run_id"`
	Source     string          `json:"source"` // input file or other provenance
	CreatedAt  int64           `json:"created_at"`
	ParamsJSON json.RawMessage `json:"params_json,omitempty"`

	InputPoints     int `json:"input_points"`
	KeptPoints      int `json:"kept_points"`
	DroppedPoints   int `json:"dropped_points"`
	Runs            int `json:"runs"`
	WrapMerges      int `json:"wrap_merges"`
	OcclusionMerges int `json:"occlusion_merges"`
	CrossRowMerges  int `json:"cross_row_merges"`
	GuardedMerges   int `json:"guarded_merges"`
	ClustersFound   int `json:"clusters_found"`
	ClustersEmitted int `json:"clusters_emitted"`

	Duration time.Duration `json:"duration_ns"`
}

// ClusterRecord is the stored summary of one emitted cluster.
type ClusterRecord struct {
	RunID      string  `json:"run_id"`
	ClusterID  int     `json:"cluster_id"`
	PointCount int     `json:"point_count"`
	CentroidX  float64 `json:"centroid_x"`
	CentroidY  float64 `json:"centroid_y"`
	CentroidZ  float64 `json:"centroid_z"`
	MinX       float64 `json:"min_x"`
	MinY       float64 `json:"min_y"`
	MinZ       float64 `json:"min_z"`
	MaxX       float64 `json:"max_x"`
	MaxY       float64 `json:"max_y"`
	MaxZ       float64 `json:"max_z"`
	HeightP95  float64 `json:"height_p95"`
	ZStdDev    float64 `json:"z_stddev"`
}

// RunFromResult builds the records for a finished segmentation. The run ID is
// left empty for InsertRun to fill in.
func RunFromResult(source string, params l4perception.Params, res *l4perception.Result) (*SegmentationRun, []ClusterRecord, error) {
	if res == nil {
		return nil, nil, errors.New("nil segmentation result")
	}
	paramsJSON, err := json.Marshal(params.Tuning())
	if err != nil {
		return nil, nil, fmt.Errorf("marshal params: %w", err)
	}

	st := res.Stats
	run := &SegmentationRun{
		Source:          source,
		ParamsJSON:      paramsJSON,
		InputPoints:     st.Projection.Input,
		KeptPoints:      st.Projection.Kept,
		DroppedPoints:   st.Projection.Dropped(),
		Runs:            st.Runs,
		WrapMerges:      st.WrapMerges,
		OcclusionMerges: st.OcclusionMerges,
		CrossRowMerges:  st.CrossRowMerges,
		GuardedMerges:   st.GuardedMerges,
		ClustersFound:   st.Clusters,
		ClustersEmitted: st.Emitted,
		Duration:        st.Total(),
	}

	summaries := l4perception.SummariseAll(res.Clusters)
	clusters := make([]ClusterRecord, len(summaries))
	for i, s := range summaries {
		clusters[i] = ClusterRecord{
			ClusterID:  s.ID,
			PointCount: s.Points,
			CentroidX:  s.CentroidX,
			CentroidY:  s.CentroidY,
			CentroidZ:  s.CentroidZ,
			MinX:       s.MinX,
			MinY:       s.MinY,
			MinZ:       s.MinZ,
			MaxX:       s.MaxX,
			MaxY:       s.MaxY,
			MaxZ:       s.MaxZ,
			HeightP95:  s.HeightP95,
			ZStdDev:    s.ZStdDev,
		}
	}
	return run, clusters, nil
}

// SegmentationStore provides persistence for segmentation runs.
type SegmentationStore struct {
	db    *sql.DB
	clock timeutil.Clock
}

// NewSegmentationStore creates a new SegmentationStore.
func NewSegmentationStore(db *sql.DB) *SegmentationStore {
	return &SegmentationStore{db: db, clock: timeutil.RealClock{}}
}

// SetClock replaces the clock used for timestamps and retry backoff.
func (s *SegmentationStore) SetClock(c timeutil.Clock) {
	s.clock = c
}

// InsertRun persists run and its clusters in one transaction. If RunID is
// empty a UUID is generated; the cluster records inherit it.
func (s *SegmentationStore) InsertRun(run *SegmentationRun, clusters []ClusterRecord) error {
	if run == nil {
		return errors.New("nil segmentation run")
	}
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}
	for i := range clusters {
		clusters[i].RunID = run.RunID
	}

	var paramsStr interface{}
	if len(run.ParamsJSON) > 0 {
		paramsStr = string(run.ParamsJSON)
	}

	return retryOnBusy(s.clock, func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.Exec(`
			INSERT INTO segmentation_runs (
				run_id, source, created_at, params_json,
				input_points, kept_points, dropped_points, runs,
				wrap_merges, occlusion_merges, cross_row_merges, guarded_merges,
				clusters_found, clusters_emitted, duration_ns
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, run.Source, run.CreatedAt, paramsStr,
			run.InputPoints, run.KeptPoints, run.DroppedPoints, run.Runs,
			run.WrapMerges, run.OcclusionMerges, run.CrossRowMerges, run.GuardedMerges,
			run.ClustersFound, run.ClustersEmitted, int64(run.Duration),
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.Prepare(`
			INSERT INTO segmentation_clusters (
				run_id, cluster_id, point_count,
				centroid_x, centroid_y, centroid_z,
				min_x, min_y, min_z, max_x, max_y, max_z,
				height_p95, z_stddev
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare cluster insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range clusters {
			if _, err := stmt.Exec(
				c.RunID, c.ClusterID, c.PointCount,
				c.CentroidX, c.CentroidY, c.CentroidZ,
				c.MinX, c.MinY, c.MinZ, c.MaxX, c.MaxY, c.MaxZ,
				c.HeightP95, c.ZStdDev,
			); err != nil {
				return fmt.Errorf("insert cluster %d: %w", c.ClusterID, err)
			}
		}
		return tx.Commit()
	})
}

const runColumns = `run_id, source, created_at, params_json,
	input_points, kept_points, dropped_points, runs,
	wrap_merges, occlusion_merges, cross_row_merges, guarded_merges,
	clusters_found, clusters_emitted, duration_ns`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*SegmentationRun, error) {
	var r SegmentationRun
	var paramsStr sql.NullString
	var durationNs int64
	err := row.Scan(
		&r.RunID, &r.Source, &r.CreatedAt, &paramsStr,
		&r.InputPoints, &r.KeptPoints, &r.DroppedPoints, &r.Runs,
		&r.WrapMerges, &r.OcclusionMerges, &r.CrossRowMerges, &r.GuardedMerges,
		&r.ClustersFound, &r.ClustersEmitted, &durationNs,
	)
	if err != nil {
		return nil, err
	}
	if paramsStr.Valid {
		r.ParamsJSON = json.RawMessage(paramsStr.String)
	}
	r.Duration = time.Duration(durationNs)
	return &r, nil
}

// GetRun returns a single run by ID.
func (s *SegmentationStore) GetRun(runID string) (*SegmentationRun, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM segmentation_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first. A non-positive limit
// returns every run.
func (s *SegmentationStore) ListRuns(limit int) ([]*SegmentationRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM segmentation_runs
		ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*SegmentationRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListClusters returns the clusters of a run ordered by cluster ID.
func (s *SegmentationStore) ListClusters(runID string) ([]ClusterRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, cluster_id, point_count,
		       centroid_x, centroid_y, centroid_z,
		       min_x, min_y, min_z, max_x, max_y, max_z,
		       height_p95, z_stddev
		FROM segmentation_clusters
		WHERE run_id = ?
		ORDER BY cluster_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	defer rows.Close()

	var out []ClusterRecord
	for rows.Next() {
		var c ClusterRecord
		if err := rows.Scan(
			&c.RunID, &c.ClusterID, &c.PointCount,
			&c.CentroidX, &c.CentroidY, &c.CentroidZ,
			&c.MinX, &c.MinY, &c.MinZ, &c.MaxX, &c.MaxY, &c.MaxZ,
			&c.HeightP95, &c.ZStdDev,
		); err != nil {
			return nil, fmt.Errorf("scan cluster: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and, by cascade, its clusters.
func (s *SegmentationStore) DeleteRun(runID string) error {
	return retryOnBusy(s.clock, func() error {
		result, err := s.db.Exec(`DELETE FROM segmentation_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil
	})
}
