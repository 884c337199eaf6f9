// Command segment clusters a single LiDAR scan (.pcd or KITTI .bin) and
// optionally exports, renders and persists the result.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/banshee-data/rangeseg/internal/config"
	"github.com/banshee-data/rangeseg/internal/lidar/debug"
	"github.com/banshee-data/rangeseg/internal/lidar/l2frames"
	"github.com/banshee-data/rangeseg/internal/lidar/l3grid"
	"github.com/banshee-data/rangeseg/internal/lidar/l4perception"
	"github.com/banshee-data/rangeseg/internal/lidar/monitor"
	"github.com/banshee-data/rangeseg/internal/lidar/storage/sqlite"
	"github.com/banshee-data/rangeseg/internal/security"
	"github.com/banshee-data/rangeseg/internal/version"
)

// maxTableRows bounds the per-cluster table printed to stdout.
const maxTableRows = 20

type options struct {
	configPath  string
	preset      string
	input       string
	ascDir      string
	pngPath     string
	htmlPath    string
	metricsPath string
	dbPath      string
	seed        int64
	workers     int
	floor       float64
	ceiling     float64
	verbose     bool
	debugMerges bool
	showVersion bool

	seedSet    bool
	workersSet bool
	bandSet    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("segment", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "Tuning file (.json, .yaml); overrides -preset")
	fs.StringVar(&o.preset, "preset", "kitti", "Sensor preset: kitti, hdl64, vlp16")
	fs.StringVar(&o.input, "in", "", "Input cloud (.pcd or .bin, optionally .gz/.zst/.lz4)")
	fs.StringVar(&o.ascDir, "asc-dir", "", "Directory for a CloudCompare .asc export of clustered points")
	fs.StringVar(&o.pngPath, "png", "", "Write a top-down cluster plot to this PNG")
	fs.StringVar(&o.htmlPath, "html", "", "Write an interactive cluster chart to this HTML file")
	fs.StringVar(&o.metricsPath, "metrics", "", "Write Prometheus textfile metrics to this path")
	fs.StringVar(&o.dbPath, "db", "", "Persist the run to this SQLite database")
	fs.Int64Var(&o.seed, "seed", 0, "Cluster ID permutation seed (0 = time-seeded)")
	fs.IntVar(&o.workers, "workers", 0, "Row segmentation workers (0 = GOMAXPROCS)")
	fs.Float64Var(&o.floor, "floor", -math.MaxFloat64, "Drop points with Z below this height (m)")
	fs.Float64Var(&o.ceiling, "ceiling", math.MaxFloat64, "Drop points with Z above this height (m)")
	fs.BoolVar(&o.verbose, "v", false, "Enable diagnostic and trace logging")
	fs.BoolVar(&o.debugMerges, "debug-merges", false, "Print per-row and merge diagnostics")
	fs.BoolVar(&o.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			o.seedSet = true
		case "workers":
			o.workersSet = true
		case "floor", "ceiling":
			o.bandSet = true
		}
	})
	if !o.showVersion && o.input == "" {
		return nil, errors.New("-in is required")
	}
	return o, nil
}

// resolveParams picks the tuning file if given, else the preset, then
// applies flag overrides.
func resolveParams(o *options) (l4perception.Params, error) {
	var p l4perception.Params
	if o.configPath != "" {
		cfg, err := config.LoadTuningConfig(o.configPath)
		if err != nil {
			return p, err
		}
		p = l4perception.ParamsFromTuning(cfg)
	} else {
		var err error
		if p, err = l4perception.PresetParams(o.preset); err != nil {
			return p, err
		}
	}
	if o.seedSet {
		p.Seed = o.seed
	}
	if o.workersSet {
		p.Workers = o.workers
	}
	return p, p.Validate()
}

func configureLogging(stderr io.Writer, verbose bool) {
	var diag, trace io.Writer
	if verbose {
		diag, trace = stderr, stderr
	}
	l2frames.SetLogWriters(stderr, diag, trace)
	l3grid.SetLogWriters(stderr, diag, trace)
	l4perception.SetLogWriters(stderr, diag, trace)
	if verbose {
		sqlite.SetLogWriter(stderr)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	if o.showVersion {
		fmt.Fprintf(stdout, "segment %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return nil
	}
	configureLogging(stderr, o.verbose)

	params, err := resolveParams(o)
	if err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}

	cloud, err := l2frames.LoadCloud(o.input)
	if err != nil {
		return err
	}

	collector := debug.NewDebugCollector()
	collector.SetEnabled(o.debugMerges)
	segOpts := []l4perception.Option{l4perception.WithDebugCollector(collector)}
	if o.bandSet {
		band, err := l4perception.NewHeightBandFilter(o.floor, o.ceiling)
		if err != nil {
			return err
		}
		segOpts = append(segOpts, l4perception.WithHeightBand(band))
	}
	seg, err := l4perception.NewSegmenter(params, segOpts...)
	if err != nil {
		return err
	}
	res, err := seg.Segment(ctx, cloud)
	if err != nil {
		return fmt.Errorf("segmentation failed: %w", err)
	}

	printSummary(stdout, o.input, res)
	if o.debugMerges {
		printScanDebug(stdout, seg.LastScan())
	}

	stem := security.SanitizeFilename(cloudStem(o.input))
	if o.ascDir != "" && len(res.Clusters) > 0 {
		path, err := monitor.ExportClustersASC(res.Clusters, o.ascDir, stem+"_clusters.asc")
		if err != nil {
			return fmt.Errorf("asc export: %w", err)
		}
		fmt.Fprintf(stdout, "wrote %s\n", path)
	}
	if o.pngPath != "" && len(res.Clusters) > 0 {
		path, err := resolveOutputPath(o.pngPath)
		if err != nil {
			return fmt.Errorf("png: %w", err)
		}
		if err := monitor.PlotClustersPNG(res.Clusters, path, stem); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", path)
	}
	if o.htmlPath != "" {
		path, err := resolveOutputPath(o.htmlPath)
		if err != nil {
			return fmt.Errorf("html: %w", err)
		}
		if err := writeHTML(path, res.Clusters, stem); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", path)
	}
	if o.metricsPath != "" {
		path, err := resolveOutputPath(o.metricsPath)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		m := monitor.NewSegmentMetrics()
		m.Observe(res)
		if err := m.WriteTextfile(path); err != nil {
			return err
		}
	}
	if o.dbPath != "" {
		path, err := resolveOutputPath(o.dbPath)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		runID, err := persist(path, o.input, params, res)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "stored run %s\n", runID)
	}
	return nil
}

func cloudStem(path string) string {
	base := filepath.Base(path)
	for {
		ext := filepath.Ext(base)
		if ext == "" {
			return base
		}
		base = strings.TrimSuffix(base, ext)
	}
}

// resolveOutputPath confines path to its own directory, so a final component
// that is a symlink to somewhere else is rejected.
func resolveOutputPath(path string) (string, error) {
	return security.ResolveExportPath(filepath.Dir(path), path)
}

func writeHTML(path string, clusters []l4perception.Cluster, title string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := monitor.RenderClustersHTML(f, clusters, title); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func persist(dbPath, source string, params l4perception.Params, res *l4perception.Result) (string, error) {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return "", err
	}
	defer db.Close()

	run, clusters, err := sqlite.RunFromResult(source, params, res)
	if err != nil {
		return "", err
	}
	if err := sqlite.NewSegmentationStore(db.DB).InsertRun(run, clusters); err != nil {
		return "", fmt.Errorf("store run: %w", err)
	}
	return run.RunID, nil
}

func printSummary(w io.Writer, source string, res *l4perception.Result) {
	st := res.Stats
	if st.HeightBand.Processed > 0 {
		fmt.Fprintf(w, "height band: %d of %d kept (%d below floor, %d above ceiling)\n",
			st.HeightBand.Kept, st.HeightBand.Processed, st.HeightBand.BelowFloor, st.HeightBand.AboveCeiling)
	}
	fmt.Fprintf(w, "%s: %d points in, %d kept, %d dropped\n",
		source, st.Projection.Input, st.Projection.Kept, st.Projection.Dropped())
	fmt.Fprintf(w, "runs=%d merges: wrap=%d occlusion=%d cross-row=%d guarded=%d\n",
		st.Runs, st.WrapMerges, st.OcclusionMerges, st.CrossRowMerges, st.GuardedMerges)
	fmt.Fprintf(w, "clusters: %d found, %d emitted in %v\n", st.Clusters, st.Emitted, st.Total())

	if len(res.Clusters) == 0 {
		return
	}
	summaries := l4perception.SummariseAll(res.Clusters)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "id\tpoints\tcx\tcy\tcz\tdx\tdy\tdz\t")
	for i, s := range summaries {
		if i == maxTableRows {
			fmt.Fprintf(tw, "...\t%d more\t\t\t\t\t\t\t\n", len(summaries)-maxTableRows)
			break
		}
		dx, dy, dz := s.Extent()
		fmt.Fprintf(tw, "%d\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			s.ID, s.Points, s.CentroidX, s.CentroidY, s.CentroidZ, dx, dy, dz)
	}
	tw.Flush()
}

func printScanDebug(w io.Writer, scan *debug.ScanDebug) {
	if scan == nil {
		return
	}
	for _, r := range scan.Rows {
		if r.Runs == 0 {
			continue
		}
		fmt.Fprintf(w, "row %3d: %5d points %4d runs\n", r.Row, r.ValidPoints, r.Runs)
	}
	for _, kind := range []debug.MergeKind{debug.MergeWrap, debug.MergeOcclusion, debug.MergeCrossRow} {
		fmt.Fprintf(w, "%s merges: %d\n", kind, scan.CountMerges(kind))
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "segment: %v\n", err)
		os.Exit(1)
	}
}
