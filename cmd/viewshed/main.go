package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/banshee-data/viewshed/internal/config"
	"github.com/banshee-data/viewshed/internal/fsutil"
	"github.com/banshee-data/viewshed/internal/raster"
	"github.com/banshee-data/viewshed/internal/units"
	"github.com/banshee-data/viewshed/internal/version"
	"github.com/banshee-data/viewshed/internal/viewshed"
)

const (
	maxConfigBytes     = 1 << 20
	defaultMaxGridSize = 2 << 30
)

// errUsage marks flag errors that should print usage and exit 2.
var errUsage = errors.New("usage")

type options struct {
	gridPath   string
	configPath string
	outPath    string

	x, y        float64
	height      *float64 // nil keeps observer_height from the tuning config
	heightUnits string

	sectorResolution string // empty keeps the tuning value
	nodataPolicy     string
	workers          int // negative keeps the tuning value

	timeout      time.Duration
	maxGridBytes int64
	logDiag      bool
	logTrace     bool
	showVersion  bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("viewshed", flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	height := fs.Float64("height", 0, "Observer height above terrain (overrides observer_height)")
	fs.StringVar(&opts.gridPath, "grid", "", "ESRI ASCII elevation grid to read")
	fs.StringVar(&opts.configPath, "config", "", "Tuning config JSON (defaults apply when empty)")
	fs.StringVar(&opts.outPath, "out", "", "Write the viewshed as ESRI ASCII to this path")
	fs.Float64Var(&opts.x, "x", 0, "Observer X in grid world coordinates")
	fs.Float64Var(&opts.y, "y", 0, "Observer Y in grid world coordinates")
	fs.StringVar(&opts.heightUnits, "height-units", units.Meters, "Units of -height: "+units.GetValidUnitsString())
	fs.StringVar(&opts.sectorResolution, "sectors", "", "Sector resolution: exact, auto or a sector count (overrides sector_resolution)")
	fs.StringVar(&opts.nodataPolicy, "nodata", "", "No-data policy: transparent or opaque (overrides nodata_policy)")
	fs.IntVar(&opts.workers, "workers", -1, "Worker goroutines; 0 uses GOMAXPROCS (overrides workers)")
	fs.DurationVar(&opts.timeout, "timeout", 0, "Abort the computation after this long (0 disables)")
	fs.Int64Var(&opts.maxGridBytes, "max-grid-bytes", defaultMaxGridSize, "Refuse grid files larger than this")
	fs.BoolVar(&opts.logDiag, "log-diag", false, "Log strategy and timing diagnostics to stderr")
	fs.BoolVar(&opts.logTrace, "log-trace", false, "Log per-partition telemetry to stderr")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	if opts.showVersion {
		return opts, nil
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "height" {
			opts.height = height
		}
	})
	if opts.gridPath == "" {
		return nil, fmt.Errorf("%w: -grid is required", errUsage)
	}
	if !units.IsValid(opts.heightUnits) {
		return nil, fmt.Errorf("%w: invalid -height-units %q (valid: %s)", errUsage, opts.heightUnits, units.GetValidUnitsString())
	}
	return opts, nil
}

// loadTuning reads the tuning document at path through fsys, applying the
// command-line overrides on top of it.
func loadTuning(fsys fsutil.FileSystem, opts *options) (*config.TuningConfig, error) {
	tc := config.EmptyTuningConfig()
	if opts.configPath != "" {
		if ext := filepath.Ext(opts.configPath); ext != ".json" {
			return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
		}
		data, err := readAll(fsys, opts.configPath, maxConfigBytes)
		if err != nil {
			return nil, err
		}
		if tc, err = config.ParseTuningConfig(data); err != nil {
			return nil, fmt.Errorf("%s: %w", opts.configPath, err)
		}
	}

	if opts.height != nil {
		h, err := units.ToMeters(*opts.height, opts.heightUnits)
		if err != nil {
			return nil, err
		}
		tc.ObserverHeight = &h
	}
	if opts.sectorResolution != "" {
		tc.SectorResolution = &opts.sectorResolution
	}
	if opts.nodataPolicy != "" {
		tc.NoDataPolicy = &opts.nodataPolicy
	}
	if opts.workers >= 0 {
		tc.Workers = &opts.workers
	}
	if err := tc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid overrides: %w", err)
	}
	return tc, nil
}

func readAll(fsys fsutil.FileSystem, path string, max int64) ([]byte, error) {
	if err := fsutil.CheckSize(fsys, path, max); err != nil {
		return nil, err
	}
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func readGrid(fsys fsutil.FileSystem, path string, max int64) (*raster.Grid, error) {
	if err := fsutil.CheckSize(fsys, path, max); err != nil {
		return nil, err
	}
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := raster.ReadESRIASCII(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

func writeGrid(fsys fsutil.FileSystem, path string, g *raster.Grid) error {
	w, err := fsutil.CreateAll(fsys, path)
	if err != nil {
		return err
	}
	if err := raster.WriteESRIASCII(w, g, raster.DefaultNoDataValue); err != nil {
		w.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return w.Close()
}

func run(ctx context.Context, opts *options, fsys fsutil.FileSystem, stdout io.Writer) error {
	tc, err := loadTuning(fsys, opts)
	if err != nil {
		return err
	}
	cfg, err := viewshed.ConfigFromTuning(tc)
	if err != nil {
		return err
	}

	g, err := readGrid(fsys, opts.gridPath, opts.maxGridBytes)
	if err != nil {
		return err
	}
	rows, cols := g.Dims()
	if lo, hi, ok := g.ElevationRange(); ok {
		log.Printf("loaded %s: %dx%d cells, elevation [%g, %g]", opts.gridPath, rows, cols, lo, hi)
	} else {
		log.Printf("loaded %s: %dx%d cells, no finite elevations", opts.gridPath, rows, cols)
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	obs := viewshed.NewObserver(opts.x, opts.y, tc.GetObserverHeight())
	res, err := viewshed.Compute(ctx, g, obs, cfg)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		log.Printf("warning: %v", w)
	}

	printSummary(stdout, res, opts.heightUnits)

	if opts.outPath != "" {
		if err := writeGrid(fsys, opts.outPath, res.Grid); err != nil {
			return err
		}
		log.Printf("wrote %s", opts.outPath)
	}
	return nil
}

func printSummary(w io.Writer, res *viewshed.Result, heightUnits string) {
	s := res.Summary()
	fmt.Fprintf(w, "run %s\n", res.RunID)
	fmt.Fprintf(w, "observer (%g, %g) cell (%d, %d) height %.3f %s\n",
		res.Observer.Position.X, res.Observer.Position.Y, res.ObserverRow, res.ObserverCol,
		units.ConvertLength(res.Observer.Height, heightUnits), heightUnits)
	if res.Strategy == viewshed.StrategySweep {
		fmt.Fprintf(w, "strategy %s (%d sectors)\n", res.Strategy, res.Sectors)
	} else {
		fmt.Fprintf(w, "strategy %s\n", res.Strategy)
	}
	fmt.Fprintf(w, "visible %d/%d (%.1f%%)\n", s.Visible, s.Cells, 100*s.VisibleFraction)
	fmt.Fprintf(w, "indeterminate %d\n", s.Indeterminate)
	if s.Visible > 0 {
		fmt.Fprintf(w, "margin min %.3f mean %.3f max %.3f %s\n",
			units.ConvertLength(s.MinMargin, heightUnits),
			units.ConvertLength(s.MeanMargin, heightUnits),
			units.ConvertLength(s.MaxMargin, heightUnits), heightUnits)
	}
	fmt.Fprintf(w, "elapsed %v\n", res.Elapsed.Round(time.Microsecond))
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		log.Fatal(err)
	}
	if opts.showVersion {
		fmt.Println("viewshed", version.String())
		return
	}

	var diag, trace io.Writer
	if opts.logDiag {
		diag = os.Stderr
	}
	if opts.logTrace {
		trace = os.Stderr
	}
	viewshed.SetLogWriters(os.Stderr, diag, trace)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, fsutil.OSFileSystem{}, os.Stdout); err != nil {
		log.Fatalf("viewshed failed: %v", err)
	}
}
