package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"neuroflap/internal/config"
	"neuroflap/internal/storage"
	api "neuroflap/pkg/neuroflap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:], out)
	case "reset":
		return runReset(ctx, args[1:], out)
	case "run":
		return runRun(ctx, args[1:], out)
	case "runs":
		return runRuns(ctx, args[1:], out)
	case "history":
		return runHistory(ctx, args[1:], out)
	case "population":
		return runPopulation(ctx, args[1:], out)
	case "best":
		return runBest(ctx, args[1:], out)
	case "predict":
		return runPredict(ctx, args[1:], out)
	case "export":
		return runExport(ctx, args[1:], out)
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// storeFlags are shared by every command that opens the store.
type storeFlags struct {
	kind     *string
	dbPath   *string
	logLevel *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:     fs.String("store", storage.DefaultStoreKind, "store backend: memory|sqlite"),
		dbPath:   fs.String("db-path", "neuroflap.db", "sqlite database path"),
		logLevel: fs.String("log-level", "info", "log level: debug|info|warn|error"),
	}
}

func (f storeFlags) open() (*api.Client, error) {
	logger, err := newLogger(*f.logLevel, os.Stderr)
	if err != nil {
		return nil, err
	}
	return api.New(api.Options{StoreKind: *f.kind, DBPath: *f.dbPath, Logger: logger})
}

// selectorFlags pick one population of a stored run.
type selectorFlags struct {
	runID      *string
	latest     *bool
	population *string
}

func addSelectorFlags(fs *flag.FlagSet) selectorFlags {
	return selectorFlags{
		runID:      fs.String("run-id", "", "run id"),
		latest:     fs.Bool("latest", false, "use the most recent run"),
		population: fs.String("population", "", "population name"),
	}
}

func (f selectorFlags) selector() api.RunSelector {
	return api.RunSelector{RunID: *f.runID, Latest: *f.latest, Population: *f.population}
}

func runInit(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Fprintf(out, "initialized store=%s\n", *sf.kind)
	return nil
}

func runReset(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Reset(ctx); err != nil {
		return err
	}

	fmt.Fprintf(out, "reset store=%s\n", *sf.kind)
	return nil
}

func runRun(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	configPath := fs.String("config", "", "INI run configuration; defaults apply when empty")
	generations := fs.Int("generations", 0, "generations to evaluate (overrides config)")
	seed := fs.Int64("seed", 0, "random seed (overrides config)")
	runID := fs.String("run-id", "", "continue this run when stored, otherwise start it")
	jsonOut := fs.Bool("json", false, "emit generation summaries as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	set := visitedFlags(fs)
	if set["generations"] {
		cfg.Generations = *generations
	}
	if set["seed"] {
		cfg.Seed = *seed
	}
	// the config file picks the store unless a flag says otherwise
	if !set["store"] && cfg.Store != "" {
		*sf.kind = cfg.Store
	}
	if !set["db-path"] && cfg.DBPath != "" {
		*sf.dbPath = cfg.DBPath
	}

	client, err := sf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	start := time.Now()
	result, err := client.Run(ctx, api.RunRequest{RunID: *runID, Config: cfg})
	if err != nil {
		return err
	}

	if *jsonOut {
		return writeJSON(out, result)
	}
	for _, s := range result.Summaries {
		fmt.Fprintf(out, "population=%s generation=%d best=%s mean=%s worst=%s score=%d ticks=%s\n",
			s.Population,
			s.Generation,
			humanize.Ftoa(s.Best),
			humanize.Ftoa(s.Mean),
			humanize.Ftoa(s.Worst),
			s.Score,
			humanize.Comma(int64(s.Ticks)),
		)
	}
	fmt.Fprintf(out, "run_id=%s generations=%d took=%s\n",
		result.RunID, result.Generations, time.Since(start).Round(time.Millisecond))
	return nil
}

func runRuns(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := sf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, api.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(out, "run_id=%s created=%s seed=%d generations=%d populations=%s\n",
			r.ID,
			humanize.Time(r.CreatedAtUTC),
			r.Seed,
			r.Generations,
			strings.Join(r.Populations, ","),
		)
	}
	return nil
}

func runHistory(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	sel := addSelectorFlags(fs)
	limit := fs.Int("limit", 0, "keep only the most recent generations (0 = all)")
	jsonOut := fs.Bool("json", false, "emit history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.History(ctx, api.HistoryRequest{RunSelector: sel.selector(), Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, history)
	}
	for _, s := range history {
		fmt.Fprintf(out, "generation=%d best=%s mean=%s worst=%s score=%d elapsed=%.2fs\n",
			s.Generation, humanize.Ftoa(s.Best), humanize.Ftoa(s.Mean), humanize.Ftoa(s.Worst), s.Score, s.Elapsed)
	}
	return nil
}

func runPopulation(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("population", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	sel := addSelectorFlags(fs)
	jsonOut := fs.Bool("json", false, "emit snapshot as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	snapshot, err := client.Population(ctx, sel.selector())
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, snapshot)
	}
	genes := 0
	if len(snapshot.Entities) > 0 {
		genes = len(snapshot.Entities[0].Genotype)
	}
	fmt.Fprintf(out, "run_id=%s population=%s generation=%d shapes=%q entities=%s genes=%s best=%s\n",
		snapshot.RunID,
		snapshot.Name,
		snapshot.Generation,
		snapshot.Shapes,
		humanize.Comma(int64(len(snapshot.Entities))),
		humanize.Comma(int64(genes)),
		humanize.Ftoa(snapshot.Best.Fitness),
	)
	return nil
}

func runBest(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("best", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	sel := addSelectorFlags(fs)
	jsonOut := fs.Bool("json", false, "emit best genotype as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	best, err := client.Best(ctx, sel.selector())
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(out, best)
	}
	fmt.Fprintf(out, "run_id=%s population=%s generation=%d shapes=%q fitness=%s genotype=%s\n",
		best.RunID, best.Population, best.Generation, best.Shapes.String(), humanize.Ftoa(best.Fitness), formatFloats(best.Genotype))
	return nil
}

func runPredict(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	sel := addSelectorFlags(fs)
	inputText := fs.String("inputs", "", "comma-separated network inputs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	inputs, err := parseFloats(*inputText)
	if err != nil {
		return err
	}

	client, err := sf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	output, err := client.Predict(ctx, api.PredictRequest{RunSelector: sel.selector(), Inputs: inputs})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "output=%s\n", formatFloats(output))
	return nil
}

func runExport(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	sf := addStoreFlags(fs)
	runID := fs.String("run-id", "", "run id to export")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", "exports", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Export(ctx, api.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "exported run_id=%s dir=%s\n", summary.RunID, summary.Directory)
	return nil
}

func visitedFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

func parseFloats(text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("inputs are required")
	}
	fields := strings.Split(text, ",")
	values := make([]float64, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("parse input %q: %w", field, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func formatFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', 6, 64)
	}
	return strings.Join(parts, ",")
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: neuroflapctl <init|reset|run|runs|history|population|best|predict|export> [flags]", msg)
}
