package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/couplex/couplex/config"
	"github.com/couplex/couplex/model"
	"github.com/couplex/couplex/run"
	"github.com/couplex/couplex/solver/simplexlp"
	"github.com/couplex/couplex/store"
	"github.com/couplex/couplex/store/badgerstore"
	"github.com/couplex/couplex/store/memstore"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:     "run [model.yaml]",
	Short:   "expands, solves and stores every problem of a model",
	Run:     cmdRun,
	Version: buildString(),
}

var (
	fMode          string
	fStorePath     string
	fDataPath      string
	fNorm          string
	fTolerance     float64
	fMaxIterations int
	fParallelism   int
	fBestEffort    bool
	fMissingZero   bool
	fExport        []string
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.PersistentFlags().StringVar(&fMode, "mode", "independent", "orchestration mode: independent or integrated")
	runCmd.PersistentFlags().StringVar(&fStorePath, "store", "", "directory of the persistent value store -- default is in-memory")
	runCmd.PersistentFlags().StringVar(&fDataPath, "data", "", "specifies full path for exogenous data file")
	runCmd.PersistentFlags().StringVar(&fNorm, "norm", "max_abs", "convergence norm: max_abs or rel_l2")
	runCmd.PersistentFlags().Float64Var(&fTolerance, "tolerance", run.DefaultTolerance, "relative change below which a coupling group has converged")
	runCmd.PersistentFlags().IntVar(&fMaxIterations, "max-iterations", run.DefaultMaxIterations, "iteration cap per coupling group")
	runCmd.PersistentFlags().IntVar(&fParallelism, "parallel", 0, "concurrent solves -- 0 means one per CPU")
	runCmd.PersistentFlags().BoolVar(&fBestEffort, "best-effort", false, "keep the values of groups that hit the iteration cap")
	runCmd.PersistentFlags().BoolVar(&fMissingZero, "missing-zero", false, "treat exogenous entries that were never loaded as zero")
	runCmd.PersistentFlags().StringSliceVar(&fExport, "export", nil, "tables to print after the run")
}

func cmdRun(cmd *cobra.Command, args []string) {
	if len(args) < 1 {
		fmt.Println("missing model path -- couplex run -h for help")
		os.Exit(-1)
	}
	modelPath := filepath.Clean(args[0])

	cfg, err := runConfig()
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(-1)
	}

	m, err := loadModel(modelPath)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(-1)
	}
	fmt.Printf("%-30s %-30s %-d problems\n", "loaded model", modelPath, len(m.Problems()))

	st, err := openStore(m)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(-1)
	}

	sess, err := run.NewSession(m, st, simplexlp.New(), cfg)
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(-1)
	}

	if fDataPath != "" {
		dataPath := filepath.Clean(fDataPath)
		if !fileExists(dataPath) {
			fmt.Println(dataPath, errNotFound)
			os.Exit(-1)
		}
		data, err := config.LoadData(dataPath)
		if err != nil {
			fmt.Println("can't parse data", err)
			os.Exit(-1)
		}
		names := make([]string, 0, len(data))
		for name := range data {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := sess.LoadTable(name, data[name]); err != nil {
				fmt.Println("error:", err)
				os.Exit(-1)
			}
		}
		fmt.Printf("%-30s %-30s %-d tables\n", "loaded data", dataPath, len(data))
	}

	rep, err := sess.Run(cmd.Context())
	if err != nil {
		fmt.Println("error:", err)
		os.Exit(-1)
	}
	printReport(rep)

	for _, name := range fExport {
		vals, err := sess.Export(name)
		if err != nil {
			fmt.Println("error:", err)
			os.Exit(-1)
		}
		printTable(name, vals)
	}

	if err := st.Close(); err != nil {
		fmt.Println("error:", err)
		os.Exit(-1)
	}
	if len(rep.Failures()) > 0 {
		os.Exit(-1)
	}
}

// runConfig assembles the session configuration from the run flags.
func runConfig() (run.Config, error) {
	var cfg run.Config
	mode, err := run.ParseMode(fMode)
	if err != nil {
		return cfg, err
	}
	norm, err := run.ParseNorm(fNorm)
	if err != nil {
		return cfg, err
	}
	cfg.Mode = mode
	cfg.Norm = norm
	cfg.Tolerance = fTolerance
	cfg.MaxIterations = fMaxIterations
	cfg.Parallelism = fParallelism
	cfg.BestEffort = fBestEffort
	if fMissingZero {
		cfg.Missing = run.MissingZero
	}
	return cfg, nil
}

// openStore opens the badger store named by --store, or an in-memory store
// when the flag is empty. A persistent store is pinned to the model's
// fingerprint.
func openStore(m *model.Model) (store.Store, error) {
	if fStorePath == "" {
		return memstore.New(), nil
	}
	return badgerstore.Open(filepath.Clean(fStorePath), badgerstore.WithFingerprint(m.Fingerprint()))
}

func printReport(rep *run.Report) {
	for _, s := range rep.Solves {
		unit := s.Problem + " / " + s.Scenario
		if s.Err != nil {
			fmt.Printf("%-30s %-30s %s\n", "solve failed", unit, s.Err)
			continue
		}
		fmt.Printf("%-30s %-30s %-12s objective %.6g (%d rows, %d cols, %s)\n",
			"solved", unit, s.Status, s.Objective, s.Rows, s.Cols, s.Runtime)
	}
	for _, g := range rep.Groups {
		unit := g.Group + " / " + g.Scenario
		if g.Err != nil {
			fmt.Printf("%-30s %-30s %s\n", "coupling failed", unit, g.Err)
			continue
		}
		fmt.Printf("%-30s %-30s %-25s delta %.3g after %d iterations\n",
			"coupled", unit, g.State, g.Delta, g.Iterations)
	}
	fmt.Printf("%-30s %-30s %-30s\n", "run finished", rep.Mode.String(), rep.Duration)
}

func printTable(name string, vals store.Values) {
	fmt.Printf("%-30s %-d entries\n", "table "+name, vals.Len())
	for i := 0; i < vals.Len(); i++ {
		if x, ok := vals.Get(i); ok {
			fmt.Printf("  [%d] %g\n", i, x)
		} else {
			fmt.Printf("  [%d] -\n", i)
		}
	}
}
