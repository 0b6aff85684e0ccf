// Package main tunes the pressure solver with CMA-ES: it searches the
// over-relaxation factor and iteration count that leave the least
// divergence for the work spent.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/slosh/config"
)

// TuneLogRow is one evaluation in tune_log.csv.
type TuneLogRow struct {
	Eval               int     `csv:"eval"`
	Fitness            float64 `csv:"fitness"`
	MeanDiv            float64 `csv:"mean_div"`
	OverRelaxation     float64 `csv:"over_relaxation"`
	PressureIterations int     `csv:"pressure_iterations"`
	ElapsedSec         float64 `csv:"elapsed_sec"`
}

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	if err := run(); err != nil {
		slog.Error("tuning failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	outputDir := flag.String("output", "", "Output directory for results")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	ticks := flag.Int("ticks", 0, "Ticks per run (0 = tune.ticks)")
	maxEvals := flag.Int("max-evals", 0, "Maximum number of evaluations (0 = tune.max_evals)")
	population := flag.Int("population", 0, "CMA-ES population size (0 = tune.population, then auto)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if *outputDir == "" {
		return fmt.Errorf("-output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	if err := config.Init(*configPath); err != nil {
		return err
	}
	baseCfg := config.Cfg()

	runTicks := firstPositive(*ticks, baseCfg.Tune.Ticks)
	evals := firstPositive(*maxEvals, baseCfg.Tune.MaxEvals)

	params := NewParamVector(baseCfg)
	dim := params.Dim()

	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = baseCfg.Seed + int64(i*1000)
	}
	evaluator := NewFitnessEvaluator(params, runTicks, evalSeeds, baseCfg)

	popSize := firstPositive(*population, baseCfg.Tune.Population)
	if popSize == 0 {
		popSize = 4 + int(3.0*math.Log(float64(dim)))
	}

	logFile, err := os.Create(filepath.Join(*outputDir, "tune_log.csv"))
	if err != nil {
		return fmt.Errorf("creating tune log: %w", err)
	}
	defer logFile.Close()

	evalCount := 0
	bestFitness := math.Inf(1)
	var bestParams []float64
	var logErr error
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			clamped := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(clamped)
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
			}

			elapsed := time.Since(startTime)
			row := []TuneLogRow{{
				Eval:               evalCount,
				Fitness:            fitness,
				MeanDiv:            evaluator.LastMeanDiv(),
				OverRelaxation:     clamped[0],
				PressureIterations: int(clamped[1]),
				ElapsedSec:         elapsed.Seconds(),
			}}
			if logErr == nil {
				if evalCount == 1 {
					logErr = gocsv.Marshal(row, logFile)
				} else {
					logErr = gocsv.MarshalWithoutHeaders(row, logFile)
				}
			}

			remaining := time.Duration(evals-evalCount) * (elapsed / time.Duration(evalCount))
			slog.Info("eval",
				"n", evalCount,
				"of", evals,
				"fitness", fitness,
				"over_relaxation", clamped[0],
				"pressure_iterations", int(clamped[1]),
				"best", bestFitness,
				"elapsed", formatDuration(elapsed),
				"eta", formatDuration(remaining),
			)
			return fitness
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: evals,
		Concurrent:      0, // seeds already run in parallel inside each evaluation
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
		Src:          rand.NewPCG(uint64(baseCfg.Seed), 0),
	}

	slog.Info("starting CMA-ES tuning",
		"params", dim,
		"population", popSize,
		"max_evals", evals,
		"seeds", *seeds,
		"ticks", runTicks,
	)

	result, err := optimize.Minimize(problem, params.Normalize(params.DefaultVector()), settings, method)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}
	if logErr != nil {
		return fmt.Errorf("writing tune log: %w", logErr)
	}

	// Best seen may come from any evaluation, not just the final mean.
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		return fmt.Errorf("no evaluations completed")
	}

	slog.Info("tuning complete",
		"evals", evalCount,
		"duration", formatDuration(time.Since(startTime)),
		"best_fitness", bestFitness,
		"over_relaxation", bestParams[0],
		"pressure_iterations", int(bestParams[1]),
	)

	bestCfg := baseCfg.Clone()
	params.ApplyToConfig(bestCfg, bestParams)
	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		return err
	}
	slog.Info("best config saved", "path", configOutPath)
	return nil
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
