package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/pwrdrvr/lambda-throttling/pkg/config"
	"github.com/pwrdrvr/lambda-throttling/pkg/system/cputime"
	"github.com/pwrdrvr/lambda-throttling/pkg/system/lambda"
	"github.com/pwrdrvr/lambda-throttling/pkg/system/util"
	"github.com/pwrdrvr/lambda-throttling/pkg/throttle"
	"github.com/pwrdrvr/lambda-throttling/pkg/types"
	"github.com/pwrdrvr/lambda-throttling/pkg/workload"
)

var pretty bool

type opts struct {
	// run shape
	durationMs float64
	quantumMs  float64
	dataSizeKB float64
	settle     time.Duration

	// calibration
	calibrate      bool
	warmup         int
	measure        int
	baselineMs     float64
	baselineIterMs float64

	// safety / detection overrides
	lowCutoff     float64
	safetyLow     float64
	safetyHigh    float64
	overrunFactor float64

	// outputs
	configPath string
	csvPath    string
	jsonPath   string
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "throttlebench [memoryMB|memoryMB,memoryMB]...",
		Short: "Lambda CPU time-slicing benchmark",
		Long: `throttlebench measures how a metered compute environment throttles CPU-bound
work. It calibrates an unthrottled CPU-time baseline for a reference workload
(hash + compress), derives the workload size that fits one scheduling quantum
for each memory tier's CPU share, then runs quantum-aligned iterations and
reports throttling events and utilization.

Tiers run strictly one after another with a settling delay in between.

Examples:
  throttlebench 128 256 512 1024
  throttlebench --duration 10000 --csv out/results.csv 128,1769
  throttlebench --config session.yaml --json out/results.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o, args)
		},
	}

	root.Flags().BoolVar(&pretty, "pretty", true, "format output as a table instead of CSV-like lines")
	root.Flags().Float64VarP(&o.durationMs, "duration", "d", 0, "run duration per tier in ms (default 5000)")
	root.Flags().Float64Var(&o.quantumMs, "quantum", 0, "scheduling quantum in ms (default 20)")
	root.Flags().Float64Var(&o.dataSizeKB, "data-size-kb", 0, "reference workload size in KB (default 100)")
	root.Flags().DurationVar(&o.settle, "settle", 0, "delay between tier runs (default 2s)")

	root.Flags().BoolVar(&o.calibrate, "calibrate", true, "run a local calibration before the tier runs")
	root.Flags().IntVar(&o.warmup, "warmup", 0, "calibration warmup iterations (default 50)")
	root.Flags().IntVar(&o.measure, "measure", 0, "calibration measurement iterations (default 500)")
	root.Flags().Float64Var(&o.baselineMs, "baseline", 0, "externally measured CPU ms per reference unit (skips calibration)")
	root.Flags().Float64Var(&o.baselineIterMs, "baseline-iteration", 0, "expected wall ms per iteration; enables relative throttle detection")

	root.Flags().Float64Var(&o.lowCutoff, "low-share-cutoff", 0, "CPU share below which the larger safety margin applies (default 0.3)")
	root.Flags().Float64Var(&o.safetyLow, "safety-low", 0, "safety factor for low-share tiers (default 0.55)")
	root.Flags().Float64Var(&o.safetyHigh, "safety-high", 0, "safety factor for high-share tiers (default 0.85)")
	root.Flags().Float64Var(&o.overrunFactor, "overrun-factor", 0, "wall-time multiple that flags a throttle event (default 1.5)")

	root.Flags().StringVar(&o.configPath, "config", "", "YAML session config")
	root.Flags().StringVar(&o.csvPath, "csv", "", "write per-tier rows to CSV file")
	root.Flags().StringVar(&o.jsonPath, "json", "", "write result documents to JSON file")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts, args []string) error {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	})))

	sess := config.Default()
	if o.configPath != "" {
		var err error
		if sess, err = config.Load(o.configPath); err != nil {
			return err
		}
	}

	tiers := sess.MemorySizesMB
	if len(args) > 0 {
		var err error
		if tiers, err = util.ParseMemorySizes(args); err != nil {
			return err
		}
	}
	if len(tiers) == 0 {
		return fmt.Errorf("no memory tiers given")
	}
	if o.durationMs < 0 {
		return fmt.Errorf("duration must be > 0")
	}
	o.durationMs = sess.DurationMs(o.durationMs)

	cfg := engineConfig(o, sess)
	merged := throttle.NewConfig(cfg)

	clock := cputime.New()
	if !clock.SupportsCPUTime() {
		slog.Warn("no process cpu accounting on this host; falling back to wall-clock heuristics")
	}
	work := workload.New()

	// The calibration environment's own share decides baseline reliability.
	// Outside Lambda we assume a full local core.
	calShare := 1.0
	memHere := 0
	if env, ok := lambda.Detect(); ok {
		calShare = env.CPUShare()
		memHere = env.MemoryMB
		slog.Info("detected lambda environment",
			"function", env.FunctionName, "memory_mb", env.MemoryMB, "cpu_share", calShare)
	}

	base, err := baseline(o, cfg, clock, work, calShare, memHere)
	if err != nil {
		return err
	}
	slog.Info("baseline",
		"cpu_ms_per_unit", base.CPUMsPerUnit,
		"reference", base.ReferenceSize.Humanized(),
		"samples", base.Samples,
		"unreliable", base.Unreliable)

	var tw *tabwriter.Writer
	if pretty {
		tw = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "MEMORY (MB)\tSHARE\tSIZE\tITER\tAVG WALL (ms)\tMAX WALL (ms)\tAVG CPU (ms)\tUTIL %\tTHROTTLED")
		fmt.Fprintln(tw, "-----------\t-----\t----\t----\t-------------\t-------------\t------------\t------\t---------")
		tw.Flush()
	} else {
		fmt.Println("# memory_mb, cpu_share, size_kb, iterations, avg_wall_ms, max_wall_ms, avg_cpu_ms, util_pct, throttle_events")
	}

	var (
		csvW  *csv.Writer
		csvF  *os.File
		jsonF *os.File
	)
	if o.csvPath != "" {
		if err := os.MkdirAll(filepath.Dir(o.csvPath), 0o755); err == nil {
			if f, er := os.Create(o.csvPath); er == nil {
				csvF = f
				csvW = csv.NewWriter(f)
				_ = csvW.Write([]string{
					"memory_mb", "cpu_share", "calibrated_size_kb", "iterations",
					"avg_wall_ms", "max_wall_ms", "avg_cpu_ms", "util_pct", "throttle_events",
				})
				csvW.Flush()
			}
		}
	}
	if o.jsonPath != "" {
		if err := os.MkdirAll(filepath.Dir(o.jsonPath), 0o755); err == nil {
			jsonF, _ = os.Create(o.jsonPath)
			if jsonF != nil {
				_, _ = jsonF.WriteString("[\n")
			}
		}
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	written := 0
	for i, mb := range tiers {
		if ctx.Err() != nil {
			slog.Info("interrupted")
			break
		}

		share := lambda.CPUShare(mb)
		plan := throttle.NewPlan(share, base, cfg)
		iterations := throttle.IterationsFor(o.durationMs, merged.QuantumMs)

		slog.Info("tier run",
			"memory_mb", mb,
			"cpu_share", share,
			"allowed_cpu_ms", plan.AllowedCPUMsPerQuantum,
			"size", plan.CalibratedSize.Humanized(),
			"iterations", iterations)

		start := time.Now()
		sched := throttle.NewScheduler(cfg, clock, work, &plan)
		records, err := sched.Run(iterations)
		if err != nil {
			return err
		}
		end := time.Now()

		sum := throttle.Aggregate(records, plan, cfg, o.baselineIterMs)
		res := throttle.NewResult(records, sum, plan, cfg, mb, start, end, o.baselineIterMs)

		if pretty {
			fmt.Fprintf(tw, "%d\t%.4f\t%s\t%d\t%.3f\t%.3f\t%.3f\t%.1f\t%d\n",
				mb, share, plan.CalibratedSize.Humanized(), sum.Iterations,
				sum.AvgWallMs, sum.MaxWallMs, sum.AvgCPUMs, sum.UtilizationPct, sum.ThrottleEvents)
			tw.Flush()
		} else {
			fmt.Printf("%d, %.4f, %.1f, %d, %.3f, %.3f, %.3f, %.1f, %d\n",
				mb, share, plan.CalibratedSize.KB(), sum.Iterations,
				sum.AvgWallMs, sum.MaxWallMs, sum.AvgCPUMs, sum.UtilizationPct, sum.ThrottleEvents)
		}

		if csvW != nil {
			_ = csvW.Write([]string{
				strconv.Itoa(mb),
				util.FmtFloat(share),
				util.FmtFloat(plan.CalibratedSize.KB()),
				strconv.Itoa(sum.Iterations),
				util.FmtFloat(sum.AvgWallMs),
				util.FmtFloat(sum.MaxWallMs),
				util.FmtFloat(sum.AvgCPUMs),
				util.FmtFloat(sum.UtilizationPct),
				strconv.Itoa(sum.ThrottleEvents),
			})
			csvW.Flush()
		}
		if jsonF != nil {
			b, err := res.MarshalEnvelope()
			if err == nil {
				if written > 0 {
					_, _ = jsonF.WriteString(",\n")
				}
				_, _ = jsonF.Write(b)
				written++
			}
		}

		// Settle before the next tier so runs do not bleed into each other.
		if i < len(tiers)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(merged.SettleDelay):
			}
		}
	}

	if csvW != nil {
		csvW.Flush()
	}
	if csvF != nil {
		_ = csvF.Close()
	}
	if jsonF != nil {
		_, _ = jsonF.WriteString("\n]\n")
		_ = jsonF.Close()
	}

	return nil
}

// engineConfig folds session-file values and flag overrides into the engine
// config; flags win over the file, zero fields defer to engine defaults.
func engineConfig(o opts, sess config.Config) *throttle.Config {
	cfg := &throttle.Config{
		QuantumMs:         sess.QuantumMs,
		LowShareCutoff:    sess.Safety.LowShareCutoff,
		SafetyFactorLow:   sess.Safety.LowFactor,
		SafetyFactorHigh:  sess.Safety.HighFactor,
		OverrunFactor:     sess.OverrunFactor,
		WarmupIterations:  sess.Calibration.WarmupIterations,
		MeasureIterations: sess.Calibration.MeasureIterations,
	}
	if sess.SettleDelayMs > 0 {
		cfg.SettleDelay = time.Duration(sess.SettleDelayMs * float64(time.Millisecond))
	}

	if o.quantumMs > 0 {
		cfg.QuantumMs = o.quantumMs
	}
	if o.lowCutoff > 0 {
		cfg.LowShareCutoff = o.lowCutoff
	}
	if o.safetyLow > 0 {
		cfg.SafetyFactorLow = o.safetyLow
	}
	if o.safetyHigh > 0 {
		cfg.SafetyFactorHigh = o.safetyHigh
	}
	if o.overrunFactor > 0 {
		cfg.OverrunFactor = o.overrunFactor
	}
	if o.warmup > 0 {
		cfg.WarmupIterations = o.warmup
	}
	if o.measure > 0 {
		cfg.MeasureIterations = o.measure
	}
	if o.settle > 0 {
		cfg.SettleDelay = o.settle
	}

	sizeKB := sess.DataSizeKB
	if o.dataSizeKB > 0 {
		sizeKB = o.dataSizeKB
	}
	if sizeKB > 0 {
		cfg.ReferenceSize = types.FromKB(sizeKB)
	}
	return cfg
}

// baseline picks the CPU-time baseline for the session: an explicit flag
// value, a local calibration run, or the documented fallback constant.
func baseline(o opts, cfg *throttle.Config,
	clock *cputime.Clock, work workload.Runner, calShare float64, memoryMB int) (throttle.Baseline, error) {

	merged := throttle.NewConfig(cfg)

	if o.baselineMs > 0 {
		return throttle.Baseline{
			ReferenceSize: merged.ReferenceSize,
			CPUMsPerUnit:  o.baselineMs,
			WallMsPerUnit: o.baselineMs,
		}, nil
	}

	if !o.calibrate {
		return throttle.FallbackBaseline(cfg), nil
	}

	if calShare < 1.0 {
		slog.Warn("calibration environment has a fractional cpu share; baseline will be unreliable",
			"cpu_share", calShare, "memory_mb", memoryMB)
	}

	start := time.Now()
	base, err := throttle.NewCalibrator(cfg, clock, work).Run(calShare)
	if err != nil {
		return throttle.Baseline{}, err
	}
	slog.Info("calibration finished", "took", time.Since(start).Round(time.Millisecond))

	if base.Unreliable {
		slog.Warn("substituting fallback baseline for unreliable calibration",
			"measured_cpu_ms", base.CPUMsPerUnit,
			"fallback_cpu_ms", merged.FallbackCPUMsPerReference)
		return throttle.FallbackBaseline(cfg), nil
	}
	return base, nil
}
