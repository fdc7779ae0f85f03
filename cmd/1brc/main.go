// 1brc reads station;temperature lines and prints min/mean/max per station,
// sorted by name, on a single line.
//
// Usage:
//
//	1brc [flags] [FILE]
//
// FILE defaults to measurements.txt, "-" reads stdin. Settings come from
// defaults, an optional YAML file (-config), BRC_* environment variables and
// flags, in that order.
//
// data:
//
//	Tamale;27.5
//	Bergen;9.6
//	Lodwar;37.1
//	Whitehorse;-3.8
//	Ouarzazate;19.1
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/miku/stationagg/internal/config"
	"github.com/miku/stationagg/internal/engine"
	"github.com/miku/stationagg/internal/metrics"
	"github.com/miku/stationagg/internal/naive"
	"github.com/miku/stationagg/internal/report"
)

var (
	configFile      = flag.String("config", "", "YAML config file")
	workers         = flag.Int("workers", 0, "number of workers, 1 reads the file sequentially (default number of CPUs)")
	bufferSize      = flag.Int("buffer-size", 0, "read buffer size in bytes per worker")
	cpuprofile      = flag.String("cpuprofile", "", "file to write cpu profile to")
	metricsTextfile = flag.String("metrics-textfile", "", "write run metrics in prometheus text format to this file")
	naiveMode       = flag.Bool("naive", false, "use the slow reference implementation")
	logLevel        = flag.String("log-level", "", "debug, info, warn or error")
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	flag.Parse()
	cfg, err := config.NewLoader().WithConfigPath(*configFile).Load()
	if err != nil {
		log.Print(err)
		return 1
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Print(err)
		return 1
	}
	logger, err := initLogger(cfg.Log)
	if err != nil {
		log.Print(err)
		return 1
	}
	defer logger.Sync()
	if cfg.CPUProfile != "" {
		f, err := os.Create(cfg.CPUProfile)
		if err != nil {
			logger.Error("cannot create cpu profile", zap.Error(err))
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			logger.Error("cannot start cpu profile", zap.Error(err))
			return 1
		}
		defer pprof.StopCPUProfile()
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, cfg, os.Stdin, os.Stdout, logger); err != nil {
		logger.Error("aggregation failed", zap.String("input", cfg.Input), zap.Error(err))
		return 1
	}
	return 0
}

// applyFlags copies explicitly set flags over the loaded config.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Workers = *workers
		case "buffer-size":
			cfg.Scanner.BufferSize = *bufferSize
		case "cpuprofile":
			cfg.CPUProfile = *cpuprofile
		case "metrics-textfile":
			cfg.MetricsTextfile = *metricsTextfile
		case "naive":
			cfg.Naive = *naiveMode
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
	if flag.NArg() > 0 {
		cfg.Input = flag.Arg(0)
	}
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         cfg.Format,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return zapConfig.Build()
}

// run aggregates cfg.Input and writes the report to stdout. Metrics are
// written for failed runs, too.
func run(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout io.Writer, logger *zap.Logger) error {
	var (
		started = time.Now()
		mode    = "engine"
		stats   engine.Stats
		err     error
	)
	if cfg.Naive {
		mode = "naive"
		stats, err = runNaive(cfg.Input, stdin, stdout)
	} else {
		stats, err = runEngine(ctx, cfg, stdin, stdout, logger)
	}
	elapsed := time.Since(started)
	if err == nil {
		logger.Info("done",
			zap.String("mode", mode),
			zap.String("input", cfg.Input),
			zap.Int64("rows", stats.Rows),
			zap.Int("stations", stats.Stations),
			zap.Int("shards", stats.Shards),
			zap.Int("grows", stats.Grows),
			zap.Duration("elapsed", elapsed),
			zap.Float64("rows_per_second", float64(stats.Rows)/elapsed.Seconds()),
		)
	}
	if cfg.MetricsTextfile != "" {
		c := metrics.NewCollector(metrics.DefaultNamespace, logger)
		c.Observe(mode, stats, elapsed, err)
		if werr := c.WriteTextfile(cfg.MetricsTextfile); werr != nil {
			logger.Warn("cannot write metrics", zap.Error(werr))
		}
	}
	return err
}

func runEngine(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout io.Writer, logger *zap.Logger) (engine.Stats, error) {
	ec := cfg.Engine()
	ec.Logger = logger
	var (
		res *engine.Result
		err error
	)
	if cfg.Input == "-" {
		res, err = engine.Run(ctx, stdin, ec)
	} else {
		res, err = engine.RunFile(ctx, cfg.Input, ec)
	}
	if err != nil {
		return engine.Stats{}, err
	}
	bw := bufio.NewWriter(stdout)
	if err := report.Write(bw, res.Table); err != nil {
		return res.Stats, err
	}
	return res.Stats, bw.Flush()
}

func runNaive(input string, stdin io.Reader, stdout io.Writer) (engine.Stats, error) {
	r := stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return engine.Stats{}, err
		}
		defer f.Close()
		r = f
	}
	data, err := naive.Aggregate(r)
	if err != nil {
		return engine.Stats{}, err
	}
	stats := engine.Stats{Shards: 1, Stations: len(data)}
	for _, m := range data {
		stats.Rows += m.Count
	}
	_, err = fmt.Fprintln(stdout, naive.Format(data))
	return stats, err
}
