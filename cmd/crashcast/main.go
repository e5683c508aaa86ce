// Command crashcast trains a predictor on a list of crash points and prints the predicted next
// value. Observations are taken from the arguments or, when there are none, from stdin separated by
// whitespace or commas.
//
//	crashcast -seed 7 1.52 2.10 1.00 4.33 1.87 1.20 3.05
//	cat history.txt | crashcast -json
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/aouyang1/go-crashcast"
	"github.com/aouyang1/go-crashcast/history"
	"github.com/aouyang1/go-crashcast/metrics"
	"github.com/aouyang1/go-crashcast/stats"
	"github.com/goccy/go-json"
	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoObservations     = errors.New("no observations provided")
	ErrInvalidObservation = errors.New("observation is not a number")
	ErrInvalidProfile     = errors.New("profile must be one of cpu, mem")
	ErrInvalidLogFormat   = errors.New("log format must be one of console, json")
)

type config struct {
	configPath  string
	window      int
	seed        uint64
	epochs      int
	jsonOut     bool
	plotPath    string
	metricsPath string
	profileMode string
	logLevel    string
	logFormat   string
}

func parseFlags(args []string) (*config, []string, error) {
	cfg := &config{}
	fs := flag.NewFlagSet("crashcast", flag.ContinueOnError)
	fs.StringVar(&cfg.configPath, "config", "", "yaml options file")
	fs.IntVar(&cfg.window, "window", 0, "window size, overrides the options file")
	fs.Uint64Var(&cfg.seed, "seed", 0, "seed for weights, shuffling and dropout, overrides the options file")
	fs.IntVar(&cfg.epochs, "epochs", 0, "training epochs, overrides the options file")
	fs.BoolVar(&cfg.jsonOut, "json", false, "print the result as json")
	fs.StringVar(&cfg.plotPath, "plot", "", "write an html chart of the training run to this path")
	fs.StringVar(&cfg.metricsPath, "metrics-out", "", "write prometheus metrics in text format to this path")
	fs.StringVar(&cfg.profileMode, "profile", "", "profile the run, cpu or mem")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "debug, info, warn or error")
	fs.StringVar(&cfg.logFormat, "log-format", "console", "console or json")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return cfg, fs.Args(), nil
}

func setupLogger(level, format string, w io.Writer) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level, %w", err)
	}
	zerolog.SetGlobalLevel(lvl)

	switch format {
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case "json":
	default:
		return fmt.Errorf("got %q, %w", format, ErrInvalidLogFormat)
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

// parseObservations reads crash points from args, or from r when args is empty, and validates each
// one as it is recorded
func parseObservations(args []string, r io.Reader) (*history.Sequence, error) {
	fields := args
	if len(fields) == 0 {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.ReplaceAll(scanner.Text(), ",", " ")
			fields = append(fields, strings.Fields(line)...)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("unable to read observations, %w", err)
		}
	}
	if len(fields) == 0 {
		return nil, ErrNoObservations
	}

	seq, err := history.NewSequence()
	if err != nil {
		return nil, err
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("observation %d %q, %w", i, f, ErrInvalidObservation)
		}
		if err := seq.Append(v); err != nil {
			return nil, fmt.Errorf("observation %d, %w", i, err)
		}
	}
	return seq, nil
}

func loadOptions(cfg *config) (*crashcast.Options, error) {
	opt := crashcast.NewDefaultOptions()
	if cfg.configPath != "" {
		var err error
		if opt, err = crashcast.LoadOptions(cfg.configPath); err != nil {
			return nil, err
		}
	}
	if cfg.window > 0 {
		opt.WindowSize = cfg.window
		opt.Model.InputDim = cfg.window
	}
	if cfg.seed > 0 {
		opt.Model.Seed = cfg.seed
	}
	if cfg.epochs > 0 {
		opt.Train.Epochs = cfg.epochs
	}
	return opt.Validate()
}

type result struct {
	Observations  int                    `json:"observations"`
	WindowSize    int                    `json:"window_size"`
	Summary       *stats.Summary         `json:"summary"`
	Report        *crashcast.TrainReport `json:"report"`
	RawPrediction float64                `json:"raw_prediction"`
	Prediction    float64                `json:"prediction"`
}

func run(ctx context.Context, cfg *config, seq *history.Sequence, out io.Writer) error {
	opt, err := loadOptions(cfg)
	if err != nil {
		return fmt.Errorf("unable to load options, %w", err)
	}

	values := seq.Values()
	if len(values) < opt.WindowSize+1 {
		return fmt.Errorf("got %d observations, need at least %d, %w", len(values), opt.WindowSize+1, crashcast.ErrInsufficientHistory)
	}

	p, err := crashcast.New(opt)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	if err := p.SetRecorder(metrics.New(reg)); err != nil {
		return err
	}
	if err := p.Initialize(); err != nil {
		return err
	}

	report, err := p.TrainHistory(ctx, values).Wait(ctx)
	if err != nil {
		return fmt.Errorf("unable to train, %w", err)
	}
	raw, err := p.PredictNext(ctx, values).Wait(ctx)
	if err != nil {
		return fmt.Errorf("unable to predict, %w", err)
	}

	summary, err := stats.Summarize(values)
	if err != nil {
		return err
	}
	res := &result{
		Observations:  len(values),
		WindowSize:    opt.WindowSize,
		Summary:       summary,
		Report:        report,
		RawPrediction: raw,
		Prediction:    crashcast.Clamp(raw, history.MinObservation),
	}

	if cfg.plotPath != "" {
		if err := writePlot(cfg.plotPath, res, values); err != nil {
			return err
		}
	}
	if cfg.metricsPath != "" {
		if err := prometheus.WriteToTextfile(cfg.metricsPath, reg); err != nil {
			return fmt.Errorf("unable to write metrics, %w", err)
		}
	}

	if cfg.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if err := summary.TablePrint(out, "", "  "); err != nil {
		return err
	}
	if err := p.TablePrint(out, "", "  "); err != nil {
		return err
	}
	if err := report.TablePrint(out, "", "  "); err != nil {
		return err
	}
	fmt.Fprintf(out, "Next crash point: %.2fx\n", res.Prediction)
	return nil
}

func writePlot(path string, res *result, values []float64) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create plot file, %w", err)
	}
	defer file.Close()

	if err := crashcast.PlotTraining(file, res.Report, values, res.Prediction); err != nil {
		return fmt.Errorf("unable to render plot, %w", err)
	}
	return nil
}

func startProfile(mode string) (interface{ Stop() }, error) {
	switch mode {
	case "cpu":
		return profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet), nil
	case "mem":
		return profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet), nil
	default:
		return nil, fmt.Errorf("got %q, %w", mode, ErrInvalidProfile)
	}
}

func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, args, err := parseFlags(args)
	if err != nil {
		return 2
	}
	if err := setupLogger(cfg.logLevel, cfg.logFormat, stderr); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	if cfg.profileMode != "" {
		prof, err := startProfile(cfg.profileMode)
		if err != nil {
			log.Error().Err(err).Msg("unable to start profiling")
			return 2
		}
		defer prof.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	seq, err := parseObservations(args, stdin)
	if err != nil {
		log.Error().Err(err).Msg("invalid observations")
		return 1
	}
	if err := run(ctx, cfg, seq, stdout); err != nil {
		log.Error().Err(err).Msg("crashcast failed")
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
