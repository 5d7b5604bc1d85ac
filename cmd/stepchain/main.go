// Command stepchain runs the sample pipelines from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/askiada/go-stepchain/internal/sample"
	"github.com/askiada/go-stepchain/pkg/pipeline"
	"github.com/askiada/go-stepchain/pkg/pipeline/drawer"
	"github.com/askiada/go-stepchain/pkg/pipeline/measure"
	"github.com/askiada/go-stepchain/pkg/pipeline/model"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	logLevel  string
	logFormat string
}

func rootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:           "stepchain",
		Short:         "Run sample step pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(gratuityCmd(&flags))
	root.AddCommand(fetchCmd(&flags))

	return root
}

// runFlags are shared by every pipeline command.
type runFlags struct {
	timeout time.Duration
	dot     string
	report  bool
}

func (f *runFlags) register(cmd *cobra.Command, timeout time.Duration) {
	cmd.Flags().DurationVar(&f.timeout, "timeout", timeout, "pipeline deadline, 0 to disable")
	cmd.Flags().StringVar(&f.dot, "dot", "", "write the pipeline graph and its step durations to this DOT file")
	cmd.Flags().BoolVar(&f.report, "report", false, "print step durations, slowest first, to stderr")
}

// options builds the pipeline options for a command. The returned function
// prints the step report once the run is over.
func (f *runFlags) options(cmd *cobra.Command, logger *slog.Logger) ([]pipeline.Option, func()) {
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithTimeout(f.timeout),
	}

	if f.dot == "" && !f.report {
		return opts, func() {}
	}

	msr := measure.NewDefaultMeasure()
	plugins := []model.PipelineOption{measure.PipelineMeasure(msr)}
	if f.dot != "" {
		plugins = append(plugins, drawer.PipelineDrawer(drawer.NewDOTDrawer(f.dot), msr))
	}
	opts = append(opts, pipeline.WithOptions(plugins...))

	return opts, func() {
		if !f.report {
			return
		}
		for _, rep := range measure.Report(msr) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: avg %s, max %s, runs %d, failures %d\n",
				rep.Name, rep.Average, rep.Max, rep.Count, rep.Failures)
		}
	}
}

func gratuityCmd(global *globalFlags) *cobra.Command {
	var (
		run        runFlags
		configPath string
		price      float64
		tax        float64
		gratuity   float64
		currency   string
		symbol     string
	)

	cmd := &cobra.Command{
		Use:     "gratuity",
		Short:   "Calculate tax and gratuity on a price",
		Example: "stepchain gratuity -p 118.93 -g 0.18 -t 0.0525",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := initLogger(global.logLevel, global.logFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			overlay(cmd, "tax", &cfg.Tax, tax)
			overlay(cmd, "gratuity", &cfg.Gratuity, gratuity)
			overlay(cmd, "currency", &cfg.Currency, currency)
			overlay(cmd, "symbol", &cfg.Symbol, symbol)
			overlay(cmd, "timeout", &cfg.Timeout, run.timeout)
			run.timeout = cfg.Timeout

			opts, report := run.options(cmd, logger)
			pipe, err := sample.NewCalculator(opts...)
			if err != nil {
				return err
			}
			defer pipe.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			results, err := pipe.Run(ctx, sample.Bill{
				Currency:     cfg.Currency,
				Symbol:       cfg.Symbol,
				Price:        price,
				TaxRate:      cfg.Tax,
				GratuityRate: cfg.Gratuity,
			})
			report()
			if err != nil {
				return err
			}

			summary, err := sample.Summarize(results)
			if err != nil {
				return err
			}

			return summary.Print(cmd.OutOrStdout())
		},
	}

	run.register(cmd, 0)
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML file with default rates and currency")
	cmd.Flags().Float64VarP(&price, "price", "p", 0, "price of the bill")
	cmd.Flags().Float64VarP(&tax, "tax", "t", defaultConfig().Tax, "tax rate in decimal")
	cmd.Flags().Float64VarP(&gratuity, "gratuity", "g", defaultConfig().Gratuity, "gratuity rate in decimal")
	cmd.Flags().StringVar(&currency, "currency", defaultConfig().Currency, "currency code")
	cmd.Flags().StringVar(&symbol, "symbol", defaultConfig().Symbol, "currency symbol")

	return cmd
}

// overlay replaces *dst with value when the flag was set explicitly.
func overlay[T any](cmd *cobra.Command, flag string, dst *T, value T) {
	if cmd.Flags().Changed(flag) {
		*dst = value
	}
}

func fetchCmd(global *globalFlags) *cobra.Command {
	var (
		run     runFlags
		mapping = sample.DefaultMapping
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch a JSON search answer and print its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := initLogger(global.logLevel, global.logFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			opts, report := run.options(cmd, logger)
			pipe, err := sample.NewFeedReader(nil, mapping, opts...)
			if err != nil {
				return err
			}
			defer pipe.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			results, err := pipe.Run(ctx, sample.Payload{URL: args[0]})
			report()
			if err != nil {
				return err
			}

			feed, err := sample.FeedOf(results)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return errors.Wrap(enc.Encode(feed), "unable to print feed")
		},
	}

	run.register(cmd, 10*time.Second)
	cmd.Flags().StringVar(&mapping.Query, "query-path", mapping.Query, "JSON path of the query")
	cmd.Flags().StringVar(&mapping.Results, "results-path", mapping.Results, "JSON path of the records")
	cmd.Flags().StringVar(&mapping.Date, "date-path", mapping.Date, "record path of the date")
	cmd.Flags().StringVar(&mapping.User, "user-path", mapping.User, "record path of the user")
	cmd.Flags().StringVar(&mapping.Content, "content-path", mapping.Content, "record path of the content")

	return cmd
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}

	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func initLogger(level, format string, wrt io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(level))
	if err != nil {
		return nil, errors.Errorf("invalid log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(wrt, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(wrt, opts)), nil
	default:
		return nil, errors.Errorf("invalid log format %q", format)
	}
}
