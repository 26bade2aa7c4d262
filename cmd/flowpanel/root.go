package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"flowpanel/internal/config"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputCSV  = "csv"
)

// cli carries the global flags and the resources opened for one invocation.
type cli struct {
	configFile string
	envFile    string
	verbose    bool
	output     string

	cfg    config.Config
	logger *zap.Logger
	app    *app
}

// run executes one command line and releases everything it opened.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	c := &cli{}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if cerr := c.close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "flowpanel",
		Short: "Flow cytometry panel design: reagents, tubes, master mixes and run plans",
		Long: `flowpanel keeps the antibody catalog and tube layout of a staining project
and derives the tube × reagent matrix, the surface and intracellular master
mixes, the randomized acquisition plan and the printable staining protocol.

Settings come from flowpanel.yaml, a .env file and FLOWPANEL_* variables.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.configFile, "config", "", "config file (default ./flowpanel.yaml when present)")
	flags.StringVar(&c.envFile, "env-file", "", "dotenv file (default ./.env when present)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")
	flags.StringVarP(&c.output, "output", "o", outputText, "output format: text, json or csv where supported")

	root.AddCommand(
		c.reagentCmd(),
		c.tubeCmd(),
		c.volumesCmd(),
		c.projectCmd(),
		c.matrixCmd(),
		c.masterMixCmd(),
		c.planCmd(),
		c.protocolCmd(),
		c.checkCmd(),
		c.exportCmd(),
		c.serveCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	switch c.output {
	case outputText, outputJSON, outputCSV:
	default:
		return fmt.Errorf("unknown output format %q", c.output)
	}
	cfg, err := config.Load(config.Options{ConfigFile: c.configFile, EnvFile: c.envFile})
	if err != nil {
		return err
	}
	c.cfg = cfg
	logger, err := buildLogger(cfg.Log, c.verbose)
	if err != nil {
		return err
	}
	c.logger = logger
	if cfg.File != "" {
		logger.Debug("config loaded", zap.String("file", cfg.File))
	}
	a, err := openApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

func (c *cli) close() error {
	var err error
	if c.app != nil {
		err = c.app.Close()
		c.app = nil
	}
	if c.logger != nil {
		// Syncing stderr fails on some terminals; that is not worth an exit code.
		_ = c.logger.Sync()
	}
	return err
}

// buildLogger follows zap's production config with the configured level and
// encoding; verbose forces debug.
func buildLogger(settings config.LogSettings, verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(settings.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg.Level = level
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if settings.Encoding != "" {
		cfg.Encoding = settings.Encoding
	}
	if cfg.Encoding == "console" {
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

var errBlocking = errors.New("project has blocking rule violations")
