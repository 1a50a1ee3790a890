package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/xsx/internal/services"
	"github.com/desertthunder/xsx/internal/shared"
	"github.com/desertthunder/xsx/internal/ui"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	transport  http.RoundTripper
	rates      *services.RateBook
	logger     *log.Logger
	output     io.Writer
	palette    *ui.Palette
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Transport  http.RoundTripper // used by every account client, defaults to http.DefaultTransport
	Logger     *log.Logger
	Output     io.Writer
	Palette    *ui.Palette
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Palette == nil {
		opts.Palette = ui.Default
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		transport:  opts.Transport,
		rates:      services.NewRateBook(services.PacingFromConfig(opts.Config)),
		logger:     opts.Logger,
		output:     opts.Output,
		palette:    opts.Palette,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Log requests and responses",
		},
		&cli.StringFlag{
			Name:    "source-token",
			Usage:   "Source account token (overrides config)",
			Sources: cli.EnvVars("XSX_SOURCE_TOKEN"),
		},
		&cli.StringFlag{
			Name:    "dest-token",
			Usage:   "Destination account token (overrides config)",
			Sources: cli.EnvVars("XSX_DEST_TOKEN"),
		},
		&cli.StringFlag{
			Name:  "source",
			Usage: "Source account domain prefix (overrides config)",
		},
		&cli.StringFlag{
			Name:  "dest",
			Usage: "Destination account domain prefix (overrides config)",
		},
	}
}

// Before loads the config file named by --config, when present, and applies flag overrides.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	r.configPath = cmd.String("config")
	if _, err := os.Stat(r.configPath); err == nil {
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.setConfig(config)
	} else {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
	}

	if v := cmd.String("source"); v != "" {
		r.config.Source.Domain = v
	}
	if v := cmd.String("source-token"); v != "" {
		r.config.Source.Token = v
	}
	if v := cmd.String("dest"); v != "" {
		r.config.Destination.Domain = v
	}
	if v := cmd.String("dest-token"); v != "" {
		r.config.Destination.Token = v
	}
	return ctx, nil
}

func (r *Runner) setConfig(config *shared.Config) {
	r.config = config
	r.rates = services.NewRateBook(services.PacingFromConfig(config))
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, checkCommand, cloneCommand, seedCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// account builds the API binding for one side of the config. Both sides share the runner's
// rate book, so two accounts on one host pace as one.
func (r *Runner) account(side string) (*services.Account, error) {
	if err := r.config.Validate(); err != nil {
		return nil, err
	}
	acct, err := r.config.Account(side)
	if err != nil {
		return nil, err
	}

	opts := services.OptionsFromConfig(r.config, acct, r.rates, shared.WithLogger(r.logger, "account", acct.Domain))
	opts.Transport = r.transport
	client, err := services.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("%s account: %w", side, err)
	}
	return services.NewAccount(acct.Domain, client, r.config.Clone.PageSize, r.logger), nil
}

// openDB opens and migrates the history database.
func (r *Runner) openDB() (*sql.DB, error) {
	return shared.OpenDatabase(r.config.Database)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeLine(s string) {
	if s == "" {
		return
	}
	r.writePlain("%s\n", s)
}
