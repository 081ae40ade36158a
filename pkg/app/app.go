// Package app builds command-line applications on top of cobra and
// viper. An App owns a root command, binds option groups to flags and
// merges values from an optional config file before running.
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/voicerover-io/voicerover/pkg/log"
)

// Options abstracts the option set an application runs with.
type Options interface {
	// AddFlags binds all option groups to the flag set.
	AddFlags(fs *pflag.FlagSet)

	// Complete fills in derived or defaulted values after flags and the
	// config file have been applied.
	Complete() error

	// Validate checks the completed options.
	Validate() error
}

// RunFunc is the application entry point invoked after options are
// complete and valid.
type RunFunc func() error

// App wraps a cobra command with option binding and config loading.
type App struct {
	name        string
	short       string
	description string
	options     Options
	runFunc     RunFunc
	silence     bool
	noConfig    bool
	noArgs      bool
	subcommands []*cobra.Command

	cmd        *cobra.Command
	configFile string
}

// Option configures an App.
type Option func(*App)

// WithDescription sets the long help text.
func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithOptions attaches the application's option set.
func WithOptions(opts Options) Option {
	return func(a *App) { a.options = opts }
}

// WithRunFunc sets the entry point.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.runFunc = run }
}

// WithSilence suppresses cobra's usage and error output; the
// application logs its own errors.
func WithSilence() Option {
	return func(a *App) { a.silence = true }
}

// WithNoConfig disables the --config flag and config file loading.
func WithNoConfig() Option {
	return func(a *App) { a.noConfig = true }
}

// WithDefaultValidArgs rejects any positional arguments.
func WithDefaultValidArgs() Option {
	return func(a *App) { a.noArgs = true }
}

// WithSubcommands attaches extra subcommands to the root command.
func WithSubcommands(cmds ...*cobra.Command) Option {
	return func(a *App) { a.subcommands = append(a.subcommands, cmds...) }
}

// NewApp builds an App from the given name, one-line summary and options.
func NewApp(name, short string, opts ...Option) *App {
	a := &App{
		name:  name,
		short: short,
	}
	for _, o := range opts {
		o(a)
	}
	a.buildCommand()
	return a
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.short,
		Long:          a.description,
		SilenceUsage:  a.silence,
		SilenceErrors: a.silence,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCommand()
		},
	}
	if a.noArgs {
		cmd.Args = cobra.NoArgs
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	if a.options != nil {
		a.options.AddFlags(cmd.Flags())
	}
	if !a.noConfig {
		cmd.Flags().StringVarP(&a.configFile, "config", "c", "", "Path to a configuration file (yaml, json or toml).")
	}
	cmd.AddCommand(a.subcommands...)

	a.cmd = cmd
}

// Command exposes the underlying cobra command, mainly for tests.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run executes the application and exits non-zero on error.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", a.name, err)
		os.Exit(1)
	}
}

func (a *App) runCommand() error {
	if a.options != nil {
		if !a.noConfig {
			if err := a.applyConfig(); err != nil {
				return err
			}
		}
		if err := a.options.Complete(); err != nil {
			return fmt.Errorf("failed to complete options: %w", err)
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
	}

	if a.runFunc == nil {
		return errors.New("no run function configured")
	}
	return a.runFunc()
}

// applyConfig merges a config file into the option set. Flags that were
// set explicitly on the command line win over file values.
func (a *App) applyConfig() error {
	v := viper.New()
	if a.configFile != "" {
		v.SetConfigFile(a.configFile)
	} else {
		v.SetConfigName(a.name)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "."+a.name))
		}
		v.AddConfigPath("/etc/" + a.name)
	}
	v.SetEnvPrefix(strings.ReplaceAll(strings.ToUpper(a.name), "-", "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.configFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	log.Info("loaded configuration file", "file", v.ConfigFileUsed())

	if err := v.BindPFlags(a.cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}
