package log

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Options contains configuration for the logger.
type Options struct {
	// Name is added as a field to every entry when set.
	Name string `json:"name,omitempty" mapstructure:"name"`

	// Level is the minimum level to output: debug, info, warn or error.
	Level string `json:"level,omitempty" mapstructure:"level"`

	// Format is "json" or "console".
	Format string `json:"format,omitempty" mapstructure:"format"`

	// EnableColor colorizes console output.
	EnableColor bool `json:"enable-color,omitempty" mapstructure:"enable-color"`

	// DisableCaller drops the file:line annotation.
	DisableCaller bool `json:"disable-caller,omitempty" mapstructure:"disable-caller"`

	// CallerSkip adjusts caller annotation for wrappers.
	CallerSkip int `json:"caller-skip,omitempty" mapstructure:"caller-skip"`

	// OutputPaths lists sinks; "stdout"/"stderr" or file paths.
	OutputPaths []string `json:"output-paths,omitempty" mapstructure:"output-paths"`
}

// NewOptions returns Options with defaults.
func NewOptions() *Options {
	return &Options{
		Level:       "info",
		Format:      "console",
		EnableColor: true,
		CallerSkip:  2,
		OutputPaths: []string{"stdout"},
	}
}

// Validate checks the option values.
func (o *Options) Validate() []error {
	var errs []error
	switch o.Format {
	case "json", "console", "":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", o.Format))
	}
	return errs
}

// AddFlags binds the options to command-line flags.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Name, "log.name", o.Name, "An optional name for the logger.")
	fs.StringVar(&o.Level, "log.level", o.Level, "The minimum log level to output (debug, info, warn, error).")
	fs.StringVar(&o.Format, "log.format", o.Format, "The log output format ('json' or 'console').")
	fs.BoolVar(&o.EnableColor, "log.enable-color", o.EnableColor, "Enable colorized output for the console format.")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Disable the caller field in logs.")
	fs.IntVar(&o.CallerSkip, "log.caller-skip", o.CallerSkip, "The number of caller frames to skip.")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "Log output paths (e.g. 'stdout', '/var/log/rover.log').")
}
