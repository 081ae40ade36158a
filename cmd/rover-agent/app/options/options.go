// Package options aggregates the rover-agent's option groups.
package options

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/voicerover-io/voicerover/internal/rover"
	"github.com/voicerover-io/voicerover/pkg/app"
	"github.com/voicerover-io/voicerover/pkg/log"
	"github.com/voicerover-io/voicerover/pkg/options"
)

// AgentOptions is the complete option set of the rover agent.
type AgentOptions struct {
	RoverID string `json:"rover-id" mapstructure:"rover-id"`

	SerialOptions *options.SerialOptions `json:"serial" mapstructure:"serial"`
	QueueOptions  *options.QueueOptions  `json:"queue" mapstructure:"queue"`
	ParserOptions *options.ParserOptions `json:"parser" mapstructure:"parser"`
	HTTPOptions   *options.HTTPOptions   `json:"http" mapstructure:"http"`
	MqttOptions   *options.MqttOptions   `json:"mqtt" mapstructure:"mqtt"`
	Log           *log.Options           `json:"log" mapstructure:"log"`
}

var _ app.Options = (*AgentOptions)(nil)

// NewAgentOptions returns AgentOptions with all defaults applied.
func NewAgentOptions() *AgentOptions {
	return &AgentOptions{
		SerialOptions: options.NewSerialOptions(),
		QueueOptions:  options.NewQueueOptions(),
		ParserOptions: options.NewParserOptions(),
		HTTPOptions:   options.NewHTTPOptions(),
		MqttOptions:   options.NewMqttOptions(),
		Log:           log.NewOptions(),
	}
}

// AddFlags binds every group to the flag set.
func (o *AgentOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.RoverID, "rover-id", o.RoverID, "Rover identity used in telemetry topics (defaults to the hostname).")
	o.SerialOptions.AddFlags(fs)
	o.QueueOptions.AddFlags(fs)
	o.ParserOptions.AddFlags(fs)
	o.HTTPOptions.AddFlags(fs)
	o.MqttOptions.AddFlags(fs)
	o.Log.AddFlags(fs)
}

// Complete fills in derived values.
func (o *AgentOptions) Complete() error {
	return nil
}

// Validate checks every group and aggregates the problems.
func (o *AgentOptions) Validate() error {
	var errs []error
	errs = append(errs, o.SerialOptions.Validate()...)
	errs = append(errs, o.QueueOptions.Validate()...)
	errs = append(errs, o.ParserOptions.Validate()...)
	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.MqttOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return errors.Join(errs...)
}

// Config converts the validated options into the agent configuration.
func (o *AgentOptions) Config() (*rover.Config, error) {
	return &rover.Config{
		RoverID:       o.RoverID,
		SerialOptions: o.SerialOptions,
		QueueOptions:  o.QueueOptions,
		ParserOptions: o.ParserOptions,
		HTTPOptions:   o.HTTPOptions,
		MqttOptions:   o.MqttOptions,
	}, nil
}
