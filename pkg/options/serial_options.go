package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SerialOptions)(nil)

// SerialOptions configures the link to the rover controller.
type SerialOptions struct {
	// Device is an explicit device path. Empty enables auto-detection.
	Device string `json:"device" mapstructure:"device"`

	// Globs are the candidate device path patterns for auto-detection.
	Globs []string `json:"globs" mapstructure:"globs"`

	// Baud is the serial line rate.
	Baud int `json:"baud" mapstructure:"baud"`

	// PollInterval bounds one blocking read while waiting for a response.
	PollInterval time.Duration `json:"poll-interval" mapstructure:"poll-interval"`

	// ResponseTimeout bounds the wait for a device response after a send.
	ResponseTimeout time.Duration `json:"response-timeout" mapstructure:"response-timeout"`

	// MaxBackoff caps the exponential reconnect wait.
	MaxBackoff time.Duration `json:"max-backoff" mapstructure:"max-backoff"`
}

// NewSerialOptions returns SerialOptions with defaults.
func NewSerialOptions() *SerialOptions {
	return &SerialOptions{
		Globs:           []string{"/dev/ttyUSB*", "/dev/ttyACM*"},
		Baud:            115200,
		PollInterval:    50 * time.Millisecond,
		ResponseTimeout: time.Second,
		MaxBackoff:      30 * time.Second,
	}
}

// Validate checks the option values.
func (o *SerialOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Baud <= 0 {
		errs = append(errs, fmt.Errorf("serial baud rate must be positive, got %d", o.Baud))
	}
	if o.Device == "" && len(o.Globs) == 0 {
		errs = append(errs, fmt.Errorf("either an explicit serial device or at least one glob is required"))
	}
	if o.MaxBackoff <= 0 {
		errs = append(errs, fmt.Errorf("serial max backoff must be positive"))
	}
	return errs
}

// AddFlags binds the group to the given flag set.
func (o *SerialOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Device, "serial.device", o.Device, "Explicit serial device path (empty enables auto-detection).")
	fs.StringSliceVar(&o.Globs, "serial.globs", o.Globs, "Candidate device path globs for auto-detection.")
	fs.IntVar(&o.Baud, "serial.baud", o.Baud, "Serial baud rate.")
	fs.DurationVar(&o.PollInterval, "serial.poll-interval", o.PollInterval, "Bound on a single blocking serial read.")
	fs.DurationVar(&o.ResponseTimeout, "serial.response-timeout", o.ResponseTimeout, "Wait for the device response after each command.")
	fs.DurationVar(&o.MaxBackoff, "serial.max-backoff", o.MaxBackoff, "Cap on the exponential reconnect backoff.")
}
