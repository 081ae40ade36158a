package options

import (
	"github.com/spf13/pflag"
)

var _ IOptions = (*HTTPOptions)(nil)

// HTTPOptions configures the diagnostics HTTP server.
type HTTPOptions struct {
	// Addr is the bind address.
	Addr string `json:"addr" mapstructure:"addr"`

	// Disabled turns the diagnostics server off entirely.
	Disabled bool `json:"disabled" mapstructure:"disabled"`
}

// NewHTTPOptions returns HTTPOptions with defaults.
func NewHTTPOptions() *HTTPOptions {
	return &HTTPOptions{
		Addr: "127.0.0.1:8090",
	}
}

// Validate checks the option values.
func (o *HTTPOptions) Validate() []error {
	if o == nil || o.Disabled {
		return nil
	}

	var errs []error
	if err := ValidateAddress(o.Addr); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// AddFlags binds the group to the given flag set.
func (o *HTTPOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Addr, "http.addr", o.Addr, "Diagnostics server bind address.")
	fs.BoolVar(&o.Disabled, "http.disabled", o.Disabled, "Disable the diagnostics HTTP server.")
}
