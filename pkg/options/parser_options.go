package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*ParserOptions)(nil)

// ParserOptions configures the natural-language command parser.
type ParserOptions struct {
	// WakeWord gates utterances; only the emergency stop bypasses it.
	WakeWord string `json:"wake-word" mapstructure:"wake-word"`

	// AttachmentWindow is the character width searched around a match
	// for speed modifiers and shape sizes.
	AttachmentWindow int `json:"attachment-window" mapstructure:"attachment-window"`

	// DefaultSpeed applies to general motion without an explicit speed
	// or modifier; SpinSpeed applies to the spin trick.
	DefaultSpeed float64 `json:"default-speed" mapstructure:"default-speed"`
	SpinSpeed    float64 `json:"spin-speed" mapstructure:"spin-speed"`

	// DefaultAngle applies to left/right turns without an explicit angle.
	DefaultAngle float64 `json:"default-angle" mapstructure:"default-angle"`
}

// NewParserOptions returns ParserOptions with defaults.
func NewParserOptions() *ParserOptions {
	return &ParserOptions{
		WakeWord:         "jarvis",
		AttachmentWindow: 12,
		DefaultSpeed:     0.4,
		SpinSpeed:        0.5,
		DefaultAngle:     90,
	}
}

// Validate checks the option values.
func (o *ParserOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.WakeWord == "" {
		errs = append(errs, fmt.Errorf("a wake word is required"))
	}
	if o.AttachmentWindow <= 0 {
		errs = append(errs, fmt.Errorf("attachment window must be positive, got %d", o.AttachmentWindow))
	}
	for name, v := range map[string]float64{"default-speed": o.DefaultSpeed, "spin-speed": o.SpinSpeed} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("parser %s must be in [0, 1], got %g", name, v))
		}
	}
	return errs
}

// AddFlags binds the group to the given flag set.
func (o *ParserOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.WakeWord, "parser.wake-word", o.WakeWord, "Wake word that gates utterances.")
	fs.IntVar(&o.AttachmentWindow, "parser.attachment-window", o.AttachmentWindow, "Character window searched around a match for modifiers.")
	fs.Float64Var(&o.DefaultSpeed, "parser.default-speed", o.DefaultSpeed, "Default speed for motion commands.")
	fs.Float64Var(&o.SpinSpeed, "parser.spin-speed", o.SpinSpeed, "Default speed for the spin trick.")
	fs.Float64Var(&o.DefaultAngle, "parser.default-angle", o.DefaultAngle, "Default angle in degrees for left/right turns.")
}
