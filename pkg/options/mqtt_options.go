package options

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*MqttOptions)(nil)

// MqttOptions configures the optional telemetry broker connection. An
// empty broker URL disables telemetry.
type MqttOptions struct {
	Broker   string `json:"broker" mapstructure:"broker"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	ClientID string `json:"client-id" mapstructure:"client-id"`

	// QoS for event publishes.
	QoS int `json:"qos" mapstructure:"qos"`

	// KeepAlive in seconds.
	KeepAlive uint16 `json:"keep-alive" mapstructure:"keep-alive"`

	// ConnectTimeout for the initial connection.
	ConnectTimeout time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`

	// TopicRoot prefixes all event topics: {TopicRoot}/rover/{id}/events.
	TopicRoot string `json:"topic-root" mapstructure:"topic-root"`

	// InsecureSkipVerify disables broker certificate verification. Off by
	// default; only for brokers with self-signed certificates.
	InsecureSkipVerify bool `json:"insecure-skip-verify" mapstructure:"insecure-skip-verify"`
}

// NewMqttOptions returns MqttOptions with defaults. The broker is empty
// by default: telemetry is opt-in.
func NewMqttOptions() *MqttOptions {
	return &MqttOptions{
		QoS:            1,
		KeepAlive:      60,
		ConnectTimeout: 5 * time.Second,
		TopicRoot:      "voicerover/v1",
	}
}

// Enabled reports whether a broker is configured.
func (o *MqttOptions) Enabled() bool {
	return o != nil && o.Broker != ""
}

// Validate checks the option values.
func (o *MqttOptions) Validate() []error {
	if o == nil || !o.Enabled() {
		return nil
	}

	var errs []error
	if _, err := url.Parse(o.Broker); err != nil {
		errs = append(errs, fmt.Errorf("invalid mqtt broker url: %w", err))
	}
	if o.QoS < 0 || o.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", o.QoS))
	}
	return errs
}

// AddFlags binds the group to the given flag set.
func (o *MqttOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Broker, "mqtt.broker", o.Broker, "Telemetry broker URL (empty disables telemetry).")
	fs.StringVar(&o.Username, "mqtt.username", o.Username, "Username for broker authentication.")
	fs.StringVar(&o.Password, "mqtt.password", o.Password, "Password for broker authentication.")
	fs.StringVar(&o.ClientID, "mqtt.client-id", o.ClientID, "Explicit client ID (defaults to rover-agent-<id>).")
	fs.IntVar(&o.QoS, "mqtt.qos", o.QoS, "QoS level for event publishes.")
	fs.Uint16Var(&o.KeepAlive, "mqtt.keep-alive", o.KeepAlive, "Keep-alive interval in seconds.")
	fs.DurationVar(&o.ConnectTimeout, "mqtt.connect-timeout", o.ConnectTimeout, "Timeout for establishing the broker connection.")
	fs.StringVar(&o.TopicRoot, "mqtt.topic-root", o.TopicRoot, "Topic prefix for telemetry events.")
	fs.BoolVar(&o.InsecureSkipVerify, "mqtt.insecure-skip-verify", o.InsecureSkipVerify, "Skip broker certificate verification (self-signed brokers only).")
}
