package rover

import (
	"fmt"
	"os"

	"github.com/voicerover-io/voicerover/internal/rover/dispatcher"
	"github.com/voicerover-io/voicerover/internal/rover/parser"
	"github.com/voicerover-io/voicerover/internal/rover/queue"
	"github.com/voicerover-io/voicerover/internal/rover/serial"
	"github.com/voicerover-io/voicerover/internal/rover/server"
	"github.com/voicerover-io/voicerover/internal/rover/telemetry"
	"github.com/voicerover-io/voicerover/pkg/log"
	"github.com/voicerover-io/voicerover/pkg/options"
)

// Config assembles the validated option groups into a runnable Agent.
type Config struct {
	RoverID string

	SerialOptions *options.SerialOptions
	QueueOptions  *options.QueueOptions
	ParserOptions *options.ParserOptions
	HTTPOptions   *options.HTTPOptions
	MqttOptions   *options.MqttOptions

	// Recognizer overrides the utterance source; nil means stdin.
	Recognizer Recognizer
}

// NewAgent wires up the full pipeline.
func (cfg *Config) NewAgent() (*Agent, error) {
	logger := log.Default()

	id := cfg.RoverID
	if id == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("no rover id and hostname unavailable: %w", err)
		}
		id = host
	}

	p := parser.New(parser.Config{
		WakeWord:         cfg.ParserOptions.WakeWord,
		AttachmentWindow: cfg.ParserOptions.AttachmentWindow,
		DefaultSpeed:     cfg.ParserOptions.DefaultSpeed,
		SpinSpeed:        cfg.ParserOptions.SpinSpeed,
		DefaultAngle:     cfg.ParserOptions.DefaultAngle,
	})

	q := queue.New(cfg.QueueOptions.Capacity)

	transport := serial.New(serial.Config{
		Device:       cfg.SerialOptions.Device,
		Globs:        cfg.SerialOptions.Globs,
		Baud:         cfg.SerialOptions.Baud,
		PollInterval: cfg.SerialOptions.PollInterval,
		MaxBackoff:   cfg.SerialOptions.MaxBackoff,
	}, logger)

	watcher := serial.NewDeviceWatcher(cfg.SerialOptions.Globs, logger)

	publisher := telemetry.Publisher(telemetry.NewNop())
	if cfg.MqttOptions.Enabled() {
		var err error
		publisher, err = telemetry.NewPublisher(telemetry.Config{
			BrokerURL:          cfg.MqttOptions.Broker,
			ClientID:           cfg.MqttOptions.ClientID,
			Username:           cfg.MqttOptions.Username,
			Password:           cfg.MqttOptions.Password,
			TopicRoot:          cfg.MqttOptions.TopicRoot,
			RoverID:            id,
			QoS:                cfg.MqttOptions.QoS,
			KeepAlive:          cfg.MqttOptions.KeepAlive,
			ConnectTimeout:     cfg.MqttOptions.ConnectTimeout,
			InsecureSkipVerify: cfg.MqttOptions.InsecureSkipVerify,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to init telemetry: %w", err)
		}
	}

	sink := &telemetrySink{publisher: publisher}
	disp := dispatcher.New(dispatcher.Config{
		DequeueTimeout:  cfg.QueueOptions.DequeueTimeout,
		ResponseTimeout: cfg.SerialOptions.ResponseTimeout,
	}, q, transport, watcher, sink, logger)

	var diag *server.Server
	if !cfg.HTTPOptions.Disabled {
		diag = server.New(cfg.HTTPOptions.Addr,
			func() bool { return transport.State() == serial.StateConnected },
			func() server.QueueSnapshot {
				return server.QueueSnapshot{Size: q.Size(), Capacity: q.Capacity()}
			},
			logger)
	}

	recognizer := cfg.Recognizer
	if recognizer == nil {
		recognizer = NewStdinRecognizer()
	}

	return NewAgent(id, p, q, transport, disp, diag, publisher, recognizer, logger), nil
}
