// Package telemetry publishes pipeline events to an MQTT broker. It is an
// optional reporting path: when no broker is configured, the nop publisher
// is used and the pipeline runs fully offline.
package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/voicerover-io/voicerover/pkg/log"
)

// Event is one pipeline occurrence worth reporting.
type Event struct {
	// Event names the occurrence: "dispatch", "parse_failed", "stop".
	Event string `json:"event"`

	// Command is the command kind, when one is involved.
	Command string `json:"command,omitempty"`

	// OK reports whether the occurrence succeeded.
	OK bool `json:"ok"`

	// Response carries the device's reply, when one arrived.
	Response map[string]any `json:"response,omitempty"`

	// Timestamp is seconds since the epoch.
	Timestamp int64 `json:"ts"`
}

// Publisher sends events upstream. Publish is fire-and-forget: a slow or
// absent broker must never stall the pipeline.
type Publisher interface {
	Start(ctx context.Context) error
	Publish(event Event)
	Close(ctx context.Context)
}

// NewNop returns a publisher that drops everything.
func NewNop() Publisher { return nop{} }

type nop struct{}

func (nop) Start(context.Context) error { return nil }
func (nop) Publish(Event)               {}
func (nop) Close(context.Context)       {}

// Config holds the broker settings.
type Config struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	TopicRoot      string
	RoverID        string
	QoS            int
	KeepAlive      uint16
	ConnectTimeout time.Duration

	// InsecureSkipVerify disables broker certificate verification.
	InsecureSkipVerify bool
}

// mqttPublisher publishes over paho's auto-reconnecting connection
// manager; broker outages are absorbed by its internal backoff.
type mqttPublisher struct {
	cfg    Config
	cm     *autopaho.ConnectionManager
	logger log.Logger
}

// NewPublisher creates an MQTT-backed publisher.
func NewPublisher(cfg Config, logger log.Logger) (Publisher, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("telemetry broker url is required")
	}
	if _, err := url.Parse(cfg.BrokerURL); err != nil {
		return nil, fmt.Errorf("invalid telemetry broker url: %w", err)
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 60
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("rover-agent-%s", cfg.RoverID)
	}
	return &mqttPublisher{cfg: cfg, logger: logger.WithName("telemetry")}, nil
}

func (p *mqttPublisher) Start(ctx context.Context) error {
	brokerURL, _ := url.Parse(p.cfg.BrokerURL) // already validated

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     p.cfg.KeepAlive,
		CleanStartOnInitialConnection: true,
		ReconnectBackoff:              autopaho.NewConstantBackoff(3 * time.Second),
		ConnectTimeout:                p.cfg.ConnectTimeout,
		ConnectUsername:               p.cfg.Username,
		ConnectPassword:               []byte(p.cfg.Password),
		TlsCfg:                        &tls.Config{InsecureSkipVerify: p.cfg.InsecureSkipVerify},
		OnConnectionUp: func(*autopaho.ConnectionManager, *paho.Connack) {
			p.logger.Info("telemetry broker connected", "broker", p.cfg.BrokerURL)
		},
		OnConnectError: func(err error) {
			p.logger.Warn("telemetry broker connect error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: p.cfg.ClientID,
			OnClientError: func(err error) {
				p.logger.Warn("telemetry client error", err)
			},
		},
	}

	p.logger.Info("starting telemetry publisher", "broker", p.cfg.BrokerURL, "clientID", p.cfg.ClientID)

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return err
	}
	p.cm = cm
	return nil
}

func (p *mqttPublisher) Publish(event Event) {
	if p.cm == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("cannot marshal telemetry event", err)
		return
	}

	topic := fmt.Sprintf("%s/rover/%s/events", p.cfg.TopicRoot, p.cfg.RoverID)

	// Bounded and best-effort: telemetry never stalls dispatch.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := p.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     byte(p.cfg.QoS),
		Payload: payload,
	}); err != nil {
		p.logger.Debug("telemetry publish failed", "topic", topic, "reason", err.Error())
	}
}

func (p *mqttPublisher) Close(ctx context.Context) {
	if p.cm != nil {
		_ = p.cm.Disconnect(ctx)
		p.logger.Info("telemetry publisher disconnected")
	}
}
