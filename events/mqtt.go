package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/oklog/ulid/v2"
)

// DefaultQoS is the default Quality of Service level for MQTT
const DefaultQoS = 1

// DefaultConnectTimeout is the default timeout for connecting to the MQTT broker
const DefaultConnectTimeout = 10 * time.Second

// DefaultPublishTimeout bounds a single forwarded publish.
const DefaultPublishTimeout = 5 * time.Second

// MQTTForwarder republishes bus events to an MQTT broker under
// {prefix}/{topic with dots as slashes}, e.g. editormcp/client/connected.
type MQTTForwarder struct {
	client  paho.Client
	prefix  string
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
	subs    []*Subscription
}

// MQTTOption represents a configuration option for the forwarder
type MQTTOption func(*mqttSettings)

type mqttSettings struct {
	clientID string
	username string
	password string
	qos      byte
}

// WithClientID sets the client ID
func WithClientID(clientID string) MQTTOption {
	return func(s *mqttSettings) {
		s.clientID = clientID
	}
}

// WithCredentials sets the username and password for MQTT broker authentication
func WithCredentials(username, password string) MQTTOption {
	return func(s *mqttSettings) {
		s.username = username
		s.password = password
	}
}

// WithQoS sets the MQTT Quality of Service level (0, 1 or 2).
func WithQoS(qos byte) MQTTOption {
	return func(s *mqttSettings) {
		if qos <= 2 {
			s.qos = qos
		}
	}
}

// NewMQTTForwarder creates a forwarder for brokerURL (e.g. tcp://localhost:1883).
func NewMQTTForwarder(brokerURL, prefix string, logger *slog.Logger, options ...MQTTOption) *MQTTForwarder {
	settings := mqttSettings{
		clientID: "editormcp-" + strings.ToLower(ulid.Make().String()),
		qos:      DefaultQoS,
	}
	for _, option := range options {
		option(&settings)
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(settings.clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(DefaultConnectTimeout)
	if settings.username != "" {
		opts.SetUsername(settings.username)
		opts.SetPassword(settings.password)
	}

	f := newForwarder(nil, prefix, settings.qos, logger)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		f.logger.Warn("mqtt connection lost", "broker", brokerURL, "error", err)
	})
	f.client = paho.NewClient(opts)
	return f
}

func newForwarder(client paho.Client, prefix string, qos byte, logger *slog.Logger) *MQTTForwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTForwarder{
		client:  client,
		prefix:  strings.TrimSuffix(prefix, "/"),
		qos:     qos,
		timeout: DefaultPublishTimeout,
		logger:  logger,
	}
}

// MQTTTopic maps a bus topic to its broker topic.
func (f *MQTTForwarder) MQTTTopic(topic string) string {
	mapped := strings.ReplaceAll(topic, ".", "/")
	if f.prefix == "" {
		return mapped
	}
	return f.prefix + "/" + mapped
}

// Start connects to the broker and subscribes to every server topic on bus.
func (f *MQTTForwarder) Start(bus *Bus) error {
	token := f.client.Connect()
	if !token.WaitTimeout(DefaultConnectTimeout) {
		return errors.New("timed out connecting to mqtt broker")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to mqtt broker: %w", err)
	}

	for _, topic := range AllTopics {
		sub, err := bus.SubscribeRaw(topic, f.forward)
		if err != nil {
			f.Stop()
			return err
		}
		f.subs = append(f.subs, sub)
	}
	f.logger.Info("forwarding events to mqtt", "prefix", f.prefix, "topics", len(AllTopics))
	return nil
}

func (f *MQTTForwarder) forward(_ context.Context, topic string, payload []byte) error {
	if !f.client.IsConnected() {
		return errors.New("not connected to MQTT broker")
	}
	token := f.client.Publish(f.MQTTTopic(topic), f.qos, false, payload)
	if !token.WaitTimeout(f.timeout) {
		return fmt.Errorf("publish %s timed out", topic)
	}
	return token.Error()
}

// Stop unsubscribes from the bus and disconnects from the broker.
func (f *MQTTForwarder) Stop() {
	for _, sub := range f.subs {
		sub.Unsubscribe()
	}
	f.subs = nil
	if f.client != nil && f.client.IsConnected() {
		f.client.Disconnect(250)
	}
}
