package middleware

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nasa/GMSEC-API-sub012/config"
	"github.com/nasa/GMSEC-API-sub012/errors"
	"github.com/nasa/GMSEC-API-sub012/pkg/tlsutil"
)

// MQTT tuning
const (
	DefaultMQTTServer = "localhost:1883"
	mqttQoS           = 1
	mqttQuiesce       = 250 // milliseconds
	mqttTokenTimeout  = 10 * time.Second
)

// MQTTConnection speaks MQTT through Paho. Dots in subjects become topic
// levels, "*" becomes "+" and ">" becomes "#".
type MQTTConnection struct {
	client mqtt.Client
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]*mqttSub
}

type mqttSub struct {
	conn    *MQTTConnection
	subject string
	topic   string
}

func (s *mqttSub) Subject() string { return s.subject }

func (s *mqttSub) Unsubscribe() error {
	s.conn.mu.Lock()
	delete(s.conn.subs, s.topic)
	s.conn.mu.Unlock()
	return waitToken(context.Background(), s.conn.client.Unsubscribe(s.topic))
}

func newMQTT(cfg *config.Config, o *options) (*MQTTConnection, error) {
	tlsConfig, err := tlsutil.FromConfigTLS(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "middleware", "newMQTT", "load TLS configuration")
	}

	server := cfg.Value(config.KeyMiddlewareServer, DefaultMQTTServer)
	if !strings.Contains(server, "://") {
		scheme := "tcp://"
		if tlsConfig != nil {
			scheme = "ssl://"
		}
		server = scheme + server
	}

	clientID := cfg.Value(config.KeyClientName, "")
	if clientID == "" {
		clientID = "gmsec-" + uuid.NewString()[:8]
	}

	c := &MQTTConnection{logger: o.logger, subs: make(map[string]*mqttSub)}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(server)
	opts.SetClientID(clientID)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetUsername(cfg.Value(config.KeyMiddlewareUsername, ""))
	opts.SetPassword(cfg.Value(config.KeyMiddlewarePassword, ""))
	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Warn("MQTT connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.logger.Info("MQTT connected", "broker", server, "client_id", clientID)
	})

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// NewMQTT wraps an existing Paho client
func NewMQTT(client mqtt.Client, logger *slog.Logger) *MQTTConnection {
	if logger == nil {
		logger = slog.Default().With("component", "middleware", "mw-id", MQTT)
	}
	return &MQTTConnection{client: client, logger: logger, subs: make(map[string]*mqttSub)}
}

// waitToken waits for a Paho token, honouring ctx
func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttTokenTimeout):
		return errors.Newf(errors.ErrConnectionTimeout, "MQTT operation timed out after %s", mqttTokenTimeout)
	}
}

// Connect opens the MQTT session
func (c *MQTTConnection) Connect(ctx context.Context) error {
	if c.client.IsConnected() {
		return nil
	}
	if err := waitToken(ctx, c.client.Connect()); err != nil {
		return errors.WrapTransient(err, "MQTTConnection", "Connect", "connect to broker")
	}
	return nil
}

// Publish sends payload at QoS 1
func (c *MQTTConnection) Publish(ctx context.Context, subject string, payload []byte) error {
	if err := ValidSubject(subject); err != nil {
		return errors.WrapInvalid(err, "MQTTConnection", "Publish", "check subject")
	}
	if !c.client.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection, "MQTTConnection", "Publish", "publish "+subject)
	}
	if err := waitToken(ctx, c.client.Publish(ToTopic(subject), mqttQoS, false, payload)); err != nil {
		return errors.WrapTransient(err, "MQTTConnection", "Publish", "publish "+subject)
	}
	return nil
}

// Subscribe registers handler for pattern
func (c *MQTTConnection) Subscribe(ctx context.Context, pattern string, handler Handler) (Subscription, error) {
	if err := ValidPattern(pattern); err != nil {
		return nil, errors.WrapInvalid(err, "MQTTConnection", "Subscribe", "check subject")
	}
	if !c.client.IsConnected() {
		return nil, errors.WrapTransient(errors.ErrNoConnection, "MQTTConnection", "Subscribe", "subscribe "+pattern)
	}

	topic := ToTopic(pattern)
	token := c.client.Subscribe(topic, mqttQoS, func(_ mqtt.Client, msg mqtt.Message) {
		handler(ctx, FromTopic(msg.Topic()), msg.Payload())
	})
	if err := waitToken(ctx, token); err != nil {
		return nil, errors.WrapTransient(err, "MQTTConnection", "Subscribe", "subscribe "+pattern)
	}

	s := &mqttSub{conn: c, subject: pattern, topic: topic}
	c.mu.Lock()
	c.subs[topic] = s
	c.mu.Unlock()
	return s, nil
}

// Close disconnects after a short quiesce
func (c *MQTTConnection) Close(context.Context) error {
	c.mu.Lock()
	c.subs = make(map[string]*mqttSub)
	c.mu.Unlock()
	if c.client.IsConnected() {
		c.client.Disconnect(mqttQuiesce)
	}
	return nil
}

// Library identifies the driver
func (c *MQTTConnection) Library() string { return "paho.mqtt.golang" }

// ToTopic converts a dotted subject to an MQTT topic
func ToTopic(subject string) string {
	toks := strings.Split(subject, ".")
	for i, t := range toks {
		switch t {
		case "*":
			toks[i] = "+"
		case ">":
			toks[i] = "#"
		}
	}
	return strings.Join(toks, "/")
}

// FromTopic converts an MQTT topic back to a dotted subject
func FromTopic(topic string) string {
	return strings.ReplaceAll(topic, "/", ".")
}
