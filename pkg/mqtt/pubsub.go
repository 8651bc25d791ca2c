package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connTimeout    = 10
	reconnTimeout  = 1
	disconnTimeout = 250
)

var (
	errPublishTimeout     = errors.New("failed to publish due to timeout reached")
	errSubscribeTimeout   = errors.New("failed to subscribe due to timeout reached")
	errUnsubscribeTimeout = errors.New("failed to unsubscribe due to timeout reached")
	errEmptyTopic         = errors.New("empty topic")
	errEmptyID            = errors.New("empty ID")
	errNilHandler         = errors.New("nil message handler")

	statusTopicTemplate = "%s/status"
	lwtPayloadTemplate  = `{"status":"offline","instance_id":"%s"}`
)

type Config struct {
	URL         string        `env:"URL"          envDefault:""`
	QoS         byte          `env:"QOS"          envDefault:"1"`
	Username    string        `env:"USERNAME"     envDefault:""`
	Password    string        `env:"PASSWORD"     envDefault:""`
	TopicPrefix string        `env:"TOPIC_PREFIX" envDefault:"contestd"`
	Timeout     time.Duration `env:"TIMEOUT"      envDefault:"30s"`
}

type pubsub struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

// Handler receives the raw payload of every message on a subscribed topic.
type Handler func(topic string, payload []byte) error

type PubSub interface {
	Publish(ctx context.Context, topic string, msg any) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Unsubscribe(ctx context.Context, topic string) error
	Disconnect(ctx context.Context) error
}

// NewPubSub connects to the broker. The broker announces the instance as
// offline on <prefix>/status when the connection drops.
func NewPubSub(cfg Config, id string, logger *slog.Logger) (PubSub, error) {
	if id == "" {
		return nil, errEmptyID
	}

	client, err := newClient(cfg, id, logger)
	if err != nil {
		return nil, err
	}

	return &pubsub{
		client:  client,
		qos:     cfg.QoS,
		timeout: cfg.Timeout,
		logger:  logger,
	}, nil
}

func (ps *pubsub) Publish(ctx context.Context, topic string, msg any) error {
	if topic == "" {
		return errEmptyTopic
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return ps.wait(ps.client.Publish(topic, ps.qos, false, data), errPublishTimeout)
}

func (ps *pubsub) wait(token mqtt.Token, errTimeout error) error {
	if token.Error() != nil {
		return token.Error()
	}
	if !token.WaitTimeout(ps.timeout) {
		return errTimeout
	}

	return token.Error()
}

func (ps *pubsub) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if topic == "" {
		return errEmptyTopic
	}

	if handler == nil {
		return errNilHandler
	}

	return ps.wait(ps.client.Subscribe(topic, ps.qos, ps.mqttHandler(handler)), errSubscribeTimeout)
}

func (ps *pubsub) Unsubscribe(ctx context.Context, topic string) error {
	if topic == "" {
		return errEmptyTopic
	}

	return ps.wait(ps.client.Unsubscribe(topic), errUnsubscribeTimeout)
}

func (ps *pubsub) Disconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		ps.client.Disconnect(disconnTimeout)

		return nil
	}
}

func newClient(cfg Config, id string, logger *slog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(id).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connTimeout * time.Second).
		SetMaxReconnectInterval(reconnTimeout * time.Minute)

	if cfg.TopicPrefix != "" {
		topic := fmt.Sprintf(statusTopicTemplate, cfg.TopicPrefix)
		opts.SetWill(topic, fmt.Sprintf(lwtPayloadTemplate, id), cfg.QoS, false)
	}

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("MQTT connection established")
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		args := []any{}
		if err != nil {
			args = append(args, slog.Any("error", err))
		}

		logger.Info("MQTT connection lost", args...)
	})

	opts.SetReconnectingHandler(func(_ mqtt.Client, options *mqtt.ClientOptions) {
		args := []any{}
		if options != nil {
			args = append(args,
				slog.String("client_id", options.ClientID),
				slog.String("username", options.Username),
			)
		}

		logger.Info("MQTT reconnecting", args...)
	})

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if token.Error() != nil {
		return nil, errors.Join(errors.New("failed to connect to MQTT broker"), token.Error())
	}

	if ok := token.WaitTimeout(cfg.Timeout); !ok {
		return nil, errors.New("timeout reached while connecting to MQTT broker")
	}

	return client, nil
}

func (ps *pubsub) mqttHandler(h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, m mqtt.Message) {
		if err := h(m.Topic(), m.Payload()); err != nil {
			ps.logger.Warn("failed to handle message", slog.String("topic", m.Topic()), slog.Any("error", err))
		}
		m.Ack()
	}
}
