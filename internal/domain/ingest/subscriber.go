package ingest

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

type Config struct {
	BrokerURL string
	ClientID  string
	Topic     string
	Username  string
	Password  string
	QoS       byte
}

// Subscriber keeps an MQTT session open and hands every message to a Consumer.
type Subscriber struct {
	client   mqtt.Client
	topic    string
	consumer *Consumer
	logger   zerolog.Logger
}

func clientOptions(cfg Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(10 * time.Second)
	return opts
}

// Start connects to the broker and subscribes to cfg.Topic. Subscriptions
// are restored after a reconnect.
func Start(cfg Config, consumer *Consumer, logger zerolog.Logger) (*Subscriber, error) {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	s := &Subscriber{topic: cfg.Topic, consumer: consumer, logger: logger.With().Str("component", "mqtt").Logger()}

	opts := clientOptions(cfg)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if tok := c.Subscribe(s.topic, cfg.QoS, s.onMessage); tok.Wait() && tok.Error() != nil {
			s.logger.Error().Err(tok.Error()).Str("topic", s.topic).Msg("subscribe failed")
			return
		}
		s.logger.Info().Str("topic", s.topic).Msg("subscribed to device vitals")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn().Err(err).Msg("broker connection lost")
	})

	s.client = mqtt.NewClient(opts)
	if tok := s.client.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker: %w", tok.Error())
	}
	return s, nil
}

func (s *Subscriber) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if err := s.consumer.Handle(context.Background(), msg.Topic(), msg.Payload()); err != nil {
		s.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("device message rejected")
	}
}

func (s *Subscriber) IsConnected() bool {
	return s.client != nil && s.client.IsConnected()
}

func (s *Subscriber) Close() {
	if s.client == nil {
		return
	}
	s.client.Unsubscribe(s.topic).WaitTimeout(time.Second)
	s.client.Disconnect(250)
}
