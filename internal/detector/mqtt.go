package detector

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freedomtukun/free-yoga/internal/models"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink receives decoded detections for a practice session.
type Sink interface {
	Observe(id uuid.UUID, kp *models.KeypointSet) (bool, error)
}

type ListenerConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string // detections arrive on <prefix>/<session id>/keypoints
}

// MQTTListener feeds detections published by camera clients over MQTT into
// practice sessions.
type MQTTListener struct {
	log    *zap.Logger
	client mqtt.Client
	prefix string
	sink   Sink
}

func NewMQTTListener(log *zap.Logger, cfg ListenerConfig, sink Sink) *MQTTListener {
	l := &MQTTListener{
		log:    log.With(zap.String("component", "mqtt")),
		prefix: strings.TrimSuffix(cfg.TopicPrefix, "/"),
		sink:   sink,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		l.log.Warn("MQTT connection lost", zap.Error(err))
	})
	// Subscriptions are not kept across reconnects with a clean session.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if token := c.Subscribe(l.Topic(), 0, l.handle); token.Wait() && token.Error() != nil {
			l.log.Error("Failed to subscribe to detections", zap.String("topic", l.Topic()), zap.Error(token.Error()))
			return
		}
		l.log.Info("Subscribed to detections", zap.String("topic", l.Topic()))
	})
	l.client = mqtt.NewClient(opts)
	return l
}

// Topic is the subscription filter.
func (l *MQTTListener) Topic() string {
	return l.prefix + "/+/keypoints"
}

// Start connects to the broker; the subscription is made on connect.
func (l *MQTTListener) Start() error {
	if token := l.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return nil
}

func (l *MQTTListener) Stop() {
	l.client.Disconnect(250)
	l.log.Info("MQTT client disconnected")
}

func (l *MQTTListener) handle(_ mqtt.Client, msg mqtt.Message) {
	id, err := l.sessionID(msg.Topic())
	if err != nil {
		l.log.Warn("Ignoring detection on unexpected topic", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}

	kp, err := Decode(msg.Payload())
	if err != nil {
		l.log.Warn("Dropping malformed detection", zap.String("session", id.String()), zap.Error(err))
		return
	}

	accepted, err := l.sink.Observe(id, kp)
	if err != nil {
		l.log.Debug("Detection for unavailable session", zap.String("session", id.String()), zap.Error(err))
		return
	}
	if !accepted {
		l.log.Debug("Detection dropped, session busy", zap.String("session", id.String()))
	}
}

// sessionID extracts the id from <prefix>/<id>/keypoints.
func (l *MQTTListener) sessionID(topic string) (uuid.UUID, error) {
	rest, ok := strings.CutPrefix(topic, l.prefix+"/")
	if !ok {
		return uuid.Nil, fmt.Errorf("topic outside prefix %q", l.prefix)
	}
	id, ok := strings.CutSuffix(rest, "/keypoints")
	if !ok || strings.Contains(id, "/") {
		return uuid.Nil, fmt.Errorf("topic %q does not match %s", topic, l.Topic())
	}
	return uuid.Parse(id)
}
