package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/spec-kit/chat-widget/internal/config"
	"github.com/spec-kit/chat-widget/internal/rtms"
)

// MessageHandler receives each decoded push-channel event.
type MessageHandler func(*rtms.RawEvent)

// StatusHandler receives connectivity changes for user-facing notices.
type StatusHandler func(connected bool, err error)

// Channel is the push-channel surface the engine depends on.
type Channel interface {
	Connect(creds rtms.Credentials) error
	Subscribe() error
	OnMessage(handler MessageHandler)
	OnStatus(handler StatusHandler)
	Disconnect()
}

// MQTTChannel subscribes to the vendor push topic over MQTT/WSS.
type MQTTChannel struct {
	cfg    config.RealtimeConfig
	logger *zap.Logger

	client   mqtt.Client
	topic    string
	onEvent  MessageHandler
	onStatus StatusHandler
}

// NewMQTTChannel constructs a push-channel client for one widget session.
func NewMQTTChannel(cfg config.RealtimeConfig, logger *zap.Logger) *MQTTChannel {
	return &MQTTChannel{cfg: cfg, logger: logger}
}

// Connect dials the broker with the derived credentials. Reconnects are
// automatic; status transitions are reported through the status handler.
func (m *MQTTChannel) Connect(creds rtms.Credentials) error {
	broker := fmt.Sprintf("wss://%s:%d%s", creds.Host, m.cfg.Port, m.cfg.Path)
	m.topic = creds.Topic

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(creds.ClientID).
		SetUsername(creds.Username).
		SetPassword(creds.Password).
		SetProtocolVersion(4).
		SetAutoReconnect(true).
		SetKeepAlive(time.Duration(m.cfg.KeepAliveSeconds) * time.Second).
		SetConnectTimeout(time.Duration(m.cfg.ConnectTimeoutSeconds) * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		m.logger.Info("push channel connected", zap.String("broker", broker))
		m.notifyStatus(true, nil)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		m.logger.Warn("push channel disconnected", zap.Error(err))
		m.notifyStatus(false, err)
	}

	m.client = mqtt.NewClient(opts)
	token := m.client.Connect()
	if !token.WaitTimeout(time.Duration(m.cfg.ConnectTimeoutSeconds) * time.Second) {
		return fmt.Errorf("push channel connect timed out after %ds", m.cfg.ConnectTimeoutSeconds)
	}
	return token.Error()
}

// Subscribe attaches to the per-user topic at QoS 1.
func (m *MQTTChannel) Subscribe() error {
	if m.client == nil {
		return fmt.Errorf("push channel not connected")
	}
	token := m.client.Subscribe(m.topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		m.handlePayload(msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", m.topic, err)
	}
	m.logger.Info("subscribed to push topic", zap.String("topic", m.topic))
	return nil
}

// OnMessage registers the event handler.
func (m *MQTTChannel) OnMessage(handler MessageHandler) {
	m.onEvent = handler
}

// OnStatus registers the connectivity handler.
func (m *MQTTChannel) OnStatus(handler StatusHandler) {
	m.onStatus = handler
}

// Disconnect tears the connection down.
func (m *MQTTChannel) Disconnect() {
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	m.client = nil
}

func (m *MQTTChannel) handlePayload(payload []byte) {
	var raw rtms.RawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		m.logger.Warn("undecodable push payload", zap.Error(err), zap.Int("bytes", len(payload)))
		return
	}
	if m.onEvent != nil {
		m.onEvent(&raw)
	}
}

func (m *MQTTChannel) notifyStatus(connected bool, err error) {
	if m.onStatus != nil {
		m.onStatus(connected, err)
	}
}
