package mqtt

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/nartankaplan/MDM-version3/internal/config"
	"github.com/nartankaplan/MDM-version3/internal/protocol"
)

// Publisher 可选的 MQTT 推送通道
// launcher 默认走 HTTP 轮询；启用后命令入队时额外广播一条推送，
// 订阅了自己主题的设备可以立刻触发同步而不用等下一轮。
type Publisher struct {
	client mqtt.Client
	cfg    *config.MQTTConfig
	logger *zap.Logger
}

// NewPublisher 创建并连接 MQTT 客户端
func NewPublisher(cfg *config.MQTTConfig, logger *zap.Logger) (*Publisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &Publisher{client: client, cfg: cfg, logger: logger}, nil
}

// deviceTopic 设备推送主题，number 为注册键（IMEI 或外部 deviceId）
func (p *Publisher) deviceTopic(project, number string) string {
	return fmt.Sprintf("mdm/%s/device/%s/push", project, number)
}

// PushConfigUpdated 通知设备立即拉取配置
func (p *Publisher) PushConfigUpdated(project, number string) {
	p.push(project, number, protocol.PushMessage{MessageType: protocol.MessageTypeConfigUpdated})
}

// PushNotification 下发 showNotification 消息
func (p *Publisher) PushNotification(project, number string, payload protocol.AlarmPayload) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	p.push(project, number, protocol.PushMessage{
		MessageType: protocol.MessageTypeShowNotification,
		Payload:     string(raw),
	})
}

// push 推送失败只记日志，轮询通道兜底
func (p *Publisher) push(project, number string, msg protocol.PushMessage) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	topic := p.deviceTopic(project, number)
	token := p.client.Publish(topic, p.cfg.QoS, false, raw)
	token.Wait()
	if token.Error() != nil {
		p.logger.Warn("mqtt push failed", zap.String("topic", topic), zap.Error(token.Error()))
	}
}

// Disconnect 断开连接
func (p *Publisher) Disconnect() {
	p.client.Disconnect(250)
}
