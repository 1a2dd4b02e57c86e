package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/color-sorter/internal/logic"
)

const (
	// DefaultBufferSize is the number of messages kept while disconnected.
	DefaultBufferSize = 256

	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// RealPublisher publishes to an MQTT broker. Messages published while the
// broker is unreachable are buffered and replayed on reconnect. A publish
// that fails while connected is buffered too and retried ahead of the next
// publish.
type RealPublisher struct {
	client paho.Client
	logger *zap.SugaredLogger

	mu        sync.Mutex
	buffer    *ringBuffer
	connected bool
	everUp    bool
}

// NewRealPublisher connects to broker. If the first connection attempt does
// not finish within the connect timeout the publisher is still returned:
// paho keeps retrying in the background and messages are buffered meanwhile.
func NewRealPublisher(broker, clientID string, logger *zap.SugaredLogger) (*RealPublisher, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	p := &RealPublisher{
		logger: logger,
		buffer: newRingBuffer(DefaultBufferSize),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		logger.Warnw("mqtt broker not reachable yet, buffering", "broker", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) onConnect(client paho.Client) {
	p.mu.Lock()
	reconnect := p.everUp
	p.connected = true
	p.everUp = true
	pending, dropped := p.buffer.drainAll()
	p.mu.Unlock()

	if reconnect {
		p.logger.Infow("mqtt reconnected", "replay", len(pending), "dropped", dropped)
		if payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"}); err == nil {
			client.Publish(TopicSystem, 1, false, payload)
		}
	} else {
		p.logger.Infow("mqtt connected", "replay", len(pending), "dropped", dropped)
	}
	for _, m := range pending {
		client.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.logger.Warnw("mqtt connection lost", "error", err)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// PublishDetection sends a confirmed detection (QoS 0).
func (p *RealPublisher) PublishDetection(ev logic.DetectionEvent) error {
	payload, err := FormatDetectionPayload(ev)
	if err != nil {
		return fmt.Errorf("format detection payload: %w", err)
	}
	return p.publish(TopicDetections, 0, false, payload)
}

// PublishTransition sends a gate transition (QoS 1).
func (p *RealPublisher) PublishTransition(tr logic.Transition) error {
	payload, err := FormatTransitionPayload(tr)
	if err != nil {
		return fmt.Errorf("format actuator payload: %w", err)
	}
	return p.publish(TopicActuator, 1, false, payload)
}

// PublishSystem sends a lifecycle event (QoS 1).
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// publish sends msg, first flushing anything left in the buffer by an
// earlier failed publish so messages reach the broker in order. On failure
// the unsent messages go back into the buffer.
func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	msg := bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained}

	p.mu.Lock()
	if !p.connected {
		if p.buffer.push(msg) {
			p.logger.Debugw("mqtt buffer full, dropped oldest", "capacity", len(p.buffer.buf))
		}
		p.mu.Unlock()
		return nil
	}
	pending, dropped := p.buffer.drainAll()
	p.mu.Unlock()

	if len(pending) > 0 {
		p.logger.Debugw("mqtt flushing buffer", "pending", len(pending), "dropped", dropped)
	}
	pending = append(pending, msg)
	for i, m := range pending {
		if err := p.send(m); err != nil {
			p.requeue(pending[i:])
			return err
		}
	}
	return nil
}

func (p *RealPublisher) send(m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: %w", m.topic, errPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

var errPublishTimeout = errors.New("timeout")

func (p *RealPublisher) requeue(msgs []bufferedMsg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		p.buffer.push(m)
	}
}

// Buffered returns the number of messages waiting for the broker.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
