package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/alarm-radio/internal/alarm"
)

// DefaultQueueLimit is the number of messages kept while offline.
const DefaultQueueLimit = 100

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Topics     Topics
	QueueLimit int
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are queued and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	topics Topics
	log    *zap.Logger

	mu            sync.Mutex
	queue         *offlineQueue
	connected     bool
	everConnected bool
}

// NewRealPublisher creates a publisher for the given broker. The client
// keeps retrying in the background when the broker is unreachable at
// startup; messages are queued until it connects.
func NewRealPublisher(opts Options, log *zap.Logger) (*RealPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("mqtt")
	if opts.QueueLimit <= 0 {
		opts.QueueLimit = DefaultQueueLimit
	}
	if opts.Topics == (Topics{}) {
		opts.Topics = NewTopics(DefaultPrefix)
	}

	p := &RealPublisher{
		topics: opts.Topics,
		log:    log,
		queue:  newOfflineQueue(opts.QueueLimit, log),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	clientOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(opts.Topics.System, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	p.client = paho.NewClient(clientOpts)
	token := p.client.Connect()
	if token.WaitTimeout(10 * time.Second) {
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("connect to broker: %w", err)
		}
	} else {
		log.Warn("broker not reachable yet, queueing", zap.String("broker", opts.Broker))
	}

	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.everConnected
	p.everConnected = true
	p.mu.Unlock()

	replayed, ok := p.drain(func(m pending) error {
		return wait(c.Publish(m.topic, m.qos, m.retained, m.payload), m.topic)
	}, c.IsConnectionOpen)
	if replayed > 0 {
		p.log.Info("replayed queued messages", zap.Int("count", replayed))
	}
	if !ok {
		p.log.Warn("connection dropped during replay, backlog kept")
		return
	}

	if reconnect {
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err != nil {
			p.log.Warn("format reconnect event failed", zap.Error(err))
		} else if err := wait(c.Publish(p.topics.System, 1, true, payload), p.topics.System); err != nil {
			p.log.Warn("reconnect event not published", zap.Error(err))
		}
	}
	p.log.Info("connected to broker")
}

// drain replays the backlog oldest first and marks the publisher connected
// once the queue is empty. Messages sent meanwhile keep queuing behind the
// backlog. If the link drops again the unsent part goes back to the front
// of the queue and drain reports false.
func (p *RealPublisher) drain(publish func(pending) error, open func() bool) (int, bool) {
	replayed := 0
	for {
		p.mu.Lock()
		backlog := p.queue.take()
		if len(backlog) == 0 {
			p.connected = true
			p.mu.Unlock()
			return replayed, true
		}
		p.mu.Unlock()

		for i, m := range backlog {
			err := publish(m)
			if err == nil {
				replayed++
				continue
			}
			if !open() {
				p.mu.Lock()
				p.queue.requeue(backlog[i:])
				p.mu.Unlock()
				return replayed, false
			}
			p.log.Warn("replay failed", zap.String("topic", m.topic), zap.Error(err))
		}
	}
}

// wait blocks on a publish token for up to five seconds.
func wait(token paho.Token, topic string) error {
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.log.Warn("connection lost", zap.Error(err))
}

// send publishes one message or queues it while disconnected.
func (p *RealPublisher) send(m pending) error {
	p.mu.Lock()
	if !p.connected {
		p.queue.add(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return wait(p.client.Publish(m.topic, m.qos, m.retained, m.payload), m.topic)
}

// Publish sends an alarm event to the MQTT broker.
func (p *RealPublisher) Publish(event alarm.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 1: alarm events drive downstream automations.
	return p.send(pending{topic: p.topics.Events, qos: 1, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(pending{
		topic:      p.topics.System,
		qos:        1,
		retained:   event.Retained,
		payload:    payload,
		supersedes: supersedeKey(p.topics.System, event.Retained, ""),
	})
}

// PublishCommand sends a playback or display command.
func (p *RealPublisher) PublishCommand(cmd Command) error {
	payload, err := FormatCommandPayload(cmd)
	if err != nil {
		return fmt.Errorf("format command payload: %w", err)
	}
	topic := p.topics.TopicFor(cmd)
	return p.send(pending{
		topic:      topic,
		qos:        1,
		payload:    payload,
		supersedes: supersedeKey(topic, false, cmd.Action),
	})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// QueueStats counts the offline queue. Replaced messages were superseded
// by a newer state before they could be sent.
type QueueStats struct {
	Waiting  int
	Dropped  int
	Replaced int
}

// Queued returns the offline queue counters.
func (p *RealPublisher) Queued() QueueStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return QueueStats{
		Waiting:  p.queue.size(),
		Dropped:  p.queue.dropped,
		Replaced: p.queue.replaced,
	}
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
