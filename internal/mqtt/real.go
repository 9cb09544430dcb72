package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/sweeney/m5echo/internal/logic"
)

// Defaults for Config.
const (
	DefaultClientID       = "m5echo"
	DefaultBufferSize     = 256
	DefaultConnectTimeout = 10 * time.Second
	publishTimeout        = 5 * time.Second

	// queueSize bounds events waiting for the sender goroutine.
	queueSize = 32
)

// ErrNotConnected is returned when a message could only be buffered.
var ErrNotConnected = errors.New("mqtt: not connected")

// ErrBusy is returned when the sender is backed up and the event went to
// the offline buffer instead.
var ErrBusy = errors.New("mqtt: sender busy")

// Config selects the broker.
type Config struct {
	Broker         string
	ClientID       string
	BufferSize     int
	ConnectTimeout time.Duration
}

// client is the part of paho.Client the publisher uses.
type client interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// RealPublisher publishes to a broker. Messages published while the
// connection is down are held in a ring buffer and replayed, oldest first,
// when paho reconnects.
//
// Publish never waits on the broker: events are handed to a sender
// goroutine, so a stalled connection cannot hold up the caller.
type RealPublisher struct {
	client client
	log    zerolog.Logger
	now    func() time.Time

	mu  sync.Mutex
	buf *ringBuffer

	queue     chan bufferedMsg
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRealPublisher connects to cfg.Broker. paho keeps retrying in the
// background, so an unreachable broker is not an error: messages are
// buffered until it comes up.
func NewRealPublisher(cfg Config, log zerolog.Logger) (*RealPublisher, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	p := newPublisher(nil, cfg.BufferSize, log)

	will, _ := FormatSystemPayload(SystemEvent{Event: SystemOffline, Reason: "connection lost"})
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.flush() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn().Err(err).Msg("broker connection lost")
		})

	c := paho.NewClient(opts)
	p.client = c

	token := c.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		p.log.Warn().Str("broker", cfg.Broker).Msg("broker not reachable yet, buffering")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker %s: %w", cfg.Broker, err)
	}
	p.log.Info().Str("broker", cfg.Broker).Msg("connected to broker")
	return p, nil
}

func newPublisher(c client, bufferSize int, log zerolog.Logger) *RealPublisher {
	p := &RealPublisher{
		client: c,
		log:    log.With().Str("component", "mqtt").Logger(),
		now:    time.Now,
		buf:    newRingBuffer(bufferSize),
		queue:  make(chan bufferedMsg, queueSize),
		done:   make(chan struct{}),
	}
	p.wg.Add(1)
	go p.sender()
	return p
}

// Publish queues a controller event for sending at QoS 0 and returns
// without waiting for the broker. If the connection is down or the queue
// is full the event goes to the offline buffer.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event, p.now())
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	msg := bufferedMsg{topic: TopicEvents, payload: payload}
	if !p.client.IsConnectionOpen() {
		p.hold(msg)
		return ErrNotConnected
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		p.hold(msg)
		return ErrBusy
	}
}

// sender drains the queue until Close.
func (p *RealPublisher) sender() {
	defer p.wg.Done()
	for {
		select {
		case msg := <-p.queue:
			if err := p.send(msg); err != nil {
				p.log.Warn().Err(err).Msg("publish failed, buffering")
				p.hold(msg)
			}
		case <-p.done:
			return
		}
	}
}

// PublishSystem sends a lifecycle event at QoS 1 and waits for it. It is
// only used at startup and shutdown, outside the polling loop.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.hold(msg)
		return ErrNotConnected
	}
	if err := p.send(msg); err != nil {
		p.hold(msg)
		return err
	}
	return nil
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

func (p *RealPublisher) hold(msg bufferedMsg) {
	p.mu.Lock()
	dropped := p.buf.push(msg)
	n := p.buf.dropped
	p.mu.Unlock()
	if dropped && n == 1 {
		p.log.Warn().Msg("offline buffer full, dropping oldest messages")
	}
}

// flush replays buffered messages. Called by paho on (re)connect.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	msgs := p.buf.drainAll()
	p.mu.Unlock()
	if len(msgs) == 0 {
		return
	}

	sent := 0
	for i, msg := range msgs {
		if err := p.send(msg); err != nil {
			p.log.Warn().Err(err).Int("pending", len(msgs)-i).Msg("replay interrupted")
			p.mu.Lock()
			for _, m := range msgs[i:] {
				p.buf.push(m)
			}
			p.mu.Unlock()
			break
		}
		sent++
	}
	p.log.Info().Int("sent", sent).Msg("replayed buffered messages")
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close stops the sender and disconnects, allowing one second for
// in-flight messages. Events still queued are dropped.
func (p *RealPublisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
		p.client.Disconnect(1000)
	})
	return nil
}
