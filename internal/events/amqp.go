package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"roombook/internal/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// DefaultExchange receives forwarded events when configuration leaves it empty.
const DefaultExchange = "roombook.events"

const (
	defaultQueueSize   = 256
	defaultDialTimeout = 2 * time.Second
	minRedialBackoff   = time.Second
	maxRedialBackoff   = time.Minute
)

var errBackoff = errors.New("broker unavailable, waiting before redial")

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Forwarder copies bus events to a RabbitMQ topic exchange; the routing key is the event type.
// Events are queued and sent by one background worker, so publishers never wait on the broker.
// A full queue drops the event. Broker failures are logged and counted.
type Forwarder struct {
	url         string
	exchange    string
	timeout     time.Duration
	dialTimeout time.Duration
	queueSize   int
	logger      zerolog.Logger
	now         func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	queue     chan Event
	stop      chan struct{}
	done      chan struct{}

	// Owned by the worker.
	conn    *amqp.Connection
	ch      publisher
	dial    func() (publisher, error)
	backoff time.Duration
	retryAt time.Time
}

// NewForwarder builds a Forwarder. The connection is opened lazily by the worker.
func NewForwarder(url, exchange string, logger *zerolog.Logger) *Forwarder {
	if exchange == "" {
		exchange = DefaultExchange
	}
	f := &Forwarder{
		url:         url,
		exchange:    exchange,
		timeout:     5 * time.Second,
		dialTimeout: defaultDialTimeout,
		queueSize:   defaultQueueSize,
		logger:      logger.With().Str("component", "amqp").Logger(),
		now:         time.Now,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	f.dial = f.dialBroker
	return f
}

func (f *Forwarder) dialBroker() (publisher, error) {
	conn, err := amqp.DialConfig(f.url, amqp.Config{
		Dial:      amqp.DefaultDial(f.dialTimeout),
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(f.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", f.exchange, err)
	}
	f.conn = conn
	return ch, nil
}

// Attach subscribes the forwarder to every event on bus.
func (f *Forwarder) Attach(bus *EventBus) {
	bus.SubscribeAll(f.Handle)
}

// Handle queues one event without blocking. It never returns an error so the
// bus stays quiet about broker outages.
func (f *Forwarder) Handle(event Event) error {
	f.start()
	select {
	case <-f.stop:
		metrics.IncForwarded("dropped")
	case f.queue <- event:
	default:
		metrics.IncForwarded("dropped")
		f.logger.Warn().Str("event", event.Type).Msg("forward queue full, event dropped")
	}
	return nil
}

func (f *Forwarder) start() {
	f.startOnce.Do(func() {
		f.queue = make(chan Event, f.queueSize)
		go f.run()
	})
}

func (f *Forwarder) run() {
	defer close(f.done)
	for {
		select {
		case event := <-f.queue:
			f.deliver(event)
		case <-f.stop:
			// Flush what is already queued, then exit.
			for {
				select {
				case event := <-f.queue:
					f.deliver(event)
				default:
					f.closeConn()
					return
				}
			}
		}
	}
}

func (f *Forwarder) deliver(event Event) {
	if err := f.forward(event); err != nil {
		metrics.IncForwarded("error")
		f.logger.Warn().Err(err).Str("event", event.Type).Msg("forward event failed")
		return
	}
	metrics.IncForwarded("ok")
}

// forward sends one event. Only the worker calls it.
func (f *Forwarder) forward(event Event) error {
	if f.ch == nil {
		if f.now().Before(f.retryAt) {
			return errBackoff
		}
		ch, err := f.dial()
		if err != nil {
			f.backoff = nextBackoff(f.backoff)
			f.retryAt = f.now().Add(f.backoff)
			return err
		}
		f.ch = ch
		f.backoff = 0
		f.retryAt = time.Time{}
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	err := f.ch.PublishWithContext(ctx, f.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("%d", event.ID),
		Timestamp:    event.CreatedAt.UTC(),
		Type:         event.Type,
		Body:         event.Payload,
	})
	if err != nil {
		// Drop the channel so the next event reconnects.
		f.closeConn()
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func nextBackoff(cur time.Duration) time.Duration {
	if cur < minRedialBackoff {
		return minRedialBackoff
	}
	if cur*2 > maxRedialBackoff {
		return maxRedialBackoff
	}
	return cur * 2
}

// Close stops the worker after it sends what is queued and releases the broker connection.
func (f *Forwarder) Close() error {
	f.stopOnce.Do(func() { close(f.stop) })
	// Marks the worker as never started when no event arrived.
	f.startOnce.Do(func() {})
	if f.queue != nil {
		<-f.done
	}
	return nil
}

func (f *Forwarder) closeConn() {
	if f.ch != nil {
		_ = f.ch.Close()
		f.ch = nil
	}
	if f.conn != nil {
		_ = f.conn.Close()
		f.conn = nil
	}
}
