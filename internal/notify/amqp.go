package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/honeytrace/honeypot/internal/model"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultAMQPBuffer       = 256
	defaultAMQPDialTimeout  = 5 * time.Second
	defaultAMQPSendTimeout  = 5 * time.Second
	defaultAMQPRetryBackoff = 5 * time.Second
)

var ErrPublishQueueFull = errors.New("amqp publish queue full")

type AMQPOptions struct {
	// Buffer is the number of notifications held for the sender; when it is
	// full Deliver drops the notification.
	Buffer       int
	DialTimeout  time.Duration
	SendTimeout  time.Duration
	RetryBackoff time.Duration
	Logger       *slog.Logger
}

// AMQPPublisher publishes notifications as JSON to a durable queue. Deliver
// only enqueues; a single sender goroutine dials lazily, re-dials after the
// connection drops and publishes.
type AMQPPublisher struct {
	url   string
	queue string
	opts  AMQPOptions

	pending chan model.Notification
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	// owned by the sender goroutine
	conn       *amqp.Connection
	retryAfter time.Time

	published atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

func NewAMQPPublisher(url, queue string, opts AMQPOptions) (*AMQPPublisher, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("amqp queue is empty")
	}
	if opts.Buffer <= 0 {
		opts.Buffer = defaultAMQPBuffer
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultAMQPDialTimeout
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultAMQPSendTimeout
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultAMQPRetryBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Logger = opts.Logger.With("sink", "amqp", "queue", queue)

	p := &AMQPPublisher{
		url:     url,
		queue:   queue,
		opts:    opts,
		pending: make(chan model.Notification, opts.Buffer),
		done:    make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p, nil
}

func (p *AMQPPublisher) Name() string { return "amqp" }

// Deliver never blocks on the broker.
func (p *AMQPPublisher) Deliver(_ context.Context, n model.Notification) error {
	select {
	case <-p.done:
		return errors.New("amqp publisher closed")
	default:
	}
	select {
	case p.pending <- n:
		return nil
	default:
		p.dropped.Add(1)
		p.opts.Logger.Warn("notification dropped", "title", n.Title)
		return ErrPublishQueueFull
	}
}

func (p *AMQPPublisher) Published() int64 { return p.published.Load() }
func (p *AMQPPublisher) Failed() int64    { return p.failed.Load() }
func (p *AMQPPublisher) Dropped() int64   { return p.dropped.Load() }

// Close stops the sender after it drains what is already queued, bounded by
// one send timeout per message.
func (p *AMQPPublisher) Close() error {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn.Close()
	}
	return nil
}

func (p *AMQPPublisher) run() {
	defer p.wg.Done()
	for {
		select {
		case n := <-p.pending:
			p.send(n)
		case <-p.done:
			for {
				select {
				case n := <-p.pending:
					p.send(n)
				default:
					return
				}
			}
		}
	}
}

func (p *AMQPPublisher) send(n model.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.SendTimeout)
	defer cancel()
	if err := p.publish(ctx, n); err != nil {
		p.failed.Add(1)
		p.opts.Logger.Warn("notification publish failed", "title", n.Title, "error", err)
		return
	}
	p.published.Add(1)
}

func (p *AMQPPublisher) publish(ctx context.Context, n model.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	if err := p.connect(); err != nil {
		return err
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel error: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq declare queue %s: %w", p.queue, err)
	}

	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.Timestamp,
		MessageId:    n.ID,
		Type:         string(n.Type),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish to %s: %w", p.queue, err)
	}
	return nil
}

// connect dials when there is no open connection. After a failed dial it
// refuses to dial again until the retry backoff has passed.
func (p *AMQPPublisher) connect() error {
	if p.conn != nil && !p.conn.IsClosed() {
		return nil
	}
	if time.Now().Before(p.retryAfter) {
		return errors.New("rabbitmq connect failed: backing off")
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Dial:      amqp.DefaultDial(p.opts.DialTimeout),
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		p.retryAfter = time.Now().Add(p.opts.RetryBackoff)
		return fmt.Errorf("rabbitmq connect failed: %w", err)
	}
	p.conn = conn
	return nil
}
