package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func(url string) (channel, io.Closer, error)

// dialTimeout bounds connection setup; publishing runs inside an API request.
const dialTimeout = 2 * time.Second

func dialAMQP(url string) (channel, io.Closer, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn, nil
}

// Publisher sends OTPIssuedEvents to OTPQueueName. It implements
// otp.Notifier.
type Publisher struct {
	url  string
	log  *slog.Logger
	dial dialFunc
	now  func() time.Time
}

// NewPublisher returns a Publisher for the broker at url.
func NewPublisher(url string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{url: url, log: log, dial: dialAMQP, now: time.Now}
}

// NotifyOTP publishes a persistent OTPIssuedEvent. Each call opens its own
// connection; errors are logged and returned so the caller may ignore them.
func (p *Publisher) NotifyOTP(ctx context.Context, phone, code string, expiresAt time.Time) error {
	ch, conn, err := p.dial(p.url)
	if err != nil {
		p.log.Error("rabbitmq dial failed", "error", err)
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(OTPQueueName, true, false, false, false, nil); err != nil {
		p.log.Error("rabbitmq queue declare failed", "queue", OTPQueueName, "error", err)
		return fmt.Errorf("queue declare: %w", err)
	}

	now := p.now().UTC()
	body, err := json.Marshal(OTPIssuedEvent{
		Phone:     phone,
		Code:      code,
		ExpiresAt: expiresAt.UTC(),
		IssuedAt:  now,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		Expiration:   expirationMillis(expiresAt.Sub(now)),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", OTPQueueName, false, false, pub); err != nil {
		p.log.Error("rabbitmq publish failed", "queue", OTPQueueName, "error", err)
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// expirationMillis renders the message TTL; the broker drops expired codes.
func expirationMillis(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return fmt.Sprintf("%d", d.Milliseconds())
}
