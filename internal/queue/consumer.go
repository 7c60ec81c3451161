package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// LogSender is the default SMSSender: it writes deliveries to the log
// instead of a carrier. The message body is only logged at debug level.
type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) SendSMS(ctx context.Context, phone, message string) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "sms dispatched", "phone", maskPhone(phone))
	log.DebugContext(ctx, "sms body", "phone", phone, "message", message)
	return nil
}

// Consumer reads OTPQueueName and hands every event to an SMSSender.
type Consumer struct {
	url    string
	sender SMSSender
	log    *slog.Logger
	now    func() time.Time
}

func NewConsumer(url string, sender SMSSender, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{url: url, sender: sender, log: log, now: time.Now}
}

// Run connects to the broker and consumes until ctx is cancelled. Lost
// connections are re-dialled with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("otp consumer: dial failed", "error", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("otp consumer: consume loop ended, reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("otp consumer: set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(OTPQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(OTPQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	return c.process(ctx, msgs)
}

// process acknowledges delivered messages and rejects, without requeueing,
// the ones that cannot be handled.
func (c *Consumer) process(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(ctx, d.Body); err != nil {
				c.log.Error("otp consumer: handle message failed", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var ev OTPIssuedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Phone == "" || ev.Code == "" {
		return errors.New("event without phone or code")
	}
	now := c.now()
	if !ev.ExpiresAt.IsZero() && !now.Before(ev.ExpiresAt) {
		c.log.Info("otp consumer: dropping expired code", "phone", maskPhone(ev.Phone))
		return nil
	}
	if err := c.sender.SendSMS(ctx, ev.Phone, smsText(ev, now)); err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	return nil
}

func smsText(ev OTPIssuedEvent, now time.Time) string {
	mins := int((ev.ExpiresAt.Sub(now) + time.Minute - 1) / time.Minute)
	if ev.ExpiresAt.IsZero() || mins < 1 {
		return fmt.Sprintf("Your Opla verification code is %s.", ev.Code)
	}
	return fmt.Sprintf("Your Opla verification code is %s. It expires in %d min.", ev.Code, mins)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func maskPhone(p string) string {
	if len(p) <= 4 {
		return strings.Repeat("*", len(p))
	}
	return strings.Repeat("*", len(p)-4) + p[len(p)-4:]
}
