package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/nkiryanov/ledger/internal/logger"
)

const (
	DefaultExchange = "ledger_events"

	dialTimeout = 10 * time.Second
)

// AMQPPublisher sends events to durable topic exchange, routing key is the event type
type AMQPPublisher struct {
	exchange string
	logger   logger.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// Connect to broker and declare exchange
// Empty exchange means DefaultExchange
func NewAMQPPublisher(amqpURL string, exchange string, l logger.Logger) (*AMQPPublisher, error) {
	u, err := url.Parse(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("invalid AMQP url. Err: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return nil, errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}

	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp091.DialConfig(amqpURL, amqp091.Config{Dial: amqp091.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("can't connect to AMQP broker. Err: %w", err)
	}

	p := &AMQPPublisher{
		exchange: exchange,
		logger:   l.With("component", "amqp_publisher", "exchange", exchange),
		conn:     conn,
	}

	if err := p.openChannel(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return p, nil
}

func (p *AMQPPublisher) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("can't open AMQP channel. Err: %w", err)
	}

	err = ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("can't declare AMQP exchange. Err: %w", err)
	}

	p.channel = ch
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("can't encode event. Err: %w", err)
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    event.TransactionID.String(),
		Timestamp:    event.OccurredAt,
		Type:         event.Type,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, event.Type, false, false, msg)
	if err == nil {
		return nil
	}

	// Channel is closed by the broker on protocol errors; reopen once and retry
	p.logger.Warn("publish failed, reopening channel", "error", err, "routing_key", event.Type)
	if reopenErr := p.openChannel(); reopenErr != nil {
		return errors.Join(err, reopenErr)
	}

	return p.channel.PublishWithContext(ctx, p.exchange, event.Type, false, false, msg)
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}

	return errors.Join(errs...)
}
