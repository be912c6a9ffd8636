package rabbitmq

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"logvault/internal/domain"
	"logvault/internal/storage"

	"github.com/rabbitmq/amqp091-go"
)

// Ingester is the consumer-side contract the adapter feeds. Implemented by
// ingest.Gate.
type Ingester interface {
	Ingest(context.Context, domain.LogRecord) (domain.LogRecord, error)
}

type Config struct {
	Enabled       bool
	URL           string
	Exchange      string
	Queue         string
	RoutingKeys   []string
	ConsumerTag   string
	PrefetchCount int
	Workers       int
	DeliveryQueue int
	TLS           TLSConfig
	Auth          AuthConfig
}

type TLSConfig struct {
	Enabled            bool
	InsecureSkipVerify bool
	ServerName         string
	CAFile             string
	CertFile           string
	KeyFile            string
}

type AuthConfig struct {
	Username string
	Password string
}

// logPayload is the wire shape producers publish to the log exchange.
type logPayload struct {
	GroupName     string `json:"groupName"`
	StreamName    string `json:"streamName"`
	Owner         int64  `json:"owner"`
	Timestamp     string `json:"timestamp"`
	Message       string `json:"message"`
	IngestionTime int64  `json:"ingestionTime"`
}

// Adapter consumes log payloads from RabbitMQ and feeds them through the
// ingestion gate. Malformed or invalid deliveries are dropped (nack without
// requeue), duplicates are acked since the record is already stored, and
// retryable storage failures are requeued.
type Adapter struct {
	cfg      Config
	gate     Ingester
	conn     *amqp091.Connection
	ch       *amqp091.Channel
	deliver  <-chan amqp091.Delivery
	ops      chan deliveryTask
	closed   chan struct{}
	closeErr atomic.Value
	wg       sync.WaitGroup
}

type deliveryTask struct {
	ctx      context.Context
	delivery amqp091.Delivery
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("rabbitmq url is required")
	}
	if c.Queue == "" {
		return fmt.Errorf("rabbitmq queue is required")
	}
	if c.Exchange == "" {
		return fmt.Errorf("rabbitmq exchange is required")
	}
	if c.PrefetchCount < 1 {
		return fmt.Errorf("rabbitmq prefetch_count must be >= 1")
	}
	if c.Workers < 1 {
		return fmt.Errorf("rabbitmq workers must be >= 1")
	}
	if c.DeliveryQueue < 1 {
		return fmt.Errorf("rabbitmq delivery_queue must be >= 1")
	}
	return nil
}

func NewAdapter(cfg Config, gate Ingester) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gate == nil {
		return nil, fmt.Errorf("gate is required")
	}
	if cfg.ConsumerTag == "" {
		cfg.ConsumerTag = "logvault-rabbitmq"
	}
	return &Adapter{cfg: cfg, gate: gate, closed: make(chan struct{}), ops: make(chan deliveryTask, cfg.DeliveryQueue)}, nil
}

func (a *Adapter) Start(ctx context.Context) error {
	dialCfg := amqp091.Config{}
	if a.cfg.Auth.Username != "" {
		dialCfg.SASL = []amqp091.Authentication{&amqp091.PlainAuth{Username: a.cfg.Auth.Username, Password: a.cfg.Auth.Password}}
	}
	if tlsCfg, err := a.buildTLSConfig(); err != nil {
		return err
	} else if tlsCfg != nil {
		dialCfg.TLSClientConfig = tlsCfg
	}
	conn, err := amqp091.DialConfig(a.cfg.URL, dialCfg)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.Qos(a.cfg.PrefetchCount, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("set prefetch: %w", err)
	}
	if err := ch.ExchangeDeclare(a.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(a.cfg.Queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare queue: %w", err)
	}
	routingKeys := a.cfg.RoutingKeys
	if len(routingKeys) == 0 {
		routingKeys = []string{"#"}
	}
	for _, key := range routingKeys {
		if err := ch.QueueBind(a.cfg.Queue, key, a.cfg.Exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return fmt.Errorf("bind queue key=%s: %w", key, err)
		}
	}
	deliveries, err := ch.Consume(a.cfg.Queue, a.cfg.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("consume queue: %w", err)
	}
	a.conn, a.ch, a.deliver = conn, ch, deliveries

	a.wg.Add(1)
	go a.readLoop(ctx)
	for i := 0; i < a.cfg.Workers; i++ {
		a.wg.Add(1)
		go a.workerLoop(ctx)
	}
	return nil
}

func (a *Adapter) Close() error {
	select {
	case <-a.closed:
		if v := a.closeErr.Load(); v != nil {
			return v.(error)
		}
		return nil
	default:
		close(a.closed)
	}
	if a.ch != nil {
		_ = a.ch.Cancel(a.cfg.ConsumerTag, false)
	}
	close(a.ops)
	a.wg.Wait()
	var errs []error
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	a.closeErr.Store(err)
	return err
}

func (a *Adapter) readLoop(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.closed:
			return
		case d, ok := <-a.deliver:
			if !ok {
				return
			}
			task := deliveryTask{ctx: ctx, delivery: d}
			select {
			case a.ops <- task:
			case <-ctx.Done():
				return
			case <-a.closed:
				return
			}
		}
	}
}

func (a *Adapter) workerLoop(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.closed:
			return
		case task, ok := <-a.ops:
			if !ok {
				return
			}
			a.processDelivery(task.ctx, task.delivery)
		}
	}
}

func (a *Adapter) processDelivery(ctx context.Context, d amqp091.Delivery) {
	r, err := parseDelivery(d)
	if err != nil {
		_ = d.Nack(false, false)
		return
	}
	if _, err := a.gate.Ingest(ctx, r); err != nil {
		if errors.Is(err, storage.ErrDuplicateIngestion) {
			_ = d.Ack(false)
			return
		}
		if isRetryable(err) {
			_ = d.Nack(false, true)
			return
		}
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func parseDelivery(d amqp091.Delivery) (domain.LogRecord, error) {
	var in logPayload
	if err := json.Unmarshal(d.Body, &in); err != nil {
		return domain.LogRecord{}, fmt.Errorf("unmarshal delivery body: %w", err)
	}
	var ts time.Time
	if strings.TrimSpace(in.Timestamp) != "" {
		parsed, err := time.Parse(time.RFC3339Nano, in.Timestamp)
		if err != nil {
			return domain.LogRecord{}, fmt.Errorf("invalid timestamp: %w", err)
		}
		ts = parsed
	}
	return domain.LogRecord{
		GroupName:     in.GroupName,
		StreamName:    in.StreamName,
		Owner:         in.Owner,
		Timestamp:     ts,
		Message:       in.Message,
		IngestionTime: in.IngestionTime,
	}, nil
}

func (a *Adapter) buildTLSConfig() (*tls.Config, error) {
	if !a.cfg.TLS.Enabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: a.cfg.TLS.InsecureSkipVerify, ServerName: a.cfg.TLS.ServerName}
	if a.cfg.TLS.CAFile != "" {
		pemBytes, err := os.ReadFile(a.cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read rabbitmq ca_file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemBytes) {
			return nil, fmt.Errorf("parse rabbitmq ca_file")
		}
		tlsCfg.RootCAs = pool
	}
	if a.cfg.TLS.CertFile != "" || a.cfg.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(a.cfg.TLS.CertFile, a.cfg.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load rabbitmq cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

type retryable interface{ Temporary() bool }

func isRetryable(err error) bool {
	var te retryable
	if errors.As(err, &te) {
		return te.Temporary()
	}
	return false
}
