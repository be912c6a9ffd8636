package kafka

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"logvault/internal/domain"
	"logvault/internal/storage"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Ingester is the consumer-side contract the adapter feeds. Implemented by
// ingest.Gate.
type Ingester interface {
	Ingest(context.Context, domain.LogRecord) (domain.LogRecord, error)
}

type Config struct {
	Enabled        bool
	Brokers        []string
	Topics         []string
	GroupID        string
	ClientID       string
	WorkerCount    int
	MaxPollRecords int
	QueueCapacity  int
	TLS            TLSConfig
	Fetch          FetchConfig
}

type TLSConfig struct {
	Enabled            bool
	InsecureSkipVerify bool
}

type FetchConfig struct {
	MinBytes int32
	MaxBytes int32
	MaxWait  time.Duration
}

// logPayload is the wire shape producers publish to the log topics.
type logPayload struct {
	GroupName     string `json:"groupName"`
	StreamName    string `json:"streamName"`
	Owner         int64  `json:"owner"`
	Timestamp     string `json:"timestamp"`
	Message       string `json:"message"`
	IngestionTime int64  `json:"ingestionTime"`
}

// Adapter consumes log payloads from Kafka and feeds them through the
// ingestion gate. Offsets are committed only after the gate accepts a record;
// a duplicate ingestion time is committed too, since the record is already
// stored and redelivery would change nothing.
type Adapter struct {
	cfg Config

	client  *kgo.Client
	records chan *kgo.Record
	acks    chan recordAck

	pauseMux sync.Mutex
	paused   bool

	gate         Ingester
	markCommit   func(*kgo.Record)
	commitMarked func(context.Context) error
	pauseFetch   func(...string)
	resumeFetch  func(...string)
}

type recordAck struct {
	record *kgo.Record
	err    error
}

func NewAdapter(cfg Config, gate Ingester, opts ...kgo.Opt) (*Adapter, error) {
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kopts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
		kgo.FetchMaxWait(cfg.Fetch.MaxWait),
		kgo.FetchMinBytes(cfg.Fetch.MinBytes),
		kgo.FetchMaxBytes(cfg.Fetch.MaxBytes),
	}
	if cfg.ClientID != "" {
		kopts = append(kopts, kgo.ClientID(cfg.ClientID))
	}
	if cfg.TLS.Enabled {
		kopts = append(kopts, kgo.DialTLSConfig(&tls.Config{InsecureSkipVerify: cfg.TLS.InsecureSkipVerify}))
	}
	kopts = append(kopts, opts...)

	cl, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("new kafka client: %w", err)
	}

	a := &Adapter{
		cfg:     cfg,
		client:  cl,
		gate:    gate,
		records: make(chan *kgo.Record, cfg.QueueCapacity),
		acks:    make(chan recordAck, cfg.QueueCapacity),
	}
	a.markCommit = func(r *kgo.Record) { cl.MarkCommitRecords(r) }
	a.commitMarked = func(ctx context.Context) error { return cl.CommitMarkedOffsets(ctx) }
	a.pauseFetch = func(topics ...string) { _ = cl.PauseFetchTopics(topics...) }
	a.resumeFetch = func(topics ...string) { cl.ResumeFetchTopics(topics...) }
	return a, nil
}

func (c *Config) withDefaults() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = 1024
	}
	if c.MaxPollRecords <= 0 {
		c.MaxPollRecords = 500
	}
	if c.Fetch.MaxWait <= 0 {
		c.Fetch.MaxWait = time.Second
	}
	if c.Fetch.MinBytes <= 0 {
		c.Fetch.MinBytes = 1
	}
	if c.Fetch.MaxBytes <= 0 {
		c.Fetch.MaxBytes = 50 << 20
	}
}

func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return errors.New("kafka.brokers is required")
	}
	if len(c.Topics) == 0 {
		return errors.New("kafka.topics is required")
	}
	if c.GroupID == "" {
		return errors.New("kafka.group_id is required")
	}
	return nil
}

func (a *Adapter) Start(ctx context.Context) error {
	defer a.client.Close()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.handleAcks(ctx)
	}()

	for i := 0; i < a.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.runWorker(ctx)
		}()
	}

	for {
		if ctx.Err() != nil {
			close(a.records)
			wg.Wait()
			return ctx.Err()
		}
		fetches := a.client.PollRecords(ctx, a.cfg.MaxPollRecords)
		if errs := fetches.Errors(); len(errs) > 0 {
			return errs[0].Err
		}
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			for _, rec := range p.Records {
				for {
					select {
					case a.records <- rec:
						a.maybeResume()
						goto next
					default:
						a.maybePause()
						time.Sleep(5 * time.Millisecond)
					}
				}
			next:
			}
		})
		a.client.AllowRebalance()
	}
}

func (a *Adapter) runWorker(ctx context.Context) {
	for rec := range a.records {
		r, err := decodeRecord(rec)
		if err != nil {
			a.acks <- recordAck{record: rec, err: err}
			continue
		}
		_, err = a.gate.Ingest(ctx, r)
		a.acks <- recordAck{record: rec, err: err}
	}
}

func (a *Adapter) handleAcks(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ack := <-a.acks:
			if ack.record == nil {
				continue
			}
			if ack.err != nil && !committable(ack.err) {
				continue
			}
			a.markCommit(ack.record)
			_ = a.commitMarked(ctx)
		}
	}
}

// committable reports whether a failed record can still have its offset
// committed. Duplicates qualify: the record is already stored.
func committable(err error) bool {
	return errors.Is(err, storage.ErrDuplicateIngestion)
}

func decodeRecord(rec *kgo.Record) (domain.LogRecord, error) {
	var in logPayload
	if err := json.Unmarshal(rec.Value, &in); err != nil {
		return domain.LogRecord{}, fmt.Errorf("parse log payload %s/%d/%d: %w", rec.Topic, rec.Partition, rec.Offset, err)
	}
	var ts time.Time
	if in.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339Nano, in.Timestamp)
		if err != nil {
			return domain.LogRecord{}, fmt.Errorf("parse timestamp: %w", err)
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

func (a *Adapter) maybePause() {
	a.pauseMux.Lock()
	defer a.pauseMux.Unlock()
	if a.paused {
		return
	}
	if len(a.records) < cap(a.records) {
		return
	}
	a.pauseFetch(a.cfg.Topics...)
	a.paused = true
}

func (a *Adapter) maybeResume() {
	a.pauseMux.Lock()
	defer a.pauseMux.Unlock()
	if !a.paused {
		return
	}
	if len(a.records) > cap(a.records)/2 {
		return
	}
	a.resumeFetch(a.cfg.Topics...)
	a.paused = false
}
