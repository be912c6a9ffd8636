package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"logvault/internal/domain"

	"github.com/rabbitmq/amqp091-go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type captureGate struct {
	mu      sync.Mutex
	records []domain.LogRecord
}

func (c *captureGate) Ingest(_ context.Context, r domain.LogRecord) (domain.LogRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, r)
	r.ID = int64(len(c.records))
	return r, nil
}

func (c *captureGate) snapshot() []domain.LogRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.LogRecord(nil), c.records...)
}

func TestRabbitMQContainerIntegration(t *testing.T) {
	ctx := context.Background()
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("docker/container runtime unavailable: %v", r)
		}
	}()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-alpine",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForLog("Server startup complete"),
	}
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("docker/container runtime unavailable: %v", err)
	}
	defer func() { _ = ctr.Terminate(ctx) }()

	host, _ := ctr.Host(ctx)
	port, _ := ctr.MappedPort(ctx, "5672")
	url := fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())

	gate := &captureGate{}
	cfg := validConfig()
	cfg.URL = url
	adapter, err := NewAdapter(cfg, gate)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	if err := adapter.Start(ctx); err != nil {
		t.Fatalf("start adapter: %v", err)
	}
	defer adapter.Close()

	pub, err := amqp091.Dial(url)
	if err != nil {
		t.Fatalf("dial publisher: %v", err)
	}
	defer pub.Close()
	ch, err := pub.Channel()
	if err != nil {
		t.Fatalf("publisher channel: %v", err)
	}
	body, _ := json.Marshal(map[string]any{
		"groupName":     "api",
		"streamName":    "prod-1",
		"owner":         42,
		"timestamp":     "2024-03-14T09:30:00Z",
		"message":       "[ERROR ] via rabbitmq",
		"ingestionTime": 3000,
	})
	if err := ch.PublishWithContext(ctx, cfg.Exchange, "logs.api", false, false, amqp091.Publishing{ContentType: "application/json", Body: body}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.After(30 * time.Second)
	for {
		if records := gate.snapshot(); len(records) == 1 {
			if records[0].IngestionTime != 3000 || records[0].GroupName != "api" {
				t.Fatalf("unexpected ingested record: %+v", records[0])
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("record never reached the gate")
		case <-time.After(100 * time.Millisecond):
		}
	}
}
