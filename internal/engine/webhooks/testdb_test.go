package webhooks

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"caelex/internal/platform/config"
	"caelex/internal/platform/models"
	"caelex/internal/platform/repositories"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	query := `
	CREATE TABLE webhooks (
		id TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		events TEXT NOT NULL,
		secret TEXT NOT NULL,
		secret_prefix TEXT NOT NULL,
		headers TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		success_count INTEGER NOT NULL DEFAULT 0,
		failure_count INTEGER NOT NULL DEFAULT 0,
		last_triggered_at INTEGER,
		last_success_at INTEGER,
		last_failure_at INTEGER,
		last_error TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE webhook_deliveries (
		id TEXT PRIMARY KEY,
		webhook_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		status_code INTEGER,
		response_body TEXT,
		latency_ms INTEGER,
		attempts INTEGER NOT NULL DEFAULT 0,
		next_retry_at INTEGER,
		error TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return db
}

func testWebhooksConfig() config.WebhooksConfig {
	return config.WebhooksConfig{
		DeliveryTimeout:    2 * time.Second,
		MaxAttempts:        3,
		RetryBaseDelay:     time.Second,
		RetryMaxDelay:      time.Minute,
		SchedulerInterval:  10 * time.Millisecond,
		SchedulerBatchSize: 10,
		StuckAfter:         time.Minute,
	}
}

type testEnv struct {
	db         *sql.DB
	webhooks   *repositories.WebhookRepository
	deliveries *repositories.DeliveryRepository
	registry   *Registry
	dispatcher *Dispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	db := setupTestDB(t)
	webhookRepo := repositories.NewWebhookRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)
	return &testEnv{
		db:         db,
		webhooks:   webhookRepo,
		deliveries: deliveryRepo,
		registry:   NewRegistry(webhookRepo),
		dispatcher: NewDispatcher(webhookRepo, deliveryRepo, testWebhooksConfig()),
	}
}

func newDelivery(webhookID, eventType string) *models.WebhookDelivery {
	return &models.WebhookDelivery{
		WebhookID: webhookID,
		EventType: eventType,
		Payload:   []byte(`{"id":"evt_test","event":"` + eventType + `","timestamp":0,"data":{}}`),
	}
}

// waitForStatus polls until the delivery reaches the wanted status or
// the deadline passes.
func (e *testEnv) waitForStatus(t *testing.T, deliveryID, want string) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		d, err := e.deliveries.GetByID(deliveryID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if d != nil && d.Status == want {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	d, _ := e.deliveries.GetByID(deliveryID)
	t.Fatalf("delivery %s never reached %q (last: %+v)", deliveryID, want, d)
}

// firstDelivery waits until exactly one delivery exists for a webhook
// and returns it.
func (e *testEnv) firstDelivery(t *testing.T, webhookID string) string {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		list, err := e.deliveries.ListByWebhook(webhookID, 10, 0)
		if err != nil {
			t.Fatalf("ListByWebhook: %v", err)
		}
		if len(list) == 1 {
			return list[0].ID
		}
		if len(list) > 1 {
			t.Fatalf("expected one delivery, got %d", len(list))
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("no delivery created")
	return ""
}
