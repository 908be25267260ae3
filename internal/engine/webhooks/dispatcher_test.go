package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	apperrors "caelex/internal/pkg/errors"
	"caelex/internal/platform/models"
)

type capturedRequest struct {
	body      []byte
	signature string
	eventType string
	delivery  string
	headers   http.Header
}

// captureServer records webhook POSTs and answers with the given
// status code.
func captureServer(t *testing.T, statusCode int) (*httptest.Server, chan capturedRequest) {
	t.Helper()

	requests := make(chan capturedRequest, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- capturedRequest{
			body:      body,
			signature: r.Header.Get("X-Caelex-Signature"),
			eventType: r.Header.Get("X-Caelex-Event"),
			delivery:  r.Header.Get("X-Caelex-Delivery"),
			headers:   r.Header,
		}
		w.WriteHeader(statusCode)
	}))
	t.Cleanup(srv.Close)
	return srv, requests
}

func receive(t *testing.T, requests chan capturedRequest) capturedRequest {
	t.Helper()
	select {
	case req := <-requests:
		return req
	case <-time.After(3 * time.Second):
		t.Fatal("no webhook request received")
		return capturedRequest{}
	}
}

func TestDispatch_MatchingSubscription(t *testing.T) {
	env := newTestEnv(t)
	srv, requests := captureServer(t, http.StatusOK)

	created, secret, err := env.registry.Create("org_1", "ops", srv.URL, []string{EventSpacecraftCreated}, map[string]string{"X-Env": "staging"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := env.dispatcher.Dispatch(context.Background(), "org_1", EventSpacecraftCreated, map[string]string{"name": "ISV Venture Star"}); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	req := receive(t, requests)

	// Signature verifies against the raw received bytes.
	if req.signature != Sign(secret, req.body) {
		t.Error("signature does not verify against received payload")
	}
	if req.eventType != EventSpacecraftCreated {
		t.Errorf("event header = %q", req.eventType)
	}
	if req.delivery == "" {
		t.Error("delivery id header missing")
	}
	if req.headers.Get("X-Env") != "staging" {
		t.Error("custom header not forwarded")
	}

	deliveryID := env.firstDelivery(t, created.ID)
	env.waitForStatus(t, deliveryID, models.DeliveryDelivered)

	d, _ := env.deliveries.GetByID(deliveryID)
	if d.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", d.Attempts)
	}
	if d.StatusCode != http.StatusOK {
		t.Errorf("status code = %d, want 200", d.StatusCode)
	}

	// Rolling success counter moves just after the status flip.
	deadline := time.Now().Add(3 * time.Second)
	for {
		w, _ := env.webhooks.GetByID(created.ID)
		if w.SuccessCount == 1 && w.LastSuccessAt != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("success counters never updated: count=%d", w.SuccessCount)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestDispatch_NonMatchingEvent(t *testing.T) {
	env := newTestEnv(t)
	srv, requests := captureServer(t, http.StatusOK)

	created, _, _ := env.registry.Create("org_1", "ops", srv.URL, []string{EventSpacecraftCreated}, nil)

	if err := env.dispatcher.Dispatch(context.Background(), "org_1", EventSpacecraftUpdated, nil); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}

	select {
	case <-requests:
		t.Fatal("unexpected delivery for unsubscribed event")
	case <-time.After(300 * time.Millisecond):
	}

	list, _ := env.deliveries.ListByWebhook(created.ID, 10, 0)
	if len(list) != 0 {
		t.Errorf("expected no deliveries, got %d", len(list))
	}
}

func TestDispatch_WildcardSubscription(t *testing.T) {
	env := newTestEnv(t)
	srv, requests := captureServer(t, http.StatusOK)

	env.registry.Create("org_1", "ops", srv.URL, []string{EventAll}, nil)

	env.dispatcher.Dispatch(context.Background(), "org_1", EventReportGenerated, nil)

	req := receive(t, requests)
	if req.eventType != EventReportGenerated {
		t.Errorf("event = %q", req.eventType)
	}
}

func TestDispatch_CrossOrgIsolation(t *testing.T) {
	env := newTestEnv(t)
	srv, requests := captureServer(t, http.StatusOK)

	env.registry.Create("org_1", "ops", srv.URL, []string{EventAll}, nil)

	env.dispatcher.Dispatch(context.Background(), "org_2", EventSpacecraftCreated, nil)

	select {
	case <-requests:
		t.Fatal("delivery crossed organization boundary")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestDeliverOnce_FailureSchedulesRetry(t *testing.T) {
	env := newTestEnv(t)
	srv, _ := captureServer(t, http.StatusBadGateway)

	created, _, _ := env.registry.Create("org_1", "ops", srv.URL, []string{EventAll}, nil)
	webhook, _ := env.webhooks.GetByID(created.ID)

	delivery := newDelivery(created.ID, EventSpacecraftCreated)
	env.deliveries.Create(delivery)

	env.dispatcher.DeliverOnce(context.Background(), delivery, webhook)

	d, _ := env.deliveries.GetByID(delivery.ID)
	if d.Status != models.DeliveryRetrying {
		t.Fatalf("status = %q, want retrying", d.Status)
	}
	if d.NextRetryAt == nil {
		t.Fatal("next_retry_at not scheduled")
	}
	if *d.NextRetryAt < time.Now().Unix() {
		t.Error("next_retry_at is in the past")
	}
	if d.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", d.Attempts)
	}
	if d.StatusCode != http.StatusBadGateway {
		t.Errorf("status code = %d", d.StatusCode)
	}
}

func TestDeliverOnce_ExhaustedBudgetIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	srv, _ := captureServer(t, http.StatusInternalServerError)

	created, _, _ := env.registry.Create("org_1", "ops", srv.URL, []string{EventAll}, nil)
	webhook, _ := env.webhooks.GetByID(created.ID)

	delivery := newDelivery(created.ID, EventSpacecraftCreated)
	env.deliveries.Create(delivery)

	// MaxAttempts is 3 in the test config.
	for i := 0; i < 3; i++ {
		d, _ := env.deliveries.GetByID(delivery.ID)
		env.dispatcher.DeliverOnce(context.Background(), d, webhook)
	}

	d, _ := env.deliveries.GetByID(delivery.ID)
	if d.Status != models.DeliveryFailed {
		t.Fatalf("status = %q, want failed", d.Status)
	}
	if d.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", d.Attempts)
	}
	if d.NextRetryAt != nil {
		t.Error("terminal delivery still scheduled for retry")
	}

	w, _ := env.webhooks.GetByID(created.ID)
	if w.FailureCount != 1 {
		t.Errorf("failure count = %d, want 1", w.FailureCount)
	}
	if w.LastError == "" {
		t.Error("last_error not recorded")
	}
}

func TestDeliverOnce_UnreachableTarget(t *testing.T) {
	env := newTestEnv(t)

	created, _, _ := env.registry.Create("org_1", "ops", "http://127.0.0.1:1", []string{EventAll}, nil)
	webhook, _ := env.webhooks.GetByID(created.ID)

	delivery := newDelivery(created.ID, EventSpacecraftCreated)
	env.deliveries.Create(delivery)

	env.dispatcher.DeliverOnce(context.Background(), delivery, webhook)

	d, _ := env.deliveries.GetByID(delivery.ID)
	if d.Status != models.DeliveryRetrying {
		t.Fatalf("status = %q, want retrying after network failure", d.Status)
	}
	if d.Error == "" {
		t.Error("error message not recorded")
	}
}

// A manual retry of a terminal failure re-sends the original payload
// bytes; the recomputed signature matches one computed from the stored
// payload.
func TestRetryManually(t *testing.T) {
	env := newTestEnv(t)

	var respondOK atomic.Bool
	var lastBody atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		lastBody.Store(body)
		if respondOK.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	created, secret, _ := env.registry.Create("org_1", "ops", srv.URL, []string{EventAll}, nil)
	webhook, _ := env.webhooks.GetByID(created.ID)

	delivery := newDelivery(created.ID, EventSpacecraftCreated)
	env.deliveries.Create(delivery)
	originalPayload := string(delivery.Payload)

	// Burn the retry budget against the failing target.
	for i := 0; i < 3; i++ {
		d, _ := env.deliveries.GetByID(delivery.ID)
		env.dispatcher.DeliverOnce(context.Background(), d, webhook)
	}
	d, _ := env.deliveries.GetByID(delivery.ID)
	if d.Status != models.DeliveryFailed {
		t.Fatalf("setup: status = %q, want failed", d.Status)
	}

	// Operator retries once the target recovers.
	respondOK.Store(true)
	updated, err := env.dispatcher.RetryManually(context.Background(), "org_1", delivery.ID)
	if err != nil {
		t.Fatalf("RetryManually() error: %v", err)
	}

	if updated.Status != models.DeliveryDelivered {
		t.Errorf("status = %q, want delivered", updated.Status)
	}
	if updated.Attempts != 4 {
		t.Errorf("attempts = %d, want 4", updated.Attempts)
	}

	sent, _ := lastBody.Load().([]byte)
	if string(sent) != originalPayload {
		t.Error("manual retry did not re-send the original payload bytes")
	}
	if Sign(secret, sent) != Sign(secret, []byte(originalPayload)) {
		t.Error("signature mismatch between original and retried payload")
	}
}

func TestRetryManually_RequiresFailedStatus(t *testing.T) {
	env := newTestEnv(t)

	created, _, _ := env.registry.Create("org_1", "ops", "https://example.com", []string{EventAll}, nil)

	delivery := newDelivery(created.ID, EventSpacecraftCreated)
	env.deliveries.Create(delivery) // still pending

	_, err := env.dispatcher.RetryManually(context.Background(), "org_1", delivery.ID)
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.ErrCodeInvalidState {
		t.Errorf("expected invalid state, got %v", err)
	}
}

func TestRetryManually_RequiresActiveWebhook(t *testing.T) {
	env := newTestEnv(t)

	created, _, _ := env.registry.Create("org_1", "ops", "https://example.com", []string{EventAll}, nil)

	delivery := newDelivery(created.ID, EventSpacecraftCreated)
	env.deliveries.Create(delivery)
	if _, err := env.db.Exec(`UPDATE webhook_deliveries SET status = 'failed' WHERE id = ?`, delivery.ID); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := env.db.Exec(`UPDATE webhooks SET active = 0 WHERE id = ?`, created.ID); err != nil {
		t.Fatalf("update: %v", err)
	}

	_, err := env.dispatcher.RetryManually(context.Background(), "org_1", delivery.ID)
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.ErrCodeInvalidState {
		t.Errorf("expected invalid state for inactive webhook, got %v", err)
	}
}

func TestRetryManually_UnknownDelivery(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.dispatcher.RetryManually(context.Background(), "org_1", "whd_missing")
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.ErrCodeNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}
