package stripewebhook

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/stride-labs/storefront-backend/internal/orders"
	pkgerrors "github.com/stride-labs/storefront-backend/pkg/errors"
	"github.com/stride-labs/storefront-backend/pkg/logger"
)

type stubFinalizer struct {
	calls  []string
	result *orders.FinalizeResult
	err    error
}

func (s *stubFinalizer) FinalizeOrder(ctx context.Context, providerSessionID string) (*orders.FinalizeResult, error) {
	s.calls = append(s.calls, providerSessionID)
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &orders.FinalizeResult{OrderID: uuid.New()}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newWebhookService(t *testing.T, finalizer *stubFinalizer) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Orders: finalizer, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func checkoutEvent(t *testing.T, eventType stripe.EventType, sessionID string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"id": sessionID})
	if err != nil {
		t.Fatalf("marshal event payload: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_1",
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleEventFinalizesCompletedSession(t *testing.T) {
	finalizer := &stubFinalizer{}
	svc := newWebhookService(t, finalizer)

	event := checkoutEvent(t, stripe.EventTypeCheckoutSessionCompleted, "cs_123")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(finalizer.calls) != 1 || finalizer.calls[0] != "cs_123" {
		t.Fatalf("expected finalize for cs_123, got %v", finalizer.calls)
	}
}

func TestHandleEventAcceptsReplays(t *testing.T) {
	finalizer := &stubFinalizer{result: &orders.FinalizeResult{OrderID: uuid.New(), AlreadyFinalized: true}}
	svc := newWebhookService(t, finalizer)

	event := checkoutEvent(t, stripe.EventTypeCheckoutSessionCompleted, "cs_123")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("replayed event must be acknowledged, got %v", err)
	}
}

func TestHandleEventIgnoresUnrelatedTypes(t *testing.T) {
	finalizer := &stubFinalizer{}
	svc := newWebhookService(t, finalizer)

	event := checkoutEvent(t, stripe.EventTypeInvoicePaid, "in_1")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unrelated event must be acknowledged, got %v", err)
	}
	if len(finalizer.calls) != 0 {
		t.Fatalf("finalizer must not run for unrelated events")
	}
}

func TestHandleEventPropagatesFinalizerErrors(t *testing.T) {
	finalizer := &stubFinalizer{err: pkgerrors.New(pkgerrors.CodeDependency, "payment provider timed out")}
	svc := newWebhookService(t, finalizer)

	event := checkoutEvent(t, stripe.EventTypeCheckoutSessionCompleted, "cs_123")
	err := svc.HandleEvent(context.Background(), event)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected finalizer error to surface for retry, got %v", err)
	}
}

func TestHandleEventValidatesPayload(t *testing.T) {
	svc := newWebhookService(t, &stubFinalizer{})

	if err := svc.HandleEvent(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil event")
	}

	event := &stripe.Event{
		ID:   "evt_bad",
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: []byte("{not json")},
	}
	err := svc.HandleEvent(context.Background(), event)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error for malformed payload, got %v", err)
	}

	empty := checkoutEvent(t, stripe.EventTypeCheckoutSessionCompleted, "")
	err = svc.HandleEvent(context.Background(), empty)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing session id, got %v", err)
	}
}

type fakeIdempotencyStore struct {
	keys map[string]string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{keys: make(map[string]string)}
}

func (f *fakeIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	return f.keys[key], nil
}

func (f *fakeIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := f.keys[key]; exists {
		return false, nil
	}
	f.keys[key] = "1"
	return true, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func (f *fakeIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func TestIdempotencyGuardMarksOnce(t *testing.T) {
	guard, err := NewIdempotencyGuard(newFakeIdempotencyStore(), time.Minute, "stripe_webhook")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard failed: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("first mark failed: %v", err)
	}
	if seen {
		t.Fatal("first delivery must not read as seen")
	}

	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("second mark failed: %v", err)
	}
	if !seen {
		t.Fatal("redelivery must read as seen")
	}
}

func TestIdempotencyGuardDeleteAllowsRetry(t *testing.T) {
	guard, err := NewIdempotencyGuard(newFakeIdempotencyStore(), time.Minute, "stripe_webhook")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard failed: %v", err)
	}

	if _, err := guard.CheckAndMark(context.Background(), "evt_1"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := guard.Delete(context.Background(), "evt_1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("re-mark failed: %v", err)
	}
	if seen {
		t.Fatal("deleting the mark must allow the event to be retried")
	}
}
