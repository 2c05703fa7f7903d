package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/acidbutter96/mel-davis-store/internal/reconcile"
	pkgerrors "github.com/acidbutter96/mel-davis-store/pkg/errors"
)

func newHandler(service *fakeReconcileService, secret string) (http.HandlerFunc, *inMemoryStore) {
	store := newInMemoryStore()
	guard, _ := reconcile.NewIdempotencyGuard(store, time.Minute, "stripe-webhook")
	return StripeWebhook(service, &fakeSigningClient{secret: secret}, guard, nil, nil, nil), store
}

func TestStripeWebhook_SuccessAndIdempotent(t *testing.T) {
	payload, header := buildSignedEvent(t)
	service := &fakeReconcileService{}
	handler, _ := newHandler(service, "whsec_test")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}

	// Replay the same event
	req2 := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req2.Header.Set("Stripe-Signature", header)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 on duplicate, got %d (%s)", rec2.Code, rec2.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected duplicate not processed, call count %d", service.calls)
	}
}

func TestStripeWebhook_InvalidSignatureIs400(t *testing.T) {
	payload, _ := buildSignedEvent(t)
	service := &fakeReconcileService{}
	handler, _ := newHandler(service, "whsec_test")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", "t=1,v1=invalid")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked on invalid signature")
	}
}

func TestStripeWebhook_MissingSignatureIs400(t *testing.T) {
	payload, _ := buildSignedEvent(t)
	handler, _ := newHandler(&fakeReconcileService{}, "whsec_test")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing signature, got %d", rec.Code)
	}
}

func TestStripeWebhook_NoSecretParsesUnverified(t *testing.T) {
	payload, _ := buildSignedEvent(t)
	service := &fakeReconcileService{}
	handler, _ := newHandler(service, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without configured secret, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected event handled, call count %d", service.calls)
	}
}

func TestStripeWebhook_MalformedBodyIs400(t *testing.T) {
	handler, _ := newHandler(&fakeReconcileService{}, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader([]byte("not-json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestStripeWebhook_ServiceFailureIs500AndClearsGuard(t *testing.T) {
	payload, header := buildSignedEvent(t)
	service := &fakeReconcileService{err: pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("db down"), "create purchase")}
	handler, store := newHandler(service, "whsec_test")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on persistence failure, got %d", rec.Code)
	}
	if len(store.data) != 0 {
		t.Fatal("guard mark must be cleared so the sender can retry")
	}
}

func TestStripeWebhook_UnattributedIs200(t *testing.T) {
	payload, header := buildSignedEvent(t)
	service := &fakeReconcileService{result: reconcile.Result{Unattributed: true}}
	handler, _ := newHandler(service, "whsec_test")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unattributed event, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("unattributed")) {
		t.Fatalf("expected unattributed outcome, body %s", rec.Body.String())
	}
}

func buildSignedEvent(t *testing.T) ([]byte, string) {
	t.Helper()

	object := map[string]any{
		"id":             "cs_" + uuid.NewString(),
		"object":         "checkout.session",
		"payment_intent": "pi_" + uuid.NewString(),
		"payment_status": "paid",
		"amount_total":   2500,
		"currency":       "usd",
		"metadata":       map[string]any{"userId": uuid.NewString()},
	}
	rawObject, err := json.Marshal(object)
	if err != nil {
		t.Fatalf("marshal object: %v", err)
	}
	event := &stripe.Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       stripe.EventTypeCheckoutSessionCompleted,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data: &stripe.EventData{
			Raw: rawObject,
		},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	header := buildStripeSignatureHeader(payload, "whsec_test", time.Now().Unix())
	return payload, header
}

func buildStripeSignatureHeader(payload []byte, secret string, ts int64) string {
	signedPayload := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

type fakeReconcileService struct {
	calls  int
	result reconcile.Result
	err    error
}

func (f *fakeReconcileService) HandleEvent(ctx context.Context, event *stripe.Event) (reconcile.Result, error) {
	f.calls++
	if f.err != nil {
		return reconcile.Result{}, f.err
	}
	return f.result, nil
}

type fakeSigningClient struct {
	secret string
}

func (c *fakeSigningClient) SigningSecret() string {
	return c.secret
}

type inMemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{
		data: make(map[string]string),
	}
}

func (s *inMemoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *inMemoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("mds:idempotency:%s:%s", scope, id)
}

func (s *inMemoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}
