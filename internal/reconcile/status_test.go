package reconcile

import "testing"

func TestDeriveStatus_ObjectStatusWins(t *testing.T) {
	object := map[string]any{"status": "requires_action"}
	if got := DeriveStatus(object, "payment_intent.succeeded"); got != "requires_action" {
		t.Fatalf("expected object status to win, got %q", got)
	}
}

func TestDeriveStatus_PaymentStatusFallback(t *testing.T) {
	object := map[string]any{"payment_status": "unpaid"}
	if got := DeriveStatus(object, "checkout.session.completed"); got != "unpaid" {
		t.Fatalf("expected payment_status fallback, got %q", got)
	}
}

func TestDeriveStatus_EventTypeTable(t *testing.T) {
	cases := map[string]string{
		"checkout.session.completed":               "paid",
		"checkout.session.async_payment_succeeded": "paid",
		"checkout.session.async_payment_failed":    "failed",
		"checkout.session.expired":                 "expired",
		"payment_intent.succeeded":                 "succeeded",
		"payment_intent.payment_failed":            "failed",
		"payment_intent.canceled":                  "canceled",
		"payment_intent.processing":                "processing",
		"invoice.paid":                             "paid",
		"invoice.payment_failed":                   "failed",
		"invoice.finalized":                        "finalized",
		"invoice.voided":                           "voided",
		"invoice.marked_uncollectible":             "uncollectible",
		"charge.succeeded":                         "succeeded",
		"charge.failed":                            "failed",
		"charge.refunded":                          "refunded",
		"refund.succeeded":                         "refunded",
		"refund.updated":                           "refund_updated",
		"customer.subscription.created":            "created",
		"customer.subscription.updated":            "updated",
		"customer.subscription.deleted":            "canceled",
		"customer.subscription.pending_update_applied": "updated",
		"customer.subscription.pending_update_expired": "expired",
	}
	for eventType, want := range cases {
		if got := DeriveStatus(nil, eventType); got != want {
			t.Errorf("%s: expected %q, got %q", eventType, want, got)
		}
	}
}

func TestDeriveStatus_UnknownTypePassesThrough(t *testing.T) {
	if got := DeriveStatus(nil, "charge.dispute.created"); got != "charge.dispute.created" {
		t.Fatalf("expected raw event type fallback, got %q", got)
	}
}

func TestDeriveStatus_EmptyStatusFieldIgnored(t *testing.T) {
	object := map[string]any{"status": ""}
	if got := DeriveStatus(object, "invoice.paid"); got != "paid" {
		t.Fatalf("expected empty status ignored, got %q", got)
	}
}
