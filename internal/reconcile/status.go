package reconcile

// statusByEventType is the fallback status table used when the event's own
// object carries no status field. The gateway's vocabulary is authoritative;
// these values only cover events whose objects omit a status.
var statusByEventType = map[string]string{
	// Checkout Session
	"checkout.session.completed":               "paid",
	"checkout.session.async_payment_succeeded": "paid",
	"checkout.session.async_payment_failed":    "failed",
	"checkout.session.expired":                 "expired",
	// Payment Intent
	"payment_intent.succeeded":       "succeeded",
	"payment_intent.payment_failed":  "failed",
	"payment_intent.canceled":        "canceled",
	"payment_intent.processing":      "processing",
	// Invoice
	"invoice.paid":                 "paid",
	"invoice.payment_failed":       "failed",
	"invoice.finalized":            "finalized",
	"invoice.voided":               "voided",
	"invoice.marked_uncollectible": "uncollectible",
	// Charge
	"charge.succeeded": "succeeded",
	"charge.failed":    "failed",
	"charge.refunded":  "refunded",
	// Refund
	"refund.succeeded": "refunded",
	"refund.updated":   "refund_updated",
	// Subscription
	"customer.subscription.created":                "created",
	"customer.subscription.updated":                "updated",
	"customer.subscription.deleted":                "canceled",
	"customer.subscription.pending_update_applied": "updated",
	"customer.subscription.pending_update_expired": "expired",
}

// DeriveStatus maps an event to its canonical status. A non-empty `status`
// or `payment_status` on the object wins verbatim; otherwise the event-type
// table applies, and an unmapped type falls back to the type string itself.
func DeriveStatus(object map[string]any, eventType string) string {
	if s := stringField(object, "status"); s != "" {
		return s
	}
	if s := stringField(object, "payment_status"); s != "" {
		return s
	}
	return statusForEventType(eventType)
}

func statusForEventType(eventType string) string {
	if status, ok := statusByEventType[eventType]; ok {
		return status
	}
	return eventType
}

func stringField(object map[string]any, key string) string {
	if object == nil {
		return ""
	}
	if v, ok := object[key].(string); ok {
		return v
	}
	return ""
}
