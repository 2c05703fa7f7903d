package reconcile

import (
	"strings"

	"github.com/acidbutter96/mel-davis-store/pkg/enums"
)

// Kind is the closed set of event families the extractor dispatches on,
// resolved exactly once from the event type string.
type Kind string

const (
	KindCheckoutSession Kind = Kind(enums.PurchaseKindCheckoutSession)
	KindPaymentIntent   Kind = Kind(enums.PurchaseKindPaymentIntent)
	KindInvoice         Kind = Kind(enums.PurchaseKindInvoice)
	KindSubscription    Kind = Kind(enums.PurchaseKindSubscription)
	KindCharge          Kind = Kind(enums.PurchaseKindCharge)
	KindRefund          Kind = Kind(enums.PurchaseKindRefund)
	KindUnknown         Kind = "unknown"
)

// PurchaseKind converts the dispatch kind to the persisted enum.
func (k Kind) PurchaseKind() enums.PurchaseKind {
	return enums.PurchaseKind(k)
}

// RelatedIDs is the fragment of foreign identifiers observed on a single
// event. Only populated fields are ever written; absent fields never
// overwrite previously recorded values.
type RelatedIDs struct {
	SessionID       string
	PaymentIntentID string
	InvoiceID       string
	SubscriptionID  string
	ChargeID        string
	RefundID        string
}

// Context is everything the reconciler needs from one raw event: the owning
// user, the root correlation id, the resolved kind and the related-id
// fragment. UserID or RootID being empty makes the event a safe no-op.
type Context struct {
	UserID  string
	RootID  string
	Kind    Kind
	Related RelatedIDs
}

// Attributable reports whether the event can be applied at all.
func (c Context) Attributable() bool {
	return c.UserID != "" && c.RootID != ""
}

// KindForEventType resolves the event family from the type string.
func KindForEventType(eventType string) Kind {
	switch {
	case strings.HasPrefix(eventType, "checkout.session"):
		return KindCheckoutSession
	case strings.HasPrefix(eventType, "payment_intent"):
		return KindPaymentIntent
	case strings.HasPrefix(eventType, "invoice"):
		return KindInvoice
	case strings.HasPrefix(eventType, "customer.subscription"):
		return KindSubscription
	case strings.HasPrefix(eventType, "charge."):
		return KindCharge
	case strings.HasPrefix(eventType, "refund."):
		return KindRefund
	default:
		return KindUnknown
	}
}

// ExtractContext pulls the user attribution, root correlation id and related
// foreign ids out of a raw event object. The user id comes exclusively from
// object.metadata.userId: correlated objects that do not echo the metadata
// (a bare payment intent, a refund) stay unattributable by design.
func ExtractContext(object map[string]any, eventType string) Context {
	out := Context{Kind: KindForEventType(eventType)}
	if object == nil {
		return out
	}

	if metadata, ok := object["metadata"].(map[string]any); ok {
		if v, ok := metadata["userId"].(string); ok {
			out.UserID = v
		}
	}

	switch out.Kind {
	case KindCheckoutSession:
		out.RootID = stringField(object, "id")
		out.Related.SessionID = out.RootID
		out.Related.PaymentIntentID = stringField(object, "payment_intent")
		out.Related.SubscriptionID = stringField(object, "subscription")

	case KindPaymentIntent:
		out.RootID = stringField(object, "id")
		out.Related.PaymentIntentID = out.RootID
		out.Related.ChargeID = firstChargeID(object)

	case KindInvoice:
		out.RootID = stringField(object, "id")
		out.Related.InvoiceID = out.RootID
		out.Related.SubscriptionID = stringField(object, "subscription")
		out.Related.PaymentIntentID = stringField(object, "payment_intent")

	case KindSubscription:
		out.RootID = stringField(object, "id")
		out.Related.SubscriptionID = out.RootID

	case KindCharge:
		paymentIntent := stringField(object, "payment_intent")
		out.RootID = paymentIntent
		if out.RootID == "" {
			out.RootID = stringField(object, "id")
		}
		out.Related.ChargeID = stringField(object, "id")
		out.Related.PaymentIntentID = paymentIntent

	case KindRefund:
		paymentIntent := stringField(object, "payment_intent")
		out.RootID = paymentIntent
		if out.RootID == "" {
			out.RootID = stringField(object, "id")
		}
		out.Related.RefundID = stringField(object, "id")
		out.Related.PaymentIntentID = paymentIntent
		out.Related.ChargeID = stringField(object, "charge")
	}

	return out
}

func firstChargeID(object map[string]any) string {
	charges, ok := object["charges"].(map[string]any)
	if !ok {
		return ""
	}
	data, ok := charges["data"].([]any)
	if !ok || len(data) == 0 {
		return ""
	}
	first, ok := data[0].(map[string]any)
	if !ok {
		return ""
	}
	return stringField(first, "id")
}
