package enums

// PurchaseKind identifies the Stripe object family that first produced a
// purchase aggregate. Set at creation, never changed.
type PurchaseKind string

const (
	PurchaseKindCheckoutSession PurchaseKind = "checkout_session"
	PurchaseKindPaymentIntent   PurchaseKind = "payment_intent"
	PurchaseKindInvoice         PurchaseKind = "invoice"
	PurchaseKindSubscription    PurchaseKind = "subscription"
	PurchaseKindCharge          PurchaseKind = "charge"
	PurchaseKindRefund          PurchaseKind = "refund"
)

func (k PurchaseKind) IsValid() bool {
	switch k {
	case PurchaseKindCheckoutSession,
		PurchaseKindPaymentIntent,
		PurchaseKindInvoice,
		PurchaseKindSubscription,
		PurchaseKindCharge,
		PurchaseKindRefund:
		return true
	default:
		return false
	}
}

// RelatedIDKind labels a foreign identifier recorded against a purchase.
// Session/payment-intent/invoice/subscription entries are single valued per
// purchase; charge and refund entries accumulate.
type RelatedIDKind string

const (
	RelatedIDSession       RelatedIDKind = "session"
	RelatedIDPaymentIntent RelatedIDKind = "payment_intent"
	RelatedIDInvoice       RelatedIDKind = "invoice"
	RelatedIDSubscription  RelatedIDKind = "subscription"
	RelatedIDCharge        RelatedIDKind = "charge"
	RelatedIDRefund        RelatedIDKind = "refund"
)

func (k RelatedIDKind) IsValid() bool {
	switch k {
	case RelatedIDSession,
		RelatedIDPaymentIntent,
		RelatedIDInvoice,
		RelatedIDSubscription,
		RelatedIDCharge,
		RelatedIDRefund:
		return true
	default:
		return false
	}
}

// Multi reports whether the kind accumulates values instead of upserting in
// place.
func (k RelatedIDKind) Multi() bool {
	return k == RelatedIDCharge || k == RelatedIDRefund
}
