package reconcile

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/acidbutter96/mel-davis-store/internal/purchases"
	"github.com/acidbutter96/mel-davis-store/pkg/db"
	"github.com/acidbutter96/mel-davis-store/pkg/db/models"
	"github.com/acidbutter96/mel-davis-store/pkg/enums"
	pkgerrors "github.com/acidbutter96/mel-davis-store/pkg/errors"
	"github.com/acidbutter96/mel-davis-store/pkg/logger"
	"github.com/acidbutter96/mel-davis-store/pkg/metrics"
)

const purchaseUniqueConstraint = "idx_purchases_user_object"

// LineItemLister fetches a checkout session's line items from the gateway.
// Called at most once per purchase lifecycle, only when a session-kind
// purchase is first created.
type LineItemLister interface {
	SessionLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Result reports what applying one event did.
type Result struct {
	Created      bool
	Duplicate    bool
	Unattributed bool
	PurchaseID   uuid.UUID
	UserID       uuid.UUID
	Status       string
}

// Outcome returns the metrics label for the result.
func (r Result) Outcome() string {
	switch {
	case r.Unattributed:
		return "unattributed"
	case r.Duplicate:
		return "duplicate"
	case r.Created:
		return "created"
	default:
		return "updated"
	}
}

type ServiceParams struct {
	PurchaseRepo      purchases.Repository
	StripeClient      LineItemLister
	TransactionRunner txRunner
	Metrics           *metrics.WebhookMetrics
	Logger            *logger.Logger
}

// Service folds webhook events into purchase aggregates: one idempotent
// find-or-create upsert per event, in arrival order.
type Service struct {
	purchaseRepo purchases.Repository
	stripe       LineItemLister
	txRunner     txRunner
	metrics      *metrics.WebhookMetrics
	logg         *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.PurchaseRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase repo required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		purchaseRepo: params.PurchaseRepo,
		stripe:       params.StripeClient,
		txRunner:     params.TransactionRunner,
		metrics:      params.Metrics,
		logg:         params.Logger,
	}, nil
}

// HandleEvent applies one gateway event. Unattributable events are a
// successful no-op; persistence failures surface so the sender retries.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (Result, error) {
	if event == nil || event.Data == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	object := event.Data.Object
	extracted := ExtractContext(object, string(event.Type))
	if !extracted.Attributable() {
		return Result{Unattributed: true}, nil
	}

	userID, err := uuid.Parse(extracted.UserID)
	if err != nil {
		// Metadata carried a userId we cannot attribute to an account.
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "event_id", event.ID), "event user metadata not attributable")
		}
		return Result{Unattributed: true}, nil
	}

	status := DeriveStatus(object, string(event.Type))
	eventRecord := models.PurchaseEvent{
		EventID:           event.ID,
		Type:              string(event.Type),
		Status:            status,
		ProcessedAt:       time.Now().UTC(),
		ExternalCreatedAt: event.Created,
	}

	result, err := s.apply(ctx, userID, extracted, status, eventRecord, object)
	if err != nil {
		return Result{}, err
	}
	result.UserID = userID
	result.Status = status
	return result, nil
}

func (s *Service) apply(ctx context.Context, userID uuid.UUID, extracted Context, status string, eventRecord models.PurchaseEvent, object map[string]any) (Result, error) {
	// Existence probe first, so the optional line-item fetch stays outside
	// the transaction and never runs for an already-known correlation.
	existing, err := s.purchaseRepo.FindByAnyID(ctx, userID, extracted.RootID)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find purchase")
	}

	if existing != nil {
		return s.applyToExisting(ctx, existing, extracted, status, eventRecord)
	}

	amountTotal, currency := deriveAmount(extracted.Kind, object)

	var lineItems []models.PurchaseLineItem
	if extracted.Kind == KindCheckoutSession {
		items, fetchErr := s.fetchLineItems(ctx, extracted.RootID)
		if fetchErr != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, fetchErr, "fetch line items")
		}
		lineItems = items
		if amountTotal == 0 {
			amountTotal = lineItemTotal(lineItems)
		}
	}

	purchase := models.Purchase{
		ID:               uuid.New(),
		UserID:           userID,
		StripeObjectID:   extracted.RootID,
		Kind:             extracted.Kind.PurchaseKind(),
		Status:           status,
		AmountTotalCents: amountTotal,
		Currency:         currency,
	}

	created := false
	userMissing := false
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.purchaseRepo.WithTx(tx)

		if err := repo.CreatePurchase(ctx, &purchase); err != nil {
			if db.IsUniqueViolation(err, purchaseUniqueConstraint) {
				// A concurrent first-sight delivery won the insert race;
				// leave created=false so the caller retries the update path.
				return nil
			}
			if db.IsForeignKeyViolation(err) {
				// metadata.userId matched no account row. Same contract as
				// a missing userId: acknowledge and drop, never bounce.
				userMissing = true
			}
			return err
		}
		created = true

		eventRecord.PurchaseID = purchase.ID
		applied, err := repo.AppendEvent(ctx, &eventRecord)
		if err != nil {
			return err
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeConflict, "event already applied to another purchase")
		}

		if err := repo.UpsertRelatedIDs(ctx, relatedRows(purchase.ID, userID, extracted.Related)); err != nil {
			return err
		}

		for i := range lineItems {
			lineItems[i].PurchaseID = purchase.ID
		}
		return repo.CreateLineItems(ctx, lineItems)
	})
	if err != nil {
		if userMissing {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "event_id", eventRecord.EventID), "event user unknown, delivery dropped")
			}
			return Result{Unattributed: true}, nil
		}
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create purchase")
	}

	if !created {
		// Lost the create race: the aggregate now exists, apply as update.
		existing, err = s.purchaseRepo.FindByAnyID(ctx, userID, extracted.RootID)
		if err != nil {
			return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find purchase after create race")
		}
		if existing == nil {
			return Result{}, pkgerrors.New(pkgerrors.CodeInternal, "purchase missing after create conflict")
		}
		return s.applyToExisting(ctx, existing, extracted, status, eventRecord)
	}

	return Result{Created: true, PurchaseID: purchase.ID}, nil
}

func (s *Service) applyToExisting(ctx context.Context, purchase *models.Purchase, extracted Context, status string, eventRecord models.PurchaseEvent) (Result, error) {
	duplicate := false
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.purchaseRepo.WithTx(tx)

		eventRecord.PurchaseID = purchase.ID
		applied, err := repo.AppendEvent(ctx, &eventRecord)
		if err != nil {
			return err
		}
		if !applied {
			// Redelivery of an already-applied event: nothing mutates.
			duplicate = true
			return nil
		}

		if err := repo.UpdateStatus(ctx, purchase.ID, status); err != nil {
			return err
		}
		return repo.UpsertRelatedIDs(ctx, relatedRows(purchase.ID, purchase.UserID, extracted.Related))
	})
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply event")
	}
	return Result{Duplicate: duplicate, PurchaseID: purchase.ID}, nil
}

func (s *Service) fetchLineItems(ctx context.Context, sessionID string) ([]models.PurchaseLineItem, error) {
	items, err := s.stripe.SessionLineItems(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncLineItemFetch()
	}

	out := make([]models.PurchaseLineItem, 0, len(items))
	for i, item := range items {
		if item == nil {
			continue
		}
		row := models.PurchaseLineItem{
			Position: i,
			Quantity: item.Quantity,
		}
		if item.Description != "" {
			desc := item.Description
			row.Name = &desc
		}
		if item.Price != nil {
			if item.Price.ID != "" {
				priceID := item.Price.ID
				row.PriceID = &priceID
			}
			unitAmount := item.Price.UnitAmount
			row.UnitAmountCents = &unitAmount
		}
		out = append(out, row)
	}
	return out, nil
}

func relatedRows(purchaseID, userID uuid.UUID, related RelatedIDs) []models.PurchaseRelatedID {
	row := func(kind enums.RelatedIDKind, value string) models.PurchaseRelatedID {
		return models.PurchaseRelatedID{
			PurchaseID: purchaseID,
			UserID:     userID,
			IDKind:     kind,
			IDValue:    value,
		}
	}

	var rows []models.PurchaseRelatedID
	if related.SessionID != "" {
		rows = append(rows, row(enums.RelatedIDSession, related.SessionID))
	}
	if related.PaymentIntentID != "" {
		rows = append(rows, row(enums.RelatedIDPaymentIntent, related.PaymentIntentID))
	}
	if related.InvoiceID != "" {
		rows = append(rows, row(enums.RelatedIDInvoice, related.InvoiceID))
	}
	if related.SubscriptionID != "" {
		rows = append(rows, row(enums.RelatedIDSubscription, related.SubscriptionID))
	}
	if related.ChargeID != "" {
		rows = append(rows, row(enums.RelatedIDCharge, related.ChargeID))
	}
	if related.RefundID != "" {
		rows = append(rows, row(enums.RelatedIDRefund, related.RefundID))
	}
	return rows
}

func deriveAmount(kind Kind, object map[string]any) (int64, string) {
	currency := strings.ToLower(stringField(object, "currency"))
	if currency == "" {
		currency = "usd"
	}

	switch kind {
	case KindCheckoutSession:
		return int64Field(object, "amount_total"), currency
	case KindPaymentIntent, KindCharge, KindRefund:
		return int64Field(object, "amount"), currency
	case KindInvoice:
		if paid := int64Field(object, "amount_paid"); paid != 0 {
			return paid, currency
		}
		return int64Field(object, "amount_due"), currency
	default:
		// Subscription events do not carry a paid total.
		return 0, currency
	}
}

func int64Field(object map[string]any, key string) int64 {
	switch v := object[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

func lineItemTotal(items []models.PurchaseLineItem) int64 {
	var total int64
	for _, item := range items {
		if item.UnitAmountCents == nil {
			continue
		}
		total += *item.UnitAmountCents * item.Quantity
	}
	return total
}
