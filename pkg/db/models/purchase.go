package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/acidbutter96/mel-davis-store/pkg/enums"
)

// Purchase is the aggregate root for one logical payment transaction. The
// Stripe root correlation id (session/payment-intent/invoice/subscription id)
// lives in StripeObjectID; (user_id, stripe_object_id) is unique so two
// concurrent first-sight deliveries cannot create the aggregate twice.
type Purchase struct {
	ID               uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID          `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_purchases_user_object,priority:1"`
	StripeObjectID   string             `gorm:"column:stripe_object_id;not null;uniqueIndex:idx_purchases_user_object,priority:2"`
	Kind             enums.PurchaseKind `gorm:"column:kind;type:purchase_kind;not null"`
	Status           string             `gorm:"column:status;not null"`
	AmountTotalCents int64              `gorm:"column:amount_total_cents;not null"`
	Currency         string             `gorm:"column:currency;not null;default:'usd'"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`

	Events     []PurchaseEvent     `gorm:"foreignKey:PurchaseID"`
	RelatedIDs []PurchaseRelatedID `gorm:"foreignKey:PurchaseID"`
	LineItems  []PurchaseLineItem  `gorm:"foreignKey:PurchaseID"`
}

// PurchaseEvent is one applied webhook delivery. EventID is the Stripe event
// id and is globally unique: inserting the row is the idempotency check.
// Rows are append-only.
type PurchaseEvent struct {
	ID                uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PurchaseID        uuid.UUID `gorm:"column:purchase_id;type:uuid;not null;index"`
	EventID           string    `gorm:"column:event_id;not null;uniqueIndex"`
	Type              string    `gorm:"column:type;not null"`
	Status            string    `gorm:"column:status;not null"`
	ProcessedAt       time.Time `gorm:"column:processed_at;not null"`
	ExternalCreatedAt int64     `gorm:"column:external_created_at"`
}

// PurchaseRelatedID is one entry of the explicit secondary index mapping a
// foreign Stripe identifier to its owning purchase. Charge and refund entries
// accumulate; the other kinds hold at most one value per purchase.
type PurchaseRelatedID struct {
	ID         uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PurchaseID uuid.UUID           `gorm:"column:purchase_id;type:uuid;not null;uniqueIndex:idx_related_kind_value,priority:3"`
	UserID     uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index:idx_related_user_value,priority:1"`
	IDKind     enums.RelatedIDKind `gorm:"column:id_kind;type:related_id_kind;not null;uniqueIndex:idx_related_kind_value,priority:1"`
	IDValue    string              `gorm:"column:id_value;not null;uniqueIndex:idx_related_kind_value,priority:2;index:idx_related_user_value,priority:2"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
}

// PurchaseLineItem is captured once, when a checkout-session purchase is
// first created, from the gateway's line-items API.
type PurchaseLineItem struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PurchaseID      uuid.UUID `gorm:"column:purchase_id;type:uuid;not null;index"`
	Position        int       `gorm:"column:position;not null"`
	Name            *string   `gorm:"column:name"`
	Quantity        int64     `gorm:"column:quantity;not null"`
	UnitAmountCents *int64    `gorm:"column:unit_amount_cents"`
	PriceID         *string   `gorm:"column:price_id"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}
