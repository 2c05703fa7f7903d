package purchases

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/acidbutter96/mel-davis-store/pkg/db/models"
	"github.com/acidbutter96/mel-davis-store/pkg/enums"
)

// PurchaseSummary is the list-view projection of a purchase.
type PurchaseSummary struct {
	ID          uuid.UUID          `json:"id"`
	ObjectID    string             `json:"object_id"`
	Kind        enums.PurchaseKind `json:"kind"`
	Status      string             `json:"status"`
	AmountCents int64              `json:"amount_cents"`
	Amount      string             `json:"amount"`
	Currency    string             `json:"currency"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// AdminPurchaseSummary adds the owning user for back-office listings.
type AdminPurchaseSummary struct {
	PurchaseSummary
	UserID uuid.UUID `json:"user_id"`
}

// PurchaseEventDTO is one applied event in a purchase's history.
type PurchaseEventDTO struct {
	EventID           string    `json:"event_id"`
	Type              string    `json:"type"`
	Status            string    `json:"status"`
	ProcessedAt       time.Time `json:"processed_at"`
	ExternalCreatedAt int64     `json:"external_created_at,omitempty"`
}

// RelatedIDDTO is one entry of the purchase's correlation index.
type RelatedIDDTO struct {
	Kind  enums.RelatedIDKind `json:"kind"`
	Value string              `json:"value"`
}

// LineItemDTO is one captured checkout line item.
type LineItemDTO struct {
	Position        int     `json:"position"`
	Name            *string `json:"name,omitempty"`
	Quantity        int64   `json:"quantity"`
	UnitAmountCents *int64  `json:"unit_amount_cents,omitempty"`
	UnitAmount      *string `json:"unit_amount,omitempty"`
	PriceID         *string `json:"price_id,omitempty"`
}

// PurchaseDetail is the full aggregate view: summary plus event history,
// related ids and line items.
type PurchaseDetail struct {
	PurchaseSummary
	UserID     uuid.UUID          `json:"user_id"`
	Events     []PurchaseEventDTO `json:"events"`
	RelatedIDs []RelatedIDDTO     `json:"related_ids"`
	LineItems  []LineItemDTO      `json:"line_items"`
}

// PurchaseList wraps a page of purchases plus the next page cursor.
type PurchaseList struct {
	Purchases  []PurchaseSummary `json:"purchases"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// AdminPurchaseList wraps a page of cross-user purchases.
type AdminPurchaseList struct {
	Purchases  []AdminPurchaseSummary `json:"purchases"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

func formatAmount(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}

func summaryFromModel(purchase models.Purchase) PurchaseSummary {
	return PurchaseSummary{
		ID:          purchase.ID,
		ObjectID:    purchase.StripeObjectID,
		Kind:        purchase.Kind,
		Status:      purchase.Status,
		AmountCents: purchase.AmountTotalCents,
		Amount:      formatAmount(purchase.AmountTotalCents),
		Currency:    purchase.Currency,
		CreatedAt:   purchase.CreatedAt,
		UpdatedAt:   purchase.UpdatedAt,
	}
}

func detailFromModel(purchase models.Purchase) PurchaseDetail {
	detail := PurchaseDetail{
		PurchaseSummary: summaryFromModel(purchase),
		UserID:          purchase.UserID,
		Events:          make([]PurchaseEventDTO, 0, len(purchase.Events)),
		RelatedIDs:      make([]RelatedIDDTO, 0, len(purchase.RelatedIDs)),
		LineItems:       make([]LineItemDTO, 0, len(purchase.LineItems)),
	}
	for _, event := range purchase.Events {
		detail.Events = append(detail.Events, PurchaseEventDTO{
			EventID:           event.EventID,
			Type:              event.Type,
			Status:            event.Status,
			ProcessedAt:       event.ProcessedAt,
			ExternalCreatedAt: event.ExternalCreatedAt,
		})
	}
	for _, related := range purchase.RelatedIDs {
		detail.RelatedIDs = append(detail.RelatedIDs, RelatedIDDTO{
			Kind:  related.IDKind,
			Value: related.IDValue,
		})
	}
	for _, item := range purchase.LineItems {
		dto := LineItemDTO{
			Position:        item.Position,
			Name:            item.Name,
			Quantity:        item.Quantity,
			UnitAmountCents: item.UnitAmountCents,
			PriceID:         item.PriceID,
		}
		if item.UnitAmountCents != nil {
			amount := formatAmount(*item.UnitAmountCents)
			dto.UnitAmount = &amount
		}
		detail.LineItems = append(detail.LineItems, dto)
	}
	return detail
}
