package purchases

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/acidbutter96/mel-davis-store/pkg/db/models"
	"github.com/acidbutter96/mel-davis-store/pkg/enums"
	"github.com/acidbutter96/mel-davis-store/pkg/pagination"
)

// Repository defines persistence operations for purchase aggregates, their
// event log and the related-id secondary index.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	// FindByAnyID locates the user's purchase whose root object id equals
	// value, or whose related-id index contains value under any kind.
	// Returns (nil, nil) when nothing matches.
	FindByAnyID(ctx context.Context, userID uuid.UUID, value string) (*models.Purchase, error)

	// AppendEvent inserts the event row. Returns false when the event id was
	// already recorded (duplicate delivery).
	AppendEvent(ctx context.Context, event *models.PurchaseEvent) (bool, error)

	UpdateStatus(ctx context.Context, purchaseID uuid.UUID, status string) error

	// UpsertRelatedIDs unions the fragment into the index; existing entries
	// are left untouched, so charge/refund sets only grow.
	UpsertRelatedIDs(ctx context.Context, rows []models.PurchaseRelatedID) error

	// CreatePurchase inserts the aggregate. A unique violation on
	// (user_id, stripe_object_id) surfaces unwrapped so callers can fall
	// back to the update path.
	CreatePurchase(ctx context.Context, purchase *models.Purchase) error

	CreateLineItems(ctx context.Context, items []models.PurchaseLineItem) error

	FindByID(ctx context.Context, purchaseID uuid.UUID) (*models.Purchase, error)
	FindUserPurchase(ctx context.Context, userID, purchaseID uuid.UUID) (*models.Purchase, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Purchase, *pagination.Cursor, error)
	ListAll(ctx context.Context, params pagination.Params, filters AdminFilters) ([]models.Purchase, *pagination.Cursor, error)
}

// AdminFilters narrow the cross-user order listing.
type AdminFilters struct {
	Status string
	Kind   enums.PurchaseKind
	UserID *uuid.UUID
}
