package purchases

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/acidbutter96/mel-davis-store/pkg/db/models"
	"github.com/acidbutter96/mel-davis-store/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a purchases repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByAnyID(ctx context.Context, userID uuid.UUID, value string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where(
			r.db.Where("stripe_object_id = ?", value).
				Or("id IN (?)", r.db.Model(&models.PurchaseRelatedID{}).
					Select("purchase_id").
					Where("user_id = ? AND id_value = ?", userID, value)),
		).
		First(&purchase).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) AppendEvent(ctx context.Context, event *models.PurchaseEvent) (bool, error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) UpdateStatus(ctx context.Context, purchaseID uuid.UUID, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ?", purchaseID).
		Update("status", status).Error
}

func (r *repository) UpsertRelatedIDs(ctx context.Context, rows []models.PurchaseRelatedID) error {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id_kind"}, {Name: "id_value"}, {Name: "purchase_id"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

func (r *repository) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *repository) CreateLineItems(ctx context.Context, items []models.PurchaseLineItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, purchaseID uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("processed_at ASC") }).
		Preload("RelatedIDs").
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", purchaseID).
		First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) FindUserPurchase(ctx context.Context, userID, purchaseID uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Preload("Events", func(db *gorm.DB) *gorm.DB { return db.Order("processed_at ASC") }).
		Preload("RelatedIDs").
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ? AND user_id = ?", purchaseID, userID).
		First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Purchase, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID)
	return r.listPage(ctx, query, params)
}

func (r *repository) ListAll(ctx context.Context, params pagination.Params, filters AdminFilters) ([]models.Purchase, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Purchase{})
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.Kind != "" {
		query = query.Where("kind = ?", filters.Kind)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	return r.listPage(ctx, query, params)
}

func (r *repository) listPage(ctx context.Context, query *gorm.DB, params pagination.Params) ([]models.Purchase, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)

	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, nil, err
		}
		if cursor != nil {
			query = query.Where(
				"(created_at < ?) OR (created_at = ? AND id < ?)",
				cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
			)
		}
	}

	var rows []models.Purchase
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	pageSize := pagination.NormalizeLimit(params.Limit)
	if len(rows) <= pageSize {
		return rows, nil, nil
	}

	rows = rows[:pageSize]
	last := rows[len(rows)-1]
	return rows, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
}
