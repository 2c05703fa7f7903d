package purchases

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/acidbutter96/mel-davis-store/pkg/db/models"
	"github.com/acidbutter96/mel-davis-store/pkg/enums"
	"github.com/acidbutter96/mel-davis-store/pkg/pagination"
)

func setupPurchasesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	purchases := `
CREATE TABLE IF NOT EXISTS purchases (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  stripe_object_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  status TEXT NOT NULL,
  amount_total_cents INTEGER NOT NULL DEFAULT 0,
  currency TEXT NOT NULL DEFAULT 'usd',
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (user_id, stripe_object_id)
);`
	purchaseEvents := `
CREATE TABLE IF NOT EXISTS purchase_events (
  id TEXT PRIMARY KEY,
  purchase_id TEXT NOT NULL,
  event_id TEXT NOT NULL UNIQUE,
  type TEXT NOT NULL,
  status TEXT NOT NULL,
  processed_at DATETIME NOT NULL,
  external_created_at INTEGER
);`
	purchaseRelatedIDs := `
CREATE TABLE IF NOT EXISTS purchase_related_ids (
  id TEXT PRIMARY KEY,
  purchase_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  id_kind TEXT NOT NULL,
  id_value TEXT NOT NULL,
  created_at DATETIME,
  UNIQUE (id_kind, id_value, purchase_id)
);`
	purchaseLineItems := `
CREATE TABLE IF NOT EXISTS purchase_line_items (
  id TEXT PRIMARY KEY,
  purchase_id TEXT NOT NULL,
  position INTEGER NOT NULL,
  name TEXT,
  quantity INTEGER NOT NULL,
  unit_amount_cents INTEGER,
  price_id TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(purchases).Error)
	require.NoError(t, db.Exec(purchaseEvents).Error)
	require.NoError(t, db.Exec(purchaseRelatedIDs).Error)
	require.NoError(t, db.Exec(purchaseLineItems).Error)
	return db
}

func createPurchase(t *testing.T, repo Repository, userID uuid.UUID, objectID string, created time.Time) *models.Purchase {
	t.Helper()

	purchase := &models.Purchase{
		ID:               uuid.New(),
		UserID:           userID,
		StripeObjectID:   objectID,
		Kind:             enums.PurchaseKindCheckoutSession,
		Status:           "paid",
		AmountTotalCents: 2500,
		Currency:         "usd",
		CreatedAt:        created,
		UpdatedAt:        created,
	}
	require.NoError(t, repo.CreatePurchase(context.Background(), purchase))
	return purchase
}

func TestRepositoryAppendEvent_DuplicateIsIgnored(t *testing.T) {
	db := setupPurchasesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	purchase := createPurchase(t, repo, uuid.New(), "cs_append_"+uuid.NewString(), time.Now().UTC())

	event := &models.PurchaseEvent{
		PurchaseID:  purchase.ID,
		EventID:     "evt_" + uuid.NewString(),
		Type:        "checkout.session.completed",
		Status:      "paid",
		ProcessedAt: time.Now().UTC(),
	}
	applied, err := repo.AppendEvent(ctx, event)
	require.NoError(t, err)
	assert.True(t, applied)

	replay := &models.PurchaseEvent{
		PurchaseID:  purchase.ID,
		EventID:     event.EventID,
		Type:        event.Type,
		Status:      "failed",
		ProcessedAt: time.Now().UTC(),
	}
	applied, err = repo.AppendEvent(ctx, replay)
	require.NoError(t, err)
	assert.False(t, applied, "replayed event id must not insert")

	var count int64
	require.NoError(t, db.Model(&models.PurchaseEvent{}).Where("event_id = ?", event.EventID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRepositoryFindByAnyID(t *testing.T) {
	db := setupPurchasesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	objectID := "cs_find_" + uuid.NewString()
	purchase := createPurchase(t, repo, userID, objectID, time.Now().UTC())

	chargeID := "ch_" + uuid.NewString()
	require.NoError(t, repo.UpsertRelatedIDs(ctx, []models.PurchaseRelatedID{
		{PurchaseID: purchase.ID, UserID: userID, IDKind: enums.RelatedIDCharge, IDValue: chargeID},
	}))

	found, err := repo.FindByAnyID(ctx, userID, objectID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, purchase.ID, found.ID)

	found, err = repo.FindByAnyID(ctx, userID, chargeID)
	require.NoError(t, err)
	require.NotNil(t, found, "related id must resolve the purchase")
	assert.Equal(t, purchase.ID, found.ID)

	found, err = repo.FindByAnyID(ctx, uuid.New(), objectID)
	require.NoError(t, err)
	assert.Nil(t, found, "other users must not see the purchase")

	found, err = repo.FindByAnyID(ctx, userID, "cs_missing")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestRepositoryUpsertRelatedIDs_Accumulates(t *testing.T) {
	db := setupPurchasesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	purchase := createPurchase(t, repo, userID, "pi_acc_"+uuid.NewString(), time.Now().UTC())

	first := "ch_" + uuid.NewString()
	second := "ch_" + uuid.NewString()
	require.NoError(t, repo.UpsertRelatedIDs(ctx, []models.PurchaseRelatedID{
		{PurchaseID: purchase.ID, UserID: userID, IDKind: enums.RelatedIDCharge, IDValue: first},
	}))
	require.NoError(t, repo.UpsertRelatedIDs(ctx, []models.PurchaseRelatedID{
		{PurchaseID: purchase.ID, UserID: userID, IDKind: enums.RelatedIDCharge, IDValue: first},
		{PurchaseID: purchase.ID, UserID: userID, IDKind: enums.RelatedIDCharge, IDValue: second},
	}))

	var count int64
	require.NoError(t, db.Model(&models.PurchaseRelatedID{}).
		Where("purchase_id = ? AND id_kind = ?", purchase.ID, enums.RelatedIDCharge).
		Count(&count).Error)
	assert.EqualValues(t, 2, count, "charge ids accumulate without duplicates")
}

func TestRepositoryCreatePurchase_DuplicateObjectIDRejected(t *testing.T) {
	db := setupPurchasesTestDB(t)
	repo := NewRepository(db)

	userID := uuid.New()
	objectID := "cs_dup_" + uuid.NewString()
	createPurchase(t, repo, userID, objectID, time.Now().UTC())

	duplicate := &models.Purchase{
		ID:             uuid.New(),
		UserID:         userID,
		StripeObjectID: objectID,
		Kind:           enums.PurchaseKindCheckoutSession,
		Status:         "unpaid",
	}
	err := repo.CreatePurchase(context.Background(), duplicate)
	require.Error(t, err, "second insert for the same (user, object) must fail")
}

func TestRepositoryUpdateStatus(t *testing.T) {
	db := setupPurchasesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	purchase := createPurchase(t, repo, uuid.New(), "cs_status_"+uuid.NewString(), time.Now().UTC())
	require.NoError(t, repo.UpdateStatus(ctx, purchase.ID, "refunded"))

	found, err := repo.FindByID(ctx, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, "refunded", found.Status)
}

func TestRepositoryListByUser_Pagination(t *testing.T) {
	db := setupPurchasesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		createPurchase(t, repo, userID, "cs_page_"+uuid.NewString(), base.Add(time.Duration(i)*time.Minute))
	}

	rows, cursor, err := repo.ListByUser(ctx, userID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, cursor, "expected a next page")
	assert.True(t, rows[0].CreatedAt.After(rows[1].CreatedAt), "newest first")

	rows, cursor, err = repo.ListByUser(ctx, userID, pagination.Params{
		Limit:  2,
		Cursor: pagination.EncodeCursor(*cursor),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, cursor)
}

func TestRepositoryListAll_Filters(t *testing.T) {
	db := setupPurchasesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userA := uuid.New()
	userB := uuid.New()
	now := time.Now().UTC()
	paid := createPurchase(t, repo, userA, "cs_filter_"+uuid.NewString(), now)

	failed := &models.Purchase{
		ID:             uuid.New(),
		UserID:         userB,
		StripeObjectID: "pi_filter_" + uuid.NewString(),
		Kind:           enums.PurchaseKindPaymentIntent,
		Status:         "failed",
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, repo.CreatePurchase(ctx, failed))

	rows, _, err := repo.ListAll(ctx, pagination.Params{}, AdminFilters{Status: "failed"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, failed.ID, rows[0].ID)

	rows, _, err = repo.ListAll(ctx, pagination.Params{}, AdminFilters{Kind: enums.PurchaseKindCheckoutSession, UserID: &userA})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, paid.ID, rows[0].ID)
}

func TestRepositoryFindUserPurchase_ScopedToOwner(t *testing.T) {
	db := setupPurchasesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	purchase := createPurchase(t, repo, userID, "cs_scope_"+uuid.NewString(), time.Now().UTC())

	require.NoError(t, repo.CreateLineItems(ctx, []models.PurchaseLineItem{
		{PurchaseID: purchase.ID, Position: 0, Quantity: 1},
	}))

	found, err := repo.FindUserPurchase(ctx, userID, purchase.ID)
	require.NoError(t, err)
	assert.Len(t, found.LineItems, 1)

	_, err = repo.FindUserPurchase(ctx, uuid.New(), purchase.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
