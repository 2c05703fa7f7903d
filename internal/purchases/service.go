package purchases

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/acidbutter96/mel-davis-store/pkg/errors"
	"github.com/acidbutter96/mel-davis-store/pkg/pagination"
)

// Service exposes the read side of the purchase ledger: per-user history for
// the storefront and cross-user listings for the back office.
type Service interface {
	ListUserPurchases(ctx context.Context, userID uuid.UUID, params pagination.Params) (*PurchaseList, error)
	GetUserPurchase(ctx context.Context, userID, purchaseID uuid.UUID) (*PurchaseDetail, error)
	ListOrders(ctx context.Context, params pagination.Params, filters AdminFilters) (*AdminPurchaseList, error)
	GetOrder(ctx context.Context, purchaseID uuid.UUID) (*PurchaseDetail, error)
}

type service struct {
	repo Repository
}

// NewService builds the purchase read service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchases repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListUserPurchases(ctx context.Context, userID uuid.UUID, params pagination.Params) (*PurchaseList, error) {
	rows, next, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list purchases")
	}

	list := &PurchaseList{Purchases: make([]PurchaseSummary, 0, len(rows))}
	for _, row := range rows {
		list.Purchases = append(list.Purchases, summaryFromModel(row))
	}
	if next != nil {
		list.NextCursor = pagination.EncodeCursor(*next)
	}
	return list, nil
}

func (s *service) GetUserPurchase(ctx context.Context, userID, purchaseID uuid.UUID) (*PurchaseDetail, error) {
	purchase, err := s.repo.FindUserPurchase(ctx, userID, purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find purchase")
	}
	detail := detailFromModel(*purchase)
	return &detail, nil
}

func (s *service) ListOrders(ctx context.Context, params pagination.Params, filters AdminFilters) (*AdminPurchaseList, error) {
	if filters.Kind != "" && !filters.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid kind filter")
	}

	rows, next, err := s.repo.ListAll(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}

	list := &AdminPurchaseList{Purchases: make([]AdminPurchaseSummary, 0, len(rows))}
	for _, row := range rows {
		list.Purchases = append(list.Purchases, AdminPurchaseSummary{
			PurchaseSummary: summaryFromModel(row),
			UserID:          row.UserID,
		})
	}
	if next != nil {
		list.NextCursor = pagination.EncodeCursor(*next)
	}
	return list, nil
}

func (s *service) GetOrder(ctx context.Context, purchaseID uuid.UUID) (*PurchaseDetail, error) {
	purchase, err := s.repo.FindByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find purchase")
	}
	detail := detailFromModel(*purchase)
	return &detail, nil
}
