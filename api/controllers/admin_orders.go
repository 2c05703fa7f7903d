package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/acidbutter96/mel-davis-store/api/responses"
	"github.com/acidbutter96/mel-davis-store/internal/purchases"
	"github.com/acidbutter96/mel-davis-store/pkg/enums"
	pkgerrors "github.com/acidbutter96/mel-davis-store/pkg/errors"
	"github.com/acidbutter96/mel-davis-store/pkg/logger"
)

// AdminListOrders returns the cross-user purchase listing for back-office
// operators. Supports status, kind and user filters.
func AdminListOrders(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchases service unavailable"))
			return
		}

		params, err := paginationFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filters := purchases.AdminFilters{
			Status: strings.TrimSpace(r.URL.Query().Get("status")),
			Kind:   enums.PurchaseKind(strings.TrimSpace(r.URL.Query().Get("kind"))),
		}
		if rawUser := strings.TrimSpace(r.URL.Query().Get("userId")); rawUser != "" {
			userID, err := uuid.Parse(rawUser)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id filter"))
				return
			}
			filters.UserID = &userID
		}

		resp, err := svc.ListOrders(r.Context(), params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// AdminGetOrder returns one purchase aggregate regardless of owner.
func AdminGetOrder(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchases service unavailable"))
			return
		}

		rawPurchaseID := strings.TrimSpace(chi.URLParam(r, "purchaseId"))
		purchaseID, err := uuid.Parse(rawPurchaseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid purchase id"))
			return
		}

		resp, err := svc.GetOrder(r.Context(), purchaseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}
