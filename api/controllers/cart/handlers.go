package cart

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	cartsvc "github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// CartFetch returns the summary of the caller's cart.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cart, ok := resolveCart(w, r, svc, logg)
		if !ok {
			return
		}
		summary, err := svc.Summarize(r.Context(), cart)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// CartAddItem adds a product to the caller's cart.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body AddItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, ok := resolveCart(w, r, svc, logg)
		if !ok {
			return
		}

		item, err := svc.AddItem(r.Context(), cart, body.ProductID, body.quantity())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, addItemResponse{
			Status:   statusAdded,
			ItemID:   item.ID,
			Quantity: item.Quantity,
		})
	}
}

// CartUpdateItem sets the quantity of one line; zero removes it.
func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body UpdateItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, ok := resolveCart(w, r, svc, logg)
		if !ok {
			return
		}

		result, err := svc.UpdateQuantity(r.Context(), cart, itemID, *body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if result.Removed {
			responses.WriteSuccess(w, updateItemResponse{Status: statusRemoved})
			return
		}
		quantity := result.Quantity
		responses.WriteSuccess(w, updateItemResponse{Status: statusUpdated, Quantity: &quantity})
	}
}

// CartRemoveItem deletes one line from the caller's cart.
func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cart, ok := resolveCart(w, r, svc, logg)
		if !ok {
			return
		}
		if err := svc.RemoveItem(r.Context(), cart, itemID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// CartClear empties the caller's cart.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cart, ok := resolveCart(w, r, svc, logg)
		if !ok {
			return
		}
		if err := svc.Clear(r.Context(), cart); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, statusResponse{Status: statusCleared})
	}
}

func resolveCart(w http.ResponseWriter, r *http.Request, svc cartsvc.Service, logg *logger.Logger) (*models.Cart, bool) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
		return nil, false
	}
	owner, ok := middleware.CartOwnerFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, cartsvc.InvalidOwnerError())
		return nil, false
	}
	cart, err := svc.ResolveCart(r.Context(), owner)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return cart, true
}
