package cart

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// InvalidOwnerError signals a cart request whose owner is neither a user nor
// a session, or both.
func InvalidOwnerError() error {
	return pkgerrors.New(pkgerrors.CodeInvalidOwner, "cart owner must be exactly one of user or session")
}

// ProductNotFoundError signals that the requested product does not exist.
func ProductNotFoundError(productID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeProductNotFound, fmt.Sprintf("product %s not found", productID))
}

// ProductUnavailableError signals that the product is withdrawn from sale.
func ProductUnavailableError(name string) error {
	return pkgerrors.New(pkgerrors.CodeProductUnavailable, fmt.Sprintf("product %q is not available", name))
}

// InsufficientStockError reports the quantity that could have been accepted.
func InsufficientStockError(available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("only %d units available", available)).
		WithDetails(map[string]any{"available_quantity": available})
}

// CartItemNotFoundError signals that the line does not exist in the caller's cart.
func CartItemNotFoundError() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
}

func cartNotFoundError() error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
}

func hasCode(err error, code pkgerrors.Code) bool {
	typed := pkgerrors.As(err)
	return typed != nil && typed.Code() == code
}
