package cart

import "github.com/google/uuid"

const defaultAddQuantity = 1

// AddItemRequest is the body of POST /api/cart/add/. Quantity defaults to 1.
type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  *int      `json:"quantity,omitempty"`
}

func (r AddItemRequest) quantity() int {
	if r.Quantity == nil {
		return defaultAddQuantity
	}
	return *r.Quantity
}

// UpdateItemRequest is the body of PATCH /api/cart/items/{id}/.
type UpdateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}
