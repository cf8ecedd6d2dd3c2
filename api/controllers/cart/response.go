package cart

import "github.com/google/uuid"

const (
	statusAdded   = "added"
	statusUpdated = "updated"
	statusRemoved = "removed"
	statusCleared = "cleared"
)

type addItemResponse struct {
	Status   string    `json:"status"`
	ItemID   uuid.UUID `json:"item_id"`
	Quantity int       `json:"quantity"`
}

type updateItemResponse struct {
	Status   string `json:"status"`
	Quantity *int   `json:"quantity,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
}
