package order

import "time"

type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type Order struct {
	ID             string    `json:"orderId"`
	UserID         string    `json:"userId"`
	Items          []Item    `json:"products"`
	TotalAmount    float64   `json:"totalAmount"`
	Status         Status    `json:"status"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
