// Package events defines the wire contract shared by every service on the
// ORDER_EVENTS fanout. Envelopes are immutable values: consumers derive new
// envelopes from ones they received but never re-emit the original.
package events

import (
	"encoding/json"
	"fmt"
)

const (
	TypeOrderPlaced       = "ORDER_PLACED"
	TypeOrderShipped      = "ORDER_SHIPPED"
	TypeOrderFailed       = "ORDER_FAILED"
	TypeStockUpdateFailed = "STOCK_UPDATE_FAILED"
)

// ProductLine is an ordered line item as carried on ORDER_SHIPPED.
type ProductLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// FailedLine reports a line whose stock decrement could not be satisfied.
type FailedLine struct {
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// Envelope is the single message shape published to the fanout exchange.
// Every service receives every envelope and filters by Type.
type Envelope struct {
	Type           string        `json:"type"`
	UserID         string        `json:"userId"`
	Message        string        `json:"message,omitempty"`
	OrderID        string        `json:"orderId,omitempty"`
	Products       []ProductLine `json:"products,omitempty"`
	FailedProducts []FailedLine  `json:"failedProducts,omitempty"`
}

func NewOrderPlaced(userID, message string) Envelope {
	return Envelope{Type: TypeOrderPlaced, UserID: userID, Message: message}
}

func NewOrderShipped(userID, orderID, message string, products []ProductLine) Envelope {
	return Envelope{
		Type:     TypeOrderShipped,
		UserID:   userID,
		OrderID:  orderID,
		Message:  message,
		Products: products,
	}
}

func NewOrderFailed(userID, orderID, message string) Envelope {
	return Envelope{Type: TypeOrderFailed, UserID: userID, OrderID: orderID, Message: message}
}

func NewStockUpdateFailed(userID, orderID string, failed []FailedLine) Envelope {
	return Envelope{
		Type:           TypeStockUpdateFailed,
		UserID:         userID,
		OrderID:        orderID,
		FailedProducts: failed,
	}
}

// Decode parses a message body and validates the required fields for its
// type. Callers treat any error as a malformed envelope (ack and drop).
func Decode(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Validate enforces the per-type required fields at the deserialization
// boundary. The event payloads are loosely typed on the wire, so this is the
// one place that decides whether an envelope is well formed.
func (e Envelope) Validate() error {
	switch e.Type {
	case TypeOrderPlaced:
		if e.UserID == "" || e.Message == "" {
			return fmt.Errorf("%s: missing userId or message", e.Type)
		}
	case TypeOrderShipped:
		if e.UserID == "" || e.Message == "" || e.OrderID == "" {
			return fmt.Errorf("%s: missing userId, message or orderId", e.Type)
		}
		if len(e.Products) == 0 {
			return fmt.Errorf("%s: missing products", e.Type)
		}
		for _, p := range e.Products {
			if p.ProductID == "" || p.Quantity < 1 {
				return fmt.Errorf("%s: invalid product line %+v", e.Type, p)
			}
		}
	case TypeOrderFailed:
		if e.UserID == "" || e.Message == "" || e.OrderID == "" {
			return fmt.Errorf("%s: missing userId, message or orderId", e.Type)
		}
	case TypeStockUpdateFailed:
		if e.UserID == "" || e.OrderID == "" {
			return fmt.Errorf("%s: missing userId or orderId", e.Type)
		}
		if len(e.FailedProducts) == 0 {
			return fmt.Errorf("%s: missing failedProducts", e.Type)
		}
	case "":
		return fmt.Errorf("missing event type")
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}
