// Package domain defines the order model, its status machine, and the tariff
// price table.
package domain

import "time"

// Order statuses. An order starts pending and moves to exactly one terminal
// status; there is no way back.
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusFailed  = "failed"
)

// Order represents one subscription purchase attempt by a user.
type Order struct {
	OrderID   int64     `bson:"order_id" json:"order_id"`
	UserID    int64     `bson:"user_id" json:"user_id"`
	ChatID    int64     `bson:"chat_id" json:"chat_id"`
	Tariff    string    `bson:"tariff" json:"tariff"`
	Status    string    `bson:"status" json:"status"`
	PaymentID string    `bson:"payment_id" json:"payment_id"`
	Checks    int       `bson:"checks" json:"checks"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsFinal reports whether the status is terminal.
func IsFinal(status string) bool {
	return status == StatusPaid || status == StatusFailed
}

// CanTransition reports whether an order may move from one status to another.
// Only pending orders transition, and only to a terminal status.
func CanTransition(from, to string) bool {
	return from == StatusPending && IsFinal(to)
}
