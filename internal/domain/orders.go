package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrAlreadyFinal is returned when a status transition is requested for an
// order that is no longer pending.
var ErrAlreadyFinal = errors.New("order is not pending")

type orderCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type orderSequence interface {
	Next(ctx context.Context, name string) (int64, error)
}

// OrderRepository persists and retrieves orders in MongoDB.
type OrderRepository struct {
	collection orderCollection
	sequence   orderSequence
}

// NewOrderRepository constructs an OrderRepository.
func NewOrderRepository(collection orderCollection, sequence orderSequence) *OrderRepository {
	return &OrderRepository{collection: collection, sequence: sequence}
}

// Create inserts a new pending order with an allocated order_id and populated
// timestamps. Orders always start pending. The chat id records where the
// settlement follow-up message belongs.
func (r *OrderRepository) Create(ctx context.Context, userID, chatID int64, tariff, paymentID string) (Order, error) {
	if r == nil || r.collection == nil || r.sequence == nil {
		return Order{}, errors.New("order repository is not initialized")
	}
	if ctx == nil {
		return Order{}, errors.New("context is required")
	}
	if userID == 0 {
		return Order{}, errors.New("user_id is required")
	}
	if tariff == "" {
		return Order{}, errors.New("tariff is required")
	}

	orderID, err := r.sequence.Next(ctx, "orders")
	if err != nil {
		return Order{}, fmt.Errorf("allocate order id: %w", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	order := Order{
		OrderID:   orderID,
		UserID:    userID,
		ChatID:    chatID,
		Tariff:    tariff,
		Status:    StatusPending,
		PaymentID: paymentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := r.collection.InsertOne(ctx, order); err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}

	return order, nil
}

// ListByUser fetches all orders for a user, oldest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	if r == nil || r.collection == nil {
		return nil, errors.New("order repository is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if userID == 0 {
		return nil, errors.New("user_id is required")
	}

	return r.list(ctx, bson.M{"user_id": userID})
}

// ListPending fetches all orders still awaiting a terminal payment status,
// oldest first.
func (r *OrderRepository) ListPending(ctx context.Context) ([]Order, error) {
	if r == nil || r.collection == nil {
		return nil, errors.New("order repository is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	return r.list(ctx, bson.M{"status": StatusPending})
}

// MarkStatus transitions a pending order to a terminal status. The filter
// requires the pending status, so a finished order is never overwritten;
// ErrAlreadyFinal reports a lost race or repeated call.
func (r *OrderRepository) MarkStatus(ctx context.Context, orderID int64, status string) error {
	if r == nil || r.collection == nil {
		return errors.New("order repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if !CanTransition(StatusPending, status) {
		return fmt.Errorf("invalid target status %q", status)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"order_id": orderID, "status": StatusPending},
		bson.M{"$set": bson.M{"status": status, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if result == nil || result.MatchedCount == 0 {
		return ErrAlreadyFinal
	}

	return nil
}

// IncrementChecks bumps the status-check counter of a pending order.
func (r *OrderRepository) IncrementChecks(ctx context.Context, orderID int64) error {
	if r == nil || r.collection == nil {
		return errors.New("order repository is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.collection.UpdateOne(ctx,
		bson.M{"order_id": orderID, "status": StatusPending},
		bson.M{"$inc": bson.M{"checks": 1}, "$set": bson.M{"updated_at": now}},
	); err != nil {
		return fmt.Errorf("increment order checks: %w", err)
	}

	return nil
}

func (r *OrderRepository) list(ctx context.Context, filter bson.M) ([]Order, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "order_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}

	return orders, nil
}
