// Package store encapsulates MongoDB client management and collection helpers.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type findOneAndUpdateCollection interface {
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
}

// Sequence allocates monotonically increasing identifiers from the counters
// collection, one counter document per sequence name.
type Sequence struct {
	counters findOneAndUpdateCollection
}

// NewSequence constructs a Sequence backed by the provided counters collection.
func NewSequence(counters findOneAndUpdateCollection) *Sequence {
	return &Sequence{counters: counters}
}

type counterDoc struct {
	Name string `bson:"_id"`
	Seq  int64  `bson:"seq"`
}

// Next atomically increments and returns the named counter. The counter
// document is created on first use, so the first returned value is 1.
func (s *Sequence) Next(ctx context.Context, name string) (int64, error) {
	if s == nil || s.counters == nil {
		return 0, errors.New("sequence is not initialized")
	}
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if name == "" {
		return 0, errors.New("sequence name is required")
	}

	result := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After),
	)
	if result == nil {
		return 0, errors.New("sequence update returned no result")
	}
	if err := result.Err(); err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}

	var doc counterDoc
	if err := result.Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode %s counter: %w", name, err)
	}

	return doc.Seq, nil
}
